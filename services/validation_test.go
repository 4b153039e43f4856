package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"course-assistant-platform/models"
	"course-assistant-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValidator(gen *stubGenerator) *ValidationEngine {
	cfg := testConfig()
	var generator *stubGenerator
	if gen != nil {
		generator = gen
	}
	if generator == nil {
		return NewValidationEngine(cfg, localEmbeddings(cfg), nil, nil)
	}
	return NewValidationEngine(cfg, localEmbeddings(cfg), generator, nil)
}

const wellStructuredTheory = `# Recursion

Recursion is a technique where a function calls itself on a smaller input.
A recursive definition refers to the concept being defined.

## Base case

Every recursion needs a base case, which is defined as the input the
function answers directly without another recursive call.

- the base case stops the descent
- the recursive case shrinks the problem

` + "```python\ndef fact(n):\n    return 1 if n <= 1 else n * fact(n - 1)\n```\n"

func TestValidateRejectsEmptyContent(t *testing.T) {
	validator := newTestValidator(nil)

	_, err := validator.Validate(context.Background(), "theory", "   ", nil, models.ValidationOptions{})
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestValidateRejectsUnsupportedType(t *testing.T) {
	validator := newTestValidator(nil)

	_, err := validator.Validate(context.Background(), "podcast", "some content", nil, models.ValidationOptions{})
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestValidateTheoryGroundedAndStructured(t *testing.T) {
	validator := newTestValidator(nil)

	chunks := []string{
		"recursion is a technique where a function calls itself on a smaller input",
		"every recursion needs a base case that answers directly",
	}
	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory, chunks, models.ValidationOptions{})
	require.NoError(t, err)

	assert.True(t, result.Valid, "feedback: %s", result.Feedback)
	assert.Contains(t, result.Layers, LayerGrounding)
	assert.Contains(t, result.Layers, LayerStructure)
	assert.NotContains(t, result.Layers, LayerCode)
	assert.NotContains(t, result.Layers, LayerSelfEval, "self-eval is off without a generator")
}

func TestValidateNoContextScoresGroundingZero(t *testing.T) {
	validator := newTestValidator(nil)

	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory, nil, models.ValidationOptions{})
	require.NoError(t, err)

	assert.Zero(t, result.Layers[LayerGrounding].Score)
}

func TestValidateLabSafetyCriticalAlwaysFails(t *testing.T) {
	validator := newTestValidator(nil)

	code := `# cleanup helper
import os

def main():
    os.system("rm -rf /tmp/scratch")

if __name__ == "__main__":
    main()
`
	chunks := []string{"the lab covers file cleanup helpers using the os module in python"}
	result, err := validator.Validate(context.Background(), "lab", code, chunks, models.ValidationOptions{Language: "python"})
	require.NoError(t, err)

	assert.False(t, result.Valid, "safety-critical pattern must fail regardless of score")
	assert.Contains(t, result.Feedback, "unsafe")
}

func TestValidateLabStructuralChecks(t *testing.T) {
	validator := newTestValidator(nil)

	code := `// entry point
func main() {
	fmt.Println("hello")
}
`
	result, err := validator.Validate(context.Background(), "lab", code,
		[]string{"go programs start in func main inside package main"},
		models.ValidationOptions{Language: "go"})
	require.NoError(t, err)

	assert.Contains(t, result.Layers, LayerCode)
	assert.NotContains(t, result.Layers, LayerStructure)
	assert.GreaterOrEqual(t, result.Layers[LayerCode].Score, 0.8, "clean code with entry point and comments")
}

func TestValidateLabUnbalancedBrackets(t *testing.T) {
	validator := newTestValidator(nil)

	code := "// broken\nfunc main() {\n\tfmt.Println(\"hello\"\n"
	result, err := validator.Validate(context.Background(), "lab", code,
		[]string{"go basics"}, models.ValidationOptions{Language: "go"})
	require.NoError(t, err)

	assert.Contains(t, result.Layers[LayerCode].Explanation, "unbalanced brackets")
}

func TestValidateStructurePenalties(t *testing.T) {
	validator := newTestValidator(nil)

	result, err := validator.Validate(context.Background(), "theory", "too short",
		[]string{"context"}, models.ValidationOptions{})
	require.NoError(t, err)

	structure := result.Layers[LayerStructure]
	assert.Less(t, structure.Score, 0.5)
	assert.Contains(t, structure.Explanation, "minimum length")
	assert.Contains(t, structure.Explanation, "no headings")
}

func TestValidateSelfEvalUsesModelScore(t *testing.T) {
	gen := &stubGenerator{success: true, text: `{"score": 0.9, "feedback": "clear and accurate"}`}
	validator := newTestValidator(gen)

	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory,
		[]string{"recursion is a technique where a function calls itself"},
		models.ValidationOptions{SelfEval: true})
	require.NoError(t, err)

	require.Contains(t, result.Layers, LayerSelfEval)
	assert.Equal(t, 0.9, result.Layers[LayerSelfEval].Score)
	assert.Equal(t, "clear and accurate", result.Layers[LayerSelfEval].Explanation)
}

func TestValidateSelfEvalMalformedIsNeutral(t *testing.T) {
	gen := &stubGenerator{success: true, text: "I think it deserves an A+"}
	validator := newTestValidator(gen)

	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory,
		[]string{"recursion"}, models.ValidationOptions{SelfEval: true})
	require.NoError(t, err)

	assert.Equal(t, 0.5, result.Layers[LayerSelfEval].Score)
	assert.Contains(t, result.Layers[LayerSelfEval].Explanation, "neutral")
}

func TestValidateSelfEvalOutOfRangeIsNeutral(t *testing.T) {
	gen := &stubGenerator{success: true, text: `{"score": 7.5, "feedback": "great"}`}
	validator := newTestValidator(gen)

	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory,
		[]string{"recursion"}, models.ValidationOptions{SelfEval: true})
	require.NoError(t, err)

	assert.Equal(t, 0.5, result.Layers[LayerSelfEval].Score)
}

func TestValidateWeightsRenormalized(t *testing.T) {
	validator := newTestValidator(nil)

	// Without self-eval the remaining theory weights (0.3 grounding,
	// 0.4 structure) are renormalized; the combined score must match the
	// hand-computed weighted average.
	chunks := []string{"recursion is a technique where a function calls itself on a smaller input"}
	result, err := validator.Validate(context.Background(), "theory", wellStructuredTheory, chunks, models.ValidationOptions{})
	require.NoError(t, err)

	g := result.Layers[LayerGrounding].Score
	s := result.Layers[LayerStructure].Score
	expected := (0.3*g + 0.4*s) / 0.7
	assert.InDelta(t, expected, result.Score, 1e-9)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	text := strings.Repeat("λ", 80)

	out := truncate(text, 101)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestBracketsBalanced(t *testing.T) {
	assert.True(t, bracketsBalanced("func f() { return [1, 2, (3)] }"))
	assert.False(t, bracketsBalanced("f(]"))
	assert.False(t, bracketsBalanced("((("))
	assert.False(t, bracketsBalanced(")"))
	assert.True(t, bracketsBalanced("no brackets at all"))
}

func TestScorecard(t *testing.T) {
	card := NewScorecard()
	assert.Equal(t, 1.0, card.Score())
	assert.Equal(t, "no issues found", card.Explanation())

	card.Penalize("first issue", 0.3)
	assert.InDelta(t, 0.7, card.Score(), 1e-9)

	card.Penalize("second issue", 0.9)
	assert.Equal(t, 0.0, card.Score(), "score clamps at zero")

	card.Note("observation")
	explanation := card.Explanation()
	assert.Contains(t, explanation, "first issue (-0.30)")
	assert.Contains(t, explanation, "observation")
}

func TestBuildFeedbackDeterministic(t *testing.T) {
	layers := map[string]models.LayerResult{
		LayerStructure: {Score: 0.2, Explanation: "no headings"},
		LayerGrounding: {Score: 0.1, Explanation: "low similarity"},
	}
	first := buildFeedback(false, false, layers)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, buildFeedback(false, false, layers))
	}
	assert.True(t, strings.Index(first, "grounding") < strings.Index(first, "structure"),
		"layers are reported in sorted order")
}
