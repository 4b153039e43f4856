package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/mongo"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/internal/telemetry"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

// Validation layer names, used as keys of ValidationResult.Layers.
const (
	LayerGrounding = "grounding"
	LayerStructure = "structure"
	LayerCode      = "code"
	LayerSelfEval  = "self_eval"
)

// safetyPattern flags a known-dangerous construct in lab code. Critical
// patterns force valid=false regardless of the combined score.
type safetyPattern struct {
	name     string
	pattern  *regexp.Regexp
	penalty  float64
	critical bool
}

// languageChecks holds per-language structural expectations for lab code.
type languageChecks struct {
	entryPoint    *regexp.Regexp
	commentMarker string
}

// ValidationEngine scores generated content across grounding, structure,
// code-safety, and optional external self-evaluation layers, combining them
// with type-specific weights into one pass/fail decision.
type ValidationEngine struct {
	embeddings *ai.EmbeddingService
	generator  ai.Generator
	cfg        *config.Config
	logs       *mongo.Collection  // nil disables validation logging
	metrics    *telemetry.Metrics // nil disables outcome metrics
	safety     []safetyPattern
	languages  map[string]languageChecks
	technical  *regexp.Regexp
}

func NewValidationEngine(cfg *config.Config, embeddings *ai.EmbeddingService, generator ai.Generator, logs *mongo.Collection) *ValidationEngine {
	return &ValidationEngine{
		embeddings: embeddings,
		generator:  generator,
		cfg:        cfg,
		logs:       logs,
		safety: []safetyPattern{
			{"shell execution", regexp.MustCompile(`os\.system\s*\(|subprocess\.(run|call|Popen)|child_process|Runtime\.getRuntime\(\)\.exec`), 0.5, true},
			{"dynamic code evaluation", regexp.MustCompile(`\beval\s*\(|\bexec\s*\(|__import__\s*\(|Function\s*\(\s*["']`), 0.5, true},
			{"destructive filesystem command", regexp.MustCompile(`rm\s+-rf|shutil\.rmtree|os\.remove\s*\(`), 0.4, true},
			{"raw SQL execution", regexp.MustCompile(`(?i)(DROP\s+TABLE|DELETE\s+FROM|TRUNCATE\s+TABLE)`), 0.4, true},
			{"unsafe deserialization", regexp.MustCompile(`pickle\.loads?\s*\(|yaml\.load\s*\(`), 0.3, false},
		},
		languages: map[string]languageChecks{
			"python":     {regexp.MustCompile(`def\s+main\s*\(|if\s+__name__\s*==`), "#"},
			"go":         {regexp.MustCompile(`func\s+main\s*\(`), "//"},
			"java":       {regexp.MustCompile(`public\s+static\s+void\s+main`), "//"},
			"javascript": {regexp.MustCompile(`function\s+\w+\s*\(|=>|console\.log`), "//"},
			"c":          {regexp.MustCompile(`int\s+main\s*\(`), "//"},
			"cpp":        {regexp.MustCompile(`int\s+main\s*\(`), "//"},
		},
		technical: regexp.MustCompile(`(?i)\b(function|algorithm|implementation|syntax|compile|variable|loop|array|pointer|recursion|complexity)\b`),
	}
}

// Validate scores content of the given type against the supplied context
// chunks. Unsupported types and empty content are rejected before any
// external call.
func (ve *ValidationEngine) Validate(ctx context.Context, contentType string, content string, contextChunks []string, opts models.ValidationOptions) (*models.ValidationResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, utils.NewInvalidInput("content to validate is empty")
	}

	var weights map[string]float64
	switch contentType {
	case "theory":
		weights = map[string]float64{
			LayerGrounding: ve.cfg.TheoryGroundingWeight,
			LayerStructure: ve.cfg.TheoryStructureWeight,
			LayerSelfEval:  ve.cfg.TheorySelfEvalWeight,
		}
	case "slides":
		weights = map[string]float64{
			LayerGrounding: ve.cfg.SlidesGroundingWeight,
			LayerStructure: ve.cfg.SlidesStructureWeight,
			LayerSelfEval:  ve.cfg.SlidesSelfEvalWeight,
		}
	case "lab":
		weights = map[string]float64{
			LayerGrounding: ve.cfg.LabGroundingWeight,
			LayerCode:      ve.cfg.LabCodeWeight,
			LayerSelfEval:  ve.cfg.LabSelfEvalWeight,
		}
	default:
		return nil, utils.NewInvalidInput(fmt.Sprintf("unsupported content type %q", contentType))
	}

	layers := make(map[string]models.LayerResult)
	layers[LayerGrounding] = ve.groundingLayer(ctx, content, contextChunks)

	safetyCritical := false
	if contentType == "lab" {
		result, critical := ve.codeLayer(content, opts.Language)
		layers[LayerCode] = result
		safetyCritical = critical
	} else {
		layers[LayerStructure] = ve.structureLayer(content)
	}

	if opts.SelfEval && ve.generator != nil {
		layers[LayerSelfEval] = ve.selfEvalLayer(ctx, contentType, content)
	} else {
		delete(weights, LayerSelfEval)
	}

	// Weighted combination over the layers actually used, renormalized so
	// the effective weights sum to 1.0.
	var score, totalWeight float64
	for name, layer := range layers {
		weight := weights[name]
		score += layer.Score * weight
		totalWeight += weight
	}
	if totalWeight > 0 {
		score /= totalWeight
	}

	valid := score >= ve.cfg.ValidationThreshold
	// A tripped safety-critical pattern always fails the lab, even when
	// the weighted score clears the threshold.
	if safetyCritical {
		valid = false
	}

	result := &models.ValidationResult{
		Valid:    valid,
		Score:    score,
		Layers:   layers,
		Feedback: buildFeedback(valid, safetyCritical, layers),
	}
	ve.logResult(contentType, result)
	if ve.metrics != nil {
		ve.metrics.RecordValidation(contentType, result.Valid)
	}
	return result, nil
}

// SetMetrics attaches the pipeline meter. Optional.
func (ve *ValidationEngine) SetMetrics(m *telemetry.Metrics) {
	ve.metrics = m
}

// groundingLayer scores how well the content is supported by the retrieved
// chunks: weighted max and average cosine similarity of the embeddings.
func (ve *ValidationEngine) groundingLayer(ctx context.Context, content string, contextChunks []string) models.LayerResult {
	if len(contextChunks) == 0 {
		return models.LayerResult{
			Score:       0,
			Explanation: "no context chunks supplied; content cannot be grounded",
		}
	}

	texts := append([]string{content}, contextChunks...)
	vectors, _, err := ve.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return models.LayerResult{
			Score:       0,
			Explanation: "embedding unavailable, grounding could not be computed",
		}
	}

	contentVec := vectors[0]
	var maxSim, sum float64
	for _, chunkVec := range vectors[1:] {
		sim := CosineSimilarity(contentVec, chunkVec)
		if sim > maxSim {
			maxSim = sim
		}
		sum += sim
	}
	avg := sum / float64(len(contextChunks))
	score := ve.cfg.GroundingMaxWeight*maxSim + ve.cfg.GroundingAvgWeight*avg

	return models.LayerResult{
		Score:       score,
		Explanation: fmt.Sprintf("max similarity %.2f, average %.2f over %d chunks", maxSim, avg, len(contextChunks)),
	}
}

// structureLayer runs the heuristic checks for theory and slides content.
func (ve *ValidationEngine) structureLayer(content string) models.LayerResult {
	card := NewScorecard()

	if len(content) < 200 {
		card.Penalize("content below minimum length", 0.3)
	}
	if !regexp.MustCompile(`(?m)^#{1,6}\s`).MatchString(content) {
		card.Penalize("no headings", 0.15)
	}
	if !regexp.MustCompile(`(?m)^\s*([-*+]|\d+\.)\s`).MatchString(content) {
		card.Penalize("no lists", 0.1)
	}
	if len(filterEmpty(strings.Split(content, "\n\n"))) < 2 {
		card.Penalize("single paragraph", 0.1)
	}
	if ve.technical.MatchString(content) && !strings.Contains(content, "```") {
		card.Penalize("technical vocabulary without code examples", 0.15)
	}
	if !regexp.MustCompile(`(?i)\b(is defined as|refers to|is a|means that|is called)\b`).MatchString(content) {
		card.Penalize("no definitional language", 0.1)
	}

	return models.LayerResult{Score: card.Score(), Explanation: card.Explanation()}
}

// codeLayer runs safety and structural checks for lab content. The second
// return value reports whether a safety-critical pattern tripped.
func (ve *ValidationEngine) codeLayer(content, language string) (models.LayerResult, bool) {
	card := NewScorecard()
	critical := false

	for _, sp := range ve.safety {
		if sp.pattern.MatchString(content) {
			card.Penalize("dangerous construct: "+sp.name, sp.penalty)
			if sp.critical {
				critical = true
			}
		}
	}

	if !bracketsBalanced(content) {
		card.Penalize("unbalanced brackets", 0.2)
	}

	if checks, ok := ve.languages[strings.ToLower(language)]; ok {
		if !checks.entryPoint.MatchString(content) {
			card.Penalize("missing conventional entry point", 0.15)
		}
		if !strings.Contains(content, checks.commentMarker) {
			card.Penalize("no comments", 0.1)
		}
	}

	if critical {
		card.Note("safety-critical pattern present, result marked invalid")
	}
	return models.LayerResult{Score: card.Score(), Explanation: card.Explanation()}, critical
}

// selfEvalRubric is the strict JSON shape the external evaluation must
// return.
type selfEvalRubric struct {
	Score    float64 `json:"score"`
	Feedback string  `json:"feedback"`
}

// selfEvalLayer asks the generative model for a rubric-based score. Any
// failure or parse error yields the neutral score with an explanatory note,
// never a silent perfect score and never a crash.
func (ve *ValidationEngine) selfEvalLayer(ctx context.Context, contentType, content string) models.LayerResult {
	neutral := models.LayerResult{
		Score:       0.5,
		Explanation: "external evaluation skipped (unavailable or malformed), neutral score applied",
	}

	prompt := fmt.Sprintf(`You are reviewing generated %s course material.
Score it from 0.0 to 1.0 for accuracy, clarity, and completeness.

Material:
%s

Respond with JSON only: {"score": 0.0-1.0, "feedback": "one sentence"}`,
		contentType, truncate(content, 8000))

	result, err := ve.generator.Generate(ctx, prompt, ai.GenerateOptions{
		Temperature: 0.2,
		MaxTokens:   512,
		JSONMode:    true,
	})
	if err != nil || !result.Success {
		logger.Debug("self-evaluation unavailable", "error", err)
		return neutral
	}

	var rubric selfEvalRubric
	if err := json.Unmarshal([]byte(result.Text), &rubric); err != nil {
		logger.Warn("self-evaluation returned malformed JSON", "error", err)
		return neutral
	}
	if rubric.Score < 0 || rubric.Score > 1 {
		return neutral
	}

	return models.LayerResult{Score: rubric.Score, Explanation: rubric.Feedback}
}

// logResult writes the outcome to the validation log collection,
// fire-and-forget.
func (ve *ValidationEngine) logResult(contentType string, result *models.ValidationResult) {
	if ve.logs == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, err := ve.logs.InsertOne(ctx, models.ValidationLog{
			ContentType: contentType,
			Valid:       result.Valid,
			Score:       result.Score,
			Feedback:    result.Feedback,
			CreatedAt:   time.Now(),
		})
		if err != nil {
			logger.Debug("validation log write failed", "error", err)
		}
	}()
}

func buildFeedback(valid, safetyCritical bool, layers map[string]models.LayerResult) string {
	if safetyCritical {
		return "rejected: the code contains a construct that is unsafe to run in student environments"
	}
	names := make([]string, 0, len(layers))
	for name := range layers {
		names = append(names, name)
	}
	sort.Strings(names)
	var weak []string
	for _, name := range names {
		if layer := layers[name]; layer.Score < 0.5 {
			weak = append(weak, fmt.Sprintf("%s: %s", name, layer.Explanation))
		}
	}
	if valid && len(weak) == 0 {
		return "content passed all validation layers"
	}
	if valid {
		return "passed with reservations - " + strings.Join(weak, "; ")
	}
	return "failed validation - " + strings.Join(weak, "; ")
}

// bracketsBalanced checks (), [], {} nesting with a stack. String literals
// are not parsed; this is a heuristic, not a compiler.
func bracketsBalanced(content string) bool {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range content {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func truncate(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	// Keep the cut on a rune boundary.
	for maxLength > 0 && !utf8.RuneStart(text[maxLength]) {
		maxLength--
	}
	return text[:maxLength] + "..."
}
