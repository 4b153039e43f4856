package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"course-assistant-platform/models"
	"course-assistant-platform/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(t *testing.T, gen *stubGenerator) (*ChatService, *RetrievalService, *VectorIndex) {
	cfg := testConfig()
	index := NewVectorIndex(cfg.VectorDimensions, 0.1)
	retrieval := NewRetrievalService(localEmbeddings(cfg), index, cfg.MaxContextChunks, cfg.MaxContextLength)
	sessions := NewMemorySessionStore(cfg.SessionMaxHistory, cfg.SessionIdleTimeout)
	validator := NewValidationEngine(cfg, localEmbeddings(cfg), nil, nil)

	var chat *ChatService
	if gen == nil {
		classifier := NewIntentClassifier(cfg, nil)
		chat = NewChatService(cfg, sessions, classifier, retrieval, nil, validator)
	} else {
		classifier := NewIntentClassifier(cfg, gen)
		chat = NewChatService(cfg, sessions, classifier, retrieval, gen, validator)
	}
	return chat, retrieval, index
}

func TestChatRejectsEmptyInput(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "ok"})

	_, err := chat.Chat(context.Background(), "", "hello")
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))

	_, err = chat.Chat(context.Background(), "student", "   ")
	assert.True(t, utils.IsKind(err, utils.KindInvalidInput))
}

func TestChatGreeting(t *testing.T) {
	gen := &stubGenerator{success: true, text: "unused"}
	chat, _, _ := newTestChat(t, gen)

	response, err := chat.Chat(context.Background(), "student", "hi")
	require.NoError(t, err)

	assert.Equal(t, models.IntentGreeting, response.Intent)
	assert.False(t, response.Grounded)
	assert.NotEmpty(t, response.Reply)
	assert.Zero(t, gen.calls, "greetings never call the model")
}

func TestChatRecordsHistory(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "an answer"})

	_, err := chat.Chat(context.Background(), "student", "hi")
	require.NoError(t, err)

	session := chat.sessions.Snapshot("student")
	require.Len(t, session.History, 2)
	assert.Equal(t, "user", session.History[0].Role)
	assert.Equal(t, "hi", session.History[0].Content)
	assert.Equal(t, "assistant", session.History[1].Role)
	assert.Equal(t, models.IntentGreeting, session.LastIntent)
}

func TestChatExplainWithoutMaterialIsUngrounded(t *testing.T) {
	gen := &stubGenerator{success: true, text: "a general explanation"}
	chat, _, _ := newTestChat(t, gen)

	response, err := chat.Chat(context.Background(), "student", "explain red-black trees")
	require.NoError(t, err)

	assert.Equal(t, models.IntentExplain, response.Intent)
	assert.False(t, response.Grounded, "an empty index can never ground an answer")
	assert.Contains(t, response.Reply, "couldn't find supporting course material")
	assert.Empty(t, response.Sources)
}

func TestChatExplainGrounded(t *testing.T) {
	gen := &stubGenerator{success: true, text: "a grounded explanation"}
	chat, rs, index := newTestChat(t, gen)
	indexTexts(t, rs, index, "trees", []string{
		"red-black trees balance themselves by recoloring nodes and rotating subtrees",
		"tree rotations preserve the in-order sequence of keys",
	})

	response, err := chat.Chat(context.Background(), "student", "explain red-black trees rotating recoloring")
	require.NoError(t, err)

	assert.True(t, response.Grounded)
	assert.NotEmpty(t, response.Sources)
	assert.Contains(t, gen.lastPrompt, "red-black trees balance themselves",
		"the retrieved material is handed to the model")
	assert.NotContains(t, response.Reply, "couldn't find supporting course material")
}

func TestChatSearchReturnsSources(t *testing.T) {
	chat, rs, index := newTestChat(t, &stubGenerator{success: true, text: "unused"})
	indexTexts(t, rs, index, "sorting", []string{
		"quicksort picks a pivot and partitions around it",
	})

	response, err := chat.Chat(context.Background(), "student", "search for quicksort pivot partitions")
	require.NoError(t, err)

	assert.Equal(t, models.IntentSearch, response.Intent)
	assert.True(t, response.Grounded)
	require.NotEmpty(t, response.Sources)
	assert.Equal(t, "sorting", response.Sources[0].ContentID)
}

func TestChatSearchNoMaterial(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	response, err := chat.Chat(context.Background(), "student", "search for quantum chromodynamics")
	require.NoError(t, err)

	assert.False(t, response.Grounded)
	assert.Contains(t, response.Actions, "rephrase")
}

func TestChatDegradesWhenGeneratorFails(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream down")}
	chat, _, _ := newTestChat(t, gen)

	response, err := chat.Chat(context.Background(), "student", "explain b-trees")
	require.NoError(t, err, "generation failure must not propagate as an error")

	assert.False(t, response.Grounded)
	assert.Contains(t, response.Actions, "retry")
	assert.NotEmpty(t, response.Reply)
}

func TestChatDegradesOnBreakerReply(t *testing.T) {
	gen := &stubGenerator{success: false, text: "I'm experiencing high demand"}
	chat, _, _ := newTestChat(t, gen)

	response, err := chat.Chat(context.Background(), "student", "explain b-trees")
	require.NoError(t, err)
	assert.Contains(t, response.Actions, "retry")
}

func TestChatFollowupWithoutTopicAsksForDetail(t *testing.T) {
	gen := &stubGenerator{success: true, text: "unused"}
	chat, _, _ := newTestChat(t, gen)

	// Seed history so the short message classifies as a followup, but leave
	// no topic to continue from.
	chat.sessions.Update("student", func(s *models.Session) {
		s.History = append(s.History, models.HistoryEntry{Role: "user", Content: "hello"})
	})

	response, err := chat.Chat(context.Background(), "student", "why though")
	require.NoError(t, err)
	assert.Equal(t, models.IntentFollowup, response.Intent)
	assert.Contains(t, response.Actions, "rephrase")
}

func TestChatFollowupContinuesTopic(t *testing.T) {
	gen := &stubGenerator{success: true, text: "continuing about heaps"}
	chat, _, _ := newTestChat(t, gen)

	chat.sessions.Update("student", func(s *models.Session) {
		s.History = append(s.History, models.HistoryEntry{Role: "assistant", Content: "heaps are trees"})
		s.LastTopic = "heaps"
	})

	response, err := chat.Chat(context.Background(), "student", "tell me more")
	require.NoError(t, err)

	assert.Equal(t, models.IntentFollowup, response.Intent)
	assert.Contains(t, gen.lastPrompt, "heaps")
	assert.Equal(t, "continuing about heaps", response.Reply)
}

func TestChatValidateWithNothingToValidate(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	response, err := chat.Chat(context.Background(), "student", "validate")
	require.NoError(t, err)

	assert.Equal(t, models.IntentValidate, response.Intent)
	assert.Contains(t, response.Reply, "nothing to validate")
}

func TestChatValidateLastAssistantTurn(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	chat.sessions.Update("student", func(s *models.Session) {
		s.History = append(s.History, models.HistoryEntry{
			Role:    "assistant",
			Content: "# Heaps\n\nA heap is a tree satisfying the heap property, which is defined as every parent ordering before its children.\n\n- min-heap\n- max-heap",
		})
	})

	response, err := chat.Chat(context.Background(), "student", "validate")
	require.NoError(t, err)
	assert.Contains(t, response.Reply, "Validation")
}

func TestChatUnknownSuggestsCommands(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	response, err := chat.Chat(context.Background(), "student",
		"lorem ipsum dolor sit amet consectetur adipiscing elit sed do eiusmod tempor incididunt ut labore")
	require.NoError(t, err)

	assert.Equal(t, models.IntentUnknown, response.Intent)
	assert.Contains(t, response.Actions, "rephrase")
}

func TestClearSession(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	_, err := chat.Chat(context.Background(), "student", "hi")
	require.NoError(t, err)

	chat.ClearSession("student")
	assert.Empty(t, chat.sessions.Snapshot("student").History)
}

func TestChatWithoutGeneratorDegrades(t *testing.T) {
	chat, _, _ := newTestChat(t, nil)

	// Generation-backed intents fall back to the fixed degraded reply
	// instead of dereferencing the absent generator.
	for _, message := range []string{
		"explain binary search",
		"generate notes on heaps",
	} {
		response, err := chat.Chat(context.Background(), "student", message)
		require.NoError(t, err, "message %q", message)
		assert.Equal(t, degradedReply, response.Reply, "message %q", message)
		assert.Contains(t, response.Actions, "retry")
	}

	// The session now has history and a topic, so a short message routes
	// to followup, which also needs the generator.
	response, err := chat.Chat(context.Background(), "student", "and the complexity?")
	require.NoError(t, err)
	assert.Equal(t, models.IntentFollowup, response.Intent)
	assert.Equal(t, degradedReply, response.Reply)

	// Retrieval-only intents keep working.
	response, err = chat.Chat(context.Background(), "student", "search heaps")
	require.NoError(t, err)
	assert.Equal(t, noMaterialReply, response.Reply)
}

func TestChatBareCommandAsksForTopic(t *testing.T) {
	chat, _, _ := newTestChat(t, &stubGenerator{success: true, text: "unused"})

	for _, message := range []string{"search", "generate"} {
		response, err := chat.Chat(context.Background(), "student-"+message, message)
		require.NoError(t, err, "message %q", message)
		assert.NotEqual(t, degradedReply, response.Reply, "message %q", message)
		assert.Contains(t, response.Reply, "topic")
		assert.Contains(t, response.Actions, "rephrase")
	}
}

func TestSnippetKeepsRuneBoundary(t *testing.T) {
	text := strings.Repeat("é", 100)

	cut := snippet(text, 101)

	assert.True(t, utf8.ValidString(cut))
	assert.True(t, strings.HasSuffix(cut, "…"))
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", detectLanguage("write me a Python example"))
	assert.Equal(t, "go", detectLanguage("generate go code for this"))
	assert.Equal(t, "go", detectLanguage("show it in golang"))
	assert.Empty(t, detectLanguage("explain the algorithm"), "substrings of other words never match")
	assert.Empty(t, detectLanguage("nothing code-related here"))
}
