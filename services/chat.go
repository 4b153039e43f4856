package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
	"course-assistant-platform/utils"
)

const noMaterialReply = "I couldn't find supporting course material for that. " +
	"I can still try a general answer, but it won't be grounded in your course content."

const degradedReply = "I'm having trouble reaching the generation service right now. " +
	"Please try again in a moment, or rephrase your question."

// ChatService is the session-scoped orchestrator: it classifies each message
// and routes it to a generation/retrieval strategy, maintaining rolling
// history per caller identity.
type ChatService struct {
	cfg        *config.Config
	sessions   SessionStore
	classifier *IntentClassifier
	retrieval  *RetrievalService
	generator  ai.Generator
	validator  *ValidationEngine
}

func NewChatService(cfg *config.Config, sessions SessionStore, classifier *IntentClassifier, retrieval *RetrievalService, generator ai.Generator, validator *ValidationEngine) *ChatService {
	return &ChatService{
		cfg:        cfg,
		sessions:   sessions,
		classifier: classifier,
		retrieval:  retrieval,
		generator:  generator,
		validator:  validator,
	}
}

// Chat handles one message for one caller. Every branch degrades gracefully:
// a failed generation call becomes a templated reply with a retry action,
// never a propagated error, and no branch fabricates groundedness.
func (cs *ChatService) Chat(ctx context.Context, userID, message string) (*models.ChatResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, utils.NewInvalidInput("caller identity is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, utils.NewInvalidInput("message is required")
	}

	session := cs.sessions.Snapshot(userID)
	intent := cs.classifier.Classify(ctx, message, &session, ClassifyOptions{UseAI: true})
	logger.Debug("intent classified", "user", userID, "intent", intent.Intent,
		"confidence", intent.Confidence, "method", intent.Method)

	var response *models.ChatResponse
	switch intent.Intent {
	case models.IntentGreeting:
		response = cs.handleGreeting()
	case models.IntentSearch:
		response = cs.handleSearch(ctx, intent)
	case models.IntentGenerate:
		response = cs.handleGenerate(ctx, intent, message)
	case models.IntentExplain:
		response = cs.handleExplain(ctx, intent, message)
	case models.IntentValidate:
		response = cs.handleValidate(ctx, intent, message, &session)
	case models.IntentFollowup:
		response = cs.handleFollowup(ctx, intent, message, &session)
	default:
		response = cs.handleUnknown()
	}

	response.Intent = intent.Intent
	response.Timestamp = time.Now()
	if response.Sources == nil {
		response.Sources = []models.Source{}
	}

	// History is updated only after routing completes, both turns at once.
	cs.sessions.Update(userID, func(s *models.Session) {
		now := time.Now()
		s.History = append(s.History,
			models.HistoryEntry{Role: "user", Content: message, Timestamp: now},
			models.HistoryEntry{Role: "assistant", Content: response.Reply, Timestamp: now},
		)
		if intent.Topic != "" {
			s.LastTopic = intent.Topic
		}
		s.LastIntent = intent.Intent
	})

	return response, nil
}

// ClearSession drops the caller's conversational state.
func (cs *ChatService) ClearSession(userID string) {
	cs.sessions.Clear(userID)
}

func (cs *ChatService) handleGreeting() *models.ChatResponse {
	return &models.ChatResponse{
		Reply: "Hi! I can search your course material, explain concepts, " +
			"generate notes or example code, and validate content. What would you like to do?",
		Grounded: false,
		Actions:  []string{"search", "explain", "generate"},
	}
}

func (cs *ChatService) handleSearch(ctx context.Context, intent models.IntentResult) *models.ChatResponse {
	results, err := cs.retrieval.Search(ctx, intent.Topic, models.SearchFilter{}, cs.cfg.MaxContextChunks)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return &models.ChatResponse{
				Reply:    noMaterialReply,
				Grounded: false,
				Actions:  []string{"rephrase"},
			}
		}
		if utils.IsKind(err, utils.KindInvalidInput) {
			return cs.needTopic()
		}
		return cs.degraded()
	}

	builder := new(strings.Builder)
	fmt.Fprintf(builder, "I found %d relevant passage(s) about %q:\n\n", len(results), intent.Topic)
	for i, result := range results {
		fmt.Fprintf(builder, "%d. %s\n\n", i+1, snippet(result.Record.ChunkText, 240))
	}

	return &models.ChatResponse{
		Reply:    strings.TrimSpace(builder.String()),
		Grounded: true,
		Sources:  toSources(results),
	}
}

func (cs *ChatService) handleGenerate(ctx context.Context, intent models.IntentResult, message string) *models.ChatResponse {
	retrieved, err := cs.retrieval.GetContext(ctx, intent.Topic, ContextOptions{})
	if err != nil {
		if utils.IsKind(err, utils.KindInvalidInput) {
			return cs.needTopic()
		}
		return cs.degraded()
	}
	if cs.generator == nil {
		return cs.degraded()
	}

	language := detectLanguage(message)
	wantsCode := language != "" || strings.Contains(strings.ToLower(message), "code") ||
		strings.Contains(strings.ToLower(message), "example")

	prompt := buildGeneratePrompt(intent.Topic, retrieved, language, wantsCode)
	result, err := cs.generator.Generate(ctx, prompt, ai.GenerateOptions{Temperature: 0.7, MaxTokens: 2048})
	if err != nil || !result.Success {
		return cs.degraded()
	}

	response := &models.ChatResponse{
		Reply:    result.Text,
		Grounded: retrieved.Found,
		Sources:  toSources(retrieved.Chunks),
	}
	if !retrieved.Found {
		response.Reply = noMaterialReply + "\n\n" + response.Reply
	}

	// Generated code gets an automatic safety pass before it reaches the
	// student.
	if wantsCode && cs.validator != nil && strings.Contains(result.Text, "```") {
		validation, verr := cs.validator.Validate(ctx, "lab", result.Text,
			chunkTexts(retrieved.Chunks), models.ValidationOptions{Language: language})
		if verr == nil && !validation.Valid {
			response.Reply += "\n\n⚠ Automatic validation flagged this output: " + validation.Feedback
			response.Actions = append(response.Actions, "regenerate")
		}
	}
	return response
}

func (cs *ChatService) handleExplain(ctx context.Context, intent models.IntentResult, message string) *models.ChatResponse {
	retrieved, err := cs.retrieval.GetContext(ctx, intent.Topic, ContextOptions{})
	if err != nil {
		if utils.IsKind(err, utils.KindInvalidInput) {
			return cs.needTopic()
		}
		return cs.degraded()
	}
	if cs.generator == nil {
		return cs.degraded()
	}
	// Widen the search with the full message when the narrow topic query
	// finds nothing.
	if !retrieved.Found && intent.Topic != message {
		if wider, werr := cs.retrieval.GetContext(ctx, message, ContextOptions{}); werr == nil {
			retrieved = wider
		}
	}

	var prompt string
	if retrieved.Found {
		prompt = fmt.Sprintf("Using only the following course material, explain %q to a student:\n\n%s\n\nExplanation:",
			intent.Topic, retrieved.ContextText)
	} else {
		prompt = fmt.Sprintf("Explain %q to a student. State clearly that this answer is "+
			"not based on their course material.", intent.Topic)
	}

	result, err := cs.generator.Generate(ctx, prompt, ai.GenerateOptions{Temperature: 0.5, MaxTokens: 2048})
	if err != nil || !result.Success {
		return cs.degraded()
	}

	response := &models.ChatResponse{
		Reply:    result.Text,
		Grounded: retrieved.Found,
		Sources:  toSources(retrieved.Chunks),
	}
	if !retrieved.Found {
		response.Reply = noMaterialReply + "\n\n" + response.Reply
	}
	return response
}

func (cs *ChatService) handleValidate(ctx context.Context, intent models.IntentResult, message string, session *models.Session) *models.ChatResponse {
	// The content to validate comes from the current message, or failing
	// that from the most recent assistant turn.
	content := intent.Topic
	if !strings.Contains(content, "\n") && len(content) < 200 {
		if last := session.LastAssistantReply(); last != "" {
			content = last
		}
	}
	if strings.TrimSpace(content) == "" {
		return &models.ChatResponse{
			Reply:    "There's nothing to validate yet. Paste the content you'd like me to check.",
			Grounded: false,
			Actions:  []string{"paste_content"},
		}
	}

	contentType := "theory"
	language := detectLanguage(content)
	if strings.Contains(content, "```") || language != "" {
		contentType = "lab"
	}

	var contextChunks []string
	if session.LastTopic != "" {
		if retrieved, err := cs.retrieval.GetContext(ctx, session.LastTopic, ContextOptions{}); err == nil && retrieved.Found {
			contextChunks = chunkTexts(retrieved.Chunks)
		}
	}

	validation, err := cs.validator.Validate(ctx, contentType, content, contextChunks,
		models.ValidationOptions{SelfEval: true, Language: language})
	if err != nil {
		return cs.degraded()
	}

	verdict := "passed"
	if !validation.Valid {
		verdict = "failed"
	}
	return &models.ChatResponse{
		Reply: fmt.Sprintf("Validation %s with a score of %.2f.\n%s",
			verdict, validation.Score, validation.Feedback),
		Grounded: len(contextChunks) > 0,
	}
}

func (cs *ChatService) handleFollowup(ctx context.Context, intent models.IntentResult, message string, session *models.Session) *models.ChatResponse {
	if session.LastTopic == "" {
		return &models.ChatResponse{
			Reply:    "Could you give me a bit more detail? I don't have an earlier topic to continue from.",
			Grounded: false,
			Actions:  []string{"rephrase"},
		}
	}
	if cs.generator == nil {
		return cs.degraded()
	}

	// Followups continue on the session topic without new retrieval.
	recent := new(strings.Builder)
	for i := len(session.History) - 1; i >= 0 && len(session.History)-i <= 6; i-- {
		entry := session.History[i]
		fmt.Fprintf(recent, "%s: %s\n", entry.Role, entry.Content)
	}

	prompt := fmt.Sprintf("You are tutoring a student about %q. Recent conversation (newest last):\n%s\nStudent followup: %s\n\nAnswer the followup in the context of the conversation:",
		session.LastTopic, recent.String(), message)

	result, err := cs.generator.Generate(ctx, prompt, ai.GenerateOptions{Temperature: 0.5, MaxTokens: 1024})
	if err != nil || !result.Success {
		return cs.degraded()
	}
	return &models.ChatResponse{Reply: result.Text, Grounded: false}
}

func (cs *ChatService) handleUnknown() *models.ChatResponse {
	return &models.ChatResponse{
		Reply: "I'm not sure what you're asking for. Try \"explain <topic>\", " +
			"\"search <topic>\", \"generate notes on <topic>\", or paste content with \"validate\".",
		Grounded: false,
		Actions:  []string{"rephrase"},
	}
}

// needTopic asks for a topic when the classified message carried none.
// A missing topic is caller input, not a service outage.
func (cs *ChatService) needTopic() *models.ChatResponse {
	return &models.ChatResponse{
		Reply: "What topic should I work with? Try \"search <topic>\", " +
			"\"explain <topic>\", or \"generate notes on <topic>\".",
		Grounded: false,
		Actions:  []string{"rephrase"},
	}
}

// degraded is the fixed non-crashing reply used whenever the underlying
// generation call fails.
func (cs *ChatService) degraded() *models.ChatResponse {
	return &models.ChatResponse{
		Reply:    degradedReply,
		Grounded: false,
		Actions:  []string{"retry", "rephrase"},
	}
}

func buildGeneratePrompt(topic string, retrieved *RetrievedContext, language string, wantsCode bool) string {
	builder := new(strings.Builder)
	if retrieved.Found {
		fmt.Fprintf(builder, "Using the following course material as the source of truth:\n\n%s\n\n", retrieved.ContextText)
	}
	if wantsCode && language != "" {
		fmt.Fprintf(builder, "Write study notes about %q including a complete, runnable %s example in a fenced code block.", topic, language)
	} else if wantsCode {
		fmt.Fprintf(builder, "Write study notes about %q including a worked example in a fenced code block.", topic)
	} else {
		fmt.Fprintf(builder, "Write structured study notes about %q with headings and a short summary list.", topic)
	}
	return builder.String()
}

// detectLanguage picks a programming language out of the message keywords.
// Matches whole words only, so "go" doesn't fire inside "algorithm".
func detectLanguage(message string) string {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return r != '+' && r != '#' && !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	for _, word := range words {
		seen[word] = true
	}
	for _, language := range []string{"python", "javascript", "typescript", "java", "golang", "go", "cpp", "c++", "rust", "sql"} {
		if seen[language] {
			switch language {
			case "golang":
				return "go"
			case "c++":
				return "cpp"
			default:
				return language
			}
		}
	}
	return ""
}

func toSources(results []models.SearchResult) []models.Source {
	sources := make([]models.Source, len(results))
	for i, result := range results {
		sources[i] = models.Source{
			ContentID:  result.Record.ContentID,
			ChunkIndex: result.Record.ChunkIndex,
			Topic:      result.Record.Metadata.Topic,
			Score:      result.Score,
		}
	}
	return sources
}

func chunkTexts(results []models.SearchResult) []string {
	texts := make([]string, len(results))
	for i, result := range results {
		texts[i] = result.Record.ChunkText
	}
	return texts
}

func snippet(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	// Back the cut off to a rune start so a multi-byte character is never
	// split mid-sequence.
	for maxLen > 0 && !utf8.RuneStart(text[maxLen]) {
		maxLen--
	}
	cut := text[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "…"
}
