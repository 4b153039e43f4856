package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"course-assistant-platform/internal/ai"
	"course-assistant-platform/internal/config"
	"course-assistant-platform/internal/logger"
	"course-assistant-platform/models"
)

// intentRule is one typed matcher of the classification cascade. Rules are
// evaluated in order; first match wins. New intents are added to the list,
// not as new branching logic.
type intentRule struct {
	intent  models.Intent
	pattern *regexp.Regexp
	// strip removes the command/question phrasing preceding the topic.
	strip *regexp.Regexp
}

// IntentClassifier maps a free-text message (+ session history) to an intent
// and an extracted topic. A secondary AI classifier is consulted only below
// the low-confidence threshold and only when the caller opts in; its failure
// never fails the request.
type IntentClassifier struct {
	rules     []intentRule
	generator ai.Generator
	cfg       *config.Config
	shortLen  int
}

func NewIntentClassifier(cfg *config.Config, generator ai.Generator) *IntentClassifier {
	return &IntentClassifier{
		cfg:       cfg,
		generator: generator,
		shortLen:  cfg.IntentShortMessageLen,
		rules: []intentRule{
			{
				intent:  models.IntentGreeting,
				pattern: regexp.MustCompile(`(?i)^\s*(hi|hello|hey|yo|greetings|good\s+(morning|afternoon|evening))[\s!.,]*$`),
			},
			{
				intent:  models.IntentValidate,
				pattern: regexp.MustCompile(`(?i)^\s*(validate|verify|review|check)\b`),
				strip:   regexp.MustCompile(`(?i)^\s*(validate|verify|review|check)\s+(this\s+|my\s+|the\s+)?`),
			},
			{
				intent:  models.IntentGenerate,
				pattern: regexp.MustCompile(`(?i)^\s*(generate|create|write|make|build|produce)\b`),
				strip:   regexp.MustCompile(`(?i)^\s*(generate|create|write|make|build|produce)\s+(me\s+|a\s+|an\s+|some\s+|the\s+)?`),
			},
			{
				intent:  models.IntentSearch,
				pattern: regexp.MustCompile(`(?i)^\s*(search|find|look\s*up|locate|show\s+me)\b`),
				strip:   regexp.MustCompile(`(?i)^\s*(search|find|look\s*up|locate|show\s+me)\s+(for\s+|about\s+|me\s+)?`),
			},
			{
				intent:  models.IntentExplain,
				pattern: regexp.MustCompile(`(?i)^\s*(explain|describe|define|clarify|what\s+(is|are)|how\s+(does|do|to)|why\s+(is|are|does|do)|tell\s+me\s+about)\b`),
				strip:   regexp.MustCompile(`(?i)^\s*(explain|describe|define|clarify|what\s+(is|are)|how\s+(does|do|to)|why\s+(is|are|does|do)|tell\s+me\s+about)\s*(a\s+|an\s+|the\s+)?`),
			},
		},
	}
}

// ClassifyOptions control the optional secondary classifier.
type ClassifyOptions struct {
	UseAI bool
}

// Classify runs the rule cascade, then the fallback strategy, then the
// optional AI secondary classifier. It never returns an error: classification
// must never hard-fail the request.
func (ic *IntentClassifier) Classify(ctx context.Context, message string, session *models.Session, opts ClassifyOptions) models.IntentResult {
	result := ic.classifyRules(message, session)

	if opts.UseAI && ic.generator != nil && result.Confidence < ic.cfg.IntentLowConfidence {
		if aiResult, ok := ic.classifyAI(ctx, message, session); ok && aiResult.Confidence > result.Confidence {
			return aiResult
		}
	}
	return result
}

func (ic *IntentClassifier) classifyRules(message string, session *models.Session) models.IntentResult {
	trimmed := strings.TrimSpace(message)

	for _, rule := range ic.rules {
		if rule.pattern.MatchString(trimmed) {
			// A bare command ("validate") carries no topic.
			topic := ""
			if rule.strip != nil && rule.strip.MatchString(trimmed) {
				topic = cleanTopic(rule.strip.ReplaceAllString(trimmed, ""))
			}
			return models.IntentResult{
				Intent:     rule.intent,
				Confidence: ic.cfg.IntentRuleConfidence,
				Topic:      topic,
				Method:     "rules",
			}
		}
	}

	// Fallback strategy: short continuation of an ongoing conversation,
	// then bare questions, then unknown.
	if session != nil && len(session.History) > 0 && len(trimmed) <= ic.shortLen {
		return models.IntentResult{
			Intent:     models.IntentFollowup,
			Confidence: ic.cfg.IntentFollowupConfidence,
			Topic:      session.LastTopic,
			Method:     "rules",
		}
	}
	if strings.Contains(trimmed, "?") {
		return models.IntentResult{
			Intent:     models.IntentExplain,
			Confidence: ic.cfg.IntentQuestionConfidence,
			Topic:      cleanTopic(trimmed),
			Method:     "rules",
		}
	}
	return models.IntentResult{
		Intent:     models.IntentUnknown,
		Confidence: ic.cfg.IntentUnknownConfidence,
		Topic:      cleanTopic(trimmed),
		Method:     "rules",
	}
}

// aiClassification is the strict JSON shape the secondary classifier must
// produce.
type aiClassification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic"`
}

func (ic *IntentClassifier) classifyAI(ctx context.Context, message string, session *models.Session) (models.IntentResult, bool) {
	recent := ""
	if session != nil {
		for i := len(session.History) - 1; i >= 0 && len(session.History)-i <= 4; i-- {
			entry := session.History[i]
			recent = fmt.Sprintf("%s: %s\n", entry.Role, entry.Content) + recent
		}
	}

	prompt := fmt.Sprintf(`Classify the student message into exactly one intent:
search, generate, explain, validate, followup, greeting, unknown.

Recent conversation:
%s
Message: %q

Respond with JSON only: {"intent": "...", "confidence": 0.0-1.0, "topic": "..."}`,
		recent, message)

	result, err := ic.generator.Generate(ctx, prompt, ai.GenerateOptions{
		Temperature: 0.1,
		MaxTokens:   256,
		JSONMode:    true,
	})
	if err != nil || !result.Success {
		logger.Debug("secondary intent classifier unavailable", "error", err)
		return models.IntentResult{}, false
	}

	var parsed aiClassification
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		logger.Debug("secondary intent classifier returned malformed JSON", "error", err)
		return models.IntentResult{}, false
	}

	intent := models.Intent(parsed.Intent)
	switch intent {
	case models.IntentSearch, models.IntentGenerate, models.IntentExplain,
		models.IntentValidate, models.IntentFollowup, models.IntentGreeting,
		models.IntentUnknown:
	default:
		return models.IntentResult{}, false
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return models.IntentResult{
		Intent:     intent,
		Confidence: confidence,
		Topic:      cleanTopic(parsed.Topic),
		Method:     "ai",
	}, true
}

// cleanTopic strips trailing question marks and punctuation from an
// extracted topic.
func cleanTopic(topic string) string {
	topic = strings.TrimSpace(topic)
	topic = strings.TrimRight(topic, "?!. ")
	return strings.TrimSpace(topic)
}
