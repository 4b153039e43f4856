package models

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentSearch   Intent = "search"
	IntentGenerate Intent = "generate"
	IntentExplain  Intent = "explain"
	IntentValidate Intent = "validate"
	IntentFollowup Intent = "followup"
	IntentGreeting Intent = "greeting"
	IntentUnknown  Intent = "unknown"
)

// IntentResult is the outcome of classifying one message. Derived per
// request; only LastIntent/LastTopic survive into the session.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Topic      string  `json:"topic"`
	Method     string  `json:"method"` // "rules" or "ai"
}
