package models

import "time"

// LayerResult is the score and explanation of one validation layer.
type LayerResult struct {
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation"`
}

// ValidationResult combines per-layer scores into one pass/fail decision.
type ValidationResult struct {
	Valid    bool                   `json:"valid"`
	Score    float64                `json:"score"`
	Layers   map[string]LayerResult `json:"layers"`
	Feedback string                 `json:"feedback"`
}

// ValidationLog is the optional fire-and-forget record written to Mongo for
// the quality dashboard owned by the web layer.
type ValidationLog struct {
	ContentType string    `bson:"content_type"`
	Valid       bool      `bson:"valid"`
	Score       float64   `bson:"score"`
	Feedback    string    `bson:"feedback"`
	CreatedAt   time.Time `bson:"created_at"`
}

// ValidationOptions tunes a single validation call.
type ValidationOptions struct {
	// SelfEval enables the external rubric-based evaluation layer.
	SelfEval bool `json:"self_eval"`
	// Language hints the code-safety layer for lab content.
	Language string `json:"language,omitempty"`
}
