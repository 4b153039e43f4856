package models

import "time"

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	Message string `json:"message" binding:"required,min=1,max=2000"`
}

// Source identifies a retrieved passage backing a reply.
type Source struct {
	ContentID  string  `json:"content_id"`
	ChunkIndex int     `json:"chunk_index"`
	Topic      string  `json:"topic,omitempty"`
	Score      float64 `json:"score"`
}

// ChatResponse is the routed reply. Grounded is false whenever no supporting
// material was found, so the UI can render the answer distinctly.
type ChatResponse struct {
	Reply     string    `json:"reply"`
	Intent    Intent    `json:"intent"`
	Grounded  bool      `json:"grounded"`
	Sources   []Source  `json:"sources"`
	Actions   []string  `json:"actions,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FileContextEntry is one ephemeral uploaded-file context, keyed by a
// generated file handle and expired after a TTL.
type FileContextEntry struct {
	Context          string    `json:"context"`
	FormattedContext string    `json:"formatted_context"`
	OwnerID          string    `json:"owner_id"`
	Timestamp        time.Time `json:"timestamp"`
}
