package models

import "time"

// HistoryEntry is one turn of a chat session.
type HistoryEntry struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the rolling conversational state for one caller identity.
// History is trimmed FIFO to the configured bound; the whole session is
// reset after the idle timeout.
type Session struct {
	History    []HistoryEntry `json:"history"`
	LastTopic  string         `json:"last_topic"`
	LastIntent Intent         `json:"last_intent"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// LastAssistantReply returns the content of the most recent assistant turn,
// or "" when the session has none.
func (s *Session) LastAssistantReply() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == "assistant" {
			return s.History[i].Content
		}
	}
	return ""
}
