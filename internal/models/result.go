package models

import "time"

// Result is the generated text returned for one operation.
type Result struct {
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Operation is one ledger entry. Only metadata is recorded, never the prompt or
// the generated text.
type Operation struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	PromptChars int       `json:"prompt_chars"`
	ResultChars int       `json:"result_chars"`
	DurationMs  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	OperationOK     = "ok"
	OperationFailed = "failed"
)
