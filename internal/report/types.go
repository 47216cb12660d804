package report

import (
	"time"

	"github.com/google/uuid"
)

// Report status values. "finished" is the canonical success literal on both
// read and write paths.
const (
	StatusPending  = "pending"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// ChatMessage is one transcript entry, ordered by timestamp within a session.
// Immutable once stored; the pipeline only reads these.
type ChatMessage struct {
	ID             int64      `json:"chat_id"`
	SessionID      string     `json:"session_id"`
	Sender         string     `json:"sender"` // "user" or "ai"
	Message        string     `json:"message"`
	Timestamp      time.Time  `json:"timestamp"`
	SentimentLabel *string    `json:"sentiment_label,omitempty"`
	SentimentScore *float64   `json:"sentiment_score,omitempty"`
}

// Alternative is a suggested alternative response for a decision point.
type Alternative struct {
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`
	Script  string   `json:"script"`
}

// DecisionPoint is a user message where a choice or commitment was expressed.
// Built per pipeline run; only its JSON/markdown projection is persisted.
type DecisionPoint struct {
	ChatID         int64         `json:"chat_id"`
	Timestamp      time.Time     `json:"ts"`
	Text           string        `json:"text"` // masked
	SentimentLabel *string       `json:"sentiment_label"`
	SentimentScore *float64      `json:"sentiment_score"`
	Alternatives   []Alternative `json:"alternatives"`
	Recommended    *string       `json:"recommended"`
}

// Record is the persisted report row.
type Record struct {
	ReportID      uuid.UUID
	SessionID     string
	Requestor     *string
	Status        string
	ReportMD      *string
	ReportJSON    *string
	FailureReason *string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Summary heads the structured report document.
type Summary struct {
	SessionID string `json:"session_id"`
	Aha       string `json:"aha"`
	Snippet   string `json:"snippet"`
}

// Meta records how and when a document was generated.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Method      string    `json:"method"` // "gemini" or "fallback"
}

// Document is the structured report produced by the assembler, stored
// serialized in report_json and returned parsed on finished-report reads.
type Document struct {
	Summary    Summary         `json:"summary"`
	Points     []DecisionPoint `json:"points"`
	NextAction *string         `json:"next_action"`
	Meta       Meta            `json:"meta"`
}
