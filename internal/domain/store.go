package domain

import "context"

// ConversationStore persists engagement messages and session summaries.
// Persistence is best effort: the orchestrator logs and swallows store
// errors so a failed write never stalls a live engagement.
type ConversationStore interface {
	SaveMessage(ctx context.Context, sessionID string, msg Message) error
	Conversation(ctx context.Context, sessionID string) ([]Message, error)
	// UpdateSession upserts the session summary keyed by session ID.
	UpdateSession(ctx context.Context, rec SessionRecord) error
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	Close() error
}

// ReportResult is the outcome of a reporting handoff.
type ReportResult struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

// Reporter hands a finalized session to the external reporting endpoint.
// A failed report is logged, not retried, and never fails the session.
type Reporter interface {
	Report(ctx context.Context, outcome SessionOutcome) ReportResult
}
