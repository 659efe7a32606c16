package domain

// Sender identifies which side of an engagement produced a message.
type Sender string

const (
	// SenderScammer is the counterparty, the suspected scam sender.
	SenderScammer Sender = "scammer"
	// SenderAgent is the honeypot persona.
	SenderAgent Sender = "agent"
)

// Message is a single turn in an engagement. Timestamps are ISO-8601 strings
// as supplied by the caller; messages are immutable once recorded.
type Message struct {
	Sender    Sender `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}
