package domain

import "time"

// Scam categories reported by the classifier.
const (
	CategoryPhishing  = "phishing"
	CategoryFinancial = "financial"
	CategoryPrize     = "prize"
	CategoryTechSupp  = "technical_support"
	CategoryOther     = "other"
	CategoryUnknown   = "unknown"
)

// ClassificationResult is the verdict for a single inbound message.
// Confidence is always within [0,1].
type ClassificationResult struct {
	IsScam     bool    `json:"is_scam"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"scam_type"`
	Rationale  string  `json:"reasoning"`
}

// IntelligenceRecord holds the structured artifacts extracted from an
// engagement. Each field is a deduplicated, sorted set; JSON field names
// match the reporting endpoint's payload schema.
type IntelligenceRecord struct {
	PhoneNumbers       []string `json:"phoneNumbers"`
	PaymentIDs         []string `json:"upiIds"`
	BankAccounts       []string `json:"bankAccounts"`
	PhishingLinks      []string `json:"phishingLinks"`
	EmailAddresses     []string `json:"emailAddresses"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// HasPhone reports whether at least one phone number was extracted.
func (r IntelligenceRecord) HasPhone() bool {
	return len(r.PhoneNumbers) > 0
}

// HasPaymentIdentifier reports whether a payment-app ID or a bank-account
// candidate was extracted.
func (r IntelligenceRecord) HasPaymentIdentifier() bool {
	return len(r.PaymentIDs) > 0 || len(r.BankAccounts) > 0
}

// SessionOutcome is produced at most once per session, when the termination
// policy fires, and handed to the reporting collaborator.
type SessionOutcome struct {
	SessionID     string
	ScamConfirmed bool
	TotalMessages int
	Intelligence  IntelligenceRecord
	Notes         string
}

// SessionRecord is the persisted shape of a session in the conversation store.
type SessionRecord struct {
	SessionID     string             `json:"session_id"`
	CreatedAt     time.Time          `json:"created_at"`
	ScamDetected  bool               `json:"scam_detected"`
	TotalMessages int                `json:"total_messages"`
	Intelligence  IntelligenceRecord `json:"intelligence"`
	AgentNotes    string             `json:"agent_notes"`
}
