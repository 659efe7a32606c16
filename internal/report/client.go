// Package report hands finalized session outcomes to the external
// reporting endpoint.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"scamtrap/internal/domain"
)

const defaultTimeout = 5 * time.Second

// Client performs the single outbound reporting call. One attempt, a short
// timeout, no retries: a failed report is logged by the caller and the
// session is still considered finalized.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *slog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger,
	}
}

// payload is the reporting endpoint's expected body.
type payload struct {
	SessionID              string            `json:"sessionId"`
	ScamDetected           bool              `json:"scamDetected"`
	TotalMessagesExchanged int               `json:"totalMessagesExchanged"`
	ExtractedIntelligence  intelligencePart  `json:"extractedIntelligence"`
	AgentNotes             string            `json:"agentNotes"`
}

type intelligencePart struct {
	BankAccounts       []string `json:"bankAccounts"`
	PaymentIDs         []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

func (c *Client) Report(ctx context.Context, outcome domain.SessionOutcome) domain.ReportResult {
	if c.endpoint == "" {
		return domain.ReportResult{Success: false, Detail: "no reporting endpoint configured"}
	}

	body, err := json.Marshal(payload{
		SessionID:              outcome.SessionID,
		ScamDetected:           outcome.ScamConfirmed,
		TotalMessagesExchanged: outcome.TotalMessages,
		ExtractedIntelligence: intelligencePart{
			BankAccounts:       emptyIfNil(outcome.Intelligence.BankAccounts),
			PaymentIDs:         emptyIfNil(outcome.Intelligence.PaymentIDs),
			PhishingLinks:      emptyIfNil(outcome.Intelligence.PhishingLinks),
			PhoneNumbers:       emptyIfNil(outcome.Intelligence.PhoneNumbers),
			SuspiciousKeywords: emptyIfNil(outcome.Intelligence.SuspiciousKeywords),
		},
		AgentNotes: outcome.Notes,
	})
	if err != nil {
		return domain.ReportResult{Success: false, Detail: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ReportResult{Success: false, Detail: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.ReportResult{Success: false, Detail: err.Error()}
	}
	defer resp.Body.Close()

	return domain.ReportResult{
		Success:    resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
