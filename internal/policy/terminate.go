// Package policy decides when an engagement has run its course and the
// session should be finalized and reported.
package policy

import (
	"log/slog"
	"strings"

	"scamtrap/internal/domain"
	"scamtrap/internal/playbook"
)

const (
	// Hard cap on engagement length.
	defaultMaxMessages = 15
	// How many trailing messages are checked for detection-risk words.
	recentWindow = 3
)

// Policy evaluates the three disengagement triggers: the message-count cap,
// sufficient actionable intelligence (phone plus payment identifier), and
// the counterparty appearing to have seen through the persona.
type Policy struct {
	maxMessages int
	riskWords   []string
	logger      *slog.Logger
}

type Config struct {
	MaxMessages int
	Playbook    *playbook.Playbook
	Logger      *slog.Logger
}

func New(cfg Config) *Policy {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = defaultMaxMessages
	}
	if cfg.Playbook == nil {
		cfg.Playbook = playbook.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Policy{
		maxMessages: cfg.MaxMessages,
		riskWords:   cfg.Playbook.DetectionRiskWords,
		logger:      cfg.Logger,
	}
}

// ShouldTerminate is evaluated fresh on every inbound turn after extraction.
// A panic anywhere inside is recovered as "do not terminate": continuing the
// engagement is safer than a premature or incorrect report.
func (p *Policy) ShouldTerminate(history []domain.Message, intel domain.IntelligenceRecord) (terminate bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("termination check panicked, continuing engagement", "panic", r)
			terminate = false
		}
	}()

	if len(history) >= p.maxMessages {
		return true
	}

	if intel.HasPhone() && intel.HasPaymentIdentifier() {
		return true
	}

	recent := history
	if len(history) > recentWindow {
		recent = history[len(history)-recentWindow:]
	}
	for _, msg := range recent {
		text := strings.ToLower(msg.Text)
		for _, word := range p.riskWords {
			if strings.Contains(text, word) {
				return true
			}
		}
	}

	return false
}
