// Package classifier labels inbound messages as scam attempts or not by
// asking an external language model for a fixed-template verdict.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"scamtrap/internal/domain"
	"scamtrap/internal/metrics"
	"scamtrap/internal/playbook"
)

const (
	classifyMaxTokens   = 200
	classifyTemperature = 0.3
	systemInstruction   = "You are a scam detection expert."
)

// Classifier asks the model for a four-field verdict and parses it
// line by line. Any failure, transport or timeout or malformed response,
// fails open: the message is treated as a scam so a live attempt is
// never silently dropped.
type Classifier struct {
	provider   domain.Provider
	model      string
	indicators []string
	logger     *slog.Logger
}

type Config struct {
	Provider domain.Provider
	Model    string
	Playbook *playbook.Playbook
	Logger   *slog.Logger
}

func New(cfg Config) *Classifier {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Playbook == nil {
		cfg.Playbook = playbook.Default()
	}
	return &Classifier{
		provider:   cfg.Provider,
		model:      cfg.Model,
		indicators: cfg.Playbook.ScamIndicators,
		logger:     cfg.Logger,
	}
}

// Classify labels a single message. It never returns an error; see the
// fail-open policy on the Classifier type.
func (c *Classifier) Classify(ctx context.Context, messageText string) domain.ClassificationResult {
	prompt := c.buildPrompt(messageText)

	resp, err := c.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
		Model:       c.model,
		MaxTokens:   classifyMaxTokens,
		Temperature: classifyTemperature,
	})
	if err != nil {
		metrics.ClassifierFallback.Inc()
		c.logger.Warn("classification call failed, failing open", "err", err)
		return domain.ClassificationResult{
			IsScam:     true,
			Confidence: 0.5,
			Category:   domain.CategoryUnknown,
			Rationale:  err.Error(),
		}
	}

	return parseVerdict(resp.Content)
}

func (c *Classifier) buildPrompt(messageText string) string {
	return fmt.Sprintf(`Analyze if this is a scam: %q

Check for: %s

Respond EXACTLY:
IS_SCAM: yes/no
CONFIDENCE: 0.0-1.0
SCAM_TYPE: phishing/financial/prize/technical_support/other
REASONING: one sentence`, messageText, strings.Join(c.indicators, ", "))
}

// parseVerdict scans the response for the four field markers. A field whose
// parse fails keeps its safe default (confidence 0.5, category unknown).
func parseVerdict(text string) domain.ClassificationResult {
	result := domain.ClassificationResult{
		Confidence: 0.5,
		Category:   domain.CategoryUnknown,
	}

	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		switch {
		case strings.Contains(line, "IS_SCAM:"):
			result.IsScam = strings.Contains(strings.ToLower(line), "yes")
		case strings.Contains(line, "CONFIDENCE:"):
			raw := strings.TrimSpace(fieldValue(line, "CONFIDENCE:"))
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				result.Confidence = clamp01(v)
			}
		case strings.Contains(line, "SCAM_TYPE:"):
			if v := strings.ToLower(strings.TrimSpace(fieldValue(line, "SCAM_TYPE:"))); v != "" {
				result.Category = v
			}
		case strings.Contains(line, "REASONING:"):
			result.Rationale = strings.TrimSpace(fieldValue(line, "REASONING:"))
		}
	}

	return result
}

func fieldValue(line, marker string) string {
	_, after, _ := strings.Cut(line, marker)
	return after
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
