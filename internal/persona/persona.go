// Package persona generates in-character replies that keep a suspected
// scammer engaged while steering them toward revealing contact and
// payment details.
package persona

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scamtrap/internal/domain"
	"scamtrap/internal/metrics"
	"scamtrap/internal/playbook"
)

const (
	replyMaxTokens   = 100
	replyTemperature = 0.8 // persona variability without incoherence
	historyWindow    = 6
)

// Generator produces persona replies. Any failure yields the fixed
// confused fallback so the conversation never stalls.
type Generator struct {
	provider domain.Provider
	model    string
	prompt   string
	fallback string
	logger   *slog.Logger
}

type Config struct {
	Provider domain.Provider
	Model    string
	Playbook *playbook.Playbook
	Logger   *slog.Logger
}

func New(cfg Config) *Generator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Playbook == nil {
		cfg.Playbook = playbook.Default()
	}
	return &Generator{
		provider: cfg.Provider,
		model:    cfg.Model,
		prompt:   cfg.Playbook.PersonaPrompt,
		fallback: cfg.Playbook.FallbackReply,
		logger:   cfg.Logger,
	}
}

// Reply generates an in-persona response to the latest counterparty message,
// conditioned on at most the last six history entries.
func (g *Generator) Reply(ctx context.Context, latestMessage string, history []domain.Message) string {
	resp, err := g.provider.Chat(ctx, domain.ChatRequest{
		Messages: []domain.ChatMessage{
			{Role: "system", Content: g.prompt},
			{Role: "user", Content: g.buildTurn(latestMessage, history)},
		},
		Model:       g.model,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemperature,
	})
	if err != nil {
		metrics.PersonaFallback.Inc()
		g.logger.Warn("reply generation failed, using fallback", "err", err)
		return g.fallback
	}

	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		metrics.PersonaFallback.Inc()
		return g.fallback
	}
	return reply
}

func (g *Generator) buildTurn(latestMessage string, history []domain.Message) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		start := 0
		if len(history) > historyWindow {
			start = len(history) - historyWindow
		}
		for _, msg := range history[start:] {
			speaker := "Me"
			if msg.Sender == domain.SenderScammer {
				speaker = "Them"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Text)
		}
	}
	fmt.Fprintf(&b, "\nThem: %s\n\nRespond as confused elderly person (1-2 sentences max):", latestMessage)
	return b.String()
}
