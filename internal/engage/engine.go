// Package engage drives one honeypot engagement cycle per inbound message:
// classify, reply in persona, re-extract intelligence, and decide whether
// the session is done and should be reported.
package engage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scamtrap/internal/classifier"
	"scamtrap/internal/domain"
	"scamtrap/internal/intel"
	"scamtrap/internal/metrics"
	"scamtrap/internal/persona"
	"scamtrap/internal/policy"
)

// Result is what the caller gets back for every inbound message. A reply is
// always present: classifier and generator failures degrade to defaults
// rather than surfacing, so the engagement never tips off the counterparty.
type Result struct {
	Status       string `json:"status"`
	Reply        string `json:"reply"`
	ScamDetected bool   `json:"-"`
	Terminated   bool   `json:"-"`
}

// Engine sequences the pipeline and owns the only cross-call state:
// which sessions have already been finalized.
type Engine struct {
	store      domain.ConversationStore
	classifier *classifier.Classifier
	persona    *persona.Generator
	extractor  *intel.Extractor
	policy     *policy.Policy
	reporter   domain.Reporter
	logger     *slog.Logger

	neutralReply  string
	reportTimeout time.Duration

	mu        sync.Mutex
	finalized map[string]bool
}

type Config struct {
	Store         domain.ConversationStore
	Classifier    *classifier.Classifier
	Persona       *persona.Generator
	Extractor     *intel.Extractor
	Policy        *policy.Policy
	Reporter      domain.Reporter
	Logger        *slog.Logger
	NeutralReply  string
	ReportTimeout time.Duration
}

func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NeutralReply == "" {
		cfg.NeutralReply = "I'm sorry, I don't understand."
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = 5 * time.Second
	}
	return &Engine{
		store:         cfg.Store,
		classifier:    cfg.Classifier,
		persona:       cfg.Persona,
		extractor:     cfg.Extractor,
		policy:        cfg.Policy,
		reporter:      cfg.Reporter,
		logger:        cfg.Logger,
		neutralReply:  cfg.NeutralReply,
		reportTimeout: cfg.ReportTimeout,
		finalized:     make(map[string]bool),
	}
}

// HandleInbound processes one counterparty message and returns the reply to
// send. The caller supplies the conversation history it knows about; the
// store's copy is preferred when available. Termination is a side effect:
// the reply is returned either way.
func (e *Engine) HandleInbound(ctx context.Context, sessionID string, msg domain.Message, history []domain.Message) Result {
	metrics.MessagesTotal.Inc()

	e.saveMessage(ctx, sessionID, msg)

	verdict := e.classifier.Classify(ctx, msg.Text)
	e.logger.Info("message classified",
		"session", sessionID,
		"is_scam", verdict.IsScam,
		"confidence", verdict.Confidence,
		"category", verdict.Category,
	)

	if !verdict.IsScam {
		// Not worth engaging: skip the intelligence pipeline entirely.
		reply := e.neutralReply
		e.saveMessage(ctx, sessionID, agentMessage(reply))
		return Result{Status: "success", Reply: reply}
	}
	metrics.ScamsFlagged.Inc()

	reply := e.persona.Reply(ctx, msg.Text, history)
	e.saveMessage(ctx, sessionID, agentMessage(reply))

	conversation := e.fullConversation(ctx, sessionID, history, msg, reply)
	intelligence := e.extractor.Extract(conversation)

	terminated := false
	if e.policy.ShouldTerminate(conversation, intelligence) {
		terminated = e.finalize(ctx, sessionID, verdict, len(conversation), intelligence)
	}

	return Result{Status: "success", Reply: reply, ScamDetected: true, Terminated: terminated}
}

// saveMessage records a message best-effort; a storage failure is logged
// and the cycle continues on the in-memory history.
func (e *Engine) saveMessage(ctx context.Context, sessionID string, msg domain.Message) {
	if err := e.store.SaveMessage(ctx, sessionID, msg); err != nil {
		e.logger.Warn("cannot persist message", "session", sessionID, "err", err)
	}
}

// fullConversation prefers the store's copy of the conversation, falling
// back to the caller-supplied history plus this cycle's two messages when
// persistence is unavailable.
func (e *Engine) fullConversation(ctx context.Context, sessionID string, history []domain.Message, inbound domain.Message, reply string) []domain.Message {
	conv, err := e.store.Conversation(ctx, sessionID)
	if err == nil && len(conv) > 0 {
		return conv
	}
	if err != nil {
		e.logger.Warn("cannot load conversation, using in-memory history", "session", sessionID, "err", err)
	}
	fallback := make([]domain.Message, 0, len(history)+2)
	fallback = append(fallback, history...)
	fallback = append(fallback, inbound, agentMessage(reply))
	return fallback
}

// finalize assembles the session outcome and hands it to the storage and
// reporting collaborators. It fires at most once per session; repeat calls
// past the termination threshold are no-ops.
func (e *Engine) finalize(ctx context.Context, sessionID string, verdict domain.ClassificationResult, totalMessages int, intelligence domain.IntelligenceRecord) bool {
	e.mu.Lock()
	if e.finalized[sessionID] {
		e.mu.Unlock()
		return false
	}
	e.finalized[sessionID] = true
	e.mu.Unlock()

	notes := fmt.Sprintf("Scam: %s. Confidence: %.2f.", verdict.Category, verdict.Confidence)
	outcome := domain.SessionOutcome{
		SessionID:     sessionID,
		ScamConfirmed: true,
		TotalMessages: totalMessages,
		Intelligence:  intelligence,
		Notes:         notes,
	}

	if err := e.store.UpdateSession(ctx, domain.SessionRecord{
		SessionID:     sessionID,
		ScamDetected:  true,
		TotalMessages: totalMessages,
		Intelligence:  intelligence,
		AgentNotes:    notes,
	}); err != nil {
		e.logger.Warn("cannot persist session outcome", "session", sessionID, "err", err)
	}

	reportCtx, cancel := context.WithTimeout(ctx, e.reportTimeout)
	defer cancel()
	res := e.reporter.Report(reportCtx, outcome)
	if !res.Success {
		metrics.ReportsFailed.Inc()
		e.logger.Warn("report handoff failed",
			"session", sessionID,
			"status", res.StatusCode,
			"detail", res.Detail,
		)
	}

	metrics.SessionsFinalized.Inc()
	e.logger.Info("session finalized",
		"session", sessionID,
		"total_messages", totalMessages,
		"reported", res.Success,
	)
	return true
}

func agentMessage(text string) domain.Message {
	return domain.Message{
		Sender:    domain.SenderAgent,
		Text:      text,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
