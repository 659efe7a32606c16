package engage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"scamtrap/internal/classifier"
	"scamtrap/internal/domain"
	"scamtrap/internal/intel"
	"scamtrap/internal/persona"
	"scamtrap/internal/playbook"
	"scamtrap/internal/policy"
)

// scriptedProvider answers classification and generation calls from fixed
// scripts, keyed on the system instruction.
type scriptedProvider struct {
	classifyResponse string
	classifyErr      error
	replyResponse    string
	replyErr         error
}

func (s *scriptedProvider) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	if len(req.Messages) > 0 && req.Messages[0].Content == "You are a scam detection expert." {
		if s.classifyErr != nil {
			return nil, s.classifyErr
		}
		return &domain.ChatResponse{Content: s.classifyResponse}, nil
	}
	if s.replyErr != nil {
		return nil, s.replyErr
	}
	return &domain.ChatResponse{Content: s.replyResponse}, nil
}

func (s *scriptedProvider) Name() string                      { return "scripted" }
func (s *scriptedProvider) Healthy(ctx context.Context) error { return nil }

// memStore is an in-memory ConversationStore with switchable failure.
type memStore struct {
	mu       sync.Mutex
	messages map[string][]domain.Message
	sessions map[string]domain.SessionRecord
	fail     bool
}

func newMemStore() *memStore {
	return &memStore{
		messages: make(map[string][]domain.Message),
		sessions: make(map[string]domain.SessionRecord),
	}
}

func (m *memStore) SaveMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("store unavailable")
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	return nil
}

func (m *memStore) Conversation(ctx context.Context, sessionID string) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("store unavailable")
	}
	return append([]domain.Message(nil), m.messages[sessionID]...), nil
}

func (m *memStore) UpdateSession(ctx context.Context, rec domain.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("store unavailable")
	}
	m.sessions[rec.SessionID] = rec
	return nil
}

func (m *memStore) ListSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	return nil, nil
}

func (m *memStore) Close() error { return nil }

// countingReporter records report calls.
type countingReporter struct {
	mu       sync.Mutex
	calls    int
	outcomes []domain.SessionOutcome
	success  bool
}

func (r *countingReporter) Report(ctx context.Context, outcome domain.SessionOutcome) domain.ReportResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls + 1
	r.outcomes = append(r.outcomes, outcome)
	return domain.ReportResult{Success: r.success, StatusCode: 200}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestEngine(p domain.Provider, store domain.ConversationStore, reporter domain.Reporter) *Engine {
	pb := playbook.Default()
	return NewEngine(Config{
		Store:      store,
		Classifier: classifier.New(classifier.Config{Provider: p, Playbook: pb, Logger: testLogger()}),
		Persona:    persona.New(persona.Config{Provider: p, Playbook: pb, Logger: testLogger()}),
		Extractor:  intel.NewExtractor(pb),
		Policy:     policy.New(policy.Config{Playbook: pb, Logger: testLogger()}),
		Reporter:   reporter,
		Logger:     testLogger(),
	})
}

func inbound(text string) domain.Message {
	return domain.Message{Sender: domain.SenderScammer, Text: text, Timestamp: "2026-01-01T10:00:00Z"}
}

const scamVerdict = "IS_SCAM: yes\nCONFIDENCE: 0.9\nSCAM_TYPE: phishing\nREASONING: asks for OTP."

func TestHandleInbound_NonScamShortCircuits(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: "IS_SCAM: no\nCONFIDENCE: 0.1\nSCAM_TYPE: other\nREASONING: benign.",
		replyErr:         errors.New("generator must not be called for non-scam"),
	}
	store := newMemStore()
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	res := e.HandleInbound(context.Background(), "s1", inbound("hello there"), nil)
	if res.Reply != "I'm sorry, I don't understand." {
		t.Errorf("expected neutral reply, got %q", res.Reply)
	}
	if res.ScamDetected {
		t.Error("non-scam should not be flagged")
	}
	// Inbound and neutral reply are both recorded.
	if got := len(store.messages["s1"]); got != 2 {
		t.Errorf("expected 2 stored messages, got %d", got)
	}
	if reporter.calls != 0 {
		t.Error("reporter must not be called for non-scam")
	}
}

func TestHandleInbound_ScamEngages(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "Oh dear, which number should I call?",
	}
	store := newMemStore()
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	res := e.HandleInbound(context.Background(), "s1", inbound("your account is blocked, verify now"), nil)
	if res.Reply != "Oh dear, which number should I call?" {
		t.Errorf("unexpected reply %q", res.Reply)
	}
	if !res.ScamDetected {
		t.Error("scam should be flagged")
	}
	if res.Terminated {
		t.Error("two-message engagement with no intelligence should not terminate")
	}
	if stored := store.messages["s1"]; len(stored) != 2 || stored[1].Sender != domain.SenderAgent {
		t.Errorf("reply not recorded: %+v", stored)
	}
}

func TestHandleInbound_DualIntelligenceFinalizes(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "Where do I send it?",
	}
	store := newMemStore()
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	res := e.HandleInbound(context.Background(), "s1",
		inbound("call 9876543210 and pay to john@paytm"), nil)
	if !res.Terminated {
		t.Fatal("phone + payment ID should finalize the session")
	}
	if reporter.calls != 1 {
		t.Fatalf("reporter calls = %d, want 1", reporter.calls)
	}

	outcome := reporter.outcomes[0]
	if outcome.SessionID != "s1" || !outcome.ScamConfirmed {
		t.Errorf("outcome mismatch: %+v", outcome)
	}
	if !outcome.Intelligence.HasPhone() || !outcome.Intelligence.HasPaymentIdentifier() {
		t.Errorf("intelligence missing from outcome: %+v", outcome.Intelligence)
	}
	if outcome.Notes != "Scam: phishing. Confidence: 0.90." {
		t.Errorf("notes = %q", outcome.Notes)
	}

	rec, ok := store.sessions["s1"]
	if !ok {
		t.Fatal("session record not persisted")
	}
	if !rec.ScamDetected || rec.TotalMessages != 2 {
		t.Errorf("session record mismatch: %+v", rec)
	}
}

func TestHandleInbound_FinalizeAtMostOnce(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "ok dear",
	}
	store := newMemStore()
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	trigger := "call 9876543210 and pay to john@paytm"
	first := e.HandleInbound(context.Background(), "s1", inbound(trigger), nil)
	second := e.HandleInbound(context.Background(), "s1", inbound(trigger), nil)

	if !first.Terminated {
		t.Error("first cycle past the threshold should finalize")
	}
	if second.Terminated {
		t.Error("already-finalized session must not finalize again")
	}
	if second.Reply == "" {
		t.Error("a reply is still returned after finalization")
	}
	if reporter.calls != 1 {
		t.Errorf("reporter calls = %d, want exactly 1", reporter.calls)
	}
}

func TestHandleInbound_MessageCapFinalizes(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "oh my",
	}
	store := newMemStore()
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	var res Result
	for i := 0; i < 8; i++ {
		res = e.HandleInbound(context.Background(), "s1", inbound(fmt.Sprintf("benign pitch %d", i)), nil)
	}
	// 8 cycles record 16 messages; the cap of 15 fires during cycle 8.
	if !res.Terminated {
		t.Error("message cap should have finalized the session")
	}
	if reporter.calls != 1 {
		t.Errorf("reporter calls = %d, want 1", reporter.calls)
	}
}

func TestHandleInbound_StoreFailureStillReplies(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "what is the website?",
	}
	store := newMemStore()
	store.fail = true
	reporter := &countingReporter{success: true}
	e := newTestEngine(p, store, reporter)

	history := []domain.Message{
		{Sender: domain.SenderScammer, Text: "call 9876543210"},
		{Sender: domain.SenderAgent, Text: "which number?"},
	}
	res := e.HandleInbound(context.Background(), "s1", inbound("pay to john@paytm now"), history)
	if res.Reply != "what is the website?" {
		t.Errorf("store failure must not affect the reply, got %q", res.Reply)
	}
	// In-memory fallback history still drives extraction and termination.
	if !res.Terminated {
		t.Error("termination should still fire on the in-memory history")
	}
}

func TestHandleInbound_AllCollaboratorsFailing(t *testing.T) {
	p := &scriptedProvider{
		classifyErr: errors.New("classifier down"),
		replyErr:    errors.New("generator down"),
	}
	store := newMemStore()
	store.fail = true
	reporter := &countingReporter{success: false}
	e := newTestEngine(p, store, reporter)

	// Classifier fails open to scam, generator falls back, store is down:
	// the caller still gets the canned persona fallback.
	res := e.HandleInbound(context.Background(), "s1", inbound("anything"), nil)
	if res.Reply != "I'm not sure I understand. Can you explain?" {
		t.Errorf("expected persona fallback, got %q", res.Reply)
	}
	if !res.ScamDetected {
		t.Error("fail-open classification should flag scam")
	}
}

func TestHandleInbound_ReporterFailureStillFinalizes(t *testing.T) {
	p := &scriptedProvider{
		classifyResponse: scamVerdict,
		replyResponse:    "ok",
	}
	store := newMemStore()
	reporter := &countingReporter{success: false}
	e := newTestEngine(p, store, reporter)

	res := e.HandleInbound(context.Background(), "s1",
		inbound("call 9876543210, pay john@paytm"), nil)
	if !res.Terminated {
		t.Error("session should finalize locally even when the report fails")
	}
	if _, ok := store.sessions["s1"]; !ok {
		t.Error("session record should still be persisted")
	}
}
