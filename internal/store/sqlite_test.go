package store

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"scamtrap/internal/domain"
)

func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "honeypot.db"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestSQLite_SaveAndGetConversation(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	msgs := []domain.Message{
		{Sender: domain.SenderScammer, Text: "your account is blocked", Timestamp: "2026-01-01T10:00:00Z"},
		{Sender: domain.SenderAgent, Text: "oh no, what do I do?", Timestamp: "2026-01-01T10:00:05Z"},
		{Sender: domain.SenderScammer, Text: "call 9876543210", Timestamp: "2026-01-01T10:01:00Z"},
	}
	for _, m := range msgs {
		if err := s.SaveMessage(ctx, "sess-1", m); err != nil {
			t.Fatal(err)
		}
	}
	// A different session should not leak in.
	if err := s.SaveMessage(ctx, "sess-2", domain.Message{Sender: domain.SenderScammer, Text: "other"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Conversation(ctx, "sess-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	for i := range msgs {
		if got[i] != msgs[i] {
			t.Errorf("message %d mismatch: %+v != %+v", i, got[i], msgs[i])
		}
	}
}

func TestSQLite_ConversationEmpty(t *testing.T) {
	s := testStore(t)
	got, err := s.Conversation(context.Background(), "unknown")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unknown session should have no messages, got %d", len(got))
	}
}

func TestSQLite_UpdateSessionUpsert(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	rec := domain.SessionRecord{
		SessionID:     "sess-1",
		ScamDetected:  true,
		TotalMessages: 4,
		Intelligence: domain.IntelligenceRecord{
			PhoneNumbers: []string{"9876543210"},
			PaymentIDs:   []string{"john@paytm"},
		},
		AgentNotes: "Scam: phishing. Confidence: 0.90.",
	}
	if err := s.UpdateSession(ctx, rec); err != nil {
		t.Fatal(err)
	}

	// Second update with the same key must not error and must overwrite.
	rec.TotalMessages = 6
	if err := s.UpdateSession(ctx, rec); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListSessions(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("upsert should keep a single row, got %d", len(list))
	}
	got := list[0]
	if got.TotalMessages != 6 {
		t.Errorf("total messages = %d, want 6", got.TotalMessages)
	}
	if !got.ScamDetected {
		t.Error("scam flag lost")
	}
	if len(got.Intelligence.PhoneNumbers) != 1 || got.Intelligence.PhoneNumbers[0] != "9876543210" {
		t.Errorf("intelligence not round-tripped: %+v", got.Intelligence)
	}
	if got.AgentNotes != rec.AgentNotes {
		t.Errorf("notes = %q", got.AgentNotes)
	}
}

func TestSQLite_ListSessionsLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.UpdateSession(ctx, domain.SessionRecord{SessionID: id}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := s.ListSessions(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("limit not applied, got %d", len(list))
	}
}
