package playbook

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestDefault_HasVocabulary(t *testing.T) {
	pb := Default()
	if pb.PersonaPrompt == "" {
		t.Error("default persona prompt should not be empty")
	}
	if len(pb.SuspiciousKeywords) == 0 {
		t.Error("default keyword vocabulary should not be empty")
	}
	if len(pb.PaymentProviders) == 0 {
		t.Error("default payment providers should not be empty")
	}
	if len(pb.DetectionRiskWords) != 7 {
		t.Errorf("expected 7 detection-risk words, got %d", len(pb.DetectionRiskWords))
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	pb, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if pb.NeutralReply != Default().NeutralReply {
		t.Errorf("expected default neutral reply, got %q", pb.NeutralReply)
	}
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	pb, err := Load("", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if pb.FallbackReply == "" {
		t.Error("defaults should carry a fallback reply")
	}
}

func TestLoad_OverlaysOnlySetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "playbook.yaml")
	content := "neutralReply: \"Sorry, who is this?\"\npaymentProviders:\n  - venmo\n  - cashapp\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	pb, err := Load(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if pb.NeutralReply != "Sorry, who is this?" {
		t.Errorf("override not applied: %q", pb.NeutralReply)
	}
	if len(pb.PaymentProviders) != 2 || pb.PaymentProviders[0] != "venmo" {
		t.Errorf("provider override not applied: %v", pb.PaymentProviders)
	}
	// Untouched fields keep defaults.
	if pb.PersonaPrompt != Default().PersonaPrompt {
		t.Error("persona prompt should keep default when not overridden")
	}
	if len(pb.SuspiciousKeywords) != len(Default().SuspiciousKeywords) {
		t.Error("keyword vocabulary should keep default when not overridden")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("neutralReply: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, testLogger()); err == nil {
		t.Error("malformed YAML should return an error")
	}
}
