// Package playbook holds the fixed engagement vocabulary: the persona
// instruction, scam-indicator list, extraction keyword sets, and the
// payment-provider allow-list. All of it is immutable after load and passed
// into each component at construction, so tests can inject alternates.
package playbook

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Playbook is the complete vocabulary set for one deployment.
type Playbook struct {
	PersonaPrompt      string   `yaml:"personaPrompt"`
	NeutralReply       string   `yaml:"neutralReply"`
	FallbackReply      string   `yaml:"fallbackReply"`
	ScamIndicators     []string `yaml:"scamIndicators"`
	SuspiciousKeywords []string `yaml:"suspiciousKeywords"`
	PaymentProviders   []string `yaml:"paymentProviders"`
	DetectionRiskWords []string `yaml:"detectionRiskWords"`
}

const defaultPersonaPrompt = `You are a 65-year-old retired person, not tech-savvy. You received a scam message.

GOALS:
- Act human and believable
- Show concern but confusion
- Ask questions to extract: phone numbers, bank details, UPI IDs, links
- NEVER reveal you know it's a scam
- Keep responses SHORT (1-2 sentences)
- Make small grammar mistakes
- Express worry and willingness to help

STRATEGIES:
- "Which number should I call?"
- "What is the website?"
- "Where should I send money?"
- "I don't understand, explain more?"`

// Default returns the built-in playbook.
func Default() *Playbook {
	return &Playbook{
		PersonaPrompt: defaultPersonaPrompt,
		NeutralReply:  "I'm sorry, I don't understand.",
		FallbackReply: "I'm not sure I understand. Can you explain?",
		ScamIndicators: []string{
			"OTP", "credit card", "prize", "urgent", "account blocked",
			"verify", "UPI", "PIN", "password", "lottery", "refund", "KYC",
		},
		SuspiciousKeywords: []string{
			"urgent", "immediately", "verify", "blocked", "suspended",
			"prize", "won", "lottery", "refund", "otp", "pin", "password",
			"cvv", "bank account", "upi", "kyc",
		},
		PaymentProviders: []string{
			"paytm", "phonepe", "googlepay", "amazonpay", "bhim",
			"ybl", "okaxis", "oksbi", "okhdfcbank", "okicici",
		},
		DetectionRiskWords: []string{
			"fake", "police", "report", "scam", "fraud", "bot", "ai",
		},
	}
}

// Load reads a YAML playbook file and overlays it on the defaults. Fields
// left empty in the file keep their default value. A missing path returns
// the defaults unchanged.
func Load(path string, logger *slog.Logger) (*Playbook, error) {
	pb := Default()
	if path == "" {
		return pb, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Debug("playbook file does not exist, using defaults", "path", path)
		return pb, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read playbook: %w", err)
	}

	var override Playbook
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("parse playbook %s: %w", path, err)
	}

	if override.PersonaPrompt != "" {
		pb.PersonaPrompt = override.PersonaPrompt
	}
	if override.NeutralReply != "" {
		pb.NeutralReply = override.NeutralReply
	}
	if override.FallbackReply != "" {
		pb.FallbackReply = override.FallbackReply
	}
	if len(override.ScamIndicators) > 0 {
		pb.ScamIndicators = override.ScamIndicators
	}
	if len(override.SuspiciousKeywords) > 0 {
		pb.SuspiciousKeywords = override.SuspiciousKeywords
	}
	if len(override.PaymentProviders) > 0 {
		pb.PaymentProviders = override.PaymentProviders
	}
	if len(override.DetectionRiskWords) > 0 {
		pb.DetectionRiskWords = override.DetectionRiskWords
	}

	logger.Info("loaded playbook overrides", "path", path)
	return pb, nil
}
