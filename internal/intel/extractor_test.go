package intel

import (
	"reflect"
	"testing"

	"scamtrap/internal/domain"
	"scamtrap/internal/playbook"
)

func newTestExtractor() *Extractor {
	return NewExtractor(playbook.Default())
}

func msgs(texts ...string) []domain.Message {
	out := make([]domain.Message, 0, len(texts))
	for _, t := range texts {
		out = append(out, domain.Message{Sender: domain.SenderScammer, Text: t, Timestamp: "2026-01-01T00:00:00Z"})
	}
	return out
}

func TestExtract_PhoneFormats(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("call +91-9876543210 or 9876543210 today"))
	// Both forms normalize to distinct strings (+919876543210, 9876543210).
	if len(rec.PhoneNumbers) != 2 {
		t.Fatalf("expected 2 phone numbers, got %v", rec.PhoneNumbers)
	}
	for _, p := range rec.PhoneNumbers {
		if p != "+919876543210" && p != "9876543210" {
			t.Errorf("unexpected phone %q", p)
		}
	}
}

func TestExtract_PhoneNormalizesSeparators(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("my number is +91 9876543210"))
	found := false
	for _, p := range rec.PhoneNumbers {
		if p == "+919876543210" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected normalized +919876543210, got %v", rec.PhoneNumbers)
	}
}

func TestExtract_PaymentIDRequiresKnownProvider(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("send to john@paytm or bob@randomapp"))
	if !reflect.DeepEqual(rec.PaymentIDs, []string{"john@paytm"}) {
		t.Errorf("expected only john@paytm, got %v", rec.PaymentIDs)
	}
}

func TestExtract_PaymentShapedTokenMayStillBeEmail(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("contact bob@randomapp.com now"))
	if len(rec.PaymentIDs) != 0 {
		t.Errorf("unknown provider should not be a payment ID: %v", rec.PaymentIDs)
	}
	if len(rec.EmailAddresses) != 1 || rec.EmailAddresses[0] != "bob@randomapp.com" {
		t.Errorf("expected email match, got %v", rec.EmailAddresses)
	}
}

func TestExtract_BankAccountLengthBoundary(t *testing.T) {
	e := newTestExtractor()

	// 10 digits: candidate run but below the retention threshold.
	rec := e.Extract(msgs("account 1234567890"))
	if len(rec.BankAccounts) != 0 {
		t.Errorf("10-digit run must not be a bank candidate: %v", rec.BankAccounts)
	}

	// 11 digits: retained.
	rec = e.Extract(msgs("account 12345678901"))
	if len(rec.BankAccounts) != 1 || rec.BankAccounts[0] != "12345678901" {
		t.Errorf("11-digit run should be a bank candidate: %v", rec.BankAccounts)
	}
}

func TestExtract_Links(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("click http://evil.example/verify?id=1%2B2 and https://bank-secure.example/login"))
	if len(rec.PhishingLinks) != 2 {
		t.Fatalf("expected 2 links, got %v", rec.PhishingLinks)
	}
}

func TestExtract_Keywords(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(msgs("URGENT: your bank account is blocked, share OTP immediately"))
	want := map[string]bool{"urgent": true, "bank account": true, "blocked": true, "otp": true, "immediately": true}
	if len(rec.SuspiciousKeywords) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), rec.SuspiciousKeywords)
	}
	for _, kw := range rec.SuspiciousKeywords {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
	}
}

func TestExtract_Idempotent(t *testing.T) {
	e := newTestExtractor()
	history := msgs(
		"URGENT call +91-9876543210",
		"pay to john@paytm, account 123456789012",
		"see http://phish.example/x",
	)
	first := e.Extract(history)
	second := e.Extract(history)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("extraction is not idempotent:\n%v\n%v", first, second)
	}
}

func TestExtract_MonotonicUnderGrowth(t *testing.T) {
	e := newTestExtractor()
	history := msgs("call 9876543210 urgent")
	before := e.Extract(history)

	history = append(history, domain.Message{Sender: domain.SenderScammer, Text: "also pay john@ybl"})
	after := e.Extract(history)

	for _, p := range before.PhoneNumbers {
		if !contains(after.PhoneNumbers, p) {
			t.Errorf("phone %q lost after history growth", p)
		}
	}
	for _, k := range before.SuspiciousKeywords {
		if !contains(after.SuspiciousKeywords, k) {
			t.Errorf("keyword %q lost after history growth", k)
		}
	}
	if !contains(after.PaymentIDs, "john@ybl") {
		t.Errorf("new payment ID not picked up: %v", after.PaymentIDs)
	}
}

func TestExtract_EmptyHistory(t *testing.T) {
	e := newTestExtractor()
	rec := e.Extract(nil)
	if len(rec.PhoneNumbers)+len(rec.PaymentIDs)+len(rec.BankAccounts)+
		len(rec.PhishingLinks)+len(rec.EmailAddresses)+len(rec.SuspiciousKeywords) != 0 {
		t.Errorf("empty history should yield empty record: %+v", rec)
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
