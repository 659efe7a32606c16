// Package intel extracts structured intelligence from engagement text.
package intel

import (
	"regexp"
	"sort"
	"strings"

	"scamtrap/internal/domain"
	"scamtrap/internal/playbook"
)

var (
	// Regional numbering formats: with country prefix, bare 10-digit
	// mobile, and with a leading zero.
	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+91[-\s]?[6-9]\d{9}`),
		regexp.MustCompile(`\b[6-9]\d{9}\b`),
		regexp.MustCompile(`\b0[6-9]\d{9}\b`),
	}
	paymentTokenPattern = regexp.MustCompile(`\b[\w.-]+@[\w.-]+\b`)
	emailPattern        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// The $-_ range admits the common URL punctuation (/ ? = % . & + : @)
	// along with digits, so paths, queries, and percent-encoded sequences
	// are captured whole.
	urlPattern = regexp.MustCompile(`https?://[!$-_a-zA-Z0-9]+`)

	digitRunPattern = regexp.MustCompile(`\b\d{9,18}\b`)
)

// Digit runs of 9-18 are candidate account numbers, but only runs of 11 or
// more are retained; shorter runs are usually phone numbers.
const minBankAccountDigits = 11

// Extractor scans conversation text for phone numbers, payment identifiers,
// emails, links, account-number candidates, and keyword hits. It is pure:
// the same history always yields the same record.
type Extractor struct {
	keywords  []string
	providers []string
}

func NewExtractor(pb *playbook.Playbook) *Extractor {
	return &Extractor{
		keywords:  pb.SuspiciousKeywords,
		providers: pb.PaymentProviders,
	}
}

// Extract recomputes the full intelligence record from the entire history.
// It is recomputed from scratch each turn rather than merged incrementally;
// engagements are capped well below the point where that would matter.
func (e *Extractor) Extract(history []domain.Message) domain.IntelligenceRecord {
	var b strings.Builder
	for i, msg := range history {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(msg.Text)
	}
	corpus := b.String()
	lower := strings.ToLower(corpus)

	phones := make(map[string]struct{})
	for _, re := range phonePatterns {
		for _, m := range re.FindAllString(corpus, -1) {
			m = strings.ReplaceAll(m, " ", "")
			m = strings.ReplaceAll(m, "-", "")
			phones[m] = struct{}{}
		}
	}

	payments := make(map[string]struct{})
	for _, tok := range paymentTokenPattern.FindAllString(corpus, -1) {
		lowered := strings.ToLower(tok)
		for _, provider := range e.providers {
			if strings.Contains(lowered, provider) {
				payments[tok] = struct{}{}
				break
			}
		}
	}

	emails := make(map[string]struct{})
	for _, m := range emailPattern.FindAllString(corpus, -1) {
		emails[m] = struct{}{}
	}

	links := make(map[string]struct{})
	for _, m := range urlPattern.FindAllString(corpus, -1) {
		links[m] = struct{}{}
	}

	accounts := make(map[string]struct{})
	for _, m := range digitRunPattern.FindAllString(corpus, -1) {
		if len(m) >= minBankAccountDigits {
			accounts[m] = struct{}{}
		}
	}

	keywords := make(map[string]struct{})
	for _, kw := range e.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			keywords[kw] = struct{}{}
		}
	}

	return domain.IntelligenceRecord{
		PhoneNumbers:       sortedSet(phones),
		PaymentIDs:         sortedSet(payments),
		BankAccounts:       sortedSet(accounts),
		PhishingLinks:      sortedSet(links),
		EmailAddresses:     sortedSet(emails),
		SuspiciousKeywords: sortedSet(keywords),
	}
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
