package chat

import (
	"regexp"
	"strings"

	"github.com/relaylabs/relay-gateway/internal/domain"
)

// Lead scoring weights. The rule set is additive and fixed so scores stay
// auditable and testable by example.
const (
	scoreEmail         = 2
	scoreWebsite       = 2
	scoreBusinessName  = 1
	scoreHireIntent    = 2
	scoreNeedsWebsite  = 1
	scoreMultiQuestion = 2

	// multiQuestionTurns is the user-message count after which sustained
	// engagement itself becomes a signal.
	multiQuestionTurns = 3

	// previewChars bounds the message excerpt included in alert emails.
	previewChars = 280
)

var (
	emailRe      = regexp.MustCompile(`(?i)\b([a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,})\b`)
	urlRe        = regexp.MustCompile(`(?i)\b(https?://[^\s)]+)\b`)
	bareDomainRe = regexp.MustCompile(`(?i)\b((?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,})(?:[^\w]|$)`)

	bizNameLabelRe = regexp.MustCompile(`(?i)\b(?:business|company)\s*name\s*[:\-]\s*([^\n]{2,80})`)
	bizNameWereRe  = regexp.MustCompile(`\bwe(?:'| a)?re\s+([A-Z][A-Za-z0-9&' -]{1,60})\b`)

	hireIntentRe = regexp.MustCompile(`(?i)\b(hire|work with you|get started|book|schedule|quote|estimate|pricing)\b`)
	needsSiteRe  = regexp.MustCompile(`(?i)\b(need a website|rebuild|redesign|new site|new website|landing page)\b`)
)

// ExtractFields pulls contact details out of a message with deterministic
// pattern matching; no oracle call. Bare domains are normalized to https.
func ExtractFields(text string) domain.LeadFields {
	var fields domain.LeadFields

	if m := emailRe.FindStringSubmatch(text); m != nil {
		fields.Email = strings.TrimSpace(m[1])
	}

	if m := urlRe.FindStringSubmatch(text); m != nil {
		fields.WebsiteURL = strings.TrimSpace(m[1])
	} else if m := bareDomainRe.FindStringSubmatch(stripEmails(text)); m != nil {
		fields.WebsiteURL = "https://" + strings.TrimSpace(m[1])
	}

	if m := bizNameLabelRe.FindStringSubmatch(text); m != nil {
		fields.BusinessName = strings.TrimSpace(m[1])
	} else if m := bizNameWereRe.FindStringSubmatch(text); m != nil {
		fields.BusinessName = strings.TrimSpace(m[1])
	}

	return fields
}

// stripEmails blanks out email addresses so the bare-domain pattern does not
// match the domain part of an address.
func stripEmails(text string) string {
	return emailRe.ReplaceAllString(text, " ")
}

// ScoreSignals applies the additive rule set to one message and returns the
// score with its named signal tags.
func ScoreSignals(text string, fields domain.LeadFields) LeadUpdate {
	update := LeadUpdate{Fields: fields}

	if fields.Email != "" {
		update.Score += scoreEmail
		update.Signals = append(update.Signals, "has_email")
	}
	if fields.WebsiteURL != "" {
		update.Score += scoreWebsite
		update.Signals = append(update.Signals, "has_website")
	}
	if fields.BusinessName != "" {
		update.Score += scoreBusinessName
		update.Signals = append(update.Signals, "has_business_name")
	}
	if hireIntentRe.MatchString(text) {
		update.Score += scoreHireIntent
		update.Signals = append(update.Signals, "hire_intent")
	}
	if needsSiteRe.MatchString(text) {
		update.Score += scoreNeedsWebsite
		update.Signals = append(update.Signals, "needs_website")
	}

	return update
}

// AddEngagementSignal folds in the sustained-engagement signal once the
// visitor has asked enough questions.
func AddEngagementSignal(update LeadUpdate, userTurns int) LeadUpdate {
	if userTurns < multiQuestionTurns {
		return update
	}
	for _, sig := range update.Signals {
		if sig == "multi_question" {
			return update
		}
	}
	update.Score += scoreMultiQuestion
	update.Signals = append(update.Signals, "multi_question")
	return update
}
