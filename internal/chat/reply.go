package chat

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Reply bounds. Replies are collapsed, sentence-capped, and hard-capped in
// characters regardless of how the oracle produced them.
const (
	maxReplySentences = 6
	maxReplyChars     = 720
	truncateReplyAt   = 700
)

// Canned replies for short-circuited intents.
const (
	greetingReply = "Hey! I can cover your website rebuild questions—what's included, pricing, timelines, support, or policies. What should we start with?"

	leadCaptureReply = "Great—the quick review form is the fastest way to start. Share your business name, site URL, and email there and the team takes it from the audit onward."

	redirectReply = "I only handle questions about the website rebuild—scope, pricing, timeline, support, or policies. I can't help with unrelated topics."

	reviewRefusalReply = "I can't review websites or judge design quality. I only cover business details like offers, pricing ranges, timelines, support, and policies. What business details can I clarify?"

	fallbackReply = "I can help with your website rebuild—scope, pricing, timeline, support, and policies. What do you want to know?"

	formOfferSuffix = "If you want to proceed, I can point you to the quick review form."
)

// topicFallbacks are substituted when generation for a specific topic comes
// back empty or generic.
var topicFallbacks = map[string]string{
	"pricing":  "Most 5-page rebuilds land around $1,000–$1,500 with a ~7-day turnaround. Optional support is $100/month for hosting plus small text/content updates.",
	"scope":    "Scope: 5-page business site rebuilt for clarity and conversion. Includes an audit of your current site, rewritten structure/messaging, the rebuild itself, and launch with analytics. Optional support is $100/month for hosting and small updates.",
	"timeline": "Turnaround is typically ~7 days after kickoff. The workflow is audit, rewrite structure/messaging, rebuild, then launch with analytics. Optional support is $100/month for hosting and small updates.",
	"support":  "Ongoing support is optional at $100/month; it covers hosting and small text/content updates. The core rebuild is a 5-page site delivered in about 7 days.",
	"policy":   "I can share business details like scope, pricing, and timeline. If you need specifics on privacy or data handling, let me know and I'll outline what's available.",
	"stack":    "I focus on delivering a fast, conversion-oriented 5-page site in ~7 days. If you need stack specifics, I can confirm them, but most clients just want the outcome: clearer messaging, faster load, and analytics in place.",
	"start":    "To start, share your business name, site URL, and goals. I'll audit your current site, rewrite the structure and messaging, rebuild a 5-page site for clarity and conversion, then launch with analytics—usually in about 7 days.",
}

// topicFallbackOrder fixes which fallback wins when several topics matched.
var topicFallbackOrder = []string{"pricing", "scope", "timeline", "support", "policy", "stack", "start"}

var (
	sentenceRe      = regexp.MustCompile(`[^.!?]+[.!?]?`)
	trailingPunctRe = regexp.MustCompile(`[.!?]*$`)
	genericMarkerRe = regexp.MustCompile(`(?i)here are the basics`)
	formMentionRe   = regexp.MustCompile(`(?i)review form`)
)

// NormalizeReply collapses whitespace and truncates to the sentence and
// character caps. It is applied identically to buffered and streamed output.
func NormalizeReply(reply string) string {
	normalized := strings.Join(strings.Fields(reply), " ")
	if normalized == "" {
		return ""
	}

	sentences := sentenceRe.FindAllString(normalized, -1)
	if sentences == nil {
		sentences = []string{normalized}
	}
	if len(sentences) > maxReplySentences {
		sentences = sentences[:maxReplySentences]
	}
	for i, s := range sentences {
		sentences[i] = strings.TrimSpace(s)
	}
	limited := strings.TrimSpace(strings.Join(sentences, " "))

	if len(limited) > maxReplyChars {
		cut := strings.TrimSpace(truncateAtRune(limited, truncateReplyAt))
		limited = trailingPunctRe.ReplaceAllString(cut, "") + "."
	}
	return limited
}

// truncateAtRune cuts s to at most n bytes without splitting a UTF-8 rune.
func truncateAtRune(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// topicFallback returns the canned answer for the highest-priority topic.
func topicFallback(topics []string) string {
	for _, topic := range topicFallbackOrder {
		for _, t := range topics {
			if t == topic {
				return topicFallbacks[topic]
			}
		}
	}
	return fallbackReply
}

// FinalizeReply applies the mode-independent post-generation policy: fill in
// the fallback when the oracle gave nothing, substitute the topic-specific
// canned answer when the reply is empty or generic, and append the form
// offer when the turn warrants it.
func FinalizeReply(raw string, cls Classification) string {
	reply := NormalizeReply(raw)
	if reply == "" {
		reply = NormalizeReply(fallbackReply)
	}

	if len(cls.Topics) > 0 && (NormalizeReply(raw) == "" || raw == fallbackReply || genericMarkerRe.MatchString(reply)) {
		reply = NormalizeReply(topicFallback(cls.Topics))
	}

	if cls.OfferForm && !formMentionRe.MatchString(reply) {
		spacer := ". "
		if strings.HasSuffix(reply, ".") {
			spacer = " "
		}
		reply = reply + spacer + formOfferSuffix
	}
	return reply
}

// cannedReply returns the fixed reply text for a short-circuited intent.
func cannedReply(cls Classification) string {
	switch cls.Intent {
	case IntentGreeting:
		return greetingReply
	case IntentLeadCapture:
		return leadCaptureReply
	case IntentRedirect:
		if cls.ReviewRefusal {
			return reviewRefusalReply
		}
		return redirectReply
	}
	return fallbackReply
}
