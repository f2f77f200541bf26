package chat

import (
	"regexp"
	"strings"
)

// Intent is the handling strategy for one message. Exactly one intent is
// assigned per message, without any oracle call.
type Intent int

const (
	// IntentGreeting short-circuits to a canned prompt-for-topic reply.
	IntentGreeting Intent = iota
	// IntentLeadCapture short-circuits to a canned "send the form" reply.
	IntentLeadCapture
	// IntentRedirect short-circuits to a canned redirect-to-the-offer reply.
	IntentRedirect
	// IntentSpecific matched one or more named topics; retrieval is forced.
	IntentSpecific
	// IntentGeneral gets opportunistic retrieval and normal generation.
	IntentGeneral
)

// String returns the intent name for logging.
func (i Intent) String() string {
	switch i {
	case IntentGreeting:
		return "greeting"
	case IntentLeadCapture:
		return "lead-capture"
	case IntentRedirect:
		return "redirect"
	case IntentSpecific:
		return "specific"
	default:
		return "general"
	}
}

// Classification is the full routing decision for one message.
type Classification struct {
	Intent Intent
	// Topics are the named topics that matched, first-match order.
	Topics []string
	// ForceRetrieval relaxes the similarity bar and widens the match count.
	ForceRetrieval bool
	// OfferForm appends the review-form pointer to generated replies.
	OfferForm bool
	// ReviewRefusal marks a redirect caused by the review deny-list, which
	// gets its own canned reply.
	ReviewRefusal bool
}

// Canned reports whether the intent bypasses retrieval and generation.
func (c Classification) Canned() bool {
	switch c.Intent {
	case IntentGreeting, IntentLeadCapture, IntentRedirect:
		return true
	}
	return false
}

// HasTopic reports whether a named topic matched.
func (c Classification) HasTopic(topic string) bool {
	for _, t := range c.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

const greetingMaxLen = 24

var (
	greetingRe = regexp.MustCompile(`^(hi|hello|hey|yo|howdy|sup|hola|hiya)\b`)

	// Deny-list: review/audit requests are refused even when on-topic words
	// appear in the same message.
	reviewRe = regexp.MustCompile(`(?i)\b(review|audit|critique|look at (my|our) site|look at my website|assess my website)\b`)

	// Affirmation / ready-to-proceed patterns route straight to the form.
	proceedRe = regexp.MustCompile(`(?i)\b(next steps?|how do i start|how to start|how to proceed|ready to start|let'?s go|let'?s start|proceed|get started|sign me up)\b`)

	// Allow-list of on-topic vocabulary; anything matching neither this nor
	// a named topic is redirected.
	onTopicRe = regexp.MustCompile(`(?i)\b(site|website|rebuild|page|pricing|price|cost|timeline|turnaround|process|support|hosting|policy|privacy|start|kickoff|scope|deliverable|stack|tech)\b`)

	// Only unambiguous URL shapes count as a contact URL for routing; bare
	// domains like "next.js" stay with their topic.
	contactURLRe = regexp.MustCompile(`(?i)\b(https?://\S+|www\.[a-z0-9.-]+\.[a-z]{2,})`)
)

// topicRule pairs a named topic with its match predicate. Rules are
// evaluated in order and all hits are collected.
type topicRule struct {
	topic string
	re    *regexp.Regexp
}

var topicRules = []topicRule{
	{"pricing", regexp.MustCompile(`(?i)price|pricing|cost|budget|quote|estimate`)},
	{"timeline", regexp.MustCompile(`(?i)timeline|turnaround|how fast|deadline|how long|lead time`)},
	{"stack", regexp.MustCompile(`(?i)\bstack\b|tech stack|technology|framework|react|next\.?js?|supabase|postgres|openai`)},
	{"scope", regexp.MustCompile(`(?i)include|included|scope|deliverables?|pages?|what's included|what is included`)},
	{"support", regexp.MustCompile(`(?i)support|maintenance|updates|hosting|care plan`)},
	{"policy", regexp.MustCompile(`(?i)privacy|gdpr|data policy|terms|refund|guarantee`)},
	{"start", regexp.MustCompile(`(?i)how do i start|how to start|get started|next steps|kickoff|begin`)},
}

func matchTopics(message string) []string {
	var topics []string
	for _, rule := range topicRules {
		if rule.re.MatchString(message) {
			topics = append(topics, rule.topic)
		}
	}
	return topics
}

func isGreeting(message string, topics []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(message))
	if len(normalized) > greetingMaxLen || len(topics) > 0 {
		return false
	}
	return greetingRe.MatchString(normalized)
}

// Classify routes a message to exactly one intent. The rules are evaluated
// in a fixed order; the first matching predicate wins:
//
//  1. greeting: short message from the greeting vocabulary, no topic signal
//  2. review deny-list: refused regardless of other signals
//  3. lead-capture: proceed/affirmation patterns or an extractable contact URL
//  4. specific: one or more named topics matched
//  5. lead-capture: bare contact email with no topical question attached
//  6. redirect: matches neither the allow-list nor any topic
//  7. general: everything else
//
// A contact email alone routes to the form, but never steals a message that
// also asks a real question: topics win over the email-only trigger.
func Classify(message string, fields LeadUpdate) Classification {
	topics := matchTopics(message)
	offerForm := containsString(topics, "start") || proceedRe.MatchString(message)

	switch {
	case isGreeting(message, topics):
		return Classification{Intent: IntentGreeting}
	case reviewRe.MatchString(message):
		return Classification{Intent: IntentRedirect, Topics: topics, ReviewRefusal: true}
	case proceedRe.MatchString(message) || contactURLRe.MatchString(message):
		return Classification{Intent: IntentLeadCapture, Topics: topics, OfferForm: true}
	case len(topics) > 0:
		return Classification{Intent: IntentSpecific, Topics: topics, ForceRetrieval: true, OfferForm: offerForm}
	case fields.Fields.Email != "":
		return Classification{Intent: IntentLeadCapture, OfferForm: true}
	case !onTopicRe.MatchString(message):
		return Classification{Intent: IntentRedirect}
	default:
		return Classification{Intent: IntentGeneral, OfferForm: offerForm}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
