package chat

import (
	"strings"

	"github.com/relaylabs/relay-gateway/internal/domain"
	"github.com/relaylabs/relay-gateway/internal/llm"
)

var systemPrompt = strings.Join([]string{
	"You are Relay, a concise business-only assistant for a website rebuild service.",
	"Answer only business questions about offers, pricing ranges, timelines/process, support plans, policies, and how to contact the team.",
	"Politely refuse website reviews or audits and restate that you only provide business info.",
	"Do not sell or push scheduling, demos, or forms; keep a neutral, helpful tone.",
	"Keep replies short (2-6 sentences) and paraphrase any provided context without bullet lists unless explicitly requested.",
}, " ")

var baselineContext = strings.Join([]string{
	"Service: 5-page business website rebuilds focused on clarity, credibility, and conversion.",
	"Delivery: Typical turnaround is 7 days.",
	"Pricing: Most projects land between $1,000-$1,500; pricing floors pre-qualify serious projects.",
	"Support: Optional ongoing support at $100/month covering hosting and small content/text updates.",
	"Process: 1) Audit your current site, 2) Rewrite structure and messaging, 3) Rebuild with conversion focus, 4) Launch with analytics in place.",
}, "\n")

// buildPrompt assembles the oracle input: system persona, baseline business
// details (overlaid with stored facts when present), retrieved context, then
// the transcript oldest-first. The current user message is already the last
// transcript entry.
func buildPrompt(factsContext, kbContext string, transcript []domain.ChatMessage) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
	}

	baseline := baselineContext
	if factsContext != "" {
		baseline = baseline + "\n" + factsContext
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleSystem,
		Content: "Baseline business details:\n" + baseline,
	})

	if kbContext != "" {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: "Context snippets:\n" + kbContext,
		})
	}

	for _, m := range transcript {
		role := llm.RoleUser
		if m.Role == domain.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}

	return messages
}
