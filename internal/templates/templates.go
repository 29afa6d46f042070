// Package templates selects and customizes response templates by intent.
// Selection and variable extraction are deterministic; the completion stage
// downstream smooths the rendered skeleton into natural prose.
package templates

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/manjuraavi/auto-responder/internal/logging"
)

// =============================================================================
// TEMPLATE BODIES
// =============================================================================

var bodies = map[string]string{
	"question_general": `
Thank you for your inquiry regarding {topic}.

{context_information}

{specific_answer}

If you have any additional questions, please don't hesitate to reach out.

Best regards,
{signature}
`,

	"question_technical": `
Thank you for contacting us about {topic}.

I understand you're experiencing {issue_description}. Here's what I can help you with:

{solution_steps}

{context_information}

If these steps don't resolve the issue, please let me know and I'll be happy to provide further assistance.

Best regards,
{signature}
`,

	"complaint_acknowledgment": `
Thank you for bringing this matter to our attention, and I sincerely apologize for {issue_description}.

I understand your frustration, and I want to make this right. Here's what I'm going to do:

{action_items}

{context_information}

{timeline_information}

I'll personally ensure this is resolved promptly. Please don't hesitate to contact me directly if you have any concerns.

Sincerely,
{signature}
`,

	"escalation_urgent": `
Thank you for your message. I understand the urgency of your situation regarding {topic}.

I am immediately escalating this matter to ensure you receive prompt resolution:

{escalation_actions}

{immediate_steps}

You can expect to hear from {contact_person} within {timeframe}.

{context_information}

Thank you for your patience as we work to resolve this matter quickly.

Best regards,
{signature}
`,

	"request_fulfillment": `
Thank you for your request regarding {topic}.

I'm pleased to help you with {request_description}. Here's what I can provide:

{fulfillment_details}

{context_information}

{next_steps}

Please let me know if you need anything else.

Best regards,
{signature}
`,

	"request_cannot_fulfill": `
Thank you for your request regarding {topic}.

I understand you're looking for {request_description}. While I'm not able to fulfill this exact request due to {limitation_reason}, I can offer the following alternatives:

{alternative_options}

{context_information}

I hope one of these alternatives will work for your needs. Please let me know how I can best assist you.

Best regards,
{signature}
`,
}

var technicalWords = []string{"error", "bug", "not working", "technical", "setup"}

var cannotFulfillWords = []string{"cannot", "unable", "not possible", "restricted", "policy"}

var (
	topicPattern       = regexp.MustCompile(`(?i)(about|regarding|concerning|on)\s+([A-Za-z0-9\s\-_,]+)`)
	issuePattern       = regexp.MustCompile(`(?i)(problem|issue|error|trouble|difficulty)\s*(with|in|regarding)?\s*([A-Za-z0-9\s\-_,]+)?`)
	requestPattern     = regexp.MustCompile(`(?i)(request|would like|please)\s*(for|to)?\s*([A-Za-z0-9\s\-_,]+)?`)
	placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)
)

// Selection is a chosen template plus the variables extracted for it.
type Selection struct {
	Key       string
	Body      string
	Variables map[string]string
	// Missing lists placeholders the extractor could not fill; downstream
	// generation supplies these.
	Missing []string
}

// Select returns the template key for the given intent and content. Unknown
// intents fall through to question_general.
func Select(intent, content string) string {
	contentLower := strings.ToLower(content)

	switch intent {
	case "question":
		for _, word := range technicalWords {
			if strings.Contains(contentLower, word) {
				return "question_technical"
			}
		}
		return "question_general"
	case "complaint":
		return "complaint_acknowledgment"
	case "escalation":
		return "escalation_urgent"
	case "request":
		for _, word := range cannotFulfillWords {
			if strings.Contains(contentLower, word) {
				return "request_cannot_fulfill"
			}
		}
		return "request_fulfillment"
	}
	return "question_general"
}

// Body returns the template body for a key, falling back to question_general.
func Body(key string) string {
	if body, ok := bodies[key]; ok {
		return body
	}
	return bodies["question_general"]
}

// Keys returns all template keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(bodies))
	for key := range bodies {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ExtractVariables derives customization variables from the message content,
// the retrieved context, and the intent. Every extraction has a deterministic
// fallback so the map is always usable.
func ExtractVariables(content, context, intent string) map[string]string {
	variables := map[string]string{
		"topic":               "your inquiry",
		"signature":           "Customer Service Team",
		"context_information": context,
		"timestamp":           time.Now().Format("2006-01-02 15:04"),
	}

	firstSentence := strings.TrimSpace(strings.SplitN(content, ".", 2)[0])
	if m := topicPattern.FindStringSubmatch(firstSentence); m != nil {
		variables["topic"] = capitalize(strings.TrimSpace(m[2]))
	} else if firstSentence != "" {
		words := strings.Fields(firstSentence)
		if len(words) > 6 {
			words = words[:6]
		}
		variables["topic"] = capitalize(strings.Join(words, " "))
	}

	switch intent {
	case "complaint":
		variables["issue_description"] = "the issue you described"
		if m := issuePattern.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[3]) != "" {
			variables["issue_description"] = capitalize(strings.TrimSpace(m[3]))
		}
	case "request":
		variables["request_description"] = "your request"
		if m := requestPattern.FindStringSubmatch(content); m != nil && strings.TrimSpace(m[3]) != "" {
			variables["request_description"] = capitalize(strings.TrimSpace(m[3]))
		}
	case "escalation":
		variables["escalation_actions"] = "Escalating to the appropriate team"
		variables["immediate_steps"] = "We are prioritizing your case"
		variables["contact_person"] = "our escalation manager"
		variables["timeframe"] = "24 hours"
	}

	return variables
}

// Prepare selects a template and extracts its variables in one step.
func Prepare(intent, content, context string) Selection {
	key := Select(intent, content)
	body := Body(key)
	variables := ExtractVariables(content, context, intent)

	sel := Selection{
		Key:       key,
		Body:      body,
		Variables: variables,
		Missing:   missingVariables(body, variables),
	}
	logging.TemplatesDebug("Selected template %s (%d variables, %d missing)",
		sel.Key, len(sel.Variables), len(sel.Missing))
	return sel
}

// Render substitutes {placeholder} occurrences with their variable values.
// A line that consists solely of a placeholder bound to an empty value is
// dropped; placeholders without a binding are left in place.
func Render(body string, variables map[string]string) string {
	lines := strings.Split(body, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if m := placeholderPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
			if value, ok := variables[m[1]]; ok && value == "" {
				continue
			}
		}
		out = append(out, placeholderPattern.ReplaceAllStringFunc(line, func(ph string) string {
			name := ph[1 : len(ph)-1]
			if value, ok := variables[name]; ok {
				return value
			}
			return ph
		}))
	}
	return strings.Join(out, "\n")
}

// missingVariables lists placeholders in body with no binding in variables,
// in order of first appearance.
func missingVariables(body string, variables map[string]string) []string {
	var missing []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		if _, ok := variables[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
