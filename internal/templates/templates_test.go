package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name    string
		intent  string
		content string
		want    string
	}{
		{"question plain", "question", "How do I change my plan?", "question_general"},
		{"question technical", "question", "I get an error during setup", "question_technical"},
		{"question bug word", "question", "There is a bug in the export", "question_technical"},
		{"complaint", "complaint", "This is unacceptable", "complaint_acknowledgment"},
		{"escalation", "escalation", "I need a manager now", "escalation_urgent"},
		{"request fulfillable", "request", "Please send me the report", "request_fulfillment"},
		{"request blocked by policy", "request", "I know your policy says otherwise but please help", "request_cannot_fulfill"},
		{"unknown intent", "spam", "buy now", "question_general"},
		{"empty intent", "", "hello", "question_general"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.intent, tt.content))
		})
	}
}

func TestBodyFallsBackToGeneral(t *testing.T) {
	assert.Equal(t, Body("question_general"), Body("no_such_template"))
}

func TestKeysCoversAllTemplates(t *testing.T) {
	assert.Equal(t, []string{
		"complaint_acknowledgment",
		"escalation_urgent",
		"question_general",
		"question_technical",
		"request_cannot_fulfill",
		"request_fulfillment",
	}, Keys())
}

func TestExtractVariablesTopicFromFirstSentence(t *testing.T) {
	vars := ExtractVariables("I am writing about my billing statement. It looks wrong.", "", "question")
	assert.Equal(t, "My billing statement", vars["topic"])
}

func TestExtractVariablesTopicFallbackFirstWords(t *testing.T) {
	vars := ExtractVariables("The export keeps failing every single time I try.", "", "question")
	assert.Equal(t, "The export keeps failing every single", vars["topic"])
}

func TestExtractVariablesTopicDefault(t *testing.T) {
	vars := ExtractVariables("", "", "question")
	assert.Equal(t, "your inquiry", vars["topic"])
}

func TestExtractVariablesComplaintIssue(t *testing.T) {
	vars := ExtractVariables("I have a problem with the invoice totals", "", "complaint")
	assert.Equal(t, "The invoice totals", vars["issue_description"])

	vars = ExtractVariables("I complain!", "", "complaint")
	assert.Equal(t, "the issue you described", vars["issue_description"])
}

func TestExtractVariablesRequestDescription(t *testing.T) {
	vars := ExtractVariables("I would like a copy of my contract", "", "request")
	assert.Equal(t, "A copy of my contract", vars["request_description"])

	vars = ExtractVariables("Need it now", "", "request")
	assert.Equal(t, "your request", vars["request_description"])
}

func TestExtractVariablesEscalationDefaults(t *testing.T) {
	vars := ExtractVariables("Get me a supervisor", "", "escalation")
	assert.Equal(t, "Escalating to the appropriate team", vars["escalation_actions"])
	assert.Equal(t, "We are prioritizing your case", vars["immediate_steps"])
	assert.Equal(t, "our escalation manager", vars["contact_person"])
	assert.Equal(t, "24 hours", vars["timeframe"])
}

func TestExtractVariablesCarriesContextAndSignature(t *testing.T) {
	vars := ExtractVariables("hello", "retrieved facts", "question")
	assert.Equal(t, "retrieved facts", vars["context_information"])
	assert.Equal(t, "Customer Service Team", vars["signature"])
	assert.NotEmpty(t, vars["timestamp"])
}

func TestRenderSubstitutesAndDropsEmptyLines(t *testing.T) {
	body := "Hello {topic}.\n\n{context_information}\n\nBye,\n{signature}\n"
	out := Render(body, map[string]string{
		"topic":               "billing",
		"context_information": "",
		"signature":           "Team",
	})

	assert.Contains(t, out, "Hello billing.")
	assert.Contains(t, out, "Team")
	assert.NotContains(t, out, "{context_information}")
	assert.NotContains(t, out, "{topic}")
}

func TestRenderLeavesUnboundPlaceholders(t *testing.T) {
	out := Render("Steps: {solution_steps}", map[string]string{})
	assert.Equal(t, "Steps: {solution_steps}", out)
}

func TestPrepareEscalationRendersWithoutGaps(t *testing.T) {
	sel := Prepare("escalation", "This is urgent regarding my account suspension", "context here")

	require.Equal(t, "escalation_urgent", sel.Key)
	rendered := Render(sel.Body, sel.Variables)
	// Every placeholder in the escalation template has an extracted value.
	assert.Empty(t, sel.Missing)
	assert.NotContains(t, rendered, "{")
	assert.Contains(t, rendered, "our escalation manager")
	assert.Contains(t, rendered, "24 hours")
}

func TestPrepareReportsMissingVariables(t *testing.T) {
	sel := Prepare("question", "Why is there an error in the setup?", "")

	require.Equal(t, "question_technical", sel.Key)
	assert.Contains(t, sel.Missing, "solution_steps")
	assert.Contains(t, sel.Missing, "issue_description")
	assert.NotContains(t, sel.Missing, "topic")
	assert.NotContains(t, sel.Missing, "signature")
}

func TestRenderedGeneralTemplateKeepsStructure(t *testing.T) {
	sel := Prepare("question", "Tell me about the premium plan.", "The premium plan costs 20 dollars.")
	rendered := Render(sel.Body, sel.Variables)

	assert.Contains(t, rendered, "Thank you for your inquiry regarding The premium plan")
	assert.Contains(t, rendered, "The premium plan costs 20 dollars.")
	assert.True(t, strings.Contains(rendered, "Best regards,"))
}
