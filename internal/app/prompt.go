package app

import (
	"fmt"
	"strings"
)

// scenarioPersona maps a roleplay value to the persona clause of the system
// prompt. Unknown scenarios roleplay as themselves, which keeps the set open.
func scenarioPersona(roleplay string) string {
	switch roleplay {
	case "", RoleplayGeneral:
		return "Daily conversation"
	case RoleplayRestaurant:
		return "Roleplay as: a waiter taking an order at a restaurant"
	case RoleplayInterview:
		return "Roleplay as: a job interviewer"
	case RoleplayTravel:
		return "Roleplay as: an airport and travel assistant"
	case RoleplayMedical:
		return "Roleplay as: a doctor at a medical appointment"
	default:
		return "Roleplay as: " + roleplay
	}
}

// BuildAnalysisPrompt renders the system instruction for one analysis
// request. The whole persona/level/format contract lives in the prompt, which
// keeps the client stateless.
func BuildAnalysisPrompt(level, roleplay string, conversational bool) string {
	level = ParseLevel(level)
	roleplay = ParseRoleplay(roleplay)

	var b strings.Builder
	b.WriteString("You are an expert English teacher. Analyze the user's speech transcript.\n\n")
	b.WriteString("CONTEXT:\n")
	fmt.Fprintf(&b, "- Student Level: %s (Adjust your tips and score accordingly).\n", level)
	fmt.Fprintf(&b, "- Scenario: %s.\n", scenarioPersona(roleplay))
	if conversational {
		b.WriteString("- Mode: conversation. Stay in character and keep the dialogue going.\n")
	}
	b.WriteString("\nReturn ONLY a JSON object with this exact structure (no markdown, no extra text):\n")
	b.WriteString("{\n")
	b.WriteString(`  "grammar_corrections": [` + "\n")
	b.WriteString(`    { "original": "substring of error", "correction": "corrected substring", "explanation": "brief reason" }` + "\n")
	b.WriteString("  ],\n")
	b.WriteString(`  "fluency_score": 0-100 (integer, baselined on level complexity),` + "\n")
	fmt.Fprintf(&b, "  \"tips\": [\"tip focused on %s level\", \"tip 2\"],\n", level)
	fmt.Fprintf(&b, "  \"positive_feedback\": \"one sentence of praise relevant to the %s context\",\n", roleplay)
	if conversational {
		b.WriteString(`  "reply": "your in-character reply that continues the conversation"` + "\n")
	} else {
		b.WriteString(`  "reply": null` + "\n")
	}
	b.WriteString("}\n")
	fmt.Fprintf(&b, "If the English is perfect for the %s level, grammar_corrections must be an empty array, never omitted.\n", level)
	if !conversational {
		b.WriteString("The reply field must be exactly null, never omitted.\n")
	}
	return b.String()
}
