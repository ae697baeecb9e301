package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// tenseRef is one row of the built-in tense cheat sheet.
type tenseRef struct {
	name      string
	usage     string
	structure string
	example   string
}

var tenseRefs = []tenseRef{
	{
		name:      "Simple Present",
		usage:     "Habits, general truths",
		structure: "Subject + Verb (s/es)",
		example:   "She plays the piano.",
	},
	{
		name:      "Present Continuous",
		usage:     "Actions happening now",
		structure: "Subject + am/is/are + Verb-ing",
		example:   "They are watching TV.",
	},
	{
		name:      "Present Perfect",
		usage:     "Past actions with present relevance",
		structure: "Subject + have/has + V3 (Past Participle)",
		example:   "I have finished my homework.",
	},
	{
		name:      "Simple Past",
		usage:     "Completed past actions",
		structure: "Subject + V2 (Past Form)",
		example:   "He visited Paris last year.",
	},
	{
		name:      "Future Simple",
		usage:     "Predictions, promises",
		structure: "Subject + will + Verb",
		example:   "I will call you later.",
	},
}

func (m *Model) viewGrammar() string {
	paneW := max(40, m.width-4)
	innerW := paneW - 4

	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Cheat sheet: master tenses") + "\n\n")
	for _, ref := range tenseRefs {
		b.WriteString(m.theme.RoleYou.Render(ref.name) + "\n")
		b.WriteString("  " + m.theme.Footer.Render("Use: "+ref.usage) + "\n")
		b.WriteString("  " + lipgloss.NewStyle().Foreground(m.theme.TextPrimary).Width(innerW).Render(ref.structure) + "\n")
		b.WriteString("  " + m.theme.Footer.Italic(true).Render("\""+ref.example+"\"") + "\n\n")
	}
	return m.theme.Pane.Width(paneW).Render(strings.TrimRight(b.String(), "\n"))
}
