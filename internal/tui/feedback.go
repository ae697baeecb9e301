package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"speakcoach/internal/app"
)

// scoreStyle buckets a fluency score into a color band.
func (t Theme) scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 80:
		return t.ScoreGood
	case score >= 50:
		return t.ScoreMid
	default:
		return t.ScoreLow
	}
}

// renderFeedback formats one analysis result as the feedback card: score,
// corrections (or the perfect-grammar line when there are none), tips, praise.
func renderFeedback(t Theme, result *app.AnalysisResult, width int) string {
	if result == nil {
		return t.Footer.Render("Record something to get feedback.")
	}
	if width < 20 {
		width = 20
	}

	var b strings.Builder
	score := t.scoreStyle(result.FluencyScore).Render(fmt.Sprintf("%d/100", result.FluencyScore))
	b.WriteString(t.PaneTitle.Render("Fluency") + " " + score + "\n\n")

	if len(result.GrammarCorrections) == 0 {
		b.WriteString(t.ScoreGood.Render("✓ Perfect grammar!") + "\n")
	} else {
		b.WriteString(t.PaneTitle.Render("Corrections") + "\n")
		for _, c := range result.GrammarCorrections {
			line := fmt.Sprintf("  %s → %s", c.Original, c.Correction)
			b.WriteString(lipgloss.NewStyle().Foreground(t.TextPrimary).Render(line) + "\n")
			if c.Explanation != "" {
				b.WriteString(t.Footer.Render("    "+c.Explanation) + "\n")
			}
		}
	}

	if len(result.Tips) > 0 {
		b.WriteString("\n" + t.PaneTitle.Render("Tips") + "\n")
		for _, tip := range result.Tips {
			b.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Width(width).Render("  • "+tip) + "\n")
		}
	}

	if result.PositiveFeedback != "" {
		b.WriteString("\n" + t.ScoreGood.Render("★ ") +
			lipgloss.NewStyle().Foreground(t.TextPrimary).Width(width-2).Render(result.PositiveFeedback) + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
