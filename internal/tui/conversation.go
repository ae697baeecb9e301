package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"speakcoach/internal/app"
)

func (m *Model) updateConversation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if m.convBusy {
			return m, nil
		}
		text := strings.TrimSpace(m.convInput.Value())
		if text == "" {
			return m, nil
		}
		m.convInput.Reset()
		m.convBusy = true
		m.errText = ""
		return m, tea.Batch(m.submitConversation(text), m.spin.Tick)
	}

	var cmd tea.Cmd
	m.convInput, cmd = m.convInput.Update(msg)
	return m, cmd
}

func (m *Model) viewConversation() string {
	paneW := max(40, m.width-4)
	innerW := paneW - 4

	cfg := m.pipeline.Config()
	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render(fmt.Sprintf("Scenario: %s", cfg.Roleplay)) + "\n\n")

	msgs := m.conv.Messages()
	if len(msgs) == 0 {
		b.WriteString(m.theme.Footer.Render("Start the conversation below. The coach stays in character\nand corrects your grammar as you go."))
	}
	// Show the tail of the thread that fits a small pane.
	start := 0
	if len(msgs) > 8 {
		start = len(msgs) - 8
	}
	for _, msg := range msgs[start:] {
		b.WriteString(m.renderBubble(msg, innerW) + "\n")
	}
	if m.convBusy {
		b.WriteString(m.spin.View() + m.theme.Footer.Render(" thinking…") + "\n")
	}
	thread := m.theme.Pane.Width(paneW).Render(strings.TrimRight(b.String(), "\n"))

	input := m.theme.InputBox.Width(paneW).Render(m.convInput.View())
	return lipgloss.JoinVertical(lipgloss.Left, thread, input)
}

func (m *Model) renderBubble(msg app.Message, width int) string {
	var head string
	if msg.Role == app.RoleUser {
		head = m.theme.RoleYou.Render("YOU")
	} else {
		head = m.theme.RoleAI.Render("COACH")
	}
	body := lipgloss.NewStyle().Foreground(m.theme.TextPrimary).Width(width).Render(msg.Content)
	out := head + "\n" + body

	// AI bubbles carry the grammar check for the user's previous line.
	if msg.Role == app.RoleAI && msg.Analysis != nil {
		if len(msg.Analysis.GrammarCorrections) == 0 {
			out += "\n" + m.theme.ScoreGood.Render("  ✓ perfect grammar")
		} else {
			for _, c := range msg.Analysis.GrammarCorrections {
				out += "\n" + m.theme.Footer.Render(fmt.Sprintf("  ✎ %s → %s", c.Original, c.Correction))
			}
		}
	}
	return out
}
