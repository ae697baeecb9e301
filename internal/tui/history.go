package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"speakcoach/internal/app"
)

func (m *Model) updateHistory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.histSel > 0 {
			m.histSel--
		}
		return m, nil
	case "down", "j":
		if m.histSel < len(m.entries)-1 {
			m.histSel++
		}
		return m, nil

	case "enter":
		if m.histSel >= len(m.entries) {
			return m, nil
		}
		// Restoring a session brings back the transcript, the feedback, and
		// the settings it was recorded under.
		entry := m.entries[m.histSel]
		m.transcript = entry.Transcript
		analysis := entry.Analysis
		m.result = &analysis
		cfg := m.pipeline.Config()
		cfg.Level = entry.Level
		cfg.Roleplay = entry.Roleplay
		m.pipeline.SetConfig(cfg)
		m.settings = newSettingsForm(cfg)
		m.view = viewPractice
		return m, nil

	case "d":
		if m.histSel >= len(m.entries) {
			return m, nil
		}
		id := m.entries[m.histSel].ID
		store := m.pipeline.History()
		return m, func() tea.Msg {
			if err := store.Remove(id); err != nil {
				return historyLoadedMsg{err: err}
			}
			entries, err := store.List()
			return historyLoadedMsg{entries: entries, err: err}
		}

	case "c":
		store := m.pipeline.History()
		return m, func() tea.Msg {
			if err := store.Clear(); err != nil {
				return historyLoadedMsg{err: err}
			}
			return historyLoadedMsg{entries: []app.HistoryEntry{}}
		}
	}
	return m, nil
}

func (m *Model) viewHistory() string {
	paneW := max(40, m.width-4)
	innerW := paneW - 4

	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Past sessions") + "\n\n")
	if len(m.entries) == 0 {
		b.WriteString(m.theme.Footer.Render("No sessions yet. Record something in practice mode."))
	}
	for i, entry := range m.entries {
		marker := "  "
		line := fmt.Sprintf("%s  %s · %s · %d/100",
			entry.Timestamp.Local().Format("Jan 2 15:04"),
			entry.Level, entry.Roleplay, entry.Analysis.FluencyScore)
		excerpt := entry.Transcript
		if len(excerpt) > innerW-6 && innerW > 7 {
			excerpt = excerpt[:innerW-7] + "…"
		}
		if i == m.histSel {
			marker = m.theme.Selected.Render("> ")
			line = m.theme.Selected.Render(line)
		} else {
			line = m.theme.TopBar.Render(line)
		}
		b.WriteString(marker + line + "\n")
		b.WriteString("    " + m.theme.Footer.Render(excerpt) + "\n")
	}
	return m.theme.Pane.Width(paneW).Render(strings.TrimRight(b.String(), "\n"))
}
