package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"speakcoach/internal/app"
)

func (m *Model) updateOnboarding(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.keyInput.Value())
		if key == "" {
			m.onboardMsg = "Please enter an API key."
			return m, nil
		}
		if !app.ValidAPIKey(key) {
			m.onboardMsg = "That doesn't look like a Groq key (should start with gsk_)."
			return m, nil
		}

		cfg := m.pipeline.Config()
		cfg.APIKey = key
		if err := app.SaveConfig(cfg, app.DefaultConfigPath()); err != nil {
			m.onboardMsg = fmt.Sprintf("Could not save config: %v", err)
			return m, nil
		}
		m.pipeline.SetConfig(cfg)
		m.settings = newSettingsForm(cfg)
		m.keyInput.Blur()
		m.view = viewPractice
		return m, nil
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

func (m *Model) viewOnboarding() string {
	var b strings.Builder
	b.WriteString(m.theme.TopBarTitle.Render("Welcome to speakcoach") + "\n\n")
	b.WriteString("Practice speaking English and get instant feedback on your\n")
	b.WriteString("grammar and fluency.\n\n")
	b.WriteString("You need a Groq API key to continue. Get one for free at\n")
	b.WriteString(m.theme.TopBarBadge.Render("https://console.groq.com/keys") + "\n\n")
	b.WriteString(m.theme.InputBox.Width(min(60, m.width-4)).Render(m.keyInput.View()) + "\n")
	if m.onboardMsg != "" {
		b.WriteString("\n" + m.theme.RoleErr.Render(m.onboardMsg) + "\n")
	}
	return m.theme.Pane.Width(min(72, m.width-2)).Render(b.String())
}
