package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"speakcoach/internal/app"
)

var (
	levelOptions    = []string{app.LevelBeginner, app.LevelIntermediate, app.LevelAdvanced}
	roleplayOptions = []string{
		app.RoleplayGeneral, app.RoleplayRestaurant, app.RoleplayInterview,
		app.RoleplayTravel, app.RoleplayMedical,
	}
)

const (
	settingLevel = iota
	settingRoleplay
	settingVoice
	settingKey
	settingCount
)

// settingsForm edits the persisted preferences: level, roleplay scenario,
// preferred voice, API key.
type settingsForm struct {
	sel    int
	level  string
	role   string
	voice  textinput.Model
	key    textinput.Model
	status string
}

func newSettingsForm(cfg app.Config) settingsForm {
	voice := textinput.New()
	voice.Placeholder = "system default"
	voice.SetValue(cfg.PreferredVoiceID)
	voice.CharLimit = 80

	key := textinput.New()
	key.Placeholder = "gsk_..."
	key.EchoMode = textinput.EchoPassword
	key.SetValue(cfg.APIKey)

	return settingsForm{
		level: app.ParseLevel(cfg.Level),
		role:  app.ParseRoleplay(cfg.Roleplay),
		voice: voice,
		key:   key,
	}
}

func (f settingsForm) typing() bool {
	return f.voice.Focused() || f.key.Focused()
}

func (f settingsForm) Update(msg tea.Msg) (settingsForm, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	f.voice, cmd = f.voice.Update(msg)
	cmds = append(cmds, cmd)
	f.key, cmd = f.key.Update(msg)
	cmds = append(cmds, cmd)
	return f, tea.Batch(cmds...)
}

func (f *settingsForm) focusSelected() {
	f.voice.Blur()
	f.key.Blur()
	switch f.sel {
	case settingVoice:
		f.voice.Focus()
	case settingKey:
		f.key.Focus()
	}
}

// cycle moves an enum row forward or backward through its options.
func cycle(options []string, current string, dir int) string {
	idx := 0
	for i, o := range options {
		if o == current {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(options)) % len(options)
	return options[idx]
}

func (m *Model) updateSettings(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.settings
	switch msg.String() {
	case "up":
		if f.sel > 0 {
			f.sel--
		}
		f.focusSelected()
		return m, nil
	case "down":
		if f.sel < settingCount-1 {
			f.sel++
		}
		f.focusSelected()
		return m, nil

	case "left", "right":
		// Enum rows cycle; on text rows the keys fall through to the field
		// so the cursor still moves.
		if f.sel == settingLevel || f.sel == settingRoleplay {
			dir := 1
			if msg.String() == "left" {
				dir = -1
			}
			if f.sel == settingLevel {
				f.level = cycle(levelOptions, f.level, dir)
			} else {
				f.role = cycle(roleplayOptions, f.role, dir)
			}
			return m, nil
		}

	case "enter":
		cfg := m.pipeline.Config()
		cfg.Level = f.level
		cfg.Roleplay = f.role
		cfg.PreferredVoiceID = strings.TrimSpace(f.voice.Value())
		key := strings.TrimSpace(f.key.Value())
		if key != "" && !app.ValidAPIKey(key) {
			f.status = "Key should start with gsk_; not saved."
			return m, nil
		}
		cfg.APIKey = key
		if err := app.SaveConfig(cfg, app.DefaultConfigPath()); err != nil {
			f.status = fmt.Sprintf("Save failed: %v", err)
			return m, nil
		}
		m.pipeline.SetConfig(cfg)
		f.status = "Saved."
		return m, nil
	}

	if f.typing() {
		var cmd tea.Cmd
		if f.voice.Focused() {
			f.voice, cmd = f.voice.Update(msg)
		} else {
			f.key, cmd = f.key.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) viewSettings() string {
	f := m.settings
	paneW := max(40, m.width-4)

	row := func(idx int, label, value string) string {
		line := fmt.Sprintf("%-16s %s", label, value)
		if idx == f.sel {
			return m.theme.Selected.Render("> " + line)
		}
		return "  " + m.theme.TopBar.Render(line)
	}

	var b strings.Builder
	b.WriteString(m.theme.PaneTitle.Render("Settings") + "\n\n")
	b.WriteString(row(settingLevel, "Level", f.level) + "\n")
	b.WriteString(row(settingRoleplay, "Scenario", f.role) + "\n")
	b.WriteString(row(settingVoice, "Voice", f.voice.View()) + "\n")
	b.WriteString(row(settingKey, "API key", f.key.View()) + "\n")
	if f.status != "" {
		b.WriteString("\n" + m.theme.Footer.Render(f.status) + "\n")
	}
	return m.theme.Pane.Width(paneW).Render(strings.TrimRight(b.String(), "\n"))
}
