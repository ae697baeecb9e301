// Package tui is the terminal presentation layer: onboarding, the practice
// loop, conversation mode, the history browser, and settings.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"speakcoach/internal/app"
	"speakcoach/internal/capture"
)

type view int

const (
	viewOnboarding view = iota
	viewPractice
	viewConversation
	viewHistory
	viewGrammar
	viewSettings
)

// Messages produced by async pipeline commands. All pipeline work runs inside
// tea.Cmds so the model itself stays single-threaded.
type levelMsg float64

type levelsClosedMsg struct{}

type turnDoneMsg struct {
	result *app.TurnResult
	err    error
}

type convReplyMsg struct {
	reply *app.Message
	err   error
}

type historyLoadedMsg struct {
	entries []app.HistoryEntry
	err     error
}

type configReloadedMsg app.Config

const maxWaveSamples = 120

type Model struct {
	pipeline *app.Pipeline
	recorder *capture.Recorder
	meter    *capture.Meter
	conv     *app.Conversation

	theme Theme
	view  view

	width  int
	height int

	// onboarding
	keyInput   textinput.Model
	onboardMsg string

	// practice
	recording  bool
	analyzing  bool
	levels     []float64
	transcript string
	result     *app.AnalysisResult
	errText    string
	spin       spinner.Model

	// conversation
	convInput textinput.Model
	convBusy  bool

	// history
	entries []app.HistoryEntry
	histSel int

	// settings
	settings settingsForm
}

func New(pipeline *app.Pipeline, recorder *capture.Recorder, meter *capture.Meter, conv *app.Conversation) *Model {
	t := NewTheme()

	ki := textinput.New()
	ki.Placeholder = "gsk_..."
	ki.EchoMode = textinput.EchoPassword
	ki.Focus()

	ci := textinput.New()
	ci.Placeholder = "Say something, then press Enter."
	ci.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = t.Spinner

	m := &Model{
		pipeline:  pipeline,
		recorder:  recorder,
		meter:     meter,
		conv:      conv,
		theme:     t,
		width:     100,
		height:    30,
		keyInput:  ki,
		convInput: ci,
		spin:      sp,
		settings:  newSettingsForm(pipeline.Config()),
	}

	if pipeline.Ready() {
		m.view = viewPractice
	} else {
		m.view = viewOnboarding
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case configReloadedMsg:
		m.pipeline.SetConfig(app.Config(msg))
		m.settings = newSettingsForm(app.Config(msg))
		return m, nil

	case levelMsg:
		m.levels = append(m.levels, float64(msg))
		if len(m.levels) > maxWaveSamples {
			m.levels = m.levels[len(m.levels)-maxWaveSamples:]
		}
		if m.recording {
			return m, m.waitLevel()
		}
		return m, nil

	case levelsClosedMsg:
		return m, nil

	case turnDoneMsg:
		m.analyzing = false
		if msg.err != nil {
			m.errText = friendlyError(msg.err)
			m.recorder.Reset()
			return m, nil
		}
		m.transcript = msg.result.Transcript
		m.result = msg.result.Analysis
		m.errText = ""
		return m, nil

	case convReplyMsg:
		m.convBusy = false
		if msg.err != nil {
			m.errText = friendlyError(msg.err)
			return m, nil
		}
		m.errText = ""
		return m, nil

	case historyLoadedMsg:
		if msg.err != nil {
			m.errText = friendlyError(msg.err)
			return m, nil
		}
		m.entries = msg.entries
		if m.histSel >= len(m.entries) {
			m.histSel = 0
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		if m.analyzing || m.convBusy {
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if m.recording {
				m.recorder.Fail()
			}
			m.pipeline.Close()
			return m, tea.Quit
		}
		return m.updateKey(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// View switching stays off while a recording is running so a stray tab
	// never abandons an open capture.
	if m.view != viewOnboarding && !m.recording {
		switch msg.String() {
		case "tab":
			m.cycleView()
			if m.view == viewHistory {
				return m, m.loadHistory()
			}
			return m, nil
		case "esc":
			m.view = viewPractice
			m.errText = ""
			return m, nil
		}
	}

	switch m.view {
	case viewOnboarding:
		return m.updateOnboarding(msg)
	case viewPractice:
		return m.updatePractice(msg)
	case viewConversation:
		return m.updateConversation(msg)
	case viewHistory:
		return m.updateHistory(msg)
	case viewGrammar:
		// Static reference, nothing to handle beyond the global keys.
		return m, nil
	case viewSettings:
		return m.updateSettings(msg)
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	cmds = append(cmds, cmd)
	m.convInput, cmd = m.convInput.Update(msg)
	cmds = append(cmds, cmd)
	m.settings, cmd = m.settings.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) cycleView() {
	switch m.view {
	case viewPractice:
		m.view = viewConversation
		m.convInput.Focus()
	case viewConversation:
		m.convInput.Blur()
		m.view = viewHistory
	case viewHistory:
		m.view = viewGrammar
	case viewGrammar:
		m.view = viewSettings
	default:
		m.view = viewPractice
	}
	m.errText = ""
}

func (m *Model) View() string {
	var body string
	switch m.view {
	case viewOnboarding:
		body = m.viewOnboarding()
	case viewPractice:
		body = m.viewPractice()
	case viewConversation:
		body = m.viewConversation()
	case viewHistory:
		body = m.viewHistory()
	case viewGrammar:
		body = m.viewGrammar()
	case viewSettings:
		body = m.viewSettings()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderTopBar(), body, m.renderFooter())
}

func (m *Model) renderTopBar() string {
	title := m.theme.TopBarTitle.Render("speakcoach")
	cfg := m.pipeline.Config()
	badge := m.theme.TopBarBadge.Render(viewLabel(m.view))
	meta := m.theme.TopBar.Render(fmt.Sprintf("%s · %s", cfg.Level, cfg.Roleplay))
	return title + "  " + badge + "  " + meta
}

func viewLabel(v view) string {
	switch v {
	case viewOnboarding:
		return "setup"
	case viewPractice:
		return "practice"
	case viewConversation:
		return "conversation"
	case viewHistory:
		return "history"
	case viewGrammar:
		return "grammar"
	case viewSettings:
		return "settings"
	}
	return ""
}

func (m *Model) renderFooter() string {
	var hints []string
	switch m.view {
	case viewOnboarding:
		hints = []string{"Enter save key", "Ctrl+C quit"}
	case viewPractice:
		hints = []string{"r record/stop", "Tab switch view", "Ctrl+C quit"}
	case viewConversation:
		hints = []string{"Enter send", "Tab switch view", "Ctrl+C quit"}
	case viewHistory:
		hints = []string{"↑/↓ select", "Enter restore", "d delete", "c clear all", "Tab switch view"}
	case viewGrammar:
		hints = []string{"Esc back to practice", "Tab switch view", "Ctrl+C quit"}
	case viewSettings:
		hints = []string{"↑/↓ field", "←/→ change", "Enter save", "Tab switch view"}
	}
	if m.errText != "" {
		return m.theme.RoleErr.Render(m.errText) + "  " + m.theme.Footer.Render(strings.Join(hints, "  |  "))
	}
	return m.theme.Footer.Render(strings.Join(hints, "  |  "))
}

// friendlyError maps pipeline errors onto the short messages the footer shows.
func friendlyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, app.ErrMissingCredential):
		return "No API key configured. Open settings to add one."
	case errors.Is(err, app.ErrCredentialRejected):
		return "API key rejected. Check it in settings."
	case errors.Is(err, app.ErrInputTooShort):
		return "Too short to analyze. Try a full sentence."
	case errors.Is(err, app.ErrEmptyAudio):
		return "No audio captured."
	case errors.Is(err, capture.ErrPermissionDenied):
		return "Microphone unavailable. Check the capture command."
	case errors.Is(err, app.ErrMalformedResponse):
		return "The analysis service returned an unusable response. Try again."
	default:
		return "Request failed: " + err.Error()
	}
}

// Commands.

func (m *Model) waitLevel() tea.Cmd {
	levels := m.meter.Levels()
	return func() tea.Msg {
		lv, ok := <-levels
		if !ok {
			return levelsClosedMsg{}
		}
		return levelMsg(lv)
	}
}

func (m *Model) runTurn(blob capture.Blob) tea.Cmd {
	p := m.pipeline
	return func() tea.Msg {
		result, err := p.RunTurn(context.Background(), blob)
		return turnDoneMsg{result: result, err: err}
	}
}

func (m *Model) submitConversation(text string) tea.Cmd {
	c := m.conv
	return func() tea.Msg {
		reply, err := c.Submit(context.Background(), text)
		return convReplyMsg{reply: reply, err: err}
	}
}

func (m *Model) loadHistory() tea.Cmd {
	store := m.pipeline.History()
	return func() tea.Msg {
		entries, err := store.List()
		return historyLoadedMsg{entries: entries, err: err}
	}
}

// Run starts the program. A config watcher, when available, relays reloads
// into the model as messages.
func Run(pipeline *app.Pipeline, recorder *capture.Recorder, meter *capture.Meter, conv *app.Conversation, watch func(onChange func(app.Config)) error) error {
	m := New(pipeline, recorder, meter, conv)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if watch != nil {
		if err := watch(func(cfg app.Config) {
			p.Send(configReloadedMsg(cfg))
		}); err != nil {
			return err
		}
	}
	_, err := p.Run()
	return err
}
