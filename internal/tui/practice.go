package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"speakcoach/internal/capture"
)

func (m *Model) updatePractice(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r", " ":
		if m.analyzing {
			return m, nil
		}
		if m.recording {
			return m.stopRecording()
		}
		return m.startRecording()
	}
	return m, nil
}

func (m *Model) startRecording() (tea.Model, tea.Cmd) {
	if !m.pipeline.Ready() {
		m.view = viewOnboarding
		m.keyInput.Focus()
		return m, nil
	}

	if err := m.recorder.Start(context.Background()); err != nil {
		if errors.Is(err, capture.ErrAlreadyRecording) {
			return m, nil
		}
		m.errText = friendlyError(err)
		m.recorder.Reset()
		return m, nil
	}

	m.recording = true
	m.errText = ""
	m.levels = nil
	return m, m.waitLevel()
}

func (m *Model) stopRecording() (tea.Model, tea.Cmd) {
	m.recording = false
	blob, err := m.recorder.Stop()
	if err != nil {
		if errors.Is(err, capture.ErrNoAudio) {
			// Nothing captured means nothing to transcribe; stay idle.
			m.errText = friendlyError(err)
			return m, nil
		}
		m.errText = friendlyError(err)
		m.recorder.Reset()
		return m, nil
	}

	m.analyzing = true
	return m, tea.Batch(m.runTurn(blob), m.spin.Tick)
}

func (m *Model) viewPractice() string {
	paneW := max(40, m.width-4)
	innerW := paneW - 4

	var wave string
	switch {
	case m.recording:
		wave = m.theme.Wave.Render(renderWave(m.levels, innerW)) + "\n" +
			m.theme.RoleErr.Render("● recording") + m.theme.Footer.Render("  press r to stop")
	case m.analyzing:
		wave = m.theme.WaveIdle.Render(renderWave(m.levels, innerW)) + "\n" +
			m.spin.View() + m.theme.Footer.Render(" analyzing…")
	default:
		wave = m.theme.WaveIdle.Render(strings.Repeat("▁", innerW)) + "\n" +
			m.theme.Footer.Render("press r to start recording")
	}
	wavePane := m.theme.Pane.Width(paneW).Render(wave)

	transcript := m.transcript
	if transcript == "" {
		transcript = m.theme.Footer.Render("Your transcript will appear here.")
	} else {
		transcript = lipgloss.NewStyle().Foreground(m.theme.TextPrimary).Width(innerW).Render(transcript)
	}
	transcriptPane := m.theme.Pane.Width(paneW).Render(
		m.theme.PaneTitle.Render("You said") + "\n" + transcript)

	feedbackPane := m.theme.Pane.Width(paneW).Render(renderFeedback(m.theme, m.result, innerW))

	return lipgloss.JoinVertical(lipgloss.Left, wavePane, transcriptPane, feedbackPane)
}
