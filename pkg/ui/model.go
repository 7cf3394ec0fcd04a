// Package ui implements the interactive terminal chat.
package ui

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"slices"
	"strings"

	"chatrelay/pkg/ai"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/ui/styles"

	"charm.land/bubbles/v2/textarea"
	tea "charm.land/bubbletea/v2"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
)

const (
	inputHeight = 3
	footerHint  = "Enter Send | Esc Cancel | Ctrl+Y Copy | PgUp/PgDn Scroll | Ctrl+C Quit"

	statusReady      = "Ready"
	statusStreaming  = "Streaming..."
	statusCancelling = "Cancelling..."
	statusCancelled  = "Cancelled"
	statusCopied     = "Copied reply to clipboard"
	statusNoReply    = "Nothing to copy yet"
	statusFailed     = "Reply failed"
)

// Streamer produces a reply as a sequence of fragments.
type Streamer interface {
	Stream(ctx context.Context, conv []ai.Message) iter.Seq[string]
}

// fragmentMsg carries one pulled fragment; ok is false when the sequence ended.
type fragmentMsg struct {
	turn int
	text string
	ok   bool
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	streamer   Streamer
	title      string
	transcript *Transcript
	input      textarea.Model
	clipboard  io.Writer

	width  int
	height int
	status string
	failed bool

	// Active reply. next must not be called while a pull is outstanding,
	// and stop only runs from Update when pulling is false.
	streaming  bool
	pulling    bool
	cancelling bool
	turn       int
	next       func() (string, bool)
	stop       func()
	cancel     context.CancelFunc
}

// NewModel creates the chat screen. title is shown in the header, usually
// the provider and model name.
func NewModel(streamer Streamer, title string) *Model {
	input := textarea.New()
	input.Placeholder = "Ask me anything..."
	input.ShowLineNumbers = false
	input.SetHeight(inputHeight)
	input.Focus()

	return &Model{
		streamer:   streamer,
		title:      title,
		transcript: NewTranscript(),
		input:      input,
		clipboard:  os.Stdout,
		status:     statusReady,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case fragmentMsg:
		return m, m.handleFragment(msg)

	case tea.KeyPressMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyPressMsg) tea.Cmd {
	switch msg.String() {
	case "ctrl+c":
		m.release()
		return tea.Quit
	case "enter":
		return m.submit()
	case "esc":
		m.cancelReply()
		return nil
	case "ctrl+y":
		return m.copyLastReply()
	case "pgup":
		m.transcript.ScrollUp(pageSize)
		return nil
	case "pgdown":
		m.transcript.ScrollDown(pageSize)
		return nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// submit sends the typed message and starts pulling the reply.
func (m *Model) submit() tea.Cmd {
	if m.streaming {
		return nil
	}
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return nil
	}
	m.input.Reset()

	m.transcript.AppendUser(content)
	history := slices.Clone(m.transcript.Messages())
	m.transcript.StartAssistant()

	ctx, cancel := context.WithCancel(context.Background())
	next, stop := iter.Pull(m.streamer.Stream(ctx, history))

	m.turn++
	m.streaming = true
	m.cancelling = false
	m.failed = false
	m.next, m.stop, m.cancel = next, stop, cancel
	m.status = statusStreaming

	slog.Debug("chat_submit", "turn", m.turn, "history", len(history))
	return m.pull()
}

// pull asks for the next fragment off the event loop.
func (m *Model) pull() tea.Cmd {
	next, turn := m.next, m.turn
	m.pulling = true
	return func() tea.Msg {
		text, ok := next()
		return fragmentMsg{turn: turn, text: text, ok: ok}
	}
}

func (m *Model) handleFragment(msg fragmentMsg) tea.Cmd {
	if msg.turn != m.turn || !m.streaming {
		return nil
	}
	m.pulling = false

	if m.cancelling {
		m.finish(statusCancelled)
		return nil
	}
	if !msg.ok {
		if m.failed {
			m.finish(statusFailed)
		} else {
			m.finish(statusReady)
		}
		return nil
	}

	if relay.IsApology(msg.text) {
		m.failed = true
	}
	m.transcript.AppendToLast(msg.text)
	return m.pull()
}

// cancelReply stops the running reply; text received so far is kept.
func (m *Model) cancelReply() {
	if !m.streaming || m.cancelling {
		return
	}
	m.cancelling = true
	m.status = statusCancelling
	m.cancel()
	if !m.pulling {
		m.finish(statusCancelled)
	}
}

func (m *Model) finish(status string) {
	if m.stop != nil {
		m.stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.next, m.stop, m.cancel = nil, nil, nil
	m.streaming = false
	m.cancelling = false
	m.transcript.DropEmptyLast()
	m.status = status
	slog.Debug("chat_reply_finished", "turn", m.turn, "status", status)
}

// release cancels any running reply before the program exits. stop is left
// alone while a pull is outstanding; the cancelled context unblocks it.
func (m *Model) release() {
	if m.cancel != nil {
		m.cancel()
	}
	if !m.pulling && m.stop != nil {
		m.stop()
		m.stop = nil
	}
	m.streaming = false
}

func (m *Model) copyLastReply() tea.Cmd {
	text, ok := m.transcript.LastAssistant()
	if !ok {
		m.status = statusNoReply
		return nil
	}
	m.status = statusCopied
	out := m.clipboard
	return func() tea.Msg {
		_, _ = fmt.Fprint(out, osc52.New(text))
		return nil
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.SetWidth(width)
	m.transcript.SetSize(width, m.transcriptHeight())
}

// transcriptHeight leaves room for header, separator, input, and status bar.
func (m *Model) transcriptHeight() int {
	h := m.height - 3 - inputHeight
	if h < 1 {
		return 1
	}
	return h
}

// View implements tea.Model.
func (m *Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

func (m *Model) render() string {
	if m.width <= 0 {
		return "Loading..."
	}

	lines := make([]string, 0, m.height)
	lines = append(lines, padStyled(styles.TitleStyle.Render(truncate(m.title, m.width)), m.width))
	lines = append(lines, m.transcript.Lines()...)
	lines = append(lines, styles.SeparatorStyle.Render(strings.Repeat("─", m.width)))

	inputLines := strings.Split(m.input.View(), "\n")
	for i := 0; i < inputHeight; i++ {
		line := ""
		if i < len(inputLines) {
			line = inputLines[i]
		}
		lines = append(lines, padStyled(line, m.width))
	}

	lines = append(lines, m.statusLine())
	return strings.Join(lines, "\n")
}

func (m *Model) statusLine() string {
	status := m.status
	switch {
	case m.streaming:
		status = styles.BusyStyle.Render(status)
	case m.status == statusFailed:
		status = styles.ErrorStyle.Render(status)
	}
	hint := styles.FooterStyle.Render(footerHint)
	return truncateStyled(status+"  "+hint, m.width)
}
