package ui

import (
	"strings"

	"chatrelay/pkg/ai"
)

const (
	userLabel      = "**You:** "
	assistantLabel = "**Assistant:** "
	turnSeparator  = "───────────────────────"
	pageSize       = 10
)

// Transcript holds the conversation and its wrapped, scrollable rendering.
type Transcript struct {
	messages []ai.Message
	width    int
	height   int
	lines    []string
	scrollY  int
	follow   bool
}

// NewTranscript creates an empty transcript that follows new output.
func NewTranscript() *Transcript {
	return &Transcript{follow: true}
}

// SetSize sets the visible area.
func (t *Transcript) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.refresh()
}

// Messages returns the conversation so far.
func (t *Transcript) Messages() []ai.Message {
	return t.messages
}

// AppendUser adds a user turn.
func (t *Transcript) AppendUser(content string) {
	t.messages = append(t.messages, ai.Message{Role: ai.RoleUser, Content: content})
	t.follow = true
	t.refresh()
}

// StartAssistant opens an empty assistant turn that fragments are appended to.
func (t *Transcript) StartAssistant() {
	t.messages = append(t.messages, ai.Message{Role: ai.RoleAssistant})
	t.refresh()
}

// AppendToLast appends delta to the last message.
func (t *Transcript) AppendToLast(delta string) {
	if len(t.messages) == 0 {
		return
	}
	t.messages[len(t.messages)-1].Content += delta
	t.refresh()
}

// DropEmptyLast removes a trailing assistant turn that never received text.
func (t *Transcript) DropEmptyLast() {
	n := len(t.messages)
	if n > 0 && t.messages[n-1].Role == ai.RoleAssistant && t.messages[n-1].Content == "" {
		t.messages = t.messages[:n-1]
		t.refresh()
	}
}

// LastAssistant returns the most recent non-empty assistant reply.
func (t *Transcript) LastAssistant() (string, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == ai.RoleAssistant && t.messages[i].Content != "" {
			return t.messages[i].Content, true
		}
	}
	return "", false
}

// ScrollUp moves the view up by n lines.
func (t *Transcript) ScrollUp(n int) {
	t.scrollY -= n
	if t.scrollY < 0 {
		t.scrollY = 0
	}
	t.follow = false
}

// ScrollDown moves the view down by n lines; reaching the end resumes following.
func (t *Transcript) ScrollDown(n int) {
	t.scrollY += n
	if limit := t.maxScroll(); t.scrollY >= limit {
		t.scrollY = limit
		t.follow = true
	}
}

// Lines returns exactly height lines, padded to width.
func (t *Transcript) Lines() []string {
	out := make([]string, 0, t.height)
	end := t.scrollY + t.height
	if end > len(t.lines) {
		end = len(t.lines)
	}
	for i := t.scrollY; i < end; i++ {
		out = append(out, padStyled(t.lines[i], t.width))
	}
	for len(out) < t.height {
		out = append(out, strings.Repeat(" ", t.width))
	}
	return out
}

func (t *Transcript) render() string {
	var sb strings.Builder
	for i, msg := range t.messages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		if msg.Role == ai.RoleUser {
			if i > 0 {
				sb.WriteString(turnSeparator + "\n\n")
			}
			sb.WriteString(userLabel)
		} else {
			sb.WriteString(assistantLabel)
		}
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

func (t *Transcript) refresh() {
	if t.width <= 0 {
		t.lines = nil
		t.scrollY = 0
		return
	}
	if len(t.messages) == 0 {
		t.lines = nil
	} else {
		t.lines = renderMarkdown(t.render(), t.width)
	}
	if t.follow || t.scrollY > t.maxScroll() {
		t.scrollY = t.maxScroll()
	}
}

func (t *Transcript) maxScroll() int {
	height := t.height
	if height < 1 {
		height = 1
	}
	if limit := len(t.lines) - height; limit > 0 {
		return limit
	}
	return 0
}
