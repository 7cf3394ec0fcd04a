package ui

import (
	"strings"

	"chatrelay/pkg/ui/styles"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

type span struct {
	text string
	bold bool
}

// renderMarkdown lays content out in lines no wider than width. It understands
// fenced code blocks and **bold** runs; everything else is wrapped as prose.
func renderMarkdown(content string, width int) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = stripControl(content)

	var out []string
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.ReplaceAll(line, "\t", "    ")
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, codeLines(line, width)...)
			continue
		}
		out = append(out, proseLines(line, width)...)
	}

	if len(out) == 0 {
		return []string{""}
	}
	return out
}

func proseLines(line string, width int) []string {
	spans := boldSpans(line)
	if len(spans) == 0 || width <= 0 {
		return []string{""}
	}

	var lines []string
	var current []span
	used := 0
	for _, sp := range spans {
		for _, piece := range chunkByWidth(sp.text, width) {
			w := runewidth.StringWidth(piece)
			if used > 0 && used+1+w > width {
				lines = append(lines, styleSpans(current))
				current, used = nil, 0
			}
			if used > 0 {
				used++
			}
			current = append(current, span{text: piece, bold: sp.bold})
			used += w
		}
	}
	if len(current) > 0 {
		lines = append(lines, styleSpans(current))
	}
	return lines
}

// boldSpans splits line into words, toggling bold at every "**".
func boldSpans(line string) []span {
	var spans []span
	bold := false
	for {
		idx := strings.Index(line, "**")
		segment := line
		if idx >= 0 {
			segment = line[:idx]
		}
		for _, word := range strings.Fields(segment) {
			spans = append(spans, span{text: word, bold: bold})
		}
		if idx < 0 {
			return spans
		}
		bold = !bold
		line = line[idx+2:]
	}
}

func styleSpans(spans []span) string {
	var sb strings.Builder
	for i, sp := range spans {
		if i > 0 {
			sb.WriteString(styles.TextStyle.Render(" "))
		}
		if sp.bold {
			sb.WriteString(styles.TextBoldStyle.Render(sp.text))
		} else {
			sb.WriteString(styles.TextStyle.Render(sp.text))
		}
	}
	return sb.String()
}

func codeLines(line string, width int) []string {
	if width <= 0 {
		return []string{line}
	}
	pieces := chunkByWidth(line, width)
	lines := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		lines = append(lines, styles.CodeStyle.Render(padRight(piece, width)))
	}
	return lines
}

// chunkByWidth cuts text into pieces of at most width cells.
func chunkByWidth(text string, width int) []string {
	if width <= 0 || text == "" {
		return []string{text}
	}

	var pieces []string
	var sb strings.Builder
	used := 0
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if used+rw > width && used > 0 {
			pieces = append(pieces, sb.String())
			sb.Reset()
			used = 0
		}
		sb.WriteRune(r)
		used += rw
	}
	if sb.Len() > 0 {
		pieces = append(pieces, sb.String())
	}
	return pieces
}

func truncate(text string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(text) <= width {
		return text
	}
	if width <= 3 {
		return runewidth.Truncate(text, width, "")
	}
	return runewidth.Truncate(text, width, "...")
}

func padRight(text string, width int) string {
	if gap := width - runewidth.StringWidth(text); gap > 0 {
		return text + strings.Repeat(" ", gap)
	}
	return text
}

// truncateStyled cuts a styled line to width visible cells.
func truncateStyled(text string, width int) string {
	return ansi.Truncate(text, width, "")
}

// padStyled pads an already styled line to width visible cells.
func padStyled(text string, width int) string {
	if gap := width - lipgloss.Width(text); gap > 0 {
		return text + strings.Repeat(" ", gap)
	}
	return text
}

func stripControl(content string) string {
	var sb strings.Builder
	sb.Grow(len(content))
	for _, r := range content {
		if r == '\n' || r == '\t' {
			sb.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
