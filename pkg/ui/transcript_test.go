package ui

import (
	"fmt"
	"strings"
	"testing"

	"chatrelay/pkg/ai"

	"github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

func TestTranscript_AppendAndLastAssistant(t *testing.T) {
	tr := NewTranscript()
	tr.SetSize(40, 5)

	if _, ok := tr.LastAssistant(); ok {
		t.Fatal("Expected no assistant reply on empty transcript")
	}

	tr.AppendUser("Hello AI")
	tr.StartAssistant()
	tr.AppendToLast("Hello")
	tr.AppendToLast(" world")

	msgs := tr.Messages()
	if len(msgs) != 2 || msgs[1].Role != ai.RoleAssistant || msgs[1].Content != "Hello world" {
		t.Fatalf("Unexpected messages %+v", msgs)
	}
	if reply, ok := tr.LastAssistant(); !ok || reply != "Hello world" {
		t.Fatalf("LastAssistant() = %q, %v", reply, ok)
	}
}

func TestTranscript_DropEmptyLast(t *testing.T) {
	tr := NewTranscript()
	tr.AppendUser("q")
	tr.StartAssistant()
	tr.DropEmptyLast()
	if len(tr.Messages()) != 1 {
		t.Fatalf("Expected empty assistant turn to be dropped, got %+v", tr.Messages())
	}

	tr.StartAssistant()
	tr.AppendToLast("kept")
	tr.DropEmptyLast()
	if len(tr.Messages()) != 2 {
		t.Fatalf("Expected non-empty turn to stay, got %+v", tr.Messages())
	}
}

func TestTranscript_LinesArePadded(t *testing.T) {
	tr := NewTranscript()
	tr.SetSize(20, 4)
	tr.AppendUser("hi")

	lines := tr.Lines()
	if len(lines) != 4 {
		t.Fatalf("Expected 4 lines, got %d", len(lines))
	}
	for i, line := range lines {
		if w := runewidth.StringWidth(ansi.Strip(line)); w != 20 {
			t.Fatalf("line %d width = %d, want 20", i, w)
		}
	}
}

func TestTranscript_ScrollAndFollow(t *testing.T) {
	tr := NewTranscript()
	tr.SetSize(30, 3)
	tr.StartAssistant()
	for i := 0; i < 10; i++ {
		tr.AppendToLast(fmt.Sprintf("\nline %d", i))
	}

	last := ansi.Strip(tr.Lines()[2])
	if !strings.Contains(last, "line 9") {
		t.Fatalf("Expected view to follow output, last line %q", last)
	}

	tr.ScrollUp(pageSize)
	if tr.scrollY != 0 || tr.follow {
		t.Fatalf("Expected top of transcript, scrollY=%d follow=%v", tr.scrollY, tr.follow)
	}

	tr.AppendToLast("\nline 10")
	if tr.scrollY != 0 {
		t.Fatal("Expected position to hold while scrolled up")
	}

	tr.ScrollDown(100)
	if !tr.follow || tr.scrollY != tr.maxScroll() {
		t.Fatalf("Expected follow at bottom, scrollY=%d", tr.scrollY)
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Run("wraps prose", func(t *testing.T) {
		lines := renderMarkdown("one two three four", 9)
		var plain []string
		for _, l := range lines {
			plain = append(plain, ansi.Strip(l))
		}
		want := []string{"one two", "three", "four"}
		if strings.Join(plain, "|") != strings.Join(want, "|") {
			t.Fatalf("renderMarkdown() = %q, want %q", plain, want)
		}
	})

	t.Run("code fence", func(t *testing.T) {
		lines := renderMarkdown("```\nx := 1\n```", 10)
		if len(lines) != 1 {
			t.Fatalf("Expected 1 code line, got %d", len(lines))
		}
		if got := ansi.Strip(lines[0]); got != "x := 1    " {
			t.Fatalf("Expected padded code line, got %q", got)
		}
	})

	t.Run("long word is split", func(t *testing.T) {
		lines := renderMarkdown("abcdefghij", 4)
		if len(lines) != 3 {
			t.Fatalf("Expected 3 lines, got %q", lines)
		}
	})

	t.Run("control characters stripped", func(t *testing.T) {
		lines := renderMarkdown("a\x1b[31mb", 10)
		if got := ansi.Strip(lines[0]); got != "a[31mb" {
			t.Fatalf("Expected escape byte removed, got %q", got)
		}
	})
}

func TestBoldSpans(t *testing.T) {
	spans := boldSpans("plain **strong words** end")
	want := []span{{"plain", false}, {"strong", true}, {"words", true}, {"end", false}}
	if len(spans) != len(want) {
		t.Fatalf("boldSpans() = %+v", spans)
	}
	for i := range want {
		if spans[i] != want[i] {
			t.Fatalf("boldSpans()[%d] = %+v, want %+v", i, spans[i], want[i])
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello world", 8); got != "hello..." {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("hi", 8); got != "hi" {
		t.Fatalf("truncate() = %q", got)
	}
	if got := truncate("hello", 0); got != "" {
		t.Fatalf("truncate() = %q", got)
	}
}
