package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chatrelay/pkg/ai"
)

type fakeAudio struct {
	transcript string
	err        error
	audio      []byte
	gotText    string
	gotPath    string
}

func (f *fakeAudio) Transcribe(ctx context.Context, filePath string) (string, error) {
	f.gotPath = filePath
	return f.transcript, f.err
}

func (f *fakeAudio) Synthesize(ctx context.Context, text, outPath string) error {
	f.gotText = text
	f.gotPath = outPath
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(outPath, f.audio, 0600)
}

type recorder struct {
	msgs []string
}

func (r *recorder) Report(msg string) { r.msgs = append(r.msgs, msg) }

func TestSpeechToText(t *testing.T) {
	rec := &recorder{}
	svc := New(&fakeAudio{transcript: "turn on the lights"}, nil, "", rec)

	text, ok := svc.SpeechToText(context.Background(), "clip.wav")
	if !ok || text != "turn on the lights" {
		t.Fatalf("SpeechToText() = %q, %v", text, ok)
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("Expected no diagnostics, got %q", rec.msgs)
	}
}

func TestSpeechToText_Failure(t *testing.T) {
	tests := []struct {
		name        string
		transcriber ai.Transcriber
		want        string
	}{
		{
			name:        "provider error",
			transcriber: &fakeAudio{err: errors.New("invalid file format")},
			want:        "Speech to text failed: invalid file format",
		},
		{
			name:        "empty transcript",
			transcriber: &fakeAudio{transcript: "  "},
			want:        "Speech to text failed: empty transcript",
		},
		{
			name: "no audio support",
			want: "Speech to text failed: transcription not supported by provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			svc := New(tt.transcriber, nil, "", rec)

			text, ok := svc.SpeechToText(context.Background(), "clip.wav")
			if ok || text != "" {
				t.Fatalf("SpeechToText() = %q, %v; want failure", text, ok)
			}
			if len(rec.msgs) != 1 || rec.msgs[0] != tt.want {
				t.Fatalf("diagnostics = %q, want [%q]", rec.msgs, tt.want)
			}
		})
	}
}

func TestTextToSpeech_WritesConfiguredPath(t *testing.T) {
	out := filepath.Join(t.TempDir(), "reply.mp3")
	fake := &fakeAudio{audio: []byte("ID3")}
	rec := &recorder{}
	svc := New(nil, fake, out, rec)

	path, ok := svc.TextToSpeech(context.Background(), "Hello")
	if !ok || path != out {
		t.Fatalf("TextToSpeech() = %q, %v", path, ok)
	}
	if fake.gotText != "Hello" || fake.gotPath != out {
		t.Fatalf("Synthesize called with %q -> %q", fake.gotText, fake.gotPath)
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("Expected no diagnostics, got %q", rec.msgs)
	}
}

func TestTextToSpeech_Failure(t *testing.T) {
	rec := &recorder{}
	svc := New(nil, &fakeAudio{err: errors.New("quota exceeded")}, filepath.Join(t.TempDir(), "x.mp3"), rec)

	path, ok := svc.TextToSpeech(context.Background(), "Hello")
	if ok || path != "" {
		t.Fatalf("TextToSpeech() = %q, %v; want failure", path, ok)
	}
	if len(rec.msgs) != 1 || rec.msgs[0] != "Text to speech failed: quota exceeded" {
		t.Fatalf("diagnostics = %q", rec.msgs)
	}
}

func TestNew_DefaultOutputPath(t *testing.T) {
	svc := New(nil, nil, " ", nil)
	if svc.OutputPath() != DefaultOutputPath {
		t.Fatalf("OutputPath() = %q", svc.OutputPath())
	}
	if svc.CanTranscribe() || svc.CanSynthesize() {
		t.Fatal("Expected no audio capabilities")
	}
}

func TestAutoplayHTML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.mp3")
	if err := os.WriteFile(path, []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	svc := New(nil, nil, "", rec)

	html, ok := svc.AutoplayHTML(path)
	if !ok {
		t.Fatal("AutoplayHTML() failed")
	}
	want := "<audio autoplay>\n<source src=\"data:audio/mp3;base64,aGk=\" type=\"audio/mp3\">\n</audio>"
	if html != want {
		t.Fatalf("AutoplayHTML() = %q, want %q", html, want)
	}
}

func TestAutoplayHTML_MissingFileIsSilent(t *testing.T) {
	rec := &recorder{}
	svc := New(nil, nil, "", rec)

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.mp3")} {
		if html, ok := svc.AutoplayHTML(path); ok || html != "" {
			t.Fatalf("AutoplayHTML(%q) = %q, %v", path, html, ok)
		}
	}
	if len(rec.msgs) != 0 {
		t.Fatalf("Expected no diagnostics, got %q", rec.msgs)
	}
}

func TestAutoplayHTML_ReadFailureReports(t *testing.T) {
	rec := &recorder{}
	svc := New(nil, nil, "", rec)

	// A directory exists but cannot be read as a file.
	html, ok := svc.AutoplayHTML(t.TempDir())
	if ok || html != "" {
		t.Fatalf("AutoplayHTML() = %q, %v", html, ok)
	}
	if len(rec.msgs) != 1 || !strings.HasPrefix(rec.msgs[0], "Audio playback failed: ") {
		t.Fatalf("diagnostics = %q", rec.msgs)
	}
}

func TestWithReporter(t *testing.T) {
	base := &recorder{}
	other := &recorder{}
	svc := New(nil, nil, "", base)

	svc.WithReporter(other).SpeechToText(context.Background(), "x")
	if len(base.msgs) != 0 || len(other.msgs) != 1 {
		t.Fatalf("base=%q other=%q", base.msgs, other.msgs)
	}
}

func TestNew_SeparateCapabilities(t *testing.T) {
	rec := &recorder{}
	svc := New(&fakeAudio{transcript: "hi"}, nil, filepath.Join(t.TempDir(), "x.mp3"), rec)

	if !svc.CanTranscribe() || svc.CanSynthesize() {
		t.Fatalf("CanTranscribe=%v CanSynthesize=%v", svc.CanTranscribe(), svc.CanSynthesize())
	}
	if _, ok := svc.TextToSpeech(context.Background(), "Hello"); ok {
		t.Fatal("Expected synthesis to fail without a synthesizer")
	}
	want := "Text to speech failed: speech synthesis not supported by provider"
	if len(rec.msgs) != 1 || rec.msgs[0] != want {
		t.Fatalf("diagnostics = %q, want [%q]", rec.msgs, want)
	}
}
