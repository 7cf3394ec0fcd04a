// Package speech wraps provider audio calls with user-facing diagnostics.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"chatrelay/pkg/ai"
)

// DefaultOutputPath is where synthesized audio lands when no path is configured.
const DefaultOutputPath = "temp_audio_play.mp3"

// Reporter receives one human-readable diagnostic per failed operation.
type Reporter interface {
	Report(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

func (f ReporterFunc) Report(msg string) { f(msg) }

// LogReporter reports diagnostics through slog.
var LogReporter Reporter = ReporterFunc(func(msg string) {
	slog.Warn("speech_diagnostic", "message", msg)
})

// Service performs speech-to-text and text-to-speech. Failures never return
// errors; they produce ("", false) and exactly one diagnostic.
type Service struct {
	transcriber ai.Transcriber
	synthesizer ai.Synthesizer
	reporter    Reporter
	outputPath  string
}

// New builds a service. A nil transcriber or synthesizer makes that
// direction report "not supported". A nil reporter falls back to LogReporter.
func New(transcriber ai.Transcriber, synthesizer ai.Synthesizer, outputPath string, reporter Reporter) *Service {
	s := &Service{
		transcriber: transcriber,
		synthesizer: synthesizer,
		reporter:    reporter,
		outputPath:  outputPath,
	}
	if s.reporter == nil {
		s.reporter = LogReporter
	}
	if strings.TrimSpace(s.outputPath) == "" {
		s.outputPath = DefaultOutputPath
	}
	return s
}

// WithReporter returns a copy of s that sends diagnostics to r.
func (s *Service) WithReporter(r Reporter) *Service {
	c := *s
	if r != nil {
		c.reporter = r
	}
	return &c
}

// OutputPath is the file TextToSpeech writes to.
func (s *Service) OutputPath() string {
	return s.outputPath
}

// CanTranscribe reports whether the provider accepts audio input.
func (s *Service) CanTranscribe() bool { return s.transcriber != nil }

// CanSynthesize reports whether the provider produces audio.
func (s *Service) CanSynthesize() bool { return s.synthesizer != nil }

// SpeechToText transcribes the audio file at filePath.
func (s *Service) SpeechToText(ctx context.Context, filePath string) (string, bool) {
	if s.transcriber == nil {
		s.fail("Speech to text failed", fmt.Errorf("transcription %w", ai.ErrUnsupported))
		return "", false
	}

	text, err := s.transcriber.Transcribe(ctx, filePath)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty transcript")
	}
	if err != nil {
		s.fail("Speech to text failed", err)
		return "", false
	}

	slog.Info("speech_to_text_done", "file", filePath, "chars", len(text))
	return text, true
}

// TextToSpeech synthesizes text into the configured output file and returns its path.
func (s *Service) TextToSpeech(ctx context.Context, text string) (string, bool) {
	if !s.SynthesizeTo(ctx, text, s.outputPath) {
		return "", false
	}
	return s.outputPath, true
}

// SynthesizeTo synthesizes text into outPath.
func (s *Service) SynthesizeTo(ctx context.Context, text, outPath string) bool {
	if s.synthesizer == nil {
		s.fail("Text to speech failed", fmt.Errorf("speech synthesis %w", ai.ErrUnsupported))
		return false
	}

	if err := s.synthesizer.Synthesize(ctx, text, outPath); err != nil {
		s.fail("Text to speech failed", err)
		return false
	}

	slog.Info("text_to_speech_done", "path", outPath, "chars", len(text))
	return true
}

// AutoplayHTML embeds the mp3 at filePath in an autoplaying audio element.
// A blank or missing path yields ("", false) without a diagnostic.
func (s *Service) AutoplayHTML(filePath string) (string, bool) {
	if filePath == "" {
		return "", false
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		s.fail("Audio playback failed", err)
		return "", false
	}

	return audioElement(data), true
}

func audioElement(mp3 []byte) string {
	b64 := base64.StdEncoding.EncodeToString(mp3)
	return "<audio autoplay>\n" +
		`<source src="data:audio/mp3;base64,` + b64 + `" type="audio/mp3">` + "\n" +
		"</audio>"
}

func (s *Service) fail(prefix string, err error) {
	slog.Error("speech_error", "operation", prefix, "error", err)
	s.reporter.Report(prefix + ": " + err.Error())
}
