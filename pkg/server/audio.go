package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"chatrelay/pkg/speech"
)

type transcriptionResponse struct {
	Text  *string `json:"text"`
	Error string  `json:"error,omitempty"`
}

type speechRequest struct {
	Text string `json:"text"`
}

// diagnostics collects speech failures for one request.
type diagnostics []string

func (d *diagnostics) Report(msg string) { *d = append(*d, msg) }

func (d diagnostics) String() string { return strings.Join(d, "; ") }

func (s *Server) handleTranscription(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxUploadBody); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file: "+err.Error())
		return
	}
	defer file.Close()

	// The upstream API infers the audio format from the file extension.
	tmp, err := os.CreateTemp("", "chatrelay-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var diag diagnostics
	text, ok := s.speech.WithReporter(&diag).SpeechToText(r.Context(), tmp.Name())
	if !ok {
		writeJSON(w, http.StatusBadGateway, transcriptionResponse{Error: diag.String()})
		return
	}
	writeJSON(w, http.StatusOK, transcriptionResponse{Text: &text})
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req speechRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	out, err := os.CreateTemp("", "chatrelay-speech-*.mp3")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	var diag diagnostics
	svc := s.speech.WithReporter(&diag)
	if !svc.SynthesizeTo(r.Context(), req.Text, outPath) {
		writeError(w, http.StatusBadGateway, diag.String())
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, ok := svc.AutoplayHTML(outPath)
		if !ok {
			writeError(w, http.StatusBadGateway, diag.String())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, html)
		return
	}

	audio, err := os.ReadFile(outPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	if _, err := w.Write(audio); err != nil {
		slog.Debug("speech_write_error", "error", err)
	}
}

var _ speech.Reporter = (*diagnostics)(nil)
