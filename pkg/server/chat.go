package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"chatrelay/pkg/ai"

	"github.com/gorilla/websocket"
)

type chatRequest struct {
	Messages []ai.Message `json:"messages"`
}

type chatResponse struct {
	Content string `json:"content"`
}

type chunkPayload struct {
	Content string `json:"content"`
}

type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// decodeChat reads a chat request and checks every role.
func decodeChat(r io.Reader) ([]ai.Message, error) {
	var req chatRequest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if err := validateMessages(req.Messages); err != nil {
		return nil, err
	}
	return req.Messages, nil
}

func validateMessages(messages []ai.Message) error {
	for i, msg := range messages {
		if !ai.ValidRole(msg.Role) {
			return fmt.Errorf("messages[%d]: unsupported role %q", i, msg.Role)
		}
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	messages, err := decodeChat(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	content := s.relay.Complete(r.Context(), messages)
	writeJSON(w, http.StatusOK, chatResponse{Content: content})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	messages, err := decodeChat(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	for fragment := range s.relay.Stream(ctx, messages) {
		if ctx.Err() != nil {
			slog.Debug("chat_stream_client_gone", "request_id", RequestIDFrom(ctx))
			return
		}
		if err := writeEvent(w, "chunk", chunkPayload{Content: fragment}); err != nil {
			slog.Debug("chat_stream_write_error", "request_id", RequestIDFrom(ctx), "error", err)
			return
		}
		flusher.Flush()
	}

	_ = writeEvent(w, "done", struct{}{})
	flusher.Flush()
}

func writeEvent(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// handleChatWS relays one reply per inbound {messages} frame until the client hangs up.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("chat_ws_upgrade_error", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("chat_ws_read_error", "error", err)
			}
			return
		}
		if err := validateMessages(req.Messages); err != nil {
			if conn.WriteJSON(wsFrame{Type: "error", Error: err.Error()}) != nil {
				return
			}
			continue
		}

		for fragment := range s.relay.Stream(ctx, req.Messages) {
			if err := conn.WriteJSON(wsFrame{Type: "chunk", Content: fragment}); err != nil {
				slog.Debug("chat_ws_write_error", "error", err)
				return
			}
		}
		if err := conn.WriteJSON(wsFrame{Type: "done"}); err != nil {
			return
		}
	}
}
