package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/custodia-labs/studyrag/internal/core/domain"
	"github.com/custodia-labs/studyrag/internal/logger"
)

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.svc.Query.Answer(r.Context(), domain.Query{
		DocumentID: chi.URLParam(r, "id"),
		OwnerID:    ownerFrom(r.Context()),
		Question:   req.Question,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

const writeWait = 10 * time.Second

// handleStream upgrades to a websocket, reads one question and writes
// AnswerEvents as JSON text frames until the done or error event. A client
// close cancels generation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	question := r.URL.Query().Get("q")
	if question == "" {
		var req queryRequest
		conn.SetReadDeadline(time.Now().Add(30 * time.Second)) //nolint:errcheck
		if err := conn.ReadJSON(&req); err != nil {
			logger.Debug("websocket read question: %v", err)
			return
		}
		question = req.Question
	}
	conn.SetReadDeadline(time.Time{}) //nolint:errcheck

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Any further read error means the client went away.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	events, err := s.svc.Query.Stream(ctx, domain.Query{
		DocumentID: chi.URLParam(r, "id"),
		OwnerID:    ownerFrom(r.Context()),
		Question:   question,
	})
	if err != nil {
		writeEvent(conn, domain.AnswerEvent{Type: domain.EventError, Err: err}) //nolint:errcheck
		closeNormal(conn)
		return
	}

	for ev := range events {
		if err := writeEvent(conn, ev); err != nil {
			cancel()
			// Drain so the producer can exit.
			for range events {
			}
			return
		}
	}
	closeNormal(conn)
}

// writeEvent sends ev as a JSON text frame. Error events carry the same
// code and message as the JSON error body would.
func writeEvent(conn *websocket.Conn, ev domain.AnswerEvent) error {
	if ev.Type == domain.EventError && ev.Err != nil {
		_, code, msg := publicError(ev.Err)
		ev.Error = code + ": " + msg
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return conn.WriteJSON(ev)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)) //nolint:errcheck
}

// checkOrigin applies the CORS origin list to websocket handshakes.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.CORSOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.CORSOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}
