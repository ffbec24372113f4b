package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codeshare/internal/models"
	"codeshare/internal/session"
	"codeshare/internal/store"
	"codeshare/internal/utils"
)

// maxFrameBytes bounds a single inbound websocket frame.
const maxFrameBytes = 1 << 20

type Handlers struct {
	log    *utils.Logger
	broker *session.Broker
}

func NewHandlers(log *utils.Logger, broker *session.Broker) *Handlers {
	return &Handlers{log: log, broker: broker}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// CreateSession creates a session, with a random invite code unless
// the caller supplies one. A taken code answers 409; the caller may
// retry with another.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	code, err := h.broker.CreateSession(r.Context(), req.InviteCode)
	switch {
	case errors.Is(err, session.ErrMalformedInviteCode):
		http.Error(w, "invite code must be short uppercase alphanumeric", http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrConflict):
		http.Error(w, "invite code already in use", http.StatusConflict)
		return
	case err != nil:
		h.log.Error("create session failed", "error", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(models.CreateSessionResponse{InviteCode: code})
}

func (h *Handlers) SessionInfo(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	info, err := h.broker.SessionInfo(r.Context(), code)
	if errors.Is(err, session.ErrInvalidInviteCode) {
		http.Error(w, "no session for this invite code", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("session info failed", "inviteCode", code, "error", err)
		http.Error(w, "could not read session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, info)
}

/*** Session WebSocket: join + edit fanout ***/
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func (h *Handlers) SessionWS(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	connID := r.URL.Query().Get("connectionId")
	if connID == "" {
		connID = uuid.New().String()
	}
	client := session.NewClient(connID, conn)

	// Every outbound frame, this handler's included, goes through the
	// client: gorilla allows one concurrent writer per connection, and
	// room fanout writes from other participants' goroutines.
	if err := h.broker.JoinSession(r.Context(), code, client); err != nil {
		if errors.Is(err, session.ErrInvalidInviteCode) {
			client.Send(errFrame("InvalidInviteCode", "no session for this invite code"))
		} else {
			h.log.Error("join failed", "inviteCode", code, "error", err)
			client.Send(errFrame("Internal", "could not join session"))
		}
		return
	}
	defer h.broker.Disconnect(connID)

	// The room sent the init frame during the join. Event loop; store
	// calls get a fresh context: the request context does not outlive
	// the hijacked connection reliably.
	for {
		var frame models.WSFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case models.FrameEdit:
			var e models.FileEdit
			marshal(frame.Data, &e)
			if e.Path == "" {
				client.Send(errFrame("BadEdit", "edit is missing a path"))
				continue
			}
			err := h.broker.SubmitEdit(context.Background(), connID, e.Path, e.Content)
			switch {
			case errors.Is(err, session.ErrNotAParticipant):
				// transport-layer bug or a connection that left
				// mid-flight: drop the edit, tell only the sender
				h.log.Warn("edit from non-participant dropped", "connectionId", connID, "path", e.Path)
				client.Send(errFrame("NotAParticipant", "connection is not joined to a session"))
			case errors.Is(err, session.ErrWriteThroughFailed):
				client.Send(models.WSFrame{
					Type: models.FrameWarning,
					Data: models.ErrorPayload{Code: "PersistenceFailed", Message: "edit applied but not persisted"},
				})
			}

		default:
			client.Send(errFrame("UnknownType", "unknown frame type"))
		}
	}
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }

func errFrame(code, msg string) models.WSFrame {
	return models.WSFrame{Type: models.FrameError, Data: models.ErrorPayload{Code: code, Message: msg}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
