package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"codeshare/internal/metrics"
	"codeshare/internal/models"
	"codeshare/internal/store"
	"codeshare/internal/utils"
)

var (
	// ErrNotAParticipant is returned when an edit arrives from a
	// connection that never joined, or already left, the room.
	ErrNotAParticipant = errors.New("connection is not a participant of this room")

	// ErrWriteThroughFailed marks an edit that was applied and
	// broadcast but could not be persisted. The edit is accepted;
	// callers surface this to the sender as a warning only.
	ErrWriteThroughFailed = errors.New("persistence write failed")
)

// Room is the live representative of one session and the single
// serialization domain for its document state: every join, leave and
// edit takes the room mutex, so the observable state always equals
// sequential application in arrival order.
type Room struct {
	InviteCode string

	mu           sync.Mutex
	participants map[string]*Client
	docs         models.DocumentSet
	retired      bool

	store store.SessionStore
	log   *utils.Logger
}

func NewRoom(inviteCode string, docs models.DocumentSet, st store.SessionStore, log *utils.Logger) *Room {
	return &Room{
		InviteCode:   inviteCode,
		participants: make(map[string]*Client),
		docs:         docs,
		store:        st,
		log:          log,
	}
}

// Join adds the client and sends it the init frame for hydration. The
// init goes out under the room mutex, before any fanout can reach the
// connection, so the client never applies hydration over a newer edit.
// Returns false when the room lost a retire race and the caller must
// re-resolve through the registry.
func (r *Room) Join(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false
	}

	r.participants[c.ID] = c
	snap := r.docs.Snapshot()

	c.Send(models.WSFrame{
		Type: models.FrameInit,
		Data: models.InitPayload{
			InviteCode: r.InviteCode,
			Files:      snap.Files,
			Structure:  snap.Structure,
		},
	})

	frame := models.WSFrame{
		Type: models.FrameParticipantJoined,
		Data: models.ParticipantPayload{ConnectionID: c.ID},
	}
	for id, p := range r.participants {
		if id == c.ID {
			continue
		}
		p.Send(frame)
		metrics.EventDelivered()
	}

	metrics.ParticipantJoined()
	return true
}

// Leave removes the connection and notifies the rest of the room.
// Idempotent. Returns the remaining participant count so the caller
// can retire an empty room.
func (r *Room) Leave(connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[connID]; !ok {
		return len(r.participants)
	}
	delete(r.participants, connID)

	frame := models.WSFrame{
		Type: models.FrameParticipantLeft,
		Data: models.ParticipantPayload{ConnectionID: connID},
	}
	for _, p := range r.participants {
		p.Send(frame)
		metrics.EventDelivered()
	}

	metrics.ParticipantLeft()
	return len(r.participants)
}

// SubmitEdit applies a whole-document overwrite of one path, fans it
// out to every participant except the sender, and issues the
// write-through. Apply, fanout and write-through issuance all happen
// under the room mutex, so same-path edits persist in arrival order.
// A failed write-through keeps the in-memory state authoritative
// (peers already saw the broadcast) and comes back as
// ErrWriteThroughFailed. The mutex is released on every exit, a
// panicking send included, so one bad connection cannot wedge the room.
func (r *Room) SubmitEdit(ctx context.Context, connID, path, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.participants[connID]; !ok {
		return ErrNotAParticipant
	}

	r.docs.ApplyFileWrite(path, content)

	frame := models.WSFrame{
		Type: models.FrameFileChanged,
		Data: models.FileEdit{Path: path, Content: content},
	}
	for id, p := range r.participants {
		if id == connID {
			continue
		}
		p.Send(frame)
		metrics.EventDelivered()
	}
	metrics.EditApplied()

	if writeErr := r.store.ApplyFileWrite(ctx, r.InviteCode, path, content); writeErr != nil {
		metrics.WriteThroughFailed()
		r.log.Warn("write-through failed, in-memory state stays authoritative",
			"inviteCode", r.InviteCode, "path", path, "error", writeErr)
		return fmt.Errorf("%w: %v", ErrWriteThroughFailed, writeErr)
	}
	return nil
}

// Snapshot returns a copy of the current document state.
func (r *Room) Snapshot() models.DocumentSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs.Snapshot()
}

// ParticipantCount reports the current room size.
func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// CreatedAt reports when the underlying session was created.
func (r *Room) CreatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.docs.CreatedAt
}

// markRetiredIfEmpty flips the room to retired when no participant is
// left. Called by the registry with the registry lock held; a room
// that reports true here is gone from the registry and rejects joins.
func (r *Room) markRetiredIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.participants) > 0 {
		return false
	}
	r.retired = true
	return true
}
