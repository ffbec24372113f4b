package session

import (
	"context"
	"sync"

	"codeshare/internal/models"
	"codeshare/internal/utils"
)

// Broker routes transport events to rooms: joins resolve through the
// registry, edits and disconnects route by connection id. The only
// state it keeps is the connection-to-room wiring; document and
// membership state live in the rooms.
type Broker struct {
	registry *Registry
	log      *utils.Logger

	mu    sync.Mutex
	conns map[string]*Room
}

func NewBroker(registry *Registry, log *utils.Logger) *Broker {
	return &Broker{
		registry: registry,
		log:      log,
		conns:    make(map[string]*Room),
	}
}

// CreateSession delegates to the registry.
func (b *Broker) CreateSession(ctx context.Context, inviteCode string) (string, error) {
	return b.registry.CreateSession(ctx, inviteCode)
}

// SessionInfo delegates to the registry.
func (b *Broker) SessionInfo(ctx context.Context, inviteCode string) (models.SessionInfo, error) {
	return b.registry.SessionInfo(ctx, NormalizeInviteCode(inviteCode))
}

// JoinSession resolves the room for an invite code, joins the client
// and wires the connection for future fanout. The room sends the
// client its init frame as part of the join. A join that loses a
// retire race simply re-resolves; the store always has the latest
// write-through state.
func (b *Broker) JoinSession(ctx context.Context, inviteCode string, c *Client) error {
	code := NormalizeInviteCode(inviteCode)
	for {
		room, err := b.registry.Resolve(ctx, code)
		if err != nil {
			return err
		}
		if !room.Join(c) {
			continue
		}
		b.mu.Lock()
		b.conns[c.ID] = room
		b.mu.Unlock()
		return nil
	}
}

// SubmitEdit routes an edit to the sender's room. Unknown connections
// fail with ErrNotAParticipant and nothing is broadcast.
func (b *Broker) SubmitEdit(ctx context.Context, connID, path, content string) error {
	b.mu.Lock()
	room, ok := b.conns[connID]
	b.mu.Unlock()
	if !ok {
		return ErrNotAParticipant
	}
	return room.SubmitEdit(ctx, connID, path, content)
}

// Disconnect removes the connection from its room, retiring the room
// when it empties. Safe to call for connections that never joined or
// already disconnected.
func (b *Broker) Disconnect(connID string) {
	b.mu.Lock()
	room, ok := b.conns[connID]
	delete(b.conns, connID)
	b.mu.Unlock()
	if !ok {
		return
	}
	if left := room.Leave(connID); left == 0 {
		b.registry.Retire(room)
	}
}
