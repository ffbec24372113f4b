package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"codeshare/internal/metrics"
	"codeshare/internal/models"
	"codeshare/internal/store"
	"codeshare/internal/utils"
)

var (
	// ErrInvalidInviteCode is returned for a join against a session
	// that was never created.
	ErrInvalidInviteCode = errors.New("invalid invite code")

	// ErrMalformedInviteCode is returned when a creator-supplied code
	// fails normalization (wrong alphabet or length).
	ErrMalformedInviteCode = errors.New("malformed invite code")
)

// createAttempts bounds the retry loop when a randomly generated code
// collides with an existing session.
const createAttempts = 5

// Registry maps invite codes to live rooms. Materialization for a code
// goes through singleflight so concurrent resolves share one store
// read and different codes never contend with each other.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
	loads singleflight.Group

	store store.SessionStore
	log   *utils.Logger
}

func NewRegistry(st store.SessionStore, log *utils.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		store: st,
		log:   log,
	}
}

// Resolve returns the live room for an invite code, materializing it
// from the store on first use. Fails with ErrInvalidInviteCode when no
// such session exists.
func (g *Registry) Resolve(ctx context.Context, inviteCode string) (*Room, error) {
	g.mu.Lock()
	if r, ok := g.rooms[inviteCode]; ok {
		g.mu.Unlock()
		return r, nil
	}
	g.mu.Unlock()

	v, err, _ := g.loads.Do(inviteCode, func() (interface{}, error) {
		g.mu.Lock()
		if r, ok := g.rooms[inviteCode]; ok {
			g.mu.Unlock()
			return r, nil
		}
		g.mu.Unlock()

		sess, err := g.store.FindByInviteCode(ctx, inviteCode)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidInviteCode
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", inviteCode, err)
		}

		room := NewRoom(inviteCode, sess.Docs, g.store, g.log)
		g.mu.Lock()
		g.rooms[inviteCode] = room
		g.mu.Unlock()
		metrics.RoomOpened()
		g.log.Info("room materialized", "inviteCode", inviteCode)
		return room, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Room), nil
}

// Retire drops the room for an invite code once it is empty. The room
// identity check keeps a stale retire from removing a room that was
// re-materialized in the meantime, and the emptiness re-check keeps a
// concurrent join alive.
func (g *Registry) Retire(room *Room) {
	g.mu.Lock()
	defer g.mu.Unlock()
	current, ok := g.rooms[room.InviteCode]
	if !ok || current != room {
		return
	}
	if !room.markRetiredIfEmpty() {
		return
	}
	delete(g.rooms, room.InviteCode)
	metrics.RoomRetired()
	g.log.Info("room retired", "inviteCode", room.InviteCode)
}

// CreateSession creates a new persisted session. With an empty
// argument a random code is generated, retrying on the unlikely
// collision; a creator-supplied code that is already taken surfaces
// store.ErrConflict to the caller.
func (g *Registry) CreateSession(ctx context.Context, inviteCode string) (string, error) {
	if inviteCode != "" {
		code := NormalizeInviteCode(inviteCode)
		if !IsValidInviteCode(code) {
			return "", ErrMalformedInviteCode
		}
		if _, err := g.store.Create(ctx, code, models.NewDocumentSet()); err != nil {
			return "", err
		}
		g.log.Info("session created", "inviteCode", code)
		return code, nil
	}

	for attempt := 0; attempt < createAttempts; attempt++ {
		code, err := GenerateInviteCode()
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		_, err = g.store.Create(ctx, code, models.NewDocumentSet())
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return "", err
		}
		g.log.Info("session created", "inviteCode", code)
		return code, nil
	}
	return "", fmt.Errorf("could not allocate an unused invite code after %d attempts", createAttempts)
}

// SessionInfo reports metadata for a session without materializing a
// room: a live room answers from memory, anything else from the store.
func (g *Registry) SessionInfo(ctx context.Context, inviteCode string) (models.SessionInfo, error) {
	g.mu.Lock()
	room, ok := g.rooms[inviteCode]
	g.mu.Unlock()
	if ok {
		snap := room.Snapshot()
		return models.SessionInfo{
			InviteCode: inviteCode,
			FileCount:  len(snap.Files),
			CreatedAt:  room.CreatedAt(),
		}, nil
	}

	sess, err := g.store.FindByInviteCode(ctx, inviteCode)
	if errors.Is(err, store.ErrNotFound) {
		return models.SessionInfo{}, ErrInvalidInviteCode
	}
	if err != nil {
		return models.SessionInfo{}, err
	}
	return models.SessionInfo{
		InviteCode: inviteCode,
		FileCount:  len(sess.Docs.Files),
		CreatedAt:  sess.CreatedAt,
	}, nil
}
