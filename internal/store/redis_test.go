package store

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"codeshare/internal/models"
)

// setupTestRedis creates a miniredis instance and a redis client for testing
func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestRedisStoreCreateAndFind(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	docs := models.NewDocumentSet()
	docs.ApplyFileWrite("main.js", "x=1")

	created, err := s.Create(ctx, "AB12CD", docs)
	assert.NoError(t, err)
	assert.Equal(t, "AB12CD", created.InviteCode)

	found, err := s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Equal(t, "x=1", found.Docs.Files["main.js"])
	assert.Len(t, found.Docs.Structure, 1)
	assert.Equal(t, models.NodeFile, found.Docs.Structure[0].Kind)
	assert.Equal(t, created.CreatedAt.UTC(), found.CreatedAt.UTC())
}

func TestRedisStoreCreateEmptySession(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Create(ctx, "AB12CD", models.NewDocumentSet())
	assert.NoError(t, err)

	found, err := s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Empty(t, found.Docs.Files)
	assert.Empty(t, found.Docs.Structure)
	assert.NotNil(t, found.Docs.Files)
}

func TestRedisStoreCreateConflictLeavesSessionUntouched(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	docs := models.NewDocumentSet()
	docs.ApplyFileWrite("main.js", "original")
	_, err := s.Create(ctx, "AB12CD", docs)
	assert.NoError(t, err)

	other := models.NewDocumentSet()
	other.ApplyFileWrite("main.js", "intruder")
	_, err = s.Create(ctx, "AB12CD", other)
	assert.ErrorIs(t, err, ErrConflict)

	found, err := s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Equal(t, "original", found.Docs.Files["main.js"])
}

func TestRedisStoreFindNotFound(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)

	_, err := s.FindByInviteCode(context.Background(), "NOPE42")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreApplyFileWrite(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Create(ctx, "AB12CD", models.NewDocumentSet())
	assert.NoError(t, err)

	// new path shows up in both files and structure
	assert.NoError(t, s.ApplyFileWrite(ctx, "AB12CD", "main.js", "x=1"))
	found, err := s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Equal(t, "x=1", found.Docs.Files["main.js"])
	assert.Len(t, found.Docs.Structure, 1)
	assert.Equal(t, "main.js", found.Docs.Structure[0].Name)

	// overwrite keeps the structure stable
	assert.NoError(t, s.ApplyFileWrite(ctx, "AB12CD", "main.js", "x=2"))
	found, err = s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Equal(t, "x=2", found.Docs.Files["main.js"])
	assert.Len(t, found.Docs.Structure, 1)

	// second path appends a second leaf
	assert.NoError(t, s.ApplyFileWrite(ctx, "AB12CD", "util.js", ""))
	found, err = s.FindByInviteCode(ctx, "AB12CD")
	assert.NoError(t, err)
	assert.Len(t, found.Docs.Files, 2)
	assert.Len(t, found.Docs.Structure, 2)
}

func TestRedisStoreApplyFileWriteNotFound(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)

	err := s.ApplyFileWrite(context.Background(), "NOPE42", "main.js", "x=1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreSessionsAreIndependent(t *testing.T) {
	_, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Create(ctx, "AAAAAA", models.NewDocumentSet())
	assert.NoError(t, err)
	_, err = s.Create(ctx, "BBBBBB", models.NewDocumentSet())
	assert.NoError(t, err)

	assert.NoError(t, s.ApplyFileWrite(ctx, "AAAAAA", "a.txt", "alpha"))

	other, err := s.FindByInviteCode(ctx, "BBBBBB")
	assert.NoError(t, err)
	assert.Empty(t, other.Docs.Files)
}

func TestRedisStoreDownstreamErrors(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	s := NewRedisStore(rdb)
	ctx := context.Background()

	_, err := s.Create(ctx, "AB12CD", models.NewDocumentSet())
	assert.NoError(t, err)

	mr.Close()

	_, err = s.FindByInviteCode(ctx, "AB12CD")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}
