package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codeshare/internal/models"
)

// RedisStore keeps each session as a pair of hashes:
//
//	session:{code}:meta   createdAt, structure (JSON)
//	session:{code}:files  path -> content
//
// A single HSET on the files hash is the atomic per-path overwrite;
// writes that also touch the structure go through a MULTI/EXEC pipeline
// so readers never see the two hashes out of step.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func metaKey(code string) string  { return "session:" + code + ":meta" }
func filesKey(code string) string { return "session:" + code + ":files" }

func (s *RedisStore) Create(ctx context.Context, inviteCode string, docs models.DocumentSet) (*models.Session, error) {
	createdAt := docs.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// HSETNX on the meta hash claims the code; a second create loses.
	claimed, err := s.rdb.HSetNX(ctx, metaKey(inviteCode), "createdAt", createdAt.Format(time.RFC3339Nano)).Result()
	if err != nil {
		return nil, fmt.Errorf("claim invite code: %w", err)
	}
	if !claimed {
		return nil, ErrConflict
	}

	structure, err := json.Marshal(docs.Structure)
	if err != nil {
		return nil, fmt.Errorf("marshal structure: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, metaKey(inviteCode), "structure", string(structure))
	if len(docs.Files) > 0 {
		pipe.HSet(ctx, filesKey(inviteCode), docs.Files)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("write session %s: %w", inviteCode, err)
	}

	docs.CreatedAt = createdAt
	return &models.Session{InviteCode: inviteCode, Docs: docs, CreatedAt: createdAt}, nil
}

func (s *RedisStore) FindByInviteCode(ctx context.Context, inviteCode string) (*models.Session, error) {
	meta, err := s.rdb.HGetAll(ctx, metaKey(inviteCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", inviteCode, err)
	}
	if len(meta) == 0 {
		return nil, ErrNotFound
	}

	createdAt, err := time.Parse(time.RFC3339Nano, meta["createdAt"])
	if err != nil {
		return nil, fmt.Errorf("parse createdAt for %s: %w", inviteCode, err)
	}

	structure := []models.TreeNode{}
	if raw := meta["structure"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &structure); err != nil {
			return nil, fmt.Errorf("parse structure for %s: %w", inviteCode, err)
		}
	}

	files, err := s.rdb.HGetAll(ctx, filesKey(inviteCode)).Result()
	if err != nil {
		return nil, fmt.Errorf("read files for %s: %w", inviteCode, err)
	}
	if files == nil {
		files = map[string]string{}
	}

	docs := models.DocumentSet{Files: files, Structure: structure, CreatedAt: createdAt}
	return &models.Session{InviteCode: inviteCode, Docs: docs, CreatedAt: createdAt}, nil
}

func (s *RedisStore) ApplyFileWrite(ctx context.Context, inviteCode, path, content string) error {
	exists, err := s.rdb.Exists(ctx, metaKey(inviteCode)).Result()
	if err != nil {
		return fmt.Errorf("check session %s: %w", inviteCode, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	known, err := s.rdb.HExists(ctx, filesKey(inviteCode), path).Result()
	if err != nil {
		return fmt.Errorf("check path %s: %w", path, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, filesKey(inviteCode), path, content)
	if !known {
		raw, err := s.rdb.HGet(ctx, metaKey(inviteCode), "structure").Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("read structure for %s: %w", inviteCode, err)
		}
		structure := []models.TreeNode{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &structure); err != nil {
				return fmt.Errorf("parse structure for %s: %w", inviteCode, err)
			}
		}
		structure = append(structure, models.TreeNode{Name: path, Kind: models.NodeFile})
		updated, err := json.Marshal(structure)
		if err != nil {
			return fmt.Errorf("marshal structure: %w", err)
		}
		pipe.HSet(ctx, metaKey(inviteCode), "structure", string(updated))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write %s for %s: %w", path, inviteCode, err)
	}
	return nil
}
