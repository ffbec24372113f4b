package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"codeshare/internal/models"
)

// SessionRecord is the relational shape of a session: one row per
// invite code with the files map and structure tree as JSON columns.
type SessionRecord struct {
	ID         uint   `gorm:"primaryKey"`
	InviteCode string `gorm:"uniqueIndex;not null"`
	Files      string `gorm:"not null"`
	Structure  string `gorm:"not null"`
	CreatedAt  time.Time
}

type GormStore struct {
	DB *gorm.DB
}

// NewGormStore migrates the schema. The handle must be opened with
// gorm.Config{TranslateError: true} so duplicate-key violations come
// back as gorm.ErrDuplicatedKey.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate session records: %w", err)
	}
	return &GormStore{DB: db}, nil
}

func (s *GormStore) Create(ctx context.Context, inviteCode string, docs models.DocumentSet) (*models.Session, error) {
	createdAt := docs.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	files, err := json.Marshal(docs.Files)
	if err != nil {
		return nil, fmt.Errorf("marshal files: %w", err)
	}
	structure, err := json.Marshal(docs.Structure)
	if err != nil {
		return nil, fmt.Errorf("marshal structure: %w", err)
	}

	rec := SessionRecord{
		InviteCode: inviteCode,
		Files:      string(files),
		Structure:  string(structure),
		CreatedAt:  createdAt,
	}
	// the unique index on invite_code is the only arbiter: two racing
	// creates cannot both pass a read-then-insert check
	err = s.DB.WithContext(ctx).Create(&rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", inviteCode, err)
	}

	docs.CreatedAt = createdAt
	return &models.Session{InviteCode: inviteCode, Docs: docs, CreatedAt: createdAt}, nil
}

func (s *GormStore) FindByInviteCode(ctx context.Context, inviteCode string) (*models.Session, error) {
	var rec SessionRecord
	err := s.DB.WithContext(ctx).First(&rec, "invite_code = ?", inviteCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", inviteCode, err)
	}
	return recordToSession(&rec)
}

func (s *GormStore) ApplyFileWrite(ctx context.Context, inviteCode, path, content string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec SessionRecord
		err := tx.First(&rec, "invite_code = ?", inviteCode).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		sess, err := recordToSession(&rec)
		if err != nil {
			return err
		}
		sess.Docs.ApplyFileWrite(path, content)

		files, err := json.Marshal(sess.Docs.Files)
		if err != nil {
			return err
		}
		structure, err := json.Marshal(sess.Docs.Structure)
		if err != nil {
			return err
		}
		return tx.Model(&rec).Updates(map[string]interface{}{
			"files":     string(files),
			"structure": string(structure),
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("write %s for %s: %w", path, inviteCode, err)
	}
	return nil
}

func recordToSession(rec *SessionRecord) (*models.Session, error) {
	files := map[string]string{}
	if rec.Files != "" {
		if err := json.Unmarshal([]byte(rec.Files), &files); err != nil {
			return nil, fmt.Errorf("parse files for %s: %w", rec.InviteCode, err)
		}
	}
	structure := []models.TreeNode{}
	if rec.Structure != "" {
		if err := json.Unmarshal([]byte(rec.Structure), &structure); err != nil {
			return nil, fmt.Errorf("parse structure for %s: %w", rec.InviteCode, err)
		}
	}
	docs := models.DocumentSet{Files: files, Structure: structure, CreatedAt: rec.CreatedAt}
	return &models.Session{InviteCode: rec.InviteCode, Docs: docs, CreatedAt: rec.CreatedAt}, nil
}
