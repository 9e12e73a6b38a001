// Package repo implements the settings store for the bot, backed by GORM.
// This file provides helpers for the ProcessedEvent model used to drop
// re-delivered webhook events.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// ErrDuplicate indicates that an event was already claimed for the given
// (session, message_id) tuple and has not expired yet.
var ErrDuplicate = errors.New("duplicate")

// IsEventProcessed reports whether a non-expired claim exists for
// (session, messageID).
func IsEventProcessed(ctx context.Context, db *gorm.DB, session, messageID string, now time.Time) (bool, error) {
	if strings.TrimSpace(messageID) == "" {
		return false, nil
	}
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("session = ? AND message_id = ? AND expires_at > ?", session, messageID, now).
		Count(&n).Error
	return n > 0, err
}

// ClaimEvent records (session, messageID) as processed for ttl. It returns
// ErrDuplicate when a live claim already exists. An expired claim for the
// same tuple is replaced.
func ClaimEvent(ctx context.Context, db *gorm.DB, session, messageID string, ttl time.Duration) (*domain.ProcessedEvent, error) {
	now := time.Now().UTC()
	rec := &domain.ProcessedEvent{
		ID:        uuid.NewString(),
		Session:   session,
		MessageID: messageID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("session = ? AND message_id = ? AND expires_at <= ?", session, messageID, now).
			Delete(&domain.ProcessedEvent{}).Error; err != nil {
			return err
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PurgeExpiredEvents deletes every claim that expired at or before now and
// returns how many rows were removed.
func PurgeExpiredEvents(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.ProcessedEvent{})
	return res.RowsAffected, res.Error
}

// ReleaseEvent drops the claim for (session, messageID) so a retry is
// processed again. Releasing an unclaimed tuple is a no-op.
func ReleaseEvent(ctx context.Context, db *gorm.DB, session, messageID string) error {
	return db.WithContext(ctx).
		Where("session = ? AND message_id = ?", session, messageID).
		Delete(&domain.ProcessedEvent{}).Error
}
