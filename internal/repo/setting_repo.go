// Package repo implements the settings store for the bot, backed by GORM.
// This file provides keyed upsert/find/delete helpers for per-chat and
// global settings.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// ErrUnknownSetting rejects writes under a key outside the domain.SettingKey set.
var ErrUnknownSetting = errors.New("unknown setting key")

// GetChatSetting fetches the (chatID, key) setting, or ErrNotFound.
func GetChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (*domain.ChatSetting, error) {
	var s domain.ChatSetting
	err := db.WithContext(ctx).
		Where(map[string]any{"chat_id": chatID, "key": key}).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertChatSetting writes value under (chatID, key), inserting the row on
// first write and updating it in place afterwards.
func UpsertChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey, value string) error {
	if !key.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
	now := time.Now().UTC()
	s := &domain.ChatSetting{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Key:       key,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(s).Error
}

// DeleteChatSetting removes the (chatID, key) setting. It reports whether a
// row was actually deleted; a missing row is not an error.
func DeleteChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (bool, error) {
	res := db.WithContext(ctx).
		Where(map[string]any{"chat_id": chatID, "key": key}).
		Delete(&domain.ChatSetting{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// GetGlobalSetting fetches a global setting by key, or ErrNotFound.
func GetGlobalSetting(ctx context.Context, db *gorm.DB, key string) (*domain.GlobalSetting, error) {
	var s domain.GlobalSetting
	err := db.WithContext(ctx).
		Where(map[string]any{"key": key}).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertGlobalSetting writes a global setting, creating it when absent.
func UpsertGlobalSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	s := &domain.GlobalSetting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(s).Error
}
