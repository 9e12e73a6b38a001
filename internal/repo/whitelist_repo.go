// Package repo implements the settings store for the bot, backed by GORM.
// This file provides repository functions for the WhitelistEntry model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: identifiers are expected to be normalized by the caller and no
// authorization rules live here.
//
// Error semantics:
//   - When an entry is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Usage:
//
//	entry, err := repo.GetWhitelistEntry(ctx, db, "5511999@s.whatsapp.net")
//	if errors.Is(err, repo.ErrNotFound) {
//	    // not whitelisted
//	}
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetWhitelistEntry fetches the entry for userID, or ErrNotFound.
func GetWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) (*domain.WhitelistEntry, error) {
	var e domain.WhitelistEntry
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// EnsureWhitelistEntry creates a non-admin entry for userID unless one
// already exists. An existing entry (admin or not) is left untouched.
func EnsureWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error {
	now := time.Now().UTC()
	e := &domain.WhitelistEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(e).Error
}

// UpsertAdmin creates an admin entry for userID, or promotes the existing one.
func UpsertAdmin(ctx context.Context, db *gorm.DB, userID string) error {
	now := time.Now().UTC()
	e := &domain.WhitelistEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		IsAdmin:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_admin", "updated_at"}),
		}).
		Create(e).Error
}

// SetAdminFlag updates the admin flag of an existing entry. If no entry
// exists for userID, it returns ErrNotFound.
func SetAdminFlag(ctx context.Context, db *gorm.DB, userID string, isAdmin bool) error {
	res := db.WithContext(ctx).
		Model(&domain.WhitelistEntry{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"is_admin": isAdmin, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteWhitelistEntry removes the entry for userID. If no entry exists,
// it returns ErrNotFound.
func DeleteWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error {
	res := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&domain.WhitelistEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListWhitelist returns every entry ordered by creation time, oldest first.
func ListWhitelist(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error) {
	var out []domain.WhitelistEntry
	err := db.WithContext(ctx).
		Order("created_at asc, user_id asc").
		Find(&out).Error
	return out, err
}

// ListAdmins returns the entries with the admin flag set, oldest first.
func ListAdmins(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error) {
	var out []domain.WhitelistEntry
	err := db.WithContext(ctx).
		Where("is_admin = ?", true).
		Order("created_at asc, user_id asc").
		Find(&out).Error
	return out, err
}
