// Package repo implements the settings store for the bot, backed by GORM.
// This file provides small aggregate queries used by the status endpoint.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// Roster summarizes the whitelist and chat activation state.
type Roster struct {
	Whitelisted  int64 `json:"whitelisted"`
	Admins       int64 `json:"admins"`
	EnabledChats int64 `json:"enabled_chats"`
}

// RosterStats counts whitelist entries, admins, and chats whose enabled flag
// is "true".
func RosterStats(ctx context.Context, db *gorm.DB) (Roster, error) {
	var r Roster
	q := db.WithContext(ctx)

	if err := q.Model(&domain.WhitelistEntry{}).Count(&r.Whitelisted).Error; err != nil {
		return Roster{}, err
	}
	if err := q.Model(&domain.WhitelistEntry{}).Where("is_admin = ?", true).Count(&r.Admins).Error; err != nil {
		return Roster{}, err
	}
	if err := q.Model(&domain.ChatSetting{}).
		Where(map[string]any{"key": domain.SettingEnabled, "value": "true"}).
		Count(&r.EnabledChats).Error; err != nil {
		return Roster{}, err
	}
	return r, nil
}
