package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// Whitelist adapts the whitelist free functions to the method set expected
// by services.WhitelistRepo.
type Whitelist struct{}

func (Whitelist) GetWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) (*domain.WhitelistEntry, error) {
	return GetWhitelistEntry(ctx, db, userID)
}
func (Whitelist) EnsureWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error {
	return EnsureWhitelistEntry(ctx, db, userID)
}
func (Whitelist) UpsertAdmin(ctx context.Context, db *gorm.DB, userID string) error {
	return UpsertAdmin(ctx, db, userID)
}
func (Whitelist) SetAdminFlag(ctx context.Context, db *gorm.DB, userID string, isAdmin bool) error {
	return SetAdminFlag(ctx, db, userID, isAdmin)
}
func (Whitelist) DeleteWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error {
	return DeleteWhitelistEntry(ctx, db, userID)
}
func (Whitelist) ListWhitelist(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error) {
	return ListWhitelist(ctx, db)
}
func (Whitelist) ListAdmins(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error) {
	return ListAdmins(ctx, db)
}

// Settings adapts the settings free functions to services.SettingsRepo.
type Settings struct{}

func (Settings) GetChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (*domain.ChatSetting, error) {
	return GetChatSetting(ctx, db, chatID, key)
}
func (Settings) UpsertChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey, value string) error {
	return UpsertChatSetting(ctx, db, chatID, key, value)
}
func (Settings) DeleteChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (bool, error) {
	return DeleteChatSetting(ctx, db, chatID, key)
}
func (Settings) GetGlobalSetting(ctx context.Context, db *gorm.DB, key string) (*domain.GlobalSetting, error) {
	return GetGlobalSetting(ctx, db, key)
}
func (Settings) UpsertGlobalSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	return UpsertGlobalSetting(ctx, db, key, value)
}
