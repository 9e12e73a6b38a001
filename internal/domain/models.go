// Package domain defines the persistence models for the whitelist, per-chat
// settings, and global settings. These types are mapped with GORM and form
// the settings store consumed by the authorization and settings services.
package domain

import "time"

// SettingKey names a per-chat setting. The set is closed; callers should use
// the exported constants rather than raw strings.
type SettingKey string

const (
	// SettingTemperature holds the provider sampling temperature in [0,1].
	SettingTemperature SettingKey = "temperature"
	// SettingLanguage holds the transcription language hint.
	SettingLanguage SettingKey = "language"
	// SettingTranscriptionPrompt holds the free-text transcription hint.
	SettingTranscriptionPrompt SettingKey = "transcriptionPrompt"
	// SettingEnabled holds "true"/"false" for the chat-enabled flag.
	SettingEnabled SettingKey = "enabled"
)

// Valid reports whether k is one of the known chat setting keys.
func (k SettingKey) Valid() bool {
	switch k {
	case SettingTemperature, SettingLanguage, SettingTranscriptionPrompt, SettingEnabled:
		return true
	}
	return false
}

// GlobalCmdPrefix is the only global setting key in use: the command prefix.
const GlobalCmdPrefix = "cmd_prefix"

// WhitelistEntry marks an identifier as allowed to talk to the bot.
// Admins are entries with IsAdmin set; there is at most one entry per
// identifier.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: qualified identifier (unique).
//   - IsAdmin: elevated command privileges.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type WhitelistEntry struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(128);not null;uniqueIndex:ux_whitelist_user"`
	IsAdmin   bool      `json:"is_admin"   gorm:"not null;default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for WhitelistEntry.
func (WhitelistEntry) TableName() string { return "whitelisted_users" }

// ChatSetting is a single key/value setting scoped to one chat, unique on
// (chat_id, key). Absence of a row means the documented default applies.
type ChatSetting struct {
	ID        string     `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID    string     `json:"chat_id"    gorm:"type:varchar(128);not null;uniqueIndex:ux_chat_setting,priority:1"`
	Key       SettingKey `json:"key"        gorm:"type:varchar(32);not null;uniqueIndex:ux_chat_setting,priority:2"`
	Value     string     `json:"value"      gorm:"type:text;not null"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ChatSetting.
func (ChatSetting) TableName() string { return "chat_settings" }

// GlobalSetting is a process-wide key/value setting.
type GlobalSetting struct {
	Key       string    `json:"key"        gorm:"type:varchar(64);primaryKey"`
	Value     string    `json:"value"      gorm:"type:text;not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for GlobalSetting.
func (GlobalSetting) TableName() string { return "global_settings" }
