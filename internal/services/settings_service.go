// Package services – SettingsService
//
// This file implements SettingsService, the typed facade over per-chat and
// global settings. Getters return documented defaults when no row exists;
// setters upsert. Clearing a value that was never set succeeds.
//
// When a cache.Store is configured, reads go through it and every write
// invalidates the affected key. Cache failures are logged and never fail the
// call; the store stays the source of truth.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/cache"
	"github.com/veigamann/whisper-zap/internal/domain"
)

// DefaultPrefix is the command prefix used when none is stored or configured.
const DefaultPrefix = "."

// absent is cached for settings that have no row, so repeated default reads
// do not hit the store.
const absent = "\x00"

// SettingsRepo defines the repository contract required by SettingsService.
type SettingsRepo interface {
	GetChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (*domain.ChatSetting, error)
	UpsertChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey, value string) error
	DeleteChatSetting(ctx context.Context, db *gorm.DB, chatID string, key domain.SettingKey) (bool, error)
	GetGlobalSetting(ctx context.Context, db *gorm.DB, key string) (*domain.GlobalSetting, error)
	UpsertGlobalSetting(ctx context.Context, db *gorm.DB, key, value string) error
}

// SettingsService exposes typed accessors over the settings store.
type SettingsService struct {
	DB   *gorm.DB
	Repo SettingsRepo

	// Cache is optional; nil disables read-through caching.
	Cache    cache.Store
	CacheTTL time.Duration

	// DefaultPrefix applies when no cmd_prefix row exists.
	DefaultPrefix string
}

// NewSettingsService constructs a SettingsService without a cache.
func NewSettingsService(db *gorm.DB, r SettingsRepo, defaultPrefix string) *SettingsService {
	if defaultPrefix == "" {
		defaultPrefix = DefaultPrefix
	}
	return &SettingsService{
		DB:            db,
		Repo:          r,
		CacheTTL:      10 * time.Minute,
		DefaultPrefix: defaultPrefix,
	}
}

// Temperature returns the chat's sampling temperature, 0 when unset.
func (s *SettingsService) Temperature(ctx context.Context, chatID string) (float64, error) {
	v, ok, err := s.chatValue(ctx, chatID, domain.SettingTemperature)
	if err != nil || !ok {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("stored temperature %q: %w", v, err)
	}
	return f, nil
}

// SetTemperature validates v and stores it for the chat.
func (s *SettingsService) SetTemperature(ctx context.Context, chatID string, v float64) error {
	if !ValidTemperature(v) {
		return ErrInvalidTemperature
	}
	return s.setChat(ctx, chatID, domain.SettingTemperature, FormatTemperature(v))
}

// ValidTemperature reports whether v is a number within [0, 1].
func ValidTemperature(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// FormatTemperature renders v with the shortest exact representation
// ("0.7", not "0.700000").
func FormatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Language returns the chat's language hint, "" when unset.
func (s *SettingsService) Language(ctx context.Context, chatID string) (string, error) {
	v, _, err := s.chatValue(ctx, chatID, domain.SettingLanguage)
	return v, err
}

// SetLanguage stores the chat's language hint.
func (s *SettingsService) SetLanguage(ctx context.Context, chatID, lang string) error {
	return s.setChat(ctx, chatID, domain.SettingLanguage, lang)
}

// ClearLanguage removes the chat's language hint. It succeeds when none is set.
func (s *SettingsService) ClearLanguage(ctx context.Context, chatID string) error {
	return s.clearChat(ctx, chatID, domain.SettingLanguage)
}

// Prompt returns the chat's transcription prompt, "" when unset.
func (s *SettingsService) Prompt(ctx context.Context, chatID string) (string, error) {
	v, _, err := s.chatValue(ctx, chatID, domain.SettingTranscriptionPrompt)
	return v, err
}

// SetPrompt stores the chat's transcription prompt.
func (s *SettingsService) SetPrompt(ctx context.Context, chatID, prompt string) error {
	return s.setChat(ctx, chatID, domain.SettingTranscriptionPrompt, prompt)
}

// ClearPrompt removes the chat's transcription prompt. It succeeds when none
// is set.
func (s *SettingsService) ClearPrompt(ctx context.Context, chatID string) error {
	return s.clearChat(ctx, chatID, domain.SettingTranscriptionPrompt)
}

// ChatEnabled reports whether the bot is enabled for the chat; false when
// unset.
func (s *SettingsService) ChatEnabled(ctx context.Context, chatID string) (bool, error) {
	v, ok, err := s.chatValue(ctx, chatID, domain.SettingEnabled)
	if err != nil || !ok {
		return false, err
	}
	return v == "true", nil
}

// SetChatEnabled stores the chat-enabled flag.
func (s *SettingsService) SetChatEnabled(ctx context.Context, chatID string, enabled bool) error {
	return s.setChat(ctx, chatID, domain.SettingEnabled, strconv.FormatBool(enabled))
}

// Prefix returns the active command prefix.
func (s *SettingsService) Prefix(ctx context.Context) (string, error) {
	key := cache.GlobalKey(domain.GlobalCmdPrefix)
	if v, ok := s.cached(ctx, key); ok {
		if v == absent {
			return s.defaultPrefix(), nil
		}
		return v, nil
	}

	row, err := s.Repo.GetGlobalSetting(ctx, s.DB, domain.GlobalCmdPrefix)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.remember(ctx, key, absent)
		return s.defaultPrefix(), nil
	}
	if err != nil {
		return "", err
	}
	s.remember(ctx, key, row.Value)
	return row.Value, nil
}

// SetPrefix stores a new command prefix verbatim.
func (s *SettingsService) SetPrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return ErrEmptyPrefix
	}
	if err := s.Repo.UpsertGlobalSetting(ctx, s.DB, domain.GlobalCmdPrefix, prefix); err != nil {
		return err
	}
	s.forget(ctx, cache.GlobalKey(domain.GlobalCmdPrefix))
	return nil
}

func (s *SettingsService) defaultPrefix() string {
	if s.DefaultPrefix == "" {
		return DefaultPrefix
	}
	return s.DefaultPrefix
}

// chatValue returns the stored value and whether a row exists.
func (s *SettingsService) chatValue(ctx context.Context, chatID string, key domain.SettingKey) (string, bool, error) {
	chatID = domain.NormalizeID(chatID)
	ck := cache.ChatKey(chatID, string(key))
	if v, ok := s.cached(ctx, ck); ok {
		if v == absent {
			return "", false, nil
		}
		return v, true, nil
	}

	row, err := s.Repo.GetChatSetting(ctx, s.DB, chatID, key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.remember(ctx, ck, absent)
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	s.remember(ctx, ck, row.Value)
	return row.Value, true, nil
}

func (s *SettingsService) setChat(ctx context.Context, chatID string, key domain.SettingKey, value string) error {
	chatID = domain.NormalizeID(chatID)
	if err := s.Repo.UpsertChatSetting(ctx, s.DB, chatID, key, value); err != nil {
		return err
	}
	s.forget(ctx, cache.ChatKey(chatID, string(key)))
	return nil
}

func (s *SettingsService) clearChat(ctx context.Context, chatID string, key domain.SettingKey) error {
	chatID = domain.NormalizeID(chatID)
	if _, err := s.Repo.DeleteChatSetting(ctx, s.DB, chatID, key); err != nil {
		return err
	}
	s.forget(ctx, cache.ChatKey(chatID, string(key)))
	return nil
}

func (s *SettingsService) cached(ctx context.Context, key string) (string, bool) {
	if s.Cache == nil {
		return "", false
	}
	v, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings cache get failed")
		return "", false
	}
	return v, ok
}

func (s *SettingsService) remember(ctx context.Context, key, val string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, key, val, s.CacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings cache set failed")
	}
}

func (s *SettingsService) forget(ctx context.Context, key string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("settings cache invalidate failed")
	}
}

