package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// memCache is an in-memory cache.Store that can be told to fail.
type memCache struct {
	mu      sync.Mutex
	data    map[string]string
	gets    int
	hits    int
	failAll bool
}

func newMemCache() *memCache { return &memCache{data: map[string]string{}} }

var errCacheDown = errors.New("cache down")

func (m *memCache) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.failAll {
		return "", false, errCacheDown
	}
	v, ok := m.data[key]
	if ok {
		m.hits++
	}
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key, val string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errCacheDown
	}
	m.data[key] = val
	return nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errCacheDown
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// failingSettingsRepo returns err from every call.
type failingSettingsRepo struct{ err error }

func (f failingSettingsRepo) GetChatSetting(context.Context, *gorm.DB, string, domain.SettingKey) (*domain.ChatSetting, error) {
	return nil, f.err
}
func (f failingSettingsRepo) UpsertChatSetting(context.Context, *gorm.DB, string, domain.SettingKey, string) error {
	return f.err
}
func (f failingSettingsRepo) DeleteChatSetting(context.Context, *gorm.DB, string, domain.SettingKey) (bool, error) {
	return false, f.err
}
func (f failingSettingsRepo) GetGlobalSetting(context.Context, *gorm.DB, string) (*domain.GlobalSetting, error) {
	return nil, f.err
}
func (f failingSettingsRepo) UpsertGlobalSetting(context.Context, *gorm.DB, string, string) error {
	return f.err
}
