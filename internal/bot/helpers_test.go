package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/repo"
	"github.com/veigamann/whisper-zap/internal/services"
)

const (
	groupID = "120363000000000042@g.us"
	adminID = "5511900000001@s.whatsapp.net"
	userID  = "5511900000002@s.whatsapp.net"
	otherID = "5511900000003@s.whatsapp.net"
)

var errStoreDown = errors.New("store down")

type env struct {
	db       *gorm.DB
	auth     *services.AuthService
	settings *services.SettingsService
	disp     *Dispatcher
	texts    Texts
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:bot_%s?mode=memory&cache=shared", uuid.NewString())
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

	auth := services.NewAuthService(db, repo.Whitelist{})
	settings := services.NewSettingsService(db, repo.Settings{}, ".")
	texts := Texts{Banner: DefaultBanner}

	ctx := context.Background()
	if err := auth.AddAdmin(ctx, adminID); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	if err := auth.AddToWhitelist(ctx, userID); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return &env{
		db:       db,
		auth:     auth,
		settings: settings,
		disp:     NewDispatcher(auth, settings, texts),
		texts:    texts,
	}
}

func (e *env) enable(t *testing.T, chatID string) {
	t.Helper()
	if err := e.settings.SetChatEnabled(context.Background(), chatID, true); err != nil {
		t.Fatalf("enable chat: %v", err)
	}
}

// groupMsg returns a text message sent by sender in the test group.
func groupMsg(sender, text string) domain.InboundMessage {
	return domain.InboundMessage{
		Key:      domain.MessageKey{ID: uuid.NewString(), ChatID: groupID},
		ChatID:   groupID,
		SenderID: sender,
		IsGroup:  true,
		Text:     text,
	}
}

type sent struct {
	chatID string
	text   string
	quoted domain.MessageKey
}

type reaction struct {
	chatID string
	emoji  string
	key    domain.MessageKey
}

// fakeMessenger records outbound traffic. Errors can be injected per kind.
type fakeMessenger struct {
	mu        sync.Mutex
	texts     []sent
	reactions []reaction
	textErr   error
	// reactErr fails reactions whose emoji is in the map.
	reactErr map[string]error
}

func (m *fakeMessenger) SendText(_ context.Context, chatID, text string, quoted domain.MessageKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, sent{chatID, text, quoted})
	return m.textErr
}

func (m *fakeMessenger) SendReaction(_ context.Context, chatID, emoji string, key domain.MessageKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reactions = append(m.reactions, reaction{chatID, emoji, key})
	return m.reactErr[emoji]
}

func (m *fakeMessenger) emojis() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.reactions))
	for _, r := range m.reactions {
		out = append(out, r.emoji)
	}
	return out
}

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, domain.InboundMessage) (string, error) {
	f.calls++
	return f.text, f.err
}

// brokenSettings fails every read and write.
type brokenSettings struct{}

func (brokenSettings) Temperature(context.Context, string) (float64, error) { return 0, errStoreDown }
func (brokenSettings) SetTemperature(context.Context, string, float64) error { return errStoreDown }
func (brokenSettings) Language(context.Context, string) (string, error) { return "", errStoreDown }
func (brokenSettings) SetLanguage(context.Context, string, string) error { return errStoreDown }
func (brokenSettings) ClearLanguage(context.Context, string) error { return errStoreDown }
func (brokenSettings) Prompt(context.Context, string) (string, error) { return "", errStoreDown }
func (brokenSettings) SetPrompt(context.Context, string, string) error { return errStoreDown }
func (brokenSettings) ClearPrompt(context.Context, string) error { return errStoreDown }
func (brokenSettings) ChatEnabled(context.Context, string) (bool, error) { return false, errStoreDown }
func (brokenSettings) SetChatEnabled(context.Context, string, bool) error { return errStoreDown }
func (brokenSettings) Prefix(context.Context) (string, error) { return "", errStoreDown }
func (brokenSettings) SetPrefix(context.Context, string) error { return errStoreDown }
