package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/repo"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(newSvcDB(t), repo.Whitelist{})
}

func TestAuth_WhitelistToggle(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	const chat = "5511911112222@s.whatsapp.net"

	ok, err := s.IsAuthorized(ctx, chat, chat, false)
	if err != nil || ok {
		t.Fatalf("unknown id: ok=%v err=%v", ok, err)
	}

	// Bare ids are normalized before storage.
	if err := s.AddToWhitelist(ctx, "5511911112222"); err != nil {
		t.Fatalf("AddToWhitelist: %v", err)
	}
	if ok, _ := s.IsAuthorized(ctx, chat, chat, false); !ok {
		t.Fatal("expected authorized after add")
	}

	if err := s.RemoveFromWhitelist(ctx, chat); err != nil {
		t.Fatalf("RemoveFromWhitelist: %v", err)
	}
	if ok, _ := s.IsAuthorized(ctx, chat, chat, false); ok {
		t.Fatal("expected unauthorized after remove")
	}

	if err := s.RemoveFromWhitelist(ctx, chat); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestAuth_GroupUsesSender(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	const group = "120363000000000001@g.us"
	const member = "5511933334444@s.whatsapp.net"

	_ = s.AddToWhitelist(ctx, member)

	if ok, _ := s.IsAuthorized(ctx, group, member, true); !ok {
		t.Fatal("whitelisted participant must be authorized in a group")
	}
	if ok, _ := s.IsAuthorized(ctx, group, "5511900000000@s.whatsapp.net", true); ok {
		t.Fatal("unknown participant must not be authorized")
	}

	// Whitelisting the group itself does not authorize its members.
	_ = s.RemoveFromWhitelist(ctx, member)
	_ = s.AddToWhitelist(ctx, group)
	if ok, _ := s.IsAuthorized(ctx, group, member, true); ok {
		t.Fatal("group entry must not authorize participants")
	}
	// In a direct chat, the chat id is what counts even if the sender differs.
	if ok, _ := s.IsAuthorized(ctx, group, member, false); !ok {
		t.Fatal("direct-chat resolution must use the chat id")
	}
}

func TestAuth_AdminImpliesAuthorized(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	const x = "5511955556666"

	if err := s.AddAdmin(ctx, x); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	ok, err := s.IsAuthorized(ctx, x, x, false)
	if err != nil || !ok {
		t.Fatalf("admin must be authorized: ok=%v err=%v", ok, err)
	}
	admin, err := s.IsAdmin(ctx, x)
	if err != nil || !admin {
		t.Fatalf("IsAdmin: admin=%v err=%v", admin, err)
	}

	if err := s.RemoveAdmin(ctx, x); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	if admin, _ := s.IsAdmin(ctx, x); admin {
		t.Fatal("expected admin flag cleared")
	}
	if ok, _ := s.IsAuthorized(ctx, x, x, false); !ok {
		t.Fatal("demoted admin stays whitelisted")
	}
	if err := s.RemoveAdmin(ctx, "5511000000000"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
}

func TestAuth_AddToWhitelistKeepsAdmin(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)

	_ = s.AddAdmin(ctx, "1")
	_ = s.AddToWhitelist(ctx, "1")
	if admin, _ := s.IsAdmin(ctx, "1"); !admin {
		t.Fatal("whitelist add must not demote an admin")
	}
}

func TestAuth_Lists(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)

	_ = s.AddToWhitelist(ctx, "1")
	_ = s.AddAdmin(ctx, "2")

	users, err := s.ListWhitelist(ctx)
	if err != nil {
		t.Fatalf("ListWhitelist: %v", err)
	}
	if want := []string{"1@s.whatsapp.net", "2@s.whatsapp.net"}; !reflect.DeepEqual(users, want) {
		t.Fatalf("ListWhitelist = %v, want %v", users, want)
	}
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if want := []string{"2@s.whatsapp.net"}; !reflect.DeepEqual(admins, want) {
		t.Fatalf("ListAdmins = %v, want %v", admins, want)
	}
}

func TestAuth_EnsureAdmins(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)

	if err := s.EnsureAdmins(ctx, []string{"10", " ", "", "11@s.whatsapp.net"}); err != nil {
		t.Fatalf("EnsureAdmins: %v", err)
	}
	// Idempotent on restart.
	if err := s.EnsureAdmins(ctx, []string{"10"}); err != nil {
		t.Fatalf("EnsureAdmins (again): %v", err)
	}
	admins, _ := s.ListAdmins(ctx)
	if len(admins) != 2 {
		t.Fatalf("expected 2 admins, got %v", admins)
	}
}

func TestAuth_BlankIdentifiers(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)

	if err := s.AddToWhitelist(ctx, "  "); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if err := s.AddAdmin(ctx, ""); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}
	if ok, err := s.IsAuthorized(ctx, "", "", false); ok || err != nil {
		t.Fatalf("blank chat: ok=%v err=%v", ok, err)
	}
	if ok, err := s.IsAdmin(ctx, ""); ok || err != nil {
		t.Fatalf("blank sender: ok=%v err=%v", ok, err)
	}
}

type brokenWhitelist struct{ repo.Whitelist }

var errStoreDown = errors.New("store down")

func (brokenWhitelist) GetWhitelistEntry(context.Context, *gorm.DB, string) (*domain.WhitelistEntry, error) {
	return nil, errStoreDown
}

func TestAuth_StoreErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	s := NewAuthService(newSvcDB(t), brokenWhitelist{})

	if _, err := s.IsAuthorized(ctx, "1", "1", false); !errors.Is(err, errStoreDown) {
		t.Fatalf("IsAuthorized: expected store error, got %v", err)
	}
	if _, err := s.IsAdmin(ctx, "1"); !errors.Is(err, errStoreDown) {
		t.Fatalf("IsAdmin: expected store error, got %v", err)
	}
}

func TestNormalizedStorage(t *testing.T) {
	ctx := context.Background()
	s := newAuth(t)
	_ = s.AddToWhitelist(ctx, "42")

	e, err := repo.GetWhitelistEntry(ctx, s.DB, domain.NormalizeID("42"))
	if err != nil || e.UserID != "42@s.whatsapp.net" {
		t.Fatalf("expected qualified storage, got %+v err=%v", e, err)
	}
}
