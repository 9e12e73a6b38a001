// Package services – AuthService
//
// This file implements AuthService, the only writer of whitelist entries. It
// answers two read questions for the message router (is this identity
// allowed to talk to the bot, and is it an administrator) and exposes the
// roster mutations used by chat commands and the whitelist CLI.
//
// Every identifier is normalized with domain.NormalizeID before it reaches
// the store.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// WhitelistRepo defines the repository contract required by AuthService.
type WhitelistRepo interface {
	// GetWhitelistEntry returns the entry for userID or gorm.ErrRecordNotFound.
	GetWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) (*domain.WhitelistEntry, error)

	// EnsureWhitelistEntry creates a non-admin entry unless one exists.
	EnsureWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error

	// UpsertAdmin creates or promotes an entry to admin.
	UpsertAdmin(ctx context.Context, db *gorm.DB, userID string) error

	// SetAdminFlag updates the admin flag of an existing entry.
	SetAdminFlag(ctx context.Context, db *gorm.DB, userID string, isAdmin bool) error

	// DeleteWhitelistEntry removes an entry.
	DeleteWhitelistEntry(ctx context.Context, db *gorm.DB, userID string) error

	// ListWhitelist returns every entry.
	ListWhitelist(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error)

	// ListAdmins returns the entries flagged as admin.
	ListAdmins(ctx context.Context, db *gorm.DB) ([]domain.WhitelistEntry, error)
}

// AuthService resolves whitelist membership and admin rights.
type AuthService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the whitelist repository used by this service.
	Repo WhitelistRepo
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, r WhitelistRepo) *AuthService {
	return &AuthService{DB: db, Repo: r}
}

// actingID returns the identity whose rights apply to a message: the
// participant in a group, the chat itself otherwise.
func actingID(chatID, senderID string, isGroup bool) string {
	if isGroup {
		return strings.TrimSpace(senderID)
	}
	return strings.TrimSpace(chatID)
}

// IsAuthorized reports whether the acting identity has a whitelist entry.
// Admins always have one, because AddAdmin upserts.
func (s *AuthService) IsAuthorized(ctx context.Context, chatID, senderID string, isGroup bool) (bool, error) {
	ctx, span := otel.Tracer("services/AuthService").Start(ctx, "IsAuthorized",
		trace.WithAttributes(attribute.Bool("chat.group", isGroup)),
	)
	defer span.End()

	id := actingID(chatID, senderID, isGroup)
	if id == "" {
		return false, nil
	}
	_, err := s.Repo.GetWhitelistEntry(ctx, s.DB, domain.NormalizeID(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return true, nil
}

// IsAdmin reports whether senderID has an entry with the admin flag set.
func (s *AuthService) IsAdmin(ctx context.Context, senderID string) (bool, error) {
	senderID = strings.TrimSpace(senderID)
	if senderID == "" {
		return false, nil
	}
	e, err := s.Repo.GetWhitelistEntry(ctx, s.DB, domain.NormalizeID(senderID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return e.IsAdmin, nil
}

// AddToWhitelist grants access to id. Existing entries keep their admin flag.
func (s *AuthService) AddToWhitelist(ctx context.Context, id string) error {
	norm, err := normalizeArg(id)
	if err != nil {
		return err
	}
	return s.Repo.EnsureWhitelistEntry(ctx, s.DB, norm)
}

// RemoveFromWhitelist deletes the entry for id, admin flag included.
// It returns ErrEntryNotFound when there is nothing to delete.
func (s *AuthService) RemoveFromWhitelist(ctx context.Context, id string) error {
	norm, err := normalizeArg(id)
	if err != nil {
		return err
	}
	return mapNotFound(s.Repo.DeleteWhitelistEntry(ctx, s.DB, norm))
}

// ListWhitelist returns the qualified identifiers of every entry.
func (s *AuthService) ListWhitelist(ctx context.Context) ([]string, error) {
	rows, err := s.Repo.ListWhitelist(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return userIDs(rows), nil
}

// AddAdmin grants admin rights to id, creating the entry when needed.
func (s *AuthService) AddAdmin(ctx context.Context, id string) error {
	norm, err := normalizeArg(id)
	if err != nil {
		return err
	}
	return s.Repo.UpsertAdmin(ctx, s.DB, norm)
}

// RemoveAdmin clears the admin flag of id. The entry itself is kept, so the
// identity stays whitelisted. It returns ErrEntryNotFound for unknown ids.
func (s *AuthService) RemoveAdmin(ctx context.Context, id string) error {
	norm, err := normalizeArg(id)
	if err != nil {
		return err
	}
	return mapNotFound(s.Repo.SetAdminFlag(ctx, s.DB, norm, false))
}

// ListAdmins returns the qualified identifiers of every admin.
func (s *AuthService) ListAdmins(ctx context.Context) ([]string, error) {
	rows, err := s.Repo.ListAdmins(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	return userIDs(rows), nil
}

// EnsureAdmins seeds admin entries at startup. Blank ids are skipped; the
// first failure aborts the seeding.
func (s *AuthService) EnsureAdmins(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := s.AddAdmin(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func normalizeArg(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidIdentifier
	}
	return domain.NormalizeID(id), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEntryNotFound
	}
	return err
}

func userIDs(rows []domain.WhitelistEntry) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out
}
