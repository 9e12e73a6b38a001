package handlers

import (
	"context"

	"github.com/veigamann/whisper-zap/internal/bridge"
	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/repo"
)

// Inbox accepts decoded webhook batches for the bot worker.
type Inbox interface {
	Enqueue(msgs []domain.InboundMessage) error
}

// MessageFilter drops messages the bot already handled. Fresh reports
// whether msg is new and records it; Forget undoes that record when the
// message could not be queued.
type MessageFilter interface {
	Fresh(ctx context.Context, msg domain.InboundMessage) (bool, error)
	Forget(ctx context.Context, msg domain.InboundMessage) error
}

// RosterReader reports whitelist and chat counts.
type RosterReader interface {
	RosterStats(ctx context.Context) (repo.Roster, error)
}

// PrefixReader returns the active command prefix.
type PrefixReader interface {
	Prefix(ctx context.Context) (string, error)
}

// Handlers groups the HTTP endpoints and their collaborators.
type Handlers struct {
	inbox   Inbox
	decoder bridge.Decoder
	filter  MessageFilter
	secret  string
	roster  RosterReader
	prefix  PrefixReader
	session string
}

// Options wires Handlers.
type Options struct {
	Inbox   Inbox
	Decoder bridge.Decoder
	// Filter is optional.
	Filter MessageFilter
	// Secret, when set, must match the X-Api-Key header (see WebhookAuth).
	Secret  string
	Roster  RosterReader
	Prefix  PrefixReader
	Session string
}

// New returns Handlers bound to opts.
func New(opts Options) *Handlers {
	return &Handlers{
		inbox:   opts.Inbox,
		decoder: opts.Decoder,
		filter:  opts.Filter,
		secret:  opts.Secret,
		roster:  opts.Roster,
		prefix:  opts.Prefix,
		session: opts.Session,
	}
}
