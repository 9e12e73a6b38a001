package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// Messenger is the outbound side of the messaging transport.
type Messenger interface {
	SendText(ctx context.Context, chatID, text string, quoted domain.MessageKey) error
	SendReaction(ctx context.Context, chatID, emoji string, key domain.MessageKey) error
}

// Authorizer answers the whitelist and admin questions for a message.
type Authorizer interface {
	IsAuthorized(ctx context.Context, chatID, senderID string, isGroup bool) (bool, error)
	IsAdmin(ctx context.Context, senderID string) (bool, error)
}

// Transcriber runs the transcription workflow for an audio message.
type Transcriber interface {
	Transcribe(ctx context.Context, msg domain.InboundMessage) (string, error)
}

// ChatState is the part of the settings facade the router reads directly.
type ChatState interface {
	Prefix(ctx context.Context) (string, error)
	ChatEnabled(ctx context.Context, chatID string) (bool, error)
}

// Reactions are the emoji used to signal transcription progress.
type Reactions struct {
	Working string
	Error   string
	Done    string
}

// DefaultReactions returns the stock progress emoji.
func DefaultReactions() Reactions {
	return Reactions{Working: "⚙️", Error: "❌", Done: "✅"}
}

// Router is the per-message entry point. It drops unauthorized traffic,
// dispatches commands, and runs transcriptions with reaction feedback.
type Router struct {
	Auth        Authorizer
	State       ChatState
	Dispatcher  *Dispatcher
	Transcriber Transcriber
	Messenger   Messenger
	Reactions   Reactions
	Texts       Texts
}

// HandleBatch processes a delivery. Only single-message batches are handled;
// anything else is discarded as a whole.
func (r *Router) HandleBatch(ctx context.Context, msgs []domain.InboundMessage) {
	if len(msgs) != 1 {
		droppedMessages.WithLabelValues("batch").Inc()
		log.Debug().Int("size", len(msgs)).Msg("discarding non-singleton batch")
		return
	}
	r.Handle(ctx, msgs[0])
}

// Handle processes one message. Failures are logged and, where a reply is
// due, reported in chat; nothing is returned to the caller.
func (r *Router) Handle(ctx context.Context, msg domain.InboundMessage) {
	lg := log.With().Str("chat_id", msg.ChatID).Str("message_id", msg.Key.ID).Logger()

	ok, err := r.Auth.IsAuthorized(ctx, msg.ChatID, msg.SenderID, msg.IsGroup)
	if err != nil {
		droppedMessages.WithLabelValues("auth_error").Inc()
		lg.Error().Err(err).Msg("authorization lookup failed")
		return
	}
	if !ok {
		droppedMessages.WithLabelValues("unauthorized").Inc()
		lg.Debug().Msg("dropping message from unauthorized sender")
		return
	}

	if msg.Text != "" {
		r.handleCommand(ctx, msg)
	}

	if msg.Audio != nil {
		enabled, err := r.State.ChatEnabled(ctx, msg.ChatID)
		if err != nil {
			lg.Error().Err(err).Msg("chat state lookup failed")
			r.reportFailure(ctx, lg, msg, err)
			return
		}
		if enabled {
			r.transcribe(ctx, msg)
		}
	}
}

func (r *Router) handleCommand(ctx context.Context, msg domain.InboundMessage) {
	prefix, err := r.State.Prefix(ctx)
	if err != nil {
		log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("prefix lookup failed")
		return
	}
	if !strings.HasPrefix(msg.Text, prefix) {
		return
	}

	var reply string
	isAdmin, err := r.Auth.IsAdmin(ctx, msg.SenderID)
	if err != nil {
		name, _, _ := strings.Cut(msg.Text, " ")
		reply = r.Dispatcher.fail(name, err)
	} else {
		reply = r.Dispatcher.Dispatch(ctx, msg.Text, msg, isAdmin)
	}
	if reply == "" {
		return
	}
	if err := r.Messenger.SendText(ctx, msg.ChatID, reply, msg.Key); err != nil {
		log.Error().Err(err).Str("chat_id", msg.ChatID).Msg("sending command reply failed")
	}
}

// transcribe drives received -> working -> done|error.
func (r *Router) transcribe(ctx context.Context, msg domain.InboundMessage) {
	lg := log.With().Str("chat_id", msg.ChatID).Str("message_id", msg.Key.ID).Logger()

	// Best effort; a missing working reaction does not stop the workflow.
	if err := r.Messenger.SendReaction(ctx, msg.ChatID, r.Reactions.Working, msg.Key); err != nil {
		lg.Debug().Err(err).Msg("working reaction failed")
	}

	start := time.Now()
	text, err := r.Transcriber.Transcribe(ctx, msg)
	transcriptionDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		err = r.Messenger.SendText(ctx, msg.ChatID, r.Texts.Transcript(text), msg.Key)
		if err == nil {
			transcriptionsTotal.WithLabelValues(outcomeOK).Inc()
			r.react(ctx, lg, msg, r.Reactions.Done)
			return
		}
	}

	transcriptionsTotal.WithLabelValues(outcomeError).Inc()
	lg.Error().Err(err).Msg("transcription failed")
	r.reportFailure(ctx, lg, msg, err)
}

// reportFailure replies with the diagnostic and sets the error reaction.
func (r *Router) reportFailure(ctx context.Context, lg zerolog.Logger, msg domain.InboundMessage, err error) {
	if serr := r.Messenger.SendText(ctx, msg.ChatID, r.Texts.TranscriptionFailure(err), msg.Key); serr != nil {
		lg.Error().Err(serr).Msg("sending transcription diagnostic failed")
	}
	r.react(ctx, lg, msg, r.Reactions.Error)
}

func (r *Router) react(ctx context.Context, lg zerolog.Logger, msg domain.InboundMessage, emoji string) {
	if err := r.Messenger.SendReaction(ctx, msg.ChatID, emoji, msg.Key); err != nil {
		lg.Error().Err(err).Str("reaction", emoji).Msg("reaction failed")
	}
}
