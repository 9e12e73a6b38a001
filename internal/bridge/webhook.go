package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// Event names that carry chat messages.
const (
	EventMessage    = "message"
	EventMessageAny = "message.any"
)

// ErrEmptyWebhook is returned for a body with no JSON content.
var ErrEmptyWebhook = errors.New("empty webhook body")

// Event is one webhook delivery from the bridge.
type Event struct {
	ID      string          `json:"id,omitempty"`
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Payload json.RawMessage `json:"payload"`
}

// MessagePayload is the message body of "message" events.
type MessagePayload struct {
	ID          string `json:"id"`
	From        string `json:"from"`
	To          string `json:"to"`
	FromMe      bool   `json:"fromMe"`
	Participant string `json:"participant,omitempty"`
	Body        string `json:"body"`
	HasMedia    bool   `json:"hasMedia"`
	Media       *Media `json:"media,omitempty"`
}

// Media describes an attachment the bridge has stored.
type Media struct {
	URL      string `json:"url"`
	MimeType string `json:"mimetype"`
}

// Batch is the decoded content of one webhook request.
type Batch struct {
	Session  string
	Messages []domain.InboundMessage
	// Ignored counts events that were not messages or could not be mapped.
	Ignored int
}

// Decoder maps bridge events to inbound messages.
type Decoder struct {
	// SelfID is the bot account, used as sender of its own messages.
	SelfID string
	// AcceptAny also consumes "message.any" events, which include messages
	// the bot account sends from other devices.
	AcceptAny bool
}

// Decode parses a webhook body that holds either one event object or an
// array of them.
func (d Decoder) Decode(body []byte) (Batch, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Batch{}, ErrEmptyWebhook
	}

	var events []Event
	if body[0] == '[' {
		if err := json.Unmarshal(body, &events); err != nil {
			return Batch{}, fmt.Errorf("decoding webhook array: %w", err)
		}
	} else {
		var ev Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return Batch{}, fmt.Errorf("decoding webhook: %w", err)
		}
		events = []Event{ev}
	}

	var out Batch
	for _, ev := range events {
		if out.Session == "" {
			out.Session = ev.Session
		}
		msg, ok := d.message(ev)
		if !ok {
			out.Ignored++
			continue
		}
		out.Messages = append(out.Messages, msg)
	}
	return out, nil
}

func (d Decoder) message(ev Event) (domain.InboundMessage, bool) {
	switch ev.Event {
	case EventMessage:
	case EventMessageAny:
		if !d.AcceptAny {
			return domain.InboundMessage{}, false
		}
	default:
		return domain.InboundMessage{}, false
	}
	if len(ev.Payload) == 0 {
		return domain.InboundMessage{}, false
	}

	var p MessagePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil || p.ID == "" {
		return domain.InboundMessage{}, false
	}
	return d.toInbound(p)
}

func (d Decoder) toInbound(p MessagePayload) (domain.InboundMessage, bool) {
	chat := p.From
	if p.FromMe {
		// Without our own id there is no sender to authorize.
		if strings.TrimSpace(d.SelfID) == "" {
			return domain.InboundMessage{}, false
		}
		chat = p.To
	}
	chat = ToCanonical(chat)
	if chat == "" {
		return domain.InboundMessage{}, false
	}
	group := domain.IsGroupID(chat)

	var sender string
	switch {
	case p.FromMe:
		sender = domain.NormalizeID(ToCanonical(d.SelfID))
	case group:
		sender = ToCanonical(p.Participant)
	default:
		sender = chat
	}
	if group && sender == "" {
		return domain.InboundMessage{}, false
	}

	msg := domain.InboundMessage{
		Key:      domain.MessageKey{ID: p.ID, ChatID: chat, FromMe: p.FromMe},
		ChatID:   chat,
		SenderID: sender,
		IsGroup:  group,
		Text:     p.Body,
	}
	if p.HasMedia && p.Media != nil && strings.HasPrefix(strings.ToLower(p.Media.MimeType), "audio/") {
		msg.Audio = &domain.AudioRef{URL: p.Media.URL, MimeType: p.Media.MimeType}
		msg.Text = ""
	}
	return msg, true
}
