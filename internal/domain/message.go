package domain

// MessageKey addresses a message inside a chat so replies can quote it and
// reactions can target it.
type MessageKey struct {
	ID     string
	ChatID string
	FromMe bool
}

// AudioRef points at an audio attachment the transport can download.
type AudioRef struct {
	URL      string
	MimeType string
}

// InboundMessage is a transport-agnostic view of a received message.
//
// SenderID is always set by the transport adapter: the participant in a
// group, the counterpart in a direct chat, or the bot account itself for
// messages it authored.
type InboundMessage struct {
	Key      MessageKey
	ChatID   string
	SenderID string
	IsGroup  bool
	Text     string
	Audio    *AudioRef
}

// ActingID returns the identity that authorization applies to: the sender in
// a group chat, the chat itself in a direct chat.
func (m InboundMessage) ActingID() string {
	if m.IsGroup {
		return m.SenderID
	}
	return m.ChatID
}
