// Package bridge adapts a WAHA-compatible WhatsApp HTTP bridge to the bot:
// outbound text and reactions, media download, webhook decoding, and a
// supervisor that keeps the bridge session running.
package bridge

import (
	"strings"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// bridgeUserServer is the personal-account domain used on the bridge wire.
const bridgeUserServer = "c.us"

// ToCanonical converts a bridge identifier (…@c.us) to the canonical form
// used by the store (…@s.whatsapp.net). Group and bare ids pass through.
func ToCanonical(id string) string {
	if user, ok := strings.CutSuffix(id, "@"+bridgeUserServer); ok {
		return user + "@" + domain.UserServer
	}
	return id
}

// ToBridge converts a canonical identifier to the bridge form. Bare ids are
// qualified first.
func ToBridge(id string) string {
	if id == "" {
		return ""
	}
	id = domain.NormalizeID(id)
	if user, ok := strings.CutSuffix(id, "@"+domain.UserServer); ok {
		return user + "@" + bridgeUserServer
	}
	return id
}
