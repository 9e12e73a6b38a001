package domain

import "strings"

const (
	// UserServer is the canonical domain of personal accounts.
	UserServer = "s.whatsapp.net"
	// GroupServer is the domain of group chats.
	GroupServer = "g.us"
)

// NormalizeID returns id in its qualified form. Identifiers that already
// carry a domain are returned unchanged; bare ones get the personal-account
// domain appended. NormalizeID(NormalizeID(x)) == NormalizeID(x).
func NormalizeID(id string) string {
	if IsQualified(id) {
		return id
	}
	return id + "@" + UserServer
}

// StripDomain returns the part of id before the domain separator.
func StripDomain(id string) string {
	user, _, _ := strings.Cut(id, "@")
	return user
}

// IsGroupID reports whether id names a group chat.
func IsGroupID(id string) bool {
	return strings.HasSuffix(id, "@"+GroupServer)
}

// IsQualified reports whether id carries a domain.
func IsQualified(id string) bool {
	return strings.Contains(id, "@")
}
