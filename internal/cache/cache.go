// Package cache provides the read-through cache that sits in front of the
// settings store. Values are plain strings keyed by setting scope.
package cache

import (
	"context"
	"strings"
	"time"
)

// Store is the minimal contract the settings service needs from a cache.
// A miss is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (val string, ok bool, err error)
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const keyPrefix = "whisperzap:setting:"

// ChatKey returns the cache key for a per-chat setting.
func ChatKey(chatID, key string) string {
	return keyPrefix + "chat:" + chatID + ":" + key
}

// GlobalKey returns the cache key for a global setting.
func GlobalKey(key string) string {
	return keyPrefix + "global:" + key
}

// IsSettingKey reports whether key belongs to the settings namespace.
func IsSettingKey(key string) bool {
	return strings.HasPrefix(key, keyPrefix)
}
