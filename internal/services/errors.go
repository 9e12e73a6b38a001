// Package services defines the business logic for authorization, per-chat
// settings, and audio transcription.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing chat replies or HTTP status codes is performed
// by the bot dispatcher and the HTTP handlers respectively.
package services

import "errors"

var (
	// ErrEntryNotFound indicates that the identifier has no whitelist entry.
	ErrEntryNotFound = errors.New("whitelist entry not found")

	// ErrInvalidIdentifier is returned when an identifier is blank.
	ErrInvalidIdentifier = errors.New("identifier is empty")

	// ErrInvalidTemperature is returned when a temperature is NaN or falls
	// outside [0, 1].
	ErrInvalidTemperature = errors.New("temperature must be a number between 0.0 and 1.0")

	// ErrEmptyPrefix is returned when a command prefix change carries no
	// characters.
	ErrEmptyPrefix = errors.New("command prefix is empty")

	// ErrNoAudio is returned when the transcription workflow is invoked for a
	// message without an audio attachment.
	ErrNoAudio = errors.New("message carries no audio")
)
