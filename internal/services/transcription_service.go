// Package services – TranscriptionService
//
// This file implements the audio transcription workflow: download the
// attachment through the transport, read the chat's options, call the
// provider, and trim the result. Any failure along the way is returned as a
// single error; there is no retry and no fallback provider. Progress
// reactions are driven by the caller.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/transcribe"
)

// AudioSource downloads attachment bytes from the transport.
type AudioSource interface {
	DownloadAudio(ctx context.Context, ref domain.AudioRef) ([]byte, error)
}

// Transcriber turns audio bytes into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts transcribe.Options) (string, error)
}

// ChatOptions is the read side of SettingsService used by the workflow.
type ChatOptions interface {
	Temperature(ctx context.Context, chatID string) (float64, error)
	Language(ctx context.Context, chatID string) (string, error)
	Prompt(ctx context.Context, chatID string) (string, error)
}

// TranscriptionService runs the transcription workflow for one message.
type TranscriptionService struct {
	Audio    AudioSource
	Provider Transcriber
	Settings ChatOptions

	// Model is the provider model name; empty selects transcribe.DefaultModel.
	Model string
}

// NewTranscriptionService constructs a TranscriptionService.
func NewTranscriptionService(audio AudioSource, provider Transcriber, settings ChatOptions, model string) *TranscriptionService {
	if model == "" {
		model = transcribe.DefaultModel
	}
	return &TranscriptionService{Audio: audio, Provider: provider, Settings: settings, Model: model}
}

// Transcribe returns the trimmed transcript of msg's audio attachment.
func (s *TranscriptionService) Transcribe(ctx context.Context, msg domain.InboundMessage) (string, error) {
	ctx, span := otel.Tracer("services/TranscriptionService").Start(ctx, "Transcribe",
		trace.WithAttributes(
			attribute.String("message.id", msg.Key.ID),
			attribute.Bool("chat.group", msg.IsGroup),
		),
	)
	defer span.End()

	text, err := s.run(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (s *TranscriptionService) run(ctx context.Context, msg domain.InboundMessage) (string, error) {
	if msg.Audio == nil {
		return "", ErrNoAudio
	}

	audio, err := s.Audio.DownloadAudio(ctx, *msg.Audio)
	if err != nil {
		return "", fmt.Errorf("download audio: %w", err)
	}

	temp, err := s.Settings.Temperature(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("read temperature: %w", err)
	}
	lang, err := s.Settings.Language(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("read language: %w", err)
	}
	prompt, err := s.Settings.Prompt(ctx, msg.ChatID)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}

	text, err := s.Provider.Transcribe(ctx, audio, transcribe.Options{
		Model:          s.Model,
		ResponseFormat: transcribe.FormatJSON,
		Language:       LanguageHint(lang),
		Prompt:         prompt,
		Temperature:    temp,
		FileName:       fileNameFor(msg.Audio.MimeType),
		MimeType:       msg.Audio.MimeType,
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// LanguageHint reduces a BCP-47 tag such as "pt-BR" to its ISO-639 base
// ("pt"), which is what Whisper accepts. Values that do not parse as a tag
// are passed through trimmed.
func LanguageHint(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, conf := tag.Base()
	if conf == language.No {
		return lang
	}
	return base.String()
}

// fileNameFor picks an upload name whose extension matches the container.
func fileNameFor(mimeType string) string {
	mt, _, _ := strings.Cut(strings.ToLower(mimeType), ";")
	ext := "ogg"
	switch strings.TrimSpace(mt) {
	case "audio/mpeg", "audio/mp3":
		ext = "mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a", "audio/aac":
		ext = "m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		ext = "wav"
	case "audio/webm":
		ext = "webm"
	}
	return "audio." + ext
}
