// Package transcribe implements a client for OpenAI-compatible speech-to-text
// endpoints (POST {base}/audio/transcriptions). Groq is the default backend.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultBaseURL points at Groq's OpenAI-compatible API.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the Whisper model requested when none is configured.
	DefaultModel = "whisper-large-v3"
	// FormatJSON asks the provider for a structured {"text": ...} body.
	FormatJSON = "json"

	maxErrorBody = 4 << 10
)

// ErrEmptyAudio is returned when Transcribe is called without payload.
var ErrEmptyAudio = errors.New("audio payload is empty")

// Options are the per-request knobs sent alongside the audio file.
// Empty Language and Prompt are omitted so the provider default applies.
type Options struct {
	Model          string
	ResponseFormat string
	Language       string
	Prompt         string
	Temperature    float64
	// FileName and MimeType describe the uploaded part. Providers sniff the
	// container from the extension, so voice notes default to audio.ogg.
	FileName string
	MimeType string
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int    `json:"status"`
	Body       string `json:"body"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("transcription API error %d: %s", e.StatusCode, e.Body)
}

// Client talks to the transcription endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client. An empty baseURL selects DefaultBaseURL and a
// non-positive timeout falls back to 60s.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads audio and returns the recognized text as sent by the
// provider. No retry is attempted.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts Options) (string, error) {
	ctx, span := otel.Tracer("transcribe/Client").Start(ctx, "Transcribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("transcribe.model", opts.Model),
			attribute.Int("transcribe.audio_bytes", len(audio)),
		),
	)
	defer span.End()

	text, err := c.do(ctx, audio, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}

func (c *Client) do(ctx context.Context, audio []byte, opts Options) (string, error) {
	if len(audio) == 0 {
		return "", ErrEmptyAudio
	}

	body, contentType, err := encodeForm(audio, opts)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return out.Text, nil
}

func encodeForm(audio []byte, opts Options) (io.Reader, string, error) {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	format := opts.ResponseFormat
	if format == "" {
		format = FormatJSON
	}
	name := opts.FileName
	if name == "" {
		name = "audio.ogg"
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("writing audio: %w", err)
	}

	fields := [][2]string{
		{"model", model},
		{"response_format", format},
		{"temperature", strconv.FormatFloat(opts.Temperature, 'f', -1, 64)},
	}
	if opts.Language != "" {
		fields = append(fields, [2]string{"language", opts.Language})
	}
	if opts.Prompt != "" {
		fields = append(fields, [2]string{"prompt", opts.Prompt})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("writing %s field: %w", f[0], err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}
