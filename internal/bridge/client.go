package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// MaxMediaBytes caps audio downloads; Whisper endpoints reject larger files.
const MaxMediaBytes = 25 << 20

var (
	// ErrMediaTooLarge is returned when a download exceeds MaxMediaBytes.
	ErrMediaTooLarge = errors.New("media exceeds size limit")
	// ErrForeignMedia is returned for media URLs outside the bridge origin.
	// The URL comes from the webhook payload and the request carries the
	// bridge API key.
	ErrForeignMedia = errors.New("media url is not served by the bridge")
)

// APIError is a non-2xx answer from the bridge.
type APIError struct {
	Op         string `json:"op"`
	StatusCode int    `json:"status"`
	Body       string `json:"body"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client calls the bridge REST API for one session.
type Client struct {
	baseURL    string
	session    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a Client. A non-positive timeout falls back to 30s.
func NewClient(baseURL, session, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if session == "" {
		session = "default"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SessionName returns the bridge session this client drives.
func (c *Client) SessionName() string { return c.session }

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
	ReplyTo string `json:"reply_to,omitempty"`
}

// SendText posts text to chatID, quoting the message identified by quoted
// when its ID is set.
func (c *Client) SendText(ctx context.Context, chatID, text string, quoted domain.MessageKey) error {
	body := sendTextRequest{
		Session: c.session,
		ChatID:  ToBridge(chatID),
		Text:    text,
		ReplyTo: quoted.ID,
	}
	return c.doJSON(ctx, "sendText", http.MethodPost, "/api/sendText", body, nil)
}

type reactionRequest struct {
	Session   string `json:"session"`
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
}

// SendReaction sets emoji as the bot's reaction on key. The bridge addresses
// messages by their serialized id, so chatID is informational only.
func (c *Client) SendReaction(ctx context.Context, _ string, emoji string, key domain.MessageKey) error {
	body := reactionRequest{Session: c.session, MessageID: key.ID, Reaction: emoji}
	return c.doJSON(ctx, "reaction", http.MethodPut, "/api/reaction", body, nil)
}

// DownloadAudio fetches the attachment bytes. Relative URLs are resolved
// against the bridge base URL; absolute ones must share its scheme and host.
func (c *Client) DownloadAudio(ctx context.Context, ref domain.AudioRef) ([]byte, error) {
	if strings.TrimSpace(ref.URL) == "" {
		return nil, errors.New("media url is empty")
	}
	u, err := c.resolve(ref.URL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading media: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus("media", resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxMediaBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading media: %w", err)
	}
	if len(data) > MaxMediaBytes {
		return nil, ErrMediaTooLarge
	}
	return data, nil
}

// SessionInfo is the subset of the session resource the supervisor reads.
type SessionInfo struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Session statuses reported by the bridge.
const (
	StatusWorking  = "WORKING"
	StatusStarting = "STARTING"
	StatusScanQR   = "SCAN_QR_CODE"
	StatusStopped  = "STOPPED"
	StatusFailed   = "FAILED"
)

// Session returns the current state of the session.
func (c *Client) Session(ctx context.Context) (SessionInfo, error) {
	var out SessionInfo
	err := c.doJSON(ctx, "session", http.MethodGet, "/api/sessions/"+url.PathEscape(c.session), nil, &out)
	return out, err
}

// StartSession asks the bridge to (re)start the session.
func (c *Client) StartSession(ctx context.Context) error {
	return c.doJSON(ctx, "start", http.MethodPost, "/api/sessions/"+url.PathEscape(c.session)+"/start", nil, nil)
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("bridge %s: %w", op, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

func (c *Client) resolve(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing media url: %w", err)
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("parsing bridge url: %w", err)
	}
	u := base.ResolveReference(ref)
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", fmt.Errorf("%w: %s://%s", ErrForeignMedia, u.Scheme, u.Host)
	}
	return u.String(), nil
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
