package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/veigamann/whisper-zap/internal/bot"
	"github.com/veigamann/whisper-zap/internal/bridge"
	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/repo"
)

type fakeInbox struct {
	batches [][]domain.InboundMessage
	err     error
}

func (f *fakeInbox) Enqueue(msgs []domain.InboundMessage) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, msgs)
	return nil
}

type fakeRoster struct {
	roster repo.Roster
	err    error
}

func (f fakeRoster) RosterStats(context.Context) (repo.Roster, error) { return f.roster, f.err }

type fakePrefix string

func (f fakePrefix) Prefix(context.Context) (string, error) { return string(f), nil }

const textEvent = `{"event":"message","session":"default","payload":{"id":"m1","from":"5511999@c.us","body":".help"}}`

func newEngine(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", h.WebhookAuth, h.Webhook)
	r.GET("/status", h.Status)
	r.GET("/health", h.Health)
	return r
}

func send(r http.Handler, body, secret string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(HeaderWebhookSecret, secret)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		secret     string
		inboxErr   error
		wantStatus int
		wantCode   string
		wantQueued int
	}{
		{"queued", textEvent, "s3cret", nil, http.StatusAccepted, "", 1},
		{"wrong secret", textEvent, "nope", nil, http.StatusUnauthorized, ErrCodeUnauthorized, 0},
		{"missing secret", textEvent, "", nil, http.StatusUnauthorized, ErrCodeUnauthorized, 0},
		{"malformed", `{"event":`, "s3cret", nil, http.StatusBadRequest, ErrCodeBadRequest, 0},
		{"status event only", `{"event":"session.status","session":"default","payload":{}}`, "s3cret", nil, http.StatusOK, "", 0},
		{"other session", strings.Replace(textEvent, `"default"`, `"other"`, 1), "s3cret", nil, http.StatusOK, "", 0},
		{"queue full", textEvent, "s3cret", bot.ErrQueueFull, http.StatusServiceUnavailable, ErrCodeUnavailable, 0},
		{"queue broken", textEvent, "s3cret", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inbox := &fakeInbox{err: tc.inboxErr}
			h := New(Options{Inbox: inbox, Decoder: bridge.Decoder{}, Secret: "s3cret", Session: "default"})
			w := send(newEngine(h), tc.body, tc.secret)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantCode != "" {
				var er ErrorResponse
				if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil || er.Code != tc.wantCode {
					t.Fatalf("error body = %s", w.Body.String())
				}
			}
			if len(inbox.batches) != tc.wantQueued {
				t.Fatalf("queued %d batches, want %d", len(inbox.batches), tc.wantQueued)
			}
		})
	}
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	inbox := &fakeInbox{}
	w := send(newEngine(New(Options{Inbox: inbox})), textEvent, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	var ack WebhookAck
	if err := json.Unmarshal(w.Body.Bytes(), &ack); err != nil {
		t.Fatalf("json: %v", err)
	}
	if ack.Status != "queued" || ack.Messages != 1 {
		t.Fatalf("ack = %+v", ack)
	}
	if got := inbox.batches[0][0].ChatID; got != "5511999@s.whatsapp.net" {
		t.Fatalf("chat id = %q", got)
	}
}

func TestStatus(t *testing.T) {
	h := New(Options{
		Roster:  fakeRoster{roster: repo.Roster{Whitelisted: 3, Admins: 1, EnabledChats: 2}},
		Prefix:  fakePrefix("!"),
		Session: "default",
	})
	r := newEngine(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	want := StatusResponse{Session: "default", Prefix: "!", Whitelisted: 3, Admins: 1, EnabledChats: 2}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", w.Code, w.Body.String())
	}
}

func TestStatus_RosterFailure(t *testing.T) {
	h := New(Options{Roster: fakeRoster{err: errors.New("locked")}, Prefix: fakePrefix(".")})
	w := httptest.NewRecorder()
	newEngine(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
}

type seenFilter struct {
	seen      map[string]bool
	forgotten []string
	err       error
}

func (f *seenFilter) Fresh(_ context.Context, m domain.InboundMessage) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.seen[m.Key.ID] {
		return false, nil
	}
	f.seen[m.Key.ID] = true
	return true, nil
}

func (f *seenFilter) Forget(_ context.Context, m domain.InboundMessage) error {
	delete(f.seen, m.Key.ID)
	f.forgotten = append(f.forgotten, m.Key.ID)
	return nil
}

func TestWebhook_FilterDropsRedelivery(t *testing.T) {
	inbox := &fakeInbox{}
	r := newEngine(New(Options{Inbox: inbox, Filter: &seenFilter{seen: map[string]bool{}}}))

	if w := send(r, textEvent, ""); w.Code != http.StatusAccepted {
		t.Fatalf("first = %d", w.Code)
	}
	w := send(r, textEvent, "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ignored":1`) {
		t.Fatalf("second = %d %s", w.Code, w.Body.String())
	}
	if len(inbox.batches) != 1 {
		t.Fatalf("queued %d batches", len(inbox.batches))
	}
}

func TestWebhook_FilterErrorKeepsMessage(t *testing.T) {
	inbox := &fakeInbox{}
	r := newEngine(New(Options{Inbox: inbox, Filter: &seenFilter{err: errors.New("locked")}}))
	if w := send(r, textEvent, ""); w.Code != http.StatusAccepted {
		t.Fatalf("status = %d", w.Code)
	}
	if len(inbox.batches) != 1 {
		t.Fatalf("queued %d batches", len(inbox.batches))
	}
}

func TestWebhook_QueueFullForgetsMessage(t *testing.T) {
	inbox := &fakeInbox{err: bot.ErrQueueFull}
	filter := &seenFilter{seen: map[string]bool{}}
	r := newEngine(New(Options{Inbox: inbox, Filter: filter}))

	w := send(r, textEvent, "")
	if w.Code != http.StatusServiceUnavailable || w.Header().Get("Retry-After") == "" {
		t.Fatalf("first = %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	if len(filter.forgotten) != 1 || filter.forgotten[0] != "m1" {
		t.Fatalf("forgotten = %v", filter.forgotten)
	}

	inbox.err = nil
	w = send(r, textEvent, "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry = %d %s", w.Code, w.Body.String())
	}
	if len(inbox.batches) != 1 || inbox.batches[0][0].Key.ID != "m1" {
		t.Fatalf("batches = %+v", inbox.batches)
	}
}
