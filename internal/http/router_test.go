package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/bot"
	"github.com/veigamann/whisper-zap/internal/config"
	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/http/handlers"
	"github.com/veigamann/whisper-zap/internal/http/middleware"
	"github.com/veigamann/whisper-zap/internal/repo"
)

// recordingInbox refuses the first full calls with bot.ErrQueueFull.
type recordingInbox struct {
	batches [][]domain.InboundMessage
	full    int
}

func (r *recordingInbox) Enqueue(msgs []domain.InboundMessage) error {
	if r.full > 0 {
		r.full--
		return bot.ErrQueueFull
	}
	r.batches = append(r.batches, msgs)
	return nil
}

type staticPrefix string

func (s staticPrefix) Prefix(context.Context) (string, error) { return string(s), nil }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "router.db"), repo.Options{Silent: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:  "/api/v1",
		MaxBodyBytes: 1 << 20,
		RateRPS:      100,
		RateBurst:    10,
		Store:        config.StoreConfig{EventTTL: time.Hour},
		Bridge:       config.BridgeConfig{Session: "default", WebhookSecret: "s3cret"},
		OTEL:         config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestEngine(t *testing.T, cfg config.Config) (*gin.Engine, *recordingInbox, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	inbox := &recordingInbox{}
	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Inbox: inbox, Settings: staticPrefix(".")}, cfg)
	return r, inbox, db
}

func do(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthMetricsFallbacks(t *testing.T) {
	r, _, _ := newTestEngine(t, testConfig())

	w := do(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://anywhere.test"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q, want *", got)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" || w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("security/request-id headers missing: %v", w.Header())
	}

	if w := do(r, http.MethodGet, "/metrics", nil, nil); w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics = %d len=%d", w.Code, w.Body.Len())
	}
	if w := do(r, http.MethodGet, "/nope", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/health", nil, nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/swagger/index.html", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger served while disabled: %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowList(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"http://example.com"}
	r, _, _ := newTestEngine(t, cfg)

	w := do(r, http.MethodGet, "/health", nil, map[string]string{"Origin": "http://example.com"})
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("ACAO = %q", got)
	}
}

func TestRegisterRoutes_WebhookPipeline(t *testing.T) {
	r, inbox, db := newTestEngine(t, testConfig())

	event := `{"event":"message","session":"default","payload":{"id":"m1","from":"5511999@c.us","body":".help"}}`
	hdr := map[string]string{
		"Content-Type":                    "application/json",
		handlers.HeaderWebhookSecret:      "s3cret",
		middleware.HeaderWebhookRequestID: "delivery-1",
	}

	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), hdr); w.Code != http.StatusAccepted {
		t.Fatalf("first delivery = %d %s", w.Code, w.Body.String())
	}
	// Same delivery id: answered by the de-dup middleware.
	w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), hdr)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "duplicate") {
		t.Fatalf("redelivery = %d %s", w.Code, w.Body.String())
	}
	// New delivery id, same message: dropped by the message filter.
	hdr[middleware.HeaderWebhookRequestID] = "delivery-2"
	w = do(r, http.MethodPost, "/webhook", strings.NewReader(event), hdr)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"ignored":1`) {
		t.Fatalf("same message = %d %s", w.Code, w.Body.String())
	}

	if len(inbox.batches) != 1 || inbox.batches[0][0].Text != ".help" {
		t.Fatalf("batches = %+v", inbox.batches)
	}

	var claims int64
	if err := db.Model(&domain.ProcessedEvent{}).Count(&claims).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if claims != 3 {
		t.Fatalf("claims = %d, want 3", claims)
	}

	delete(hdr, handlers.HeaderWebhookSecret)
	hdr[middleware.HeaderWebhookRequestID] = "delivery-3"
	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), hdr); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing secret = %d", w.Code)
	}
}

func webhookHeaders(deliveryID string) map[string]string {
	return map[string]string{
		"Content-Type":                    "application/json",
		handlers.HeaderWebhookSecret:      "s3cret",
		middleware.HeaderWebhookRequestID: deliveryID,
	}
}

func countClaims(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.ProcessedEvent{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRegisterRoutes_WebhookRetryAfterQueueFull(t *testing.T) {
	r, inbox, db := newTestEngine(t, testConfig())
	inbox.full = 1

	event := `{"event":"message","session":"default","payload":{"id":"m5","from":"5511999@c.us","body":".status"}}`
	w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), webhookHeaders("delivery-5"))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("first attempt = %d %s", w.Code, w.Body.String())
	}
	if n := countClaims(t, db); n != 0 {
		t.Fatalf("claims after 503 = %d, want 0", n)
	}

	w = do(r, http.MethodPost, "/webhook", strings.NewReader(event), webhookHeaders("delivery-5"))
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry = %d %s", w.Code, w.Body.String())
	}
	if len(inbox.batches) != 1 || inbox.batches[0][0].Key.ID != "m5" {
		t.Fatalf("batches = %+v", inbox.batches)
	}
	if n := countClaims(t, db); n != 2 {
		t.Fatalf("claims after retry = %d, want 2", n)
	}
}

func TestRegisterRoutes_WebhookRetryAfterRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateRPS = 5 // one token every 200ms
	cfg.RateBurst = 1
	r, inbox, _ := newTestEngine(t, cfg)

	first := `{"event":"message","session":"default","payload":{"id":"m6","from":"5511999@c.us","body":".help"}}`
	second := `{"event":"message","session":"default","payload":{"id":"m7","from":"5511999@c.us","body":".id"}}`

	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(first), webhookHeaders("delivery-6")); w.Code != http.StatusAccepted {
		t.Fatalf("first = %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(second), webhookHeaders("delivery-7")); w.Code != http.StatusTooManyRequests {
		t.Fatalf("burst = %d %s", w.Code, w.Body.String())
	}

	time.Sleep(300 * time.Millisecond)
	w := do(r, http.MethodPost, "/webhook", strings.NewReader(second), webhookHeaders("delivery-7"))
	if w.Code != http.StatusAccepted {
		t.Fatalf("retry = %d %s", w.Code, w.Body.String())
	}
	if len(inbox.batches) != 2 || inbox.batches[1][0].Key.ID != "m7" {
		t.Fatalf("batches = %+v", inbox.batches)
	}
}

func TestRegisterRoutes_WebhookUnauthenticatedDoesNotClaim(t *testing.T) {
	r, inbox, db := newTestEngine(t, testConfig())

	event := `{"event":"message","session":"default","payload":{"id":"m8","from":"5511999@c.us","body":".help"}}`
	hdr := webhookHeaders("delivery-8")
	hdr[handlers.HeaderWebhookSecret] = "wrong"
	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), hdr); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad secret = %d", w.Code)
	}
	if n := countClaims(t, db); n != 0 {
		t.Fatalf("claims after 401 = %d, want 0", n)
	}

	if w := do(r, http.MethodPost, "/webhook", strings.NewReader(event), webhookHeaders("delivery-8")); w.Code != http.StatusAccepted {
		t.Fatalf("authenticated retry = %d %s", w.Code, w.Body.String())
	}
	if len(inbox.batches) != 1 {
		t.Fatalf("batches = %d", len(inbox.batches))
	}
}

func TestRegisterRoutes_Status(t *testing.T) {
	r, _, db := newTestEngine(t, testConfig())
	ctx := context.Background()
	if err := repo.UpsertAdmin(ctx, db, "5511000@s.whatsapp.net"); err != nil {
		t.Fatalf("UpsertAdmin: %v", err)
	}
	if err := repo.EnsureWhitelistEntry(ctx, db, "5511999@s.whatsapp.net"); err != nil {
		t.Fatalf("EnsureWhitelistEntry: %v", err)
	}

	w := do(r, http.MethodGet, "/api/v1/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var got handlers.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got.Prefix != "." || got.Whitelisted != 2 || got.Admins != 1 || got.Session != "default" {
		t.Fatalf("status = %+v", got)
	}
}

func TestRegisterRoutes_Swagger(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r, _, _ := newTestEngine(t, cfg)

	w := do(r, http.MethodGet, "/swagger/doc.json", nil, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/status") {
		t.Fatalf("doc.json = %d %s", w.Code, w.Body.String())
	}
}

func Test_limitBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})
	if w := do(r, http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"), nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/api/ping": "pong"} {
		if w := do(r, http.MethodGet, path, nil, nil); w.Body.String() != want {
			t.Fatalf("GET %s = %q", path, w.Body.String())
		}
	}
	if basePathForDocs("/") != "" || basePathForDocs("/api/v1") != "/api/v1" {
		t.Fatal("basePathForDocs")
	}
}
