// Package config loads application settings from the environment, applies
// defaults, normalizes values and validates the result.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists origins allowed to call the HTTP API.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG
}

// StoreConfig locates the database and the optional settings cache.
type StoreConfig struct {
	DBPath        string        // DB_PATH
	RedisAddr     string        // REDIS_ADDR; empty disables the cache
	RedisPassword string        // REDIS_PASSWORD
	RedisDB       int           // REDIS_DB
	CacheTTL      time.Duration // SETTINGS_CACHE_TTL
	EventTTL      time.Duration // EVENT_TTL, webhook de-duplication window
	Tracing       bool          // DB_TRACING
}

// BotConfig holds the chat-facing defaults.
type BotConfig struct {
	Banner          string   // BOT_PREFIX
	CmdPrefix       string   // CMD_PREFIX
	WorkingReaction string   // WORKING_REACTION
	ErrorReaction   string   // ERROR_REACTION
	DoneReaction    string   // DONE_REACTION
	AdminIDs        []string // ADMIN_USER_IDS
	QueueSize       int      // QUEUE_SIZE
}

// TranscribeConfig points at the speech-to-text provider.
type TranscribeConfig struct {
	APIKey  string        // GROQ_API_KEY
	BaseURL string        // TRANSCRIBE_BASE_URL
	Model   string        // TRANSCRIBE_MODEL
	Timeout time.Duration // TRANSCRIBE_TIMEOUT
}

// BridgeConfig points at the WhatsApp HTTP bridge.
type BridgeConfig struct {
	URL           string        // BRIDGE_URL
	Session       string        // BRIDGE_SESSION
	APIKey        string        // BRIDGE_API_KEY
	SelfID        string        // BRIDGE_SELF_ID
	WebhookSecret string        // WEBHOOK_SECRET
	AcceptAny     bool          // BRIDGE_ACCEPT_ANY (consume message.any)
	Timeout       time.Duration // BRIDGE_TIMEOUT
	CheckInterval time.Duration // BRIDGE_CHECK_INTERVAL; 0 disables the supervisor
}

// Config is the full application configuration.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GinMode           string

	// Logging / docs
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	Store      StoreConfig
	Bot        BotConfig
	Transcribe TranscribeConfig
	Bridge     BridgeConfig

	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig
	OTEL     OTELConfig
}

// MustLoad is Load that panics on invalid configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		Store: StoreConfig{
			DBPath:        getenv("DB_PATH", "whisperzap.db"),
			RedisAddr:     getenv("REDIS_ADDR", ""),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getint("REDIS_DB", 0),
			CacheTTL:      getdur("SETTINGS_CACHE_TTL", 5*time.Minute),
			EventTTL:      getdur("EVENT_TTL", 24*time.Hour),
			Tracing:       getbool("DB_TRACING", false),
		},

		Bot: BotConfig{
			Banner:          getenv("BOT_PREFIX", "> 🤖  *[BOT]*"),
			CmdPrefix:       getenv("CMD_PREFIX", "."),
			WorkingReaction: getenv("WORKING_REACTION", "⚙️"),
			ErrorReaction:   getenv("ERROR_REACTION", "❌"),
			DoneReaction:    getenv("DONE_REACTION", "✅"),
			AdminIDs:        splitCSV(getenv("ADMIN_USER_IDS", "")),
			QueueSize:       getint("QUEUE_SIZE", 256),
		},

		Transcribe: TranscribeConfig{
			APIKey:  getenv("GROQ_API_KEY", ""),
			BaseURL: getenv("TRANSCRIBE_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:   getenv("TRANSCRIBE_MODEL", "whisper-large-v3"),
			Timeout: getdur("TRANSCRIBE_TIMEOUT", 60*time.Second),
		},

		Bridge: BridgeConfig{
			URL:           strings.TrimRight(getenv("BRIDGE_URL", "http://localhost:3000"), "/"),
			Session:       getenv("BRIDGE_SESSION", "default"),
			APIKey:        getenv("BRIDGE_API_KEY", ""),
			SelfID:        getenv("BRIDGE_SELF_ID", ""),
			WebhookSecret: getenv("WEBHOOK_SECRET", ""),
			AcceptAny:     getbool("BRIDGE_ACCEPT_ANY", false),
			Timeout:       getdur("BRIDGE_TIMEOUT", 30*time.Second),
			CheckInterval: getdur("BRIDGE_CHECK_INTERVAL", 30*time.Second),
		},

		RateRPS:   getfloat("RATE_RPS", 20),
		RateBurst: getint("RATE_BURST", 40),

		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "whisper-zap"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.Bot.CmdPrefix = strings.TrimSpace(cfg.Bot.CmdPrefix)

	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch {
	case strings.TrimSpace(cfg.Port) == "":
		return errors.New("PORT must not be empty")
	case cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0:
		return errors.New("timeouts must be positive durations")
	case cfg.MaxHeaderBytes <= 0:
		return errors.New("MAX_HEADER_BYTES must be > 0")
	case cfg.MaxBodyBytes <= 0:
		return errors.New("MAX_BODY_BYTES must be > 0")
	case strings.TrimSpace(cfg.Store.DBPath) == "":
		return errors.New("DB_PATH must not be empty")
	case cfg.Store.CacheTTL <= 0:
		return errors.New("SETTINGS_CACHE_TTL must be > 0")
	case cfg.Store.EventTTL <= 0:
		return errors.New("EVENT_TTL must be > 0")
	case cfg.Bot.CmdPrefix == "" || strings.ContainsAny(cfg.Bot.CmdPrefix, " \t\n"):
		return errors.New("CMD_PREFIX must be non-empty and contain no whitespace")
	case cfg.Bot.QueueSize < 1:
		return errors.New("QUEUE_SIZE must be >= 1")
	case cfg.Transcribe.Timeout <= 0 || cfg.Bridge.Timeout <= 0:
		return errors.New("TRANSCRIBE_TIMEOUT and BRIDGE_TIMEOUT must be > 0")
	case cfg.Bridge.CheckInterval < 0:
		return errors.New("BRIDGE_CHECK_INTERVAL must be >= 0")
	case strings.TrimSpace(cfg.Bridge.URL) == "":
		return errors.New("BRIDGE_URL must not be empty")
	case cfg.Bridge.AcceptAny && strings.TrimSpace(cfg.Bridge.SelfID) == "":
		return errors.New("BRIDGE_SELF_ID is required when BRIDGE_ACCEPT_ANY is set")
	case cfg.RateRPS < 0:
		return errors.New("RATE_RPS must be >= 0")
	case cfg.RateBurst < 1:
		return errors.New("RATE_BURST must be >= 1")
	case cfg.Security.HSTSMaxAge < 0:
		return errors.New("HSTS_MAX_AGE must be >= 0")
	case cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1:
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(k), 64); err == nil {
		return f
	}
	return def
}

func getint(k string, def int) int {
	if i, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return i
	}
	return def
}

func getbool(k string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return d
	}
	return def
}

// splitCSV splits a comma list, dropping blanks.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures a leading '/' and no trailing '/' except root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
