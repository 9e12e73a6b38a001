// Command whisperzap runs the WhatsApp transcription bot: the webhook server,
// the message worker and the bridge session supervisor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/bot"
	"github.com/veigamann/whisper-zap/internal/bridge"
	"github.com/veigamann/whisper-zap/internal/cache"
	"github.com/veigamann/whisper-zap/internal/config"
	httpapi "github.com/veigamann/whisper-zap/internal/http"
	"github.com/veigamann/whisper-zap/internal/observability"
	"github.com/veigamann/whisper-zap/internal/repo"
	"github.com/veigamann/whisper-zap/internal/services"
	"github.com/veigamann/whisper-zap/internal/sysutil"
	"github.com/veigamann/whisper-zap/internal/transcribe"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version), cfg.Bridge.Session)
	if err != nil {
		log.Fatal().Err(err).Msg("tracing setup failed")
	}

	db, err := repo.OpenSQLite(cfg.Store.DBPath, repo.Options{Tracing: cfg.Store.Tracing || cfg.OTEL.Enabled, Silent: cfg.LogLevel != "debug"})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.DBPath).Msg("opening database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	auth := services.NewAuthService(db, repo.Whitelist{})
	if err := auth.EnsureAdmins(ctx, cfg.Bot.AdminIDs); err != nil {
		log.Fatal().Err(err).Msg("seeding admins failed")
	}

	settings := services.NewSettingsService(db, repo.Settings{}, cfg.Bot.CmdPrefix)
	var redisStore *cache.RedisStore
	if cfg.Store.RedisAddr != "" {
		redisStore, err = cache.Dial(ctx, cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, settings cache disabled")
		} else {
			settings.Cache = redisStore
			settings.CacheTTL = cfg.Store.CacheTTL
		}
	}

	bridgeClient := bridge.NewClient(cfg.Bridge.URL, cfg.Bridge.Session, cfg.Bridge.APIKey, cfg.Bridge.Timeout)
	provider := transcribe.NewClient(cfg.Transcribe.APIKey, cfg.Transcribe.BaseURL, cfg.Transcribe.Timeout)
	texts := bot.Texts{Banner: cfg.Bot.Banner}

	router := &bot.Router{
		Auth:        auth,
		State:       settings,
		Dispatcher:  bot.NewDispatcher(auth, settings, texts),
		Transcriber: services.NewTranscriptionService(bridgeClient, provider, settings, cfg.Transcribe.Model),
		Messenger:   bridgeClient,
		Reactions: bot.Reactions{
			Working: cfg.Bot.WorkingReaction,
			Error:   cfg.Bot.ErrorReaction,
			Done:    cfg.Bot.DoneReaction,
		},
		Texts: texts,
	}
	queue := bot.NewQueue(cfg.Bot.QueueSize, router)

	engine := gin.New()
	httpapi.RegisterRoutes(engine, httpapi.Deps{DB: db, Inbox: queue, Settings: settings}, cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	var wg sync.WaitGroup
	workerCtx, stopWorker := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := queue.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("message worker stopped")
		}
	}()

	if cfg.Bridge.CheckInterval > 0 {
		sup := bridge.NewSupervisor(bridgeClient)
		sup.Interval = cfg.Bridge.CheckInterval
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sup.Run(ctx); err != nil {
				log.Error().Err(err).Msg("bridge supervisor stopped")
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		purgeEvents(ctx, db, cfg.Store.EventTTL)
	}()

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	// Let the worker drain what the server already accepted.
	queue.Close()
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn().Int("pending", queue.Len()).Msg("worker drain timed out")
	}
	stopWorker()

	if redisStore != nil {
		_ = redisStore.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown")
	}
}

// purgeEvents drops expired webhook claims once per TTL (at most hourly).
func purgeEvents(ctx context.Context, db *gorm.DB, ttl time.Duration) {
	every := ttl
	if every > time.Hour {
		every = time.Hour
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := repo.PurgeExpiredEvents(ctx, db, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("purging processed events failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("rows", n).Msg("purged processed events")
			}
		}
	}
}
