package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/booking"
	"voicedesk/internal/calls"
	"voicedesk/internal/callstate"
	"voicedesk/internal/config"
	"voicedesk/internal/conversation"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/knowledge"
	"voicedesk/internal/live"
	"voicedesk/internal/llm"
	"voicedesk/internal/notify"
	"voicedesk/internal/reporting"
	"voicedesk/internal/session"
	"voicedesk/internal/stt"
	"voicedesk/internal/telephony"
	"voicedesk/internal/tts"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

const responseCacheTTL = 5 * time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local development convenience; deployed environments set real env vars.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Ephemeral per-call state.
	store := session.NewRedisStore(rdb, "vd")
	states := callstate.NewMachine(store, callstate.MachineConfig{
		ActiveTTL:        cfg.Session.ActiveTTL,
		EndedTTL:         cfg.Session.EndedTTL,
		StalenessCeiling: cfg.Session.StalenessCeiling,
		MaxRetries:       cfg.Session.MaxRetries,
	})

	// Durable stores.
	bookingRepo := booking.NewPostgresRepo(db)
	bookings := booking.NewService(bookingRepo)
	callRepo := calls.NewPostgresRepo(db)
	knowledgeRepo := knowledge.NewPostgresRepo(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	// Conversation brain.
	model := llm.NewOpenAIClient(cfg.OpenAI)
	cache := llm.NewResponseCache(responseCacheTTL)
	engine := conversation.NewEngine(store, model, cache, knowledgeRepo, bookings, cfg.Business, conversation.EngineConfig{
		ContextTTL: cfg.Session.ActiveTTL,
	})

	// Voice surface.
	var audio *tts.Resolver
	if cfg.TTS.BaseURL != "" {
		audio = tts.NewResolver(tts.NewHTTPSynthesizer(cfg.TTS), rdb, cfg.TTS.Voice)
	}
	renderer := telephony.NewRenderer(audio, cfg.TTS.Voice)

	var limiter telephony.CallLimiter
	if cfg.Session.MaxConcurrentCalls > 0 {
		limiter = telephony.NewRedisCallLimiter(rdb, cfg.Session.MaxConcurrentCalls, cfg.Session.ActiveTTL)
	}

	var notifier telephony.Notifier
	if mailer := notify.NewMailer(cfg.SMTP); mailer.Enabled() {
		notifier = mailer
	}

	hub := live.NewHub(log)

	var recording *telephony.RecordingHandler
	if cfg.STT.BaseURL != "" {
		recognizer := stt.NewHTTPRecognizer(cfg.STT.BaseURL, cfg.STT.APIKey, cfg.STT.Timeout)
		recording = telephony.NewRecordingHandler(recognizer, callRepo, hub)
	}

	voice := telephony.NewHandler(states, engine, renderer, callRepo, limiter, notifier, hub, telephony.HandlerConfig{
		TenantID:            cfg.Business.TenantID,
		Greeting:            greetingFor(cfg.Business),
		SpeechCallbackURL:   cfg.SpeechCallbackURL(),
		ConfidenceThreshold: cfg.Session.ConfidenceThreshold,
	})

	api := httpapi.Handlers{
		Auth:     authManager,
		Bookings: bookings,
		Calls:    callRepo,
		Reports:  reporting.NewService(callRepo, bookingRepo),
		Audit:    auditSvc,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		auth:      authManager,
		voice:     voice,
		recording: recording,
		api:       api,
		hub:       hub,
		db:        db,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

func greetingFor(b config.BusinessConfig) string {
	if b.Name == "" {
		return ""
	}
	return fmt.Sprintf("Thanks for calling %s! How can I help you today?", b.Name)
}
