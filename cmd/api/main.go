package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callpilot/internal/audit"
	"callpilot/internal/auth"
	"callpilot/internal/calls"
	"callpilot/internal/campaign"
	"callpilot/internal/config"
	"callpilot/internal/conversation"
	"callpilot/internal/httpapi"
	"callpilot/internal/leads"
	"callpilot/internal/relay"
	"callpilot/internal/telephony"
	"callpilot/pkg/logger"
	"callpilot/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const campaignGlobalCapKey = "callpilot:campaign:active_calls"

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	// Persistence
	callStore := calls.NewPostgresStore(db)
	leadStore := leads.NewPostgresStore(db)
	campaignStore := campaign.NewPostgresStore(db)

	// Audit trail is best-effort and process-local for now.
	auditSvc := audit.NewService(audit.NewMemoryRepo())

	callSvc := calls.NewService(callStore, auditSvc)

	dialer, err := telephony.NewRestDialer(telephony.DialerConfig{
		AccountSID:       cfg.Telephony.AccountSID,
		AuthToken:        cfg.Telephony.AuthToken,
		APIBaseURL:       cfg.Telephony.APIBase,
		PublicHTTPBase:   cfg.Telephony.PublicHTTPBase,
		PublicWSBase:     cfg.Telephony.PublicWSBase,
		MachineDetection: cfg.Telephony.MachineDetection,
	}, log)
	if err != nil {
		log.Error("dialer init failed", "err", err)
		os.Exit(1)
	}

	dispatcher := campaign.NewDispatcher(campaignStore, leadStore, callSvc, dialer, cfg.Telephony.CallerID, log)
	if cfg.Campaign.GlobalCap > 0 {
		dispatcher.SetGlobalCap(rdb, campaignGlobalCapKey, cfg.Campaign.GlobalCap, cfg.Campaign.GlobalCapTTL)
	}
	dispatcher.SetMaxCallDuration(cfg.Campaign.MaxCallDuration)

	engine, err := conversation.NewRealtimeEngine(conversation.RealtimeConfig{
		URL:          cfg.Engine.URL,
		APIKey:       cfg.Engine.APIKey,
		Model:        cfg.Engine.Model,
		Voice:        cfg.Engine.Voice,
		Instructions: cfg.Engine.Instructions,
	}, log)
	if err != nil {
		log.Error("conversation engine init failed", "err", err)
		os.Exit(1)
	}

	var synth conversation.Synthesizer
	if cfg.Speech.Enabled {
		s, err := conversation.NewHTTPSynthesizer(conversation.SpeechConfig{
			URL:    cfg.Speech.URL,
			APIKey: cfg.Speech.APIKey,
			Model:  cfg.Speech.Model,
			Voice:  cfg.Speech.Voice,
			Format: cfg.Speech.Format,
		})
		if err != nil {
			log.Error("speech synthesizer init failed", "err", err)
			os.Exit(1)
		}
		synth = s
	}

	relayManager := relay.NewManager(engine, synth, callSvc, leadStore, log)

	mediaHandler := telephony.NewMediaHandler(relayManager, log)
	statusWebhook := telephony.NewStatusWebhook(callSvc, rdb, log)

	handlers := httpapi.Handlers{
		Auth:       authManager,
		Calls:      callSvc,
		Leads:      leadStore,
		Campaigns:  campaignStore,
		Dispatcher: dispatcher,
		Dialer:     dialer,
		CallerID:   cfg.Telephony.CallerID,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, handlers, mediaHandler, statusWebhook, auth.RequireAccessToken(authManager))

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

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
