package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-broadcaster/internal/ai"
	"whatsapp-broadcaster/internal/campaign"
	"whatsapp-broadcaster/internal/config"
	"whatsapp-broadcaster/internal/database"
	"whatsapp-broadcaster/internal/report"
	"whatsapp-broadcaster/internal/store"
	"whatsapp-broadcaster/internal/webhook"
	"whatsapp-broadcaster/internal/zapi"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open audit database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	contactStore := store.New(cfg.SheetPath)
	gateway := zapi.NewClient(cfg)

	var rewriter campaign.Rewriter
	if cfg.OpenAIAPIKey != "" {
		rewriter = ai.NewClient(cfg)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set, messages go out without variation")
	}

	controller := campaign.NewController(contactStore, gateway, rewriter, db, campaign.Options{
		Admin:         cfg.Admin,
		CountryPrefix: cfg.CountryPrefix,
		DelayMin:      time.Duration(cfg.DelayMinSeconds) * time.Second,
		DelayMax:      time.Duration(cfg.DelayMaxSeconds) * time.Second,
		PausePoll:     time.Duration(cfg.PausePollSeconds) * time.Second,
	})

	webhookHandler := webhook.NewHandler(ctx, cfg, controller, contactStore, gateway)

	if cfg.ReportCron != "" {
		reporter, err := report.Start(ctx, cfg.ReportCron, controller, gateway, cfg.Admin)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid REPORT_CRON")
		}
		defer reporter.Stop()
	}

	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.POST("/webhook", webhookHandler.HandleMessage)

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
