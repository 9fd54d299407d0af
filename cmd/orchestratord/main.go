// Command orchestratord runs the conversational sales agent orchestrator:
// the webhook gateway, the follow-up scheduler, and the operator event
// socket, all sharing one persistence layer and LLM pipeline.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ngoclaw/orchestrator/internal/domain/contextbuilder"
	"github.com/ngoclaw/orchestrator/internal/domain/pipeline"
	"github.com/ngoclaw/orchestrator/internal/domain/scheduler"
	"github.com/ngoclaw/orchestrator/internal/domain/orchestrator"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/config"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/dispatch"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/eventbus"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/llmclient/anthropicprovider"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/llmclient/openaiprovider"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/logger"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/persistence"
	"github.com/ngoclaw/orchestrator/internal/infrastructure/transport/whatsapp"
	"github.com/ngoclaw/orchestrator/internal/interfaces/operator"
	"github.com/ngoclaw/orchestrator/internal/interfaces/webhook"
)

const appVersion = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "orchestratord",
		Short: "Conversational sales agent orchestrator",
	}
	root.AddCommand(serveCmd(), migrateCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the orchestratord version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("orchestratord v%s\n", appVersion)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return persistence.Migrate(cfg.Database.DSN)
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook gateway, scheduler, and operator socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     logFormat(cfg.Log.Mode),
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting orchestratord", zap.String("version", appVersion))

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	conversations := persistence.NewGormConversationRepository(db)
	actions := persistence.NewGormScheduledActionRepository(db)

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("build LLM provider: %w", err)
	}
	pipe := pipeline.NewWithRetryConfig(provider, log, pipeline.RetryConfig{
		MaxRetries:   cfg.Pipeline.MaxRetries,
		BaseWait:     cfg.Pipeline.RetryBaseWait,
		CallDeadline: cfg.Pipeline.CallDeadline,
	})

	ladder := scheduler.NewLadder(actions, cfg.Ladder.Offsets)

	var quietHours *scheduler.QuietHours
	if cfg.Scheduler.QuietHoursStart != "" && cfg.Scheduler.QuietHoursEnd != "" {
		// The allowed firing window runs from the end of quiet hours to their start.
		quietHours, err = scheduler.NewQuietHours(cfg.Scheduler.QuietHoursEnd, cfg.Scheduler.QuietHoursStart)
		if err != nil {
			return fmt.Errorf("parse quiet hours: %w", err)
		}
	}

	bus := eventbus.NewInMemoryBus(log, 256)
	hub := operator.NewHub(log)
	operator.SubscribeHub(bus, hub)
	publisher := operator.NewPublisher(bus)

	business := contextbuilder.Business{
		Name:        cfg.Business.Name,
		Description: cfg.Business.Description,
	}
	for _, c := range cfg.Business.CTAs {
		business.CTAs = append(business.CTAs, contextbuilder.CTA{ID: c.ID, Label: c.Label, Description: c.Description})
	}
	constraints := contextbuilder.Constraints{
		MaxWords:           cfg.Business.MaxWords,
		QuestionsPerMsg:    cfg.Business.QuestionsPerMsg,
		LanguagePreference: cfg.Business.Language,
	}

	whatsappClient := whatsapp.New(cfg.Webhook.APIBaseURL, cfg.Webhook.APIVersion, cfg.Webhook.AccessToken, http.DefaultClient)
	sender := dispatch.New(whatsappClient, conversations, log)

	orch := orchestrator.New(conversations, actions, ladder, pipe, sender, publisher, business, constraints, log)

	poller := scheduler.NewPoller(actions, orch, quietHours, cfg.Scheduler.PollInterval, cfg.Scheduler.ClaimLimit, log)

	dedupe, err := buildDedupeStore(cfg, log)
	if err != nil {
		return fmt.Errorf("build dedupe store: %w", err)
	}

	webhookHandler := webhook.NewHandler(cfg.Webhook.VerifyToken, orch, dedupe, log, cfg.Webhook.QueueSize, cfg.Webhook.WorkerCount)

	if cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	webhookHandler.Register(engine, cfg.Webhook.Path)

	engine.GET("/operator/ws", func(c *gin.Context) {
		token := c.Query("token")
		orgID, err := operator.ValidateToken(token, cfg.Operator.JWTSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		hub.ServeWS(c.Writer, c.Request, c.Query("client_id"), orgID)
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopHub := make(chan struct{})
	go hub.Run(stopHub)
	poller.Start(ctx)

	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	close(stopHub)
	poller.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.Close()
	}

	log.Info("orchestratord stopped")
	return nil
}

func logFormat(mode string) string {
	if mode == "development" {
		return "console"
	}
	return "json"
}

func buildProvider(cfg *config.Config) (pipeline.Provider, error) {
	switch cfg.LLM.Primary {
	case "openai":
		return openaiprovider.New(openaiprovider.Config{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
			Model:   cfg.LLM.OpenAI.Model,
		}), nil
	case "anthropic", "":
		return anthropicprovider.New(anthropicprovider.Config{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
			Model:   cfg.LLM.Anthropic.Model,
		}, http.DefaultClient), nil
	default:
		return nil, fmt.Errorf("unknown llm.primary provider %q", cfg.LLM.Primary)
	}
}

func buildDedupeStore(cfg *config.Config, log *zap.Logger) (webhook.DedupeStore, error) {
	if cfg.Webhook.RedisAddr == "" {
		log.Warn("no webhook.redis_addr configured, using in-process dedupe store")
		return webhook.NewLRUDedupeStore(cfg.Webhook.LRUFallbackSz), nil
	}
	return webhook.NewRedisDedupeStore(cfg.Webhook.RedisAddr)
}
