package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"video_uniquifier_bot/cmd/bot/config"
	"video_uniquifier_bot/internal/api"
	"video_uniquifier_bot/internal/database"
	"video_uniquifier_bot/internal/services"
	"video_uniquifier_bot/internal/telegram"
	"video_uniquifier_bot/internal/utils/broker"
	"video_uniquifier_bot/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func openStore(ctx context.Context, cfg *config.Config) (services.Store, func(), error) {
	noop := func() {}
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return services.NewMemoryStore(), noop, nil
	case config.StoreRedis:
		client, err := database.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		return services.NewRedisStore(client, "uniqbot:"), func() { client.Close() }, nil
	case config.StorePostgres:
		db, err := database.InitDB(database.PostgresConfig(cfg.DB))
		if err != nil {
			return nil, noop, err
		}
		return services.NewDBStore(db), func() {
			if sqlDB, err := db.DB(); err == nil {
				sqlDB.Close()
			}
		}, nil
	default:
		store, err := services.NewFileStore(cfg.DataDir)
		return store, noop, err
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer closeStore()

	clock := clockwork.NewRealClock()
	media, err := services.NewMediaLibrary(cfg.MediaDir, cfg.MaxUploadBytes, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare media directory")
	}

	var refiner services.PromptRefiner
	if cfg.GeminiAPIKey != "" {
		genaiClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GenAI client")
		}
		defer genaiClient.Close()
		refiner = services.NewGeminiPromptRefiner(genaiClient, cfg.GeminiModel)
	}

	var archive services.ArtifactArchive
	if cfg.GCSBucketName != "" {
		gcs, err := services.NewGCSArchive(ctx, cfg.GCSBucketName, cfg.GCSPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS archive")
		}
		defer gcs.Close()
		archive = gcs
	}

	fusionBrain := services.NewFusionBrainClient(cfg.FusionBrainURL, cfg.FusionBrainAPIKey, cfg.FusionBrainSecretKey, nil, clock)
	generator := services.NewGenerationService(fusionBrain, refiner, media, services.GenerationOptions{
		PollAttempts: cfg.GenerationPollAttempts,
		PollDelay:    cfg.GenerationPollDelay,
		ImageSize:    cfg.GenerationImageSize,
	})
	renderer := services.NewFFmpegRenderer(cfg.FFmpegPath, cfg.FFprobePath)
	sessions := services.NewChatSessionService(clock, cfg.SessionIdleTimeout)
	go sessions.Run(ctx)

	// Transport: telegram in production, websocket for local development.
	var (
		messenger services.Messenger
		bot       *telegram.Bot
		wsHandler *wsocket.Handler
		msgBroker *broker.Broker
	)
	if cfg.Transport == config.TransportTelegram {
		bot, err = telegram.NewBot(cfg.TelegramBotToken)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to start telegram bot")
		}
		messenger = bot
	} else {
		msgBroker = broker.NewBroker(64)
		wsMessenger, err := wsocket.NewMessenger(msgBroker, filepath.Join(cfg.DataDir, "ws_uploads"))
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create websocket messenger")
		}
		messenger = wsMessenger
	}

	controller := services.NewSessionController(services.SessionControllerDeps{
		Messenger: messenger,
		Access:    services.NewAccessService(store),
		Usage:     services.NewUsageService(store, clock, cfg.ApprovalCooldown),
		Settings:  services.NewSettingsService(store),
		Sessions:  sessions,
		Media:     media,
		Generator: generator,
		Renderer:  renderer,
		Prober:    renderer,
		Archive:   archive,
	}, cfg.AdminChatID, cfg.RenderStickerID)
	dispatcher := services.NewDispatcher(controller, cfg.Workers)

	if msgBroker != nil {
		upgrader := websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		}
		wsHandler = wsocket.NewHandler(ctx, dispatcher, messenger.(*wsocket.Messenger), msgBroker, upgrader, cfg.MaxUploadBytes)
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	api.SetupRoutes(r, controller, []byte(cfg.AdminJWTSecret), wsHandler)
	if cfg.AdminJWTSecret == "" {
		log.Warn().Msg("ADMIN_JWT_SECRET is not set, admin API disabled")
	}

	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	if bot != nil {
		log.Info().Msg("Polling telegram updates")
		if err := bot.Run(ctx, dispatcher); err != nil {
			log.Error().Err(err).Msg("Telegram update loop stopped")
		}
	} else {
		<-ctx.Done()
	}

	log.Info().Msg("Shutdown signal received, draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Forced HTTP shutdown")
	}
	dispatcher.Wait()
	log.Info().Msg("Bot stopped cleanly")
}
