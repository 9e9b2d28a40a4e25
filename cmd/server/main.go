package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"

	"educhat/ai"
	"educhat/auth"
	"educhat/domain/chat"
	"educhat/internal"
	"educhat/moderation"
	"educhat/observability"
	"educhat/repositories"
	"educhat/runtime"
	"educhat/runtime/workers"
	"educhat/services"
	"educhat/transport/rest"
	"educhat/transport/ws"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (database cleanup, index flush)
// execute before the process exits, and keeps the wiring testable.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := internal.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if config.DebugInspector && logger.Enabled(ctx, slog.LevelDebug) {
		url := fmt.Sprintf("http://localhost:%d/inspect", config.DebugInspectorPort)
		logger.Info("Debug store inspector available", "url", url)
		internal.StartDebugServer(db, config.DebugInspectorPort, "/inspect", nil, nil)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	if err := os.MkdirAll(config.UploadDir, 0o755); err != nil {
		return exitRuntime, fmt.Errorf("creating upload dir: %w", err)
	}

	// 3. Moderation dictionary (embedded wordlists)
	wordData, err := moderation.NewWordListLoader().LoadAll()
	if err != nil {
		return exitRuntime, fmt.Errorf("loading wordlists: %w", err)
	}
	logger.Info(fmt.Sprintf("%d unique censored words loaded (%d languages)",
		len(wordData.Words), len(wordData.Languages)))

	moderator, err := moderation.NewModerator(wordData.Words, charReplacement)
	if err != nil {
		return exitRuntime, err
	}

	// 4. Collaborators & core
	metrics, err := observability.NewMetrics()
	if err != nil {
		return exitRuntime, fmt.Errorf("initializing metrics: %w", err)
	}

	messageRepo := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	groupRepo := repositories.NewGroupRepository(db)
	groupMessageRepo := repositories.NewGroupMessageRepository(db)
	userRepo := repositories.NewUserRepository(db)
	searchIndex := repositories.NewSearchIndex(blugeWriter, logger)

	hub := runtime.NewHub(logger, metrics, config.HubBufferSize)
	resolver := runtime.NewResolver(groupRepo, logger)
	tokens := auth.NewTokenManager(config.AuthSecret, config.AuthIssuer, config.AuthTokenDuration)

	bot := ai.NewBot(ai.BotConfig{
		BaseURL: config.BotBaseURL,
		APIKey:  config.BotAPIKey,
		Model:   config.BotModel,
		Timeout: config.BotTimeout,
	}, logger)
	translator := ai.NewTranslateClient(ai.TranslateConfig{
		BaseURL: config.TranslateBaseURL,
		APIKey:  config.TranslateAPIKey,
		Timeout: config.TranslateTimeout,
	}, logger)

	indexQueue := make(chan chat.GroupMessage, config.IndexQueueSize)

	chatService := services.NewChatService(logger, messageRepo, hub, moderator,
		bot, translator, metrics, config.BotTimeout)
	groupService := services.NewGroupService(logger, groupRepo, groupMessageRepo,
		searchIndex, hub, moderator, metrics, indexQueue)
	authService := services.NewAuthService(userRepo, tokens)

	// 5. Transport
	socketHandler := ws.NewHandler(hub, resolver, chatService, groupService, tokens, logger)
	server := rest.NewServer(rest.Options{
		Address:        fmt.Sprintf("%s:%d", config.Host, config.Port),
		MaxUploadBytes: config.MaxUploadBytes,
		UploadDir:      config.UploadDir,
	}, logger, authService, chatService, groupService, tokens, metrics, socketHandler)

	// 6. Supervision: hub loop, telemetry, search indexer
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(
		hub,
		workers.NewTelemetryWorker(logger, config.MetricInterval, metrics),
		workers.NewIndexerWorker(logger, indexQueue, searchIndex),
	)
	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "host", config.Host, "port", config.Port)
		serverErr <- server.Start()
	}()

	// 7. Wait for shutdown signal or fatal server error
	select {
	case err := <-serverErr:
		if err != nil {
			return exitRuntime, fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}

	stop()
	<-supervisorDone
	logger.Info("Shutdown complete")
	return exitOK, nil
}
