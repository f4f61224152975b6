package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"peer-chat/auth"
	"peer-chat/domain/event"
	"peer-chat/infrastructure/realtime"
	"peer-chat/infrastructure/rest"
	"peer-chat/internal"
	"peer-chat/moderation"
	"peer-chat/observability"
	"peer-chat/repositories"
	"peer-chat/runtime"
	"peer-chat/runtime/workers"
	"peer-chat/services"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a fatal error.
// Returning instead of exiting lets the deferred cleanups run.
func run() (int, error) {
	// 1. Configuration & Logger
	config, err := internal.LoadConfig()
	if err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation dictionary
	censored, err := moderation.NewEmbeddedLoader().LoadAll(config.CensoredDir)
	if err != nil {
		return exitConfig, fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, logger)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator init failed: %w", err)
	}
	logger.Info("Moderation ready", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Realtime core
	monitoring := observability.NewMonitoringManager(logger)
	registry := runtime.NewRegistry()
	mux := runtime.NewMultiplexer(registry, logger)
	presence := runtime.NewPresence(mux, registry, config.TypingWindow, logger)
	events := make(chan event.DomainEvent, config.EventBufferSize)

	chats := repositories.NewChatRepository(db, logger)
	messages := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	members := services.NewMembershipResolver(chats)
	publisher := services.NewEventPublisher(events, logger).WithDropCounter(monitoring.IncrDroppedEvents)
	chatService := services.NewChatService(chats, messages, members, registry, presence, moderator, publisher, logger)
	realtimeService := services.NewRealtimeService(registry, presence, members, chatService, logger)
	mux.OnDrop(realtimeService.HandleDrop)

	// 5. Supervised workers
	sup := workers.NewSupervisor(logger).WithRestartDelay(config.RestartInterval)
	sup.Add(
		workers.NewEventFanout(logger, events, config.SinkTimeout,
			runtime.NewDeliverySink(mux, logger), monitoring),
		workers.NewHeartbeatWorker(logger, registry, presence, monitoring, config.MetricInterval),
	)
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	supDone := make(chan struct{})
	go func() {
		sup.Run(workerCtx)
		close(supDone)
	}()

	// 6. HTTP & event channel
	if logger.Enabled(ctx, slog.LevelDebug) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	tokens := auth.NewTokens(config.AuthSecret, config.AuthTokenDuration)
	api := engine.Group("/", auth.Middleware(tokens))
	rest.RegisterRoutes(api, rest.NewChatHandler(chatService, monitoring, logger))
	realtime.RegisterRoutes(api, realtime.NewSocketHandler(realtimeService, config.ConnectionBufferSize, logger))
	if config.EnableInspect {
		api.GET("/debug/inspect", auth.RequireRole(auth.OperatorRole), internal.InspectHandler(db, internal.RecordMapper))
		logger.Info("Badger inspector enabled", "endpoint", "/debug/inspect", "role", auth.OperatorRole)
	}

	server := &http.Server{Addr: config.Address(), Handler: engine, ReadHeaderTimeout: 5 * time.Second}
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", config.Address(), "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errChan:
		code = exitRuntime
	}

	// 8. Final Cleanup: stop accepting requests before the workers stop delivering.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Warn("HTTP shutdown incomplete", "error", shutdownErr)
	}
	stopWorkers()
	<-supDone
	logger.Info("Program stopped cleanly")

	return code, err
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
