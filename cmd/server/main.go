package main

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/rest"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
	"chat-relay/sink"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const debugPort = 8081

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, blocks until a signal arrives and releases resources in reverse order.
// Deferred cleanups only run because main delegates here instead of exiting directly.
func run() (int, error) {
	// 1. Configuration & Logger
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	policy, err := sink.ParseOverflowPolicy(config.OutboundOverflowPolicy)
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

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		database.StartDebugServer(db, debugPort, endpoint, repositories.InspectRow)
	}

	// 3. Search index (Bluge)
	blugeWriter, err := search.Open(config.BlugeFilepath)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()
	index := search.NewIndex(blugeWriter, logger)

	// 4. Storage
	messageRepository, err := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = messageRepository.Close() }()
	userRepository := repositories.NewUserRepository(db)

	// 5. Moderation
	moderator, err := buildModerator(config, charReplacement, logger)
	if err != nil {
		return exitConfig, err
	}

	// 6. Realtime core
	stats := observability.NewStats()
	registry := runtime.NewRegistry()
	manager := runtime.NewManager(logger, registry, stats)
	router := runtime.NewRouter(logger, messageRepository, registry, manager, stats,
		config.MaxContentLength, config.EnforceSenderIdentity).
		WithIndex(index).
		WithModerator(moderator)
	manager.Route(router)

	// 7. Services & transports
	tokens := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(router, messageRepository, index)

	allowedOrigins := internal.SplitList(config.AllowedOrigins)
	gateway := ws.NewGateway(logger, manager, allowedOrigins, config.ConnectionBufferSize, policy, config.PingPeriod)
	handler := rest.New(logger, authService, chatService, registry, stats, gateway)

	grpcServer := server.NewGRPCServer(logger, tokens, config.GRPCRequireToken, config.PingPeriod)
	server.RegisterRelayServiceServer(grpcServer,
		server.NewRelayServer(logger, manager, chatService, config.ConnectionBufferSize, policy))

	// 8. Supervision
	httpAddress := fmt.Sprintf("%s:%d", config.Host, config.HTTPPort)
	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	onlineIdentities := func() int { return len(registry.Identities()) }

	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(
		workers.NewHTTPServerWorker(logger, httpAddress, handler.WithCORS(allowedOrigins), config.ShutdownTimeout).
			OnShutdown(manager.Shutdown),
		workers.NewGRPCServerWorker(logger, grpcAddress, grpcServer),
		workers.NewHealthMonitoringWorker(logger, stats, onlineIdentities, config.MetricInterval),
	)

	supervisorDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supervisorDone)
	}()
	logger.Info("Relay started", "http", httpAddress, "grpc", grpcAddress)

	// 9. Wait for Stop
	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	// Closing the sessions ends websocket pumps and Connect streams so both servers can drain
	manager.Shutdown()
	<-supervisorDone

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// buildModerator merges the inline word list with the dictionaries of CENSORED_WORDS_DIR.
func buildModerator(config internal.Config, charReplacement rune, logger *slog.Logger) (*moderation.Moderator, error) {
	words := internal.SplitList(config.CensoredWords)

	if config.CensoredWordsDir != "" {
		dict, err := moderation.NewLoader(os.DirFS(config.CensoredWordsDir)).LoadAll(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load censored words: %w", err)
		}
		logger.Info("Censored dictionaries loaded", "languages", dict.Languages, "words", len(dict.Words))
		words = append(words, dict.Words...)
	}

	return moderation.NewModerator(words, charReplacement, logger)
}
