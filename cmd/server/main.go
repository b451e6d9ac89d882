package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"order-chat/auth"
	"order-chat/infrastructure/amqp"
	"order-chat/infrastructure/grpc/feed"
	"order-chat/infrastructure/grpc/server"
	chathttp "order-chat/infrastructure/http"
	"order-chat/infrastructure/openai"
	"order-chat/infrastructure/orders"
	"order-chat/internal"
	"order-chat/observability"
	"order-chat/repositories"
	"order-chat/runtime"
	"order-chat/runtime/workers"
	"order-chat/services"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"google.golang.org/grpc"
)

// Exit codes to provide meaningful status to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run builds every component, serves REST, push and the change feed, and
// returns once a signal arrives or a server fails. Deferred cleanups run
// before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage: badger for chats and messages, SQL for the order domain
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()
	chatRepository := repositories.NewChatRepository(db, logger)
	messageRepository := repositories.NewMessageRepository(db, logger)

	orderService, err := orders.Open(config.OrdersDSN, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("orders database opening failed: %w", err)
	}

	// 3. Supervision & broadcast
	monitoring := observability.NewMonitoringManager(logger)
	orchestrator := runtime.NewOrchestrator(logger, workers.NewSupervisor(logger), runtime.NewRegistry(),
		monitoring, config.BufferSize, config.SinkTimeout)
	orchestrator.AddWorkers(
		workers.NewHeartbeatWorker(logger, config.HeartbeatInterval, monitoring),
		workers.NewChannelCapacityWorker(logger, []workers.Gauge{{Name: "events", Usage: orchestrator.BufferUsage}},
			monitoring, config.HeartbeatInterval, 0.8),
	)

	shutdownMetrics, err := observability.SetupMetrics(ctx, config.OTLPEndpoint, config.MetricInterval, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("metrics setup failed: %w", err)
	}
	defer func() { _ = shutdownMetrics(context.Background()) }()
	if err := observability.RegisterInstruments(observability.Meter(), monitoring); err != nil {
		return exitRuntime, fmt.Errorf("metrics instruments failed: %w", err)
	}

	// 4. Chat services
	var translation services.ITranslationService
	if config.OpenAIAPIKey != "" {
		translator := openai.NewTranslator(config.OpenAIAPIKey, config.OpenAIBaseURL, config.OpenAIModel)
		translation = services.NewTranslationService(logger, translator, config.TranslationTargetLang, config.TranslationTimeout)
		logger.Info("Translation enabled", "model", config.OpenAIModel, "target", config.TranslationTargetLang)
	}
	now := func() time.Time { return time.Now().UTC() }
	directory := runtime.NewDirectory(logger, chatRepository, orderService, monitoring, now)
	chatService := services.NewChatService(logger, directory, messageRepository, orderService,
		orchestrator, translation, monitoring, now)

	// 5. Order events over RabbitMQ
	if config.AMQPURL != "" {
		closeAMQP, err := wireAMQP(ctx, config, logger, orchestrator, directory, orderService, chatService)
		if err != nil {
			return exitRuntime, err
		}
		defer closeAMQP()
	}

	errChan := make(chan error, 3)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. REST & push
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	routerConfig := chathttp.RouterConfig{
		AllowedOrigins: config.Origins(),
		PushBufferSize: config.PushBufferSize,
	}
	if config.DebugEnabled {
		routerConfig.Debug = internal.DebugHandler(db, ChatMapper, func() any { return monitoring.GetLatest() })
		logger.Info("Debug inspector available", "url", "http://"+config.HTTPAddr+"/debug/inspect")
	}
	httpServer := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           chathttp.NewRouter(logger, chatService, orchestrator, tokens, routerConfig),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Starting HTTP server", "address", config.HTTPAddr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Change feed over gRPC
	listener, err := net.Listen("tcp", config.GRPCAddr)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", config.GRPCAddr, err)
	}
	s := grpc.NewServer(grpc.ChainStreamInterceptor(
		server.StreamLoggingInterceptor(logger),
		auth.StreamAuthInterceptor(tokens),
	))
	feed.RegisterChatFeedServer(s, server.NewFeedServer(logger, chatRepository, messageRepository, monitoring))
	go func() {
		logger.Info("Starting gRPC server", "address", config.GRPCAddr, "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			logger.Debug("gRPC exposed services", "name", serviceName)
		}
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Graceful shutdown
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	s.GracefulStop()
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

// wireAMQP publishes chat events on the exchange and consumes offer-accepted
// notifications as a supervised worker. Both must be set before the
// orchestrator starts.
func wireAMQP(ctx context.Context, config internal.Config, logger *slog.Logger, orchestrator *runtime.Orchestrator,
	chats amqp.ChatLookup, recorder amqp.AcceptanceRecorder, notifier amqp.OfferNotifier) (func(), error) {
	conn, err := amqp.DialWithRetry(ctx, logger, amqp.ConnectionOptions{
		URL:           config.AMQPURL,
		RetryAttempts: 5,
		Delay:         time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq connection failed: %w", err)
	}
	if err := amqp.DeclareExchange(conn, config.AMQPExchange); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declaration failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel failed: %w", err)
	}

	orchestrator.AddSinks(amqp.NewEventPublisher(logger, ch, config.AMQPExchange))
	orchestrator.AddWorkers(amqp.NewOfferConsumer(logger,
		amqp.NewQueueSource(conn, config.AMQPExchange, config.AMQPOrderQueue), chats, recorder, notifier))
	logger.Info("RabbitMQ wired", "exchange", config.AMQPExchange, "queue", config.AMQPOrderQueue)

	return func() {
		logger.Info("Closing RabbitMQ...")
		_ = ch.Close()
		_ = conn.Close()
	}, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return options
}

// ChatMapper decodes chat and message records for the debug inspector.
func ChatMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, "msg:"):
		m, err := repositories.DecodeMessage(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = m.SenderID + ": " + m.Text
		if m.IsRead {
			row.Detail += " (read)"
		}
	case strings.HasPrefix(key, "chat:"):
		s, err := repositories.DecodeSession(val)
		if err != nil {
			row.Detail = "Error: decode failed"
			return row
		}
		row.Type = "CHAT"
		row.Namespace = string(s.OrderID)
		row.Timestamp = s.CreatedAt.Format("2006-01-02 15:04:05")
		row.Detail = fmt.Sprintf("order %s with %s, translation=%t", s.OrderID, s.CounterpartyID, s.TranslationEnabled)
	}
	return row
}
