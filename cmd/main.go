package main

import (
	"context"
	"errors"
	"fmt"
	"job-chat/auth"
	"job-chat/contract"
	"job-chat/infrastructure/grpc/server"
	"job-chat/infrastructure/pubsub"
	"job-chat/infrastructure/realtime"
	"job-chat/internal"
	"job-chat/observability"
	"job-chat/repositories"
	"job-chat/runtime"
	"job-chat/runtime/workers"
	"job-chat/services"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before main exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Message store
	repository, closeStore, err := openStore(ctx, log, config)
	if err != nil {
		return err
	}
	defer closeStore()

	// 4. Chat core
	registry := runtime.NewRegistry()
	monitor := observability.NewMonitor(log)
	monitor.WatchSubscriptions(registry.Count)
	hub := realtime.NewHub()
	local := runtime.NewLocalBroadcaster(log, registry, hub, monitor)

	healthServer := server.NewHealthServer(log)
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(
		workers.NewReporter(log, monitor, config.MetricInterval),
		workers.NewHealthProbe(log, repository, healthServer.Health, config.HealthInterval),
	)

	var broadcaster contract.IBroadcaster = local
	if config.BusDriver == internal.BusRedis {
		client, err := pubsub.NewRedisClient(ctx, config.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		bus := pubsub.NewRedisBus(log, client, config.RedisChannel)
		broadcaster = bus
		sup.Add(workers.NewBusRelay(log, bus, local))
		log.Info("Fan-out through Redis", "address", config.RedisAddr, "channel", config.RedisChannel)
	}

	dispatcher := runtime.NewDispatcher(log, registry, repository, broadcaster, monitor)

	// 5. Transport
	var tokens *auth.Tokens
	if config.AuthSecret != "" {
		tokens = auth.NewTokens(config.AuthSecret, config.AuthTokenDuration)
	} else {
		log.Warn("AUTH_SECRET is empty, identities sent by clients are trusted")
	}
	handler := realtime.NewHandler(log, services.NewChatService(dispatcher), hub, monitor, realtime.HandlerConfig{
		BufferSize:       config.ConnectionBufferSize,
		MaxMessageLength: config.MaxMessageLength,
		ReadTimeout:      config.WSReadTimeout,
	})
	httpServer := &http.Server{
		Addr: fmt.Sprintf("%s:%d", config.Host, config.HTTPPort),
		Handler: realtime.NewRouter(realtime.RouterDeps{
			Log:     log,
			Socket:  handler,
			History: services.NewHistoryService(log, repository, config.RequireCompanyFirst),
			Store:   repository,
			Stats:   monitor,
			Tokens:  tokens,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcAddress := fmt.Sprintf("%s:%d", config.Host, config.GRPCPort)
	grpcListener, err := net.Listen("tcp", grpcAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddress, err)
	}

	// 6. Run until a signal or a failure
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return healthServer.Serve(gctx, grpcListener)
	})
	g.Go(func() error {
		log.Info("Starting HTTP server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		// The store is closed once run returns, so in-flight sends must end first.
		return handler.Drain(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

func openStore(ctx context.Context, log *slog.Logger, config internal.Config) (contract.IMessageRepository, func(), error) {
	switch config.StoreDriver {
	case internal.StorePostgres:
		pool, err := pgxpool.New(ctx, config.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		repository := repositories.NewPgMessageRepository(pool, log)
		if err := repository.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository, pool.Close, nil
	default:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		repository, err := repositories.NewMessageRepository(db, log)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repository, func() {
			log.Info("Closing BadgerDB...")
			_ = repository.Close()
			_ = db.Close()
		}, nil
	}
}
