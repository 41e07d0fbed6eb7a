package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/artfolio/chainmarket/internal/adapter"
	"github.com/artfolio/chainmarket/internal/api/middleware"
	"github.com/artfolio/chainmarket/internal/api/server"
	"github.com/artfolio/chainmarket/internal/config"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
	"github.com/artfolio/chainmarket/internal/logger"
	"github.com/artfolio/chainmarket/internal/providers/jetstream"
	"github.com/artfolio/chainmarket/internal/store"
	"github.com/artfolio/chainmarket/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "api-server",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting chainmarket API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}

	// Run migrations
	if err := store.Migrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to run migrations", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	dataStore := store.NewPGStore(db)

	// Connect to NATS JetStream for market events
	publisher, err := jetstream.NewPublisher(jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, adapter.NewNatsJetStream(), adapter.NewJSON())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
	}
	defer publisher.Close()
	logger.InfoCtx(ctx, "Connected to NATS", zap.String("stream", cfg.NATS.StreamName))

	// Create the engine
	clock := adapter.NewClock()
	eng, err := engine.New(engine.Config{
		Admin:              domain.Principal(cfg.Engine.Admin),
		ActionFee:          domain.Amount(cfg.Engine.ActionFee),
		MarketFeeBps:       cfg.Engine.MarketFeeBps,
		AntiSnipeWindow:    domain.BlockHeight(cfg.Engine.AntiSnipeWindow),
		AntiSnipeExtension: domain.BlockHeight(cfg.Engine.AntiSnipeExtension),
	}, store.NewJournal(dataStore), publisher, clock)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create engine", zap.Error(err))
	}
	defer eng.Close()

	// Replay the command journal to rebuild state
	cmds, err := store.LoadCommands(ctx, dataStore)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load command journal", zap.Error(err))
	}
	if err := eng.Replay(ctx, cmds); err != nil {
		logger.FatalCtx(ctx, "Failed to replay command journal", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Replayed command journal",
		zap.Int("commands", len(cmds)),
		zap.Uint64("block_height", uint64(eng.Height())),
	)

	// Start the expiry sweeper in-process; it shares the engine so all
	// journal writes stay on the single writer.
	var expirySweeper sweeper.Sweeper
	if cfg.Sweeper.Enabled {
		expirySweeper = sweeper.NewExpirySweeper(&sweeper.ExpirySweeperConfig{
			Interval:       cfg.Sweeper.Interval,
			WorkerPoolSize: cfg.Sweeper.WorkerPoolSize,
			Operator:       domain.Principal(cfg.Engine.Admin),
		}, eng, clock)
		go func() {
			if err := expirySweeper.Start(ctx); err != nil {
				logger.ErrorCtx(ctx, err, zap.String("component", expirySweeper.Name()))
			}
		}()
	}

	// Create and start server
	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
		},
		Admin: domain.Principal(cfg.Engine.Admin),
	}, eng)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
	}
	cancel()

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if expirySweeper != nil {
		if err := expirySweeper.Stop(shutdownCtx); err != nil {
			logger.ErrorCtx(shutdownCtx, err, zap.String("component", expirySweeper.Name()))
		}
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}

	logger.InfoCtx(shutdownCtx, "Shutdown complete")
}
