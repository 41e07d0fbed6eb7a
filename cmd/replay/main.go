// Command replay rebuilds the engine state from the command journal and
// verifies its internal invariants. Run it against a live database to check
// that the journal still replays cleanly.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/artfolio/chainmarket/internal/adapter"
	"github.com/artfolio/chainmarket/internal/config"
	"github.com/artfolio/chainmarket/internal/domain"
	"github.com/artfolio/chainmarket/internal/engine"
	"github.com/artfolio/chainmarket/internal/logger"
	"github.com/artfolio/chainmarket/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	config.ChdirRepoRoot()
	cfg, err := config.LoadReplayConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	ctx := context.Background()

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "replay",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	dataStore := store.NewPGStore(db)

	// Verification only: no journal, no publisher, no new writes.
	eng, err := engine.New(engine.Config{
		Admin:              domain.Principal(cfg.Engine.Admin),
		ActionFee:          domain.Amount(cfg.Engine.ActionFee),
		MarketFeeBps:       cfg.Engine.MarketFeeBps,
		AntiSnipeWindow:    domain.BlockHeight(cfg.Engine.AntiSnipeWindow),
		AntiSnipeExtension: domain.BlockHeight(cfg.Engine.AntiSnipeExtension),
	}, nil, nil, adapter.NewClock())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create engine", zap.Error(err))
	}
	defer eng.Close()

	start := time.Now()
	cmds, err := store.LoadCommands(ctx, dataStore)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to load command journal", zap.Error(err))
	}

	if err := eng.Replay(ctx, cmds); err != nil {
		logger.FatalCtx(ctx, "Replay failed", zap.Error(err))
	}

	if err := eng.CheckEscrowInvariant(); err != nil {
		logger.FatalCtx(ctx, "Escrow invariant violated after replay", zap.Error(err))
	}

	logger.InfoCtx(ctx, "Journal replayed cleanly",
		zap.Int("commands", len(cmds)),
		zap.Uint64("block_height", uint64(eng.Height())),
		zap.Uint64("last_token_id", uint64(eng.LastTokenID())),
		zap.Uint64("fees_accrued", uint64(eng.FeesAccrued())),
		zap.Duration("duration", time.Since(start)),
	)
}
