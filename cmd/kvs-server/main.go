// Command kvs-server runs the kvs TCP server. CLI argument parsing here
// is intentionally minimal: the full flag/subcommand surface is an
// external collaborator outside this module's core scope.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kvsdb/kvs/internal/engine"
	"github.com/kvsdb/kvs/internal/kvconfig"
	"github.com/kvsdb/kvs/internal/obs"
	"github.com/kvsdb/kvs/internal/pool"
	"github.com/kvsdb/kvs/internal/kvserver"
	"go.uber.org/zap"
)

func main() {
	cfg := kvconfig.Load()

	addr := flag.String("addr", cfg.Addr, "KV wire-protocol listen address")
	engineName := flag.String("engine", cfg.Engine, "storage engine: kvs or sqlite")
	dataDir := flag.String("data-dir", cfg.DataDir, "data directory")
	poolVariant := flag.String("pool", cfg.PoolVariant, "thread pool: naive, shared_queue, or stealing")
	poolSize := flag.Int("pool-size", cfg.PoolSize, "worker count")
	flag.Parse()

	logger, err := obs.NewLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "building logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	registry := obs.NewRegistry()
	pool.Metrics(registry)

	var eng engine.Engine
	switch *engineName {
	case engine.NameKvs:
		kvsEng, err := engine.Open(*dataDir, logger, registry)
		if err != nil {
			logger.Fatal("opening kvs engine", zap.Error(err))
		}
		eng = kvsEng
	case engine.NameSQLite:
		sqliteEng, err := engine.OpenSQLite(*dataDir, logger)
		if err != nil {
			logger.Fatal("opening sqlite engine", zap.Error(err))
		}
		eng = sqliteEng
	default:
		logger.Fatal("unknown engine", zap.String("engine", *engineName))
	}
	defer eng.Close()

	workers, err := newPool(*poolVariant, *poolSize)
	if err != nil {
		logger.Fatal("constructing thread pool", zap.Error(err))
	}
	defer workers.Close()

	srv := kvserver.New(kvserver.Config{
		Addr:          *addr,
		AdminAddr:     cfg.AdminAddr,
		LockDir:       ".",
		ConnRateLimit: cfg.ConnRateLimit,
		ConnRateBurst: cfg.ConnRateBurst,
	}, eng, workers, logger, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func newPool(variant string, size int) (pool.Pool, error) {
	switch variant {
	case "naive":
		return pool.NewNaivePool(size)
	case "stealing":
		return pool.NewStealingPool(size)
	case "shared_queue", "":
		return pool.NewSharedQueuePool(size)
	default:
		return nil, fmt.Errorf("unknown pool variant %q", variant)
	}
}
