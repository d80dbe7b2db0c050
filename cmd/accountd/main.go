// Package main provides accountd, the account and settlement daemon.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/klingon-exchange/accountcore/internal/chain"
	"github.com/klingon-exchange/accountcore/internal/config"
	"github.com/klingon-exchange/accountcore/internal/credential"
	"github.com/klingon-exchange/accountcore/internal/ledger"
	"github.com/klingon-exchange/accountcore/internal/rpc"
	"github.com/klingon-exchange/accountcore/internal/store"
	"github.com/klingon-exchange/accountcore/internal/wallet"
	"github.com/klingon-exchange/accountcore/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.accountcore", "Data directory")
		configFile  = flag.String("config", "", "Config file path; only its directory is used and the file read there is always config.yaml (default: <data-dir>/config.yaml)")
		listenAddr  = flag.String("listen", "", "JSON-RPC listen address, overrides config")
		shardIndex  = flag.Int("shard-index", -1, "This worker's shard index, overrides config (-1 leaves config unchanged)")
		shardCount  = flag.Int("shard-count", 0, "Total shard count, overrides config (0 leaves config unchanged)")
		testnet     = flag.Bool("testnet", false, "Generate testnet deposit wallets")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: "info", TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("accountd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadConfig(filepath.Dir(*configFile))
	} else {
		cfg, err = config.LoadConfig(*dataDir)
	}
	if err != nil {
		log.Fatal("failed to load config", "error", err)
	}

	if *listenAddr != "" {
		cfg.RPC.ListenAddr = *listenAddr
	}
	if *shardIndex >= 0 {
		cfg.Settlement.ShardIndex = shardIndex
	}
	if *shardCount > 0 {
		cfg.Settlement.ShardCount = *shardCount
	}
	if *testnet {
		cfg.Wallet.Network = "testnet"
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	log = logging.New(&logging.Config{Level: cfg.Logging.Level, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	log.Info("config loaded", "dataDir", cfg.Storage.DataDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := store.New(&store.Config{DataDir: cfg.Storage.DataDir})
	if err != nil {
		log.Fatal("failed to initialize storage", "error", err)
	}
	defer s.Close()
	log.Info("storage initialized", "path", cfg.Storage.DataDir)

	network := chain.Mainnet
	if cfg.Wallet.Network == "testnet" {
		network = chain.Testnet
	}

	serverKey := os.Getenv(cfg.Wallet.ServerKeyEnv)
	if serverKey == "" {
		log.Fatal("wallet server key not set", "env", cfg.Wallet.ServerKeyEnv)
	}

	generator := wallet.NewHDGenerator(network, serverKey)
	creds := credential.New(s, generator)
	ingestor := ledger.NewIngestor(s)

	engines := rpc.Engines{}
	var tickEngine *ledger.Engine
	if cfg.Settlement.Enabled() {
		tickEngine = ledger.NewEngine(s, *cfg.Settlement.ShardIndex, cfg.Settlement.ShardCount)
		engines[*cfg.Settlement.ShardIndex] = tickEngine
		log.Info("settlement enabled", "shardIndex", *cfg.Settlement.ShardIndex, "shardCount", cfg.Settlement.ShardCount)
	} else {
		log.Info("settlement disabled (no shard index configured)")
	}

	rpcServer := rpc.NewServer(creds, ingestor, engines, s)
	if err := rpcServer.Start(cfg.RPC.ListenAddr); err != nil {
		log.Fatal("failed to start RPC server", "error", err)
	}
	log.Info("accountd started", "listen", cfg.RPC.ListenAddr, "network", cfg.Wallet.Network)

	if tickEngine != nil {
		go runSettlementLoop(ctx, tickEngine, rpcServer, cfg.Settlement.TickInterval, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down...")
	cancel()
	if err := rpcServer.Stop(); err != nil {
		log.Error("error stopping RPC server", "error", err)
	}
}

// runSettlementLoop ticks the settlement engine on a fixed interval until
// ctx is canceled. The outcome of each tick that settled at least one
// transaction is logged and broadcast over the WebSocket stream; ticks that
// settled nothing are not reported. A failed tick is logged and retried on
// the next interval rather than aborting the loop.
func runSettlementLoop(ctx context.Context, engine *ledger.Engine, server *rpc.Server, interval string, log *logging.Logger) {
	d, err := time.ParseDuration(interval)
	if err != nil {
		log.Error("invalid tick interval, defaulting to 10s", "interval", interval, "error", err)
		d = 10 * time.Second
	}

	ticker := time.NewTicker(d)
	defer ticker.Stop()

	tickLog := log.Component("settlement-loop")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := engine.Tick()
			if err != nil {
				tickLog.Error("tick failed", "error", err)
				continue
			}
			if result.Settled > 0 {
				tickLog.Info("tick complete", "touched", result.AccountsTouched, "settled", result.Settled, "canceled", result.Canceled, "pruned", result.Pruned)
				if hub := server.WSHub(); hub != nil {
					hub.Broadcast(rpc.EventSettlementTick, result)
				}
			}
		}
	}
}
