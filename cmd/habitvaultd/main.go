package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"habitvault/config"
	"habitvault/core/events"
	"habitvault/core/types"
	"habitvault/native/habit"
	"habitvault/native/rewards"
	"habitvault/observability"
	"habitvault/observability/logging"
	"habitvault/rpc"
	"habitvault/state"
	"habitvault/storage"
)

func main() {
	configPath := flag.String("config", "./habitvault.toml", "Path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.Setup(logging.Options{
		Service: "habitvaultd",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		File:    cfg.LogFile,
	})

	if err := run(cfg, log); err != nil {
		log.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	node, err := newNode(cfg, db, log)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics(nil)
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           rpc.NewServer(node, log, metrics).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("rpc server listening", "address", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch strings.ToLower(cfg.Backend) {
	case "memory":
		return storage.NewMemDB(), nil
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "habitvault.bolt"))
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "habitvault.leveldb"))
	}
}

// node wires the state manager into both engines and carries the custody
// helpers the RPC layer exposes.
type node struct {
	manager *state.Manager
	habit   *habit.Engine
	rewards *rewards.Engine
}

func newNode(cfg *config.Config, db storage.Database, log *slog.Logger) (*node, error) {
	manager := state.NewManager(db)
	emitter := newLogEmitter(log)

	habitEngine := habit.NewEngine()
	habitEngine.SetState(manager)
	habitEngine.SetEmitter(emitter)

	rewardsEngine := rewards.NewEngine()
	rewardsEngine.SetState(manager)
	rewardsEngine.SetEmitter(emitter)
	rewardsEngine.SetPolicy(rewards.WeightedScorePolicy{
		RateWeight:       cfg.Rewards.RateWeight,
		StreakWeight:     cfg.Rewards.StreakWeight,
		ConsistencyBonus: cfg.Rewards.ConsistencyBonus,
	})

	n := &node{manager: manager, habit: habitEngine, rewards: rewardsEngine}
	if err := n.bootstrap(cfg, log); err != nil {
		return nil, err
	}
	return n, nil
}

// bootstrap initializes the protocol config and reward epoch state on first
// start. An already initialized store is left untouched.
func (n *node) bootstrap(cfg *config.Config, log *slog.Logger) error {
	if _, ok := n.manager.ConfigGet(); !ok {
		if strings.TrimSpace(cfg.Protocol.Authority) == "" {
			log.Warn("store not initialized and no protocol bootstrap configured; waiting for habit_initialize")
			return nil
		}
		authority, err := cfg.Protocol.AuthorityAddress()
		if err != nil {
			return err
		}
		treasury, err := cfg.Protocol.TreasuryAddress()
		if err != nil {
			return err
		}
		charity, err := cfg.Protocol.CharityAddress()
		if err != nil {
			return err
		}
		if _, err := n.habit.Initialize(authority, treasury, charity, cfg.Protocol.Token, cfg.Protocol.FeePercentage, cfg.Protocol.RewardPercentage, cfg.Protocol.CharityPercentage); err != nil {
			return fmt.Errorf("bootstrap protocol: %w", err)
		}
		log.Info("protocol initialized", "authority", cfg.Protocol.Authority, "token", cfg.Protocol.Token)
	}
	if _, ok := n.manager.ConfigGet(); ok {
		if _, err := n.rewards.EnsureState(); err != nil {
			return fmt.Errorf("bootstrap rewards: %w", err)
		}
	}
	return nil
}

func (n *node) HabitEngine() *habit.Engine { return n.habit }

func (n *node) RewardsEngine() *rewards.Engine { return n.rewards }

func (n *node) Mint(addr [20]byte, token string, amount *big.Int) error {
	return n.manager.Mint(addr, token, amount)
}

func (n *node) BalanceOf(addr [20]byte, token string) (*big.Int, error) {
	return n.manager.BalanceOf(addr, token)
}

// logEmitter forwards engine events to the structured logger.
type logEmitter struct {
	log *slog.Logger
}

func newLogEmitter(log *slog.Logger) events.Emitter {
	return &logEmitter{log: log}
}

func (e *logEmitter) Emit(event events.Event) {
	carrier, ok := event.(interface{ Event() *types.Event })
	if !ok {
		e.log.Info("event emitted", "type", event.EventType())
		return
	}
	evt := carrier.Event()
	if evt == nil {
		return
	}
	attrs := make([]any, 0, len(evt.Attributes)*2)
	for key, value := range evt.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	e.log.With(attrs...).Info("event emitted", "type", evt.Type)
}
