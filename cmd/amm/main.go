package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cpamm/internal/config"
	"cpamm/internal/ledger"
	"cpamm/internal/pool"
	"cpamm/internal/storage"
	"cpamm/internal/storage/leveldb"
	"cpamm/internal/storage/postgres"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product liquidity pools over a token ledger",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("store", config.StoreLevelDB, "ledger backend (memory, leveldb, postgres)")
	flags.String("leveldb-path", "./data/ledger", "LevelDB ledger directory")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("journal", "./data/receipts.jsonl", "receipt journal JSONL path (empty disables)")
	flags.String("metrics-file", "", "write Prometheus metrics to this textfile on exit")
	flags.Uint8("precision", 6, "decimal precision of new LP mints")
	flags.Int("max-retries", 5, "retries when the ledger moved under an operation")
	flags.Duration("retry-backoff", 50*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("caller", "", "address signing the operation")

	root.AddCommand(
		newInitCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newSwapCmd(),
		newLockCmd(true),
		newLockCmd(false),
		newSetAuthorityCmd(),
		newPoolCmd(),
		newQuoteCmd(),
		newLedgerCmd(),
		newAggregateCmd(),
	)
	return root
}

// app is the per-invocation wiring shared by every subcommand.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	ledger   ledger.Ledger
	engine   *pool.Engine
	registry *prometheus.Registry
	closers  []func()
}

func setup(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	l, err := a.openLedger(cmd.Context())
	if err != nil {
		a.close()
		return nil, err
	}
	a.ledger = l

	opts := pool.Options{
		Precision: cfg.Precision,
		Metrics:   pool.NewMetrics(a.registry),
		Logger:    logger.Named("pool"),
	}
	if cfg.Journal != "" {
		opts.Journal = storage.NewJsonlJournal(cfg.Journal).WithSync()
	}
	engine, err := pool.NewEngine(l, opts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine
	return a, nil
}

func (a *app) openLedger(ctx context.Context) (ledger.Ledger, error) {
	switch a.cfg.Store {
	case config.StoreMemory:
		a.logger.Warn("memory ledger selected; state is discarded on exit")
		return ledger.NewMemory(), nil
	case config.StoreLevelDB:
		store, err := leveldb.Open(a.cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close leveldb", zap.Error(err))
			}
		})
		a.logger.Debug("ledger opened", zap.String("store", a.cfg.Store), zap.String("path", a.cfg.LevelDBPath))
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, a.cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Debug("ledger opened", zap.String("store", a.cfg.Store), zap.String("pg_dsn", redactDSN(a.cfg.PGDSN)))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", a.cfg.Store)
	}
}

func (a *app) close() {
	if a.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(a.cfg.MetricsFile, a.registry); err != nil {
			a.logger.Warn("write metrics file", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// retry re-runs op while the ledger reports that the pool moved under it.
func (a *app) retry(ctx context.Context, op func(context.Context) error) error {
	attempt := 0
	return ledger.WithRetry(ctx, a.cfg.MaxRetries, a.cfg.RetryBackoff, func(ctx context.Context) error {
		attempt++
		err := op(ctx)
		if errors.Is(err, ledger.ErrStaleState) {
			a.logger.Debug("stale ledger state", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	})
}

// run wires an app around fn and cancels it on SIGINT/SIGTERM.
func run(fn func(ctx context.Context, cmd *cobra.Command, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a)
	}
}

func (a *app) caller(cmd *cobra.Command) (common.Address, error) {
	raw, _ := cmd.Flags().GetString("caller")
	if raw == "" {
		return common.Address{}, fmt.Errorf("--caller is required")
	}
	return parseAddress("caller", raw)
}

func parseAddress(name, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, raw)
	}
	return common.HexToAddress(raw), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if at := strings.Index(dsn, "@"); at != -1 {
		prefix := dsn[:at]
		if scheme := strings.Index(prefix, "://"); scheme != -1 {
			return prefix[:scheme+3] + "***" + dsn[at:]
		}
		return "***" + dsn[at:]
	}
	return dsn
}
