// Package pool orchestrates the pool operations: it reads the pool config and
// reserves from the ledger, prices the operation with the curve package,
// checks caller bounds, and commits the resulting transfers, mints and burns
// as one changeset.
//
// The engine holds no state between operations and takes no locks. Every
// changeset carries the config, reserves and LP supply it was priced against,
// so a ledger that committed something else in between rejects it as stale.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"cpamm/internal/ammerr"
	"cpamm/internal/curve"
	"cpamm/internal/ledger"
	"cpamm/internal/model"
	"cpamm/internal/storage"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	// Precision is the decimal precision given to new pools and LP mints.
	Precision uint8
	Journal   storage.Journal
	Metrics   *Metrics
	Logger    *zap.Logger
	Now       func() time.Time
}

// Engine runs pool operations against a ledger.
type Engine struct {
	ledger    ledger.Ledger
	precision uint8
	journal   storage.Journal
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine builds an Engine. A zero Precision means model.DefaultPrecision.
func NewEngine(l ledger.Ledger, opts Options) (*Engine, error) {
	if l == nil {
		return nil, fmt.Errorf("ledger is nil")
	}
	precision := opts.Precision
	if precision == 0 {
		precision = model.DefaultPrecision
	}
	if err := curve.ValidatePrecision(precision); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ledger:    l,
		precision: precision,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       now,
	}, nil
}

// snapshot is one fresh read of a pool.
type snapshot struct {
	cfg      model.PoolConfig
	reserves model.Reserves
}

// changeset pins the config, reserves and LP supply the snapshot saw.
func (s snapshot) changeset(effects ...ledger.Effect) ledger.Changeset {
	observed := s.cfg
	return ledger.Changeset{
		Observed: &observed,
		Preconditions: []ledger.Precondition{
			ledger.ExpectBalance(s.cfg.Address, s.cfg.MintX, s.reserves.X),
			ledger.ExpectBalance(s.cfg.Address, s.cfg.MintY, s.reserves.Y),
			ledger.ExpectSupply(s.cfg.LPMint, s.reserves.LPSupply),
		},
		Effects: effects,
	}
}

func (e *Engine) loadConfig(ctx context.Context, seed uint64) (model.PoolConfig, error) {
	cfg, ok, err := e.ledger.PoolConfig(ctx, seed)
	if err != nil {
		return model.PoolConfig{}, fmt.Errorf("load pool %d: %w", seed, err)
	}
	if !ok {
		return model.PoolConfig{}, ammerr.ErrBumpError.Wrapf("no pool initialized at seed %d", seed)
	}
	if err := verifyDerivation(cfg); err != nil {
		return model.PoolConfig{}, err
	}
	return cfg, nil
}

func (e *Engine) load(ctx context.Context, seed uint64) (snapshot, error) {
	cfg, err := e.loadConfig(ctx, seed)
	if err != nil {
		return snapshot{}, err
	}
	x, err := e.ledger.Balance(ctx, cfg.Address, cfg.MintX)
	if err != nil {
		return snapshot{}, fmt.Errorf("read reserve x: %w", err)
	}
	y, err := e.ledger.Balance(ctx, cfg.Address, cfg.MintY)
	if err != nil {
		return snapshot{}, fmt.Errorf("read reserve y: %w", err)
	}
	supply, err := e.ledger.Supply(ctx, cfg.LPMint)
	if err != nil {
		return snapshot{}, fmt.Errorf("read lp supply: %w", err)
	}
	return snapshot{cfg: cfg, reserves: model.Reserves{X: x, Y: y, LPSupply: supply}}, nil
}

// commit hands cs to the ledger and maps ledger failures onto the taxonomy
// while keeping the ledger error in the chain.
func (e *Engine) commit(ctx context.Context, op string, cs ledger.Changeset) error {
	err := e.ledger.Commit(ctx, cs)
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fmt.Errorf("commit %s: %w: %w", op, ammerr.ErrInsufficientBalance, err)
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return fmt.Errorf("commit %s: %w: %w", op, ammerr.ErrOverflow, err)
	case errors.Is(err, ledger.ErrUnknownMint):
		return fmt.Errorf("commit %s: %w: %w", op, ammerr.ErrInvalidToken, err)
	case errors.Is(err, ledger.ErrConfigExists), errors.Is(err, ledger.ErrMintExists):
		return fmt.Errorf("commit %s: %w: %w", op, ammerr.ErrBumpError, err)
	default:
		return fmt.Errorf("commit %s: %w", op, err)
	}
}

func (e *Engine) observe(op string, seed uint64, err error) {
	e.metrics.observeOperation(op, err)
	if err != nil {
		e.logger.Debug("operation rejected",
			zap.String("op", op),
			zap.Uint64("seed", seed),
			zap.Uint32("code", ammerr.Code(err)),
			zap.Error(err),
		)
	}
}

func (e *Engine) record(receipt model.Receipt, supply uint64) {
	receipt.Timestamp = e.now().UTC().Format(time.RFC3339Nano)

	e.metrics.observeFlow(receipt.Seed, "x", "in", receipt.AmountInX)
	e.metrics.observeFlow(receipt.Seed, "y", "in", receipt.AmountInY)
	e.metrics.observeFlow(receipt.Seed, "x", "out", receipt.AmountOutX)
	e.metrics.observeFlow(receipt.Seed, "y", "out", receipt.AmountOutY)
	e.metrics.setLPSupply(receipt.Seed, supply)

	e.logger.Info("operation committed",
		zap.String("op", receipt.Operation),
		zap.Uint64("seed", receipt.Seed),
		zap.String("caller", receipt.Caller),
		zap.Uint64("in_x", receipt.AmountInX),
		zap.Uint64("in_y", receipt.AmountInY),
		zap.Uint64("out_x", receipt.AmountOutX),
		zap.Uint64("out_y", receipt.AmountOutY),
		zap.Uint64("lp_minted", receipt.LPMinted),
		zap.Uint64("lp_burned", receipt.LPBurned),
		zap.Uint64("fee", receipt.Fee),
	)

	if e.journal == nil {
		return
	}
	if err := e.journal.PutReceipts([]model.Receipt{receipt}); err != nil {
		e.logger.Warn("journal write failed", zap.String("op", receipt.Operation), zap.Error(err))
	}
}

func newReceipt(op string, cfg model.PoolConfig, caller common.Address) model.Receipt {
	return model.Receipt{
		Operation: op,
		Seed:      cfg.Seed,
		Pool:      cfg.Address.Hex(),
		Caller:    caller.Hex(),
	}
}
