package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"cpamm/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// Sink receives finished windows.
type Sink interface {
	UpsertWindowStats(ctx context.Context, stats []model.WindowStats) error
}

// Aggregator folds a receipt journal into per-pool window stats.
type Aggregator struct {
	cfg          Config
	sink         Sink
	logger       *zap.Logger
	accumulators map[uint64]*Accumulator
	locked       map[uint64]bool
}

func NewAggregator(cfg Config, sink Sink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[uint64]*Accumulator),
		locked:       make(map[uint64]bool),
	}
}

// Run folds every receipt in the JSONL file at inputPath that is newer than
// the checkpoint, then flushes all open windows.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.sink == nil {
		return fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 500
	}

	from, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	out := &pending{sink: a.sink, size: a.cfg.BatchSize}
	var st runStats
	newest := from

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		receipt, ts, ok := a.decode(scanner.Bytes(), &st)
		if !ok {
			continue
		}
		if ts <= from {
			st.skipped++
			continue
		}

		if closed := a.route(receipt, ts); closed != nil {
			out.rows = append(out.rows, *closed)
			st.windows++
		}
		acc := a.accumulators[receipt.Seed]
		if err := acc.AddReceipt(receipt, ts); err != nil {
			st.failed++
			a.logger.Warn("aggregate receipt", zap.Error(err), zap.Uint64("seed", receipt.Seed), zap.String("op", receipt.Operation))
			continue
		}
		a.locked[receipt.Seed] = acc.Locked
		newest = max(newest, ts)

		wrote, err := out.flushFull(ctx)
		if err != nil {
			return err
		}
		if wrote {
			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	st.windows += a.closeAll(out)
	if err := out.flush(ctx); err != nil {
		return err
	}

	a.cfg.RecomputeFrom = newest
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", st.total),
		zap.Int("windows", st.windows),
		zap.Int("skipped", st.skipped),
		zap.Int("failed", st.failed),
	)
	return nil
}

type runStats struct {
	total, windows, skipped, failed int
}

// decode parses one journal line. Blank lines are ignored; bad lines are
// counted and logged.
func (a *Aggregator) decode(line []byte, st *runStats) (model.Receipt, uint64, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return model.Receipt{}, 0, false
	}
	st.total++

	var receipt model.Receipt
	if err := json.Unmarshal(line, &receipt); err != nil {
		st.failed++
		a.logger.Warn("decode receipt", zap.Error(err))
		return model.Receipt{}, 0, false
	}
	ts, err := receiptTimestamp(receipt)
	if err != nil {
		st.failed++
		a.logger.Warn("receipt timestamp", zap.Error(err), zap.Uint64("seed", receipt.Seed))
		return model.Receipt{}, 0, false
	}
	return receipt, ts, true
}

// route makes sure the pool has an accumulator for the window containing ts.
// It returns the previous window's row when the receipt opens a new one.
func (a *Aggregator) route(receipt model.Receipt, ts uint64) *model.WindowStats {
	start := windowStart(ts, a.cfg.WindowSeconds)
	acc := a.accumulators[receipt.Seed]
	if acc != nil && acc.WindowStart == start {
		return nil
	}

	var closed *model.WindowStats
	if acc != nil {
		row := a.flushAccumulator(acc)
		closed = &row
	}
	a.accumulators[receipt.Seed] = NewAccumulator(receipt, ts, start, start+a.cfg.WindowSeconds, a.locked[receipt.Seed])
	return closed
}

// closeAll moves every open window into out, ordered by seed.
func (a *Aggregator) closeAll(out *pending) int {
	seeds := make([]uint64, 0, len(a.accumulators))
	for seed := range a.accumulators {
		seeds = append(seeds, seed)
	}
	sort.Slice(seeds, func(i, j int) bool { return seeds[i] < seeds[j] })
	for _, seed := range seeds {
		out.rows = append(out.rows, a.flushAccumulator(a.accumulators[seed]))
	}
	a.accumulators = make(map[uint64]*Accumulator)
	return len(seeds)
}

// pending buffers closed windows until a sink write.
type pending struct {
	sink Sink
	size int
	rows []model.WindowStats
}

func (p *pending) flushFull(ctx context.Context) (bool, error) {
	if len(p.rows) < p.size {
		return false, nil
	}
	return true, p.flush(ctx)
}

func (p *pending) flush(ctx context.Context) error {
	if len(p.rows) == 0 {
		return nil
	}
	if err := p.sink.UpsertWindowStats(ctx, p.rows); err != nil {
		return fmt.Errorf("write window stats: %w", err)
	}
	p.rows = nil
	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx, a.cfg.WindowSeconds)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState checkpoints the newest second whose windows have all been
// written. While windows are open that is the second before the oldest one.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safe := a.cfg.RecomputeFrom
	if oldest, ok := a.oldestOpenWindow(); ok && oldest > 0 {
		safe = oldest - 1
	}
	return a.cfg.StateStore.Save(ctx, a.cfg.WindowSeconds, safe)
}

func (a *Aggregator) flushAccumulator(acc *Accumulator) model.WindowStats {
	return model.WindowStats{
		Seed:           acc.Seed,
		Pool:           acc.Pool,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeX:        acc.VolumeX.Dec(),
		VolumeY:        acc.VolumeY.Dec(),
		FeeX:           acc.FeeX.Dec(),
		FeeY:           acc.FeeY.Dec(),
		LPMinted:       acc.LPMinted.Dec(),
		LPBurned:       acc.LPBurned.Dec(),
		Locked:         acc.Locked,
	}
}

func (a *Aggregator) oldestOpenWindow() (uint64, bool) {
	var (
		oldest uint64
		found  bool
	)
	for _, acc := range a.accumulators {
		if !found || acc.WindowStart < oldest {
			oldest, found = acc.WindowStart, true
		}
	}
	return oldest, found
}
