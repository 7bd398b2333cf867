package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpamm/internal/model"
	"cpamm/internal/storage"
)

type memorySink struct {
	calls int
	rows  []model.WindowStats
}

func (s *memorySink) UpsertWindowStats(_ context.Context, stats []model.WindowStats) error {
	s.calls++
	s.rows = append(s.rows, stats...)
	return nil
}

const (
	poolOne = "0x00000000000000000000000000000000000000a1"
	poolTwo = "0x00000000000000000000000000000000000000a2"
)

func at(clock string) string {
	return "2024-03-01T" + clock + "Z"
}

func writeJournal(t *testing.T, receipts []model.Receipt, extra ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipts.jsonl")
	require.NoError(t, storage.NewJsonlJournal(path).PutReceipts(receipts))
	if len(extra) > 0 {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		require.NoError(t, err)
		for _, line := range extra {
			_, err := f.WriteString(line + "\n")
			require.NoError(t, err)
		}
		require.NoError(t, f.Close())
	}
	return path
}

func sampleReceipts() []model.Receipt {
	return []model.Receipt{
		{Operation: model.OpInitialize, Seed: 1, Pool: poolOne, AmountInX: 1000, AmountInY: 1000, LPMinted: 1000, Timestamp: at("12:00:00")},
		{Operation: model.OpSwap, Seed: 1, Pool: poolOne, Direction: "x_to_y", AmountInX: 1000, AmountOutY: 499, Fee: 3, Timestamp: at("12:10:00")},
		{Operation: model.OpLock, Seed: 1, Pool: poolOne, Timestamp: at("12:20:00")},
		{Operation: model.OpSwap, Seed: 2, Pool: poolTwo, Direction: "y_to_x", AmountInY: 200, AmountOutX: 150, Fee: 1, Timestamp: at("12:30:00")},
		{Operation: model.OpUnlock, Seed: 1, Pool: poolOne, Timestamp: at("13:01:00")},
		{Operation: model.OpDeposit, Seed: 1, Pool: poolOne, AmountInX: 10, AmountInY: 10, LPMinted: 10, Timestamp: at("13:05:00")},
	}
}

func hour(clock string) time.Time {
	tm, _ := time.Parse(time.RFC3339, at(clock))
	return tm
}

func TestAggregatorWindows(t *testing.T) {
	path := writeJournal(t, sampleReceipts(), "not json", `{"operation":"swap","seed":3}`)

	sink := &memorySink{}
	agg := NewAggregator(Config{WindowSeconds: 3600}, sink, nil)
	require.NoError(t, agg.Run(context.Background(), path))

	require.Len(t, sink.rows, 3)
	assert.Equal(t, model.WindowStats{
		Seed:           1,
		Pool:           poolOne,
		WindowSizeSecs: 3600,
		WindowStart:    hour("12:00:00"),
		WindowEnd:      hour("13:00:00"),
		SwapCount:      1,
		DepositCount:   1,
		VolumeX:        "1000",
		VolumeY:        "499",
		FeeX:           "3",
		FeeY:           "0",
		LPMinted:       "1000",
		LPBurned:       "0",
		Locked:         true,
	}, sink.rows[0])

	next := sink.rows[1]
	assert.Equal(t, uint64(1), next.Seed)
	assert.Equal(t, hour("13:00:00"), next.WindowStart)
	assert.Equal(t, uint64(1), next.DepositCount)
	assert.Equal(t, "10", next.LPMinted)
	assert.Equal(t, "0", next.VolumeX)
	assert.False(t, next.Locked)

	other := sink.rows[2]
	assert.Equal(t, uint64(2), other.Seed)
	assert.Equal(t, "150", other.VolumeX)
	assert.Equal(t, "200", other.VolumeY)
	assert.Equal(t, "0", other.FeeX)
	assert.Equal(t, "1", other.FeeY)
}

func TestAggregatorCarriesLockAcrossWindows(t *testing.T) {
	path := writeJournal(t, []model.Receipt{
		{Operation: model.OpLock, Seed: 1, Pool: poolOne, Timestamp: at("12:00:00")},
		{Operation: model.OpUpdateAuthority, Seed: 1, Pool: poolOne, Authority: "none", Timestamp: at("14:00:00")},
	})

	sink := &memorySink{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600}, sink, nil).Run(context.Background(), path))

	require.Len(t, sink.rows, 2)
	assert.True(t, sink.rows[0].Locked)
	assert.True(t, sink.rows[1].Locked)
	assert.Equal(t, hour("14:00:00"), sink.rows[1].WindowStart)
}

func TestAggregatorResumesFromState(t *testing.T) {
	path := writeJournal(t, sampleReceipts())
	state := &FileStateStore{Path: filepath.Join(t.TempDir(), "state", "aggregate.json")}

	first := &memorySink{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, first, nil).Run(context.Background(), path))
	require.Len(t, first.rows, 3)

	last, ok, err := state.Load(context.Background(), 3600)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(hour("13:05:00").Unix()), last)

	second := &memorySink{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, StateStore: state}, second, nil).Run(context.Background(), path))
	assert.Zero(t, second.calls)

	recompute := &memorySink{}
	cfg := Config{WindowSeconds: 3600, StateStore: state, RecomputeFrom: uint64(hour("13:00:00").Unix())}
	require.NoError(t, NewAggregator(cfg, recompute, nil).Run(context.Background(), path))
	require.Len(t, recompute.rows, 1)
	assert.Equal(t, "10", recompute.rows[0].LPMinted)

	minutes := &memorySink{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 60, StateStore: state}, minutes, nil).Run(context.Background(), path))
	assert.Len(t, minutes.rows, 6)

	last, ok, err = state.Load(context.Background(), 3600)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(hour("13:05:00").Unix()), last)
}

func TestFileStateStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, _, err := (&FileStateStore{Path: path}).Load(context.Background(), 60)
	require.ErrorContains(t, err, "parse state")

	var missing *FileStateStore
	_, ok, err := missing.Load(context.Background(), 60)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregatorBatches(t *testing.T) {
	receipts := make([]model.Receipt, 0, 4)
	for i, clock := range []string{"10:00:00", "11:00:00", "12:00:00", "13:00:00"} {
		receipts = append(receipts, model.Receipt{
			Operation: model.OpWithdraw, Seed: 1, Pool: poolOne,
			AmountOutX: uint64(i + 1), AmountOutY: uint64(i + 1), LPBurned: uint64(i + 1),
			Timestamp: at(clock),
		})
	}
	path := writeJournal(t, receipts)

	sink := &memorySink{}
	require.NoError(t, NewAggregator(Config{WindowSeconds: 3600, BatchSize: 2}, sink, nil).Run(context.Background(), path))

	require.Len(t, sink.rows, 4)
	assert.Equal(t, 2, sink.calls)
	for i, row := range sink.rows {
		assert.Equal(t, uint64(1), row.WithdrawCount)
		assert.Equal(t, []string{"1", "2", "3", "4"}[i], row.LPBurned)
	}
}

func TestAggregatorRejectsBadConfig(t *testing.T) {
	err := NewAggregator(Config{WindowSeconds: 3600}, nil, nil).Run(context.Background(), "unused")
	require.ErrorContains(t, err, "sink")

	err = NewAggregator(Config{}, &memorySink{}, nil).Run(context.Background(), "unused")
	require.ErrorContains(t, err, "window")

	err = NewAggregator(Config{WindowSeconds: 60}, &memorySink{}, nil).Run(context.Background(), filepath.Join(t.TempDir(), "missing.jsonl"))
	require.ErrorContains(t, err, "open input")
}

func TestReceiptTimestamp(t *testing.T) {
	ts, err := receiptTimestamp(model.Receipt{Timestamp: "2024-03-01T12:00:00.123456Z"})
	require.NoError(t, err)
	assert.Equal(t, uint64(hour("12:00:00").Unix()), ts)
	assert.Equal(t, uint64(hour("12:00:00").Unix()), windowStart(ts+59, 60))

	_, err = receiptTimestamp(model.Receipt{Operation: model.OpSwap, Seed: 4})
	require.ErrorContains(t, err, "no timestamp")

	_, err = receiptTimestamp(model.Receipt{Timestamp: "yesterday"})
	require.Error(t, err)
}
