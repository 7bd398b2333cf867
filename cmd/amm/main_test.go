package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpamm/internal/model"
	"cpamm/internal/storage"
)

const (
	cliMintX = "0x000000000000000000000000000000000000000A"
	cliMintY = "0x000000000000000000000000000000000000000b"
	cliAlice = "0x1111111111111111111111111111111111111111"
	cliBob   = "0x2222222222222222222222222222222222222222"
)

type cliEnv struct {
	dir string
}

func (e cliEnv) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--store", "leveldb",
		"--leveldb-path", filepath.Join(e.dir, "ledger"),
		"--journal", filepath.Join(e.dir, "receipts.jsonl"),
		"--metrics-file", filepath.Join(e.dir, "amm.prom"),
		"--log-level", "error",
	}
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, base...))
	err := root.Execute()
	return out.String(), err
}

func (e cliEnv) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.exec(t, args...)
	require.NoError(t, err, out)
	return out
}

func TestCLIPoolLifecycle(t *testing.T) {
	env := cliEnv{dir: t.TempDir()}

	env.mustExec(t, "ledger", "create-mint", "--mint", cliMintX, "--decimals", "6")
	env.mustExec(t, "ledger", "create-mint", "--mint", cliMintY, "--decimals", "6")
	env.mustExec(t, "ledger", "mint", "--mint", cliMintX, "--to", cliAlice, "--amount", "1000000")
	env.mustExec(t, "ledger", "mint", "--mint", cliMintY, "--to", cliAlice, "--amount", "1000000")
	env.mustExec(t, "ledger", "mint", "--mint", cliMintX, "--to", cliBob, "--amount", "5000")

	out := env.mustExec(t, "init", "--caller", cliAlice, "--seed", "1",
		"--mint-x", cliMintX, "--mint-y", cliMintY,
		"--amount-x", "1000", "--amount-y", "1000", "--fee-bps", "30", "--authority", cliAlice)
	var created struct {
		Config model.PoolConfig     `json:"config"`
		Quote  model.LiquidityQuote `json:"deposit"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &created))
	assert.Equal(t, uint64(1000), created.Quote.LP)

	out = env.mustExec(t, "quote", "swap", "--seed", "1", "--direction", "x_to_y", "--amount-in", "1000")
	var quoted model.SwapQuote
	require.NoError(t, json.Unmarshal([]byte(out), &quoted))
	assert.Equal(t, model.SwapQuote{AmountOut: 499, Fee: 3}, quoted)

	out = env.mustExec(t, "swap", "--caller", cliBob, "--seed", "1", "--direction", "x_to_y",
		"--amount-in", "1000", "--min-out", "499")
	var swapped model.SwapQuote
	require.NoError(t, json.Unmarshal([]byte(out), &swapped))
	assert.Equal(t, quoted, swapped)

	_, err := env.exec(t, "lock", "--caller", cliBob, "--seed", "1")
	require.Error(t, err)

	out = env.mustExec(t, "lock", "--caller", cliAlice, "--seed", "1")
	var state model.PoolState
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	assert.True(t, state.Config.Locked)
	assert.Equal(t, model.Reserves{X: 2000, Y: 501, LPSupply: 1000}, state.Reserves)

	_, err = env.exec(t, "withdraw", "--caller", cliAlice, "--seed", "1", "--lp", "10", "--min-x", "1", "--min-y", "1")
	require.Error(t, err)

	// Each invocation rewrites the metrics file with its own counters.
	prom, err := os.ReadFile(filepath.Join(env.dir, "amm.prom"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(prom), `amm_pool_operations_total{operation="withdraw",status="pool_locked"} 1`), string(prom))

	out = env.mustExec(t, "ledger", "balance", "--owner", cliBob, "--mint", cliMintY)
	assert.Contains(t, out, `"amount": 499`)

	receipts, err := storage.ReadReceipts(filepath.Join(env.dir, "receipts.jsonl"))
	require.NoError(t, err)
	require.Len(t, receipts, 3)
	assert.Equal(t, []string{model.OpInitialize, model.OpSwap, model.OpLock},
		[]string{receipts[0].Operation, receipts[1].Operation, receipts[2].Operation})
}

func TestCLIAggregate(t *testing.T) {
	env := cliEnv{dir: t.TempDir()}
	journal := filepath.Join(env.dir, "history.jsonl")
	require.NoError(t, storage.NewJsonlJournal(journal).PutReceipts([]model.Receipt{
		{Operation: model.OpInitialize, Seed: 7, Pool: cliMintX, LPMinted: 1000, Timestamp: "2024-03-01T12:00:00Z"},
		{Operation: model.OpSwap, Seed: 7, Pool: cliMintX, Direction: "x_to_y", AmountInX: 1000, AmountOutY: 499, Fee: 3, Timestamp: "2024-03-01T12:30:00Z"},
		{Operation: model.OpSwap, Seed: 7, Pool: cliMintX, Direction: "y_to_x", AmountInY: 100, AmountOutX: 180, Fee: 0, Timestamp: "2024-03-01T13:30:00Z"},
	}))

	out := env.mustExec(t, "aggregate", "--in", journal, "--window", "1h",
		"--state-file", filepath.Join(env.dir, "aggregate-state.json"))

	var rows []model.WindowStats
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var row model.WindowStats
		require.NoError(t, dec.Decode(&row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(1), rows[0].SwapCount)
	assert.Equal(t, "3", rows[0].FeeX)
	assert.Equal(t, "180", rows[1].VolumeX)
	assert.Equal(t, "100", rows[1].VolumeY)

	out = env.mustExec(t, "aggregate", "--in", journal, "--window", "1h",
		"--state-file", filepath.Join(env.dir, "aggregate-state.json"))
	assert.Empty(t, strings.TrimSpace(out))

	_, err := env.exec(t, "aggregate", "--in", journal, "--sink", "postgres")
	require.ErrorContains(t, err, "pg-dsn")
}

func TestCLIRejectsBadAddresses(t *testing.T) {
	env := cliEnv{dir: t.TempDir()}

	_, err := env.exec(t, "ledger", "create-mint", "--mint", "0x1234")
	require.Error(t, err)

	_, err = env.exec(t, "swap", "--seed", "1", "--amount-in", "1", "--min-out", "1")
	require.ErrorContains(t, err, "--caller is required")

	_, err = env.exec(t, "set-authority", "--caller", cliAlice, "--seed", "1", "--clear", "--new-authority", cliBob)
	require.ErrorContains(t, err, "exclusive")
}

func TestRedactDSN(t *testing.T) {
	tests := map[string]string{
		"":                                   "",
		"postgres://amm:secret@db:5432/amm":  "postgres://***@db:5432/amm",
		"user:secret@db/amm":                 "***@db/amm",
		"host=db dbname=amm sslmode=disable": "host=db dbname=amm sslmode=disable",
	}
	for in, want := range tests {
		if got := redactDSN(in); got != want {
			t.Fatalf("redactDSN(%q) = %q, want %q", in, got, want)
		}
	}
}
