package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpamm/internal/ledger"
)

type textRow struct {
	text string
	err  error
}

func (r textRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.text
	return nil
}

func TestScanAmount(t *testing.T) {
	amount, err := scanAmount(textRow{text: "18446744073709551615"})
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), amount)

	amount, err = scanAmount(textRow{err: pgx.ErrNoRows})
	require.NoError(t, err)
	assert.Zero(t, amount)

	_, err = scanAmount(textRow{text: "18446744073709551616"})
	require.Error(t, err)

	_, err = scanAmount(textRow{err: fmt.Errorf("conn reset")})
	require.Error(t, err)
}

// Set AMM_TEST_PG_DSN to run against a disposable database.
func TestStoreCommit(t *testing.T) {
	dsn := os.Getenv("AMM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.EnsureSchema(ctx))

	asset := common.BytesToAddress([]byte(fmt.Sprintf("mint-%d", time.Now().UnixNano())))
	owner := common.HexToAddress("0x1111111111111111111111111111111111111111")
	other := common.HexToAddress("0x2222222222222222222222222222222222222222")

	err = s.Commit(ctx, ledger.Changeset{Effects: []ledger.Effect{
		ledger.CreateMint(asset, 6),
		ledger.MintTo(asset, owner, 1_000),
	}})
	require.NoError(t, err)

	err = s.Commit(ctx, ledger.Changeset{Effects: []ledger.Effect{
		ledger.Transfer(asset, owner, other, 400),
		ledger.Transfer(asset, owner, other, 601),
	}})
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	err = s.Commit(ctx, ledger.Changeset{
		Preconditions: []ledger.Precondition{ledger.ExpectSupply(asset, 1_000)},
		Effects:       []ledger.Effect{ledger.Transfer(asset, owner, other, 400)},
	})
	require.NoError(t, err)

	balance, err := s.Balance(ctx, owner, asset)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), balance)
	supply, err := s.Supply(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), supply)
	decimals, err := s.Decimals(ctx, asset)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)
}
