package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_mints (
	asset      TEXT PRIMARY KEY,
	decimals   SMALLINT NOT NULL,
	supply     NUMERIC(20,0) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS ledger_balances (
	owner      TEXT NOT NULL,
	asset      TEXT NOT NULL REFERENCES ledger_mints (asset),
	amount     NUMERIC(20,0) NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (owner, asset)
);
CREATE TABLE IF NOT EXISTS pool_configs (
	seed       NUMERIC(20,0) PRIMARY KEY,
	config     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS pool_window_stats (
	seed                NUMERIC(20,0) NOT NULL,
	pool_address        TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	volume_x            NUMERIC NOT NULL,
	volume_y            NUMERIC NOT NULL,
	fee_x               NUMERIC NOT NULL,
	fee_y               NUMERIC NOT NULL,
	lp_minted           NUMERIC NOT NULL,
	lp_burned           NUMERIC NOT NULL,
	locked_at_close     BOOLEAN NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (seed, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS aggregate_state (
	name              TEXT PRIMARY KEY,
	last_processed_ts BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store is a ledger.Ledger on Postgres. Each commit runs in one serializable
// transaction; a serialization failure surfaces as ledger.ErrStaleState.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the ledger and aggregate tables when they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, owner, asset common.Address) (uint64, error) {
	return scanAmount(s.pool.QueryRow(ctx,
		`SELECT amount::text FROM ledger_balances WHERE owner=$1 AND asset=$2`,
		owner.Hex(), asset.Hex()))
}

func (s *Store) Supply(ctx context.Context, asset common.Address) (uint64, error) {
	return scanAmount(s.pool.QueryRow(ctx,
		`SELECT supply::text FROM ledger_mints WHERE asset=$1`, asset.Hex()))
}

func (s *Store) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	var decimals int16
	row := s.pool.QueryRow(ctx, `SELECT decimals FROM ledger_mints WHERE asset=$1`, asset.Hex())
	if err := row.Scan(&decimals); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ledger.ErrUnknownMint, asset.Hex())
		}
		return 0, err
	}
	return uint8(decimals), nil
}

func (s *Store) PoolConfig(ctx context.Context, seed uint64) (model.PoolConfig, bool, error) {
	return scanConfig(seed, s.pool.QueryRow(ctx,
		`SELECT config FROM pool_configs WHERE seed=$1::text::numeric`, formatAmount(seed)))
}

// scanConfig decodes a JSONB config row; a missing row reports false.
func scanConfig(seed uint64, row pgx.Row) (model.PoolConfig, bool, error) {
	var raw []byte
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.PoolConfig{}, false, nil
		}
		return model.PoolConfig{}, false, err
	}
	var cfg model.PoolConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return model.PoolConfig{}, false, fmt.Errorf("decode pool config %d: %w", seed, err)
	}
	if err := cfg.Validate(); err != nil {
		return model.PoolConfig{}, false, fmt.Errorf("pool config %d: %w", seed, err)
	}
	return cfg, true, nil
}

func (s *Store) Commit(ctx context.Context, cs ledger.Changeset) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
		staged, err := ledger.Stage(txView{ctx: ctx, tx: tx}, cs)
		if err != nil {
			return err
		}
		return writeStaged(ctx, tx, staged, cs.Config)
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "40001" {
		return fmt.Errorf("%w: %s", ledger.ErrStaleState, pgErr.Message)
	}
	return err
}

func writeStaged(ctx context.Context, tx pgx.Tx, staged *ledger.Staged, cfg *model.PoolConfig) error {
	batch := &pgx.Batch{}
	for asset, decimals := range staged.NewMints {
		batch.Queue(`
			INSERT INTO ledger_mints (asset, decimals, supply, created_at, updated_at)
			VALUES ($1, $2, 0, now(), now())
		`, asset.Hex(), int16(decimals))
	}
	for asset, supply := range staged.Supplies {
		batch.Queue(`
			UPDATE ledger_mints SET supply = $2::text::numeric, updated_at = now() WHERE asset = $1
		`, asset.Hex(), formatAmount(supply))
	}
	for key, amount := range staged.Balances {
		if amount == 0 {
			batch.Queue(`DELETE FROM ledger_balances WHERE owner=$1 AND asset=$2`, key.Owner.Hex(), key.Asset.Hex())
			continue
		}
		batch.Queue(`
			INSERT INTO ledger_balances (owner, asset, amount, updated_at)
			VALUES ($1, $2, $3::text::numeric, now())
			ON CONFLICT (owner, asset)
			DO UPDATE SET amount = EXCLUDED.amount, updated_at = now()
		`, key.Owner.Hex(), key.Asset.Hex(), formatAmount(amount))
	}
	if cfg != nil {
		raw, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode pool config: %w", err)
		}
		batch.Queue(`
			INSERT INTO pool_configs (seed, config, created_at, updated_at)
			VALUES ($1::text::numeric, $2, now(), now())
			ON CONFLICT (seed)
			DO UPDATE SET config = EXCLUDED.config, updated_at = now()
		`, formatAmount(cfg.Seed), raw)
	}
	if batch.Len() == 0 {
		return nil
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return br.Close()
}

// UpsertWindowStats inserts or updates per-pool window stats.
func (s *Store) UpsertWindowStats(ctx context.Context, stats []model.WindowStats) error {
	if len(stats) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range stats {
		batch.Queue(`
			INSERT INTO pool_window_stats (
				seed, pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume_x, volume_y, fee_x, fee_y,
				lp_minted, lp_burned, locked_at_close, created_at, updated_at
			) VALUES ($1::text::numeric,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10::numeric,$11::numeric,$12::numeric,
				$13::numeric,$14::numeric,$15,now(),now())
			ON CONFLICT (seed, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				lp_minted = EXCLUDED.lp_minted,
				lp_burned = EXCLUDED.lp_burned,
				locked_at_close = EXCLUDED.locked_at_close,
				updated_at = now()
		`,
			formatAmount(m.Seed),
			m.Pool,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.LPMinted,
			m.LPBurned,
			m.Locked,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(stats); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return br.Close()
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregate_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregate_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

// txView reads inside the commit transaction and locks the rows it touches.
type txView struct {
	ctx context.Context
	tx  pgx.Tx
}

func (v txView) Balance(owner, asset common.Address) (uint64, error) {
	return scanAmount(v.tx.QueryRow(v.ctx,
		`SELECT amount::text FROM ledger_balances WHERE owner=$1 AND asset=$2 FOR UPDATE`,
		owner.Hex(), asset.Hex()))
}

func (v txView) Supply(asset common.Address) (uint64, error) {
	return scanAmount(v.tx.QueryRow(v.ctx,
		`SELECT supply::text FROM ledger_mints WHERE asset=$1 FOR UPDATE`, asset.Hex()))
}

func (v txView) MintExists(asset common.Address) (bool, error) {
	var exists bool
	err := v.tx.QueryRow(v.ctx, `SELECT EXISTS (SELECT 1 FROM ledger_mints WHERE asset=$1)`, asset.Hex()).Scan(&exists)
	return exists, err
}

func (v txView) Config(seed uint64) (model.PoolConfig, bool, error) {
	return scanConfig(seed, v.tx.QueryRow(v.ctx,
		`SELECT config FROM pool_configs WHERE seed=$1::text::numeric FOR UPDATE`, formatAmount(seed)))
}

// scanAmount reads a NUMERIC rendered as text; a missing row is zero.
func scanAmount(row pgx.Row) (uint64, error) {
	var text string
	if err := row.Scan(&text); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	amount, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, err)
	}
	return amount, nil
}

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}
