// Package leveldb is a ledger backed by a LevelDB database. Commits are
// serialized by a write lock and land as one batch.
package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	goleveldb "github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"cpamm/internal/ledger"
	"cpamm/internal/model"
)

var (
	balancePrefix  = []byte("b/")
	supplyPrefix   = []byte("s/")
	decimalsPrefix = []byte("m/")
	configPrefix   = []byte("c/")
)

// Store implements ledger.Ledger on LevelDB.
type Store struct {
	db *goleveldb.DB
	mu sync.Mutex
}

// Open creates or opens the database at path.
func Open(path string) (*Store, error) {
	db, err := goleveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a database that lives only in memory.
func OpenMemory() (*Store, error) {
	db, err := goleveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory leveldb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Balance(ctx context.Context, owner, asset common.Address) (uint64, error) {
	return s.getUint64(balanceKey(owner, asset))
}

func (s *Store) Supply(ctx context.Context, asset common.Address) (uint64, error) {
	return s.getUint64(assetKey(supplyPrefix, asset))
}

func (s *Store) Decimals(ctx context.Context, asset common.Address) (uint8, error) {
	raw, err := s.db.Get(assetKey(decimalsPrefix, asset), nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return 0, fmt.Errorf("%w: %s", ledger.ErrUnknownMint, asset.Hex())
	}
	if err != nil {
		return 0, fmt.Errorf("read decimals: %w", err)
	}
	if len(raw) != 1 {
		return 0, fmt.Errorf("decimals of %s: malformed value", asset.Hex())
	}
	return raw[0], nil
}

func (s *Store) PoolConfig(ctx context.Context, seed uint64) (model.PoolConfig, bool, error) {
	raw, err := s.db.Get(configKey(seed), nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return model.PoolConfig{}, false, nil
	}
	if err != nil {
		return model.PoolConfig{}, false, fmt.Errorf("read pool config: %w", err)
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
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged, err := ledger.Stage(view{s}, cs)
	if err != nil {
		return err
	}

	batch := new(goleveldb.Batch)
	for asset, decimals := range staged.NewMints {
		batch.Put(assetKey(decimalsPrefix, asset), []byte{decimals})
	}
	for asset, supply := range staged.Supplies {
		batch.Put(assetKey(supplyPrefix, asset), encodeUint64(supply))
	}
	for key, balance := range staged.Balances {
		if balance == 0 {
			batch.Delete(balanceKey(key.Owner, key.Asset))
			continue
		}
		batch.Put(balanceKey(key.Owner, key.Asset), encodeUint64(balance))
	}
	if cs.Config != nil {
		raw, err := json.Marshal(cs.Config)
		if err != nil {
			return fmt.Errorf("encode pool config: %w", err)
		}
		batch.Put(configKey(cs.Config.Seed), raw)
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (s *Store) getUint64(key []byte) (uint64, error) {
	raw, err := s.db.Get(key, nil)
	if errors.Is(err, goleveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("key %x: malformed amount", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

// view reads the database while the commit lock is held.
type view struct {
	s *Store
}

func (v view) Balance(owner, asset common.Address) (uint64, error) {
	return v.s.getUint64(balanceKey(owner, asset))
}

func (v view) Supply(asset common.Address) (uint64, error) {
	return v.s.getUint64(assetKey(supplyPrefix, asset))
}

func (v view) MintExists(asset common.Address) (bool, error) {
	return v.s.db.Has(assetKey(decimalsPrefix, asset), nil)
}

func (v view) Config(seed uint64) (model.PoolConfig, bool, error) {
	return v.s.PoolConfig(context.Background(), seed)
}

func balanceKey(owner, asset common.Address) []byte {
	key := make([]byte, 0, len(balancePrefix)+2*common.AddressLength)
	key = append(key, balancePrefix...)
	key = append(key, owner.Bytes()...)
	return append(key, asset.Bytes()...)
}

func assetKey(prefix []byte, asset common.Address) []byte {
	key := make([]byte, 0, len(prefix)+common.AddressLength)
	key = append(key, prefix...)
	return append(key, asset.Bytes()...)
}

func configKey(seed uint64) []byte {
	key := make([]byte, len(configPrefix)+8)
	copy(key, configPrefix)
	binary.BigEndian.PutUint64(key[len(configPrefix):], seed)
	return key
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return buf[:]
}
