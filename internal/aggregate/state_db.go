package aggregate

import (
	"context"
	"fmt"

	"cpamm/internal/storage/postgres"
)

// DBStateStore stores state in the aggregate_state table, one row per window size.
type DBStateStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBStateStore) key(windowSeconds uint64) string {
	name := s.Name
	if name == "" {
		name = "aggregate"
	}
	return fmt.Sprintf("%s:%d", name, windowSeconds)
}

func (s *DBStateStore) Load(ctx context.Context, windowSeconds uint64) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	return s.Store.LoadState(ctx, s.key(windowSeconds))
}

func (s *DBStateStore) Save(ctx context.Context, windowSeconds, ts uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.key(windowSeconds), ts)
}
