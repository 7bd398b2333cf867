package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// StateStore persists the last processed receipt timestamp per window size.
type StateStore interface {
	Load(ctx context.Context, windowSeconds uint64) (uint64, bool, error)
	Save(ctx context.Context, windowSeconds, ts uint64) error
}

// FileStateStore keeps one checkpoint per window size in a single JSON file,
// so hourly and daily runs can share it.
type FileStateStore struct {
	Path string

	mu sync.Mutex
}

type checkpoint struct {
	LastProcessed uint64 `json:"last_processed_ts"`
	UpdatedAt     string `json:"updated_at"`
}

type stateFile struct {
	Windows map[string]checkpoint `json:"windows"`
}

func (s *FileStateStore) Load(ctx context.Context, windowSeconds uint64) (uint64, bool, error) {
	if s == nil || s.Path == "" {
		return 0, false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return 0, false, err
	}
	cp, ok := state.Windows[strconv.FormatUint(windowSeconds, 10)]
	if !ok {
		return 0, false, nil
	}
	return cp.LastProcessed, true, nil
}

func (s *FileStateStore) Save(ctx context.Context, windowSeconds, ts uint64) error {
	if s == nil || s.Path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read()
	if err != nil {
		return err
	}
	state.Windows[strconv.FormatUint(windowSeconds, 10)] = checkpoint{
		LastProcessed: ts,
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if dir := filepath.Dir(s.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *FileStateStore) read() (stateFile, error) {
	state := stateFile{Windows: make(map[string]checkpoint)}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("parse state %s: %w", s.Path, err)
	}
	if state.Windows == nil {
		state.Windows = make(map[string]checkpoint)
	}
	return state, nil
}
