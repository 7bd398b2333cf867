package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cpamm/internal/model"
)

// JsonlJournal appends receipts to a JSONL file. A batch is encoded up front
// and lands in one write, so a failed encode leaves the file untouched.
type JsonlJournal struct {
	path  string
	fsync bool
	mu    sync.Mutex
}

func NewJsonlJournal(path string) *JsonlJournal {
	return &JsonlJournal{path: path}
}

// WithSync makes every batch fsync before PutReceipts returns.
func (j *JsonlJournal) WithSync() *JsonlJournal {
	j.fsync = true
	return j
}

// Path returns the journal file location.
func (j *JsonlJournal) Path() string {
	return j.path
}

// PutReceipts appends a batch of receipts as JSON lines.
func (j *JsonlJournal) PutReceipts(receipts []model.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range receipts {
		if receipts[i].Operation == "" {
			return fmt.Errorf("receipt %d of pool %d has no operation", i, receipts[i].Seed)
		}
		if err := enc.Encode(&receipts[i]); err != nil {
			return fmt.Errorf("encode receipt: %w", err)
		}
	}

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal file: %w", err)
	}

	if _, err := file.Write(buf.Bytes()); err != nil {
		file.Close()
		return fmt.Errorf("append receipts: %w", err)
	}
	if j.fsync {
		if err := file.Sync(); err != nil {
			file.Close()
			return fmt.Errorf("sync journal: %w", err)
		}
	}
	return file.Close()
}

// ReadReceipts loads every receipt from a JSONL journal.
func ReadReceipts(path string) ([]model.Receipt, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal file: %w", err)
	}
	defer file.Close()

	var receipts []model.Receipt
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var receipt model.Receipt
		if err := json.Unmarshal(line, &receipt); err != nil {
			return nil, fmt.Errorf("parse receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return receipts, nil
}
