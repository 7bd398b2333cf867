package storage

import (
	"path/filepath"
	"reflect"
	"testing"

	"cpamm/internal/model"
)

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	journal := NewJsonlJournal(path)

	first := []model.Receipt{{Operation: model.OpInitialize, Seed: 1, LPMinted: 600, Timestamp: "2024-01-01T00:00:00Z"}}
	second := []model.Receipt{
		{Operation: model.OpSwap, Seed: 1, Direction: "x_to_y", AmountInX: 1000, AmountOutY: 499, Fee: 3, Timestamp: "2024-01-01T00:00:01Z"},
		{Operation: model.OpLock, Seed: 1, Timestamp: "2024-01-01T00:00:02Z"},
	}

	if err := journal.PutReceipts(first); err != nil {
		t.Fatalf("put first batch: %v", err)
	}
	if err := journal.PutReceipts(nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	if err := journal.PutReceipts(second); err != nil {
		t.Fatalf("put second batch: %v", err)
	}

	got, err := ReadReceipts(path)
	if err != nil {
		t.Fatalf("read receipts: %v", err)
	}
	want := append(first, second...)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("receipts mismatch: %+v != %+v", got, want)
	}
}

func TestJsonlJournalRejectsBatchAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := NewJsonlJournal(path).WithSync()
	if journal.Path() != path {
		t.Fatalf("path: got %q", journal.Path())
	}

	ok := model.Receipt{Operation: model.OpDeposit, Seed: 2, LPMinted: 3, Timestamp: "2024-01-01T00:00:00Z"}
	if err := journal.PutReceipts([]model.Receipt{ok}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := journal.PutReceipts([]model.Receipt{ok, {Seed: 2}}); err == nil {
		t.Fatal("expected error for receipt without operation")
	}

	got, err := ReadReceipts(path)
	if err != nil {
		t.Fatalf("read receipts: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("want 1 receipt after rejected batch, got %d", len(got))
	}
}
