package storage

import "cpamm/internal/model"

// Journal is a sink for receipts of committed pool operations.
type Journal interface {
	PutReceipts(receipts []model.Receipt) error
}
