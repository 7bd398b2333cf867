package aggregate

import (
	"fmt"
	"time"

	"cpamm/internal/model"
)

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

// receiptTimestamp returns the unix second a receipt was committed at.
func receiptTimestamp(receipt model.Receipt) (uint64, error) {
	if receipt.Timestamp == "" {
		return 0, fmt.Errorf("receipt %s of pool %d has no timestamp", receipt.Operation, receipt.Seed)
	}
	tm, err := time.Parse(time.RFC3339Nano, receipt.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("parse receipt timestamp: %w", err)
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("receipt timestamp %s before unix epoch", receipt.Timestamp)
	}
	return uint64(tm.Unix()), nil
}
