package model

import "time"

// WindowStats summarizes the committed operations of one pool over one time
// window. Amounts are decimal strings of token base units because window sums
// can exceed uint64.
type WindowStats struct {
	Seed           uint64    `json:"seed"`
	Pool           string    `json:"pool"`
	WindowSizeSecs int64     `json:"window_size_seconds"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	DepositCount   uint64    `json:"deposit_count"`
	WithdrawCount  uint64    `json:"withdraw_count"`
	VolumeX        string    `json:"volume_x"`
	VolumeY        string    `json:"volume_y"`
	FeeX           string    `json:"fee_x"`
	FeeY           string    `json:"fee_y"`
	LPMinted       string    `json:"lp_minted"`
	LPBurned       string    `json:"lp_burned"`
	Locked         bool      `json:"locked_at_close"`
}
