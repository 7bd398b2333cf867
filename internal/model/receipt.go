package model

// Operation names used in receipts, logs and metric labels.
const (
	OpInitialize      = "initialize"
	OpDeposit         = "deposit"
	OpWithdraw        = "withdraw"
	OpSwap            = "swap"
	OpLock            = "lock"
	OpUnlock          = "unlock"
	OpUpdateAuthority = "update_authority"
)

// Receipt records one committed pool operation.
type Receipt struct {
	Operation  string `json:"operation"`
	Seed       uint64 `json:"seed"`
	Pool       string `json:"pool"`
	Caller     string `json:"caller"`
	Direction  string `json:"direction,omitempty"`
	AmountInX  uint64 `json:"amount_in_x,omitempty"`
	AmountInY  uint64 `json:"amount_in_y,omitempty"`
	AmountOutX uint64 `json:"amount_out_x,omitempty"`
	AmountOutY uint64 `json:"amount_out_y,omitempty"`
	LPMinted   uint64 `json:"lp_minted,omitempty"`
	LPBurned   uint64 `json:"lp_burned,omitempty"`
	Fee        uint64 `json:"fee_amount,omitempty"`
	Authority  string `json:"authority,omitempty"`
	Timestamp  string `json:"ts"`
}
