package domain

import "time"

// StakeRecord describes a verified on-chain stake or refund. It is derived
// from the chain and carried on transition payloads rather than stored in
// its own table.
type StakeRecord struct {
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Network       string     `json:"network,omitempty"`
	TxHash        string     `json:"txHash"`
	WalletAddress string     `json:"walletAddress"`
	VerifiedAt    *time.Time `json:"verifiedAt,omitempty"`
}

// PayloadFields flattens the record into envelope payload keys.
func (s StakeRecord) PayloadFields() map[string]any {
	out := map[string]any{
		"amount":        s.Amount,
		"currency":      s.Currency,
		"txHash":        s.TxHash,
		"walletAddress": s.WalletAddress,
	}
	if s.Network != "" {
		out["network"] = s.Network
	}
	if s.VerifiedAt != nil {
		out["verifiedAt"] = s.VerifiedAt.UTC().Format(time.RFC3339Nano)
	}
	return out
}
