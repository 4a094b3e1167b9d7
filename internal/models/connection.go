package models

type ConnectionState struct {
	Connected  bool   `json:"connected"`
	Address    string `json:"address,omitempty"`
	ChainID    int64  `json:"chainId,omitempty"`
	Connecting bool   `json:"connecting"`
	Error      string `json:"error,omitempty"`
}

// Snapshot is the only state persisted between runs.
type Snapshot struct {
	Connected bool   `json:"connected"`
	Address   string `json:"address"`
	ChainID   int64  `json:"chainId"`
}

func (s ConnectionState) Snapshot() Snapshot {
	return Snapshot{
		Connected: s.Connected,
		Address:   s.Address,
		ChainID:   s.ChainID,
	}
}

// BalanceSnapshot maps token address to human readable balance for one owner.
type BalanceSnapshot struct {
	Owner    string             `json:"owner"`
	Balances map[string]float64 `json:"balances"`
}
