package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"bridge/agent/internal/utils/eth"
)

// Receipt is a transaction receipt with its status already normalized.
type Receipt struct {
	TxHash      string
	Success     bool
	BlockNumber uint64
	GasUsed     uint64
	Raw         json.RawMessage
}

type receiptFields struct {
	TransactionHash string          `json:"transactionHash"`
	Status          json.RawMessage `json:"status"`
	BlockNumber     json.RawMessage `json:"blockNumber"`
	GasUsed         json.RawMessage `json:"gasUsed"`
}

func DecodeReceipt(raw json.RawMessage) (*Receipt, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var f receiptFields
	if err := json.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}
	if len(f.Status) == 0 {
		return nil, fmt.Errorf("receipt %s has no status", f.TransactionHash)
	}
	ok, err := eth.ParseStatus(f.Status)
	if err != nil {
		return nil, err
	}
	r := &Receipt{
		TxHash:  f.TransactionHash,
		Success: ok,
		Raw:     append(json.RawMessage(nil), trimmed...),
	}
	if len(f.BlockNumber) > 0 {
		if n, err := eth.ParseQuantityJSON(f.BlockNumber); err == nil {
			r.BlockNumber = n.Uint64()
		}
	}
	if len(f.GasUsed) > 0 {
		if n, err := eth.ParseQuantityJSON(f.GasUsed); err == nil {
			r.GasUsed = n.Uint64()
		}
	}
	return r, nil
}
