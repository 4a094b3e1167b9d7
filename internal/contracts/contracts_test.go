package contracts

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestReceiveTokensTo_RoundTrip(t *testing.T) {
	token := common.HexToAddress("0x1111111111111111111111111111111111111111")
	amount, _ := new(big.Int).SetString("100000000000000000000", 10)

	data, err := PackReceiveTokensTo(31, token, "HNDvVm1NuvNVKQa1xrgzWp2x5eoJsQ9wd3", amount)
	if err != nil {
		t.Fatalf("PackReceiveTokensTo error: %v", err)
	}

	call, err := DecodeCall(data)
	if err != nil {
		t.Fatalf("DecodeCall error: %v", err)
	}
	if call.Method != "receiveTokensTo" {
		t.Fatalf("method = %s, want receiveTokensTo", call.Method)
	}
	if call.Args[0].(*big.Int).Int64() != 31 {
		t.Fatalf("chainId = %v, want 31", call.Args[0])
	}
	if call.Args[1].(common.Address) != token {
		t.Fatalf("token = %v, want %v", call.Args[1], token)
	}
	if call.Args[2].(string) != "HNDvVm1NuvNVKQa1xrgzWp2x5eoJsQ9wd3" {
		t.Fatalf("to = %v", call.Args[2])
	}
	if call.Args[3].(*big.Int).Cmp(amount) != 0 {
		t.Fatalf("amount = %v, want %v", call.Args[3], amount)
	}
}

func TestDecimals_PackUnpack(t *testing.T) {
	out, err := PackResult("decimals", uint8(6))
	if err != nil {
		t.Fatalf("PackResult error: %v", err)
	}
	d, err := UnpackDecimals(out)
	if err != nil {
		t.Fatalf("UnpackDecimals error: %v", err)
	}
	if d != 6 {
		t.Fatalf("decimals = %d, want 6", d)
	}
}

func TestDecodeCall_Unknown(t *testing.T) {
	if _, err := DecodeCall([]byte{0xde, 0xad, 0xbe, 0xef}); err == nil {
		t.Fatal("expected error for unknown selector")
	}
	if _, err := DecodeCall([]byte{0x01}); err == nil {
		t.Fatal("expected error for short calldata")
	}
}
