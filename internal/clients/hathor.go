package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// HathorNodeClient talks to a Hathor full node's public HTTP API.
type HathorNodeClient struct {
	http *HttpClient
}

func NewHathorNodeClient(nodeURL string) *HathorNodeClient {
	return &HathorNodeClient{http: NewHttpClient(nodeURL)}
}

type AddressInfo struct {
	Valid   bool   `json:"valid"`
	Type    string `json:"type,omitempty"`
	Script  string `json:"script,omitempty"`
	Address string `json:"address,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (c *HathorNodeClient) AddressInfo(ctx context.Context, addr string) (*AddressInfo, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return &AddressInfo{Valid: false, Error: "empty address"}, nil
	}
	body, err := c.http.Get(ctx, "/v1a/validate_address/"+url.PathEscape(addr))
	if err != nil {
		return nil, err
	}
	var info AddressInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decoding validate_address response: %w", err)
	}
	return &info, nil
}

// ValidateAddress reports whether the node accepts addr as a Hathor address.
func (c *HathorNodeClient) ValidateAddress(ctx context.Context, addr string) (bool, error) {
	info, err := c.AddressInfo(ctx, addr)
	if err != nil {
		return false, err
	}
	return info.Valid, nil
}

type NodeVersion struct {
	Version string `json:"version"`
	Network string `json:"network"`
}

func (c *HathorNodeClient) Version(ctx context.Context) (*NodeVersion, error) {
	body, err := c.http.Get(ctx, "/v1a/version")
	if err != nil {
		return nil, err
	}
	var v NodeVersion
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decoding version response: %w", err)
	}
	return &v, nil
}
