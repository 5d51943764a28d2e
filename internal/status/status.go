// Package status reads the rollup provider's public status endpoint.
package status

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ggonzalez94/aztec-cli/internal/httpx"
)

type Asset struct {
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	GasLimit int64          `json:"gasLimit,omitempty"`
}

type Bridge struct {
	ID       uint32         `json:"id"`
	Address  common.Address `json:"address"`
	GasLimit int64          `json:"gasLimit,omitempty"`
}

type BlockchainStatus struct {
	ChainID               int64          `json:"chainId"`
	RollupContractAddress common.Address `json:"rollupContractAddress"`
	Assets                []Asset        `json:"assets"`
	Bridges               []Bridge       `json:"bridges"`
}

type Status struct {
	BlockchainStatus BlockchainStatus `json:"blockchainStatus"`
}

type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client, rollupProviderURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(rollupProviderURL, "/")}
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var out Status
	if err := c.http.GetJSON(ctx, c.baseURL+"/status", &out); err != nil {
		return Status{}, err
	}
	return out, nil
}

// AssetInfo is one supported asset; its rollup asset id is its position in the status list.
type AssetInfo struct {
	ID       uint32         `json:"id"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Address  common.Address `json:"address"`
	Decimals int            `json:"decimals"`
}

func (s Status) AssetInfos() []AssetInfo {
	out := make([]AssetInfo, 0, len(s.BlockchainStatus.Assets))
	for i, a := range s.BlockchainStatus.Assets {
		out = append(out, AssetInfo{ID: uint32(i), Name: a.Name, Symbol: a.Symbol, Address: a.Address, Decimals: a.Decimals})
	}
	return out
}
