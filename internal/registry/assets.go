package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Asset is a token the rollup accepts.
type Asset struct {
	ID       uint32
	Symbol   string
	Decimals int
	Address  common.Address
}

// Native reports whether the asset is ETH and moves without a token allowance.
func (a Asset) Native() bool {
	return a.Address == (common.Address{})
}

var assets = []Asset{
	{ID: 0, Symbol: "ETH", Decimals: 18},
	{ID: 1, Symbol: "DAI", Decimals: 18, Address: common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")},
	{ID: 2, Symbol: "wstETH", Decimals: 18, Address: common.HexToAddress("0x7f39C581F595B53c5cb19bD0b3f8dA6c935E2Ca0")},
}

func Assets() []Asset {
	out := make([]Asset, len(assets))
	copy(out, assets)
	return out
}

func AssetBySymbol(symbol string) (Asset, error) {
	clean := strings.TrimSpace(symbol)
	for _, a := range assets {
		if strings.EqualFold(a.Symbol, clean) {
			return a, nil
		}
	}
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, strings.ToLower(a.Symbol))
	}
	return Asset{}, fmt.Errorf("unsupported asset %q (supported: %s)", symbol, strings.Join(names, ", "))
}

func AssetByID(id uint32) (Asset, bool) {
	for _, a := range assets {
		if a.ID == id {
			return a, true
		}
	}
	return Asset{}, false
}
