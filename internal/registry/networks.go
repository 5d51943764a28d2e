package registry

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	ChainMainnet int64 = 1
	ChainDevnet  int64 = 3567
	ChainTestnet int64 = 677868
)

// Network describes the rollup deployment reachable from an Ethereum chain.
type Network struct {
	ChainID        int64
	Name           string
	RollupProvider string
	ExplorerURL    string
	DataProvider   common.Address
}

var networks = map[int64]Network{
	ChainMainnet: {
		ChainID:        ChainMainnet,
		Name:           "mainnet",
		RollupProvider: "https://api.aztec.network/aztec-connect-prod/falafel",
		ExplorerURL:    "https://aztec-connect-prod-explorer.aztec.network/",
	},
	ChainDevnet: {
		ChainID:        ChainDevnet,
		Name:           "devnet",
		RollupProvider: "http://localhost:8081",
	},
	ChainTestnet: {
		ChainID:        ChainTestnet,
		Name:           "testnet",
		RollupProvider: "https://api.aztec.network/aztec-connect-testnet/falafel/",
		ExplorerURL:    "https://aztec-connect-testnet-explorer.aztec.network/",
		DataProvider:   common.HexToAddress("0x525b43be6c67d10c73ca06d790b329820a1967b7"),
	},
}

func NetworkByChainID(chainID int64) (Network, error) {
	n, ok := networks[chainID]
	if !ok {
		return Network{}, fmt.Errorf("unsupported chain id %d (supported: %d, %d, %d)", chainID, ChainMainnet, ChainDevnet, ChainTestnet)
	}
	return n, nil
}

// TxURL links a rollup transaction on the network's explorer. It is empty when the
// network has no explorer.
func (n Network) TxURL(txID string) string {
	if n.ExplorerURL == "" {
		return ""
	}
	base := n.ExplorerURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + "tx/" + strings.TrimPrefix(txID, "0x")
}
