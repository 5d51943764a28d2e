package registry

import (
	"fmt"
	"strings"
)

// Default Ethereum RPC endpoints by chain ID, used when eth_rpc_url is not configured.
var defaultRPCByChainID = map[int64]string{
	ChainMainnet: "https://eth.llamarpc.com",
	ChainDevnet:  "http://localhost:8545",
	ChainTestnet: "https://aztec-connect-testnet-eth-host.aztec.network:8545",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", fmt.Errorf("no default ethereum rpc configured for chain id %d; set eth_rpc_url", chainID)
}
