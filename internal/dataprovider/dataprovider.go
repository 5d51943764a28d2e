// Package dataprovider reads the bridge and asset listings published by the rollup's
// on-chain DataProvider contract.
package dataprovider

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
)

var dataProviderABI = mustABI(registry.DataProviderABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

type Bridge struct {
	Label     string         `json:"label"`
	Address   common.Address `json:"address"`
	AddressID uint64         `json:"address_id"`
}

type Asset struct {
	Label   string         `json:"label"`
	Address common.Address `json:"address"`
	AssetID uint64         `json:"asset_id"`
}

// Field names follow the ABI component names so abi.ConvertType can fill them.
type bridgeEntry struct {
	BridgeAddress   common.Address
	BridgeAddressId *big.Int
	Label           string
}

type assetEntry struct {
	AssetAddress common.Address
	AssetId      *big.Int
	Label        string
}

type Reader struct {
	caller  ethereum.ContractCaller
	address common.Address
}

func New(caller ethereum.ContractCaller, address common.Address) *Reader {
	return &Reader{caller: caller, address: address}
}

// Dial connects to the Ethereum RPC and returns a reader for network's DataProvider.
func Dial(ctx context.Context, rpcURL string, network registry.Network) (*Reader, *ethclient.Client, error) {
	if network.DataProvider == (common.Address{}) {
		return nil, nil, clierr.New(clierr.CodeUnsupported, "no data provider contract is deployed on "+network.Name)
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeUnavailable, "connect ethereum rpc", err)
	}
	return New(client, network.DataProvider), client, nil
}

func (r *Reader) call(ctx context.Context, method string) ([]any, error) {
	data, err := dataProviderABI.Pack(method)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeInternal, "pack "+method+" calldata", err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "call data provider "+method, err)
	}
	decoded, err := dataProviderABI.Unpack(method, out)
	if err != nil || len(decoded) == 0 {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "decode data provider "+method, err)
	}
	return decoded, nil
}

// Bridges lists the registered bridges ordered by address id.
func (r *Reader) Bridges(ctx context.Context) ([]Bridge, error) {
	decoded, err := r.call(ctx, "getBridges")
	if err != nil {
		return nil, err
	}
	entries := *abi.ConvertType(decoded[0], new([]bridgeEntry)).(*[]bridgeEntry)
	out := make([]Bridge, 0, len(entries))
	for _, e := range entries {
		if e.BridgeAddress == (common.Address{}) {
			continue
		}
		out = append(out, Bridge{Label: e.Label, Address: e.BridgeAddress, AddressID: e.BridgeAddressId.Uint64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddressID < out[j].AddressID })
	return out, nil
}

// Assets lists the registered assets ordered by asset id.
func (r *Reader) Assets(ctx context.Context) ([]Asset, error) {
	decoded, err := r.call(ctx, "getAssets")
	if err != nil {
		return nil, err
	}
	entries := *abi.ConvertType(decoded[0], new([]assetEntry)).(*[]assetEntry)
	out := make([]Asset, 0, len(entries))
	for _, e := range entries {
		out = append(out, Asset{Label: e.Label, Address: e.AssetAddress, AssetID: e.AssetId.Uint64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetID < out[j].AssetID })
	return out, nil
}
