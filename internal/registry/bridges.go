package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

type BridgePreset struct {
	Name        string
	Description string
	CallData    rollup.BridgeCallData
}

var bridgePresets = map[string]BridgePreset{
	"donation": {
		Name:        "donation",
		Description: "donate ETH through the donation bridge",
		CallData:    rollup.BridgeCallData{BridgeAddressID: 14, InputAssetIDA: 0, OutputAssetIDA: 0, AuxData: 1},
	},
	"lido-eth-wsteth": {
		Name:        "lido-eth-wsteth",
		Description: "swap ETH for wstETH through Lido",
		CallData:    rollup.BridgeCallData{BridgeAddressID: 5, InputAssetIDA: 0, OutputAssetIDA: 2},
	},
	"lido-wsteth-eth": {
		Name:        "lido-wsteth-eth",
		Description: "swap wstETH for ETH through Lido",
		CallData:    rollup.BridgeCallData{BridgeAddressID: 5, InputAssetIDA: 2, OutputAssetIDA: 0},
	},
}

func BridgePresetByName(name string) (BridgePreset, error) {
	p, ok := bridgePresets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return BridgePreset{}, fmt.Errorf("unknown bridge %q (available: %s)", name, strings.Join(BridgePresetNames(), ", "))
	}
	return p, nil
}

func BridgePresetNames() []string {
	names := make([]string, 0, len(bridgePresets))
	for name := range bridgePresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
