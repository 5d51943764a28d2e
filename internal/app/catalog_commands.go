package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aztec-cli/internal/cache"
	"github.com/ggonzalez94/aztec-cli/internal/dataprovider"
	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/httpx"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/status"
)

const (
	catalogTTL = 10 * time.Minute

	sourceRollupProvider = "rollup_provider"
	sourceDataProvider   = "data_provider"
	sourcePreset         = "preset"
)

// catalogNetwork resolves the network for listings. --chain-id avoids a wallet round trip.
func (s *runtimeState) catalogNetwork(ctx context.Context) (registry.Network, error) {
	chainID := s.chainIDFlag
	if chainID == 0 {
		w, err := s.runner.openWallet(ctx, s.walletOptions())
		if err != nil {
			return registry.Network{}, err
		}
		chainID = w.ChainID()
		_ = w.Close()
	}
	network, err := s.runner.lookupNetwork(chainID)
	if err != nil {
		return registry.Network{}, clierr.Wrap(clierr.CodeUnsupported, "network", err)
	}
	s.lastChainID = network.ChainID
	return network, nil
}

func (s *runtimeState) newAssetsCommand() *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "List assets supported by the rollup",
		Example: `  aztec assets --chain-id 1
  aztec assets --source data-provider`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source = strings.ToLower(strings.TrimSpace(source))
			if source != "rollup-provider" && source != "data-provider" {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported --source %q (expected rollup-provider|data-provider)", source))
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			network, err := s.catalogNetwork(ctx)
			if err != nil {
				return err
			}
			path := trimRootPath(cmd.CommandPath())
			key := cache.NewKey(network.ChainID, path, map[string]any{"source": source})
			return s.runCachedCommand(path, key, catalogTTL, func(ctx context.Context) (any, []model.ProviderStatus, []string, error) {
				if source == "data-provider" {
					return s.dataProviderAssets(ctx, network)
				}
				return s.rollupProviderAssets(ctx, network)
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "rollup-provider", "Asset listing source (rollup-provider|data-provider)")
	return cmd
}

func (s *runtimeState) rollupProviderAssets(ctx context.Context, network registry.Network) (any, []model.ProviderStatus, []string, error) {
	start := time.Now()
	client := status.New(httpx.New(s.settings.Timeout, s.settings.Retries), network.RollupProvider)
	st, err := client.Status(ctx)
	providers := []model.ProviderStatus{{Name: sourceRollupProvider, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
	if err != nil {
		return nil, providers, nil, err
	}
	infos := st.AssetInfos()
	out := make([]model.AssetInfo, 0, len(infos))
	for _, a := range infos {
		out = append(out, model.AssetInfo{
			AssetID:  a.ID,
			Symbol:   a.Symbol,
			Address:  a.Address.Hex(),
			Decimals: a.Decimals,
			Source:   sourceRollupProvider,
		})
	}
	return out, providers, nil, nil
}

func (s *runtimeState) dataProviderAssets(ctx context.Context, network registry.Network) (any, []model.ProviderStatus, []string, error) {
	start := time.Now()
	reader, closeFn, err := s.dialDataProvider(ctx, network)
	if err != nil {
		return nil, []model.ProviderStatus{{Name: sourceDataProvider, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}, nil, err
	}
	defer closeFn()
	assets, err := reader.Assets(ctx)
	providers := []model.ProviderStatus{{Name: sourceDataProvider, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
	if err != nil {
		return nil, providers, nil, err
	}
	out := make([]model.AssetInfo, 0, len(assets))
	for _, a := range assets {
		info := model.AssetInfo{AssetID: uint32(a.AssetID), Symbol: a.Label, Address: a.Address.Hex(), Source: sourceDataProvider}
		if known, ok := registry.AssetByID(uint32(a.AssetID)); ok {
			info.Decimals = known.Decimals
		}
		out = append(out, info)
	}
	return out, providers, nil, nil
}

func (s *runtimeState) dialDataProvider(ctx context.Context, network registry.Network) (*dataprovider.Reader, func(), error) {
	rpcURL, err := registry.ResolveRPCURL(s.settings.EthRPCURL, network.ChainID)
	if err != nil {
		return nil, nil, clierr.Wrap(clierr.CodeUsage, "resolve ethereum rpc", err)
	}
	reader, client, err := dataprovider.Dial(ctx, rpcURL, network)
	if err != nil {
		return nil, nil, err
	}
	return reader, client.Close, nil
}

func (s *runtimeState) newBridgesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bridges",
		Short: "List DeFi bridges: built-in presets and the on-chain registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
			defer cancel()
			network, err := s.catalogNetwork(ctx)
			if err != nil {
				return err
			}
			path := trimRootPath(cmd.CommandPath())
			key := cache.NewKey(network.ChainID, path, nil)
			return s.runCachedCommand(path, key, catalogTTL, func(ctx context.Context) (any, []model.ProviderStatus, []string, error) {
				return s.listBridges(ctx, network)
			})
		},
	}
	return cmd
}

func (s *runtimeState) listBridges(ctx context.Context, network registry.Network) (any, []model.ProviderStatus, []string, error) {
	out := presetBridges()
	var warnings []string

	start := time.Now()
	reader, closeFn, err := s.dialDataProvider(ctx, network)
	if err == nil {
		defer closeFn()
		var bridges []dataprovider.Bridge
		bridges, err = reader.Bridges(ctx)
		for _, b := range bridges {
			out = append(out, model.BridgeInfo{
				Name:      b.Label,
				AddressID: uint32(b.AddressID),
				Address:   b.Address.Hex(),
				Source:    sourceDataProvider,
			})
		}
	}
	providers := []model.ProviderStatus{{Name: sourceDataProvider, Status: statusFromErr(err), LatencyMS: time.Since(start).Milliseconds()}}
	if err != nil {
		if !clierr.Is(err, clierr.CodeUnsupported) {
			return nil, providers, nil, err
		}
		warnings = append(warnings, fmt.Sprintf("no on-chain bridge registry on %s; listing presets only", network.Name))
	}
	return out, providers, warnings, nil
}

func presetBridges() []model.BridgeInfo {
	names := registry.BridgePresetNames()
	out := make([]model.BridgeInfo, 0, len(names))
	for _, name := range names {
		p, err := registry.BridgePresetByName(name)
		if err != nil {
			continue
		}
		info := model.BridgeInfo{
			Name:        p.Name,
			AddressID:   p.CallData.BridgeAddressID,
			Description: p.Description,
			Source:      sourcePreset,
		}
		if a, ok := registry.AssetByID(p.CallData.InputAssetIDA); ok {
			info.InputAsset = a.Symbol
		}
		if a, ok := registry.AssetByID(p.CallData.OutputAssetIDA); ok {
			info.OutputAsset = a.Symbol
		}
		out = append(out, info)
	}
	return out
}
