package app

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aztec-cli/internal/config"
	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/wallet"
)

func (s *runtimeState) newConfigCommand() *cobra.Command {
	root := &cobra.Command{Use: "config", Short: "Inspect and edit CLI configuration"}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), configView(s.settings), nil, cacheMetaBypass(), nil)
		},
	}

	setWalletCmd := &cobra.Command{
		Use:   "set-wallet <local|walletconnect|key>",
		Short: "Persist the default wallet transport",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := wallet.ParseKind(args[0])
			if err != nil {
				return err
			}
			if err := config.SetWallet(s.settings.ConfigPath, kind); err != nil {
				return clierr.Wrap(clierr.CodeInternal, "write config", err)
			}
			s.settings.Wallet = kind
			s.logger.Info("default wallet updated", "wallet", kind, "config", s.settings.ConfigPath)
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), configView(s.settings), nil, cacheMetaBypass(), nil)
		},
	}

	root.AddCommand(showCmd)
	root.AddCommand(setWalletCmd)
	return root
}

// configView reports which signing defaults are configured, never their values.
func configView(settings config.Settings) model.ConfigView {
	view := model.ConfigView{
		ConfigPath:      settings.ConfigPath,
		Wallet:          settings.Wallet,
		WalletRPCURL:    settings.WalletRPCURL,
		RelayURL:        settings.RelayURL,
		ProjectIDSet:    strings.TrimSpace(settings.ProjectID) != "",
		EthRPCURL:       settings.EthRPCURL,
		SDKURL:          settings.SDKURL,
		OutputMode:      settings.OutputMode,
		Timeout:         settings.Timeout.String(),
		Retries:         settings.Retries,
		LogLevel:        strings.ToLower(settings.LogLevel.String()),
		CacheEnabled:    settings.CacheEnabled,
		CachePath:       settings.CachePath,
		ActionStorePath: settings.ActionStorePath,
	}
	signing := settings.Signing
	if signing.AccountKey != "" {
		view.SigningDefaults = append(view.SigningDefaults, "account_key")
	}
	if signing.CustomAccountMessage != "" {
		view.SigningDefaults = append(view.SigningDefaults, "custom_account_message")
	}
	if signing.UseAccountKeySigner {
		view.SigningDefaults = append(view.SigningDefaults, "use_account_key_signer")
	}
	if signing.SigningKey != "" {
		view.SigningDefaults = append(view.SigningDefaults, "signing_key")
	}
	if signing.CustomSignerMessage != "" {
		view.SigningDefaults = append(view.SigningDefaults, "custom_signer_message")
	}
	return view
}
