package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/identity"
	"github.com/ggonzalez94/aztec-cli/internal/recipient"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/settlement"
)

func (s *runtimeState) newTransferCommand() *cobra.Command {
	var (
		signing             signingFlags
		assetSymbol         string
		speedArg            string
		recipientArg        string
		spendingKeyRequired bool
	)
	cmd := &cobra.Command{
		Use:   "transfer <amount>",
		Short: "Send funds to another rollup account",
		Example: `  aztec transfer 0.01 --recipient bob
  aztec transfer 5 --asset dai --recipient 0x1b3f...e2 --spending-key-required`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(recipientArg) == "" {
				return clierr.New(clierr.CodeUsage, "--recipient is required")
			}
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			amount, err := parseValue(args[0], asset, false)
			if err != nil {
				return err
			}
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindPayment)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			to, err := ss.recipients.Resolve(ctx, recipientArg, account.PublicKey())
			if err != nil {
				return err
			}
			kp, err := ss.resolveSigner(ctx, sources.signer, account)
			if err != nil {
				return err
			}
			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetTransferFees(ctx, asset.ID)
			})
			if err != nil {
				return err
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateTransferController(ctx, rollup.TransferParams{
				Account:                      account.PublicKey(),
				Signer:                       *kp,
				Value:                        value,
				Fee:                          fee,
				Recipient:                    to,
				RecipientSpendingKeyRequired: spendingKeyRequired,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create transfer controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation:   "transfer",
				account:     account.PublicKey(),
				signer:      &kp.PublicKey,
				recipient:   to.String(),
				speed:       speed,
				value:       &value,
				fee:         fee,
				spendingReq: &spendingKeyRequired,
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVarP(&recipientArg, "recipient", "r", "", "Recipient alias or public key")
	cmd.Flags().BoolVar(&spendingKeyRequired, "spending-key-required", false, "Require the recipient to spend with a registered spending key")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func (s *runtimeState) newWithdrawCommand() *cobra.Command {
	var (
		signing      signingFlags
		assetSymbol  string
		speedArg     string
		recipientArg string
	)
	cmd := &cobra.Command{
		Use:   "withdraw <amount>",
		Short: "Withdraw funds from the rollup to an Ethereum address",
		Example: `  aztec withdraw 0.1 --recipient 0xc1912fEE45d61C87Cc5EA59DaE31190FFFFf232d`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := recipient.ParseEthereumAddress(recipientArg)
			if err != nil {
				return err
			}
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			amount, err := parseValue(args[0], asset, false)
			if err != nil {
				return err
			}
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindPayment)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			kp, err := ss.resolveSigner(ctx, sources.signer, account)
			if err != nil {
				return err
			}
			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetWithdrawFees(ctx, asset.ID, to)
			})
			if err != nil {
				return err
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateWithdrawController(ctx, rollup.WithdrawParams{
				Account:   account.PublicKey(),
				Signer:    *kp,
				Value:     value,
				Fee:       fee,
				Recipient: to,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create withdraw controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation: "withdraw",
				account:   account.PublicKey(),
				signer:    &kp.PublicKey,
				recipient: to.Hex(),
				speed:     speed,
				value:     &value,
				fee:       fee,
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVarP(&recipientArg, "recipient", "r", "", "Ethereum address receiving the funds")
	_ = cmd.MarkFlagRequired("recipient")
	return cmd
}

func (s *runtimeState) newDefiBridgeCommand() *cobra.Command {
	var (
		signing     signingFlags
		assetSymbol string
		speedArg    string
		bridgeName  string
	)
	cmd := &cobra.Command{
		Use:   "defi-bridge <amount>",
		Short: "Send funds through a DeFi bridge",
		Example: `  aztec defi-bridge 0.01
  aztec defi-bridge 0.5 --bridge lido-eth-wsteth -t next`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := registry.BridgePresetByName(bridgeName)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid --bridge", err)
			}
			input, ok := registry.AssetByID(preset.CallData.InputAssetIDA)
			if !ok {
				return clierr.New(clierr.CodeInternal, fmt.Sprintf("bridge %s has unknown input asset %d", preset.Name, preset.CallData.InputAssetIDA))
			}
			asset := input
			if cmd.Flags().Changed("asset") {
				asset, err = lookupAsset(assetSymbol)
				if err != nil {
					return err
				}
				if asset.ID != input.ID {
					return clierr.New(clierr.CodeUsage, fmt.Sprintf("bridge %s takes %s, not %s", preset.Name, input.Symbol, asset.Symbol))
				}
			}
			amount, err := parseValue(args[0], asset, false)
			if err != nil {
				return err
			}
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindDefi)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			kp, err := ss.resolveSigner(ctx, sources.signer, account)
			if err != nil {
				return err
			}
			fee, err := quoteFee(settlement.KindDefi, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetDefiFees(ctx, preset.CallData)
			})
			if err != nil {
				return err
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateDefiController(ctx, rollup.DefiParams{
				Account: account.PublicKey(),
				Signer:  *kp,
				Bridge:  preset.CallData,
				Value:   value,
				Fee:     fee,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create defi controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation: "defi-bridge",
				account:   account.PublicKey(),
				signer:    &kp.PublicKey,
				speed:     speed,
				value:     &value,
				fee:       fee,
				metadata: map[string]any{
					"bridge":            preset.Name,
					"bridge_address_id": preset.CallData.BridgeAddressID,
				},
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindDefi)
	cmd.Flags().StringVar(&bridgeName, "bridge", "donation", fmt.Sprintf("Bridge preset (%s)", strings.Join(registry.BridgePresetNames(), "|")))
	return cmd
}

func (s *runtimeState) newAddSpendingKeyCommand() *cobra.Command {
	var (
		signing     signingFlags
		speedArg    string
		newSigning1 string
		newSigning2 string
	)
	cmd := &cobra.Command{
		Use:   "add-spending-key <1|2> [message1] [message2]",
		Short: "Register one or two more spending keys with the account",
		Long: `Register one or two more spending keys with the account.

New keys come from --new-signing-key1/--new-signing-key2 first, then from wallet
signatures over the positional messages.`,
		Example: `  aztec add-spending-key 1 'phone key message'
  aztec add-spending-key 2 --new-signing-key1 0x0c5e... 'laptop key message'`,
		Args:        cobra.RangeArgs(1, 3),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil || (count != 1 && count != 2) {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("number of spending keys must be 1 or 2, got %q", args[0]))
			}
			candidates, err := spendingKeyCandidates(newSigning1, newSigning2, args[1:])
			if err != nil {
				return err
			}
			if len(candidates) < count {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("%d spending key(s) requested but only %d key or message given", count, len(candidates)))
			}
			candidates = candidates[:count]
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindPayment)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			kp, err := ss.resolveSigner(ctx, sources.signer, account)
			if err != nil {
				return err
			}

			keys := make([]rollup.PublicKey, 0, len(candidates))
			for _, candidate := range candidates {
				derived, err := ss.accounts.Resolve(ctx, candidate)
				if err != nil {
					return err
				}
				derived.Zero()
				keys = append(keys, derived.PublicKey)
			}

			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetAddSpendingKeyFees(ctx, rollup.NativeAssetID)
			})
			if err != nil {
				return err
			}
			params := rollup.AddSpendingKeyParams{
				Account:      account.PublicKey(),
				Signer:       *kp,
				SpendingKey1: keys[0],
				Fee:          fee,
			}
			if len(keys) == 2 {
				params.SpendingKey2 = &keys[1]
			}
			ctrl, err := ss.sdk.CreateAddSpendingKeyController(ctx, params)
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create add spending key controller", err)
			}

			added := make([]string, 0, len(keys))
			for _, k := range keys {
				added = append(added, k.String())
			}
			return s.submit(ctx, cmd, ss, txRequest{
				operation: "add-spending-key",
				account:   account.PublicKey(),
				signer:    &kp.PublicKey,
				speed:     speed,
				fee:       fee,
				metadata:  map[string]any{"spending_keys": added},
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVar(&newSigning1, "new-signing-key1", "", "First new spending private key (hex)")
	cmd.Flags().StringVar(&newSigning2, "new-signing-key2", "", "Second new spending private key (hex)")
	return cmd
}

// spendingKeyCandidates orders the new key sources: explicit keys, then messages.
func spendingKeyCandidates(key1, key2 string, messages []string) ([]identity.KeySource, error) {
	out := make([]identity.KeySource, 0, 4)
	for i, key := range []string{key1, key2} {
		if strings.TrimSpace(key) == "" {
			continue
		}
		src, err := identity.ParseKeySource(key, "")
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid --new-signing-key%d", i+1), err)
		}
		out = append(out, src)
	}
	for _, msg := range messages {
		if msg == "" {
			continue
		}
		out = append(out, identity.CustomMessage{Message: msg})
	}
	return out, nil
}

func (s *runtimeState) newStageRecoveryKeyCommand() *cobra.Command {
	var (
		signing  signingFlags
		speedArg string
		alias    string
	)
	cmd := &cobra.Command{
		Use:   "stage-recovery-key <ttp-pub-key>",
		Short: "Add a recovery key for a trusted third party and print its recovery payload",
		Long: `Add a recovery key for a trusted third party and print its recovery payload.

Save the returned recovery_payload. It cannot be regenerated, and it must be submitted
with add-recovery-key before the trusted third party can recover the account.`,
		Example: `  aztec stage-recovery-key 0x1457...cb03 --alias alice`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				return clierr.New(clierr.CodeUsage, "--alias is required")
			}
			ttp, err := rollup.ParsePublicKey(args[0])
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "invalid trusted third party public key", err)
			}
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindPayment)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, true)
			if err != nil {
				return err
			}
			defer ss.Close()

			registered, err := ss.sdk.IsAliasRegistered(ctx, alias)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "check alias", err)
			}
			if !registered {
				return clierr.New(clierr.CodeLookup, fmt.Sprintf("alias %q is not registered", alias))
			}

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			owner, ok, err := ss.sdk.GetAccountPublicKey(ctx, alias)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "fetch alias account", err)
			}
			if !ok || owner != account.PublicKey() {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("alias %q does not belong to account %s", alias, account.PublicKey()))
			}
			kp, err := ss.resolveSigner(ctx, sources.signer, account)
			if err != nil {
				return err
			}

			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetAddSpendingKeyFees(ctx, rollup.NativeAssetID)
			})
			if err != nil {
				return err
			}
			data, err := ss.sdk.GenerateAccountRecoveryData(ctx, account.PublicKey(), alias, []rollup.PublicKey{ttp})
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "generate recovery data", err)
			}
			if len(data) == 0 {
				return clierr.New(clierr.CodeUnavailable, "rollup returned no recovery data")
			}
			recovery := data[0]
			// The payload cannot be regenerated, so it goes out before anything can fail.
			fmt.Fprintf(s.runner.stderr, "Recovery payload (save it, it cannot be regenerated):\n%s\n", recovery.RecoveryPayload)
			ss.logger.Warn("save the recovery payload, it cannot be regenerated", "trusted_third_party", ttp.String())

			ctrl, err := ss.sdk.CreateAddSpendingKeyController(ctx, rollup.AddSpendingKeyParams{
				Account:      account.PublicKey(),
				Signer:       *kp,
				SpendingKey1: recovery.RecoveryPublicKey,
				Fee:          fee,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create add spending key controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation: "stage-recovery-key",
				account:   account.PublicKey(),
				signer:    &kp.PublicKey,
				speed:     speed,
				fee:       fee,
				recovery:  recovery.RecoveryPayload,
				metadata: map[string]any{
					"alias":               alias,
					"recovery_public_key": recovery.RecoveryPublicKey.String(),
					"recovery_payload":    recovery.RecoveryPayload,
				},
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVar(&alias, "alias", "", "Registered alias of the account")
	_ = cmd.MarkFlagRequired("alias")
	return cmd
}
