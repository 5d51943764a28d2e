package app

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/settlement"
)

func (s *runtimeState) newDepositCommand() *cobra.Command {
	var (
		signing             signingFlags
		assetSymbol         string
		speedArg            string
		recipientArg        string
		spendingKeyRequired bool
	)
	cmd := &cobra.Command{
		Use:   "deposit <amount>",
		Short: "Deposit funds from the wallet into a rollup account",
		Example: `  aztec deposit 0.1
  aztec deposit 100 --asset dai --recipient alice
  aztec deposit 0.5 -t instant --spending-key-required=false`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			// Unset means deposit to the spending account once the recipient is registered.
			toSpending := spendingKeyRequired
			if !cmd.Flags().Changed("spending-key-required") {
				registered, err := ss.sdk.IsAccountRegistered(ctx, to)
				if err != nil {
					return clierr.Wrap(clierr.CodeUnavailable, "check recipient registration", err)
				}
				toSpending = registered
			}
			ss.logger.Info("depositing", "recipient", to.String(), "spending_key_required", toSpending)

			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetDepositFees(ctx, asset.ID)
			})
			if err != nil {
				return err
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateDepositController(ctx, rollup.DepositParams{
				Depositor:                    ss.wallet.Address(),
				Value:                        value,
				Fee:                          fee,
				Recipient:                    to,
				RecipientSpendingKeyRequired: toSpending,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create deposit controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation:   "deposit",
				account:     account.PublicKey(),
				recipient:   to.String(),
				speed:       speed,
				value:       &value,
				fee:         fee,
				funding:     sameAssetRequirement(value, fee, asset.Native()),
				spendingReq: &toSpending,
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVarP(&recipientArg, "recipient", "r", "", "Recipient alias or public key (default: own account)")
	cmd.Flags().BoolVar(&spendingKeyRequired, "spending-key-required", false, "Deposit to the recipient's spending keys (default: when the recipient is registered)")
	return cmd
}

func (s *runtimeState) newRegisterCommand() *cobra.Command {
	var (
		signing     signingFlags
		assetSymbol string
		speedArg    string
		alias       string
		ttpPubKey   string
		depositor   string
	)
	cmd := &cobra.Command{
		Use:   "register [deposit]",
		Short: "Register an alias and spending key for the account",
		Example: `  aztec register --alias alice
  aztec register 0.1 --alias alice --ttp-pub-key 0x...
  aztec register --alias alice -m 'account message' --custom-signer-message 'signer message'`,
		Args:        cobra.MaximumNArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				return clierr.New(clierr.CodeUsage, "--alias is required")
			}
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			depositArg := "0"
			if len(args) == 1 {
				depositArg = args[0]
			}
			amount, err := parseValue(depositArg, asset, true)
			if err != nil {
				return err
			}
			speed, err := settlement.ParseSpeed(speedArg, settlement.KindPayment)
			if err != nil {
				return err
			}
			var ttp *rollup.PublicKey
			if strings.TrimSpace(ttpPubKey) != "" {
				key, err := rollup.ParsePublicKey(ttpPubKey)
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "invalid --ttp-pub-key", err)
				}
				ttp = &key
			}
			var depositorAddr *common.Address
			if strings.TrimSpace(depositor) != "" {
				if !common.IsHexAddress(strings.TrimSpace(depositor)) {
					return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid --depositor %q", depositor))
				}
				addr := common.HexToAddress(strings.TrimSpace(depositor))
				depositorAddr = &addr
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

			taken, err := ss.sdk.IsAliasRegistered(ctx, alias)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "check alias", err)
			}
			if taken {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("alias %q is already registered", alias))
			}

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			registered, err := ss.sdk.IsAccountRegistered(ctx, account.PublicKey())
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "check account registration", err)
			}
			if registered {
				return clierr.New(clierr.CodeUsage, fmt.Sprintf("account %s is already registered", account.PublicKey()))
			}

			var recoveryKey *rollup.PublicKey
			if ttp != nil {
				data, err := ss.sdk.GenerateAccountRecoveryData(ctx, account.PublicKey(), alias, []rollup.PublicKey{*ttp})
				if err != nil {
					return clierr.Wrap(clierr.CodeUnavailable, "generate recovery data", err)
				}
				if len(data) == 0 {
					return clierr.New(clierr.CodeUnavailable, "rollup returned no recovery data")
				}
				recoveryKey = &data[0].RecoveryPublicKey
			} else {
				ss.logger.Info("no recovery key set for this account")
			}

			spending, err := ss.spendingKeyFor(ctx, sources.signer, account)
			if err != nil {
				return err
			}

			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetRegisterFees(ctx, asset.ID)
			})
			if err != nil {
				return err
			}
			payer := ss.wallet.Address()
			if depositorAddr != nil {
				payer = *depositorAddr
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateRegisterController(ctx, rollup.RegisterParams{
				Account:           account.PublicKey(),
				Alias:             alias,
				AccountPrivateKey: account.Keys.PrivateKey,
				SpendingPublicKey: spending.PublicKey,
				RecoveryPublicKey: recoveryKey,
				Deposit:           value,
				Fee:               fee,
				Depositor:         payer,
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create register controller", err)
			}

			metadata := map[string]any{"alias": alias, "depositor": payer.Hex()}
			if recoveryKey != nil {
				metadata["recovery_public_key"] = recoveryKey.String()
			}
			return s.submit(ctx, cmd, ss, txRequest{
				operation: "register",
				account:   account.PublicKey(),
				signer:    &spending.PublicKey,
				speed:     speed,
				value:     &value,
				fee:       fee,
				funding:   sameAssetRequirement(value, fee, asset.Native()),
				metadata:  metadata,
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addSignerFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVar(&alias, "alias", "", "Alias to register")
	cmd.Flags().StringVar(&ttpPubKey, "ttp-pub-key", "", "Trusted third party public key used to generate the recovery key")
	cmd.Flags().StringVar(&depositor, "depositor", "", "Ethereum address paying the deposit and fee (default: wallet address)")
	_ = cmd.MarkFlagRequired("alias")
	return cmd
}

func (s *runtimeState) newAddRecoveryKeyCommand() *cobra.Command {
	var (
		signing         signingFlags
		assetSymbol     string
		speedArg        string
		recoveryPayload string
	)
	cmd := &cobra.Command{
		Use:   "add-recovery-key <amount>",
		Short: "Recover an account by adding a staged recovery key with its payload",
		Example: `  aztec add-recovery-key 0.01 --recovery-payload 0x20e4...`,
		Args:        cobra.ExactArgs(1),
		Annotations: moneyAnnotations(),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := strings.TrimSpace(recoveryPayload)
			if payload == "" {
				return clierr.New(clierr.CodeUsage, "--recovery-payload is required")
			}
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			amount, err := parseValue(args[0], asset, true)
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
			fee, err := quoteFee(settlement.KindPayment, speed, func() ([]rollup.AssetValue, error) {
				return ss.sdk.GetDepositFees(ctx, asset.ID)
			})
			if err != nil {
				return err
			}
			value := rollup.NewAssetValue(asset.ID, amount)
			ctrl, err := ss.sdk.CreateRecoverAccountController(ctx, rollup.RecoverAccountParams{
				RecoveryPayload: payload,
				Deposit:         value,
				Fee:             fee,
				Depositor:       ss.wallet.Address(),
			})
			if err != nil {
				return clierr.Wrap(clierr.CodeSubmission, "create recover account controller", err)
			}

			return s.submit(ctx, cmd, ss, txRequest{
				operation: "add-recovery-key",
				account:   account.PublicKey(),
				speed:     speed,
				value:     &value,
				fee:       fee,
				funding:   sameAssetRequirement(value, fee, asset.Native()),
			}, ctrl)
		},
	}
	addAccountFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	addSpeedFlag(cmd, &speedArg, settlement.KindPayment)
	cmd.Flags().StringVar(&recoveryPayload, "recovery-payload", "", "Recovery payload produced by stage-recovery-key")
	_ = cmd.MarkFlagRequired("recovery-payload")
	return cmd
}

