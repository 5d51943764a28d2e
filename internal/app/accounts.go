package app

import (
	"context"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aztec-cli/internal/config"
	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/execution"
	"github.com/ggonzalez94/aztec-cli/internal/identity"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/schema"
	"github.com/ggonzalez94/aztec-cli/internal/settlement"
	"github.com/ggonzalez94/aztec-cli/internal/signer"
	"github.com/ggonzalez94/aztec-cli/internal/units"
)

// signingFlags holds the account and signer inputs shared by rollup commands.
type signingFlags struct {
	config.Signing
	withSigner bool
}

func addAccountFlags(cmd *cobra.Command, f *signingFlags) {
	cmd.Flags().StringVarP(&f.AccountKey, "account-key", "k", "", "Account private key (hex); defaults to the wallet-derived key")
	cmd.Flags().StringVarP(&f.CustomAccountMessage, "custom-account-message", "m", "", "Derive the account key from a wallet signature over this message")
}

func addSignerFlags(cmd *cobra.Command, f *signingFlags) {
	f.withSigner = true
	cmd.Flags().StringVar(&f.SigningKey, "signing-key", "", "Signing private key (hex)")
	cmd.Flags().StringVar(&f.CustomSignerMessage, "custom-signer-message", "", "Derive the signing key from a wallet signature over this message")
	cmd.Flags().BoolVar(&f.UseAccountKeySigner, "use-account-key-signer", false, "Sign with the account key")
}

type keySources struct {
	account identity.KeySource
	signer  signer.Source
}

// keySources merges the flags with the configured defaults and validates both groups
// before any wallet prompt happens.
func (s *runtimeState) keySources(f *signingFlags) (keySources, error) {
	merged := config.MergeSigning(f.Signing, s.settings.Signing)
	var out keySources
	src, err := identity.ParseKeySource(merged.AccountKey, merged.CustomAccountMessage)
	if err != nil {
		return out, err
	}
	out.account = src
	if f.withSigner {
		signerSrc, err := signer.ParseSource(merged.SigningKey, merged.CustomSignerMessage, merged.UseAccountKeySigner)
		if err != nil {
			return out, err
		}
		out.signer = signerSrc
	}
	return out, nil
}

// resolveAccount resolves and syncs the invocation's account. Its keys are wiped on close.
func (ss *session) resolveAccount(ctx context.Context, src identity.KeySource) (*identity.Account, error) {
	account, err := ss.accounts.ResolveAndSync(ctx, src)
	if err != nil {
		return nil, err
	}
	ss.track(&account.Keys)
	return account, nil
}

// resolveSigner returns the signer key pair. The returned pair is wiped on close.
func (ss *session) resolveSigner(ctx context.Context, src signer.Source, account *identity.Account) (*rollup.KeyPair, error) {
	kp, err := ss.signers.Resolve(ctx, src, account.Keys)
	if err != nil {
		return nil, err
	}
	ss.track(&kp)
	return &kp, nil
}

// spendingKeyFor picks the key registered as the account's first spending key. Without
// an explicit signer source it is the wallet's deterministic spending key, because the
// default policy would hand back the account key for an unregistered account.
func (ss *session) spendingKeyFor(ctx context.Context, src signer.Source, account *identity.Account) (*rollup.KeyPair, error) {
	if _, ok := src.(signer.DefaultSigner); !ok {
		return ss.resolveSigner(ctx, src, account)
	}
	kp, err := ss.sdk.GenerateSpendingKeyPair(ctx, ss.wallet.Address(), ss.wallet)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeResolution, "generate spending key pair", err)
	}
	ss.track(&kp)
	return &kp, nil
}

func addAssetFlag(cmd *cobra.Command, target *string, def string) {
	cmd.Flags().StringVarP(target, "asset", "a", def, "Asset symbol")
}

func addSpeedFlag(cmd *cobra.Command, target *string, kind settlement.Kind) {
	names := "next|instant"
	if kind == settlement.KindDefi {
		names = "deadline|next|instant"
	}
	cmd.Flags().StringVarP(target, "time", "t", "", fmt.Sprintf("Settlement speed (%s, default %s)", names, settlement.DefaultSpeed(kind)))
}

func lookupAsset(symbol string) (registry.Asset, error) {
	asset, err := registry.AssetBySymbol(symbol)
	if err != nil {
		return registry.Asset{}, clierr.Wrap(clierr.CodeUsage, "invalid --asset", err)
	}
	return asset, nil
}

// parseValue reads a decimal token amount such as "0.1" into base units.
func parseValue(input string, asset registry.Asset, allowZero bool) (*big.Int, error) {
	value, err := units.Parse(input, asset.Decimals)
	if err != nil {
		return nil, err
	}
	if value.Sign() == 0 && !allowZero {
		return nil, clierr.New(clierr.CodeUsage, "amount must be greater than zero")
	}
	return value, nil
}

// quoteFee fetches the fee tiers, picks the tier for speed and fails on an empty quote.
func quoteFee(kind settlement.Kind, speed settlement.Speed, fetch func() ([]rollup.AssetValue, error)) (rollup.AssetValue, error) {
	tiers, err := fetch()
	if err != nil {
		return rollup.AssetValue{}, clierr.Wrap(clierr.CodeUnavailable, "fetch fees", err)
	}
	return settlement.FeeForSpeed(settlement.NewFeeQuote(kind, tiers), speed, kind)
}

// sameAssetRequirement adds the fee to the L1 requirement when both are paid in the same asset.
func sameAssetRequirement(value, fee rollup.AssetValue, native bool) *execution.FundingRequirement {
	required := new(big.Int).Set(value.Amount())
	if fee.AssetID == value.AssetID {
		required.Add(required, fee.Amount())
	}
	return &execution.FundingRequirement{Required: required, Native: native}
}

func amountInfo(v rollup.AssetValue) *model.AmountInfo {
	info := &model.AmountInfo{
		AssetID:         v.AssetID,
		AmountBaseUnits: v.Amount().String(),
	}
	if asset, ok := registry.AssetByID(v.AssetID); ok {
		info.Symbol = asset.Symbol
		info.AmountDecimal = units.Format(v.Amount(), asset.Decimals)
	} else {
		info.AmountDecimal = v.Amount().String()
	}
	return info
}

func moneyAnnotations() map[string]string {
	return map[string]string{schema.AnnotationMovesFunds: "true"}
}

// txRequest is a prepared money-moving operation ready for the workflow.
type txRequest struct {
	operation   string
	account     rollup.PublicKey
	signer      *rollup.PublicKey
	recipient   string
	speed       settlement.Speed
	value       *rollup.AssetValue
	fee         rollup.AssetValue
	funding     *execution.FundingRequirement
	metadata    map[string]any
	spendingReq *bool
	recovery    string
}

// submit runs the workflow for ctrl and renders the tx result. The action record
// is kept whether or not the run succeeds.
func (s *runtimeState) submit(ctx context.Context, cmd *cobra.Command, ss *session, req txRequest, ctrl rollup.Controller) error {
	action := execution.NewAction(execution.NewActionID(), req.operation, ss.network.ChainID)
	action.Wallet = ss.wallet.Address().Hex()
	action.Account = req.account.String()
	action.Recipient = req.recipient
	action.Speed = string(req.speed)
	action.Fee = req.fee.Amount().String()
	if asset, ok := registry.AssetByID(req.fee.AssetID); ok && req.value == nil {
		action.Asset = asset.Symbol
	}
	if req.value != nil {
		action.Amount = req.value.Amount().String()
		if asset, ok := registry.AssetByID(req.value.AssetID); ok {
			action.Asset = asset.Symbol
		}
	}
	action.Metadata = req.metadata

	txID, err := ss.workflow.Run(ctx, &action, ctrl, req.funding)
	if err != nil {
		return err
	}

	explorer := ss.network.TxURL(txID.String())
	if explorer != "" {
		action.ExplorerURL = explorer
		if s.actionStore != nil {
			if err := s.actionStore.Save(action); err != nil {
				s.logger.Warn("record explorer link", "action_id", action.ActionID, "error", err)
			}
		}
	}

	result := model.TxResult{
		ActionID:            action.ActionID,
		Operation:           req.operation,
		TxID:                txID.String(),
		ExplorerURL:         explorer,
		Account:             req.account.String(),
		Recipient:           req.recipient,
		Speed:               string(req.speed),
		Fee:                 amountInfo(req.fee),
		SpendingKeyRequired: req.spendingReq,
		RecoveryPayload:     req.recovery,
	}
	if req.signer != nil {
		result.Signer = req.signer.String()
	}
	if req.value != nil {
		result.Amount = amountInfo(*req.value)
	}
	return s.emitSuccess(trimRootPath(cmd.CommandPath()), result, nil, cacheMetaBypass(), nil)
}
