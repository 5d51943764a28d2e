package app

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/recipient"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/settlement"
)

func (s *runtimeState) newBalanceCommand() *cobra.Command {
	var (
		signing     signingFlags
		assetSymbol string
	)
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the account's total and spendable balances",
		Example: `  aztec balance
  aztec balance --asset dai -m 'custom account message'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			pub := account.PublicKey()
			total, err := ss.sdk.GetBalance(ctx, pub, asset.ID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "get balance", err)
			}
			spendable := func(opts rollup.SpendableOptions) (rollup.AssetValue, error) {
				v, err := ss.sdk.GetSpendableSum(ctx, pub, asset.ID, opts)
				if err != nil {
					return rollup.AssetValue{}, clierr.Wrap(clierr.CodeUnavailable, "get spendable sum", err)
				}
				return v, nil
			}
			accountKey, err := spendable(rollup.SpendableOptions{SpendingKeyRequired: false, ExcludePendingNotes: true})
			if err != nil {
				return err
			}
			spendingKeys, err := spendable(rollup.SpendableOptions{SpendingKeyRequired: true, ExcludePendingNotes: true})
			if err != nil {
				return err
			}
			withPending, err := spendable(rollup.SpendableOptions{SpendingKeyRequired: true, ExcludePendingNotes: false})
			if err != nil {
				return err
			}

			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.Balance{
				Account:                 pub.String(),
				Total:                   *amountInfo(total),
				SpendableAccountKey:     *amountInfo(accountKey),
				SpendableSpendingKeys:   *amountInfo(spendingKeys),
				PendingSpendingKeyNotes: *amountInfo(withPending),
			}, nil, cacheMetaBypass(), nil)
		},
	}
	addAccountFlags(cmd, &signing)
	addAssetFlag(cmd, &assetSymbol, "eth")
	return cmd
}

func (s *runtimeState) newHistoryCommand() *cobra.Command {
	var (
		signing signingFlags
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the account's rollup transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return clierr.New(clierr.CodeUsage, "--limit must be non-negative")
			}
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			txs, err := ss.sdk.GetUserTxs(ctx, account.PublicKey())
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "get user transactions", err)
			}
			if limit > 0 && len(txs) > limit {
				txs = txs[:limit]
			}
			entries := make([]model.HistoryEntry, 0, len(txs))
			for _, tx := range txs {
				entries = append(entries, historyEntry(tx, ss.network.TxURL(tx.TxID.String())))
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), entries, nil, cacheMetaBypass(), nil)
		},
	}
	addAccountFlags(cmd, &signing)
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum transactions to return (0 for all)")
	return cmd
}

func historyEntry(tx rollup.UserTx, explorer string) model.HistoryEntry {
	entry := model.HistoryEntry{
		TxID:        tx.TxID.String(),
		Kind:        tx.Kind,
		Recipient:   tx.Recipient,
		ExplorerURL: explorer,
	}
	if tx.Value != nil {
		entry.Value = amountInfo(*tx.Value)
	}
	if tx.Fee != nil {
		entry.Fee = amountInfo(*tx.Fee)
	}
	if tx.Created != nil {
		entry.Created = tx.Created.UTC().Format(time.RFC3339)
	}
	if tx.Settled != nil {
		entry.Settled = tx.Settled.UTC().Format(time.RFC3339)
	}
	return entry
}

func (s *runtimeState) newAccountInfoCommand() *cobra.Command {
	var signing signingFlags
	cmd := &cobra.Command{
		Use:   "account-info",
		Short: "Show the account public key and registration state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := s.keySources(&signing)
			if err != nil {
				return err
			}

			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer ss.Close()

			account, err := ss.resolveAccount(ctx, sources.account)
			if err != nil {
				return err
			}
			registered, err := ss.sdk.IsAccountRegistered(ctx, account.PublicKey())
			if err != nil {
				return clierr.Wrap(clierr.CodeUnavailable, "check account registration", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), model.AccountInfo{
				PublicKey:  account.PublicKey().String(),
				Registered: registered,
				Added:      account.Added,
				Wallet:     ss.wallet.Address().Hex(),
				ChainID:    ss.network.ChainID,
			}, nil, cacheMetaBypass(), nil)
		},
	}
	addAccountFlags(cmd, &signing)
	return cmd
}

func (s *runtimeState) newFeesCommand() *cobra.Command {
	var (
		assetSymbol  string
		recipientArg string
	)
	cmd := &cobra.Command{
		Use:   "fees",
		Short: "Show fee tiers per operation and settlement speed",
		Example: `  aztec fees
  aztec fees --asset dai --recipient 0xc1912fEE45d61C87Cc5EA59DaE31190FFFFf232d`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := lookupAsset(assetSymbol)
			if err != nil {
				return err
			}
			ctx, stop := commandContext()
			defer stop()
			ss, err := s.openSession(ctx, false)
			if err != nil {
				return err
			}
			defer ss.Close()

			withdrawTo := ss.wallet.Address()
			if recipientArg != "" {
				withdrawTo, err = recipient.ParseEthereumAddress(recipientArg)
				if err != nil {
					return err
				}
			}

			schedules := []struct {
				operation string
				fetch     func(context.Context) ([]rollup.AssetValue, error)
			}{
				{"deposit", func(ctx context.Context) ([]rollup.AssetValue, error) { return ss.sdk.GetDepositFees(ctx, asset.ID) }},
				{"transfer", func(ctx context.Context) ([]rollup.AssetValue, error) { return ss.sdk.GetTransferFees(ctx, asset.ID) }},
				{"withdraw", func(ctx context.Context) ([]rollup.AssetValue, error) {
					return ss.sdk.GetWithdrawFees(ctx, asset.ID, withdrawTo)
				}},
				{"register", func(ctx context.Context) ([]rollup.AssetValue, error) { return ss.sdk.GetRegisterFees(ctx, asset.ID) }},
				{"add-spending-key", func(ctx context.Context) ([]rollup.AssetValue, error) {
					return ss.sdk.GetAddSpendingKeyFees(ctx, rollup.NativeAssetID)
				}},
			}
			tiers := make([]model.FeeTier, 0, len(schedules)*2)
			for _, sched := range schedules {
				values, err := sched.fetch(ctx)
				if err != nil {
					return clierr.Wrap(clierr.CodeUnavailable, "fetch "+sched.operation+" fees", err)
				}
				quote := settlement.NewFeeQuote(settlement.KindPayment, values)
				for _, speed := range []settlement.Speed{settlement.SpeedNext, settlement.SpeedInstant} {
					fee, ok := quote[speed]
					if !ok {
						continue
					}
					tiers = append(tiers, model.FeeTier{Operation: sched.operation, Speed: string(speed), Fee: *amountInfo(fee)})
				}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), tiers, nil, cacheMetaBypass(), nil)
		},
	}
	addAssetFlag(cmd, &assetSymbol, "eth")
	cmd.Flags().StringVarP(&recipientArg, "recipient", "r", "", "Ethereum address to quote withdraw fees for (default: wallet address)")
	return cmd
}
