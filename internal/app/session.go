package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/execution"
	"github.com/ggonzalez94/aztec-cli/internal/identity"
	"github.com/ggonzalez94/aztec-cli/internal/recipient"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/rollup/sdkrpc"
	"github.com/ggonzalez94/aztec-cli/internal/signer"
	"github.com/ggonzalez94/aztec-cli/internal/wallet"
)

type walletOpener func(ctx context.Context, opts wallet.Options) (wallet.Session, error)

type sdkConfig struct {
	URL     string
	Network registry.Network
	Wallet  wallet.Session
	Logger  *slog.Logger
}

type sdkDialer func(ctx context.Context, cfg sdkConfig) (rollup.SDK, error)

// dialRollupSDK connects to the SDK host and initialises it for the wallet's network.
func dialRollupSDK(ctx context.Context, cfg sdkConfig) (rollup.SDK, error) {
	client, err := sdkrpc.Dial(ctx, cfg.URL, sdkrpc.WithLogger(cfg.Logger), sdkrpc.WithWallet(cfg.Wallet))
	if err != nil {
		return nil, err
	}
	err = client.Init(ctx, sdkrpc.InitParams{
		RollupProviderURL: cfg.Network.RollupProvider,
		ChainID:           cfg.Network.ChainID,
		Depositor:         cfg.Wallet.Address(),
	})
	if err != nil {
		_ = client.Destroy(context.Background())
		return nil, err
	}
	return client, nil
}

// session is the per-invocation bundle of wallet, rollup SDK and resolvers.
type session struct {
	wallet     wallet.Session
	sdk        rollup.SDK
	network    registry.Network
	accounts   *identity.Resolver
	signers    *signer.Resolver
	recipients *recipient.Resolver
	workflow   *execution.Workflow
	logger     *slog.Logger

	secrets []*rollup.KeyPair
}

func (s *runtimeState) walletOptions() wallet.Options {
	return wallet.Options{
		Kind:      s.settings.Wallet,
		RPCURL:    s.settings.WalletRPCURL,
		RelayURL:  s.settings.RelayURL,
		ProjectID: s.settings.ProjectID,
		KeySource: s.settings.KeySource,
		EthRPCURL: s.settings.EthRPCURL,
		ChainID:   s.chainIDFlag,
		Prompt:    s.runner.stderr,
		Logger:    s.logger,
	}
}

// openSession connects the wallet, checks the chain and starts the SDK. Money-moving
// commands pass recordActions so workflow runs land in the action store.
func (s *runtimeState) openSession(ctx context.Context, recordActions bool) (*session, error) {
	w, err := s.runner.openWallet(ctx, s.walletOptions())
	if err != nil {
		return nil, err
	}
	network, err := s.runner.lookupNetwork(w.ChainID())
	if err != nil {
		_ = w.Close()
		return nil, clierr.Wrap(clierr.CodeUnsupported, "wallet network", err)
	}
	s.lastChainID = network.ChainID
	s.logger.Debug("wallet network", "chain_id", network.ChainID, "network", network.Name)

	sdk, err := s.runner.dialSDK(ctx, sdkConfig{URL: s.settings.SDKURL, Network: network, Wallet: w, Logger: s.logger})
	if err != nil {
		_ = w.Close()
		return nil, err
	}

	var store *execution.Store
	if recordActions {
		if err := s.ensureActionStore(); err != nil {
			_ = sdk.Destroy(context.Background())
			_ = w.Close()
			return nil, err
		}
		store = s.actionStore
	}

	return &session{
		wallet:     w,
		sdk:        sdk,
		network:    network,
		accounts:   identity.NewResolver(sdk, w, identity.WithLogger(s.logger)),
		signers:    signer.NewResolver(sdk, w, signer.WithLogger(s.logger)),
		recipients: recipient.New(sdk, recipient.WithLogger(s.logger)),
		workflow:   execution.NewWorkflow(store, execution.WithLogger(s.logger)),
		logger:     s.logger,
	}, nil
}

// track registers key material to wipe when the session closes.
func (ss *session) track(kp *rollup.KeyPair) {
	ss.secrets = append(ss.secrets, kp)
}

// Close wipes tracked keys and releases the SDK and the wallet. It runs on every exit path.
func (ss *session) Close() {
	for _, kp := range ss.secrets {
		kp.Zero()
	}
	ss.secrets = nil
	ss.accounts.Zero()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ss.sdk.Destroy(ctx); err != nil {
		ss.logger.Warn("destroy rollup sdk", "error", err)
	}
	if err := ss.wallet.Close(); err != nil {
		ss.logger.Debug("close wallet", "error", err)
	}
}

// commandContext is cancelled by SIGINT or SIGTERM. Transactions wait on L1 and proof
// construction, so there is no deadline.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

