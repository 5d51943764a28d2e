// Package identity resolves the rollup account key pair for an invocation and makes
// sure the rollup tracks and has synced that account.
package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// Wallet is the part of the wallet session the resolver needs.
type Wallet interface {
	rollup.MessageSigner
	Address() common.Address
}

// Account is a resolved and synchronised rollup account.
type Account struct {
	Keys rollup.KeyPair
	User rollup.User
	// Added is true when this invocation registered the account with the local rollup view.
	Added bool
}

func (a *Account) PublicKey() rollup.PublicKey { return a.Keys.PublicKey }

// Zero wipes the account private key.
func (a *Account) Zero() {
	if a != nil {
		a.Keys.Zero()
	}
}

// Resolver is scoped to one invocation. The default key pair is cached after the
// first wallet prompt.
type Resolver struct {
	keys   rollup.Keys
	wallet Wallet
	logger *slog.Logger

	defaultKeys *rollup.KeyPair
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(keys rollup.Keys, wallet Wallet, opts ...Option) *Resolver {
	r := &Resolver{keys: keys, wallet: wallet, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Zero wipes the cached default key pair. The next default resolution prompts the wallet again.
func (r *Resolver) Zero() {
	if r.defaultKeys != nil {
		r.defaultKeys.Zero()
		r.defaultKeys = nil
	}
}

// Resolve returns the account key pair for source without touching the rollup's user set.
func (r *Resolver) Resolve(ctx context.Context, source KeySource) (rollup.KeyPair, error) {
	r.logger.Debug("resolving account key", "source", Describe(source))
	switch src := source.(type) {
	case ExplicitKey:
		return r.fromPrivateKey(ctx, src.Key)
	case CustomMessage:
		sig, err := r.wallet.SignMessage(ctx, []byte(src.Message))
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("sign custom account message: %w", err))
		}
		priv, err := rollup.PrivateKeyFromSignature(sig)
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(err)
		}
		return r.fromPrivateKey(ctx, priv)
	case DefaultKey:
		if r.defaultKeys != nil {
			return *r.defaultKeys, nil
		}
		kp, err := r.keys.GenerateAccountKeyPair(ctx, r.wallet.Address(), r.wallet)
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("generate account key pair: %w", err))
		}
		r.defaultKeys = &kp
		return kp, nil
	case nil:
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("no key source"))
	default:
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("unknown key source %T", source))
	}
}

func (r *Resolver) fromPrivateKey(ctx context.Context, priv rollup.PrivateKey) (rollup.KeyPair, error) {
	pub, err := r.keys.DerivePublicKey(ctx, priv)
	if err != nil {
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("derive public key: %w", err))
	}
	return rollup.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// Sync adds the account to the rollup's local view when missing, otherwise fetches
// it, and then waits until the view is synchronised. Running it twice adds nothing.
func (r *Resolver) Sync(ctx context.Context, kp rollup.KeyPair) (*Account, error) {
	exists, err := r.keys.UserExists(ctx, kp.PublicKey)
	if err != nil {
		return nil, resolutionFailed(fmt.Errorf("check user: %w", err))
	}

	account := &Account{Keys: kp}
	if exists {
		account.User, err = r.keys.GetUser(ctx, kp.PublicKey)
		if err != nil {
			return nil, resolutionFailed(fmt.Errorf("get user: %w", err))
		}
	} else {
		account.User, err = r.keys.AddUser(ctx, kp.PrivateKey)
		if err != nil {
			return nil, resolutionFailed(fmt.Errorf("add user: %w", err))
		}
		account.Added = true
	}

	r.logger.Info("waiting for account to sync", "public_key", kp.PublicKey.String(), "added", account.Added)
	if err := account.User.AwaitSynchronised(ctx); err != nil {
		return nil, resolutionFailed(fmt.Errorf("await synchronised: %w", err))
	}
	return account, nil
}

// ResolveAndSync resolves the account key pair for source and syncs it.
func (r *Resolver) ResolveAndSync(ctx context.Context, source KeySource) (*Account, error) {
	kp, err := r.Resolve(ctx, source)
	if err != nil {
		return nil, err
	}
	return r.Sync(ctx, kp)
}

func resolutionFailed(cause error) *clierr.Error {
	return clierr.Wrap(clierr.CodeResolution, "account resolution failed", cause)
}
