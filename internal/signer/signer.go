// Package signer picks the key pair that signs rollup transactions.
package signer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// Source selects the signing key. Exactly one variant applies.
type Source interface {
	signerSource()
}

// ExplicitSigningKey signs with a caller-supplied private key.
type ExplicitSigningKey struct {
	Key rollup.PrivateKey
}

// SignerMessage derives the signing key from the wallet's signature over Message.
type SignerMessage struct {
	Message string
}

// AccountKeySigner signs with the account key pair.
type AccountKeySigner struct{}

// DefaultSigner signs with the spending key once the account is registered, and with
// the account key before that.
type DefaultSigner struct{}

func (ExplicitSigningKey) signerSource() {}
func (SignerMessage) signerSource()      {}
func (AccountKeySigner) signerSource()   {}
func (DefaultSigner) signerSource()      {}

// ParseSource builds the source from --signing-key, --custom-signer-message and
// --use-account-key-signer.
func ParseSource(signingKey, customMessage string, useAccountKey bool) (Source, error) {
	key := strings.TrimSpace(signingKey)
	set := make([]string, 0, 3)
	if key != "" {
		set = append(set, "--signing-key")
	}
	if customMessage != "" {
		set = append(set, "--custom-signer-message")
	}
	if useAccountKey {
		set = append(set, "--use-account-key-signer")
	}
	if len(set) > 1 {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s cannot be used together", strings.Join(set, " and ")))
	}

	switch {
	case key != "":
		parsed, err := rollup.ParsePrivateKey(key)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "invalid --signing-key", err)
		}
		if parsed.IsZero() {
			return nil, clierr.New(clierr.CodeUsage, "invalid --signing-key: key is zero")
		}
		return ExplicitSigningKey{Key: parsed}, nil
	case customMessage != "":
		return SignerMessage{Message: customMessage}, nil
	case useAccountKey:
		return AccountKeySigner{}, nil
	default:
		return DefaultSigner{}, nil
	}
}

// Wallet is the part of the wallet session the resolver needs.
type Wallet interface {
	rollup.MessageSigner
	Address() common.Address
}

// Rollup is the subset of the rollup collaborator the resolver uses.
type Rollup interface {
	DerivePublicKey(ctx context.Context, privateKey rollup.PrivateKey) (rollup.PublicKey, error)
	GenerateSpendingKeyPair(ctx context.Context, owner common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error)
	IsAccountRegistered(ctx context.Context, publicKey rollup.PublicKey) (bool, error)
}

type Resolver struct {
	rollup Rollup
	wallet Wallet
	logger *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(r Rollup, wallet Wallet, opts ...Option) *Resolver {
	res := &Resolver{rollup: r, wallet: wallet, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

// Resolve returns the signer key pair for source. The default source queries
// registration on every call.
func (r *Resolver) Resolve(ctx context.Context, source Source, account rollup.KeyPair) (rollup.KeyPair, error) {
	switch src := source.(type) {
	case ExplicitSigningKey:
		return r.fromPrivateKey(ctx, src.Key)
	case SignerMessage:
		sig, err := r.wallet.SignMessage(ctx, []byte(src.Message))
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("sign custom signer message: %w", err))
		}
		priv, err := rollup.PrivateKeyFromSignature(sig)
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(err)
		}
		return r.fromPrivateKey(ctx, priv)
	case AccountKeySigner:
		return account, nil
	case DefaultSigner:
		registered, err := r.rollup.IsAccountRegistered(ctx, account.PublicKey)
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("check registration: %w", err))
		}
		if !registered {
			r.logger.Debug("account not registered, signing with account key", "public_key", account.PublicKey.String())
			return account, nil
		}
		r.logger.Debug("account registered, deriving spending key", "public_key", account.PublicKey.String())
		kp, err := r.rollup.GenerateSpendingKeyPair(ctx, r.wallet.Address(), r.wallet)
		if err != nil {
			return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("generate spending key pair: %w", err))
		}
		return kp, nil
	case nil:
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("no signer source"))
	default:
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("unknown signer source %T", source))
	}
}

func (r *Resolver) fromPrivateKey(ctx context.Context, priv rollup.PrivateKey) (rollup.KeyPair, error) {
	pub, err := r.rollup.DerivePublicKey(ctx, priv)
	if err != nil {
		return rollup.KeyPair{}, resolutionFailed(fmt.Errorf("derive public key: %w", err))
	}
	return rollup.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

func resolutionFailed(cause error) *clierr.Error {
	return clierr.Wrap(clierr.CodeResolution, "signer resolution failed", cause)
}
