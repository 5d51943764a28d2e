// Package recipient turns user-supplied destinations into rollup or L1 identities.
package recipient

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

type Resolver struct {
	directory rollup.Directory
	logger    *slog.Logger
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(directory rollup.Directory, opts ...Option) *Resolver {
	r := &Resolver{directory: directory, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns self's public key for empty input, the aliased account when input
// is a registered alias, and otherwise parses input as a public key.
func (r *Resolver) Resolve(ctx context.Context, input string, self rollup.PublicKey) (rollup.PublicKey, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return self, nil
	}

	registered, err := r.directory.IsAliasRegistered(ctx, clean)
	if err != nil {
		return rollup.PublicKey{}, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("look up alias %q", clean), err)
	}
	if registered {
		key, ok, err := r.directory.GetAccountPublicKey(ctx, clean)
		if err != nil {
			return rollup.PublicKey{}, clierr.Wrap(clierr.CodeUnavailable, fmt.Sprintf("fetch account for alias %q", clean), err)
		}
		if ok && !key.IsZero() {
			r.logger.Debug("resolved recipient alias", "alias", clean, "public_key", key.String())
			return key, nil
		}
	}

	key, err := rollup.ParsePublicKey(clean)
	if err != nil {
		return rollup.PublicKey{}, clierr.Wrap(clierr.CodeLookup, fmt.Sprintf("recipient %q is neither a registered alias nor a valid public key", input), err)
	}
	return key, nil
}

// ParseEthereumAddress validates an L1 withdrawal recipient.
func ParseEthereumAddress(input string) (common.Address, error) {
	clean := strings.TrimSpace(input)
	if clean == "" {
		return common.Address{}, clierr.New(clierr.CodeUsage, "withdraw recipient is required")
	}
	if !common.IsHexAddress(clean) {
		return common.Address{}, clierr.New(clierr.CodeLookup, fmt.Sprintf("recipient %q is not a valid Ethereum address", input))
	}
	return common.HexToAddress(clean), nil
}
