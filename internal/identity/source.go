package identity

import (
	"strings"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// KeySource selects where the account key pair comes from. Exactly one variant applies.
type KeySource interface {
	keySource()
}

// ExplicitKey uses a caller-supplied private key.
type ExplicitKey struct {
	Key rollup.PrivateKey
}

// CustomMessage derives the key from the wallet's signature over Message.
type CustomMessage struct {
	Message string
}

// DefaultKey asks the rollup to derive the wallet's deterministic account key.
type DefaultKey struct{}

func (ExplicitKey) keySource()   {}
func (CustomMessage) keySource() {}
func (DefaultKey) keySource()    {}

// ParseKeySource builds the source from the --account-key and --custom-account-message values.
func ParseKeySource(accountKey, customMessage string) (KeySource, error) {
	key := strings.TrimSpace(accountKey)
	if key != "" && customMessage != "" {
		return nil, clierr.New(clierr.CodeUsage, "--account-key and --custom-account-message cannot be used together")
	}
	switch {
	case key != "":
		parsed, err := rollup.ParsePrivateKey(key)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "invalid --account-key", err)
		}
		if parsed.IsZero() {
			return nil, clierr.New(clierr.CodeUsage, "invalid --account-key: key is zero")
		}
		return ExplicitKey{Key: parsed}, nil
	case customMessage != "":
		return CustomMessage{Message: customMessage}, nil
	default:
		return DefaultKey{}, nil
	}
}

// Describe names the source for logs without exposing key material.
func Describe(source KeySource) string {
	switch source.(type) {
	case ExplicitKey:
		return "explicit-key"
	case CustomMessage:
		return "custom-message"
	case DefaultKey:
		return "default"
	default:
		return "unknown"
	}
}
