// Package settlement maps a requested settlement speed onto a fee tier.
package settlement

import (
	"fmt"
	"strings"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

type Speed string

const (
	SpeedNext     Speed = "next"
	SpeedInstant  Speed = "instant"
	SpeedDeadline Speed = "deadline"
)

// Kind selects which speeds an operation supports and how its fee tiers are ordered.
type Kind int

const (
	// KindPayment covers deposit, transfer, withdraw, register and key management.
	KindPayment Kind = iota
	// KindDefi covers bridge interactions.
	KindDefi
)

func (k Kind) String() string {
	if k == KindDefi {
		return "defi"
	}
	return "payment"
}

// tiers lists the supported speeds in the order the rollup returns fee tiers.
func (k Kind) tiers() []Speed {
	if k == KindDefi {
		return []Speed{SpeedDeadline, SpeedNext, SpeedInstant}
	}
	return []Speed{SpeedNext, SpeedInstant}
}

// Supported reports whether the speed is valid for the operation kind.
func (k Kind) Supported(speed Speed) bool {
	for _, s := range k.tiers() {
		if s == speed {
			return true
		}
	}
	return false
}

func DefaultSpeed(kind Kind) Speed {
	if kind == KindDefi {
		return SpeedDeadline
	}
	return SpeedNext
}

// ParseSpeed accepts a user token. An empty token selects the kind's default.
func ParseSpeed(token string, kind Kind) (Speed, error) {
	clean := strings.ToLower(strings.TrimSpace(token))
	if clean == "" {
		return DefaultSpeed(kind), nil
	}
	speed := Speed(clean)
	if !kind.Supported(speed) {
		return "", unsupported(token, kind)
	}
	return speed, nil
}

// FeeQuote maps each settlement speed to its fee.
type FeeQuote map[Speed]rollup.AssetValue

// NewFeeQuote keys the rollup's tier-indexed fee list by speed.
func NewFeeQuote(kind Kind, tiers []rollup.AssetValue) FeeQuote {
	quote := make(FeeQuote, len(tiers))
	for i, speed := range kind.tiers() {
		if i >= len(tiers) {
			break
		}
		quote[speed] = tiers[i]
	}
	return quote
}

// FeeForSpeed returns the fee for the requested speed. It never falls back to another tier.
func FeeForSpeed(quote FeeQuote, speed Speed, kind Kind) (rollup.AssetValue, error) {
	if !kind.Supported(speed) {
		return rollup.AssetValue{}, unsupported(string(speed), kind)
	}
	fee, ok := quote[speed]
	if !ok {
		return rollup.AssetValue{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("no %s fee quoted for %s operations", speed, kind))
	}
	if err := fee.Validate(); err != nil {
		return rollup.AssetValue{}, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("invalid %s fee", speed), err)
	}
	return fee, nil
}

func unsupported(token string, kind Kind) *clierr.Error {
	names := make([]string, 0, 3)
	for _, s := range kind.tiers() {
		names = append(names, string(s))
	}
	return clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported settlement speed %q for %s operations (supported: %s)", token, kind, strings.Join(names, ", ")))
}
