// Package units converts between token amounts typed by users and base units.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^([0-9]+)?(\.[0-9]*)?$`)

// Parse reads a decimal token amount such as "0.1" or ".5" into base units.
func Parse(input string, decimals int) (*big.Int, error) {
	clean := strings.ReplaceAll(strings.TrimSpace(input), "_", "")
	if decimals < 0 {
		return nil, clierr.New(clierr.CodeInternal, "token decimals must be >= 0")
	}
	if clean == "" || clean == "." || !decimalPattern.MatchString(clean) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q: use a decimal like 1.23", input))
	}

	whole, frac, _ := strings.Cut(clean, ".")
	if len(frac) > decimals {
		trimmed := strings.TrimRight(frac, "0")
		if len(trimmed) > decimals {
			return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("amount %q has more than %d decimal places", input, decimals))
		}
		frac = trimmed
	}
	digits := strings.TrimLeft(whole+frac+strings.Repeat("0", decimals-len(frac)), "0")
	if digits == "" {
		return new(big.Int), nil
	}
	value, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid amount %q", input))
	}
	return value, nil
}

// Format renders base units as a decimal token amount without trailing zeros.
func Format(value *big.Int, decimals int) string {
	if value == nil {
		return "0"
	}
	if value.Sign() < 0 {
		return "-" + Format(new(big.Int).Neg(value), decimals)
	}
	s := value.String()
	if decimals <= 0 {
		return s
	}
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
