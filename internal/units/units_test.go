package units

import (
	"math/big"
	"testing"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

func TestParse(t *testing.T) {
	cases := map[string]string{
		"1":          "1000000000000000000",
		"0.01":       "10000000000000000",
		".5":         "500000000000000000",
		"2.":         "2000000000000000000",
		"0":          "0",
		"1_000":      "1000000000000000000000",
		"0.10000000": "100000000000000000",
	}
	for in, want := range cases {
		got, err := Parse(in, 18)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", in, err)
		}
		if got.String() != want {
			t.Fatalf("Parse(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"", ".", "-1", "1e18", "abc", "1.2.3", "0.0000001"} {
		if _, err := Parse(in, 6); !clierr.Is(err, clierr.CodeUsage) {
			t.Fatalf("Parse(%q): expected usage error, got %v", in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := map[string]*big.Int{
		"0":      nil,
		"1.5":    big.NewInt(1_500_000),
		"0.0001": big.NewInt(100),
		"-2":     big.NewInt(-2_000_000),
		"12":     big.NewInt(12_000_000),
	}
	for want, in := range cases {
		if got := Format(in, 6); got != want {
			t.Fatalf("Format(%v) = %s, want %s", in, got, want)
		}
	}
	if got := Format(big.NewInt(42), 0); got != "42" {
		t.Fatalf("unexpected zero-decimal format %s", got)
	}
}

func TestParseFormatAgree(t *testing.T) {
	v, err := Parse("123.456", 18)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := Format(v, 18); got != "123.456" {
		t.Fatalf("round trip produced %s", got)
	}
}
