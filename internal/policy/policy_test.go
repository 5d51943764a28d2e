package policy

import (
	"testing"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "deposit"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"balance", " Deposit "}, "deposit"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	if err := CheckCommandAllowed([]string{"actions"}, "actions status"); err != nil {
		t.Fatalf("expected group allowlist to cover subcommand: %v", err)
	}
	err := CheckCommandAllowed([]string{"balance"}, "withdraw")
	if !clierr.Is(err, clierr.CodeBlocked) {
		t.Fatalf("expected blocked error, got %v", err)
	}
	if err := CheckCommandAllowed([]string{"action"}, "actions list"); err == nil {
		t.Fatal("expected prefix match to respect word boundaries")
	}
}
