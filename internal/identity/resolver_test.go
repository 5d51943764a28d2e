package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/rollup/rolluptest"
	"github.com/ggonzalez94/aztec-cli/internal/wallet/wallettest"
)

const explicitKeyHex = "0x0101010101010101010101010101010101010101010101010101010101010101"

func TestParseKeySourceExclusive(t *testing.T) {
	_, err := ParseKeySource(explicitKeyHex, "hello")
	if err == nil {
		t.Fatal("expected error when both sources are set")
	}
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage code, got %v", err)
	}
	if !strings.Contains(err.Error(), "--account-key") || !strings.Contains(err.Error(), "--custom-account-message") {
		t.Fatalf("expected both flags named, got %v", err)
	}
}

func TestParseKeySourceVariants(t *testing.T) {
	src, err := ParseKeySource(explicitKeyHex, "")
	if err != nil {
		t.Fatalf("ParseKeySource failed: %v", err)
	}
	if _, ok := src.(ExplicitKey); !ok {
		t.Fatalf("expected explicit key, got %T", src)
	}
	src, _ = ParseKeySource("", "my message")
	if msg, ok := src.(CustomMessage); !ok || msg.Message != "my message" {
		t.Fatalf("expected custom message, got %#v", src)
	}
	src, _ = ParseKeySource("", "")
	if _, ok := src.(DefaultKey); !ok {
		t.Fatalf("expected default, got %T", src)
	}
	if _, err := ParseKeySource("0x1234", ""); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error for malformed key, got %v", err)
	}
}

func TestResolveExplicitKeyNeverPromptsWallet(t *testing.T) {
	sdk := rolluptest.NewSDK()
	w := wallettest.New()
	src, _ := ParseKeySource(explicitKeyHex, "")

	kp, err := NewResolver(sdk, w).Resolve(context.Background(), src)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	want := rolluptest.KeyPairFor(src.(ExplicitKey).Key)
	if kp != want {
		t.Fatal("unexpected key pair")
	}
	if w.Prompts() != 0 {
		t.Fatalf("expected no wallet prompt, got %d", w.Prompts())
	}
}

func TestResolveCustomMessageUsesSignaturePrefix(t *testing.T) {
	sdk := rolluptest.NewSDK()
	w := wallettest.New()

	kp, err := NewResolver(sdk, w).Resolve(context.Background(), CustomMessage{Message: "my account"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var want rollup.PrivateKey
	copy(want[:], wallettest.Signature([]byte("my account"))[:32])
	if kp.PrivateKey != want {
		t.Fatal("expected first 32 signature bytes as private key")
	}
	if w.Messages[0] != "my account" {
		t.Fatalf("unexpected signed message %q", w.Messages[0])
	}
}

func TestResolveDefaultIsCachedPerResolver(t *testing.T) {
	sdk := rolluptest.NewSDK()
	w := wallettest.New()
	r := NewResolver(sdk, w)

	first, err := r.Resolve(context.Background(), DefaultKey{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	second, err := r.Resolve(context.Background(), DefaultKey{})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if first != second {
		t.Fatal("expected identical default key pairs")
	}
	if sdk.Count("GenerateAccountKeyPair") != 1 || w.Prompts() != 1 {
		t.Fatalf("expected one wallet prompt, got generate=%d prompts=%d", sdk.Count("GenerateAccountKeyPair"), w.Prompts())
	}
}

func TestResolveWalletRejectionIsResolutionError(t *testing.T) {
	sdk := rolluptest.NewSDK()
	w := wallettest.New()
	denied := errors.New("user rejected request")
	w.SignErr = denied

	_, err := NewResolver(sdk, w).Resolve(context.Background(), CustomMessage{Message: "x"})
	if !clierr.Is(err, clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
	if !errors.Is(err, denied) {
		t.Fatal("expected cause to be attached")
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	sdk := rolluptest.NewSDK()
	r := NewResolver(sdk, wallettest.New())
	src, _ := ParseKeySource(explicitKeyHex, "")

	first, err := r.ResolveAndSync(context.Background(), src)
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	second, err := r.ResolveAndSync(context.Background(), src)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if !first.Added || second.Added {
		t.Fatalf("expected only the first run to add, got %v/%v", first.Added, second.Added)
	}
	if sdk.Count("AddUser") != 1 || sdk.Count("GetUser") != 1 {
		t.Fatalf("unexpected calls %v", sdk.Calls)
	}
	if sdk.Count("AwaitSynchronised") != 2 {
		t.Fatalf("expected sync wait on every run, got %d", sdk.Count("AwaitSynchronised"))
	}
	if first.PublicKey() != second.PublicKey() {
		t.Fatal("expected same account")
	}
}

func TestSyncFailureIsResolutionError(t *testing.T) {
	sdk := rolluptest.NewSDK()
	sdk.Errors["AwaitSynchronised"] = errors.New("rollup offline")
	_, err := NewResolver(sdk, wallettest.New()).ResolveAndSync(context.Background(), DefaultKey{})
	if !clierr.Is(err, clierr.CodeResolution) {
		t.Fatalf("expected resolution error, got %v", err)
	}
}

func TestAccountZero(t *testing.T) {
	account := &Account{Keys: rollup.KeyPair{PrivateKey: rollup.PrivateKey{9}}}
	account.Zero()
	if !account.Keys.PrivateKey.IsZero() {
		t.Fatal("expected zeroed key")
	}
}

func TestResolverZeroWipesCachedDefault(t *testing.T) {
	sdk := rolluptest.NewSDK()
	w := wallettest.New()
	r := NewResolver(sdk, w)

	if _, err := r.Resolve(context.Background(), DefaultKey{}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	cached := r.defaultKeys
	if cached == nil || cached.PrivateKey.IsZero() {
		t.Fatal("expected a cached default key pair")
	}
	r.Zero()
	if !cached.PrivateKey.IsZero() {
		t.Fatal("expected the cached private key to be wiped")
	}
	if _, err := r.Resolve(context.Background(), DefaultKey{}); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if w.Prompts() != 2 {
		t.Fatalf("expected a fresh wallet prompt after Zero, got %d", w.Prompts())
	}
}
