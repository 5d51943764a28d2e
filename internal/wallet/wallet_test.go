package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

const testPrivateKey = "59c6995e998f97a5a0044976f0945388cf9b7e5e5f4f9d2d9d8f1f5b7f6d11d1"

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvPrivateKey, "")
	t.Setenv(EnvPrivateKeyFile, "")
	t.Setenv(EnvKeystorePath, "")
	t.Setenv(EnvKeystorePassword, "")
	t.Setenv(EnvKeystorePasswordFile, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestOpenKeyWalletSignsRecoverableMessage(t *testing.T) {
	clearKeyEnv(t)
	sess, err := Open(context.Background(), Options{Kind: KindKey, PrivateKey: testPrivateKey, ChainID: 677868})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if sess.ChainID() != 677868 {
		t.Fatalf("unexpected chain id %d", sess.ChainID())
	}
	msg := []byte("hello rollup")
	sig, err := sess.SignMessage(context.Background(), msg)
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}
	if sig[64] != 27 && sig[64] != 28 {
		t.Fatalf("expected wallet-style V, got %d", sig[64])
	}
	raw := append([]byte(nil), sig...)
	raw[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash(msg), raw)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if crypto.PubkeyToAddress(*pub) != sess.Address() {
		t.Fatal("signature does not recover to wallet address")
	}

	again, err := sess.SignMessage(context.Background(), msg)
	if err != nil || string(again) != string(sig) {
		t.Fatal("expected deterministic signature for the same message")
	}
}

func TestOpenKeyWalletRequiresChain(t *testing.T) {
	clearKeyEnv(t)
	_, err := Open(context.Background(), Options{Kind: KindKey, PrivateKey: testPrivateKey})
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestKeyConfigFromFile(t *testing.T) {
	clearKeyEnv(t)
	keyFile := filepath.Join(t.TempDir(), "key.txt")
	if err := os.WriteFile(keyFile, []byte(testPrivateKey+"\n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	t.Setenv(EnvPrivateKeyFile, keyFile)
	t.Setenv(EnvPrivateKey, "0xdeadbeef")

	cfg, err := KeyConfigFromInputs(KeySourceFile, "")
	if err != nil {
		t.Fatalf("KeyConfigFromInputs failed: %v", err)
	}
	if cfg.PrivateKeyHex != "" || cfg.PrivateKeyFile != keyFile {
		t.Fatalf("expected file source only, got %+v", cfg)
	}
	if _, err := loadPrivateKey(cfg, nil); err != nil {
		t.Fatalf("loadPrivateKey failed: %v", err)
	}
}

func TestKeyConfigAutoUsesDefaultKeyFile(t *testing.T) {
	clearKeyEnv(t)
	cfgDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", cfgDir)
	if err := os.MkdirAll(filepath.Join(cfgDir, "aztec"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "aztec", "key.hex"), []byte(testPrivateKey), 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	cfg, err := KeyConfigFromInputs(KeySourceAuto, "")
	if err != nil {
		t.Fatalf("KeyConfigFromInputs failed: %v", err)
	}
	if cfg.PrivateKeyFile != filepath.Join(cfgDir, "aztec", "key.hex") {
		t.Fatalf("unexpected key file %q", cfg.PrivateKeyFile)
	}
}

func TestKeyConfigRejectsUnknownSource(t *testing.T) {
	if _, err := KeyConfigFromInputs("ledger", ""); err == nil {
		t.Fatal("expected error for unknown source")
	}
}

func TestMissingKeyErrorMentionsEnv(t *testing.T) {
	clearKeyEnv(t)
	_, err := loadPrivateKey(KeyConfig{}, nil)
	if err == nil || !strings.Contains(err.Error(), EnvPrivateKey) {
		t.Fatalf("expected hint about %s, got %v", EnvPrivateKey, err)
	}
}

type ethService struct{ account common.Address }

func (s *ethService) Accounts() []common.Address { return []common.Address{s.account} }

func (s *ethService) ChainId() *hexutil.Big { return (*hexutil.Big)(common.Big1) }

type personalService struct{ signed [][]byte }

func (s *personalService) Sign(data hexutil.Bytes, _ common.Address) hexutil.Bytes {
	s.signed = append(s.signed, data)
	sig := make([]byte, 65)
	copy(sig, data)
	sig[64] = 27
	return sig
}

func TestOpenLocalWalletOverJSONRPC(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	personal := &personalService{}
	server := rpc.NewServer()
	if err := server.RegisterName("eth", &ethService{account: account}); err != nil {
		t.Fatalf("register eth: %v", err)
	}
	if err := server.RegisterName("personal", personal); err != nil {
		t.Fatalf("register personal: %v", err)
	}
	defer server.Stop()
	srv := httptest.NewServer(server)
	defer srv.Close()

	sess, err := Open(context.Background(), Options{Kind: KindLocal, RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer sess.Close()

	if sess.Address() != account || sess.ChainID() != 1 {
		t.Fatalf("unexpected session %s chain=%d", sess.Address().Hex(), sess.ChainID())
	}
	sig, err := sess.SignMessage(context.Background(), []byte("abc"))
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}
	if string(sig[:3]) != "abc" || len(personal.signed) != 1 {
		t.Fatalf("unexpected signature %x", sig)
	}
}

type relayCall struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// relayService answers the wc_* methods of a pairing relay with one scripted wallet.
type relayService struct {
	mu           sync.Mutex
	approve      bool
	account      common.Address
	projectID    string
	relayed      []string
	disconnected []string
}

func (s *relayService) Pair(params map[string]any) pairingProposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projectID, _ = params["projectId"].(string)
	return pairingProposal{URI: "wc:topic-1@2?relay-protocol=irn", Topic: "topic-1"}
}

func (s *relayService) AwaitSession(topic string) bool {
	return s.approve && topic == "topic-1"
}

func (s *relayService) Request(topic string, call relayCall) (any, error) {
	s.mu.Lock()
	s.relayed = append(s.relayed, call.Method)
	s.mu.Unlock()
	if topic != "topic-1" {
		return nil, fmt.Errorf("unknown topic %s", topic)
	}
	switch call.Method {
	case "eth_accounts":
		return []common.Address{s.account}, nil
	case "eth_chainId":
		return (*hexutil.Big)(big.NewInt(5)), nil
	case "personal_sign":
		var data hexutil.Bytes
		if len(call.Params) == 0 || json.Unmarshal(call.Params[0], &data) != nil {
			return nil, fmt.Errorf("bad personal_sign params")
		}
		sig := make([]byte, 65)
		copy(sig, data)
		sig[64] = 28
		return hexutil.Bytes(sig), nil
	default:
		return nil, fmt.Errorf("unsupported method %s", call.Method)
	}
}

func (s *relayService) Disconnect(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnected = append(s.disconnected, topic)
}

func startRelay(t *testing.T, relay *relayService) string {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("wc", relay); err != nil {
		t.Fatalf("register wc: %v", err)
	}
	srv := httptest.NewServer(server.WebsocketHandler([]string{"*"}))
	t.Cleanup(func() {
		srv.Close()
		server.Stop()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestOpenWalletConnectOverPairingRelay(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	relay := &relayService{approve: true, account: account}
	url := startRelay(t, relay)

	var prompt bytes.Buffer
	sess, err := Open(context.Background(), Options{Kind: KindWalletConnect, RelayURL: url, ProjectID: "proj-1", Prompt: &prompt})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !strings.Contains(prompt.String(), "wc:topic-1@2?relay-protocol=irn") {
		t.Fatalf("expected pairing uri on prompt, got %q", prompt.String())
	}
	relay.mu.Lock()
	projectID := relay.projectID
	relay.mu.Unlock()
	if projectID != "proj-1" {
		t.Fatalf("expected project id to reach the relay, got %q", projectID)
	}
	if sess.Address() != account || sess.ChainID() != 5 {
		t.Fatalf("unexpected session %s chain=%d", sess.Address().Hex(), sess.ChainID())
	}

	sig, err := sess.SignMessage(context.Background(), []byte("abc"))
	if err != nil {
		t.Fatalf("SignMessage failed: %v", err)
	}
	if len(sig) != 65 || string(sig[:3]) != "abc" {
		t.Fatalf("unexpected signature %x", sig)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	relay.mu.Lock()
	defer relay.mu.Unlock()
	want := []string{"eth_accounts", "eth_chainId", "personal_sign"}
	if strings.Join(relay.relayed, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected relayed methods %v", relay.relayed)
	}
	if len(relay.disconnected) != 1 || relay.disconnected[0] != "topic-1" {
		t.Fatalf("expected one disconnect for topic-1, got %v", relay.disconnected)
	}
}

func TestOpenWalletConnectRejectedPairing(t *testing.T) {
	relay := &relayService{approve: false}
	url := startRelay(t, relay)

	_, err := Open(context.Background(), Options{Kind: KindWalletConnect, RelayURL: url, ProjectID: "proj-1"})
	if !clierr.Is(err, clierr.CodeUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	relay.mu.Lock()
	defer relay.mu.Unlock()
	if len(relay.relayed) != 0 {
		t.Fatalf("no wallet request should be relayed after a rejection, got %v", relay.relayed)
	}
}

func TestOpenWalletConnectRequiresProjectID(t *testing.T) {
	_, err := Open(context.Background(), Options{Kind: KindWalletConnect, RelayURL: "ws://127.0.0.1:1"})
	if !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestParseKind(t *testing.T) {
	if kind, err := ParseKind(""); err != nil || kind != KindLocal {
		t.Fatalf("expected local default, got %q err=%v", kind, err)
	}
	if kind, err := ParseKind("WalletConnect"); err != nil || kind != KindWalletConnect {
		t.Fatalf("expected walletconnect, got %q err=%v", kind, err)
	}
	if _, err := ParseKind("metamask"); !clierr.Is(err, clierr.CodeUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}
