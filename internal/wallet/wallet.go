// Package wallet connects to the user's Ethereum wallet. The rest of the CLI only sees
// Session, whichever transport backs it.
package wallet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
)

const (
	KindLocal         = "local"
	KindWalletConnect = "walletconnect"
	KindKey           = "key"

	DefaultLocalRPCURL = "http://localhost:24012/rpc"
	DefaultRelayURL    = "wss://relay.walletconnect.com"
)

// Transport is a raw JSON-RPC channel to a wallet.
type Transport interface {
	Request(ctx context.Context, result any, method string, params ...any) error
	Close() error
}

// Session is a connected wallet with a known account and chain.
type Session interface {
	Transport
	Address() common.Address
	ChainID() int64
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

type Options struct {
	Kind string

	// local
	RPCURL string

	// walletconnect
	RelayURL  string
	ProjectID string

	// key
	KeySource  string
	PrivateKey string
	EthRPCURL  string
	ChainID    int64

	// Prompt receives pairing URIs and password prompts.
	Prompt io.Writer
	Logger *slog.Logger
}

func ParseKind(input string) (string, error) {
	switch kind := strings.ToLower(strings.TrimSpace(input)); kind {
	case "", KindLocal:
		return KindLocal, nil
	case KindWalletConnect, KindKey:
		return kind, nil
	default:
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported wallet %q (expected %s|%s|%s)", input, KindLocal, KindWalletConnect, KindKey))
	}
}

// Open dials the configured transport and reads the wallet's account and chain.
func Open(ctx context.Context, opts Options) (Session, error) {
	kind, err := ParseKind(opts.Kind)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Prompt == nil {
		opts.Prompt = io.Discard
	}

	var transport Transport
	switch kind {
	case KindLocal:
		transport, err = dialLocal(ctx, opts)
	case KindWalletConnect:
		transport, err = dialPairing(ctx, opts)
	case KindKey:
		transport, err = openKey(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	sess, err := handshake(ctx, transport, opts.Logger)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	opts.Logger.Debug("wallet connected", "wallet", kind, "address", sess.address.Hex(), "chain_id", sess.chainID)
	return sess, nil
}

type session struct {
	Transport
	address common.Address
	chainID int64
	logger  *slog.Logger
}

func handshake(ctx context.Context, transport Transport, logger *slog.Logger) (*session, error) {
	var accounts []common.Address
	if err := transport.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "wallet eth_accounts", err)
	}
	if len(accounts) == 0 {
		return nil, clierr.New(clierr.CodeUnavailable, "wallet exposed no accounts")
	}
	var chainID hexutil.Big
	if err := transport.Request(ctx, &chainID, "eth_chainId"); err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "wallet eth_chainId", err)
	}
	id := (*big.Int)(&chainID)
	if !id.IsInt64() || id.Sign() <= 0 {
		return nil, clierr.New(clierr.CodeUnavailable, fmt.Sprintf("wallet returned invalid chain id %s", id))
	}
	return &session{Transport: transport, address: accounts[0], chainID: id.Int64(), logger: logger}, nil
}

func (s *session) Address() common.Address { return s.address }

func (s *session) ChainID() int64 { return s.chainID }

// SignMessage asks the wallet for an EIP-191 personal signature.
func (s *session) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	s.logger.Info("awaiting wallet signature", "address", s.address.Hex())
	var sig hexutil.Bytes
	if err := s.Request(ctx, &sig, "personal_sign", hexutil.Bytes(message), s.address); err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("personal_sign: expected 65-byte signature, got %d", len(sig))
	}
	return sig, nil
}
