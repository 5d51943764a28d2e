// Package wallettest provides a scripted wallet session for tests.
package wallettest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ggonzalez94/aztec-cli/internal/wallet"
)

// Session signs deterministically: keccak(message), keccak(keccak(message)), then V=27.
type Session struct {
	mu sync.Mutex

	Account  common.Address
	Chain    int64
	SignErr  error
	Messages []string
	// Sent holds the params of every eth_sendTransaction request.
	Sent   [][]any
	Closed bool
}

func New() *Session {
	return &Session{
		Account: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Chain:   677868,
	}
}

func (s *Session) Address() common.Address { return s.Account }

func (s *Session) ChainID() int64 { return s.Chain }

func (s *Session) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, string(message))
	if s.SignErr != nil {
		return nil, s.SignErr
	}
	return Signature(message), nil
}

// Prompts returns how many signatures were requested.
func (s *Session) Prompts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages)
}

// Request answers eth_sendTransaction with a hash derived from the send count. Other
// methods are rejected.
func (s *Session) Request(_ context.Context, result any, method string, params ...any) error {
	if method != "eth_sendTransaction" {
		return fmt.Errorf("wallettest: unsupported method %s", method)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, params)
	hash, ok := result.(*common.Hash)
	if !ok {
		return errors.New("wallettest: eth_sendTransaction needs a *common.Hash result")
	}
	*hash = common.Hash{0xee, byte(len(s.Sent))}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

// Signature is the signature the fake produces for message.
func Signature(message []byte) []byte {
	first := crypto.Keccak256(message)
	sig := append(first, crypto.Keccak256(first)...)
	sig = append(sig, 27)
	return sig
}

var _ wallet.Session = (*Session)(nil)
