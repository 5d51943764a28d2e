// Package rolluptest provides an in-memory rollup collaborator for tests.
package rolluptest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// PublicKeyFor is the fake's deterministic key derivation.
func PublicKeyFor(privateKey rollup.PrivateKey) rollup.PublicKey {
	var out rollup.PublicKey
	first := crypto.Keccak256(privateKey[:])
	copy(out[:32], first)
	copy(out[32:], crypto.Keccak256(first))
	return out
}

// KeyPairFor returns the fake key pair for a private key.
func KeyPairFor(privateKey rollup.PrivateKey) rollup.KeyPair {
	return rollup.KeyPair{PublicKey: PublicKeyFor(privateKey), PrivateKey: privateKey}
}

const (
	AccountKeyMessage  = "fake account key message"
	SpendingKeyMessage = "fake spending key message"
)

// SDK records every call and answers from its fields. Errors keyed by method name
// are returned instead of the normal result.
type SDK struct {
	mu sync.Mutex

	Calls      []string
	Errors     map[string]error
	Users      map[rollup.PublicKey]bool
	Registered map[rollup.PublicKey]bool
	Aliases    map[string]rollup.PublicKey
	Fees       []rollup.AssetValue
	DefiFees   []rollup.AssetValue
	Balances   map[uint32]*big.Int
	Txs        []rollup.UserTx
	Recovery   []rollup.RecoveryData

	Funding    *Controller
	Controller *Controller

	LastDeposit        *rollup.DepositParams
	LastRegister       *rollup.RegisterParams
	LastRecover        *rollup.RecoverAccountParams
	LastTransfer       *rollup.TransferParams
	LastWithdraw       *rollup.WithdrawParams
	LastDefi           *rollup.DefiParams
	LastAddSpendingKey *rollup.AddSpendingKeyParams

	Destroyed bool
}

func NewSDK() *SDK {
	return &SDK{
		Errors:     map[string]error{},
		Users:      map[rollup.PublicKey]bool{},
		Registered: map[rollup.PublicKey]bool{},
		Aliases:    map[string]rollup.PublicKey{},
		Fees:       []rollup.AssetValue{rollup.NewAssetValue(0, big.NewInt(100)), rollup.NewAssetValue(0, big.NewInt(500))},
		DefiFees: []rollup.AssetValue{
			rollup.NewAssetValue(0, big.NewInt(10)),
			rollup.NewAssetValue(0, big.NewInt(20)),
			rollup.NewAssetValue(0, big.NewInt(30)),
		},
		Balances:   map[uint32]*big.Int{},
		Funding:    NewController(),
		Controller: NewController(),
	}
}

// Count returns how many times method was called.
func (s *SDK) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (s *SDK) record(method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, method)
	return s.Errors[method]
}

func (s *SDK) DerivePublicKey(_ context.Context, privateKey rollup.PrivateKey) (rollup.PublicKey, error) {
	if err := s.record("DerivePublicKey"); err != nil {
		return rollup.PublicKey{}, err
	}
	return PublicKeyFor(privateKey), nil
}

func (s *SDK) GenerateAccountKeyPair(ctx context.Context, _ common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error) {
	if err := s.record("GenerateAccountKeyPair"); err != nil {
		return rollup.KeyPair{}, err
	}
	return signedKeyPair(ctx, signer, AccountKeyMessage)
}

func (s *SDK) GenerateSpendingKeyPair(ctx context.Context, _ common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error) {
	if err := s.record("GenerateSpendingKeyPair"); err != nil {
		return rollup.KeyPair{}, err
	}
	return signedKeyPair(ctx, signer, SpendingKeyMessage)
}

func signedKeyPair(ctx context.Context, signer rollup.MessageSigner, message string) (rollup.KeyPair, error) {
	sig, err := signer.SignMessage(ctx, []byte(message))
	if err != nil {
		return rollup.KeyPair{}, err
	}
	priv, err := rollup.PrivateKeyFromSignature(sig)
	if err != nil {
		return rollup.KeyPair{}, err
	}
	return KeyPairFor(priv), nil
}

func (s *SDK) UserExists(_ context.Context, publicKey rollup.PublicKey) (bool, error) {
	if err := s.record("UserExists"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Users[publicKey], nil
}

func (s *SDK) AddUser(_ context.Context, privateKey rollup.PrivateKey) (rollup.User, error) {
	if err := s.record("AddUser"); err != nil {
		return nil, err
	}
	pub := PublicKeyFor(privateKey)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Users[pub] {
		return nil, fmt.Errorf("user already exists: %s", pub)
	}
	s.Users[pub] = true
	return &User{sdk: s, key: pub}, nil
}

func (s *SDK) GetUser(_ context.Context, publicKey rollup.PublicKey) (rollup.User, error) {
	if err := s.record("GetUser"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Users[publicKey] {
		return nil, fmt.Errorf("user not found: %s", publicKey)
	}
	return &User{sdk: s, key: publicKey}, nil
}

func (s *SDK) IsAccountRegistered(_ context.Context, publicKey rollup.PublicKey) (bool, error) {
	if err := s.record("IsAccountRegistered"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Registered[publicKey], nil
}

func (s *SDK) IsAliasRegistered(_ context.Context, alias string) (bool, error) {
	if err := s.record("IsAliasRegistered"); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Aliases[alias]
	return ok, nil
}

func (s *SDK) GetAccountPublicKey(_ context.Context, alias string) (rollup.PublicKey, bool, error) {
	if err := s.record("GetAccountPublicKey"); err != nil {
		return rollup.PublicKey{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.Aliases[alias]
	return key, ok, nil
}

func (s *SDK) fees(method string) ([]rollup.AssetValue, error) {
	if err := s.record(method); err != nil {
		return nil, err
	}
	return s.Fees, nil
}

func (s *SDK) GetDepositFees(context.Context, uint32) ([]rollup.AssetValue, error) {
	return s.fees("GetDepositFees")
}

func (s *SDK) GetRegisterFees(context.Context, uint32) ([]rollup.AssetValue, error) {
	return s.fees("GetRegisterFees")
}

func (s *SDK) GetTransferFees(context.Context, uint32) ([]rollup.AssetValue, error) {
	return s.fees("GetTransferFees")
}

func (s *SDK) GetWithdrawFees(context.Context, uint32, common.Address) ([]rollup.AssetValue, error) {
	return s.fees("GetWithdrawFees")
}

func (s *SDK) GetAddSpendingKeyFees(context.Context, uint32) ([]rollup.AssetValue, error) {
	return s.fees("GetAddSpendingKeyFees")
}

func (s *SDK) GetDefiFees(context.Context, rollup.BridgeCallData) ([]rollup.AssetValue, error) {
	if err := s.record("GetDefiFees"); err != nil {
		return nil, err
	}
	return s.DefiFees, nil
}

func (s *SDK) CreateDepositController(_ context.Context, params rollup.DepositParams) (rollup.FundingController, error) {
	if err := s.record("CreateDepositController"); err != nil {
		return nil, err
	}
	s.LastDeposit = &params
	return s.Funding, nil
}

func (s *SDK) CreateRegisterController(_ context.Context, params rollup.RegisterParams) (rollup.FundingController, error) {
	if err := s.record("CreateRegisterController"); err != nil {
		return nil, err
	}
	s.LastRegister = &params
	return s.Funding, nil
}

func (s *SDK) CreateRecoverAccountController(_ context.Context, params rollup.RecoverAccountParams) (rollup.FundingController, error) {
	if err := s.record("CreateRecoverAccountController"); err != nil {
		return nil, err
	}
	s.LastRecover = &params
	return s.Funding, nil
}

func (s *SDK) CreateTransferController(_ context.Context, params rollup.TransferParams) (rollup.Controller, error) {
	if err := s.record("CreateTransferController"); err != nil {
		return nil, err
	}
	s.LastTransfer = &params
	return s.Controller, nil
}

func (s *SDK) CreateWithdrawController(_ context.Context, params rollup.WithdrawParams) (rollup.Controller, error) {
	if err := s.record("CreateWithdrawController"); err != nil {
		return nil, err
	}
	s.LastWithdraw = &params
	return s.Controller, nil
}

func (s *SDK) CreateDefiController(_ context.Context, params rollup.DefiParams) (rollup.Controller, error) {
	if err := s.record("CreateDefiController"); err != nil {
		return nil, err
	}
	s.LastDefi = &params
	return s.Controller, nil
}

func (s *SDK) CreateAddSpendingKeyController(_ context.Context, params rollup.AddSpendingKeyParams) (rollup.Controller, error) {
	if err := s.record("CreateAddSpendingKeyController"); err != nil {
		return nil, err
	}
	s.LastAddSpendingKey = &params
	return s.Controller, nil
}

func (s *SDK) GetBalance(_ context.Context, _ rollup.PublicKey, assetID uint32) (rollup.AssetValue, error) {
	if err := s.record("GetBalance"); err != nil {
		return rollup.AssetValue{}, err
	}
	return rollup.NewAssetValue(assetID, s.Balances[assetID]), nil
}

func (s *SDK) GetSpendableSum(_ context.Context, _ rollup.PublicKey, assetID uint32, _ rollup.SpendableOptions) (rollup.AssetValue, error) {
	if err := s.record("GetSpendableSum"); err != nil {
		return rollup.AssetValue{}, err
	}
	return rollup.NewAssetValue(assetID, s.Balances[assetID]), nil
}

func (s *SDK) GetUserTxs(context.Context, rollup.PublicKey) ([]rollup.UserTx, error) {
	if err := s.record("GetUserTxs"); err != nil {
		return nil, err
	}
	return s.Txs, nil
}

func (s *SDK) GenerateAccountRecoveryData(_ context.Context, _ rollup.PublicKey, _ string, ttps []rollup.PublicKey) ([]rollup.RecoveryData, error) {
	if err := s.record("GenerateAccountRecoveryData"); err != nil {
		return nil, err
	}
	if s.Recovery != nil {
		return s.Recovery, nil
	}
	out := make([]rollup.RecoveryData, 0, len(ttps))
	for i, ttp := range ttps {
		recovery := PublicKeyFor(rollup.PrivateKey{byte(i + 1)})
		out = append(out, rollup.RecoveryData{
			TrustedThirdPartyPublicKey: ttp,
			RecoveryPublicKey:          recovery,
			RecoveryPayload:            fmt.Sprintf("0xrecovery%02d", i),
		})
	}
	return out, nil
}

func (s *SDK) Destroy(context.Context) error {
	_ = s.record("Destroy")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Destroyed = true
	return nil
}

// User is the fake account handle.
type User struct {
	sdk *SDK
	key rollup.PublicKey
}

func (u *User) PublicKey() rollup.PublicKey { return u.key }

func (u *User) AwaitSynchronised(context.Context) error {
	return u.sdk.record("AwaitSynchronised")
}

var _ rollup.SDK = (*SDK)(nil)
