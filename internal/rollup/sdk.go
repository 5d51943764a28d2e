package rollup

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MessageSigner produces an Ethereum personal-message signature from the connected wallet.
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// User is a rollup account the SDK tracks locally.
type User interface {
	PublicKey() PublicKey
	// AwaitSynchronised blocks until the local view of the account matches the network.
	AwaitSynchronised(ctx context.Context) error
}

// Keys derives and syncs rollup accounts.
type Keys interface {
	DerivePublicKey(ctx context.Context, privateKey PrivateKey) (PublicKey, error)
	// GenerateAccountKeyPair prompts the wallet for the deterministic account key signature.
	GenerateAccountKeyPair(ctx context.Context, owner common.Address, signer MessageSigner) (KeyPair, error)
	// GenerateSpendingKeyPair prompts the wallet for the deterministic spending key signature.
	GenerateSpendingKeyPair(ctx context.Context, owner common.Address, signer MessageSigner) (KeyPair, error)
	UserExists(ctx context.Context, publicKey PublicKey) (bool, error)
	AddUser(ctx context.Context, privateKey PrivateKey) (User, error)
	GetUser(ctx context.Context, publicKey PublicKey) (User, error)
}

// Registry answers on-chain account registration queries.
type Registry interface {
	IsAccountRegistered(ctx context.Context, publicKey PublicKey) (bool, error)
}

// Directory resolves human-readable aliases.
type Directory interface {
	IsAliasRegistered(ctx context.Context, alias string) (bool, error)
	// GetAccountPublicKey returns false when the alias has no account.
	GetAccountPublicKey(ctx context.Context, alias string) (PublicKey, bool, error)
}

// Fees returns tier-indexed fee quotes. Payment tiers are [next, instant];
// DeFi tiers are [deadline, next, instant].
type Fees interface {
	GetDepositFees(ctx context.Context, assetID uint32) ([]AssetValue, error)
	GetRegisterFees(ctx context.Context, assetID uint32) ([]AssetValue, error)
	GetTransferFees(ctx context.Context, assetID uint32) ([]AssetValue, error)
	GetWithdrawFees(ctx context.Context, assetID uint32, recipient common.Address) ([]AssetValue, error)
	GetAddSpendingKeyFees(ctx context.Context, assetID uint32) ([]AssetValue, error)
	GetDefiFees(ctx context.Context, bridge BridgeCallData) ([]AssetValue, error)
}

// Controllers builds per-operation transaction controllers.
type Controllers interface {
	CreateDepositController(ctx context.Context, params DepositParams) (FundingController, error)
	CreateRegisterController(ctx context.Context, params RegisterParams) (FundingController, error)
	CreateRecoverAccountController(ctx context.Context, params RecoverAccountParams) (FundingController, error)
	CreateTransferController(ctx context.Context, params TransferParams) (Controller, error)
	CreateWithdrawController(ctx context.Context, params WithdrawParams) (Controller, error)
	CreateDefiController(ctx context.Context, params DefiParams) (Controller, error)
	CreateAddSpendingKeyController(ctx context.Context, params AddSpendingKeyParams) (Controller, error)
}

// Reader exposes account state for read-only commands.
type Reader interface {
	GetBalance(ctx context.Context, publicKey PublicKey, assetID uint32) (AssetValue, error)
	GetSpendableSum(ctx context.Context, publicKey PublicKey, assetID uint32, opts SpendableOptions) (AssetValue, error)
	GetUserTxs(ctx context.Context, publicKey PublicKey) ([]UserTx, error)
	GenerateAccountRecoveryData(ctx context.Context, publicKey PublicKey, alias string, trustedThirdParties []PublicKey) ([]RecoveryData, error)
}

// SDK is the full rollup collaborator used by one CLI invocation.
type SDK interface {
	Keys
	Registry
	Directory
	Fees
	Controllers
	Reader
	// Destroy releases the session. It is safe to call more than once.
	Destroy(ctx context.Context) error
}

// Controller drives the proof and submission of one transaction.
type Controller interface {
	CreateProof(ctx context.Context) error
	Sign(ctx context.Context) error
	Send(ctx context.Context) (TxID, error)
}

// FundingController is a Controller whose transaction spends funds staged on L1.
type FundingController interface {
	Controller
	GetPendingFunds(ctx context.Context) (*big.Int, error)
	GetPublicAllowance(ctx context.Context) (*big.Int, error)
	Approve(ctx context.Context, amount *big.Int) error
	AwaitApprove(ctx context.Context) error
	DepositFundsToContract(ctx context.Context, amount *big.Int) error
	AwaitDepositFundsToContract(ctx context.Context) error
}

type DepositParams struct {
	Depositor                    common.Address `json:"depositor"`
	Value                        AssetValue     `json:"value"`
	Fee                          AssetValue     `json:"fee"`
	Recipient                    PublicKey      `json:"recipient"`
	RecipientSpendingKeyRequired bool           `json:"recipientSpendingKeyRequired"`
}

type RegisterParams struct {
	Account           PublicKey      `json:"account"`
	Alias             string         `json:"alias"`
	AccountPrivateKey PrivateKey     `json:"-"`
	SpendingPublicKey PublicKey      `json:"spendingPublicKey"`
	RecoveryPublicKey *PublicKey     `json:"recoveryPublicKey,omitempty"`
	Deposit           AssetValue     `json:"deposit"`
	Fee               AssetValue     `json:"fee"`
	Depositor         common.Address `json:"depositor"`
}

type RecoverAccountParams struct {
	RecoveryPayload string         `json:"recoveryPayload"`
	Deposit         AssetValue     `json:"deposit"`
	Fee             AssetValue     `json:"fee"`
	Depositor       common.Address `json:"depositor"`
}

type TransferParams struct {
	Account                      PublicKey  `json:"account"`
	Signer                       KeyPair    `json:"-"`
	Value                        AssetValue `json:"value"`
	Fee                          AssetValue `json:"fee"`
	Recipient                    PublicKey  `json:"recipient"`
	RecipientSpendingKeyRequired bool       `json:"recipientSpendingKeyRequired"`
}

type WithdrawParams struct {
	Account   PublicKey      `json:"account"`
	Signer    KeyPair        `json:"-"`
	Value     AssetValue     `json:"value"`
	Fee       AssetValue     `json:"fee"`
	Recipient common.Address `json:"recipient"`
}

type DefiParams struct {
	Account PublicKey      `json:"account"`
	Signer  KeyPair        `json:"-"`
	Bridge  BridgeCallData `json:"bridgeCallData"`
	Value   AssetValue     `json:"value"`
	Fee     AssetValue     `json:"fee"`
}

type AddSpendingKeyParams struct {
	Account      PublicKey  `json:"account"`
	Signer       KeyPair    `json:"-"`
	SpendingKey1 PublicKey  `json:"spendingKey1"`
	SpendingKey2 *PublicKey `json:"spendingKey2,omitempty"`
	Fee          AssetValue `json:"fee"`
}

// SpendableOptions selects which notes count towards a spendable sum.
type SpendableOptions struct {
	SpendingKeyRequired bool `json:"spendingKeyRequired"`
	ExcludePendingNotes bool `json:"excludePendingNotes"`
}

// UserTx is one entry of an account's transaction history.
type UserTx struct {
	TxID      TxID        `json:"txId"`
	Kind      string      `json:"kind"`
	Value     *AssetValue `json:"value,omitempty"`
	Fee       *AssetValue `json:"fee,omitempty"`
	Recipient string      `json:"recipient,omitempty"`
	Created   *time.Time  `json:"created,omitempty"`
	Settled   *time.Time  `json:"settled,omitempty"`
}

// RecoveryData lets a trusted third party help recover an account.
type RecoveryData struct {
	TrustedThirdPartyPublicKey PublicKey `json:"trustedThirdPartyPublicKey"`
	RecoveryPublicKey          PublicKey `json:"recoveryPublicKey"`
	RecoveryPayload            string    `json:"recoveryPayload"`
}
