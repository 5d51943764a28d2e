// Package sdkrpc implements rollup.SDK against an SDK host speaking JSON-RPC. The host
// owns the proving system and the local account database; this client forwards every
// call and routes the Ethereum transactions and signatures the host asks for through
// the connected wallet.
package sdkrpc

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

const DefaultURL = "http://localhost:24013/rpc"

// Wallet sends the L1 transactions and signatures the host prepares.
type Wallet interface {
	rollup.MessageSigner
	Request(ctx context.Context, result any, method string, params ...any) error
	Address() common.Address
}

type Client struct {
	rpc    *rpc.Client
	wallet Wallet
	logger *slog.Logger

	destroyOnce sync.Once
	destroyErr  error
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithWallet(w Wallet) Option {
	return func(c *Client) { c.wallet = w }
}

func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultURL
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUnavailable, "connect rollup sdk host", err)
	}
	return newClient(client, opts...), nil
}

// NewWithRPC wraps an existing rpc client, such as an in-process server.
func NewWithRPC(client *rpc.Client, opts ...Option) *Client {
	return newClient(client, opts...)
}

func newClient(client *rpc.Client, opts ...Option) *Client {
	c := &Client{rpc: client, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InitParams points the host at a rollup deployment.
type InitParams struct {
	RollupProviderURL string         `json:"rollupProviderUrl"`
	ChainID           int64          `json:"chainId"`
	Depositor         common.Address `json:"depositor"`
}

// Init starts the host's SDK for one deployment and waits until it is running.
func (c *Client) Init(ctx context.Context, params InitParams) error {
	c.logger.Info("setting up the rollup sdk", "rollup_provider", params.RollupProviderURL, "chain_id", params.ChainID)
	if err := c.call(ctx, nil, "aztec_init", params); err != nil {
		return clierr.Wrap(clierr.CodeUnavailable, "initialise rollup sdk", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	c.logger.Debug("sdk call", "method", method)
	if err := c.rpc.CallContext(ctx, result, method, args...); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func (c *Client) DerivePublicKey(ctx context.Context, privateKey rollup.PrivateKey) (rollup.PublicKey, error) {
	var pub rollup.PublicKey
	err := c.call(ctx, &pub, "aztec_derivePublicKey", privateKey.Hex())
	return pub, err
}

func (c *Client) GenerateAccountKeyPair(ctx context.Context, owner common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error) {
	return c.signedKeyPair(ctx, "aztec_getAccountKeyMessage", owner, signer)
}

func (c *Client) GenerateSpendingKeyPair(ctx context.Context, owner common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error) {
	return c.signedKeyPair(ctx, "aztec_getSpendingKeyMessage", owner, signer)
}

// signedKeyPair asks the host for the deterministic message, has the wallet sign it and
// derives the key pair from the signature.
func (c *Client) signedKeyPair(ctx context.Context, method string, owner common.Address, signer rollup.MessageSigner) (rollup.KeyPair, error) {
	var message hexutil.Bytes
	if err := c.call(ctx, &message, method, owner); err != nil {
		return rollup.KeyPair{}, err
	}
	sig, err := signer.SignMessage(ctx, message)
	if err != nil {
		return rollup.KeyPair{}, err
	}
	priv, err := rollup.PrivateKeyFromSignature(sig)
	if err != nil {
		return rollup.KeyPair{}, err
	}
	pub, err := c.DerivePublicKey(ctx, priv)
	if err != nil {
		priv.Zero()
		return rollup.KeyPair{}, err
	}
	return rollup.KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

func (c *Client) UserExists(ctx context.Context, publicKey rollup.PublicKey) (bool, error) {
	var exists bool
	err := c.call(ctx, &exists, "aztec_userExists", publicKey)
	return exists, err
}

func (c *Client) AddUser(ctx context.Context, privateKey rollup.PrivateKey) (rollup.User, error) {
	var pub rollup.PublicKey
	if err := c.call(ctx, &pub, "aztec_addUser", privateKey.Hex()); err != nil {
		return nil, err
	}
	return &user{client: c, key: pub}, nil
}

func (c *Client) GetUser(ctx context.Context, publicKey rollup.PublicKey) (rollup.User, error) {
	var pub rollup.PublicKey
	if err := c.call(ctx, &pub, "aztec_getUser", publicKey); err != nil {
		return nil, err
	}
	return &user{client: c, key: pub}, nil
}

func (c *Client) IsAccountRegistered(ctx context.Context, publicKey rollup.PublicKey) (bool, error) {
	var registered bool
	err := c.call(ctx, &registered, "aztec_isAccountRegistered", publicKey, true)
	return registered, err
}

func (c *Client) IsAliasRegistered(ctx context.Context, alias string) (bool, error) {
	var registered bool
	err := c.call(ctx, &registered, "aztec_isAliasRegistered", alias, true)
	return registered, err
}

func (c *Client) GetAccountPublicKey(ctx context.Context, alias string) (rollup.PublicKey, bool, error) {
	var pub *rollup.PublicKey
	if err := c.call(ctx, &pub, "aztec_getAccountPublicKey", alias); err != nil {
		return rollup.PublicKey{}, false, err
	}
	if pub == nil || pub.IsZero() {
		return rollup.PublicKey{}, false, nil
	}
	return *pub, true, nil
}

func (c *Client) fees(ctx context.Context, method string, args ...any) ([]rollup.AssetValue, error) {
	var fees []rollup.AssetValue
	if err := c.call(ctx, &fees, method, args...); err != nil {
		return nil, err
	}
	return fees, nil
}

func (c *Client) GetDepositFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getDepositFees", assetID)
}

func (c *Client) GetRegisterFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getRegisterFees", assetID)
}

func (c *Client) GetTransferFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getTransferFees", assetID)
}

func (c *Client) GetWithdrawFees(ctx context.Context, assetID uint32, recipient common.Address) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getWithdrawFees", assetID, recipient)
}

func (c *Client) GetAddSpendingKeyFees(ctx context.Context, assetID uint32) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getAddSpendingKeyFees", assetID)
}

func (c *Client) GetDefiFees(ctx context.Context, bridge rollup.BridgeCallData) ([]rollup.AssetValue, error) {
	return c.fees(ctx, "aztec_getDefiFees", bridge)
}

func (c *Client) GetBalance(ctx context.Context, publicKey rollup.PublicKey, assetID uint32) (rollup.AssetValue, error) {
	var value rollup.AssetValue
	err := c.call(ctx, &value, "aztec_getBalance", publicKey, assetID)
	return value, err
}

func (c *Client) GetSpendableSum(ctx context.Context, publicKey rollup.PublicKey, assetID uint32, opts rollup.SpendableOptions) (rollup.AssetValue, error) {
	var value rollup.AssetValue
	err := c.call(ctx, &value, "aztec_getSpendableSum", publicKey, assetID, opts)
	return value, err
}

func (c *Client) GetUserTxs(ctx context.Context, publicKey rollup.PublicKey) ([]rollup.UserTx, error) {
	var txs []rollup.UserTx
	if err := c.call(ctx, &txs, "aztec_getUserTxs", publicKey); err != nil {
		return nil, err
	}
	return txs, nil
}

func (c *Client) GenerateAccountRecoveryData(ctx context.Context, publicKey rollup.PublicKey, alias string, trustedThirdParties []rollup.PublicKey) ([]rollup.RecoveryData, error) {
	var out []rollup.RecoveryData
	if err := c.call(ctx, &out, "aztec_generateAccountRecoveryData", publicKey, alias, trustedThirdParties); err != nil {
		return nil, err
	}
	return out, nil
}

// Destroy stops the host's SDK and closes the connection. Later calls return the first result.
func (c *Client) Destroy(ctx context.Context) error {
	c.destroyOnce.Do(func() {
		if err := c.call(ctx, nil, "aztec_destroy"); err != nil {
			c.destroyErr = err
		}
		c.rpc.Close()
	})
	return c.destroyErr
}

type user struct {
	client *Client
	key    rollup.PublicKey
}

func (u *user) PublicKey() rollup.PublicKey { return u.key }

func (u *user) AwaitSynchronised(ctx context.Context) error {
	return u.client.call(ctx, nil, "aztec_awaitUserSynchronised", u.key)
}

func toBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(v))
}

var _ rollup.SDK = (*Client)(nil)
