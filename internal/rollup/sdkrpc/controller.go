package sdkrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// Wire forms of the controller parameters. Private keys travel hex encoded and only to
// the host.
type (
	registerRequest struct {
		rollup.RegisterParams
		AccountPrivateKey string `json:"accountPrivateKey"`
	}
	signedRequest struct {
		SignerPublicKey  rollup.PublicKey `json:"signerPublicKey"`
		SignerPrivateKey string           `json:"signerPrivateKey"`
	}
	transferRequest struct {
		rollup.TransferParams
		signedRequest
	}
	withdrawRequest struct {
		rollup.WithdrawParams
		signedRequest
	}
	defiRequest struct {
		rollup.DefiParams
		signedRequest
	}
	addSpendingKeyRequest struct {
		rollup.AddSpendingKeyParams
		signedRequest
	}
)

func signed(kp rollup.KeyPair) signedRequest {
	return signedRequest{SignerPublicKey: kp.PublicKey, SignerPrivateKey: kp.PrivateKey.Hex()}
}

// l1Tx is an Ethereum transaction the host wants the wallet to send.
type l1Tx struct {
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

type sendTxArgs struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Data  hexutil.Bytes  `json:"data,omitempty"`
	Value *hexutil.Big   `json:"value,omitempty"`
}

// signRequest is the host's answer to aztec_controllerSign. SigningData is set when the
// proof must be signed by the depositor's Ethereum wallet.
type signRequest struct {
	SigningData hexutil.Bytes `json:"signingData,omitempty"`
}

type controller struct {
	client *Client
	handle string

	// hash of the last L1 transaction sent for this controller, awaited by the next Await call.
	pendingTx common.Hash
}

func (c *Client) createController(ctx context.Context, method string, req any) (*controller, error) {
	var handle string
	if err := c.call(ctx, &handle, method, req); err != nil {
		return nil, err
	}
	if handle == "" {
		return nil, fmt.Errorf("%s: host returned empty controller handle", method)
	}
	return &controller{client: c, handle: handle}, nil
}

func (c *Client) CreateDepositController(ctx context.Context, params rollup.DepositParams) (rollup.FundingController, error) {
	return c.createController(ctx, "aztec_createDepositController", params)
}

func (c *Client) CreateRegisterController(ctx context.Context, params rollup.RegisterParams) (rollup.FundingController, error) {
	return c.createController(ctx, "aztec_createRegisterController", registerRequest{
		RegisterParams:    params,
		AccountPrivateKey: params.AccountPrivateKey.Hex(),
	})
}

func (c *Client) CreateRecoverAccountController(ctx context.Context, params rollup.RecoverAccountParams) (rollup.FundingController, error) {
	return c.createController(ctx, "aztec_createRecoverAccountController", params)
}

func (c *Client) CreateTransferController(ctx context.Context, params rollup.TransferParams) (rollup.Controller, error) {
	return c.createController(ctx, "aztec_createTransferController", transferRequest{TransferParams: params, signedRequest: signed(params.Signer)})
}

func (c *Client) CreateWithdrawController(ctx context.Context, params rollup.WithdrawParams) (rollup.Controller, error) {
	return c.createController(ctx, "aztec_createWithdrawController", withdrawRequest{WithdrawParams: params, signedRequest: signed(params.Signer)})
}

func (c *Client) CreateDefiController(ctx context.Context, params rollup.DefiParams) (rollup.Controller, error) {
	return c.createController(ctx, "aztec_createDefiController", defiRequest{DefiParams: params, signedRequest: signed(params.Signer)})
}

func (c *Client) CreateAddSpendingKeyController(ctx context.Context, params rollup.AddSpendingKeyParams) (rollup.Controller, error) {
	return c.createController(ctx, "aztec_createAddSpendingKeyController", addSpendingKeyRequest{AddSpendingKeyParams: params, signedRequest: signed(params.Signer)})
}

func (ct *controller) amount(ctx context.Context, method string) (*big.Int, error) {
	var v *hexutil.Big
	if err := ct.client.call(ctx, &v, method, ct.handle); err != nil {
		return nil, err
	}
	return toBig(v), nil
}

func (ct *controller) GetPendingFunds(ctx context.Context) (*big.Int, error) {
	return ct.amount(ctx, "aztec_controllerGetPendingFunds")
}

func (ct *controller) GetPublicAllowance(ctx context.Context) (*big.Int, error) {
	return ct.amount(ctx, "aztec_controllerGetPublicAllowance")
}

func (ct *controller) Approve(ctx context.Context, amount *big.Int) error {
	return ct.sendL1(ctx, "aztec_controllerApprove", amount)
}

func (ct *controller) AwaitApprove(ctx context.Context) error {
	return ct.client.call(ctx, nil, "aztec_controllerAwaitApprove", ct.handle, ct.pendingTx)
}

func (ct *controller) DepositFundsToContract(ctx context.Context, amount *big.Int) error {
	return ct.sendL1(ctx, "aztec_controllerDepositFundsToContract", amount)
}

func (ct *controller) AwaitDepositFundsToContract(ctx context.Context) error {
	return ct.client.call(ctx, nil, "aztec_controllerAwaitDepositFundsToContract", ct.handle, ct.pendingTx)
}

// sendL1 asks the host to prepare an L1 transaction and sends it from the wallet.
func (ct *controller) sendL1(ctx context.Context, method string, amount *big.Int) error {
	var tx *l1Tx
	if err := ct.client.call(ctx, &tx, method, ct.handle, (*hexutil.Big)(amount)); err != nil {
		return err
	}
	if tx == nil {
		return fmt.Errorf("%s: host returned no transaction", method)
	}
	w := ct.client.wallet
	if w == nil {
		return fmt.Errorf("%s: no wallet connected to send the transaction", method)
	}
	ct.client.logger.Info("sending ethereum transaction from wallet", "to", tx.To.Hex(), "from", w.Address().Hex())
	var hash common.Hash
	if err := w.Request(ctx, &hash, "eth_sendTransaction", sendTxArgs{From: w.Address(), To: tx.To, Data: tx.Data, Value: tx.Value}); err != nil {
		return fmt.Errorf("eth_sendTransaction: %w", err)
	}
	ct.pendingTx = hash
	return nil
}

func (ct *controller) CreateProof(ctx context.Context) error {
	ct.client.logger.Info("creating proof")
	return ct.client.call(ctx, nil, "aztec_controllerCreateProof", ct.handle)
}

func (ct *controller) Sign(ctx context.Context) error {
	var req signRequest
	if err := ct.client.call(ctx, &req, "aztec_controllerSign", ct.handle); err != nil {
		return err
	}
	if len(req.SigningData) == 0 {
		return nil
	}
	w := ct.client.wallet
	if w == nil {
		return fmt.Errorf("aztec_controllerSign: proof requires a wallet signature but no wallet is connected")
	}
	sig, err := w.SignMessage(ctx, req.SigningData)
	if err != nil {
		return err
	}
	return ct.client.call(ctx, nil, "aztec_controllerSubmitSignature", ct.handle, hexutil.Bytes(sig))
}

func (ct *controller) Send(ctx context.Context) (rollup.TxID, error) {
	var id rollup.TxID
	err := ct.client.call(ctx, &id, "aztec_controllerSend", ct.handle)
	return id, err
}
