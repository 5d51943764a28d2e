package rolluptest

import (
	"context"
	"math/big"
	"sync"

	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// Controller is a scripted funding controller. It starts with no pending funds and no allowance.
type Controller struct {
	mu sync.Mutex

	Calls        []string
	Errors       map[string]error
	PendingFunds *big.Int
	Allowance    *big.Int
	TxID         rollup.TxID

	Approved  *big.Int
	Deposited *big.Int
}

func NewController() *Controller {
	return &Controller{
		Errors:       map[string]error{},
		PendingFunds: new(big.Int),
		Allowance:    new(big.Int),
		TxID:         rollup.TxID{0xab, 0xcd},
	}
}

func (c *Controller) record(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, method)
	return c.Errors[method]
}

// Called reports whether method was invoked at least once.
func (c *Controller) Called(method string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.Calls {
		if call == method {
			return true
		}
	}
	return false
}

// Reset clears the call log but keeps the scripted state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = nil
}

func (c *Controller) GetPendingFunds(context.Context) (*big.Int, error) {
	if err := c.record("GetPendingFunds"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.PendingFunds), nil
}

func (c *Controller) GetPublicAllowance(context.Context) (*big.Int, error) {
	if err := c.record("GetPublicAllowance"); err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.Allowance), nil
}

func (c *Controller) Approve(_ context.Context, amount *big.Int) error {
	if err := c.record("Approve"); err != nil {
		return err
	}
	c.Approved = new(big.Int).Set(amount)
	return nil
}

func (c *Controller) AwaitApprove(context.Context) error {
	if err := c.record("AwaitApprove"); err != nil {
		return err
	}
	if c.Approved != nil {
		c.Allowance = new(big.Int).Set(c.Approved)
	}
	return nil
}

func (c *Controller) DepositFundsToContract(_ context.Context, amount *big.Int) error {
	if err := c.record("DepositFundsToContract"); err != nil {
		return err
	}
	c.Deposited = new(big.Int).Set(amount)
	return nil
}

func (c *Controller) AwaitDepositFundsToContract(context.Context) error {
	if err := c.record("AwaitDepositFundsToContract"); err != nil {
		return err
	}
	if c.Deposited != nil {
		c.PendingFunds = new(big.Int).Add(c.PendingFunds, c.Deposited)
	}
	return nil
}

func (c *Controller) CreateProof(context.Context) error {
	return c.record("CreateProof")
}

func (c *Controller) Sign(context.Context) error {
	return c.record("Sign")
}

func (c *Controller) Send(context.Context) (rollup.TxID, error) {
	if err := c.record("Send"); err != nil {
		return rollup.TxID{}, err
	}
	return c.TxID, nil
}

var _ rollup.FundingController = (*Controller)(nil)
