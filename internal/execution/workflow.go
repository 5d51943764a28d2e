package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
)

// FundingRequirement describes the L1 funds a transaction spends.
type FundingRequirement struct {
	// Required is the total amount the controller must find staged on the rollup contract.
	Required *big.Int
	// Native assets are sent with the deposit and need no token allowance.
	Native bool
}

// FundingState is recomputed from the controller on every run.
type FundingState struct {
	PendingFunds     *big.Int
	Allowance        *big.Int
	AllowanceChecked bool
	DepositNeeded    bool
	ApproveNeeded    bool
}

// Workflow drives a controller from the funding checks through submission.
// It keeps no state between runs; the store only receives an audit trail.
type Workflow struct {
	store  *Store
	logger *slog.Logger
}

type Option func(*Workflow)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewWorkflow(store *Store, opts ...Option) *Workflow {
	w := &Workflow{store: store, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type run struct {
	ctrl    rollup.Controller
	funding rollup.FundingController
	req     FundingRequirement
	state   FundingState
	txID    rollup.TxID
	action  *Action
}

type handler func(ctx context.Context, r *run) (State, error)

// Run executes the workflow. A nil requirement goes straight to proof construction;
// otherwise ctrl must be a rollup.FundingController.
func (w *Workflow) Run(ctx context.Context, action *Action, ctrl rollup.Controller, req *FundingRequirement) (rollup.TxID, error) {
	if action == nil {
		return rollup.TxID{}, clierr.New(clierr.CodeInternal, "missing action")
	}
	if ctrl == nil {
		return rollup.TxID{}, clierr.New(clierr.CodeInternal, "missing controller")
	}

	r := &run{ctrl: ctrl, action: action}
	start := StateBuildProof
	if req != nil {
		funding, ok := ctrl.(rollup.FundingController)
		if !ok {
			return rollup.TxID{}, clierr.New(clierr.CodeInternal, fmt.Sprintf("%s controller cannot stage funds", action.Operation))
		}
		if req.Required == nil || req.Required.Sign() < 0 {
			return rollup.TxID{}, clierr.New(clierr.CodeUsage, "required funding must be non-negative")
		}
		r.funding = funding
		r.req = *req
		start = StateCheckPendingFunds
	}

	action.Status = ActionStatusRunning
	action.Touch()
	w.save(action)

	state := start
	for state != StateDone {
		h := handlerFor(state)
		if h == nil {
			return rollup.TxID{}, clierr.New(clierr.CodeInternal, fmt.Sprintf("no handler for state %s", state))
		}
		w.logger.Debug("workflow state", "action_id", action.ActionID, "state", state)
		next, err := h(ctx, r)
		if err != nil {
			action.Status = ActionStatusFailed
			action.Error = err.Error()
			action.addFailedStep(state, err)
			w.save(action)
			return rollup.TxID{}, classify(state, err)
		}
		if stateIndex(next) <= stateIndex(state) {
			return rollup.TxID{}, clierr.New(clierr.CodeInternal, fmt.Sprintf("workflow moved backwards from %s to %s", state, next))
		}
		for _, skipped := range states[stateIndex(state)+1 : stateIndex(next)] {
			action.addStep(skipped, StepStatusSkipped, nil, "")
		}
		w.save(action)
		state = next
	}

	action.Status = ActionStatusCompleted
	action.TxID = r.txID.String()
	action.Touch()
	w.save(action)
	w.logger.Info("transaction submitted", "action_id", action.ActionID, "tx_id", action.TxID)
	return r.txID, nil
}

func handlerFor(state State) handler {
	switch state {
	case StateCheckPendingFunds:
		return checkPendingFunds
	case StateCheckAllowance:
		return checkAllowance
	case StateApprove:
		return approve
	case StateAwaitApprove:
		return awaitApprove
	case StateDeposit:
		return deposit
	case StateAwaitDeposit:
		return awaitDeposit
	case StateBuildProof:
		return buildProof
	case StateSign:
		return sign
	case StateSubmit:
		return submit
	default:
		return nil
	}
}

func checkPendingFunds(ctx context.Context, r *run) (State, error) {
	pending, err := r.funding.GetPendingFunds(ctx)
	if err != nil {
		return "", err
	}
	if pending == nil {
		pending = new(big.Int)
	}
	r.state.PendingFunds = pending
	r.state.DepositNeeded = pending.Cmp(r.req.Required) < 0
	if !r.state.DepositNeeded {
		r.action.addStep(StateCheckPendingFunds, StepStatusCompleted, pending, "pending funds cover the requirement")
		return StateBuildProof, nil
	}
	r.action.addStep(StateCheckPendingFunds, StepStatusCompleted, pending, "")
	if r.req.Native {
		return StateDeposit, nil
	}
	return StateCheckAllowance, nil
}

func checkAllowance(ctx context.Context, r *run) (State, error) {
	allowance, err := r.funding.GetPublicAllowance(ctx)
	if err != nil {
		return "", err
	}
	if allowance == nil {
		allowance = new(big.Int)
	}
	r.state.Allowance = allowance
	r.state.AllowanceChecked = true
	r.state.ApproveNeeded = allowance.Cmp(r.req.Required) < 0
	r.action.addStep(StateCheckAllowance, StepStatusCompleted, allowance, "")
	if !r.state.ApproveNeeded {
		return StateDeposit, nil
	}
	return StateApprove, nil
}

func approve(ctx context.Context, r *run) (State, error) {
	if err := r.funding.Approve(ctx, r.req.Required); err != nil {
		return "", err
	}
	r.action.addStep(StateApprove, StepStatusCompleted, r.req.Required, "")
	return StateAwaitApprove, nil
}

func awaitApprove(ctx context.Context, r *run) (State, error) {
	if err := r.funding.AwaitApprove(ctx); err != nil {
		return "", err
	}
	r.action.addStep(StateAwaitApprove, StepStatusCompleted, nil, "")
	return StateDeposit, nil
}

func deposit(ctx context.Context, r *run) (State, error) {
	amount := new(big.Int).Sub(r.req.Required, r.state.PendingFunds)
	if err := r.funding.DepositFundsToContract(ctx, amount); err != nil {
		return "", err
	}
	r.action.addStep(StateDeposit, StepStatusCompleted, amount, "")
	return StateAwaitDeposit, nil
}

func awaitDeposit(ctx context.Context, r *run) (State, error) {
	if err := r.funding.AwaitDepositFundsToContract(ctx); err != nil {
		return "", err
	}
	r.action.addStep(StateAwaitDeposit, StepStatusCompleted, nil, "")
	return StateBuildProof, nil
}

func buildProof(ctx context.Context, r *run) (State, error) {
	if err := r.ctrl.CreateProof(ctx); err != nil {
		return "", err
	}
	r.action.addStep(StateBuildProof, StepStatusCompleted, nil, "")
	return StateSign, nil
}

func sign(ctx context.Context, r *run) (State, error) {
	if err := r.ctrl.Sign(ctx); err != nil {
		return "", err
	}
	r.action.addStep(StateSign, StepStatusCompleted, nil, "")
	return StateSubmit, nil
}

func submit(ctx context.Context, r *run) (State, error) {
	txID, err := r.ctrl.Send(ctx)
	if err != nil {
		return "", err
	}
	r.txID = txID
	r.action.addStep(StateSubmit, StepStatusCompleted, nil, txID.String())
	return StateDone, nil
}

func classify(state State, err error) error {
	if state.IsFunding() {
		return clierr.Wrap(clierr.CodeFunding, fmt.Sprintf("%s failed", state), err)
	}
	return clierr.Wrap(clierr.CodeSubmission, fmt.Sprintf("%s failed", state), err)
}

func (w *Workflow) save(action *Action) {
	if w.store == nil {
		return
	}
	if err := w.store.Save(*action); err != nil {
		w.logger.Warn("record action", "action_id", action.ActionID, "error", err)
	}
}
