package execution

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"time"
)

type ActionStatus string

type StepStatus string

const (
	ActionStatusPlanned   ActionStatus = "planned"
	ActionStatusRunning   ActionStatus = "running"
	ActionStatusCompleted ActionStatus = "completed"
	ActionStatusFailed    ActionStatus = "failed"
)

const (
	StepStatusCompleted StepStatus = "completed"
	StepStatusSkipped   StepStatus = "skipped"
	StepStatusFailed    StepStatus = "failed"
)

// State is one step of the funded transaction workflow.
type State string

const (
	StateCheckPendingFunds State = "check_pending_funds"
	StateCheckAllowance    State = "check_allowance"
	StateApprove           State = "approve"
	StateAwaitApprove      State = "await_approve"
	StateDeposit           State = "deposit_to_contract"
	StateAwaitDeposit      State = "await_deposit_to_contract"
	StateBuildProof        State = "build_proof"
	StateSign              State = "sign"
	StateSubmit            State = "submit"
	StateDone              State = "done"
)

// states is the canonical order; guards only ever move forward through it.
var states = []State{
	StateCheckPendingFunds,
	StateCheckAllowance,
	StateApprove,
	StateAwaitApprove,
	StateDeposit,
	StateAwaitDeposit,
	StateBuildProof,
	StateSign,
	StateSubmit,
	StateDone,
}

func stateIndex(s State) int {
	for i, v := range states {
		if v == s {
			return i
		}
	}
	return -1
}

// IsFunding reports whether s belongs to the L1 funding phase.
func (s State) IsFunding() bool {
	i := stateIndex(s)
	return i >= 0 && i < stateIndex(StateBuildProof)
}

type ActionStep struct {
	State  State      `json:"state"`
	Status StepStatus `json:"status"`
	Amount string     `json:"amount,omitempty"`
	Detail string     `json:"detail,omitempty"`
	Error  string     `json:"error,omitempty"`
	At     string     `json:"at"`
}

// Action is the audit record of one money-moving invocation.
type Action struct {
	ActionID    string         `json:"action_id"`
	Operation   string         `json:"operation"`
	Status      ActionStatus   `json:"status"`
	ChainID     int64          `json:"chain_id"`
	Wallet      string         `json:"wallet,omitempty"`
	Account     string         `json:"account,omitempty"`
	Asset       string         `json:"asset,omitempty"`
	Amount      string         `json:"amount,omitempty"`
	Fee         string         `json:"fee,omitempty"`
	Speed       string         `json:"speed,omitempty"`
	Recipient   string         `json:"recipient,omitempty"`
	TxID        string         `json:"tx_id,omitempty"`
	ExplorerURL string         `json:"explorer_url,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
	Steps       []ActionStep   `json:"steps"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewActionID returns a random run identifier prefixed with its UTC start time.
func NewActionID() string {
	var b [10]byte
	_, _ = rand.Read(b[:])
	return "run_" + time.Now().UTC().Format("20060102T150405") + "_" + hex.EncodeToString(b[:])
}

func NewAction(actionID, operation string, chainID int64) Action {
	now := time.Now().UTC().Format(time.RFC3339)
	return Action{
		ActionID:  actionID,
		Operation: operation,
		Status:    ActionStatusPlanned,
		ChainID:   chainID,
		CreatedAt: now,
		UpdatedAt: now,
		Steps:     []ActionStep{},
	}
}

func (a *Action) Touch() {
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
}

func (a *Action) addStep(state State, status StepStatus, amount *big.Int, detail string) {
	step := ActionStep{State: state, Status: status, Detail: detail, At: time.Now().UTC().Format(time.RFC3339)}
	if amount != nil {
		step.Amount = amount.String()
	}
	a.Steps = append(a.Steps, step)
	a.Touch()
}

func (a *Action) addFailedStep(state State, err error) {
	a.Steps = append(a.Steps, ActionStep{
		State:  state,
		Status: StepStatusFailed,
		Error:  err.Error(),
		At:     time.Now().UTC().Format(time.RFC3339),
	})
	a.Touch()
}

// StepStates lists the states recorded so far, in order.
func (a *Action) StepStates() []State {
	out := make([]State, 0, len(a.Steps))
	for _, s := range a.Steps {
		out = append(out, s.State)
	}
	return out
}
