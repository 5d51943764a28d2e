package execution

import (
	"context"
	"errors"
	"math/big"
	"reflect"
	"testing"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/rollup/rolluptest"
)

func eth(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

func newAction() *Action {
	a := NewAction(NewActionID(), "deposit", 677868)
	return &a
}

func TestFreshNativeDepositRunsFullSequence(t *testing.T) {
	ctrl := rolluptest.NewController()
	action := newAction()

	txID, err := NewWorkflow(nil).Run(context.Background(), action, ctrl, &FundingRequirement{Required: eth(1), Native: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if txID != ctrl.TxID {
		t.Fatalf("unexpected tx id %s", txID)
	}
	want := []string{"GetPendingFunds", "DepositFundsToContract", "AwaitDepositFundsToContract", "CreateProof", "Sign", "Send"}
	if !reflect.DeepEqual(ctrl.Calls, want) {
		t.Fatalf("unexpected calls:\n got %v\nwant %v", ctrl.Calls, want)
	}
	if ctrl.Deposited.Cmp(eth(1)) != 0 {
		t.Fatalf("expected full deposit, got %s", ctrl.Deposited)
	}
	if action.Status != ActionStatusCompleted || action.TxID != txID.String() {
		t.Fatalf("unexpected action %+v", action)
	}
	wantStates := []State{StateCheckPendingFunds, StateCheckAllowance, StateApprove, StateAwaitApprove, StateDeposit, StateAwaitDeposit, StateBuildProof, StateSign, StateSubmit}
	if !reflect.DeepEqual(action.StepStates(), wantStates) {
		t.Fatalf("unexpected recorded states %v", action.StepStates())
	}
	if action.Steps[1].Status != StepStatusSkipped {
		t.Fatalf("expected allowance check skipped for native asset, got %s", action.Steps[1].Status)
	}
}

func TestPendingFundsShortCircuit(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.PendingFunds = eth(2)

	if _, err := NewWorkflow(nil).Run(context.Background(), newAction(), ctrl, &FundingRequirement{Required: eth(1)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, method := range []string{"GetPublicAllowance", "Approve", "AwaitApprove", "DepositFundsToContract", "AwaitDepositFundsToContract"} {
		if ctrl.Called(method) {
			t.Fatalf("did not expect %s when pending funds suffice", method)
		}
	}
	if !ctrl.Called("Send") {
		t.Fatal("expected submission")
	}
}

func TestTokenAllowanceGating(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.Allowance = eth(5)

	if _, err := NewWorkflow(nil).Run(context.Background(), newAction(), ctrl, &FundingRequirement{Required: eth(1)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ctrl.Called("Approve") {
		t.Fatal("did not expect approve with sufficient allowance")
	}
	if !ctrl.Called("GetPublicAllowance") || !ctrl.Called("DepositFundsToContract") {
		t.Fatalf("unexpected calls %v", ctrl.Calls)
	}
}

func TestTokenWithoutAllowanceApprovesRequired(t *testing.T) {
	ctrl := rolluptest.NewController()

	if _, err := NewWorkflow(nil).Run(context.Background(), newAction(), ctrl, &FundingRequirement{Required: eth(3)}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"GetPendingFunds", "GetPublicAllowance", "Approve", "AwaitApprove", "DepositFundsToContract", "AwaitDepositFundsToContract", "CreateProof", "Sign", "Send"}
	if !reflect.DeepEqual(ctrl.Calls, want) {
		t.Fatalf("unexpected calls %v", ctrl.Calls)
	}
	if ctrl.Approved.Cmp(eth(3)) != 0 {
		t.Fatalf("expected approve of required value, got %s", ctrl.Approved)
	}
}

func TestPartialPendingFundsDepositsShortfall(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.PendingFunds = big.NewInt(400)

	if _, err := NewWorkflow(nil).Run(context.Background(), newAction(), ctrl, &FundingRequirement{Required: big.NewInt(1000), Native: true}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if ctrl.Deposited.Int64() != 600 {
		t.Fatalf("expected shortfall deposit of 600, got %s", ctrl.Deposited)
	}
}

func TestRerunAfterDepositSkipsFunding(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.Errors["CreateProof"] = errors.New("prover crashed")
	wf := NewWorkflow(nil)
	req := &FundingRequirement{Required: eth(1), Native: true}

	_, err := wf.Run(context.Background(), newAction(), ctrl, req)
	if !clierr.Is(err, clierr.CodeSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}

	delete(ctrl.Errors, "CreateProof")
	ctrl.Reset()
	if _, err := wf.Run(context.Background(), newAction(), ctrl, req); err != nil {
		t.Fatalf("rerun failed: %v", err)
	}
	if ctrl.Called("DepositFundsToContract") {
		t.Fatal("expected rerun to detect staged funds and skip the deposit")
	}
}

func TestAwaitFailureAbortsVerbatim(t *testing.T) {
	ctrl := rolluptest.NewController()
	cause := errors.New("approve tx reverted")
	ctrl.Errors["AwaitApprove"] = cause
	action := newAction()

	_, err := NewWorkflow(nil).Run(context.Background(), action, ctrl, &FundingRequirement{Required: eth(1)})
	if !clierr.Is(err, clierr.CodeFunding) {
		t.Fatalf("expected funding error, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected collaborator error in chain")
	}
	if ctrl.Called("DepositFundsToContract") || ctrl.Called("CreateProof") {
		t.Fatalf("expected abort after await failure, calls=%v", ctrl.Calls)
	}
	if action.Status != ActionStatusFailed {
		t.Fatalf("expected failed action, got %s", action.Status)
	}
	last := action.Steps[len(action.Steps)-1]
	if last.State != StateAwaitApprove || last.Error != cause.Error() {
		t.Fatalf("unexpected last step %+v", last)
	}
}

func TestNonFundingControllerGoesStraightToProof(t *testing.T) {
	ctrl := rolluptest.NewController()
	action := newAction()
	action.Operation = "transfer"

	if _, err := NewWorkflow(nil).Run(context.Background(), action, ctrl, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	want := []string{"CreateProof", "Sign", "Send"}
	if !reflect.DeepEqual(ctrl.Calls, want) {
		t.Fatalf("unexpected calls %v", ctrl.Calls)
	}
	if len(action.Steps) != 3 {
		t.Fatalf("expected only submission steps, got %v", action.StepStates())
	}
}

func TestSendFailureIsSubmissionError(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.Errors["Send"] = errors.New("rollup provider rejected tx")
	_, err := NewWorkflow(nil).Run(context.Background(), newAction(), ctrl, nil)
	if !clierr.Is(err, clierr.CodeSubmission) {
		t.Fatalf("expected submission error, got %v", err)
	}
}

func TestRunPersistsAuditTrail(t *testing.T) {
	store := openTestStore(t)
	ctrl := rolluptest.NewController()
	action := newAction()

	if _, err := NewWorkflow(store).Run(context.Background(), action, ctrl, &FundingRequirement{Required: eth(1), Native: true}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	got, err := store.Get(action.ActionID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != ActionStatusCompleted || got.TxID == "" {
		t.Fatalf("unexpected stored action %+v", got)
	}
}

func TestFundingChecksRecordState(t *testing.T) {
	ctrl := rolluptest.NewController()
	ctrl.PendingFunds = eth(1)
	ctrl.Allowance = eth(3)
	r := &run{ctrl: ctrl, funding: ctrl, req: FundingRequirement{Required: eth(2)}, action: newAction()}

	next, err := checkPendingFunds(context.Background(), r)
	if err != nil || next != StateCheckAllowance {
		t.Fatalf("unexpected pending funds result next=%s err=%v", next, err)
	}
	if !r.state.DepositNeeded || r.state.PendingFunds.Cmp(eth(1)) != 0 {
		t.Fatalf("expected a deposit to be needed, got %+v", r.state)
	}

	next, err = checkAllowance(context.Background(), r)
	if err != nil || next != StateDeposit {
		t.Fatalf("unexpected allowance result next=%s err=%v", next, err)
	}
	if !r.state.AllowanceChecked || r.state.ApproveNeeded {
		t.Fatalf("expected allowance to cover the requirement, got %+v", r.state)
	}

	ctrl.PendingFunds = eth(2)
	covered := &run{ctrl: ctrl, funding: ctrl, req: FundingRequirement{Required: eth(2)}, action: newAction()}
	if next, _ := checkPendingFunds(context.Background(), covered); next != StateBuildProof || covered.state.DepositNeeded {
		t.Fatalf("expected pending funds to cover the requirement, next=%s state=%+v", next, covered.state)
	}
}
