package app

import (
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ggonzalez94/aztec-cli/internal/execution"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/rollup"
	"github.com/ggonzalez94/aztec-cli/internal/rollup/rolluptest"
)

var oneEth = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func TestDepositFreshAccountRunsFullFundingSequence(t *testing.T) {
	h := newHarness(t)
	code := h.run("deposit", "1", "--account-key", testAccountKey, "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}

	wantSDK := []string{
		"DerivePublicKey",
		"UserExists",
		"AddUser",
		"AwaitSynchronised",
		"IsAccountRegistered",
		"GetDepositFees",
		"CreateDepositController",
		"Destroy",
	}
	if !reflect.DeepEqual(h.sdk.Calls, wantSDK) {
		t.Fatalf("unexpected sdk calls:\n got %v\nwant %v", h.sdk.Calls, wantSDK)
	}
	wantCtrl := []string{
		"GetPendingFunds",
		"DepositFundsToContract",
		"AwaitDepositFundsToContract",
		"CreateProof",
		"Sign",
		"Send",
	}
	if !reflect.DeepEqual(h.sdk.Funding.Calls, wantCtrl) {
		t.Fatalf("unexpected controller calls:\n got %v\nwant %v", h.sdk.Funding.Calls, wantCtrl)
	}
	if h.sdk.Funding.Called("GetPublicAllowance") || h.sdk.Funding.Called("Approve") {
		t.Fatal("native deposits must skip the allowance path")
	}
	wantDeposit := new(big.Int).Add(oneEth, big.NewInt(100))
	if h.sdk.Funding.Deposited.Cmp(wantDeposit) != 0 {
		t.Fatalf("expected deposit of value plus fee %s, got %s", wantDeposit, h.sdk.Funding.Deposited)
	}

	account := testAccount(t)
	params := h.sdk.LastDeposit
	if params.Recipient != account.PublicKey {
		t.Fatal("expected deposit to default to own account")
	}
	if params.RecipientSpendingKeyRequired {
		t.Fatal("unregistered recipient should receive on the account key")
	}
	if params.Depositor != h.wallet.Account {
		t.Fatalf("unexpected depositor %s", params.Depositor.Hex())
	}

	var out model.TxResult
	h.decode(t, &out)
	if out.TxID != h.sdk.Funding.TxID.String() {
		t.Fatalf("unexpected tx id %s", out.TxID)
	}
	if !strings.HasPrefix(out.ExplorerURL, "https://aztec-connect-testnet-explorer.aztec.network/tx/") {
		t.Fatalf("unexpected explorer url %s", out.ExplorerURL)
	}
	if out.Amount == nil || out.Amount.AmountDecimal != "1" || out.Amount.Symbol != "ETH" {
		t.Fatalf("unexpected amount %+v", out.Amount)
	}
	if out.SpendingKeyRequired == nil || *out.SpendingKeyRequired {
		t.Fatalf("unexpected spending key flag %v", out.SpendingKeyRequired)
	}
	if !h.wallet.Closed || !h.sdk.Destroyed {
		t.Fatal("expected session to be released")
	}

	if code := h.run("actions", "list", "--results-only"); code != 0 {
		t.Fatalf("actions list failed: %d stderr=%s", code, h.stderr.String())
	}
	var actions []execution.Action
	h.decode(t, &actions)
	if len(actions) != 1 {
		t.Fatalf("expected one recorded action, got %d", len(actions))
	}
	if actions[0].Status != execution.ActionStatusCompleted || actions[0].ActionID != out.ActionID {
		t.Fatalf("unexpected action %+v", actions[0])
	}
	if actions[0].ExplorerURL != out.ExplorerURL {
		t.Fatalf("expected explorer url recorded, got %q", actions[0].ExplorerURL)
	}
}

func TestDepositToRegisteredAccountUsesSpendingKeys(t *testing.T) {
	h := newHarness(t)
	account := testAccount(t)
	h.sdk.Registered[account.PublicKey] = true
	if code := h.run("deposit", "0.5", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	if !h.sdk.LastDeposit.RecipientSpendingKeyRequired {
		t.Fatal("registered recipient should receive on spending keys")
	}

	h2 := newHarness(t)
	h2.sdk.Registered[account.PublicKey] = true
	if code := h2.run("deposit", "0.5", "--account-key", testAccountKey, "--spending-key-required=false"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h2.stderr.String())
	}
	if h2.sdk.LastDeposit.RecipientSpendingKeyRequired {
		t.Fatal("explicit flag must override the registration default")
	}
	if h2.sdk.Count("IsAccountRegistered") != 0 {
		t.Fatal("explicit flag must skip the registration query")
	}
}

func TestDepositSkipsFundingWhenPendingFundsCover(t *testing.T) {
	h := newHarness(t)
	h.sdk.Funding.PendingFunds = new(big.Int).Mul(oneEth, big.NewInt(2))
	if code := h.run("deposit", "1", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	if h.sdk.Funding.Called("DepositFundsToContract") {
		t.Fatal("covered deposit must not send funds again")
	}
	if len(h.wallet.Sent) != 0 {
		t.Fatalf("unexpected wallet transactions %v", h.wallet.Sent)
	}
}

func TestDepositTokenApprovesAllowance(t *testing.T) {
	h := newHarness(t)
	h.sdk.Fees = []rollup.AssetValue{rollup.NewAssetValue(1, big.NewInt(7)), rollup.NewAssetValue(1, big.NewInt(9))}
	if code := h.run("deposit", "10", "--asset", "dai", "--time", "instant", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	want := new(big.Int).Add(new(big.Int).Mul(oneEth, big.NewInt(10)), big.NewInt(9))
	if h.sdk.Funding.Approved == nil || h.sdk.Funding.Approved.Cmp(want) != 0 {
		t.Fatalf("expected approval of %s, got %v", want, h.sdk.Funding.Approved)
	}
	if !h.sdk.Funding.Called("AwaitApprove") {
		t.Fatal("expected approval to be awaited")
	}
}

func TestDepositFundingFailureRecordsAction(t *testing.T) {
	h := newHarness(t)
	h.sdk.Funding.Errors["DepositFundsToContract"] = errors.New("user rejected")
	if code := h.run("deposit", "1", "--account-key", testAccountKey); code != 22 {
		t.Fatalf("expected exit 22, got %d stderr=%s", code, h.stderr.String())
	}
	if h.sdk.Funding.Called("CreateProof") {
		t.Fatal("proof must not be built after a funding failure")
	}
	if !h.sdk.Destroyed {
		t.Fatal("expected sdk to be destroyed on failure")
	}

	if code := h.run("actions", "list", "--status", "failed", "--results-only"); code != 0 {
		t.Fatalf("actions list failed: %d stderr=%s", code, h.stderr.String())
	}
	var actions []execution.Action
	h.decode(t, &actions)
	if len(actions) != 1 || actions[0].Error == "" {
		t.Fatalf("expected one failed action with an error, got %+v", actions)
	}

	if code := h.run("actions", "status", "--action-id", actions[0].ActionID, "--results-only"); code != 0 {
		t.Fatalf("actions status failed: %d stderr=%s", code, h.stderr.String())
	}
	var action execution.Action
	h.decode(t, &action)
	last := action.Steps[len(action.Steps)-1]
	if last.State != execution.StateDeposit || last.Status != execution.StepStatusFailed {
		t.Fatalf("unexpected last step %+v", last)
	}
}

func TestConflictingAccountSourcesFailBeforeWallet(t *testing.T) {
	h := newHarness(t)
	if code := h.run("balance", "--account-key", testAccountKey, "-m", "hello"); code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, h.stderr.String())
	}
	if h.opened != 0 {
		t.Fatal("wallet must not be opened for invalid key sources")
	}

	if code := h.run("transfer", "1", "--recipient", "bob", "--signing-key", testAccountKey, "--use-account-key-signer"); code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, h.stderr.String())
	}
	if h.opened != 0 {
		t.Fatal("wallet must not be opened for invalid signer sources")
	}
}

func TestRegisterCreatesSpendingAndRecoveryKeys(t *testing.T) {
	h := newHarness(t)
	ttp := rolluptest.PublicKeyFor(rollup.PrivateKey{0x77})
	code := h.run("register", "--alias", "alice", "--ttp-pub-key", ttp.String(), "--account-key", testAccountKey, "--results-only")
	if code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	params := h.sdk.LastRegister
	account := testAccount(t)
	if params.Account != account.PublicKey || params.Alias != "alice" {
		t.Fatalf("unexpected register params %+v", params)
	}
	if h.sdk.Count("GenerateSpendingKeyPair") != 1 {
		t.Fatal("expected the wallet spending key to be derived")
	}
	if params.SpendingPublicKey == account.PublicKey {
		t.Fatal("spending key must differ from the account key")
	}
	if params.RecoveryPublicKey == nil {
		t.Fatal("expected a recovery key from the trusted third party")
	}
	if params.Depositor != h.wallet.Account {
		t.Fatalf("unexpected depositor %s", params.Depositor.Hex())
	}
	if h.sdk.Funding.Deposited == nil || h.sdk.Funding.Deposited.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected only the fee to be deposited, got %v", h.sdk.Funding.Deposited)
	}
}

func TestRegisterPreconditions(t *testing.T) {
	h := newHarness(t)
	h.sdk.Aliases["alice"] = rolluptest.PublicKeyFor(rollup.PrivateKey{0x01})
	if code := h.run("register", "--alias", "alice", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 for a taken alias, got %d stderr=%s", code, h.stderr.String())
	}
	if h.sdk.Count("CreateRegisterController") != 0 {
		t.Fatal("register controller must not be created")
	}

	h2 := newHarness(t)
	h2.sdk.Registered[testAccount(t).PublicKey] = true
	if code := h2.run("register", "--alias", "bob", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 for a registered account, got %d stderr=%s", code, h2.stderr.String())
	}

	h3 := newHarness(t)
	if code := h3.run("register", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 without --alias, got %d stderr=%s", code, h3.stderr.String())
	}
}

func TestTransferSignerFollowsRegistration(t *testing.T) {
	h := newHarness(t)
	bob := rolluptest.PublicKeyFor(rollup.PrivateKey{0x0b})
	h.sdk.Aliases["bob"] = bob
	if code := h.run("transfer", "0.25", "--recipient", "bob", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	account := testAccount(t)
	params := h.sdk.LastTransfer
	if params.Recipient != bob {
		t.Fatal("expected alias to resolve to bob's key")
	}
	if params.Signer.PublicKey != account.PublicKey {
		t.Fatal("unregistered account must sign with its account key")
	}
	if h.sdk.Funding.Called("GetPendingFunds") {
		t.Fatal("transfers must not touch the funding path")
	}
	want := []string{"CreateProof", "Sign", "Send"}
	if !reflect.DeepEqual(h.sdk.Controller.Calls, want) {
		t.Fatalf("unexpected controller calls %v", h.sdk.Controller.Calls)
	}

	h2 := newHarness(t)
	h2.sdk.Aliases["bob"] = bob
	h2.sdk.Registered[account.PublicKey] = true
	if code := h2.run("transfer", "0.25", "--recipient", "bob", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h2.stderr.String())
	}
	if h2.sdk.LastTransfer.Signer.PublicKey == account.PublicKey {
		t.Fatal("registered account must sign with a spending key")
	}
	if h2.sdk.Count("GenerateSpendingKeyPair") != 1 {
		t.Fatal("expected one spending key derivation")
	}
}

func TestTransferUnknownRecipient(t *testing.T) {
	h := newHarness(t)
	if code := h.run("transfer", "1", "--recipient", "nobody", "--account-key", testAccountKey); code != 21 {
		t.Fatalf("expected exit 21, got %d stderr=%s", code, h.stderr.String())
	}
	env := h.errorEnvelope(t)
	errBody, _ := env["error"].(map[string]any)
	if msg, _ := errBody["message"].(string); !strings.Contains(msg, "nobody") {
		t.Fatalf("expected error to name the input, got %q", msg)
	}
	if h.sdk.Count("CreateTransferController") != 0 {
		t.Fatal("transfer controller must not be created")
	}
}

func TestWithdrawValidatesAddressBeforeWallet(t *testing.T) {
	h := newHarness(t)
	if code := h.run("withdraw", "1", "--recipient", "not-an-address"); code != 21 {
		t.Fatalf("expected exit 21, got %d stderr=%s", code, h.stderr.String())
	}
	if h.opened != 0 {
		t.Fatal("wallet must not be opened for an invalid recipient")
	}

	to := "0xc1912fEE45d61C87Cc5EA59DaE31190FFFFf232d"
	if code := h.run("withdraw", "1", "--recipient", to, "--use-account-key-signer", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	if !strings.EqualFold(h.sdk.LastWithdraw.Recipient.Hex(), to) {
		t.Fatalf("unexpected withdraw recipient %s", h.sdk.LastWithdraw.Recipient.Hex())
	}
	if h.sdk.Count("IsAccountRegistered") != 0 {
		t.Fatal("account key signer must not query registration")
	}
}

func TestDefiBridgeDefaultsAndAssetCheck(t *testing.T) {
	h := newHarness(t)
	if code := h.run("defi-bridge", "0.01", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	params := h.sdk.LastDefi
	donation, _ := registry.BridgePresetByName("donation")
	if params.Bridge != donation.CallData {
		t.Fatalf("unexpected bridge call data %+v", params.Bridge)
	}
	if params.Fee.Amount().Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected deadline fee tier, got %s", params.Fee.Amount())
	}

	h2 := newHarness(t)
	if code := h2.run("defi-bridge", "1", "--bridge", "lido-wsteth-eth", "--asset", "eth", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 for mismatched asset, got %d stderr=%s", code, h2.stderr.String())
	}
	if h2.opened != 0 {
		t.Fatal("wallet must not be opened for a mismatched asset")
	}
}

func TestAddSpendingKeyCandidates(t *testing.T) {
	h := newHarness(t)
	if code := h.run("add-spending-key", "2", "only one message", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2, got %d stderr=%s", code, h.stderr.String())
	}

	newKey := "0x" + strings.Repeat("22", 32)
	if code := h.run("add-spending-key", "2", "laptop", "--new-signing-key1", newKey, "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	params := h.sdk.LastAddSpendingKey
	priv, _ := rollup.ParsePrivateKey(newKey)
	if params.SpendingKey1 != rolluptest.PublicKeyFor(priv) {
		t.Fatal("explicit key must be the first spending key")
	}
	if params.SpendingKey2 == nil || *params.SpendingKey2 == params.SpendingKey1 {
		t.Fatal("expected a second spending key from the message")
	}
	if h.wallet.Messages[len(h.wallet.Messages)-1] != "laptop" {
		t.Fatalf("expected the wallet to sign the message, got %v", h.wallet.Messages)
	}

	if code := h.run("add-spending-key", "3", "a", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 for an invalid count, got %d", code)
	}
}

func TestStageRecoveryKey(t *testing.T) {
	ttp := rolluptest.PublicKeyFor(rollup.PrivateKey{0x77})

	h := newHarness(t)
	if code := h.run("stage-recovery-key", ttp.String(), "--alias", "alice", "--account-key", testAccountKey); code != 21 {
		t.Fatalf("expected exit 21 for an unknown alias, got %d stderr=%s", code, h.stderr.String())
	}

	h2 := newHarness(t)
	h2.sdk.Aliases["alice"] = rolluptest.PublicKeyFor(rollup.PrivateKey{0x01})
	if code := h2.run("stage-recovery-key", ttp.String(), "--alias", "alice", "--account-key", testAccountKey); code != 2 {
		t.Fatalf("expected exit 2 for an alias owned by another account, got %d stderr=%s", code, h2.stderr.String())
	}

	h3 := newHarness(t)
	h3.sdk.Aliases["alice"] = testAccount(t).PublicKey
	if code := h3.run("stage-recovery-key", ttp.String(), "--alias", "alice", "--account-key", testAccountKey, "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h3.stderr.String())
	}
	var out model.TxResult
	h3.decode(t, &out)
	if out.RecoveryPayload != "0xrecovery00" {
		t.Fatalf("expected recovery payload in result, got %q", out.RecoveryPayload)
	}
	if h3.sdk.LastAddSpendingKey.SpendingKey2 != nil {
		t.Fatal("recovery staging adds exactly one key")
	}
}

func TestStageRecoveryKeyKeepsPayloadWhenSendFails(t *testing.T) {
	ttp := rolluptest.PublicKeyFor(rollup.PrivateKey{0x77})
	h := newHarness(t)
	h.sdk.Aliases["alice"] = testAccount(t).PublicKey
	h.sdk.Controller.Errors["Send"] = errors.New("rollup provider timeout")

	if code := h.run("stage-recovery-key", ttp.String(), "--alias", "alice", "--account-key", testAccountKey); code != 23 {
		t.Fatalf("expected exit 23, got %d stderr=%s", code, h.stderr.String())
	}
	if !strings.Contains(h.stderr.String(), "0xrecovery00") {
		t.Fatalf("expected recovery payload on stderr, got %s", h.stderr.String())
	}

	if code := h.run("actions", "list", "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var actions []execution.Action
	h.decode(t, &actions)
	if len(actions) != 1 || actions[0].Status != execution.ActionStatusFailed {
		t.Fatalf("expected one failed action, got %+v", actions)
	}
	if actions[0].Metadata["recovery_payload"] != "0xrecovery00" {
		t.Fatalf("expected recovery payload in action metadata, got %+v", actions[0].Metadata)
	}
}

func TestAddRecoveryKeyFundsWithWallet(t *testing.T) {
	h := newHarness(t)
	if code := h.run("add-recovery-key", "0.01", "--recovery-payload", "0xabc", "--account-key", testAccountKey); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	params := h.sdk.LastRecover
	if params.RecoveryPayload != "0xabc" || params.Depositor != h.wallet.Account {
		t.Fatalf("unexpected recover params %+v", params)
	}
	if !h.sdk.Funding.Called("DepositFundsToContract") {
		t.Fatal("expected the recovery deposit to be funded")
	}
}

func TestBalanceAndAccountInfo(t *testing.T) {
	h := newHarness(t)
	h.sdk.Balances[0] = new(big.Int).Div(oneEth, big.NewInt(2))
	if code := h.run("balance", "--account-key", testAccountKey, "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var bal model.Balance
	h.decode(t, &bal)
	if bal.Total.AmountDecimal != "0.5" || bal.SpendableSpendingKeys.AmountBaseUnits == "" {
		t.Fatalf("unexpected balance %+v", bal)
	}
	if h.sdk.Count("GetSpendableSum") != 3 {
		t.Fatalf("expected three spendable sums, got %d", h.sdk.Count("GetSpendableSum"))
	}

	if code := h.run("account-info", "--account-key", testAccountKey, "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var info model.AccountInfo
	h.decode(t, &info)
	if info.PublicKey != testAccount(t).PublicKey.String() || info.Registered {
		t.Fatalf("unexpected account info %+v", info)
	}
	if info.Added {
		t.Fatal("second invocation must find the existing account")
	}
}

func TestFeesListsEveryOperation(t *testing.T) {
	h := newHarness(t)
	if code := h.run("fees", "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var tiers []model.FeeTier
	h.decode(t, &tiers)
	if len(tiers) != 10 {
		t.Fatalf("expected two tiers for five operations, got %d", len(tiers))
	}
	if h.sdk.Count("UserExists") != 0 {
		t.Fatal("fees must not resolve an account")
	}
}

func TestHistoryLinksExplorer(t *testing.T) {
	h := newHarness(t)
	value := rollup.NewAssetValue(0, oneEth)
	h.sdk.Txs = []rollup.UserTx{{TxID: rollup.TxID{0x01}, Kind: "deposit", Value: &value}}
	if code := h.run("history", "--account-key", testAccountKey, "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var entries []model.HistoryEntry
	h.decode(t, &entries)
	if len(entries) != 1 || entries[0].Value.AmountDecimal != "1" || entries[0].ExplorerURL == "" {
		t.Fatalf("unexpected history %+v", entries)
	}
}

func TestBridgesWithoutDataProviderListsPresets(t *testing.T) {
	h := newHarness(t)
	if code := h.run("bridges", "--chain-id", "3567"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	if h.opened != 0 {
		t.Fatal("--chain-id must avoid the wallet")
	}
	var env model.Envelope
	h.decode(t, &env)
	if len(env.Warnings) != 1 {
		t.Fatalf("expected a presets-only warning, got %v", env.Warnings)
	}
	items, _ := env.Data.([]any)
	if len(items) != len(registry.BridgePresetNames()) {
		t.Fatalf("expected only presets, got %d items", len(items))
	}
}

func TestAssetsFromRollupProviderAreCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			http.NotFound(w, r)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte(`{"blockchainStatus":{"chainId":677868,"assets":[
			{"address":"0x0000000000000000000000000000000000000000","decimals":18,"symbol":"ETH","name":"Ether"},
			{"address":"0x6B175474E89094C44Da98b954EedeAC495271d0F","decimals":18,"symbol":"DAI","name":"Dai"}]}}`))
	}))
	defer srv.Close()

	h := newHarness(t)
	h.runner.lookupNetwork = func(chainID int64) (registry.Network, error) {
		return registry.Network{ChainID: chainID, Name: "testnet", RollupProvider: srv.URL}, nil
	}
	for i := 0; i < 2; i++ {
		if code := h.run("assets", "--chain-id", "677868", "--results-only"); code != 0 {
			t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
		}
	}
	var assets []model.AssetInfo
	h.decode(t, &assets)
	if len(assets) != 2 || assets[1].AssetID != 1 || assets[1].Symbol != "DAI" {
		t.Fatalf("unexpected assets %+v", assets)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected second listing from cache, got %d upstream hits", hits.Load())
	}
}

func TestConfigSetWallet(t *testing.T) {
	h := newHarness(t)
	if code := h.run("config", "set-wallet", "walletconnect", "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	path := filepath.Join(h.workDir, "config", "aztec", "config.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(raw), "wallet: walletconnect") {
		t.Fatalf("unexpected config file %s", raw)
	}

	if code := h.run("config", "show", "--results-only"); code != 0 {
		t.Fatalf("expected exit 0, got %d stderr=%s", code, h.stderr.String())
	}
	var view model.ConfigView
	h.decode(t, &view)
	if view.Wallet != "walletconnect" {
		t.Fatalf("expected persisted wallet, got %q", view.Wallet)
	}

	if code := h.run("config", "set-wallet", "ledger"); code != 2 {
		t.Fatalf("expected exit 2 for an unknown wallet, got %d", code)
	}
}
