package out

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ggonzalez94/aztec-cli/internal/config"
	"github.com/ggonzalez94/aztec-cli/internal/model"
)

func TestRenderJSONSelectResultsOnly(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data:    []model.AssetInfo{{Symbol: "ETH", AssetID: 0}, {Symbol: "DAI", AssetID: 1}},
		Meta:    model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"symbol"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	if len(out) != 2 || out[1]["symbol"] != "DAI" {
		t.Fatalf("unexpected output: %s", buf.String())
	}
	if _, ok := out[0]["asset_id"]; ok {
		t.Fatalf("field projection failed: %s", buf.String())
	}
}

func TestRenderSelectDottedPath(t *testing.T) {
	env := model.Envelope{
		Success: true,
		Data: model.TxResult{
			TxID: "0xabcd",
			Fee:  &model.AmountInfo{Symbol: "ETH", AmountDecimal: "0.0001", AmountBaseUnits: "100000000000000"},
		},
	}
	settings := config.Settings{OutputMode: "json", SelectFields: []string{"tx_id", "fee.amount_decimal", "missing.field"}, ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json decode failed: %v", err)
	}
	fee, _ := out["fee"].(map[string]any)
	if out["tx_id"] != "0xabcd" || fee["amount_decimal"] != "0.0001" || len(fee) != 1 {
		t.Fatalf("unexpected projection: %s", buf.String())
	}
	if _, ok := out["missing"]; ok {
		t.Fatalf("missing paths must be dropped: %s", buf.String())
	}
}

func TestRenderPlainFlattensNestedObjects(t *testing.T) {
	env := model.Envelope{
		Version: "v1",
		Success: true,
		Data: model.TxResult{
			Operation: "deposit",
			TxID:      "0xabcd",
			Amount:    &model.AmountInfo{Symbol: "ETH", AmountDecimal: "0.1"},
		},
		Meta: model.EnvelopeMeta{Timestamp: time.Now()},
	}
	settings := config.Settings{OutputMode: "plain", ResultsOnly: true}
	var buf bytes.Buffer
	if err := Render(&buf, env, settings); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	line := buf.String()
	if !strings.Contains(line, "tx_id=0xabcd") || !strings.Contains(line, "amount.amount_decimal=0.1") {
		t.Fatalf("unexpected plain output: %s", line)
	}
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("expected a single line, got %q", line)
	}
}

func TestRenderPlainEnvelopeAddsWarningsAndMeta(t *testing.T) {
	env := model.Envelope{
		Success:  true,
		Data:     []model.BridgeInfo{{Name: "donation", Source: "preset"}},
		Warnings: []string{"no on-chain bridge registry on devnet; listing presets only"},
		Meta:     model.EnvelopeMeta{Command: "bridges", ChainID: 3567, Cache: model.CacheStatus{Status: "miss"}},
	}
	var buf bytes.Buffer
	if err := Render(&buf, env, config.Settings{OutputMode: "plain"}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected data, warning and meta lines, got %q", buf.String())
	}
	if !strings.Contains(lines[0], "name=donation") {
		t.Fatalf("unexpected data line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "warning: no on-chain") {
		t.Fatalf("unexpected warning line %q", lines[1])
	}
	if !strings.Contains(lines[2], "meta.chain_id=3567") || !strings.Contains(lines[2], "meta.cache.status=miss") {
		t.Fatalf("unexpected meta line %q", lines[2])
	}
}
