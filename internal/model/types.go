package model

import "time"

const EnvelopeVersion = "v1"

type Envelope struct {
	Version  string       `json:"version"`
	Success  bool         `json:"success"`
	Data     any          `json:"data,omitempty"`
	Error    *ErrorBody   `json:"error"`
	Warnings []string     `json:"warnings,omitempty"`
	Meta     EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID string           `json:"request_id"`
	Timestamp time.Time        `json:"timestamp"`
	Command   string           `json:"command"`
	ChainID   int64            `json:"chain_id,omitempty"`
	Providers []ProviderStatus `json:"providers,omitempty"`
	Cache     CacheStatus      `json:"cache"`
}

// ProviderStatus reports one upstream lookup (rollup provider, data provider contract).
type ProviderStatus struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
}

type CacheStatus struct {
	Status string `json:"status"`
	AgeMS  int64  `json:"age_ms"`
	Stale  bool   `json:"stale"`
}

type AmountInfo struct {
	AssetID         uint32 `json:"asset_id"`
	Symbol          string `json:"symbol"`
	AmountBaseUnits string `json:"amount_base_units"`
	AmountDecimal   string `json:"amount_decimal"`
}

// TxResult is the outcome of a money-moving command.
type TxResult struct {
	ActionID    string      `json:"action_id"`
	Operation   string      `json:"operation"`
	TxID        string      `json:"tx_id"`
	ExplorerURL string      `json:"explorer_url,omitempty"`
	Account     string      `json:"account"`
	Signer      string      `json:"signer,omitempty"`
	Recipient   string      `json:"recipient,omitempty"`
	Speed       string      `json:"speed,omitempty"`
	Amount      *AmountInfo `json:"amount,omitempty"`
	Fee         *AmountInfo `json:"fee,omitempty"`
	// SpendingKeyRequired is set for deposits and transfers.
	SpendingKeyRequired *bool `json:"spending_key_required,omitempty"`
	// RecoveryPayload is returned by stage-recovery-key; it cannot be regenerated.
	RecoveryPayload string `json:"recovery_payload,omitempty"`
}

type Balance struct {
	Account                 string     `json:"account"`
	Total                   AmountInfo `json:"total"`
	SpendableAccountKey     AmountInfo `json:"spendable_account_key"`
	SpendableSpendingKeys   AmountInfo `json:"spendable_spending_keys"`
	PendingSpendingKeyNotes AmountInfo `json:"pending_spending_keys"`
}

type AccountInfo struct {
	PublicKey  string `json:"public_key"`
	Registered bool   `json:"registered"`
	Added      bool   `json:"added"`
	Wallet     string `json:"wallet_address"`
	ChainID    int64  `json:"chain_id"`
}

type HistoryEntry struct {
	TxID        string      `json:"tx_id"`
	Kind        string      `json:"kind"`
	Value       *AmountInfo `json:"value,omitempty"`
	Fee         *AmountInfo `json:"fee,omitempty"`
	Recipient   string      `json:"recipient,omitempty"`
	Created     string      `json:"created,omitempty"`
	Settled     string      `json:"settled,omitempty"`
	ExplorerURL string      `json:"explorer_url,omitempty"`
}

// FeeTier is one settlement speed of a fee schedule.
type FeeTier struct {
	Operation string     `json:"operation"`
	Speed     string     `json:"speed"`
	Fee       AmountInfo `json:"fee"`
}

type AssetInfo struct {
	AssetID  uint32 `json:"asset_id"`
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Source   string `json:"source"`
}

type BridgeInfo struct {
	Name        string `json:"name,omitempty"`
	AddressID   uint32 `json:"address_id"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
	InputAsset  string `json:"input_asset,omitempty"`
	OutputAsset string `json:"output_asset,omitempty"`
	Source      string `json:"source"`
}

type ConfigView struct {
	ConfigPath      string   `json:"config_path"`
	Wallet          string   `json:"wallet"`
	WalletRPCURL    string   `json:"wallet_rpc_url,omitempty"`
	RelayURL        string   `json:"walletconnect_relay_url,omitempty"`
	ProjectIDSet    bool     `json:"walletconnect_project_id_set"`
	EthRPCURL       string   `json:"eth_rpc_url,omitempty"`
	SDKURL          string   `json:"sdk_url"`
	OutputMode      string   `json:"output"`
	Timeout         string   `json:"timeout"`
	Retries         int      `json:"retries"`
	LogLevel        string   `json:"log_level"`
	CacheEnabled    bool     `json:"cache_enabled"`
	CachePath       string   `json:"cache_path"`
	ActionStorePath string   `json:"actions_path"`
	SigningDefaults []string `json:"signing_defaults,omitempty"`
}
