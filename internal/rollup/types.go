package rollup

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ggonzalez94/aztec-cli/internal/memzero"
)

const (
	PublicKeySize  = 64
	PrivateKeySize = 32
	TxIDSize       = 32
)

// NativeAssetID is the rollup asset id of ETH.
const NativeAssetID uint32 = 0

// PublicKey is a rollup account or spending public key (an encoded curve point).
type PublicKey [PublicKeySize]byte

func ParsePublicKey(input string) (PublicKey, error) {
	var out PublicKey
	raw, err := decodeFixedHex(input, PublicKeySize)
	if err != nil {
		return out, fmt.Errorf("parse public key: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

func (p PublicKey) String() string { return hexutil.Encode(p[:]) }

func (p PublicKey) IsZero() bool { return p == PublicKey{} }

func (p PublicKey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// PrivateKey is a 32-byte rollup private key.
type PrivateKey [PrivateKeySize]byte

func ParsePrivateKey(input string) (PrivateKey, error) {
	var out PrivateKey
	raw, err := decodeFixedHex(input, PrivateKeySize)
	if err != nil {
		return out, fmt.Errorf("parse private key: %w", err)
	}
	copy(out[:], raw)
	memzero.Zero(raw)
	return out, nil
}

// PrivateKeyFromSignature takes the first 32 bytes of a wallet signature as key material.
func PrivateKeyFromSignature(signature []byte) (PrivateKey, error) {
	var out PrivateKey
	if len(signature) < PrivateKeySize {
		return out, fmt.Errorf("signature too short: %d bytes", len(signature))
	}
	copy(out[:], signature[:PrivateKeySize])
	return out, nil
}

func (k PrivateKey) Hex() string { return hexutil.Encode(k[:]) }

func (k PrivateKey) IsZero() bool { return k == PrivateKey{} }

// String never renders key material.
func (k PrivateKey) String() string { return "<redacted>" }

func (k *PrivateKey) Zero() { memzero.Zero(k[:]) }

// KeyPair is an account or signer key pair.
type KeyPair struct {
	PublicKey  PublicKey
	PrivateKey PrivateKey
}

func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	k.PrivateKey.Zero()
}

// TxID identifies a submitted rollup transaction.
type TxID [TxIDSize]byte

func ParseTxID(input string) (TxID, error) {
	var out TxID
	raw, err := decodeFixedHex(input, TxIDSize)
	if err != nil {
		return out, fmt.Errorf("parse tx id: %w", err)
	}
	copy(out[:], raw)
	return out, nil
}

func (id TxID) String() string { return hexutil.Encode(id[:]) }

func (id TxID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *TxID) UnmarshalText(text []byte) error {
	parsed, err := ParseTxID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// AssetValue is an amount of a rollup asset in base units.
type AssetValue struct {
	AssetID uint32
	Value   *big.Int
}

func NewAssetValue(assetID uint32, value *big.Int) AssetValue {
	if value == nil {
		value = new(big.Int)
	}
	return AssetValue{AssetID: assetID, Value: new(big.Int).Set(value)}
}

func (v AssetValue) Validate() error {
	if v.Value == nil {
		return fmt.Errorf("asset value is missing")
	}
	if v.Value.Sign() < 0 {
		return fmt.Errorf("asset value must be non-negative")
	}
	return nil
}

// Amount returns the value, treating a missing value as zero.
func (v AssetValue) Amount() *big.Int {
	if v.Value == nil {
		return new(big.Int)
	}
	return v.Value
}

type assetValueJSON struct {
	AssetID uint32 `json:"assetId"`
	Value   string `json:"value"`
}

// MarshalJSON encodes the value as a decimal string so it survives JSON number limits.
func (v AssetValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(assetValueJSON{AssetID: v.AssetID, Value: v.Amount().String()})
}

func (v *AssetValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		AssetID uint32          `json:"assetId"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := parseBigJSON(raw.Value)
	if err != nil {
		return fmt.Errorf("asset value: %w", err)
	}
	v.AssetID = raw.AssetID
	v.Value = value
	return nil
}

// BridgeCallData addresses a DeFi bridge interaction.
type BridgeCallData struct {
	BridgeAddressID uint32  `json:"bridgeAddressId"`
	InputAssetIDA   uint32  `json:"inputAssetIdA"`
	OutputAssetIDA  uint32  `json:"outputAssetIdA"`
	InputAssetIDB   *uint32 `json:"inputAssetIdB,omitempty"`
	OutputAssetIDB  *uint32 `json:"outputAssetIdB,omitempty"`
	AuxData         uint64  `json:"auxData"`
}

func decodeFixedHex(input string, size int) ([]byte, error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(input), "0x"), "0X")
	if len(clean) != size*2 {
		return nil, fmt.Errorf("expected %d hex characters, got %d", size*2, len(clean))
	}
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return raw, nil
}

func parseBigJSON(raw json.RawMessage) (*big.Int, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" || text == "null" {
		return new(big.Int), nil
	}
	text = strings.Trim(text, `"`)
	var (
		value *big.Int
		ok    bool
	)
	if strings.HasPrefix(text, "0x") {
		value, ok = new(big.Int).SetString(text[2:], 16)
	} else {
		value, ok = new(big.Int).SetString(text, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", text)
	}
	return value, nil
}
