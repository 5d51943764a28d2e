package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/term"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
)

const (
	EnvPrivateKey           = "AZTEC_PRIVATE_KEY"
	EnvPrivateKeyFile       = "AZTEC_PRIVATE_KEY_FILE"
	EnvKeystorePath         = "AZTEC_KEYSTORE_PATH"
	EnvKeystorePassword     = "AZTEC_KEYSTORE_PASSWORD"
	EnvKeystorePasswordFile = "AZTEC_KEYSTORE_PASSWORD_FILE"

	KeySourceAuto     = "auto"
	KeySourceEnv      = "env"
	KeySourceFile     = "file"
	KeySourceKeystore = "keystore"

	defaultPrivateKeyRelativePath = "aztec/key.hex"
)

// keyTransport answers account, chain and signing requests with a local ECDSA key.
// Anything else is forwarded to the Ethereum RPC when one is configured.
type keyTransport struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
	eth        *ethclient.Client
}

type KeyConfig struct {
	PrivateKeyHex        string
	PrivateKeyFile       string
	KeystorePath         string
	KeystorePassword     string
	KeystorePasswordFile string
}

func openKey(ctx context.Context, opts Options) (Transport, error) {
	cfg, err := KeyConfigFromInputs(opts.KeySource, opts.PrivateKey)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "key wallet", err)
	}
	pk, err := loadPrivateKey(cfg, opts.Prompt)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "key wallet", err)
	}
	t := &keyTransport{privateKey: pk, address: crypto.PubkeyToAddress(pk.PublicKey)}

	if url := strings.TrimSpace(opts.EthRPCURL); url != "" {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUnavailable, "connect ethereum rpc", err)
		}
		t.eth = client
		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, clierr.Wrap(clierr.CodeUnavailable, "fetch chain id", err)
		}
		t.chainID = chainID
	} else if opts.ChainID > 0 {
		t.chainID = big.NewInt(opts.ChainID)
	} else {
		return nil, clierr.New(clierr.CodeUsage, "key wallet requires eth_rpc_url or chain_id")
	}
	return t, nil
}

func (t *keyTransport) Request(ctx context.Context, result any, method string, params ...any) error {
	var answer any
	switch method {
	case "eth_accounts":
		answer = []common.Address{t.address}
	case "eth_chainId":
		answer = (*hexutil.Big)(t.chainID)
	case "personal_sign":
		if len(params) == 0 {
			return errors.New("personal_sign: missing message")
		}
		message, err := messageBytes(params[0])
		if err != nil {
			return err
		}
		sig, err := t.sign(message)
		if err != nil {
			return err
		}
		answer = hexutil.Bytes(sig)
	default:
		if t.eth == nil {
			return fmt.Errorf("key wallet cannot serve %s without an ethereum rpc", method)
		}
		return t.eth.Client().CallContext(ctx, result, method, params...)
	}
	if result == nil {
		return nil
	}
	buf, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, result)
}

// sign produces a wallet-compatible EIP-191 signature with V in {27, 28}.
func (t *keyTransport) sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), t.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func (t *keyTransport) Close() error {
	if t.eth != nil {
		t.eth.Close()
	}
	return nil
}

func messageBytes(param any) ([]byte, error) {
	switch v := param.(type) {
	case hexutil.Bytes:
		return v, nil
	case []byte:
		return v, nil
	case string:
		if strings.HasPrefix(v, "0x") {
			return hexutil.Decode(v)
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("personal_sign: unsupported message type %T", param)
	}
}

// KeyConfigFromInputs resolves which key material the key wallet loads.
// A non-empty override wins over every other source.
func KeyConfigFromInputs(source, privateKeyOverride string) (KeyConfig, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		source = KeySourceAuto
	}
	cfg := KeyConfig{
		PrivateKeyHex:        strings.TrimSpace(os.Getenv(EnvPrivateKey)),
		PrivateKeyFile:       strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)),
		KeystorePath:         strings.TrimSpace(os.Getenv(EnvKeystorePath)),
		KeystorePassword:     strings.TrimSpace(os.Getenv(EnvKeystorePassword)),
		KeystorePasswordFile: strings.TrimSpace(os.Getenv(EnvKeystorePasswordFile)),
	}
	if cfg.PrivateKeyFile == "" {
		cfg.PrivateKeyFile = discoverDefaultPrivateKeyFile()
	}

	switch source {
	case KeySourceAuto:
	case KeySourceEnv:
		cfg = KeyConfig{PrivateKeyHex: cfg.PrivateKeyHex}
	case KeySourceFile:
		cfg = KeyConfig{PrivateKeyFile: cfg.PrivateKeyFile}
	case KeySourceKeystore:
		cfg.PrivateKeyHex = ""
		cfg.PrivateKeyFile = ""
	default:
		return KeyConfig{}, fmt.Errorf("unsupported key source %q (expected %s|%s|%s|%s)", source, KeySourceAuto, KeySourceEnv, KeySourceFile, KeySourceKeystore)
	}
	if strings.TrimSpace(privateKeyOverride) != "" {
		cfg = KeyConfig{PrivateKeyHex: strings.TrimSpace(privateKeyOverride)}
	}
	return cfg, nil
}

func loadPrivateKey(cfg KeyConfig, prompt io.Writer) (*ecdsa.PrivateKey, error) {
	if cfg.PrivateKeyHex != "" {
		return parseHexKey(cfg.PrivateKeyHex)
	}
	if cfg.PrivateKeyFile != "" {
		buf, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read private key file: %w", err)
		}
		return parseHexKey(string(buf))
	}
	if cfg.KeystorePath != "" {
		password, err := keystorePassword(cfg, prompt)
		if err != nil {
			return nil, err
		}
		buf, err := os.ReadFile(cfg.KeystorePath)
		if err != nil {
			return nil, fmt.Errorf("read keystore file: %w", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt keystore: %w", err)
		}
		return key.PrivateKey, nil
	}
	return nil, fmt.Errorf("missing wallet key: set %s, %s or %s, or place a key at $XDG_CONFIG_HOME/%s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath, defaultPrivateKeyRelativePath)
}

func keystorePassword(cfg KeyConfig, prompt io.Writer) (string, error) {
	if cfg.KeystorePassword != "" {
		return cfg.KeystorePassword, nil
	}
	if cfg.KeystorePasswordFile != "" {
		buf, err := os.ReadFile(cfg.KeystorePasswordFile)
		if err != nil {
			return "", fmt.Errorf("read keystore password file: %w", err)
		}
		return strings.TrimSpace(string(buf)), nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("keystore password is required: set %s or %s", EnvKeystorePassword, EnvKeystorePasswordFile)
	}
	fmt.Fprint(prompt, "Keystore password: ")
	buf, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read keystore password: %w", err)
	}
	return string(buf), nil
}

func parseHexKey(raw string) (*ecdsa.PrivateKey, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, fmt.Errorf("empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return pk, nil
}

func defaultPrivateKeyPath() string {
	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || strings.TrimSpace(home) == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, defaultPrivateKeyRelativePath)
}

func discoverDefaultPrivateKeyFile() string {
	path := defaultPrivateKeyPath()
	if path == "" {
		return ""
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return ""
	}
	return path
}
