package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ggonzalez94/aztec-cli/internal/logging"
)

type GlobalFlags struct {
	ConfigPath     string
	JSON           bool
	Plain          bool
	Select         string
	ResultsOnly    bool
	EnableCommands string
	Timeout        string
	Retries        int
	MaxStale       string
	NoStale        bool
	NoCache        bool
	LogLevel       string
	Verbose        bool
	Wallet         string
	WalletRPCURL   string
	EthRPCURL      string
	SDKURL         string
}

// Signing holds the account and signer source inputs. The same shape carries the
// command flags and the configured defaults.
type Signing struct {
	AccountKey           string
	CustomAccountMessage string
	UseAccountKeySigner  bool
	SigningKey           string
	CustomSignerMessage  string
}

func (s Signing) hasAccountSource() bool {
	return strings.TrimSpace(s.AccountKey) != "" || s.CustomAccountMessage != ""
}

func (s Signing) hasSignerSource() bool {
	return s.UseAccountKeySigner || strings.TrimSpace(s.SigningKey) != "" || s.CustomSignerMessage != ""
}

type Settings struct {
	ConfigPath      string
	OutputMode      string
	SelectFields    []string
	ResultsOnly     bool
	EnableCommands  []string
	Timeout         time.Duration
	Retries         int
	MaxStale        time.Duration
	NoStale         bool
	CacheEnabled    bool
	CachePath       string
	CacheLockPath   string
	ActionStorePath string
	ActionLockPath  string
	LogLevel        slog.Level

	Wallet       string
	WalletRPCURL string
	RelayURL     string
	ProjectID    string
	KeySource    string
	EthRPCURL    string
	SDKURL       string
	Signing      Signing
}

type fileConfig struct {
	Wallet        string `yaml:"wallet"`
	Output        string `yaml:"output"`
	Timeout       string `yaml:"timeout"`
	Retries       *int   `yaml:"retries"`
	LogLevel      string `yaml:"log_level"`
	WalletRPCURL  string `yaml:"wallet_rpc_url"`
	EthRPCURL     string `yaml:"eth_rpc_url"`
	SDKURL        string `yaml:"sdk_url"`
	KeySource     string `yaml:"key_source"`
	WalletConnect struct {
		RelayURL     string `yaml:"relay_url"`
		ProjectID    string `yaml:"project_id"`
		ProjectIDEnv string `yaml:"project_id_env"`
	} `yaml:"walletconnect"`
	Cache struct {
		Enabled  *bool  `yaml:"enabled"`
		MaxStale string `yaml:"max_stale"`
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"cache"`
	Execution struct {
		ActionsPath     string `yaml:"actions_path"`
		ActionsLockPath string `yaml:"actions_lock_path"`
	} `yaml:"execution"`
	Signing struct {
		AccountKey           string `yaml:"account_key"`
		AccountKeyEnv        string `yaml:"account_key_env"`
		CustomAccountMessage string `yaml:"custom_account_message"`
		UseAccountKeySigner  *bool  `yaml:"use_account_key_signer"`
		SigningKey           string `yaml:"signing_key"`
		SigningKeyEnv        string `yaml:"signing_key_env"`
		CustomSignerMessage  string `yaml:"custom_signer_message"`
	} `yaml:"signing"`
}

func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	settings.ConfigPath = cfgPath

	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}

	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}

	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 10 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.MaxStale < 0 {
		settings.MaxStale = 5 * time.Minute
	}

	return settings, nil
}

// MergeSigning applies the configured signing defaults under the command flags. Each
// group (account source, signer source) falls back to the defaults only when no flag
// of that group is set, so a flag never combines with a default into a conflict.
func MergeSigning(flags, defaults Signing) Signing {
	out := flags
	if !flags.hasAccountSource() {
		out.AccountKey = defaults.AccountKey
		out.CustomAccountMessage = defaults.CustomAccountMessage
	}
	if !flags.hasSignerSource() {
		out.UseAccountKeySigner = defaults.UseAccountKeySigner
		out.SigningKey = defaults.SigningKey
		out.CustomSignerMessage = defaults.CustomSignerMessage
	}
	return out
}

func defaultSettings() (Settings, error) {
	cachePath, lockPath, err := defaultCachePaths()
	if err != nil {
		return Settings{}, err
	}
	cacheDir := filepath.Dir(cachePath)
	return Settings{
		OutputMode:      "json",
		Timeout:         10 * time.Second,
		Retries:         2,
		MaxStale:        5 * time.Minute,
		CacheEnabled:    true,
		CachePath:       cachePath,
		CacheLockPath:   lockPath,
		ActionStorePath: filepath.Join(cacheDir, "actions.db"),
		ActionLockPath:  filepath.Join(cacheDir, "actions.lock"),
		LogLevel:        slog.LevelInfo,
		Wallet:          "local",
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	if v := os.Getenv("AZTEC_CONFIG"); v != "" {
		return v, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "aztec", "config.yaml"), nil
}

func defaultCachePaths() (string, string, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", "", err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, "aztec")
	return filepath.Join(dir, "cache.db"), filepath.Join(dir, "cache.lock"), nil
}

func readFileConfig(path string) (fileConfig, bool, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileConfig{}, false, nil
		}
		return fileConfig{}, false, fmt.Errorf("read config: %w", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fileConfig{}, false, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, true, nil
}

func applyFileConfig(path string, settings *Settings) error {
	cfg, ok, err := readFileConfig(path)
	if err != nil || !ok {
		return err
	}

	if cfg.Wallet != "" {
		settings.Wallet = strings.ToLower(cfg.Wallet)
	}
	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return fmt.Errorf("config timeout: %w", err)
		}
		settings.Timeout = d
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.LogLevel != "" {
		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("config log_level: %w", err)
		}
		settings.LogLevel = level
	}
	if cfg.WalletRPCURL != "" {
		settings.WalletRPCURL = cfg.WalletRPCURL
	}
	if cfg.EthRPCURL != "" {
		settings.EthRPCURL = cfg.EthRPCURL
	}
	if cfg.SDKURL != "" {
		settings.SDKURL = cfg.SDKURL
	}
	if cfg.KeySource != "" {
		settings.KeySource = cfg.KeySource
	}
	if cfg.WalletConnect.RelayURL != "" {
		settings.RelayURL = cfg.WalletConnect.RelayURL
	}
	if cfg.WalletConnect.ProjectID != "" {
		settings.ProjectID = cfg.WalletConnect.ProjectID
	}
	if cfg.WalletConnect.ProjectIDEnv != "" {
		settings.ProjectID = os.Getenv(cfg.WalletConnect.ProjectIDEnv)
	}
	if cfg.Cache.Enabled != nil {
		settings.CacheEnabled = *cfg.Cache.Enabled
	}
	if cfg.Cache.MaxStale != "" {
		d, err := time.ParseDuration(cfg.Cache.MaxStale)
		if err != nil {
			return fmt.Errorf("config cache.max_stale: %w", err)
		}
		settings.MaxStale = d
	}
	if cfg.Cache.Path != "" {
		settings.CachePath = cfg.Cache.Path
	}
	if cfg.Cache.LockPath != "" {
		settings.CacheLockPath = cfg.Cache.LockPath
	}
	if cfg.Execution.ActionsPath != "" {
		settings.ActionStorePath = cfg.Execution.ActionsPath
	}
	if cfg.Execution.ActionsLockPath != "" {
		settings.ActionLockPath = cfg.Execution.ActionsLockPath
	}

	if cfg.Signing.AccountKey != "" {
		settings.Signing.AccountKey = cfg.Signing.AccountKey
	}
	if cfg.Signing.AccountKeyEnv != "" {
		settings.Signing.AccountKey = os.Getenv(cfg.Signing.AccountKeyEnv)
	}
	if cfg.Signing.CustomAccountMessage != "" {
		settings.Signing.CustomAccountMessage = cfg.Signing.CustomAccountMessage
	}
	if cfg.Signing.UseAccountKeySigner != nil {
		settings.Signing.UseAccountKeySigner = *cfg.Signing.UseAccountKeySigner
	}
	if cfg.Signing.SigningKey != "" {
		settings.Signing.SigningKey = cfg.Signing.SigningKey
	}
	if cfg.Signing.SigningKeyEnv != "" {
		settings.Signing.SigningKey = os.Getenv(cfg.Signing.SigningKeyEnv)
	}
	if cfg.Signing.CustomSignerMessage != "" {
		settings.Signing.CustomSignerMessage = cfg.Signing.CustomSignerMessage
	}

	return nil
}

func applyEnv(settings *Settings) error {
	if v := os.Getenv("AZTEC_WALLET"); v != "" {
		settings.Wallet = strings.ToLower(v)
	}
	if v := os.Getenv("AZTEC_OUTPUT"); v != "" {
		settings.OutputMode = strings.ToLower(v)
	}
	if v := os.Getenv("AZTEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.Timeout = d
		}
	}
	if v := os.Getenv("AZTEC_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.Retries = n
		}
	}
	if v := os.Getenv("AZTEC_MAX_STALE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			settings.MaxStale = d
		}
	}
	if v := os.Getenv("AZTEC_NO_STALE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.NoStale = b
		}
	}
	if v := os.Getenv("AZTEC_NO_CACHE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.CacheEnabled = !b
		}
	}
	if v := os.Getenv("AZTEC_CACHE_PATH"); v != "" {
		settings.CachePath = v
	}
	if v := os.Getenv("AZTEC_CACHE_LOCK_PATH"); v != "" {
		settings.CacheLockPath = v
	}
	if v := os.Getenv("AZTEC_ACTIONS_PATH"); v != "" {
		settings.ActionStorePath = v
	}
	if v := os.Getenv("AZTEC_ACTIONS_LOCK_PATH"); v != "" {
		settings.ActionLockPath = v
	}
	if v := os.Getenv("AZTEC_LOG_LEVEL"); v != "" {
		level, err := logging.ParseLevel(v)
		if err != nil {
			return fmt.Errorf("AZTEC_LOG_LEVEL: %w", err)
		}
		settings.LogLevel = level
	}
	if v := os.Getenv("AZTEC_WALLET_RPC_URL"); v != "" {
		settings.WalletRPCURL = v
	}
	if v := os.Getenv("AZTEC_WALLETCONNECT_RELAY_URL"); v != "" {
		settings.RelayURL = v
	}
	if v := os.Getenv("AZTEC_WALLETCONNECT_PROJECT_ID"); v != "" {
		settings.ProjectID = v
	}
	if v := os.Getenv("AZTEC_KEY_SOURCE"); v != "" {
		settings.KeySource = v
	}
	if v := os.Getenv("AZTEC_ETH_RPC_URL"); v != "" {
		settings.EthRPCURL = v
	}
	if v := os.Getenv("AZTEC_SDK_URL"); v != "" {
		settings.SDKURL = v
	}
	if v := os.Getenv("AZTEC_ACCOUNT_KEY"); v != "" {
		settings.Signing.AccountKey = v
	}
	if v := os.Getenv("AZTEC_SIGNING_KEY"); v != "" {
		settings.Signing.SigningKey = v
	}
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		parts := strings.Split(flags.Select, ",")
		fields := make([]string, 0, len(parts))
		for _, part := range parts {
			f := strings.TrimSpace(part)
			if f != "" {
				fields = append(fields, f)
			}
		}
		settings.SelectFields = fields
	}
	settings.ResultsOnly = flags.ResultsOnly

	if strings.TrimSpace(flags.EnableCommands) != "" {
		parts := strings.Split(flags.EnableCommands, ",")
		allowed := make([]string, 0, len(parts))
		for _, part := range parts {
			v := strings.TrimSpace(part)
			if v != "" {
				allowed = append(allowed, v)
			}
		}
		settings.EnableCommands = allowed
	}

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.MaxStale != "" {
		d, err := time.ParseDuration(flags.MaxStale)
		if err != nil {
			return fmt.Errorf("parse --max-stale: %w", err)
		}
		settings.MaxStale = d
	}
	if flags.NoStale {
		settings.NoStale = true
	}
	if flags.NoCache {
		settings.CacheEnabled = false
	}
	if flags.LogLevel != "" {
		level, err := logging.ParseLevel(flags.LogLevel)
		if err != nil {
			return fmt.Errorf("parse --log-level: %w", err)
		}
		settings.LogLevel = level
	}
	if flags.Verbose {
		settings.LogLevel = slog.LevelDebug
	}
	if flags.Wallet != "" {
		settings.Wallet = strings.ToLower(flags.Wallet)
	}
	if flags.WalletRPCURL != "" {
		settings.WalletRPCURL = flags.WalletRPCURL
	}
	if flags.EthRPCURL != "" {
		settings.EthRPCURL = flags.EthRPCURL
	}
	if flags.SDKURL != "" {
		settings.SDKURL = flags.SDKURL
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}

	return nil
}
