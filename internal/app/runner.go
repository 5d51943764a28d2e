package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggonzalez94/aztec-cli/internal/cache"
	"github.com/ggonzalez94/aztec-cli/internal/config"
	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/execution"
	"github.com/ggonzalez94/aztec-cli/internal/logging"
	"github.com/ggonzalez94/aztec-cli/internal/model"
	"github.com/ggonzalez94/aztec-cli/internal/out"
	"github.com/ggonzalez94/aztec-cli/internal/policy"
	"github.com/ggonzalez94/aztec-cli/internal/registry"
	"github.com/ggonzalez94/aztec-cli/internal/schema"
	"github.com/ggonzalez94/aztec-cli/internal/version"
	"github.com/ggonzalez94/aztec-cli/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	// Collaborator constructors, replaced in tests.
	openWallet    walletOpener
	dialSDK       sdkDialer
	lookupNetwork func(chainID int64) (registry.Network, error)
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{
		stdout:        stdout,
		stderr:        stderr,
		now:           time.Now,
		openWallet:    wallet.Open,
		dialSDK:       dialRollupSDK,
		lookupNetwork: registry.NetworkByChainID,
	}
}

type runtimeState struct {
	runner        *Runner
	flags         config.GlobalFlags
	chainIDFlag   int64
	settings      config.Settings
	logger        *slog.Logger
	cache         *cache.Store
	actionStore   *execution.Store
	root          *cobra.Command
	lastCommand   string
	lastChainID   int64
	lastWarnings  []string
	lastProviders []model.ProviderStatus
}

func (r *Runner) Run(args []string) int {
	state := &runtimeState{runner: r, logger: logging.NewNop()}
	root := state.newRootCommand()
	state.root = root
	state.resetCommandDiagnostics()
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	err = normalizeRunError(err)
	if err != nil {
		state.renderError("", err, state.lastWarnings, state.lastProviders)
	}
	state.closeStores()
	return clierr.ExitCode(err)
}

func (s *runtimeState) closeStores() {
	if s.cache != nil {
		_ = s.cache.Close()
		s.cache = nil
	}
	if s.actionStore != nil {
		_ = s.actionStore.Close()
		s.actionStore = nil
	}
}

func (s *runtimeState) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.CLIName,
		Short: "Move funds into, within and out of the Aztec rollup",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			settings, err := config.Load(s.flags)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load configuration", err)
			}
			s.settings = settings
			s.logger = logging.New(settings.LogLevel, s.runner.stderr)

			path := trimRootPath(cmd.CommandPath())
			s.lastCommand = path
			if err := policy.CheckCommandAllowed(settings.EnableCommands, path); err != nil {
				return err
			}

			if settings.CacheEnabled && shouldOpenCache(path) && s.cache == nil {
				cacheStore, err := cache.Open(settings.CachePath, settings.CacheLockPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeInternal, "open cache", err)
				}
				s.cache = cacheStore
			}
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return clierr.Wrap(clierr.CodeUsage, "parse flags", err)
	})

	pf := cmd.PersistentFlags()
	pf.BoolVar(&s.flags.JSON, "json", false, "Output JSON (default)")
	pf.BoolVar(&s.flags.Plain, "plain", false, "Output plain text")
	pf.StringVar(&s.flags.Select, "select", "", "Select fields from data (comma-separated)")
	pf.BoolVar(&s.flags.ResultsOnly, "results-only", false, "Output only data payload")
	pf.StringVar(&s.flags.EnableCommands, "enable-commands", "", "Allowlist command paths (comma-separated)")
	pf.StringVar(&s.flags.Timeout, "timeout", "", "Timeout for read-only provider lookups")
	pf.IntVar(&s.flags.Retries, "retries", -1, "Retries per provider request")
	pf.StringVar(&s.flags.MaxStale, "max-stale", "", "Maximum stale fallback window after TTL expiry")
	pf.BoolVar(&s.flags.NoStale, "no-stale", false, "Reject stale cache entries")
	pf.BoolVar(&s.flags.NoCache, "no-cache", false, "Disable cache reads and writes")
	pf.StringVar(&s.flags.ConfigPath, "config", "", "Path to config file")
	pf.StringVar(&s.flags.LogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolVarP(&s.flags.Verbose, "verbose", "v", false, "Debug logging")
	pf.StringVar(&s.flags.Wallet, "wallet", "", "Wallet transport (local|walletconnect|key)")
	pf.StringVar(&s.flags.WalletRPCURL, "wallet-rpc-url", "", "Local wallet JSON-RPC endpoint")
	pf.StringVar(&s.flags.EthRPCURL, "eth-rpc-url", "", "Ethereum RPC for the key wallet and data provider reads")
	pf.StringVar(&s.flags.SDKURL, "sdk-url", "", "Rollup SDK host JSON-RPC endpoint")
	pf.Int64Var(&s.chainIDFlag, "chain-id", 0, "Ethereum chain id when the wallet cannot report one")

	cmd.AddCommand(s.newDepositCommand())
	cmd.AddCommand(s.newRegisterCommand())
	cmd.AddCommand(s.newAddSpendingKeyCommand())
	cmd.AddCommand(s.newDefiBridgeCommand())
	cmd.AddCommand(s.newWithdrawCommand())
	cmd.AddCommand(s.newTransferCommand())
	cmd.AddCommand(s.newStageRecoveryKeyCommand())
	cmd.AddCommand(s.newAddRecoveryKeyCommand())
	cmd.AddCommand(s.newBalanceCommand())
	cmd.AddCommand(s.newHistoryCommand())
	cmd.AddCommand(s.newAccountInfoCommand())
	cmd.AddCommand(s.newFeesCommand())
	cmd.AddCommand(s.newAssetsCommand())
	cmd.AddCommand(s.newBridgesCommand())
	cmd.AddCommand(s.newActionsCommand())
	cmd.AddCommand(s.newConfigCommand())
	cmd.AddCommand(s.newSchemaCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), version.CLIVersion)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

func (s *runtimeState) newSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [command path]",
		Short: "Print machine-readable command schema",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) > 0 {
				path = strings.Join(args, " ")
			}
			data, err := schema.Build(s.root, path)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "build schema", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), data, nil, cacheMetaBypass(), nil)
		},
	}
	return cmd
}

type fetchFn func(ctx context.Context) (data any, providerStatus []model.ProviderStatus, warnings []string, err error)

// runCachedCommand serves read-only listings from the cache, falling back to stale
// entries when the upstream lookup is unavailable.
func (s *runtimeState) runCachedCommand(commandPath string, key cache.Key, ttl time.Duration, fetch fetchFn) error {
	s.resetCommandDiagnostics()
	cacheStatus := cacheMetaMiss()
	warnings := []string{}
	var staleData any
	staleAvailable := false
	staleCacheStatus := cacheMetaMiss()
	staleAge := time.Duration(0)

	if s.settings.CacheEnabled && s.cache != nil {
		cached, err := s.cache.Get(key, s.settings.MaxStale)
		if err == nil && cached.Hit {
			entryStatus := model.CacheStatus{Status: "hit", AgeMS: cached.Age.Milliseconds(), Stale: cached.Stale}
			var data any
			if err := json.Unmarshal(cached.Value, &data); err == nil {
				if !cached.Stale {
					return s.emitSuccess(commandPath, data, warnings, entryStatus, nil)
				}
				staleData = data
				staleAvailable = true
				staleAge = cached.Age
				staleCacheStatus = entryStatus
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.settings.Timeout)
	defer cancel()
	data, providerStatus, providerWarnings, err := fetch(ctx)
	warnings = append(warnings, providerWarnings...)
	s.captureCommandDiagnostics(warnings, providerStatus)
	if err != nil {
		if !staleAvailable || !staleFallbackAllowed(err) {
			return err
		}
		if s.settings.NoStale {
			return clierr.Wrap(clierr.CodeUnavailable, "fresh lookup failed and stale fallback is disabled (--no-stale)", err)
		}
		if staleExceedsBudget(staleAge, ttl, s.settings.MaxStale) {
			return clierr.Wrap(clierr.CodeUnavailable, "fresh lookup failed and cached data exceeded stale budget", err)
		}
		warnings = append(warnings, "lookup failed; serving stale data within max-stale budget")
		s.captureCommandDiagnostics(warnings, providerStatus)
		return s.emitSuccess(commandPath, staleData, warnings, staleCacheStatus, providerStatus)
	}

	if s.settings.CacheEnabled && s.cache != nil {
		if err := s.cache.Put(key, data, ttl); err == nil {
			cacheStatus = model.CacheStatus{Status: "write"}
		} else {
			s.logger.Warn("cache write failed", "command", commandPath, "error", err)
		}
	}

	return s.emitSuccess(commandPath, data, warnings, cacheStatus, providerStatus)
}

func (s *runtimeState) emitSuccess(commandPath string, data any, warnings []string, cacheStatus model.CacheStatus, providers []model.ProviderStatus) error {
	env := model.Envelope{
		Version:  model.EnvelopeVersion,
		Success:  true,
		Data:     data,
		Error:    nil,
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			ChainID:   s.lastChainID,
			Providers: providers,
			Cache:     cacheStatus,
		},
	}
	return out.Render(s.runner.stdout, env, s.settings)
}

func (s *runtimeState) renderError(commandPath string, err error, warnings []string, providers []model.ProviderStatus) {
	if strings.TrimSpace(commandPath) == "" {
		commandPath = s.lastCommand
		if commandPath == "" {
			commandPath = version.CLIName
		}
	}
	code := clierr.ExitCode(err)
	typ := clierr.TypeName(clierr.CodeInternal)
	message := err.Error()
	if cErr, ok := clierr.As(err); ok {
		typ = clierr.TypeName(cErr.Code)
		message = cErr.Error()
	}

	settings := s.settings
	if settings.OutputMode == "" {
		settings.OutputMode = "json"
	}
	settings.ResultsOnly = false
	settings.SelectFields = nil
	env := model.Envelope{
		Version: model.EnvelopeVersion,
		Success: false,
		Data:    []any{},
		Error: &model.ErrorBody{
			Code:    code,
			Type:    typ,
			Message: message,
		},
		Warnings: warnings,
		Meta: model.EnvelopeMeta{
			RequestID: newRequestID(),
			Timestamp: s.runner.now().UTC(),
			Command:   commandPath,
			ChainID:   s.lastChainID,
			Providers: providers,
			Cache:     cacheMetaBypass(),
		},
	}
	_ = out.Render(s.runner.stderr, env, settings)
}

func (s *runtimeState) ensureActionStore() error {
	if s.actionStore != nil {
		return nil
	}
	store, err := execution.OpenStore(s.settings.ActionStorePath, s.settings.ActionLockPath)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "open action store", err)
	}
	s.actionStore = store
	return nil
}

func newRequestID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func trimRootPath(path string) string {
	parts := strings.Fields(path)
	if len(parts) <= 1 {
		return path
	}
	return strings.Join(parts[1:], " ")
}

func statusFromErr(err error) string {
	if err == nil {
		return "ok"
	}
	if cErr, ok := clierr.As(err); ok {
		switch cErr.Code {
		case clierr.CodeUnavailable:
			return "unavailable"
		case clierr.CodeUnsupported:
			return "unsupported"
		case clierr.CodeBlocked:
			return "blocked"
		}
	}
	return "error"
}

func cacheMetaBypass() model.CacheStatus {
	return model.CacheStatus{Status: "bypass"}
}

func cacheMetaMiss() model.CacheStatus {
	return model.CacheStatus{Status: "miss"}
}

func normalizeRunError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := clierr.As(err); ok {
		return err
	}
	if isLikelyUsageError(err) {
		return clierr.Wrap(clierr.CodeUsage, "invalid command input", err)
	}
	if errors.Is(err, context.Canceled) {
		return clierr.Wrap(clierr.CodeInternal, "interrupted", err)
	}
	return clierr.Wrap(clierr.CodeInternal, "execute command", err)
}

func isLikelyUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	patterns := []string{
		"unknown command",
		"unknown flag",
		"unknown shorthand flag",
		"required flag(s)",
		"flag needs an argument",
		"requires at least",
		"requires exactly",
		"accepts ",
		"invalid argument",
		"invalid args",
	}
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func staleExceedsBudget(age, ttl, maxStale time.Duration) bool {
	if age <= ttl {
		return false
	}
	if maxStale < 0 {
		return false
	}
	return age > ttl+maxStale
}

func staleFallbackAllowed(err error) bool {
	return clierr.Is(err, clierr.CodeUnavailable)
}

// shouldOpenCache limits the cache to the read-only catalog listings. Account state,
// fees and registration are always read fresh.
func shouldOpenCache(commandPath string) bool {
	switch normalizeCommandPath(commandPath) {
	case "assets", "bridges":
		return true
	default:
		return false
	}
}

func normalizeCommandPath(commandPath string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(commandPath))), " ")
}

func (s *runtimeState) resetCommandDiagnostics() {
	s.lastWarnings = nil
	s.lastProviders = nil
}

func (s *runtimeState) captureCommandDiagnostics(warnings []string, providers []model.ProviderStatus) {
	if len(warnings) == 0 {
		s.lastWarnings = nil
	} else {
		s.lastWarnings = append([]string(nil), warnings...)
	}
	if len(providers) == 0 {
		s.lastProviders = nil
	} else {
		s.lastProviders = append([]model.ProviderStatus(nil), providers...)
	}
}
