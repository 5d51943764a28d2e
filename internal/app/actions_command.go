package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/aztec-cli/internal/errors"
	"github.com/ggonzalez94/aztec-cli/internal/execution"
)

func (s *runtimeState) newActionsCommand() *cobra.Command {
	root := &cobra.Command{Use: "actions", Short: "Inspect recorded transaction workflow runs"}

	var (
		listStatus  string
		listAccount string
		listLimit   int
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent workflow runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := execution.ListFilter{
				Status:  strings.ToLower(strings.TrimSpace(listStatus)),
				Account: strings.TrimSpace(listAccount),
				Limit:   listLimit,
			}
			switch execution.ActionStatus(filter.Status) {
			case "", execution.ActionStatusPlanned, execution.ActionStatusRunning, execution.ActionStatusCompleted, execution.ActionStatusFailed:
			default:
				return clierr.New(clierr.CodeUsage, "--status must be planned, running, completed or failed")
			}
			if err := s.ensureActionStore(); err != nil {
				return err
			}
			actions, err := s.actionStore.List(filter)
			if err != nil {
				return clierr.Wrap(clierr.CodeInternal, "list actions", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), actions, nil, cacheMetaBypass(), nil)
		},
	}
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (planned|running|completed|failed)")
	listCmd.Flags().StringVar(&listAccount, "account", "", "Filter by account public key")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum actions to return")

	var statusActionID string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Get one workflow run with its steps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			actionID, err := resolveActionID(statusActionID)
			if err != nil {
				return err
			}
			if err := s.ensureActionStore(); err != nil {
				return err
			}
			action, err := s.actionStore.Get(actionID)
			if err != nil {
				return clierr.Wrap(clierr.CodeUsage, "load action", err)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), action, nil, cacheMetaBypass(), nil)
		},
	}
	statusCmd.Flags().StringVar(&statusActionID, "action-id", "", "Action identifier")

	root.AddCommand(listCmd)
	root.AddCommand(statusCmd)
	return root
}

func resolveActionID(input string) (string, error) {
	actionID := strings.TrimSpace(input)
	if actionID == "" {
		return "", clierr.New(clierr.CodeUsage, "--action-id is required")
	}
	return actionID, nil
}
