package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

var (
	globalListKind     string
	globalListPage     int
	globalListPageSize int
)

// NewGlobalListCmd creates the global-list command group for curating the
// instance-wide inclusion and exclusion lists.
func NewGlobalListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "global-list",
		Short: "Curate the instance-wide inclusion and exclusion lists",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Page through global list entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.Validation("API client not configured; check --server")
			}

			if globalListKind != string(annotation.ManualInclusion) && globalListKind != string(annotation.ManualExclusion) {
				return errors.Validation(fmt.Sprintf("unknown kind %q, expected inclusion or exclusion", globalListKind))
			}

			result, err := cliCtx.Client.GlobalList().List(cmd.Context(), globalListKind, globalListPage, globalListPageSize)
			if err != nil {
				return err
			}

			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, result)
			}

			headers := []string{"ID", "KIND", "TERM", "TYPE", "USER", "CREATED"}
			rows := make([][]string, 0, len(result.Entries))
			for _, e := range result.Entries {
				term, entityType := globalEntryTerm(e)
				rows = append(rows, []string{
					strconv.FormatInt(e.ID, 10),
					string(e.Kind),
					term,
					entityType,
					e.UserID,
					e.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(headers, rows))
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d of %d entries (page %d)\n", len(result.Entries), result.Total, globalListPage)
			return nil
		},
	}
	listCmd.Flags().StringVar(&globalListKind, "kind", "inclusion", "entry kind (inclusion, exclusion)")
	listCmd.Flags().IntVar(&globalListPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&globalListPageSize, "page-size", 50, "entries per page")

	deleteCmd := &cobra.Command{
		Use:   "delete <id> [id...]",
		Short: "Remove global list entries by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.Validation("API client not configured; check --server")
			}

			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, parseErr := strconv.ParseInt(arg, 10, 64)
				if parseErr != nil {
					return errors.Validation(fmt.Sprintf("invalid entry id %q", arg))
				}
				ids = append(ids, id)
			}

			if err := cliCtx.Client.GlobalList().Delete(cmd.Context(), ids); err != nil {
				return err
			}

			PrintSuccess(cmd, fmt.Sprintf("removed %d global list entries", len(ids)))
			return nil
		},
	}

	cmd.AddCommand(listCmd, deleteCmd)
	return cmd
}

// globalEntryTerm extracts the display term and entity type from either side
// of a global list entry.
func globalEntryTerm(e *annotation.GlobalListEntry) (string, string) {
	if e.Inclusion != nil {
		return e.Inclusion.Keyword, string(e.Inclusion.Meta.Type)
	}
	if e.Exclusion != nil {
		return e.Exclusion.Text, string(e.Exclusion.Type)
	}
	return "", ""
}
