package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

var versionsLimit int

// NewAnnotationsCmd creates the annotations command group for reading a
// file's stored annotation state.
func NewAnnotationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotations",
		Short: "Read a file's stored annotations",
	}

	getCmd := &cobra.Command{
		Use:   "get <file-hash-id>",
		Short: "Print the merged annotation list of a file",
		Long:  "Prints the file's effective annotations: automatic matches minus excluded\nterms plus custom inclusions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.Validation("API client not configured; check --server")
			}

			annotations, err := cliCtx.Client.Files().Annotations(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, annotations)
			}

			headers := []string{"UUID", "KEYWORD", "TYPE", "ID", "PAGE"}
			rows := make([][]string, 0, len(annotations))
			for _, a := range annotations {
				rows = append(rows, []string{
					a.UUID,
					a.Keyword,
					string(a.Meta.Type),
					a.Meta.ID,
					fmt.Sprintf("%d", a.PageNumber),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(headers, rows))
			return nil
		},
	}

	collectionCmd := &cobra.Command{
		Use:   "collection <file-hash-id>",
		Short: "Print the stored BioC collection of a file as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.Validation("API client not configured; check --server")
			}

			raw, err := cliCtx.Client.Files().Collection(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(raw))
			return nil
		},
	}

	versionsCmd := &cobra.Command{
		Use:   "versions <file-hash-id>",
		Short: "List a file's annotation version history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if cliCtx.Client == nil {
				return errors.Validation("API client not configured; check --server")
			}

			versions, err := cliCtx.Client.Files().Versions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if versionsLimit > 0 && len(versions) > versionsLimit {
				versions = versions[:versionsLimit]
			}

			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, versions)
			}

			headers := []string{"ID", "CAUSE", "USER", "CUSTOM", "EXCLUDED", "CREATED"}
			rows := make([][]string, 0, len(versions))
			for _, v := range versions {
				rows = append(rows, []string{
					v.ID,
					v.Cause,
					v.UserID,
					fmt.Sprintf("%d", len(v.CustomAnnotations)),
					fmt.Sprintf("%d", len(v.ExcludedAnnotations)),
					v.CreatedAt,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(headers, rows))
			return nil
		},
	}
	versionsCmd.Flags().IntVar(&versionsLimit, "limit", 0, "maximum number of versions to show (0 = all)")

	cmd.AddCommand(getCmd, collectionCmd, versionsCmd)
	return cmd
}
