package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biosustain/lifelike-annotator/internal/annotator/textutil"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

var (
	dictPath string
	dictType string
)

// NewDictCmd creates the dict command group, which reads the entity
// dictionary LMDB directly without going through the API server.
func NewDictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dict",
		Short: "Inspect the local entity dictionary",
		Long:  "Reads the LMDB dictionary from disk. Useful to check what a term resolves\nto without running the full pipeline.",
	}

	cmd.PersistentFlags().StringVar(&dictPath, "path", "", "dictionary root directory (default: dictionary.path from config)")

	categoriesCmd := &cobra.Command{
		Use:   "categories",
		Short: "List the entity categories present in the dictionary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, store, err := openDictStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			categories := store.Categories()
			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, categories)
			}
			for _, c := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), string(c))
			}
			return nil
		},
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup <term>",
		Short: "Resolve a term against one entity category",
		Long:  "Normalizes the term the same way the matcher does, then prints every\ndictionary record keyed under it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType := annotation.EntityType(dictType)
			if !entityType.HasDictionary() {
				return errors.Validation(fmt.Sprintf("no dictionary for entity type %q", dictType))
			}

			cliCtx, store, err := openDictStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			key := textutil.Normalize(args[0])
			records, err := store.Lookup(entityType, key)
			if err != nil {
				return err
			}

			if cliCtx.OutputFormat == "json" {
				return PrintResult(cmd, records)
			}

			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s records for %q (normalized %q)\n", dictType, args[0], key)
				return nil
			}

			headers := []string{"ENTITY ID", "ID TYPE", "NAME", "SYNONYM", "TAX ID"}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.EntityID,
					string(r.IDType),
					r.Name,
					r.Synonym,
					r.TaxID,
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), FormatTable(headers, rows))
			return nil
		},
	}
	lookupCmd.Flags().StringVar(&dictType, "type", "Gene", "entity category to look up")

	cmd.AddCommand(categoriesCmd, lookupCmd)
	return cmd
}

// openDictStore resolves the dictionary path from the flag or config and
// opens the LMDB store read-only.
func openDictStore(cmd *cobra.Command) (*CLIContext, *dictionary.LMDBStore, error) {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, err
	}

	path := dictPath
	if path == "" && cliCtx.Config != nil {
		path = cliCtx.Config.Dictionary.Path
	}
	if path == "" {
		return nil, nil, errors.Validation("dictionary path not set; use --path or dictionary.path in config")
	}

	store, err := dictionary.OpenLMDB(path, cliCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cliCtx, store, nil
}
