package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biosustain/lifelike-annotator/pkg/client"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
)

var (
	annotateOrganismID   string
	annotateOrganismName string
	annotateMethods      string
	annotateFailFast     bool
)

// NewAnnotateCmd creates the annotate command, which runs the annotation
// pipeline over one or more files through the API server.
func NewAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate <file-hash-id> [file-hash-id...]",
		Short: "Run the annotation pipeline over files",
		Long:  "Runs entity recognition over the named files on the server. Each file is\nreported independently; a failed file does not stop the rest of the batch.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd, args)
		},
	}

	cmd.Flags().StringVar(&annotateOrganismID, "organism-id", "", "NCBI taxonomy id of the fallback organism for gene matching")
	cmd.Flags().StringVar(&annotateOrganismName, "organism", "", "synonym of the fallback organism (used with --organism-id)")
	cmd.Flags().StringVar(&annotateMethods, "methods", "", "per-type annotation method overrides, e.g. Gene=nlp,Chemical=rules")
	cmd.Flags().BoolVar(&annotateFailFast, "fail-fast", false, "exit non-zero if any file in the batch fails")

	return cmd
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if cliCtx.Client == nil {
		return errors.Validation("API client not configured; check --server")
	}

	req := &client.AnnotateRequest{FileHashIDs: args}

	if annotateOrganismID != "" {
		req.Organism = annotation.SpecifiedOrganism{
			OrganismID: annotateOrganismID,
			Synonym:    annotateOrganismName,
		}
	}

	if annotateMethods != "" {
		methods, parseErr := parseMethodOverrides(annotateMethods)
		if parseErr != nil {
			return parseErr
		}
		req.Methods = methods
	}

	ctx := cmd.Context()
	results, err := cliCtx.Client.Files().Annotate(ctx, req)
	if err != nil {
		return err
	}

	if strings.EqualFold(cliCtx.OutputFormat, "json") {
		if err := PrintResult(cmd, results); err != nil {
			return err
		}
	} else {
		headers := []string{"FILE", "OUTCOME", "ANNOTATIONS", "ERROR"}
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			rows = append(rows, []string{
				r.FileHashID,
				r.Outcome,
				fmt.Sprintf("%d", r.Annotations),
				r.Error,
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), FormatTable(headers, rows))
	}

	if annotateFailFast {
		for _, r := range results {
			if r.Error != "" {
				return errors.Newf(errors.ErrCodeInternal, "annotation failed for %s: %s", r.FileHashID, r.Error)
			}
		}
	}

	return nil
}

// parseMethodOverrides parses "Type=method,Type=method" into a map, validating
// entity type names.
func parseMethodOverrides(s string) (map[string]string, error) {
	methods := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Validation(fmt.Sprintf("invalid method override %q, expected Type=method", pair))
		}
		entityType := annotation.EntityType(parts[0])
		if !entityType.IsValid() {
			return nil, errors.Validation(fmt.Sprintf("unknown entity type %q", parts[0]))
		}
		methods[parts[0]] = parts[1]
	}
	return methods, nil
}
