package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/liamcoop/docrules/rules"
)

func newLintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Validate every schema file in the schema directory",
		Long:  "Decodes and validates every *.json schema file. Exits non-zero when any schema has a violation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := rules.NewFileSchemaStore(os.DirFS(a.cfg.Schemas.Dir), nil)
			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			failures, err := store.LintAll(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range names {
				ferr, failed := failures[name]
				if !failed {
					fmt.Fprintf(out, "ok    %s\n", name)
					continue
				}
				fmt.Fprintf(out, "FAIL  %s\n", name)
				for _, line := range violationLines(ferr) {
					fmt.Fprintf(out, "      %s\n", line)
				}
			}

			if len(failures) > 0 {
				return fmt.Errorf("%d of %d schemas failed validation", len(failures), len(names))
			}
			fmt.Fprintf(out, "%d schemas valid\n", len(names))
			return nil
		},
	}
}

func violationLines(err error) []string {
	var verr *rules.SchemaValidationError
	if errors.As(err, &verr) {
		lines := append([]string{}, verr.Violations...)
		sort.Strings(lines)
		return lines
	}
	return []string{err.Error()}
}
