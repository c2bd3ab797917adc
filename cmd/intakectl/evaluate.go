package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/docrules/rules"
)

type evaluateOutput struct {
	Schema    string                   `json:"schema"`
	Complete  bool                     `json:"complete"`
	Missing   []string                 `json:"missing"`
	Documents []rules.DocumentDecision `json:"documents"`
}

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		transactionType string
		ownershipStatus string
		answersFile     string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate an answer set against a schema",
		Long:  "Prints the completeness result and the selected documents as JSON. Use --answers - to read answers from stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			answers, err := readAnswers(cmd, answersFile)
			if err != nil {
				return err
			}

			store, release, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			eval, err := rules.NewEngine(store).Evaluate(cmd.Context(), transactionType, ownershipStatus, answers)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(evaluateOutput{
				Schema:    eval.Schema.Name,
				Complete:  eval.Complete,
				Missing:   eval.Missing,
				Documents: eval.Documents,
			})
		},
	}

	cmd.Flags().StringVar(&transactionType, "type", "", "transaction type, e.g. seller")
	cmd.Flags().StringVar(&ownershipStatus, "ownership", "", "ownership status, e.g. conventional")
	cmd.Flags().StringVar(&answersFile, "answers", "", "JSON file with an answers object, or - for stdin")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("ownership")
	return cmd
}

func readAnswers(cmd *cobra.Command, path string) (rules.AnswerSet, error) {
	answers := rules.AnswerSet{}
	if path == "" {
		return answers, nil
	}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}

	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, fmt.Errorf("answers must be a JSON object: %w", err)
	}
	return answers, nil
}
