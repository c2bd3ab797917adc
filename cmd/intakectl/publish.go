package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/liamcoop/docrules/rules"
)

func newPublishCmd(a *app) *cobra.Command {
	var (
		transactionType string
		ownershipStatus string
	)

	cmd := &cobra.Command{
		Use:   "publish FILE",
		Short: "Publish a schema file as the new active database version",
		Long:  "Validates the schema file and stores it as the next version of its schema. Invalid files are rejected before anything is written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			definition, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read schema: %w", err)
			}

			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := rules.NewPostgresSchemaStore(db, nil).Publish(cmd.Context(), transactionType, ownershipStatus, definition)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "published %s version %d\n",
				rules.SchemaName(transactionType, ownershipStatus), version)
			return nil
		},
	}

	cmd.Flags().StringVar(&transactionType, "type", "", "transaction type, e.g. seller")
	cmd.Flags().StringVar(&ownershipStatus, "ownership", "", "ownership status, e.g. conventional")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("ownership")
	return cmd
}
