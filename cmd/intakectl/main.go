package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/liamcoop/docrules/internal/config"
	"github.com/liamcoop/docrules/internal/logger"
	"github.com/liamcoop/docrules/rules"
)

// app carries the state shared by every subcommand
type app struct {
	configFile string
	schemaDir  string
	source     string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "intakectl",
		Short:         "Manage and test intake questionnaire schemas",
		Long:          "Lints schema files, evaluates answer sets against a schema, and publishes schemas to the database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(a.configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if a.schemaDir != "" {
				c.Schemas.Dir = a.schemaDir
			}
			if a.source != "" {
				c.Schemas.Source = a.source
			}
			a.cfg = c

			// CLI output goes to stdout, logs to stderr
			if err := logger.Setup(cmd.Context(), logger.Options{
				Level:       c.Log.Level,
				Output:      os.Stderr,
				ServiceName: "intakectl",
			}); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.schemaDir, "schemas", "", "schema directory (overrides schemas.dir)")
	root.PersistentFlags().StringVar(&a.source, "source", "", "schema source: file or postgres (overrides schemas.source)")

	root.AddCommand(
		newLintCmd(a),
		newEvaluateCmd(a),
		newPublishCmd(a),
		newListCmd(a),
	)
	return root
}

// openDB connects to the configured database
func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	if a.cfg.Database.URL == "" {
		return nil, fmt.Errorf("database URL is required: set DATABASE_URL")
	}
	db, err := sql.Open("postgres", a.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// openStore returns the configured schema store and a function releasing it
func (a *app) openStore(ctx context.Context) (rules.SchemaStore, func(), error) {
	if a.cfg.Schemas.Source == "postgres" {
		db, err := a.openDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		return rules.NewPostgresSchemaStore(db, nil), func() { db.Close() }, nil
	}
	return rules.NewFileSchemaStore(os.DirFS(a.cfg.Schemas.Dir), nil), func() {}, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
