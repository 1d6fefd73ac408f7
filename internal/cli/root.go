// Package cli wires configuration, logging and the store into the
// flight_replay commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"flight_replay/internal/config"
	"flight_replay/internal/database"
	"flight_replay/internal/ingest"

	"github.com/spf13/cobra"
)

type app struct {
	configPath string
	cfg        *config.Config
	stdout     io.Writer
	stderr     io.Writer
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCommand(os.Stdout, os.Stderr).Execute()
}

// NewRootCommand builds the command tree writing to the given streams.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "flight_replay",
		Short:         "Replay recorded ADS-B snapshots over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			initLogger(cfg, a.stderr)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (YAML)")

	cmd.AddCommand(
		newServeCmd(a),
		newRecordCmd(a),
		newFetchCmd(a),
		newImportCmd(a),
		newAirlinesCmd(a),
		newAircraftCmd(a),
		newExportCmd(a),
	)

	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd
}

func (a *app) openDB() (*database.DB, error) {
	db, err := database.Open(a.cfg.DB.Driver, a.cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Debug("Opened database", "driver", a.cfg.DB.Driver)
	return db, nil
}

func (a *app) importer(db *database.DB) *ingest.Importer {
	return ingest.New(db, a.cfg.Import.BatchSize)
}
