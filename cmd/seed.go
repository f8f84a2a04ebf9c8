package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/AllegroVivo/PartyBusBot/partybus"
	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed --file positions.yaml",
	Short: "Load positions and requirements from a YAML file",
	Long: "Creates the positions and requirements listed in the file. " +
		"Positions and requirements that already exist are skipped.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if seedFile == "" {
			return errors.New("--file is required")
		}

		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("error opening seed file: %w", err)
		}
		defer f.Close()

		seed, err := partybus.LoadSeed(f)
		if err != nil {
			return err
		}

		db, err := partybus.CreateDB(ctx, cfg.DatabaseType, cfg.Database)
		if err != nil {
			return fmt.Errorf("error creating database: %w", err)
		}
		defer closeDB(db)

		store := partybus.NewStore(
			partybus.NewDatabase(db, nil, cfg.DatabaseType == "postgres"),
			nil,
		)
		if err = store.Load(ctx); err != nil {
			return err
		}

		result, err := partybus.ApplySeed(ctx, store, seed)
		out := cmd.OutOrStdout()
		fmt.Fprintf(
			out,
			"positions: %d created, %d skipped\nrequirements: %d created, %d skipped\n",
			result.PositionsCreated,
			result.PositionsSkipped,
			result.RequirementsCreated,
			result.RequirementsSkipped,
		)
		return err
	},
}

//nolint:gochecknoinits // cobra registration
func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML seed file")
	rootCmd.AddCommand(seedCmd)
}
