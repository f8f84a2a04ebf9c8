package cmd

import (
	"fmt"

	"github.com/AllegroVivo/PartyBusBot/partybus"
	"github.com/spf13/cobra"
)

var (
	registerCommands bool

	runCmd = &cobra.Command{
		Use:   "run [flags]",
		Short: "Starts the bot, API and (optionally) webhook server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			bot, err := partybus.New(cfg)
			if err != nil {
				return fmt.Errorf("error creating bot: %w", err)
			}
			if err = bot.ValidateConfig(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if registerCommands {
				if _, err = bot.RegisterSlashCommands(); err != nil {
					return fmt.Errorf("error registering commands: %w", err)
				}
			}
			if err = bot.Run(ctx); err != nil {
				return fmt.Errorf("error running bot: %w", err)
			}
			return nil
		},
	}
)

//nolint:gochecknoinits // cobra registration
func init() {
	runCmd.Flags().BoolVar(
		&registerCommands,
		"register-commands",
		false,
		"Overwrite the bot's slash commands before starting",
	)
	rootCmd.AddCommand(runCmd)
}
