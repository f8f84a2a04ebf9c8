package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/AllegroVivo/PartyBusBot/partybus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

// passwordReader is a function type for reading passwords. It's really only
// here to make testing easier.
type passwordReader func() ([]byte, error)

var customPasswordReader passwordReader

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database and set admin credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.DatabaseType == "" {
			return errors.New("database type not set (must be one of: sqlite, postgres)")
		}
		if cfg.Database == "" {
			return errors.New(
				"database not set (must be a valid database connection " +
					"string or sqlite file path)",
			)
		}
		db, err := partybus.CreateDB(ctx, cfg.DatabaseType, cfg.Database)
		if err != nil {
			return fmt.Errorf("error creating database: %w", err)
		}
		defer closeDB(db)

		var runtimeConfig partybus.RuntimeConfig
		if err = db.Last(&runtimeConfig).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("error retrieving runtime config: %w", err)
			}
			runtimeConfig = partybus.DefaultRuntimeConfig()
			if err = db.Create(&runtimeConfig).Error; err != nil {
				return fmt.Errorf("error creating runtime config: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		if runtimeConfig.AdminUsername != "" && runtimeConfig.AdminPassword != "" {
			fmt.Fprintln(out, "Admin credentials are already set.")
			fmt.Fprintln(out, "Initialization complete. You can now start the bot with the 'run' subcommand.")
			return nil
		}

		fmt.Fprintln(out, "Admin credentials are not set. Let's set them up.")
		reader := bufio.NewReader(cmd.InOrStdin())

		var username string
		for username == "" {
			fmt.Fprint(out, "Enter admin username: ")
			line, readErr := reader.ReadString('\n')
			username = strings.TrimSpace(line)
			if readErr != nil && username == "" {
				return fmt.Errorf("error reading username: %w", readErr)
			}
		}

		readPassword := customPasswordReader
		if readPassword == nil {
			readPassword = func() ([]byte, error) {
				return term.ReadPassword(int(syscall.Stdin))
			}
		}

		var password string
		for {
			fmt.Fprint(out, "Enter admin password: ")
			passwordBytes, readErr := readPassword()
			fmt.Fprintln(out)
			if readErr != nil {
				return fmt.Errorf("error reading password: %w", readErr)
			}

			fmt.Fprint(out, "Confirm admin password: ")
			confirmBytes, readErr := readPassword()
			fmt.Fprintln(out)
			if readErr != nil {
				return fmt.Errorf("error reading password: %w", readErr)
			}

			password = string(passwordBytes)
			if password != "" && password == string(confirmBytes) {
				break
			}
			fmt.Fprintln(out, "Passwords are empty or do not match. Please try again.")
		}

		hashedPassword, err := partybus.HashPassword(password)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}

		if err = db.Model(&runtimeConfig).Updates(
			map[string]any{
				"admin_username": username,
				"admin_password": hashedPassword,
			},
		).Error; err != nil {
			return fmt.Errorf("error updating admin credentials: %w", err)
		}

		fmt.Fprintln(out, "Admin credentials set successfully.")
		fmt.Fprintln(out, "Initialization complete. You can now start the bot with the 'run' subcommand.")
		return nil
	},
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

//nolint:gochecknoinits // cobra registration
func init() {
	rootCmd.AddCommand(initCmd)
}
