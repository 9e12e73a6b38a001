// Package cli implements the whitelist administration command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"

	"github.com/veigamann/whisper-zap/internal/repo"
	"github.com/veigamann/whisper-zap/internal/services"
)

// DefaultDBPath matches the server's DB_PATH default.
const DefaultDBPath = "whisperzap.db"

// Opener opens and migrates the store at path.
type Opener func(path string) (*gorm.DB, error)

// OpenStore is the production Opener.
func OpenStore(path string) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(path, repo.Options{Silent: true})
	if err != nil {
		return nil, err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewWhitelistCmd builds the root command. Output goes to out; the store
// path comes from --db, then DB_PATH, then DefaultDBPath.
func NewWhitelistCmd(out io.Writer, open Opener) *cobra.Command {
	v := viper.New()
	v.SetDefault("db_path", DefaultDBPath)
	_ = v.BindEnv("db_path", "DB_PATH")

	withAuth := func(run func(ctx context.Context, auth *services.AuthService, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			db, err := open(v.GetString("db_path"))
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closeDB(db)
			return run(cmd.Context(), services.NewAuthService(db, repo.Whitelist{}), args)
		}
	}

	root := &cobra.Command{
		Use:           "whitelist",
		Short:         "Manage the users allowed to talk to the bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().String("db", DefaultDBPath, "SQLite database path (env DB_PATH)")
	_ = v.BindPFlag("db_path", root.PersistentFlags().Lookup("db"))

	root.AddCommand(
		&cobra.Command{
			Use:   "add <id>",
			Short: "Whitelist a user",
			Args:  cobra.ExactArgs(1),
			RunE: withAuth(func(ctx context.Context, auth *services.AuthService, args []string) error {
				if err := auth.AddToWhitelist(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Added %s to whitelist.\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a user from the whitelist",
			Args:  cobra.ExactArgs(1),
			RunE: withAuth(func(ctx context.Context, auth *services.AuthService, args []string) error {
				if err := auth.RemoveFromWhitelist(ctx, args[0]); err != nil {
					return notFound(err, args[0])
				}
				fmt.Fprintf(out, "Removed %s from whitelist.\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List whitelisted users",
			Args:  cobra.NoArgs,
			RunE: withAuth(func(ctx context.Context, auth *services.AuthService, _ []string) error {
				ids, err := auth.ListWhitelist(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Whitelisted IDs:")
				if len(ids) > 0 {
					fmt.Fprintln(out, strings.Join(ids, "\n"))
				}
				return nil
			}),
		},
		&cobra.Command{
			Use:   "addadmin <id>",
			Short: "Whitelist a user and grant admin rights",
			Args:  cobra.ExactArgs(1),
			RunE: withAuth(func(ctx context.Context, auth *services.AuthService, args []string) error {
				if err := auth.AddAdmin(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(out, "Granted admin to %s.\n", args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "removeadmin <id>",
			Short: "Revoke admin rights, keeping the user whitelisted",
			Args:  cobra.ExactArgs(1),
			RunE: withAuth(func(ctx context.Context, auth *services.AuthService, args []string) error {
				if err := auth.RemoveAdmin(ctx, args[0]); err != nil {
					return notFound(err, args[0])
				}
				fmt.Fprintf(out, "Revoked admin from %s.\n", args[0])
				return nil
			}),
		},
	)
	return root
}

func notFound(err error, id string) error {
	if errors.Is(err, services.ErrEntryNotFound) {
		return fmt.Errorf("%s is not whitelisted", id)
	}
	return err
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
