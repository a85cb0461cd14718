package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg    *Config
	client *Client
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cfg = DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "playerctl",
		Short: "CLI tool for the player account service",
		Long: `playerctl is a CLI tool for the player account JSON API.

It covers device and SSO login, email account confirmation, two-factor
verification, password recovery, account adoption and the operator
endpoints under /admin.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load token from file if not provided via flag/env
			if err := cfg.LoadToken(); err != nil {
				return err
			}

			// Create HTTP client
			client = NewClient(cfg.ServerURL, cfg.Token)
			client.SetAdmin(cfg.AdminKey, cfg.AdminActor)
			if cfg.Verbose {
				client.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
			}
			return nil
		},
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "Server URL (env: PLAYERCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&cfg.Token, "token", cfg.Token, "Bearer token (env: PLAYERCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "Token file path (env: PLAYERCTL_TOKEN_FILE)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminKey, "admin-key", cfg.AdminKey, "Admin key for /admin routes (env: PLAYERCTL_ADMIN_KEY)")
	rootCmd.PersistentFlags().StringVar(&cfg.AdminActor, "admin-actor", cfg.AdminActor, "Operator recorded for admin calls (env: PLAYERCTL_ADMIN_ACTOR)")
	rootCmd.PersistentFlags().StringVarP(&cfg.Output, "output", "o", cfg.Output, "Output format: text, json")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newAdminCmd())
	rootCmd.AddCommand(newHealthCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
