package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator commands (require --admin-key)",
	}

	cmd.AddCommand(newAdminLinkCmd())
	cmd.AddCommand(newAdminScreennameCmd())
	cmd.AddCommand(newAdminEraseCmd())
	cmd.AddCommand(newHashKeyCmd())

	return cmd
}

func requireAdminKey() error {
	if cfg.AdminKey == "" {
		return fmt.Errorf("--admin-key or PLAYERCTL_ADMIN_KEY is required")
	}
	return nil
}

func newAdminLinkCmd() *cobra.Command {
	var child, parent string
	var force bool

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Parent one account under another",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdminKey(); err != nil {
				return err
			}

			var result Player
			err := client.Patch("/api/v1/admin/account/link", map[string]any{
				"child_id":  child,
				"parent_id": parent,
				"force":     force,
			}, &result)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&child, "child", "", "Account to attach (required)")
	cmd.Flags().StringVar(&parent, "parent", "", "Account to attach it to (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Relink a child that already has a parent")
	_ = cmd.MarkFlagRequired("child")
	_ = cmd.MarkFlagRequired("parent")

	return cmd
}

func newAdminScreennameCmd() *cobra.Command {
	var accountID, name string

	cmd := &cobra.Command{
		Use:   "screenname",
		Short: "Rename an account and its linked children",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdminKey(); err != nil {
				return err
			}

			var result ScreennameResult
			err := client.Patch("/api/v1/admin/account/screenname", map[string]string{
				"account_id": accountID,
				"screenname": name,
			}, &result)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id (required)")
	cmd.Flags().StringVar(&name, "name", "", "New screenname (required)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func newAdminEraseCmd() *cobra.Command {
	var accountID, placeholder string

	cmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase an account's personal data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireAdminKey(); err != nil {
				return err
			}

			var result EraseResult
			err := client.Post("/api/v1/admin/account/erase", map[string]string{
				"account_id":  accountID,
				"placeholder": placeholder,
			}, &result)
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "Account id (required)")
	cmd.Flags().StringVar(&placeholder, "placeholder", "", "Replacement email (server default when empty)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

// newHashKeyCmd prints the bcrypt hash to put in admin.key_hash
func newHashKeyCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Hash an admin key for the server config",
		Long: `Hash an admin key for the server's admin.key_hash setting.
The key is read from the argument, or from stdin when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				data, err := readAll(os.Stdin)
				if err != nil {
					return err
				}
				key = strings.TrimSpace(data)
			}
			if key == "" {
				return fmt.Errorf("key must not be empty")
			}

			hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage(string(hash))
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")

	return cmd
}
