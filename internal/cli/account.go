package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Linked account and email account commands",
	}

	cmd.AddCommand(newAttachEmailCmd())
	cmd.AddCommand(newAttachGoogleCmd())
	cmd.AddCommand(newAttachAppleCmd())
	cmd.AddCommand(newAttachPlariumCmd())
	cmd.AddCommand(newConfirmCmd())
	cmd.AddCommand(newTwoFactorCmd())
	cmd.AddCommand(newRecoverCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newPasswordCmd())
	cmd.AddCommand(newAdoptCmd())

	return cmd
}

// patchPlayer sends body to path and prints the returned player
func patchPlayer(path string, body any) error {
	var result Player
	if err := client.Patch(path, body, &result); err != nil {
		return err
	}

	out := NewOutput(cfg.Output)
	out.Print(result)
	return nil
}

func newAttachEmailCmd() *cobra.Command {
	var device deviceFlags
	var email, hash string

	cmd := &cobra.Command{
		Use:   "attach-email",
		Short: "Attach an email account and send its confirmation link",
		Long: `Attach an email account to the current account. With a saved token the
token's account is used; otherwise the account is found through --install.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"rumble": map[string]string{"email": email, "hash": hash},
			}
			if d := device.body(); d != nil {
				req["device"] = d
			}
			return patchPlayer("/api/v1/player/account/rumble", req)
		},
	}

	device.register(cmd)
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&hash, "hash", "", "Password hash (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("hash")

	return cmd
}

func newAttachGoogleCmd() *cobra.Command {
	var device deviceFlags
	var token string

	cmd := &cobra.Command{
		Use:   "attach-google",
		Short: "Attach a Google account to the device's account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchPlayer("/api/v1/player/account/google", map[string]any{
				"device":       device.body(),
				"google_token": token,
			})
		},
	}

	device.register(cmd)
	cmd.Flags().StringVar(&token, "google-token", "", "Google ID token (required)")
	_ = cmd.MarkFlagRequired("install")
	_ = cmd.MarkFlagRequired("google-token")

	return cmd
}

func newAttachAppleCmd() *cobra.Command {
	var device deviceFlags
	var token, nonce string

	cmd := &cobra.Command{
		Use:   "attach-apple",
		Short: "Attach an Apple account to the device's account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchPlayer("/api/v1/player/account/apple", map[string]any{
				"device":      device.body(),
				"apple_token": token,
				"nonce":       nonce,
			})
		},
	}

	device.register(cmd)
	cmd.Flags().StringVar(&token, "apple-token", "", "Apple identity token (required)")
	cmd.Flags().StringVar(&nonce, "nonce", "", "Nonce the token was issued for")
	_ = cmd.MarkFlagRequired("install")
	_ = cmd.MarkFlagRequired("apple-token")

	return cmd
}

func newAttachPlariumCmd() *cobra.Command {
	var device deviceFlags
	var code, token string

	cmd := &cobra.Command{
		Use:   "attach-plarium",
		Short: "Attach a Plarium account to the device's account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if code == "" && token == "" {
				return fmt.Errorf("--code or --plarium-token is required")
			}
			return patchPlayer("/api/v1/player/account/plarium", map[string]any{
				"device": device.body(),
				"code":   code,
				"token":  token,
			})
		},
	}

	device.register(cmd)
	cmd.Flags().StringVar(&code, "code", "", "Plarium authorization code")
	cmd.Flags().StringVar(&token, "plarium-token", "", "Plarium auth token")
	_ = cmd.MarkFlagRequired("install")

	return cmd
}

func newConfirmCmd() *cobra.Command {
	var id, code string

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Follow an emailed confirmation link",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Redirect

			query := url.Values{"id": {id}, "code": {code}}
			if err := client.GetQuery("/api/v1/player/account/confirm", query, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Account id from the link (required)")
	cmd.Flags().StringVar(&code, "code", "", "Confirmation code from the link (required)")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func newTwoFactorCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "two-factor",
		Short: "Verify an emailed two-factor code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchPlayer("/api/v1/player/account/twoFactor", map[string]string{"code": code})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Two-factor code (required)")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func newRecoverCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Email a password reset code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchPlayer("/api/v1/player/account/recover", map[string]string{"email": email})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newResetCmd() *cobra.Command {
	var email, code, accountID string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Redeem a reset code so the password can be replaced",
		RunE: func(cmd *cobra.Command, args []string) error {
			return patchPlayer("/api/v1/player/account/reset", map[string]string{
				"username":   email,
				"code":       code,
				"account_id": accountID,
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&code, "code", "", "Reset code (required)")
	cmd.Flags().StringVar(&accountID, "account", "", "Account id, when no token is saved")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func newPasswordCmd() *cobra.Command {
	var email, oldHash, newHash string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the email account password",
		Long:  `Change the password. --old-hash may be omitted right after a reset.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player
			err := client.Patch("/api/v1/player/account/password", map[string]string{
				"username": email,
				"old_hash": oldHash,
				"new_hash": newHash,
			}, &result)
			if err != nil {
				return err
			}

			// Save token
			if result.Token != "" {
				if err := cfg.SaveToken(result.Token); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&oldHash, "old-hash", "", "Current password hash")
	cmd.Flags().StringVar(&newHash, "new-hash", "", "New password hash (required)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("new-hash")

	return cmd
}

func newAdoptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "adopt",
		Short: "Merge every account sharing the current link code into this one",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player
			if err := client.Patch("/api/v1/player/account/adopt", nil, &result); err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func parseConflict(err *ResponseError) (LoginConflict, error) {
	var conflict LoginConflict
	if jsonErr := json.Unmarshal(err.Body, &conflict); jsonErr != nil {
		return conflict, fmt.Errorf("failed to parse login conflict: %w", jsonErr)
	}
	return conflict, nil
}
