package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// ssoFlags are the credentials shared by login and the attach commands
type ssoFlags struct {
	email        string
	hash         string
	googleToken  string
	appleToken   string
	appleNonce   string
	plariumCode  string
	plariumToken string
}

func (f *ssoFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email account username")
	cmd.Flags().StringVar(&f.hash, "hash", "", "Email account password hash")
	cmd.Flags().StringVar(&f.googleToken, "google-token", "", "Google ID token")
	cmd.Flags().StringVar(&f.appleToken, "apple-token", "", "Apple identity token")
	cmd.Flags().StringVar(&f.appleNonce, "apple-nonce", "", "Nonce the Apple token was issued for")
	cmd.Flags().StringVar(&f.plariumCode, "plarium-code", "", "Plarium authorization code")
	cmd.Flags().StringVar(&f.plariumToken, "plarium-token", "", "Plarium auth token")
}

func (f *ssoFlags) body() map[string]any {
	sso := map[string]any{}
	if f.email != "" || f.hash != "" {
		sso["rumble"] = map[string]string{"email": f.email, "hash": f.hash}
	}
	for key, val := range map[string]string{
		"google_token":  f.googleToken,
		"apple_token":   f.appleToken,
		"apple_nonce":   f.appleNonce,
		"plarium_code":  f.plariumCode,
		"plarium_token": f.plariumToken,
	} {
		if val != "" {
			sso[key] = val
		}
	}
	return sso
}

// deviceFlags describe the calling install
type deviceFlags struct {
	install    string
	deviceType string
	version    string
	privateKey string
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.install, "install", os.Getenv("PLAYERCTL_INSTALL"), "Device install id (env: PLAYERCTL_INSTALL)")
	cmd.Flags().StringVar(&f.deviceType, "device-type", "cli", "Device type")
	cmd.Flags().StringVar(&f.version, "client-version", "", "Client version")
	cmd.Flags().StringVar(&f.privateKey, "private-key", "", "Device private key returned by an earlier login")
}

func (f *deviceFlags) body() map[string]string {
	if f.install == "" {
		return nil
	}
	device := map[string]string{"install_id": f.install, "type": f.deviceType}
	if f.version != "" {
		device["client_version"] = f.version
	}
	if f.privateKey != "" {
		device["private_key"] = f.privateKey
	}
	return device
}

func newLoginCmd() *cobra.Command {
	var device deviceFlags
	var sso ssoFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a device and/or SSO credentials",
		Long: `Log in as a device, an SSO identity, or both.

Without --install the login is treated as a web login and must match an
existing account through its SSO credentials. A login that needs two-factor
verification still saves the token so 'account two-factor' can follow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"sso": sso.body()}
			if d := device.body(); d != nil {
				req["device"] = d
			}

			out := NewOutput(cfg.Output)
			var result LoginResult
			err := client.Post("/api/v1/player/login", req, &result)

			var respErr *ResponseError
			if errors.As(err, &respErr) && (respErr.ErrorCode == "verificationRequired" || respErr.ErrorCode == "accountConflict") {
				conflict, parseErr := parseConflict(respErr)
				if parseErr != nil {
					return err
				}
				if conflict.Player.Token != "" {
					if err := cfg.SaveToken(conflict.Player.Token); err != nil {
						return fmt.Errorf("failed to save token: %w", err)
					}
				}
				out.Print(conflict)
				return nil
			}
			if err != nil {
				return err
			}

			// Save token
			if err := cfg.SaveToken(result.Player.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out.Print(result)
			return nil
		},
	}

	device.register(cmd)
	sso.register(cmd)

	return cmd
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reissue the token for the current account",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Player

			if err := client.Get("/api/v1/player/account/refresh", &result); err != nil {
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
