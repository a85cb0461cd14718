package cli

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	Token      string
	TokenFile  string
	AdminKey   string
	AdminActor string
	Output     string
	Verbose    bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("PLAYERCTL_SERVER", "http://localhost:8080"),
		Token:      os.Getenv("PLAYERCTL_TOKEN"),
		TokenFile:  getEnvOrDefault("PLAYERCTL_TOKEN_FILE", defaultTokenFile()),
		AdminKey:   os.Getenv("PLAYERCTL_ADMIN_KEY"),
		AdminActor: getEnvOrDefault("PLAYERCTL_ADMIN_ACTOR", currentUser()),
		Output:     "text",
		Verbose:    false,
	}
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.TokenFile, []byte(token), 0600)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".playerctl/token"
	}
	return filepath.Join(home, ".playerctl", "token")
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "playerctl"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
