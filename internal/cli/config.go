package cli

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL  string
	PlayerID   string
	PlayerFile string
	Output     string
	Sync       bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:  getEnvOrDefault("WORDSYNC_SERVER", "http://localhost:8080"),
		PlayerID:   os.Getenv("WORDSYNC_PLAYER"),
		PlayerFile: getEnvOrDefault("WORDSYNC_PLAYER_FILE", defaultPlayerFile()),
		Output:     "text",
	}
}

// LoadPlayer reads the remembered player id if none was given
func (c *Config) LoadPlayer() error {
	if c.PlayerID != "" {
		return nil
	}

	data, err := os.ReadFile(c.PlayerFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	c.PlayerID = strings.TrimSpace(string(data))
	return nil
}

// SavePlayer remembers the signed-in player for later commands
func (c *Config) SavePlayer(id string) error {
	c.PlayerID = id

	if err := os.MkdirAll(filepath.Dir(c.PlayerFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(c.PlayerFile, []byte(id), 0o600)
}

// ClearPlayer forgets the remembered player
func (c *Config) ClearPlayer() error {
	c.PlayerID = ""
	if err := os.Remove(c.PlayerFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func defaultPlayerFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".wordsync", "player")
	}
	return filepath.Join(home, ".wordsync", "player")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
