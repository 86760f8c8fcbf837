package syncconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Config is the client config stored at ~/.config/worklog/config.json.
type Config struct {
	URL          string `json:"url"`
	PollInterval string `json:"poll_interval,omitempty"` // duration string, default "1s"
	PageSize     int    `json:"page_size,omitempty"`     // changes per poll request, default 500
}

// AuthCredentials stores authentication state at ~/.config/worklog/auth.json.
type AuthCredentials struct {
	APIKey      string `json:"api_key"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	ServerURL   string `json:"server_url"`
	ExpiresAt   string `json:"expires_at"`
}

const (
	defaultServerURL    = "http://localhost:8080"
	defaultPollInterval = time.Second
	defaultPageSize     = 500

	lockFile = ".lock"
)

// ConfigDir returns ~/.config/worklog, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "worklog")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// LogPath returns the file the terminal UI writes its log to.
func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "worklog.log"), nil
}

// LoadConfig reads the client config from ~/.config/worklog/config.json.
func LoadConfig() (*Config, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config.json: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes the client config to ~/.config/worklog/config.json.
func SaveConfig(cfg *Config) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return withLock(dir, func() error {
		return writeAtomic(filepath.Join(dir, "config.json"), data, 0644)
	})
}

// LoadAuth reads auth credentials from ~/.config/worklog/auth.json.
// Returns nil, nil when no credentials are saved.
func LoadAuth() (*AuthCredentials, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "auth.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var creds AuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse auth.json: %w", err)
	}
	return &creds, nil
}

// SaveAuth writes auth credentials to ~/.config/worklog/auth.json (0600 perms).
func SaveAuth(creds *AuthCredentials) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return withLock(dir, func() error {
		return writeAtomic(filepath.Join(dir, "auth.json"), data, 0600)
	})
}

// ClearAuth removes the auth.json file.
func ClearAuth() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return withLock(dir, func() error {
		err := os.Remove(filepath.Join(dir, "auth.json"))
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// GetServerURL returns the worklogd server URL.
// Priority: WORKLOG_URL env > config.json > default.
func GetServerURL() string {
	if v := os.Getenv("WORKLOG_URL"); v != "" {
		return v
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.URL != "" {
		return cfg.URL
	}
	return defaultServerURL
}

// GetAPIKey returns the API key.
// Priority: WORKLOG_AUTH_KEY env > auth.json.
func GetAPIKey() string {
	if v := os.Getenv("WORKLOG_AUTH_KEY"); v != "" {
		return v
	}
	creds, err := LoadAuth()
	if err == nil && creds != nil {
		return creds.APIKey
	}
	return ""
}

// IsAuthenticated returns true if an API key is available.
func IsAuthenticated() bool {
	return GetAPIKey() != ""
}

// GetPollInterval returns how often the change feed is polled.
// Priority: WORKLOG_POLL_INTERVAL env > config.json poll_interval > 1s
func GetPollInterval() time.Duration {
	if v := os.Getenv("WORKLOG_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	cfg, err := LoadConfig()
	if err == nil && cfg.PollInterval != "" {
		if d, err := time.ParseDuration(cfg.PollInterval); err == nil && d > 0 {
			return d
		}
	}
	return defaultPollInterval
}

// GetPageSize returns the number of changes requested per poll.
func GetPageSize() int {
	cfg, err := LoadConfig()
	if err == nil && cfg.PageSize > 0 {
		return cfg.PageSize
	}
	return defaultPageSize
}

// withLock serializes writers of the config dir using flock.
func withLock(dir string, fn func() error) error {
	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("lock config dir: %w", err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	return fn()
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
