package core

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/jo-hoe/oralvis/internal/auth"
	"github.com/jo-hoe/oralvis/internal/backend/database"
	"gopkg.in/yaml.v3"
)

const (
	ConfigPathEnv    = "CONFIG_PATH"
	SessionSecretEnv = "ORALVIS_SESSION_SECRET"
	DatabaseURLEnv   = "DATABASE_URL"

	DefaultPort           = 8080
	DefaultMaxImageBytes  = 10 << 20
	DefaultMaxImagePixels = 40_000_000
	DefaultThumbnailWidth = 320
	DefaultIdleTimeout    = 30 * time.Minute
	DefaultCookieName     = "oralvis_session"
)

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
	Namespace        string `yaml:"namespace"`
}

type Session struct {
	Secret       string        `yaml:"secret"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	CookieName   string        `yaml:"cookieName"`
	SecureCookie bool          `yaml:"secureCookie"`
}

type Login struct {
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
}

type Upload struct {
	MaxImageBytes int64 `yaml:"maxImageBytes"`
	// width*height limit checked from the header before the image is decoded
	MaxImagePixels int64 `yaml:"maxImagePixels"`
}

// CredentialConfig is one configured account. Passwords are stored as bcrypt hashes
// only; see `oralvisctl hash-password`.
type CredentialConfig struct {
	ID           string `yaml:"id"`
	Email        string `yaml:"email"`
	Role         string `yaml:"role"`
	PasswordHash string `yaml:"passwordHash"`
}

type ServiceConfig struct {
	Port           int                `yaml:"port"`
	Database       Database           `yaml:"database"`
	Session        Session            `yaml:"session"`
	Login          Login              `yaml:"login"`
	Upload         Upload             `yaml:"upload"`
	ThumbnailWidth int                `yaml:"thumbnailWidth"`
	Credentials    []CredentialConfig `yaml:"credentials"`
	// CIDR ranges of reverse proxies whose X-Forwarded-For is trusted.
	// Empty means the client IP is the connection's remote address.
	TrustedProxies []string `yaml:"trustedProxies"`
}

// ConfigPath is $CONFIG_PATH, or config.yaml in the working directory.
func ConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigPathEnv); configPath != "" {
		return configPath, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, "config.yaml"), nil
}

// LoadConfigOrDefault falls back to DefaultConfig when the file does not exist.
func LoadConfigOrDefault(configPath string) (*ServiceConfig, error) {
	config, err := LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("config file not found, using defaults", "path", configPath)
		return DefaultConfig(), nil
	}
	return config, err
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses YAML, applies environment overrides and defaults, and validates
// the result.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// DefaultConfig stores scans in the sqlite file oralvis.db and uses the built-in accounts.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{
		Database: Database{Type: "sqlite", ConnectionString: "file:oralvis.db"},
	}
	config.applyEnv()
	config.applyDefaults()
	return config
}

func (c *ServiceConfig) applyEnv() {
	if secret := os.Getenv(SessionSecretEnv); secret != "" {
		c.Session.Secret = secret
	}
	if url := os.Getenv(DatabaseURLEnv); url != "" {
		c.Database.ConnectionString = url
	}
}

func (c *ServiceConfig) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.ConnectionString == "" && c.Database.Type == "sqlite" {
		c.Database.ConnectionString = "file:oralvis.db"
	}
	if c.Database.Namespace == "" {
		c.Database.Namespace = database.DefaultNamespace
	}
	if c.Session.IdleTimeout == 0 {
		c.Session.IdleTimeout = DefaultIdleTimeout
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Session.Secret == "" {
		c.Session.Secret = randomSecret()
		slog.Warn("no session secret configured, using a random one; sessions end on restart",
			"env", SessionSecretEnv)
	}
	if c.Login.RatePerSecond == 0 {
		c.Login.RatePerSecond = 1
	}
	if c.Login.Burst == 0 {
		c.Login.Burst = 5
	}
	if c.Upload.MaxImageBytes == 0 {
		c.Upload.MaxImageBytes = DefaultMaxImageBytes
	}
	if c.Upload.MaxImagePixels == 0 {
		c.Upload.MaxImagePixels = DefaultMaxImagePixels
	}
	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = DefaultThumbnailWidth
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	// crypto/rand.Read never returns an error
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func (c *ServiceConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	switch c.Database.Type {
	case "sqlite", "redis", "postgres":
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database connectionString is required for %s", c.Database.Type)
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("session idleTimeout must not be negative")
	}
	if c.Login.RatePerSecond < 0 || c.Login.Burst < 0 {
		return errors.New("login rate limit must not be negative")
	}
	if c.Upload.MaxImageBytes < 0 {
		return errors.New("upload maxImageBytes must not be negative")
	}
	if c.Upload.MaxImagePixels < 0 {
		return errors.New("upload maxImagePixels must not be negative")
	}
	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("invalid trusted proxy range %q: %w", cidr, err)
		}
	}
	if c.ThumbnailWidth < 0 {
		return errors.New("thumbnailWidth must not be negative")
	}
	return validateCredentials(c.Credentials)
}

func validateCredentials(creds []CredentialConfig) error {
	seen := make(map[string]bool)
	for i, cc := range creds {
		if cc.Email == "" {
			return fmt.Errorf("credential at index %d has empty email", i)
		}
		if cc.PasswordHash == "" {
			return fmt.Errorf("credential %s has empty passwordHash", cc.Email)
		}
		if _, err := auth.ParseRole(cc.Role); err != nil {
			return fmt.Errorf("credential %s: %w", cc.Email, err)
		}
		if seen[cc.Email] {
			return fmt.Errorf("duplicate credential email: %s", cc.Email)
		}
		seen[cc.Email] = true
	}
	return nil
}

// CredentialTable builds the configured credential table, or the built-in one when no
// credentials are configured.
func (c *ServiceConfig) CredentialTable() (*auth.CredentialTable, error) {
	if len(c.Credentials) == 0 {
		return auth.NewDefaultCredentialTable()
	}
	creds := make([]auth.Credential, 0, len(c.Credentials))
	for i, cc := range c.Credentials {
		role, err := auth.ParseRole(cc.Role)
		if err != nil {
			return nil, fmt.Errorf("credential at index %d: %w", i, err)
		}
		id := cc.ID
		if id == "" {
			id = fmt.Sprintf("%d", i+1)
		}
		creds = append(creds, auth.Credential{
			ID:           id,
			Email:        cc.Email,
			Role:         role,
			PasswordHash: cc.PasswordHash,
		})
	}
	table, err := auth.NewCredentialTable(creds)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}
	return table, nil
}
