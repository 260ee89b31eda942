package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Security    SecurityConfig    `yaml:"security"`
	CORS        CORSConfig        `yaml:"cors"`
	Audit       AuditConfig       `yaml:"audit"`
	Logging     LoggingConfig     `yaml:"logging"`
	Permissions PermissionsConfig `yaml:"permissions"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type   string       `yaml:"type"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn string `yaml:"expires_in"`
	Issuer    string `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost        int             `yaml:"bcrypt_cost"`
	PasswordMinLength int             `yaml:"password_min_length"`
	RateLimit         RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuditConfig controls the activity recorder. Synchronous disables the
// background queue so every write happens on the request goroutine.
type AuditConfig struct {
	QueueSize   int  `yaml:"queue_size"`
	Synchronous bool `yaml:"synchronous"`
}

// EffectiveQueueSize is the recorder queue capacity, zero when synchronous.
func (a AuditConfig) EffectiveQueueSize() int {
	if a.Synchronous {
		return 0
	}
	return a.QueueSize
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PermissionsConfig extends the built-in permission catalog.
type PermissionsConfig struct {
	Extra []PermissionDef `yaml:"extra"`
}

type PermissionDef struct {
	Code         string `yaml:"code"`
	Name         string `yaml:"name"`
	ResourceType string `yaml:"resource_type"`
}

type DefaultUserConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

const (
	defaultPort              = 8080
	defaultBcryptCost        = 10
	defaultPasswordMinLength = 8
	defaultAuditQueueSize    = 256
	defaultJWTExpiry         = "24h"
	defaultRequestsPerMinute = 10
)

var Global *Config

// Load reads the .env file (if any), the YAML configuration file and
// environment overrides, in that order.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	Global = cfg
	return cfg, nil
}

// Parse decodes YAML, applies environment overrides and defaults, then validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if jwtSecret := os.Getenv("ADMIN_JWT_SECRET"); jwtSecret != "" {
		cfg.JWT.Secret = jwtSecret
	}

	if dbType := os.Getenv("ADMIN_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}

	if dbPath := os.Getenv("ADMIN_DB_PATH"); dbPath != "" {
		cfg.Database.SQLite.Path = dbPath
	}

	if mysqlHost := os.Getenv("ADMIN_MYSQL_HOST"); mysqlHost != "" {
		cfg.Database.MySQL.Host = mysqlHost
	}

	if mysqlUser := os.Getenv("ADMIN_MYSQL_USER"); mysqlUser != "" {
		cfg.Database.MySQL.Username = mysqlUser
	}

	if mysqlPass := os.Getenv("ADMIN_MYSQL_PASSWORD"); mysqlPass != "" {
		cfg.Database.MySQL.Password = mysqlPass
	}

	if mysqlDB := os.Getenv("ADMIN_MYSQL_DATABASE"); mysqlDB != "" {
		cfg.Database.MySQL.Database = mysqlDB
	}

	if level := os.Getenv("ADMIN_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if queue := os.Getenv("ADMIN_AUDIT_QUEUE_SIZE"); queue != "" {
		if n, err := strconv.Atoi(queue); err == nil {
			cfg.Audit.QueueSize = n
		}
	}

	if password := os.Getenv("ADMIN_DEFAULT_PASSWORD"); password != "" {
		cfg.DefaultUser.Password = password
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Database.Type == "" {
		cfg.Database.Type = "sqlite"
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/admin.db"
	}
	if cfg.Database.MySQL.Charset == "" {
		cfg.Database.MySQL.Charset = "utf8mb4"
	}
	if cfg.Database.MySQL.Port == 0 {
		cfg.Database.MySQL.Port = 3306
	}
	if cfg.JWT.ExpiresIn == "" {
		cfg.JWT.ExpiresIn = defaultJWTExpiry
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaultBcryptCost
	}
	if cfg.Security.PasswordMinLength == 0 {
		cfg.Security.PasswordMinLength = defaultPasswordMinLength
	}
	if cfg.Security.RateLimit.RequestsPerMinute == 0 {
		cfg.Security.RateLimit.RequestsPerMinute = defaultRequestsPerMinute
	}
	if cfg.Audit.QueueSize <= 0 {
		cfg.Audit.QueueSize = defaultAuditQueueSize
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	// bcrypt.MinCost and bcrypt.MaxCost
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("bcrypt_cost must be between 4 and 31, got %d", c.Security.BcryptCost)
	}
	if c.Security.PasswordMinLength < defaultPasswordMinLength {
		return fmt.Errorf("password_min_length must be at least %d", defaultPasswordMinLength)
	}

	for _, p := range c.Permissions.Extra {
		if p.Code == "" {
			return fmt.Errorf("extra permission requires a code")
		}
	}
	return nil
}
