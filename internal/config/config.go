package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
)

// Config holds the casetable service configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Host     HostConfig     `yaml:"host"`
	Database DatabaseConfig `yaml:"database"`
	Layout   LayoutConfig   `yaml:"layout"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// HostConfig holds the host bridge connection settings.
type HostConfig struct {
	BridgeURL         string `yaml:"bridge_url"`
	Token             string `yaml:"token"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	FetchConcurrency  int    `yaml:"fetch_concurrency"`
	ReloadTimeoutSec  int    `yaml:"reload_timeout_sec"`
}

// DatabaseConfig holds preference store settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// LayoutConfig holds the layout used for datasets without a stored choice.
type LayoutConfig struct {
	Default string `yaml:"default"` // "", portrait, landscape
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, expanding ${VAR} references, then applies
// defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE files (".env" when none given) into the process
// environment. Variables already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var found []string
	for _, p := range paths {
		if fileExists(p) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}
	if err := godotenv.Load(found...); err != nil {
		return fmt.Errorf("failed to load env files %v: %w", found, err)
	}
	return nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 40
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Host.RequestTimeoutSec <= 0 {
		c.Host.RequestTimeoutSec = 10
	}
	if c.Host.FetchConcurrency <= 0 {
		c.Host.FetchConcurrency = 8
	}
	if c.Host.ReloadTimeoutSec <= 0 {
		c.Host.ReloadTimeoutSec = 30
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "casetable:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Host.BridgeURL == "" {
		return fmt.Errorf("host.bridge_url is required")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be %q, %q or %q, got %q",
			DriverMemory, DriverRedis, DriverValkey, c.Database.Driver)
	}
	switch c.Layout.Default {
	case "", "portrait", "landscape":
	default:
		return fmt.Errorf("layout.default must be \"portrait\" or \"landscape\", got %q", c.Layout.Default)
	}
	// Total reload time includes the per-request timeout of every fetch.
	if c.Host.ReloadTimeoutSec < c.Host.RequestTimeoutSec {
		return fmt.Errorf("host.reload_timeout_sec (%d) must not be shorter than host.request_timeout_sec (%d)",
			c.Host.ReloadTimeoutSec, c.Host.RequestTimeoutSec)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// Relative to the source file, for tests run from a package directory.
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// envVarRegex matches ${VAR} and ${VAR:-default}.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
