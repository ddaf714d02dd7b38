package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical application defaults file.
const DefaultConfigPath = "config/lighthouse.defaults.json"

// Store backends accepted in store_backend. They match prefs.Backend values.
var storeBackends = map[string]bool{
	"memory": true,
	"file":   true,
	"sqlite": true,
	"redis":  true,
}

// AppConfig is the application configuration. Every field is optional;
// the Get* methods supply defaults for fields the file leaves out.
type AppConfig struct {
	// Preference store
	StoreBackend *string `json:"store_backend,omitempty"`
	StorePath    *string `json:"store_path,omitempty"`
	RedisAddr    *string `json:"redis_addr,omitempty"`
	RedisPrefix  *string `json:"redis_prefix,omitempty"`
	RedisTimeout *string `json:"redis_timeout,omitempty"` // duration string like "2s"

	// Placement
	SaveKey  *string  `json:"save_key,omitempty"`
	CubeSize *float64 `json:"cube_size,omitempty"` // metres
	Seed     *int64   `json:"seed,omitempty"`      // 0 or unset seeds from the clock
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt64(v int64) *int64       { return &v }

// LoadAppConfig loads an AppConfig from a JSON file. The file must have a
// .json extension and be at most 1MB.
func LoadAppConfig(path string) (*AppConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AppConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *AppConfig) Validate() error {
	if c.StoreBackend != nil && !storeBackends[*c.StoreBackend] {
		return fmt.Errorf("store_backend must be one of memory, file, sqlite, redis, got %q", *c.StoreBackend)
	}

	if c.RedisTimeout != nil && *c.RedisTimeout != "" {
		d, err := time.ParseDuration(*c.RedisTimeout)
		if err != nil {
			return fmt.Errorf("invalid redis_timeout '%s': %w", *c.RedisTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("redis_timeout must be positive, got %s", d)
		}
	}

	if c.SaveKey != nil && *c.SaveKey == "" {
		return fmt.Errorf("save_key must not be empty")
	}

	if c.CubeSize != nil && (*c.CubeSize <= 0 || *c.CubeSize > 10) {
		return fmt.Errorf("cube_size must be in (0, 10] metres, got %f", *c.CubeSize)
	}

	backend := c.GetStoreBackend()
	if (backend == "file" || backend == "sqlite") && c.StorePath != nil && *c.StorePath == "" {
		return fmt.Errorf("store_path must not be empty for the %s backend", backend)
	}

	return nil
}

// GetStoreBackend returns the store_backend value or the default.
func (c *AppConfig) GetStoreBackend() string {
	if c.StoreBackend == nil {
		return "sqlite"
	}
	return *c.StoreBackend
}

// GetStorePath returns the store_path value or a default based on the
// backend.
func (c *AppConfig) GetStorePath() string {
	if c.StorePath != nil {
		return *c.StorePath
	}
	if c.GetStoreBackend() == "file" {
		return "lighthouse_prefs.json"
	}
	return "lighthouse.db"
}

// GetRedisAddr returns the redis_addr value or the default.
func (c *AppConfig) GetRedisAddr() string {
	if c.RedisAddr == nil {
		return "localhost:6379"
	}
	return *c.RedisAddr
}

// GetRedisPrefix returns the redis_prefix value or the default.
func (c *AppConfig) GetRedisPrefix() string {
	if c.RedisPrefix == nil {
		return "lighthouse:"
	}
	return *c.RedisPrefix
}

// GetRedisTimeout parses and returns the RedisTimeout as a time.Duration.
func (c *AppConfig) GetRedisTimeout() time.Duration {
	if c.RedisTimeout == nil || *c.RedisTimeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.RedisTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetSaveKey returns the save_key value or the default.
func (c *AppConfig) GetSaveKey() string {
	if c.SaveKey == nil {
		return "_saveData"
	}
	return *c.SaveKey
}

// GetCubeSize returns the cube_size value or the default.
func (c *AppConfig) GetCubeSize() float64 {
	if c.CubeSize == nil {
		return 0.1
	}
	return *c.CubeSize
}

// GetSeed returns the seed value or 0 when unset.
func (c *AppConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}
