package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultBatchLimit is the number of records exported per report when the
// config does not say otherwise.
const DefaultBatchLimit = 500

// Config represents the main configuration for oswl.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir" env:"OSWL_LOG_DIR"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
	Database   DatabaseConfig   `toml:"database"`
	Export     ExportConfig     `toml:"export"`
}

// EncryptionConfig holds paths to the age key pair used for report encryption.
type EncryptionConfig struct {
	Type           string `toml:"type" env:"OSWL_ENCRYPTION_TYPE"` // "none", "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	// Recipients are extra age public keys every report is encrypted to,
	// typically the collector that consumes the reports.
	Recipients []string `toml:"recipients,omitempty"`
}

// VaultConfig represents configuration for a report vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// DatabaseConfig represents configuration for the changelog database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type     string `toml:"type" env:"OSWL_DATABASE_TYPE"`                     // "sqlite", "sqlite-purego", "memory" or "postgres"
	DataDir  string `toml:"data_dir,omitempty" env:"OSWL_DATABASE_DIR"`        // sqlite types only
	DSN      string `toml:"dsn,omitempty" env:"OSWL_DATABASE_DSN"`             // postgres only
	MaxConns int32  `toml:"max_conns,omitempty" env:"OSWL_DATABASE_MAX_CONNS"` // postgres only
	MinConns int32  `toml:"min_conns,omitempty" env:"OSWL_DATABASE_MIN_CONNS"` // postgres only
}

// ExportConfig controls report export.
type ExportConfig struct {
	BatchLimit int `toml:"batch_limit,omitempty" env:"OSWL_EXPORT_BATCH_LIMIT"`
}

// NewConfig creates a new Config with the provided base directory and default paths.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "oswl.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "oswl.key"),
		},
		Export: ExportConfig{BatchLimit: DefaultBatchLimit},
	}
}

// BatchLimit returns the configured export batch size, or the default.
func (c *Config) BatchLimit() int {
	if c.Export.BatchLimit > 0 {
		return c.Export.BatchLimit
	}
	return DefaultBatchLimit
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and applies
// environment overrides on top of it.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
