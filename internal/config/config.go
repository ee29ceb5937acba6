package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for hoard.
type Config struct {
	InstallID string `toml:"install_id"`
	RootDir   string `toml:"root_dir"` // organization root: content store and index trees
	LogDir    string `toml:"log_dir"`

	// SourceFormats maps a platform label to the format string an external
	// fetcher should use for it. hoard carries it but never interprets it.
	SourceFormats map[string]string `toml:"source_formats,omitempty"`

	Organize   OrganizeConfig   `toml:"organize"`
	Database   DatabaseConfig   `toml:"database"`
	Mirror     MirrorConfig     `toml:"mirror"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// OrganizeConfig toggles the symlink index trees built over the content store.
type OrganizeConfig struct {
	BySource bool `toml:"by_source"`
	ByTag    bool `toml:"by_tag"`
	ByDate   bool `toml:"by_date"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// MirrorConfig represents configuration for the off-site mirror backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type MirrorConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Optional static credentials. When unset, the standard AWS credential
	// chain applies (environment, shared config, instance roles).
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSMirrorRoot string `toml:"fs_mirror_root,omitempty"`

	// Encrypt controls whether content is encrypted before upload.
	Encrypt bool `toml:"encrypt"`
}

// EncryptionConfig holds paths to the age key pair used for mirror encryption.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config with the provided values and sensible
// defaults: all three index trees enabled, sqlite metadata under the root.
func NewConfig(installID, rootDir string) *Config {
	return &Config{
		InstallID: installID,
		RootDir:   rootDir,
		LogDir:    filepath.Join(rootDir, "log"),
		Organize: OrganizeConfig{
			BySource: true,
			ByTag:    true,
			ByDate:   true,
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(rootDir, "db"),
		},
		Encryption: EncryptionConfig{
			PublicKeyPath:  filepath.Join(rootDir, "keys", "hoard.pub"),
			PrivateKeyPath: filepath.Join(rootDir, "keys", "hoard.key"),
		},
	}
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

// ReadFromFile reads a Config from the specified file path.
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
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
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
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
