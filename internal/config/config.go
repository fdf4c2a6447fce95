package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config represents the main configuration for mediapipe.
type Config struct {
	BaseDir     string            `toml:"base_dir" env:"MEDIAPIPE_BASE_DIR"`
	LogDir      string            `toml:"log_dir" env:"MEDIAPIPE_LOG_DIR"`
	LogLevel    string            `toml:"log_level" env:"MEDIAPIPE_LOG_LEVEL"`
	ObjectStore ObjectStoreConfig `toml:"object_store"`
	RecordStore RecordStoreConfig `toml:"record_store"`
	Thumbnail   ThumbnailConfig   `toml:"thumbnail"`
	Index       IndexConfig       `toml:"index"`
	Encryption  EncryptionConfig  `toml:"encryption"`
}

// ObjectStoreConfig represents configuration for the object store backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ObjectStoreConfig struct {
	Type string `toml:"type" env:"MEDIAPIPE_OBJECT_STORE"` // "s3", "filesystem" or "memory"

	// S3-specific fields
	Bucket          string `toml:"bucket,omitempty" env:"MEDIAPIPE_BUCKET"`
	Region          string `toml:"region,omitempty" env:"MEDIAPIPE_S3_REGION"`
	Endpoint        string `toml:"endpoint,omitempty" env:"MEDIAPIPE_S3_ENDPOINT"`
	UsePathStyle    bool   `toml:"use_path_style,omitempty" env:"MEDIAPIPE_S3_USE_PATH_STYLE"`
	AccessKeyID     string `toml:"access_key_id,omitempty" env:"MEDIAPIPE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `toml:"secret_access_key,omitempty" env:"MEDIAPIPE_S3_SECRET_ACCESS_KEY"`

	// FileSystem-specific fields
	Root string `toml:"root,omitempty" env:"MEDIAPIPE_OBJECT_ROOT"`
}

// RecordStoreConfig represents configuration for the content record table.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RecordStoreConfig struct {
	Type string `toml:"type" env:"MEDIAPIPE_RECORD_STORE"` // "dynamodb", "sqlite" or "memory"

	// DynamoDB-specific fields
	Table    string `toml:"table,omitempty" env:"MEDIAPIPE_TABLE"`
	DayIndex string `toml:"day_index,omitempty" env:"MEDIAPIPE_DAY_INDEX"`
	Region   string `toml:"region,omitempty" env:"MEDIAPIPE_DYNAMODB_REGION"`
	Endpoint string `toml:"endpoint,omitempty" env:"MEDIAPIPE_DYNAMODB_ENDPOINT"`

	// SQLite-specific fields
	DataDir string `toml:"data_dir,omitempty" env:"MEDIAPIPE_DATA_DIR"`
}

// ThumbnailConfig bounds derived thumbnails.
type ThumbnailConfig struct {
	MaxWidth  int `toml:"max_width" env:"MEDIAPIPE_THUMBNAIL_MAX_WIDTH"`
	MaxHeight int `toml:"max_height" env:"MEDIAPIPE_THUMBNAIL_MAX_HEIGHT"`
}

// IndexConfig tunes the index materializer.
type IndexConfig struct {
	PublicLimit int `toml:"public_limit" env:"MEDIAPIPE_PUBLIC_LIMIT"`
	Concurrency int `toml:"concurrency" env:"MEDIAPIPE_INDEX_CONCURRENCY"`
}

// EncryptionConfig holds paths to the age key pair used to seal stored objects.
type EncryptionConfig struct {
	Type           string `toml:"type" env:"MEDIAPIPE_ENCRYPTION"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path" env:"MEDIAPIPE_PUBLIC_KEY_PATH"`
	PrivateKeyPath string `toml:"private_key_path" env:"MEDIAPIPE_PRIVATE_KEY_PATH"`
}

const (
	DefaultLogLevel        = "info"
	DefaultThumbnailWidth  = 200
	DefaultThumbnailHeight = 200
	DefaultPublicLimit     = 100
	DefaultConcurrency     = 8
	DefaultDayIndex        = "uploadDayIndex"
)

// NewConfig creates a new Config rooted at baseDir with local backends and
// default key paths.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		ObjectStore: ObjectStoreConfig{
			Type: "filesystem",
			Root: filepath.Join(baseDir, "objects"),
		},
		RecordStore: RecordStoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "mediapipe.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "mediapipe.key"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset tunable with its default.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Thumbnail.MaxWidth <= 0 {
		c.Thumbnail.MaxWidth = DefaultThumbnailWidth
	}
	if c.Thumbnail.MaxHeight <= 0 {
		c.Thumbnail.MaxHeight = DefaultThumbnailHeight
	}
	if c.Index.PublicLimit <= 0 {
		c.Index.PublicLimit = DefaultPublicLimit
	}
	if c.Index.Concurrency <= 0 {
		c.Index.Concurrency = DefaultConcurrency
	}
	if c.RecordStore.Type == "dynamodb" && c.RecordStore.DayIndex == "" {
		c.RecordStore.DayIndex = DefaultDayIndex
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "none"
	}
}

// ApplyEnv overrides fields from MEDIAPIPE_* environment variables and then
// fills in defaults. Variables that are unset leave the field untouched.
func (c *Config) ApplyEnv() error {
	if err := cleanenv.ReadEnv(c); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}
	c.ApplyDefaults()
	return nil
}

// FromEnv builds a Config from the environment alone. Lambda functions
// configure themselves this way.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
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

// ReadFromFile reads a Config from the specified file path, then applies
// environment overrides and defaults.
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
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
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
