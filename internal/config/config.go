package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Database configuration
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Project configuration
	Project ProjectConfig `yaml:"project" json:"project"`

	// Metadata probing configuration
	Probe ProbeConfig `yaml:"probe" json:"probe"`

	// Bulk importer configuration
	Importer ImporterConfig `yaml:"importer" json:"importer"`

	// Watch folder configuration
	Watcher WatcherConfig `yaml:"watcher" json:"watcher"`

	// Thumbnail generation configuration
	Thumbs ThumbsConfig `yaml:"thumbs" json:"thumbs"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host           string        `yaml:"host" json:"host" env:"REELKIT_HOST" default:"0.0.0.0"`
	Port           int           `yaml:"port" json:"port" env:"REELKIT_PORT" default:"8080"`
	ReadTimeout    time.Duration `yaml:"read_timeout" json:"read_timeout" env:"REELKIT_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" json:"write_timeout" env:"REELKIT_WRITE_TIMEOUT" default:"30s"`
	EnableCORS     bool          `yaml:"enable_cors" json:"enable_cors" env:"REELKIT_ENABLE_CORS" default:"true"`
	TrustedProxies []string      `yaml:"trusted_proxies" json:"trusted_proxies" env:"REELKIT_TRUSTED_PROXIES"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Type            string        `yaml:"type" json:"type" env:"DATABASE_TYPE" default:"sqlite"`
	Host            string        `yaml:"host" json:"host" env:"POSTGRES_HOST" default:"localhost"`
	Port            int           `yaml:"port" json:"port" env:"POSTGRES_PORT" default:"5432"`
	Username        string        `yaml:"username" json:"username" env:"POSTGRES_USER" default:"reelkit"`
	Password        string        `yaml:"password" json:"-" env:"POSTGRES_PASSWORD"`
	Database        string        `yaml:"database" json:"database" env:"POSTGRES_DB" default:"reelkit"`
	DataDir         string        `yaml:"data_dir" json:"data_dir" env:"REELKIT_DATA_DIR" default:"./reelkit-data"`
	DatabasePath    string        `yaml:"database_path" json:"database_path" env:"REELKIT_DATABASE_PATH"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" env:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" default:"2h"`
	LogQueries      bool          `yaml:"log_queries" json:"log_queries" env:"DB_LOG_QUERIES" default:"false"`
}

// ProjectConfig selects the project whose source list the service serves
type ProjectConfig struct {
	Name string `yaml:"name" json:"name" env:"REELKIT_PROJECT" default:"default"`
}

// ProbeConfig holds metadata extraction configuration
type ProbeConfig struct {
	EnableFFProbe  bool          `yaml:"enable_ffprobe" json:"enable_ffprobe" env:"REELKIT_ENABLE_FFPROBE" default:"true"`
	FFProbePath    string        `yaml:"ffprobe_path" json:"ffprobe_path" env:"REELKIT_FFPROBE_PATH" default:"ffprobe"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout" json:"probe_timeout" env:"REELKIT_PROBE_TIMEOUT" default:"15s"`
	HashFiles      bool          `yaml:"hash_files" json:"hash_files" env:"REELKIT_HASH_FILES" default:"true"`
	MaxHashSize    int64         `yaml:"max_hash_size" json:"max_hash_size" env:"REELKIT_MAX_HASH_SIZE" default:"4294967296"`
}

// ImporterConfig holds bulk import configuration
type ImporterConfig struct {
	WorkerCount       int           `yaml:"worker_count" json:"worker_count" env:"REELKIT_IMPORT_WORKERS" default:"0"`
	ChannelBufferSize int           `yaml:"channel_buffer_size" json:"channel_buffer_size" env:"REELKIT_IMPORT_BUFFER" default:"100"`
	IgnorePatterns    []string      `yaml:"ignore_patterns" json:"ignore_patterns" env:"REELKIT_IGNORE_PATTERNS"`
	MaxFileSize       int64         `yaml:"max_file_size" json:"max_file_size" env:"REELKIT_MAX_IMPORT_FILE_SIZE" default:"10737418240"`
	ThrottleEnabled   bool          `yaml:"throttle_enabled" json:"throttle_enabled" env:"REELKIT_IMPORT_THROTTLE" default:"true"`
	ThrottleInterval  time.Duration `yaml:"throttle_interval" json:"throttle_interval" env:"REELKIT_THROTTLE_INTERVAL" default:"3s"`
	CPUThreshold      float64       `yaml:"cpu_threshold" json:"cpu_threshold" env:"REELKIT_CPU_THRESHOLD" default:"80.0"`
	MemoryThreshold   float64       `yaml:"memory_threshold" json:"memory_threshold" env:"REELKIT_MEMORY_THRESHOLD" default:"85.0"`
}

// WatcherConfig holds watch folder configuration
type WatcherConfig struct {
	Enabled          bool          `yaml:"enabled" json:"enabled" env:"REELKIT_WATCHER_ENABLED" default:"true"`
	DebounceInterval time.Duration `yaml:"debounce_interval" json:"debounce_interval" env:"REELKIT_WATCHER_DEBOUNCE" default:"2s"`
	QueueSize        int           `yaml:"queue_size" json:"queue_size" env:"REELKIT_WATCHER_QUEUE" default:"1000"`
}

// ThumbsConfig holds thumbnail generation configuration
type ThumbsConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" env:"REELKIT_THUMBS_ENABLED" default:"true"`
	DataDir     string `yaml:"data_dir" json:"data_dir" env:"REELKIT_THUMBS_DIR"`
	Width       int    `yaml:"width" json:"width" env:"REELKIT_THUMB_WIDTH" default:"300"`
	Quality     int    `yaml:"quality" json:"quality" env:"REELKIT_THUMB_QUALITY" default:"90"`
	FFMpegPath  string `yaml:"ffmpeg_path" json:"ffmpeg_path" env:"REELKIT_FFMPEG_PATH" default:"ffmpeg"`
	EnableVideo bool   `yaml:"enable_video" json:"enable_video" env:"REELKIT_VIDEO_THUMBS" default:"true"`
	EnableAudio bool   `yaml:"enable_audio" json:"enable_audio" env:"REELKIT_AUDIO_WAVEFORMS" default:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"REELKIT_LOG_LEVEL" default:"info"`
	Format string `yaml:"format" json:"format" env:"REELKIT_LOG_FORMAT" default:"text"`
}

// Manager manages application configuration loaded from file and environment
type Manager struct {
	config     *Config
	configPath string
	mu         sync.RWMutex
}

var (
	globalManager *Manager
	configOnce    sync.Once
)

// GetManager returns the global configuration manager instance
func GetManager() *Manager {
	configOnce.Do(func() {
		globalManager = NewManager()
	})
	return globalManager
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{config: DefaultConfig()}
}

// Get returns the current global configuration
func Get() *Config {
	return GetManager().GetConfig()
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			EnableCORS:   true,
		},
		Database: DatabaseConfig{
			Type:            "sqlite",
			Host:            "localhost",
			Port:            5432,
			Username:        "reelkit",
			Database:        "reelkit",
			DataDir:         "./reelkit-data",
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: 2 * time.Hour,
		},
		Project: ProjectConfig{
			Name: "default",
		},
		Probe: ProbeConfig{
			EnableFFProbe: true,
			FFProbePath:   "ffprobe",
			ProbeTimeout:  15 * time.Second,
			HashFiles:     true,
			MaxHashSize:   4 * 1024 * 1024 * 1024,
		},
		Importer: ImporterConfig{
			WorkerCount:       0, // Auto-detect
			ChannelBufferSize: 100,
			IgnorePatterns:    []string{".*", "Thumbs.db", ".DS_Store"},
			MaxFileSize:       10 * 1024 * 1024 * 1024,
			ThrottleEnabled:   true,
			ThrottleInterval:  3 * time.Second,
			CPUThreshold:      80.0,
			MemoryThreshold:   85.0,
		},
		Watcher: WatcherConfig{
			Enabled:          true,
			DebounceInterval: 2 * time.Second,
			QueueSize:        1000,
		},
		Thumbs: ThumbsConfig{
			Enabled:     true,
			Width:       300,
			Quality:     90,
			FFMpegPath:  "ffmpeg",
			EnableVideo: true,
			EnableAudio: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func (m *Manager) LoadConfig(configPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.configPath = configPath

	// Start with default configuration
	newConfig := DefaultConfig()

	// Load from file if it exists
	if configPath != "" && fileExists(configPath) {
		if err := loadFromFile(configPath, newConfig); err != nil {
			return fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Override with environment variables
	if err := loadStructFromEnv(reflect.ValueOf(newConfig).Elem()); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := validateConfig(newConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	applyDerivedConfig(newConfig)

	m.config = newConfig
	return nil
}

// GetConfig returns the current configuration (thread-safe)
func (m *Manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Return a copy to prevent external modifications
	configCopy := *m.config
	return &configCopy
}

// SaveConfig writes the current configuration to its file
func (m *Manager) SaveConfig() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.configPath == "" {
		return fmt.Errorf("no config path set")
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(m.configPath, data, 0644)
}

func loadFromFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
}

func loadStructFromEnv(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		// Handle nested structs recursively
		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field); err != nil {
				return err
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}

		envValue := os.Getenv(envTag)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s: %w", fieldType.Name, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			duration, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(duration))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	default:
		return fmt.Errorf("unsupported field kind: %s", field.Kind())
	}
	return nil
}

func validateConfig(c *Config) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Thumbs.Quality < 1 || c.Thumbs.Quality > 100 {
		return fmt.Errorf("invalid thumbnail quality: %d", c.Thumbs.Quality)
	}
	if c.Thumbs.Width < 16 {
		return fmt.Errorf("invalid thumbnail width: %d", c.Thumbs.Width)
	}
	return nil
}

func applyDerivedConfig(c *Config) {
	if c.Database.DatabasePath == "" {
		c.Database.DatabasePath = filepath.Join(c.Database.DataDir, "reelkit.db")
	}
	if c.Thumbs.DataDir == "" {
		c.Thumbs.DataDir = filepath.Join(c.Database.DataDir, "thumbs")
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
