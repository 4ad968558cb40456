package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Generation GenerationConfig `mapstructure:"generation"`
	Library    LibraryConfig    `mapstructure:"library"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	UserHeader   string        `mapstructure:"user_header"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// DatabaseConfig selects the persistence backend. Driver is one of
// "postgres", "sqlite" or "memory".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	default:
		return c.Path
	}
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// ProviderConfig points at an OpenAI-compatible chat completions endpoint
// that returns generated images.
type ProviderConfig struct {
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UploadConfig struct {
	MaxBytes    int64         `mapstructure:"max_bytes"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

type GenerationConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	ImageCacheTTL time.Duration `mapstructure:"image_cache_ttl"`
}

type LibraryConfig struct {
	MinAvatarPhotos int `mapstructure:"min_avatar_photos"`
	MaxAvatarPhotos int `mapstructure:"max_avatar_photos"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets come from well-known variable names
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("provider.api_key", "PROVIDER_API_KEY", "OPENROUTER_API_KEY")
	v.BindEnv("provider.base_url", "PROVIDER_BASE_URL")
	v.BindEnv("provider.model", "PROVIDER_MODEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.user_header", "X-User-ID")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/thumbcraft.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.public_url", "/api/v1/files")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.bucket", "thumbcraft")
	v.SetDefault("provider.model", "google/gemini-2.5-flash-image-preview")
	v.SetDefault("provider.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("provider.timeout", "50s")
	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("upload.max_attempts", 3)
	v.SetDefault("upload.base_delay", "1s")
	v.SetDefault("generation.timeout", "60s")
	v.SetDefault("generation.fetch_timeout", "15s")
	v.SetDefault("generation.image_cache_ttl", "30m")
	v.SetDefault("library.min_avatar_photos", 3)
	v.SetDefault("library.max_avatar_photos", 10)
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	switch c.Storage.Type {
	case "", "memory", "s3", "r2", "s3compatible", "minio":
	default:
		return fmt.Errorf("storage: unknown type %q", c.Storage.Type)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload: max_bytes must be positive")
	}
	if c.Upload.MaxAttempts < 1 {
		return fmt.Errorf("upload: max_attempts must be at least 1")
	}
	if c.Library.MinAvatarPhotos < 1 || c.Library.MaxAvatarPhotos < c.Library.MinAvatarPhotos {
		return fmt.Errorf("library: invalid avatar photo bounds %d..%d",
			c.Library.MinAvatarPhotos, c.Library.MaxAvatarPhotos)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("generation: timeout must be positive")
	}
	return nil
}
