package logger

import (
	"io"

	"github.com/spf13/viper"
)

// EnvConfig is the logger configuration read from LOG_* variables, plus
// SERVICE_NAME and APP_ENV.
type EnvConfig struct {
	Level       string
	Format      string    // json or text
	Output      io.Writer // overrides every file setting when set
	ServiceName string
	Environment string // local, dev, prod; file output is off in local

	LogFile     string
	LogFileOnly bool

	// Rotation, in lumberjack units.
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// LoadFromEnv reads EnvConfig from the process environment.
func LoadFromEnv() *EnvConfig {
	v := viper.New()
	v.SetEnvPrefix("log")
	v.AutomaticEnv()

	v.SetDefault("level", "info")
	v.SetDefault("format", "json")
	v.SetDefault("file", "/var/log/thumbcraft/app.log")
	v.SetDefault("file_only", false)
	v.SetDefault("max_size", 100)
	v.SetDefault("max_backups", 7)
	v.SetDefault("max_age", 30)
	v.SetDefault("compress", true)

	_ = v.BindEnv("service_name", "SERVICE_NAME")
	_ = v.BindEnv("environment", "APP_ENV")
	v.SetDefault("service_name", "thumbcraft")
	v.SetDefault("environment", "local")

	return &EnvConfig{
		Level:       v.GetString("level"),
		Format:      v.GetString("format"),
		ServiceName: v.GetString("service_name"),
		Environment: v.GetString("environment"),
		LogFile:     v.GetString("file"),
		LogFileOnly: v.GetBool("file_only"),
		MaxSize:     v.GetInt("max_size"),
		MaxBackups:  v.GetInt("max_backups"),
		MaxAge:      v.GetInt("max_age"),
		Compress:    v.GetBool("compress"),
	}
}
