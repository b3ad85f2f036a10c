package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the quality CLI.
type Config struct {
	LogLevel    string
	Dir         string
	Format      string
	MetricsFile string
	LockTimeout time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:    v.GetString("log_level"),
		Dir:         v.GetString("dir"),
		Format:      v.GetString("format"),
		MetricsFile: v.GetString("metrics_file"),
		LockTimeout: v.GetDuration("lock_timeout"),
	}
}
