package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the taskqueue CLI.
type Config struct {
	LogLevel       string
	Dir            string
	Format         string
	MetricsFile    string
	RedisAddr      string
	OTelEndpoint   string
	LockTimeout    time.Duration
	SlashPrefix    string
	Shell          []string
	WorkDir        string
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:       v.GetString("log_level"),
		Dir:            v.GetString("dir"),
		Format:         v.GetString("format"),
		MetricsFile:    v.GetString("metrics_file"),
		RedisAddr:      v.GetString("redis_addr"),
		OTelEndpoint:   v.GetString("otel_endpoint"),
		LockTimeout:    v.GetDuration("lock_timeout"),
		SlashPrefix:    v.GetString("slash_command_prefix"),
		Shell:          strings.Fields(v.GetString("shell")),
		WorkDir:        v.GetString("work_dir"),
	}
}
