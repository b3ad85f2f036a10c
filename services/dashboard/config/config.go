package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds typed configuration for the dashboard service.
type Config struct {
	LogLevel     string
	Dir          string
	Addr         string
	RedisAddr    string
	RateLimit    int
	OTelEndpoint string
	LockTimeout  time.Duration
}

// Load reads all values from the given viper instance.
func Load(v *viper.Viper) Config {
	return Config{
		LogLevel:     v.GetString("log_level"),
		Dir:          v.GetString("dir"),
		Addr:         v.GetString("addr"),
		RedisAddr:    v.GetString("redis_addr"),
		RateLimit:    v.GetInt("rate_limit"),
		OTelEndpoint: v.GetString("otel_endpoint"),
		LockTimeout:  v.GetDuration("lock_timeout"),
	}
}
