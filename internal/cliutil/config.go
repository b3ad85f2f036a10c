// Package cliutil holds the cobra/viper plumbing shared by every binary:
// config discovery, flag binding, logging, output rendering and exit codes.
package cliutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultDataDir is the project-local directory holding every JSON document.
const DefaultDataDir = ".claude-patterns"

// InitConfig returns the cobra.OnInitialize hook for service. Priority is
// flag > SERVICE_* env > config file > default. The file is cfgFile when
// set, else <service>.yaml in ., ~/.claude-patterns or /etc/claude-patterns.
func InitConfig(service string, cfgFile *string) func() {
	return func() {
		if *cfgFile != "" {
			viper.SetConfigFile(*cfgFile)
		} else {
			viper.SetConfigName(service)
			viper.SetConfigType("yaml")
			viper.AddConfigPath(".")
			if home, err := os.UserHomeDir(); err == nil {
				viper.AddConfigPath(filepath.Join(home, DefaultDataDir))
			}
			viper.AddConfigPath("/etc/claude-patterns")
		}

		viper.SetEnvPrefix(strings.ToUpper(service))
		viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		viper.AutomaticEnv()

		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				fmt.Fprintln(os.Stderr, "error reading config file:", err)
				os.Exit(1)
			}
		} else if viper.GetString("log_level") == "debug" {
			fmt.Fprintln(os.Stderr, "config:", viper.ConfigFileUsed())
		}
	}
}

// BindFlag binds a pflag to a viper key and panics on a programming error.
func BindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}

// AddCommonFlags registers --config, --log-level and --dir on root.
func AddCommonFlags(root *cobra.Command, cfgFile *string) {
	root.PersistentFlags().StringVar(cfgFile, "config", "", "config file path")
	root.PersistentFlags().String("log-level", "warn", "log level: debug | info | warn | error")
	root.PersistentFlags().String("dir", DefaultDataDir, "data directory holding the JSON documents")
	BindFlag("log_level", root.PersistentFlags(), "log-level")
	BindFlag("dir", root.PersistentFlags(), "dir")
}

// BuildLogger returns a JSON logger on stderr; stdout is reserved for
// command output.
func BuildLogger(level, service string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})).
		With(slog.String("service", service))
}
