package cliutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ramiqadoumi/go-task-queue/internal/domain"
	"github.com/ramiqadoumi/go-task-queue/internal/version"
)

// NewInitCmd returns an "init" subcommand that writes defaultYAML to
// --config or ~/.claude-patterns/<service>.yaml.
func NewInitCmd(service, defaultYAML string, cfgFile *string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: fmt.Sprintf(`Write default configuration for %s.

If --config is given the file is written to that path.
Otherwise it is written to ~/%s/%s.yaml.
Fails if the file already exists unless --force is passed.`, service, DefaultDataDir, service),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := *cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, DefaultDataDir, service+".yaml")
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

// NewVersionCmd prints the build information stamped by ldflags.
func NewVersionCmd(service string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", service, version.Version)
			fmt.Fprintf(out, "  commit:     %s\n", version.GitCommit)
			fmt.Fprintf(out, "  built:      %s\n", version.BuildTime)
			fmt.Fprintf(out, "  go version: %s\n", version.GoVersion())
		},
	}
}

// ExitCode maps an error to the process exit status: 0 on success, 2 for
// invalid input, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case domain.IsValidation(err):
		return 2
	default:
		return 1
	}
}

// Execute runs root and exits with ExitCode.
func Execute(root *cobra.Command) {
	if err := root.Execute(); err != nil {
		os.Exit(ExitCode(err))
	}
}
