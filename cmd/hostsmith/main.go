package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"hostsmith/internal/logger"
	"hostsmith/internal/manager"
	"hostsmith/internal/profile"
	"hostsmith/internal/system"
)

var version = "dev"

var (
	dataDir     string
	profileName string
	verbose     bool

	rootFlushDNS bool
	rootDryRun   bool
)

var rootCmd = &cobra.Command{
	Use:   "hostsmith",
	Short: "Build and install hosts files from remote block lists",
	Long: `hostsmith aggregates remote block lists into a single hosts file.

Sources, update frequencies and build settings live in per-profile
config.yaml files under the data directory. A typical session:

  hostsmith profile new home
  hostsmith run update build install -p home --flush-dns-cache`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var cfgErr *profile.ConfigError
		var instErr *manager.InstallError
		switch {
		case errors.As(err, &cfgErr):
			os.Exit(2)
		case errors.As(err, &instErr):
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: <user config dir>/hostsmith)")
	rootCmd.PersistentFlags().StringVarP(&profileName, "profile", "p", "", "profile to work with")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().BoolVarP(&rootFlushDNS, "flush-dns-cache", "f", false, "flush the DNS cache and exit")
	rootCmd.Flags().BoolVarP(&rootDryRun, "dry-run", "d", false, "show the flush commands without executing them")
}

// runRoot handles the bare flush invocation; anything else prints help.
func runRoot(cmd *cobra.Command, args []string) error {
	if !rootFlushDNS {
		return cmd.Help()
	}
	flushDNSCache(newLogger(), rootDryRun)
	return nil
}

func newLogger() *logger.Logger {
	level := logger.LevelInfo
	if verbose {
		level = logger.LevelDebug
	}
	return logger.Stderr(level)
}

func resolveDataDir() (string, error) {
	if dataDir != "" {
		return dataDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving the default data directory: %w", err)
	}
	return filepath.Join(base, "hostsmith"), nil
}

func requireProfile() error {
	if profileName == "" {
		return errors.New("a profile name is required (use --profile/-p)")
	}
	return nil
}

func flushDNSCache(log *logger.Logger, dryRun bool) {
	f := &system.DNSFlusher{Log: log}
	if dryRun {
		f.Run = func(name string, args ...string) error {
			log.Info("Dry run: would execute <%s %s>.", name, strings.Join(args, " "))
			return nil
		}
	}
	f.Flush()
}
