package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hostsmith/internal/manager"
	"hostsmith/internal/profile"
)

var (
	runOverrides   []string
	runForceUpdate bool
	runDryRun      bool
	runFlushDNS    bool
	runJobs        int
	runTimeout     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [update] [build] [install]",
	Short: "Run the update, build and install stages for a profile",
	Long: `Run one or more pipeline stages for a profile. Stages always execute
in update, build, install order regardless of how they are listed.

  update   fetch sources whose update frequency has elapsed
  build    merge cached sources into the profile's hosts file
  install  copy the generated hosts file over the system one`,
	Args: validateStages,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runOverrides, "override", "o", nil, "override a settings key (key=value, repeatable)")
	runCmd.Flags().BoolVarP(&runForceUpdate, "force-update", "u", false, "update all sources regardless of their frequency")
	runCmd.Flags().BoolVarP(&runDryRun, "dry-run", "d", false, "report actions without changing the file system")
	runCmd.Flags().BoolVarP(&runFlushDNS, "flush-dns-cache", "f", false, "flush the DNS cache after the requested stages")
	runCmd.Flags().IntVar(&runJobs, "jobs", 4, "number of sources processed in parallel")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "time limit for the update stage (0 = no limit)")

	rootCmd.AddCommand(runCmd)
}

func validateStages(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("at least one stage is required: update, build or install")
	}
	for _, arg := range args {
		switch arg {
		case "update", "build", "install":
		default:
			return fmt.Errorf("unknown stage %q", arg)
		}
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	log := newLogger()

	if err := requireProfile(); err != nil {
		return err
	}

	overrides, errs := profile.ParseOverrides(runOverrides)
	if len(errs) > 0 {
		log.Warn("Exiting due to errors found while processing the provided overrides:")
		for _, err := range errs {
			log.Warn("%v", err)
		}
		return errors.New("invalid overrides")
	}

	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	p, err := profile.Load(dir, profileName, overrides)
	if err != nil {
		return err
	}

	m, err := manager.New(p, manager.Options{
		DataDir: dir,
		Jobs:    runJobs,
		DryRun:  runDryRun,
		Log:     log,
	})
	if err != nil {
		return err
	}

	wants := make(map[string]bool, len(args))
	for _, arg := range args {
		wants[arg] = true
	}

	if wants["update"] {
		ctx := cmd.Context()
		if runTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}
		if err := m.UpdateAllSources(ctx, runForceUpdate); err != nil {
			return err
		}
	}
	if wants["build"] {
		if err := m.BuildHostsFile(cmd.Context()); err != nil {
			return err
		}
	}
	if wants["install"] {
		if err := m.InstallHostsFile(); err != nil {
			return err
		}
	}

	if runFlushDNS {
		flushDNSCache(log, runDryRun)
	}
	return nil
}
