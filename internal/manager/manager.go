// Package manager orchestrates the update, build and install stages for
// one profile.
package manager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"

	"hostsmith/internal/backup"
	"hostsmith/internal/builder"
	"hostsmith/internal/cache"
	"hostsmith/internal/extractor"
	"hostsmith/internal/fetcher"
	"hostsmith/internal/hostsfile"
	"hostsmith/internal/logger"
	"hostsmith/internal/profile"
	"hostsmith/internal/scheduler"
	"hostsmith/internal/system"
	"hostsmith/internal/transform"
)

// FetchError marks one source that could not be updated or read. The run
// logs it and continues with the remaining sources.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("source <%s>: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// InstallError aborts the run. The live hosts file is never replaced
// with a doubtful artifact.
type InstallError struct {
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("installing hosts file: %v", e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Options configures a Manager.
type Options struct {
	DataDir  string
	Jobs     int  // parallel per-source workers, default 4
	DryRun   bool // report what would happen without writing anything
	Fetcher  fetcher.Options
	Registry *transform.Registry // nil selects the built-ins only
	Log      *logger.Logger      // nil discards all output
}

// Manager runs the update, build and install stages for one profile.
type Manager struct {
	// Now, Hostname, HostsPath and InstallFile are seams for tests.
	Now         func() time.Time
	Hostname    func() (string, error)
	HostsPath   string
	InstallFile func(src, dst string) error

	profile  *profile.Profile
	store    *cache.Store
	fetch    *fetcher.Fetcher
	registry *transform.Registry
	log      *logger.Logger
	dataDir  string
	jobs     int
	dryRun   bool
}

// New wires a manager for p. Pre-processor chains are checked here so a
// typoed transform name surfaces before anything is fetched.
func New(p *profile.Profile, opts Options) (*Manager, error) {
	registry := opts.Registry
	if registry == nil {
		registry = transform.NewRegistry()
	}
	for _, src := range p.Sources {
		for _, name := range src.PreProcessors {
			if !registry.Known(name) {
				return nil, &profile.ConfigError{
					Profile: p.Name,
					Err:     fmt.Errorf("source <%s>: unknown pre-processor %q", src.Name, name),
				}
			}
		}
	}

	store, err := cache.Open(p.SourcesDir())
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 4
	}

	return &Manager{
		Now:         time.Now,
		Hostname:    os.Hostname,
		HostsPath:   system.HostsPath(),
		InstallFile: system.Install,
		profile:     p,
		store:       store,
		fetch:       fetcher.New(opts.Fetcher),
		registry:    registry,
		log:         log,
		dataDir:     opts.DataDir,
		jobs:        jobs,
		dryRun:      opts.DryRun,
	}, nil
}

// UpdateAllSources refetches every source whose cached payload is stale;
// force refetches all of them. Failing sources are logged and skipped,
// and the cache index is persisted for the ones that succeeded.
func (m *Manager) UpdateAllSources(ctx context.Context, force bool) error {
	now := m.Now()
	errs := make([]error, len(m.profile.Sources))

	workers := pool.New().WithMaxGoroutines(m.jobs)
	for i, src := range m.profile.Sources {
		workers.Go(func() {
			errs[i] = m.updateSource(ctx, src, force, now)
		})
	}
	workers.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			m.log.Warn("%v", err)
		}
	}
	if failed > 0 {
		m.log.Warn("%d of %d sources failed to update.", failed, len(errs))
	}

	if !m.dryRun {
		if err := m.store.Flush(); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (m *Manager) updateSource(ctx context.Context, src profile.SourceSpec, force bool, now time.Time) error {
	rec := m.store.Lookup(src.Slug)
	if !scheduler.ShouldUpdate(src, rec, force, now) {
		m.log.Info("Source <%s> does not need updating.", src.Name)
		return nil
	}

	if m.dryRun {
		m.log.Info("Dry run: would fetch source <%s> from <%s>.", src.Name, src.URL)
		return nil
	}

	m.log.Info("Updating source <%s>...", src.Name)
	payload, err := m.fetch.Fetch(ctx, src.URL)
	if err != nil {
		return &FetchError{Source: src.Name, Err: err}
	}

	text := payload
	if src.Archived() {
		if err := m.store.StoreArchive(src.Slug, payload); err != nil {
			return &FetchError{Source: src.Name, Err: err}
		}
		extract, err := extractor.For(src.UnzipProg, src.UntarArg)
		if err != nil {
			return &FetchError{Source: src.Name, Err: err}
		}
		if text, err = extract(payload, src.UnzipTarget); err != nil {
			return &FetchError{Source: src.Name, Err: err}
		}
	}

	// An empty payload must not clobber a previously good one.
	if len(bytes.TrimSpace(text)) == 0 {
		return &FetchError{Source: src.Name, Err: errors.New("payload is empty")}
	}

	if err := m.store.StoreRaw(src.Slug, text, now); err != nil {
		return &FetchError{Source: src.Name, Err: err}
	}
	return nil
}

// BuildHostsFile assembles the hosts artifact from the cached payloads.
// Sources without a usable payload are skipped with a warning.
func (m *Manager) BuildHostsFile(ctx context.Context) error {
	sources := m.profile.Sources

	data := make([]*builder.SourceData, len(sources))
	ignored := make([]int, len(sources))
	errs := make([]error, len(sources))

	workers := pool.New().WithMaxGoroutines(m.jobs)
	for i, src := range sources {
		workers.Go(func() {
			data[i], ignored[i], errs[i] = m.loadSource(src)
		})
	}
	workers.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	var input builder.Input
	totalIgnored := 0
	for i := range sources {
		if errs[i] != nil {
			m.log.Warn("%v", errs[i])
			continue
		}
		input.Sources = append(input.Sources, *data[i])
		totalIgnored += ignored[i]
	}

	profileWhite, err := builder.ReadList(m.profile.WhitelistFile())
	if err != nil {
		return err
	}
	globalWhite, err := builder.ReadList(profile.GlobalWhitelist(m.dataDir))
	if err != nil {
		return err
	}
	profileBlack, err := builder.ReadList(m.profile.BlacklistFile())
	if err != nil {
		return err
	}
	globalBlack, err := builder.ReadList(profile.GlobalBlacklist(m.dataDir))
	if err != nil {
		return err
	}
	input.Exclusions = builder.Union(profileWhite, globalWhite)
	input.Inclusions = builder.Union(profileBlack, globalBlack)

	hostName, err := m.Hostname()
	if err != nil {
		m.log.Warn("Could not determine the machine host name: %v", err)
		hostName = "localhost"
	}

	settings := m.profile.Settings
	input.TargetIP = settings.TargetIP
	input.HostName = hostName
	input.Custom = settings.CustomStaticHosts
	input.SkipStatic = settings.SkipStaticHosts
	input.GeneratedAt = m.Now()

	doc := builder.Build(input)

	m.log.Info("Hosts file building finished.")
	m.log.Info("It contains %s unique entries.", hostsfile.FormatCount(len(doc.Records)))
	if totalIgnored > 0 {
		m.log.Warn("A total of %s rules were ignored.", hostsfile.FormatCount(totalIgnored))
	}

	artifact := m.profile.HostsFile()
	if m.dryRun {
		m.log.Info("Dry run: would write %s rules to <%s>.", hostsfile.FormatCount(len(doc.Records)), artifact)
		return nil
	}

	if settings.BackupOldGeneratedHosts {
		if _, err := os.Stat(artifact); err == nil {
			rotator := &backup.Manager{
				Dir:  m.profile.BackupsDir(),
				Keep: settings.MaxBackupsToKeep,
				Now:  m.Now,
			}
			if err := rotator.Rotate(artifact, "generated-hosts"); err != nil {
				m.log.Warn("%v", err)
			} else {
				m.log.Info("Old generated hosts file backed up.")
			}
		}
	}

	f, err := os.Create(artifact)
	if err != nil {
		return fmt.Errorf("writing hosts file: %w", err)
	}
	if err := doc.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("writing hosts file: %w", err)
	}
	return f.Close()
}

func (m *Manager) loadSource(src profile.SourceSpec) (*builder.SourceData, int, error) {
	raw, err := m.store.ReadRaw(src.Slug)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = errors.New("no cached payload, run the update stage first")
		}
		return nil, 0, &FetchError{Source: src.Name, Err: err}
	}

	text, err := m.registry.Apply(string(raw), src.PreProcessors, m.log)
	if err != nil {
		return nil, 0, &FetchError{Source: src.Name, Err: err}
	}

	hosts, ignoredLines := hostsfile.Normalize(text, m.profile.Settings.KeepDomainComments)
	return &builder.SourceData{
		Name:        src.Name,
		IsWhitelist: src.IsWhitelist,
		Hosts:       hosts,
	}, ignoredLines, nil
}

// InstallHostsFile replaces the live hosts file with the generated
// artifact, backing the system file up first when configured.
func (m *Manager) InstallHostsFile() error {
	artifact := m.profile.HostsFile()
	if _, err := os.Stat(artifact); err != nil {
		return &InstallError{Err: errors.New("no generated hosts file found, run the build stage first")}
	}

	if m.dryRun {
		m.log.Info("Dry run: would install <%s> to <%s>.", artifact, m.HostsPath)
		return nil
	}

	settings := m.profile.Settings
	if settings.BackupSystemHosts {
		m.log.Info("Backing up the system's hosts file...")
		rotator := &backup.Manager{
			Dir:  m.profile.BackupsDir(),
			Keep: settings.MaxBackupsToKeep,
			Now:  m.Now,
		}
		if err := rotator.Rotate(m.HostsPath, "system-hosts"); err != nil {
			m.log.Warn("%v", err)
		}
	}

	if err := m.InstallFile(artifact, m.HostsPath); err != nil {
		return &InstallError{Err: err}
	}
	m.log.Success("Hosts file successfully installed.")
	return nil
}
