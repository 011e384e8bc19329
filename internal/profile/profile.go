// Package profile models a hosts-file build profile: its settings, its
// source list and the directory layout that persists them. A profile is
// loaded from <data-dir>/profiles/<name>/config.yaml; CLI overrides are
// applied on top of the file, which in turn sits on top of documented
// defaults.
package profile

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"

	"github.com/gosimple/slug"
	"github.com/spf13/viper"
)

// Frequency is the staleness policy attached to a source.
type Frequency string

const (
	FrequencyDaily      Frequency = "daily"
	FrequencyWeekly     Frequency = "weekly"
	FrequencyMonthly    Frequency = "monthly"
	FrequencySemestrial Frequency = "semestrial"
)

// ParseFrequency normalizes a configured frequency value. Both the long
// names and the single-letter codes (d, w, m, s) are accepted; an empty
// value resolves to the monthly default.
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "":
		return FrequencyMonthly, nil
	case "d", "daily":
		return FrequencyDaily, nil
	case "w", "weekly":
		return FrequencyWeekly, nil
	case "m", "monthly":
		return FrequencyMonthly, nil
	case "s", "semestrial":
		return FrequencySemestrial, nil
	default:
		return "", fmt.Errorf("unknown frequency %q", s)
	}
}

// Archive programs accepted in a source's unzip_prog key.
const (
	ProgUnzip = "unzip"
	ProgGzip  = "gzip"
	Prog7z    = "7z"
	ProgTar   = "tar"
)

var validUnzipProgs = map[string]bool{
	ProgUnzip: true,
	ProgGzip:  true,
	Prog7z:    true,
	ProgTar:   true,
}

// Decompression flags accepted in untar_arg.
var validUntarArgs = map[string]bool{
	"--xz":    true,
	"-J":      true,
	"--gzip":  true,
	"-z":      true,
	"--bzip2": true,
	"-j":      true,
}

// Settings holds the per-profile options, every field defaulted at load
// time and overridable from the command line.
type Settings struct {
	TargetIP                string   `mapstructure:"target_ip" yaml:"target_ip"`
	KeepDomainComments      bool     `mapstructure:"keep_domain_comments" yaml:"keep_domain_comments"`
	SkipStaticHosts         bool     `mapstructure:"skip_static_hosts" yaml:"skip_static_hosts"`
	CustomStaticHosts       []string `mapstructure:"custom_static_hosts" yaml:"custom_static_hosts"`
	BackupOldGeneratedHosts bool     `mapstructure:"backup_old_generated_hosts" yaml:"backup_old_generated_hosts"`
	BackupSystemHosts       bool     `mapstructure:"backup_system_hosts" yaml:"backup_system_hosts"`
	MaxBackupsToKeep        int      `mapstructure:"max_backups_to_keep" yaml:"max_backups_to_keep"`
}

// SourceSpec describes one remote list contributing hostnames.
type SourceSpec struct {
	Name          string    `mapstructure:"name" yaml:"name"`
	URL           string    `mapstructure:"url" yaml:"url"`
	IsWhitelist   bool      `mapstructure:"is_whitelist" yaml:"is_whitelist"`
	Frequency     Frequency `mapstructure:"frequency" yaml:"frequency"`
	PreProcessors []string  `mapstructure:"pre_processors" yaml:"pre_processors,omitempty"`
	UnzipProg     string    `mapstructure:"unzip_prog" yaml:"unzip_prog,omitempty"`
	UnzipTarget   string    `mapstructure:"unzip_target" yaml:"unzip_target,omitempty"`
	UntarArg      string    `mapstructure:"untar_arg" yaml:"untar_arg,omitempty"`

	// Slug is the on-disk cache key derived from Name.
	Slug string `mapstructure:"-" yaml:"-"`
}

// Archived reports whether the source's payload needs extraction.
func (s *SourceSpec) Archived() bool {
	return s.UnzipProg != ""
}

// Profile is a named configuration plus the directory that owns its
// state (cache, lists, backups, generated hosts file).
type Profile struct {
	Name     string
	Dir      string
	Settings Settings
	Sources  []SourceSpec
}

// ConfigError reports a missing or invalid profile configuration. It is
// fatal: nothing is fetched or written when one is raised.
type ConfigError struct {
	Profile string
	Err     error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("profile %q: %v", e.Profile, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type fileConfig struct {
	Settings Settings     `mapstructure:"settings"`
	Sources  []SourceSpec `mapstructure:"sources"`
}

// ProfilesDir returns the directory holding all profiles under dataDir.
func ProfilesDir(dataDir string) string {
	return filepath.Join(dataDir, "profiles")
}

// Dir returns the directory of the named profile under dataDir.
func Dir(dataDir, name string) string {
	return filepath.Join(ProfilesDir(dataDir), name)
}

// GlobalWhitelist returns the path of the whitelist merged into every
// profile's exclusions.
func GlobalWhitelist(dataDir string) string {
	return filepath.Join(dataDir, "global_whitelist")
}

// GlobalBlacklist returns the path of the blacklist merged into every
// profile's inclusions.
func GlobalBlacklist(dataDir string) string {
	return filepath.Join(dataDir, "global_blacklist")
}

// Load reads and validates the named profile. Overrides, as produced by
// ParseOverrides, take precedence over config.yaml values, which take
// precedence over defaults.
func Load(dataDir, name string, overrides map[string]any) (*Profile, error) {
	if name == "" {
		return nil, &ConfigError{Profile: name, Err: errors.New("no profile name provided")}
	}

	dir := Dir(dataDir, name)
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Profile: name, Err: fmt.Errorf("reading config.yaml: %w", err)}
	}
	for key, value := range overrides {
		v.Set("settings."+key, value)
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Profile: name, Err: fmt.Errorf("parsing config.yaml: %w", err)}
	}

	p := &Profile{Name: name, Dir: dir, Settings: cfg.Settings, Sources: cfg.Sources}
	if err := p.validate(); err != nil {
		return nil, &ConfigError{Profile: name, Err: err}
	}

	// Deterministic processing order regardless of config order.
	sort.Slice(p.Sources, func(i, j int) bool { return p.Sources[i].Name < p.Sources[j].Name })
	return p, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings.target_ip", "0.0.0.0")
	v.SetDefault("settings.keep_domain_comments", false)
	v.SetDefault("settings.skip_static_hosts", false)
	v.SetDefault("settings.custom_static_hosts", []string{})
	v.SetDefault("settings.backup_old_generated_hosts", true)
	v.SetDefault("settings.backup_system_hosts", true)
	v.SetDefault("settings.max_backups_to_keep", 10)
}

func (p *Profile) validate() error {
	var errs []error

	if p.Settings.MaxBackupsToKeep < 0 {
		errs = append(errs, errors.New("max_backups_to_keep must not be negative"))
	}
	if net.ParseIP(p.Settings.TargetIP) == nil {
		errs = append(errs, fmt.Errorf("target_ip %q is not a valid IP address", p.Settings.TargetIP))
	}

	if len(p.Sources) == 0 {
		errs = append(errs, errors.New("no sources defined"))
	}

	seen := make(map[string]bool, len(p.Sources))
	slugs := make(map[string]string, len(p.Sources))
	for i := range p.Sources {
		src := &p.Sources[i]
		label := src.Name
		if label == "" {
			label = fmt.Sprintf("source #%d", i+1)
		}

		if src.Name == "" {
			errs = append(errs, fmt.Errorf("%s: missing mandatory name key", label))
		} else if seen[src.Name] {
			errs = append(errs, fmt.Errorf("%s: more than one source with the same name", label))
		} else {
			seen[src.Name] = true
		}
		if src.URL == "" {
			errs = append(errs, fmt.Errorf("%s: missing mandatory url key", label))
		}

		freq, err := ParseFrequency(string(src.Frequency))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
		} else {
			src.Frequency = freq
		}

		if src.UnzipProg != "" && !validUnzipProgs[src.UnzipProg] {
			errs = append(errs, fmt.Errorf("%s: unknown unzip_prog %q", label, src.UnzipProg))
		}
		if src.UnzipProg != "" && src.UnzipTarget == "" {
			errs = append(errs, fmt.Errorf("%s: unzip_prog requires an unzip_target key", label))
		}
		if src.UnzipTarget != "" && src.UnzipProg == "" {
			errs = append(errs, fmt.Errorf("%s: unzip_target requires an unzip_prog key", label))
		}
		if src.UnzipProg == ProgTar && src.UntarArg == "" {
			errs = append(errs, fmt.Errorf("%s: the tar program requires an untar_arg key", label))
		}
		if src.UntarArg != "" && !validUntarArgs[src.UntarArg] {
			errs = append(errs, fmt.Errorf("%s: unknown untar_arg %q", label, src.UntarArg))
		}

		// Slugs are the cache file names, so distinct names must not
		// collapse into the same slug.
		src.Slug = "hosts-" + slug.Make(src.Name)
		if other, taken := slugs[src.Slug]; taken && other != src.Name {
			errs = append(errs, fmt.Errorf("%s: name maps to the same cache key as source %q", label, other))
		} else if !taken {
			slugs[src.Slug] = src.Name
		}
	}

	return errors.Join(errs...)
}

// HostsFile is the profile's generated artifact path.
func (p *Profile) HostsFile() string { return filepath.Join(p.Dir, "hosts") }

// SourcesDir holds the per-source download cache.
func (p *Profile) SourcesDir() string { return filepath.Join(p.Dir, "sources") }

// BackupsDir holds rotated hosts-file backups.
func (p *Profile) BackupsDir() string { return filepath.Join(p.Dir, "backups") }

// WhitelistFile is the profile-local exclusion list (may not exist).
func (p *Profile) WhitelistFile() string { return filepath.Join(p.Dir, "whitelist") }

// BlacklistFile is the profile-local inclusion list (may not exist).
func (p *Profile) BlacklistFile() string { return filepath.Join(p.Dir, "blacklist") }

// List enumerates the profile names present under dataDir.
func List(dataDir string) ([]string, error) {
	entries, err := os.ReadDir(ProfilesDir(dataDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
