package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dataDir, name, config string) {
	t.Helper()
	dir := Dir(dataDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(config), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	dataDir := t.TempDir()
	writeProfile(t, dataDir, "default", `
sources:
  - name: some list
    url: https://example.com/hosts.txt
`)

	p, err := Load(dataDir, "default", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", p.Settings.TargetIP)
	assert.False(t, p.Settings.KeepDomainComments)
	assert.False(t, p.Settings.SkipStaticHosts)
	assert.True(t, p.Settings.BackupOldGeneratedHosts)
	assert.True(t, p.Settings.BackupSystemHosts)
	assert.Equal(t, 10, p.Settings.MaxBackupsToKeep)

	require.Len(t, p.Sources, 1)
	assert.Equal(t, FrequencyMonthly, p.Sources[0].Frequency)
	assert.Equal(t, "hosts-some-list", p.Sources[0].Slug)
	assert.False(t, p.Sources[0].Archived())
}

func TestLoadOverridesTakePrecedence(t *testing.T) {
	dataDir := t.TempDir()
	writeProfile(t, dataDir, "default", `
settings:
  target_ip: "127.0.0.1"
  max_backups_to_keep: 3
sources:
  - name: list
    url: https://example.com/hosts.txt
`)

	overrides, errs := ParseOverrides([]string{"target_ip=0.0.0.0", "keep_domain_comments=1"})
	require.Empty(t, errs)

	p, err := Load(dataDir, "default", overrides)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", p.Settings.TargetIP, "override wins over config value")
	assert.True(t, p.Settings.KeepDomainComments)
	assert.Equal(t, 3, p.Settings.MaxBackupsToKeep, "config value wins over default")
}

func TestLoadSortsSourcesByName(t *testing.T) {
	dataDir := t.TempDir()
	writeProfile(t, dataDir, "default", `
sources:
  - name: zeta
    url: https://example.com/z.txt
  - name: alpha
    url: https://example.com/a.txt
`)

	p, err := Load(dataDir, "default", nil)
	require.NoError(t, err)
	require.Len(t, p.Sources, 2)
	assert.Equal(t, "alpha", p.Sources[0].Name)
	assert.Equal(t, "zeta", p.Sources[1].Name)
}

func TestLoadMissingConfig(t *testing.T) {
	_, err := Load(t.TempDir(), "nope", nil)
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "nope", cfgErr.Profile)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{
			name:    "no sources",
			config:  "settings:\n  target_ip: \"0.0.0.0\"\n",
			wantErr: "no sources defined",
		},
		{
			name: "missing url",
			config: `
sources:
  - name: broken
`,
			wantErr: "missing mandatory url key",
		},
		{
			name: "missing name",
			config: `
sources:
  - url: https://example.com/hosts.txt
`,
			wantErr: "missing mandatory name key",
		},
		{
			name: "duplicate names",
			config: `
sources:
  - name: twice
    url: https://example.com/1.txt
  - name: twice
    url: https://example.com/2.txt
`,
			wantErr: "more than one source with the same name",
		},
		{
			name: "colliding cache keys",
			config: `
sources:
  - name: "My List!"
    url: https://example.com/1.txt
  - name: "My List?"
    url: https://example.com/2.txt
`,
			wantErr: `name maps to the same cache key as source "My List!"`,
		},
		{
			name: "unzip_prog without target",
			config: `
sources:
  - name: zipped
    url: https://example.com/hosts.zip
    unzip_prog: unzip
`,
			wantErr: "requires an unzip_target",
		},
		{
			name: "unzip_target without prog",
			config: `
sources:
  - name: zipped
    url: https://example.com/hosts.zip
    unzip_target: hosts.txt
`,
			wantErr: "requires an unzip_prog",
		},
		{
			name: "tar without untar_arg",
			config: `
sources:
  - name: tarred
    url: https://example.com/hosts.tar.gz
    unzip_prog: tar
    unzip_target: hosts.txt
`,
			wantErr: "requires an untar_arg",
		},
		{
			name: "unknown untar_arg",
			config: `
sources:
  - name: tarred
    url: https://example.com/hosts.tar.gz
    unzip_prog: tar
    unzip_target: hosts.txt
    untar_arg: "--lzma"
`,
			wantErr: "unknown untar_arg",
		},
		{
			name: "unknown unzip_prog",
			config: `
sources:
  - name: compressed
    url: https://example.com/hosts.rar
    unzip_prog: rar
    unzip_target: hosts.txt
`,
			wantErr: "unknown unzip_prog",
		},
		{
			name: "unknown frequency",
			config: `
sources:
  - name: list
    url: https://example.com/hosts.txt
    frequency: yearly
`,
			wantErr: "unknown frequency",
		},
		{
			name: "bad target ip",
			config: `
settings:
  target_ip: "not-an-ip"
sources:
  - name: list
    url: https://example.com/hosts.txt
`,
			wantErr: "not a valid IP address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			writeProfile(t, dataDir, "p", tt.config)

			_, err := Load(dataDir, "p", nil)
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in      string
		want    Frequency
		wantErr bool
	}{
		{in: "", want: FrequencyMonthly},
		{in: "d", want: FrequencyDaily},
		{in: "daily", want: FrequencyDaily},
		{in: "w", want: FrequencyWeekly},
		{in: "weekly", want: FrequencyWeekly},
		{in: "m", want: FrequencyMonthly},
		{in: "monthly", want: FrequencyMonthly},
		{in: "s", want: FrequencySemestrial},
		{in: "semestrial", want: FrequencySemestrial},
		{in: "hourly", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFrequency(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestList(t *testing.T) {
	dataDir := t.TempDir()
	writeProfile(t, dataDir, "beta", "sources:\n  - name: x\n    url: https://example.com/x\n")
	writeProfile(t, dataDir, "alpha", "sources:\n  - name: x\n    url: https://example.com/x\n")

	names, err := List(dataDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	empty, err := List(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
