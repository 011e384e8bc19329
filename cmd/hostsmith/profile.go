package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hostsmith/internal/profile"
)

var showOverrides []string

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var profileNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a profile with a commented template configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileNew,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print a profile's effective configuration",
	Long: `Print the configuration the run command would use: defaults, the
profile's config.yaml and any -o overrides, merged in that order.`,
	RunE: runProfileShow,
}

func init() {
	profileShowCmd.Flags().StringArrayVarP(&showOverrides, "override", "o", nil, "override a settings key (key=value, repeatable)")

	profileCmd.AddCommand(profileNewCmd, profileListCmd, profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

const configTemplate = `# hostsmith profile configuration.
#
# settings: is optional; unset keys fall back to the defaults shown.
# sources: is mandatory; every source needs a unique name and a url.

settings:
  target_ip: "0.0.0.0"
  keep_domain_comments: false
  skip_static_hosts: false
  backup_old_generated_hosts: true
  backup_system_hosts: true
  max_backups_to_keep: 10
  # Extra lines appended to the static block. {host_name} is replaced
  # with this machine's hostname.
  # custom_static_hosts:
  #   - "127.0.0.1 printer.lan"

# frequency is one of daily, weekly, monthly or semestrial (short forms
# d, w, m and s also work). Unset means monthly.
sources:
  - name: MVPS hosts file
    url: http://winhelp2002.mvps.org/hosts.txt
    frequency: monthly

  - name: Dan Pollock's hosts file
    url: https://someonewhocares.org/hosts/zero/hosts
    frequency: weekly

  # Archived sources name the archive tool and the member to extract.
  # unzip_prog is one of unzip, gzip, 7z or tar; tar also needs an
  # untar_arg (--xz, --gzip or --bzip2).
  # - name: Malwarebytes hpHosts
  #   url: http://hosts-file.net/download/hosts.zip
  #   unzip_prog: unzip
  #   unzip_target: hosts.txt
  #   frequency: semestrial

  # Sources that are not in hosts syntax can be adapted with
  # pre-processors, applied in order.
  # - name: Example JSON list
  #   url: https://example.com/blocked.json
  #   pre_processors:
  #     - json_array
  #     - url_parser

  # Whitelist sources remove their hostnames from the final file.
  # - name: Example allowlist
  #   url: https://example.com/allowlist.txt
  #   is_whitelist: true
`

func runProfileNew(cmd *cobra.Command, args []string) error {
	name := args[0]

	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	profileDir := profile.Dir(dir, name)
	configPath := filepath.Join(profileDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("profile %q already exists: %s", name, configPath)
	}

	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
		return err
	}

	cmd.Printf("Created profile config: %s\n", configPath)
	return nil
}

func runProfileList(cmd *cobra.Command, args []string) error {
	dir, err := resolveDataDir()
	if err != nil {
		return err
	}

	names, err := profile.List(dir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		cmd.Println(`No profiles found. Create one with "hostsmith profile new <name>".`)
		return nil
	}

	cmd.Println("Configured profiles:")
	for _, name := range names {
		p, err := profile.Load(dir, name, nil)
		if err != nil {
			cmd.Printf("  %s (invalid configuration)\n", name)
			continue
		}
		cmd.Printf("  %s (%d sources)\n", name, len(p.Sources))
	}
	return nil
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	log := newLogger()

	if err := requireProfile(); err != nil {
		return err
	}

	overrides, errs := profile.ParseOverrides(showOverrides)
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

	out := struct {
		Settings profile.Settings     `yaml:"settings"`
		Sources  []profile.SourceSpec `yaml:"sources"`
	}{p.Settings, p.Sources}

	data, err := yaml.Marshal(out)
	if err != nil {
		return err
	}
	cmd.Printf("%s", data)
	return nil
}
