// Package builder merges normalized source sets with the user's white
// and black lists into the final hosts document.
package builder

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"hostsmith/internal/hostsfile"
)

// SourceData is one source's normalized contribution to the merge.
type SourceData struct {
	Name        string
	IsWhitelist bool
	Hosts       map[string]string // hostname → inline comment
}

// Input carries everything the merge needs. Exclusions come from
// whitelist files, Inclusions from blacklist files; whitelist-flagged
// sources are folded into the exclusions during the merge.
type Input struct {
	Sources     []SourceData
	Exclusions  map[string]bool
	Inclusions  map[string]bool
	TargetIP    string
	HostName    string
	Custom      []string
	SkipStatic  bool
	GeneratedAt time.Time
}

// Build assembles the final document. Candidate hostnames are the union
// of all non-whitelist sources in name-sorted order (the first source to
// mention a hostname keeps its comment), minus every excluded hostname,
// plus every blacklisted one. A hostname that is both excluded and
// blacklisted stays in: an explicit blacklist entry outranks a whitelist
// match. The result is deterministic for identical inputs.
func Build(in Input) *hostsfile.Document {
	sources := make([]SourceData, len(in.Sources))
	copy(sources, in.Sources)
	sort.Slice(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })

	exclusions := make(map[string]bool, len(in.Exclusions))
	for host := range in.Exclusions {
		exclusions[host] = true
	}

	candidates := make(map[string]string)
	for _, src := range sources {
		if src.IsWhitelist {
			for host := range src.Hosts {
				exclusions[host] = true
			}
			continue
		}
		for host, comment := range src.Hosts {
			if _, ok := candidates[host]; !ok {
				candidates[host] = comment
			}
		}
	}

	seeded := hostsfile.SeedNames()
	final := make(map[string]string, len(candidates))
	for host, comment := range candidates {
		if seeded[host] || exclusions[host] {
			continue
		}
		final[host] = comment
	}
	for host := range in.Inclusions {
		if seeded[host] {
			continue
		}
		if _, ok := final[host]; !ok {
			final[host] = ""
		}
	}

	names := make([]string, 0, len(final))
	for host := range final {
		names = append(names, host)
	}
	sort.Strings(names)

	records := make([]hostsfile.Record, 0, len(names))
	for _, host := range names {
		records = append(records, hostsfile.Record{
			IP:       in.TargetIP,
			Hostname: host,
			Comment:  final[host],
		})
	}

	var static []string
	if !in.SkipStatic {
		static = hostsfile.StaticBlock(in.HostName, in.Custom)
	}

	return &hostsfile.Document{
		GeneratedAt: in.GeneratedAt,
		Static:      static,
		Records:     records,
	}
}

// ReadList loads a hostname set from a white/black list file: one
// hostname per line, blanks and full-line comments skipped. A missing
// file is an empty set, lines that are not valid hostnames are dropped.
func ReadList(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading list %s: %w", path, err)
	}

	set := make(map[string]bool)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if host, ok := hostsfile.Canonicalize(line); ok {
			set[host] = true
		}
	}
	return set, nil
}

// Union merges hostname sets into a fresh one.
func Union(sets ...map[string]bool) map[string]bool {
	merged := make(map[string]bool)
	for _, s := range sets {
		for host := range s {
			merged[host] = true
		}
	}
	return merged
}
