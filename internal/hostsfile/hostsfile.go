// Package hostsfile turns raw source payloads into canonical hostname
// sets and renders the final hosts artifact.
package hostsfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// labelPattern validates one dot-separated hostname label: word
// characters with inner hyphens, at most 63 characters. Unicode classes
// keep IDN hostnames valid.
var labelPattern = regexp.MustCompile(`^[\p{L}\p{N}_]([\p{L}\p{N}_-]{0,61}[\p{L}\p{N}_])?$`)

// ValidHostname reports whether host is usable in a hosts file.
func ValidHostname(host string) bool {
	if len(host) <= 1 || len(host) >= 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if !labelPattern.MatchString(label) {
			return false
		}
	}
	return true
}

// Canonicalize lowercases raw, strips a trailing dot and validates the
// result. ok is false for anything that is not a usable hostname.
func Canonicalize(raw string) (host string, ok bool) {
	host = strings.TrimSuffix(strings.ToLower(raw), ".")
	if !ValidHostname(host) {
		return "", false
	}
	return host, true
}

// Normalize parses a payload into a hostname to inline-comment map.
// Accepted line shapes are `ip hostname` (the ip is discarded) and bare
// `hostname`. Blank lines and full-line comments are skipped silently;
// everything else that does not yield a valid hostname counts as
// ignored. Inline comments are retained only when keepComments is set,
// and only the first occurrence of a hostname keeps its comment.
func Normalize(text string, keepComments bool) (map[string]string, int) {
	hosts := make(map[string]string)
	ignored := 0

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, comment, _ := strings.Cut(line, "#")

		var raw string
		switch fields := strings.Fields(rule); len(fields) {
		case 1:
			raw = fields[0]
		case 2:
			raw = fields[1]
		default:
			ignored++
			continue
		}

		host, ok := Canonicalize(raw)
		if !ok {
			ignored++
			continue
		}
		if _, seen := hosts[host]; seen {
			continue
		}
		if keepComments {
			hosts[host] = strings.TrimSpace(comment)
		} else {
			hosts[host] = ""
		}
	}
	return hosts, ignored
}

// staticHosts is the fixed block at the top of every generated file.
var staticHosts = []string{
	"127.0.0.1 localhost",
	"127.0.0.1 localhost.localdomain",
	"127.0.0.1 local",
	"255.255.255.255 broadcasthost",
	"::1 localhost ip6-localhost ip6-loopback",
	"fe80::1%lo0 localhost",
	"ff02::1 ip6-allnodes",
	"ff02::2 ip6-allrouters",
	"0.0.0.0 0.0.0.0",
	"127.0.1.1 {host_name}",
	"127.0.0.53 {host_name}",
}

// StaticBlock returns the static entries followed by the profile's custom
// ones, with every {host_name} placeholder replaced by hostName.
func StaticBlock(hostName string, custom []string) []string {
	lines := make([]string, 0, len(staticHosts)+len(custom))
	for _, l := range staticHosts {
		lines = append(lines, strings.ReplaceAll(l, "{host_name}", hostName))
	}
	for _, l := range custom {
		lines = append(lines, strings.ReplaceAll(l, "{host_name}", hostName))
	}
	return lines
}

// SeedNames returns the hostnames already claimed by the static block.
// Sources can never re-emit them as rules.
func SeedNames() map[string]bool {
	return map[string]bool{
		"localhost":             true,
		"localhost.localdomain": true,
		"local":                 true,
		"broadcasthost":         true,
	}
}

// Record is one generated hosts rule.
type Record struct {
	IP       string
	Hostname string
	Comment  string
}

// Document is the fully assembled hosts artifact.
type Document struct {
	GeneratedAt time.Time
	Static      []string
	Records     []Record
}

var countPrinter = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators, as used in the
// artifact header and the build summary.
func FormatCount(n int) string {
	return countPrinter.Sprintf("%d", n)
}

const headerRule = "# ==============================================================="

// Render writes the document: the dated header, the static block when
// present, then one rule per line in the stored order.
func (d *Document) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# Date: %s\n", d.GeneratedAt.UTC().Format("January 02 2006"))
	fmt.Fprintf(bw, "# Number of unique domains: %s\n", FormatCount(len(d.Records)))
	fmt.Fprintf(bw, "%s\n", headerRule)

	if len(d.Static) > 0 {
		bw.WriteByte('\n')
		for _, line := range d.Static {
			bw.WriteString(line)
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}

	for _, r := range d.Records {
		if r.Comment != "" {
			fmt.Fprintf(bw, "%s %s #%s\n", r.IP, r.Hostname, r.Comment)
		} else {
			fmt.Fprintf(bw, "%s %s\n", r.IP, r.Hostname)
		}
	}
	return bw.Flush()
}
