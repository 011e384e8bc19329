package hostsfile

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidHostname(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{host: "example.com", want: true},
		{host: "sub.domain.example.com", want: true},
		{host: "exa_mple.com", want: true},
		{host: "bücher.example", want: true},
		{host: "xn--bcher-kva.example", want: true},
		{host: "0.0.0.0", want: true},
		{host: "ab", want: true},
		{host: strings.Repeat("a", 63) + ".com", want: true},

		{host: "", want: false},
		{host: "a", want: false},
		{host: "-bad.example.com", want: false},
		{host: "bad-.example.com", want: false},
		{host: "a..b", want: false},
		{host: "exa mple.com", want: false},
		{host: strings.Repeat("a", 64) + ".com", want: false},
		{host: strings.Repeat("ab.", 83) + "comx", want: false}, // 253 chars
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidHostname(tt.host))
		})
	}
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{raw: "Example.COM", want: "example.com", wantOK: true},
		{raw: "example.com.", want: "example.com", wantOK: true},
		{raw: "not valid", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Canonicalize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalize(t *testing.T) {
	in := strings.Join([]string{
		"# A full-line comment",
		"",
		"0.0.0.0 ads.example.com # tracker",
		"127.0.0.1 Tracker.Example.NET.",
		"plain.example.org",
		"0.0.0.0 ads.example.com # repeated, first comment wins",
		"0.0.0.0 too many fields here",
		"0.0.0.0 -invalid-.example.com",
	}, "\n")

	t.Run("keep comments", func(t *testing.T) {
		hosts, ignored := Normalize(in, true)
		assert.Equal(t, map[string]string{
			"ads.example.com":     "tracker",
			"tracker.example.net": "",
			"plain.example.org":   "",
		}, hosts)
		assert.Equal(t, 2, ignored)
	})

	t.Run("drop comments", func(t *testing.T) {
		hosts, _ := Normalize(in, false)
		assert.Equal(t, map[string]string{
			"ads.example.com":     "",
			"tracker.example.net": "",
			"plain.example.org":   "",
		}, hosts)
	})
}

func TestStaticBlock(t *testing.T) {
	lines := StaticBlock("workstation", []string{"127.0.0.1 printer.lan", "0.0.0.0 stats.{host_name}"})

	assert.Equal(t, "127.0.0.1 localhost", lines[0])
	assert.Contains(t, lines, "127.0.1.1 workstation")
	assert.Contains(t, lines, "127.0.0.53 workstation")
	assert.Contains(t, lines, "127.0.0.1 printer.lan")
	assert.Contains(t, lines, "0.0.0.0 stats.workstation")
	assert.NotContains(t, strings.Join(lines, "\n"), "{host_name}")
}

func TestRenderWithStaticBlock(t *testing.T) {
	doc := &Document{
		GeneratedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		Static:      StaticBlock("myhost", nil),
		Records: []Record{
			{IP: "0.0.0.0", Hostname: "a.example.com"},
			{IP: "0.0.0.0", Hostname: "b.example.com", Comment: "tracker"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))

	want := `# Date: March 05 2024
# Number of unique domains: 2
# ===============================================================

127.0.0.1 localhost
127.0.0.1 localhost.localdomain
127.0.0.1 local
255.255.255.255 broadcasthost
::1 localhost ip6-localhost ip6-loopback
fe80::1%lo0 localhost
ff02::1 ip6-allnodes
ff02::2 ip6-allrouters
0.0.0.0 0.0.0.0
127.0.1.1 myhost
127.0.0.53 myhost

0.0.0.0 a.example.com
0.0.0.0 b.example.com #tracker
`
	assert.Equal(t, want, buf.String())
}

func TestRenderWithoutStaticBlock(t *testing.T) {
	doc := &Document{
		GeneratedAt: time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
		Records:     []Record{{IP: "127.0.0.1", Hostname: "ads.example.com"}},
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))

	want := `# Date: March 05 2024
# Number of unique domains: 1
# ===============================================================
127.0.0.1 ads.example.com
`
	assert.Equal(t, want, buf.String())
}

func TestRenderGroupsDomainCount(t *testing.T) {
	doc := &Document{GeneratedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < 1500; i++ {
		doc.Records = append(doc.Records, Record{
			IP:       "0.0.0.0",
			Hostname: fmt.Sprintf("host-%04d.example.com", i),
		})
	}

	var buf bytes.Buffer
	require.NoError(t, doc.Render(&buf))
	assert.Contains(t, buf.String(), "# Number of unique domains: 1,500\n")
}
