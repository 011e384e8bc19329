// Package transform applies per-source pre-processors that turn exotic
// payload formats into plain hostname lists before normalization.
package transform

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"hostsmith/internal/logger"
)

// Func rewrites a source payload. Returned errors mark the payload as
// malformed for this transform.
type Func func(text string, log *logger.Logger) (string, error)

// FormatError reports a payload the named pre-processor could not parse.
// The affected source is skipped, the run continues.
type FormatError struct {
	Transform string
	Err       error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("pre-processor %s: %v", e.Transform, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Registry maps pre-processor names to their implementations.
type Registry struct {
	transforms map[string]Func
}

// NewRegistry returns a registry with the built-in pre-processors
// url_parser and json_array already registered.
func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]Func)}
	r.Register("url_parser", urlParser)
	r.Register("json_array", jsonArray)
	return r
}

// Register adds or replaces a named pre-processor.
func (r *Registry) Register(name string, fn Func) {
	r.transforms[name] = fn
}

// Known reports whether name is a registered pre-processor. Profiles
// referencing unknown names are rejected before any fetch happens.
func (r *Registry) Known(name string) bool {
	_, ok := r.transforms[name]
	return ok
}

// Apply runs the chain in order, each step feeding the next. A failing
// step aborts the chain with a FormatError naming it.
func (r *Registry) Apply(text string, chain []string, log *logger.Logger) (string, error) {
	for _, name := range chain {
		fn, ok := r.transforms[name]
		if !ok {
			return "", &FormatError{Transform: name, Err: fmt.Errorf("unknown pre-processor")}
		}
		out, err := fn(text, log)
		if err != nil {
			return "", &FormatError{Transform: name, Err: err}
		}
		text = out
	}
	return text, nil
}

// urlParser keeps the hostname of one URL per line, any port stripped.
// Lines that do not parse or carry no hostname are dropped.
func urlParser(text string, log *logger.Logger) (string, error) {
	var b strings.Builder
	dropped := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Hostname() == "" {
			dropped++
			continue
		}
		b.WriteString(u.Hostname())
		b.WriteByte('\n')
	}
	if dropped > 0 {
		log.Debug("url_parser dropped %d lines without a hostname", dropped)
	}
	return b.String(), nil
}

// jsonArray decodes a JSON array of hostnames into one hostname per line.
func jsonArray(text string, _ *logger.Logger) (string, error) {
	var hosts []string
	if err := json.Unmarshal([]byte(text), &hosts); err != nil {
		return "", fmt.Errorf("decoding JSON array: %w", err)
	}
	return strings.Join(hosts, "\n"), nil
}
