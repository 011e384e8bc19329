package profile

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Keys accepted in -o key=value overrides, matching the Settings fields.
var overrideKeys = map[string]func(value string) (any, error){
	"target_ip":                  parseIPValue,
	"keep_domain_comments":       parseBoolValue,
	"skip_static_hosts":          parseBoolValue,
	"custom_static_hosts":        parseListValue,
	"backup_old_generated_hosts": parseBoolValue,
	"backup_system_hosts":        parseBoolValue,
	"max_backups_to_keep":        parseIntValue,
}

// ParseOverrides validates raw key=value pairs from the command line and
// returns the typed values keyed by settings name. All problems are
// collected so the user sees every mistake at once.
func ParseOverrides(raw []string) (map[string]any, []error) {
	overrides := make(map[string]any, len(raw))
	var errs []error

	for _, pair := range raw {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			errs = append(errs, fmt.Errorf("wrong override format %q, expected key=value", pair))
			continue
		}

		parse, known := overrideKeys[key]
		if !known {
			errs = append(errs, fmt.Errorf("unknown override key %q", key))
			continue
		}

		parsed, err := parse(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("wrong value for %q: %w", pair, err))
			continue
		}
		overrides[key] = parsed
	}

	return overrides, errs
}

func parseIPValue(value string) (any, error) {
	if net.ParseIP(value) == nil {
		return nil, errors.New("invalid IP address")
	}
	return value, nil
}

func parseIntValue(value string) (any, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil, errors.New("invalid non-negative integer")
	}
	return n, nil
}

func parseBoolValue(value string) (any, error) {
	switch strings.ToLower(value) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return nil, errors.New("valid boolean values are true, 1, false or 0 (case insensitive)")
	}
}

func parseListValue(value string) (any, error) {
	parts := strings.Split(value, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list, nil
}
