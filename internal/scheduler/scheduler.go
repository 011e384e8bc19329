// Package scheduler decides whether a source's cached payload is stale
// enough to warrant a refetch.
package scheduler

import (
	"time"

	"hostsmith/internal/cache"
	"hostsmith/internal/profile"
)

// Minimum ages before a cached payload is considered stale. Daily sources
// have no minimum, they are refetched on every run.
const (
	weeklyAge     = 6 * 24 * time.Hour
	monthlyAge    = 28 * 24 * time.Hour
	semestrialAge = 87 * 24 * time.Hour
)

// ShouldUpdate reports whether src must be fetched again. A nil record
// means the source was never fetched (or its payload file vanished), which
// always triggers a fetch, as does force.
func ShouldUpdate(src profile.SourceSpec, rec *cache.Record, force bool, now time.Time) bool {
	if force || rec == nil {
		return true
	}
	switch src.Frequency {
	case profile.FrequencyDaily:
		return true
	case profile.FrequencyWeekly:
		return now.Sub(rec.FetchedAt) >= weeklyAge
	case profile.FrequencySemestrial:
		return now.Sub(rec.FetchedAt) >= semestrialAge
	default:
		return now.Sub(rec.FetchedAt) >= monthlyAge
	}
}
