// Package freshness turns a last-refreshed timestamp into an age label and a
// severity tier.
package freshness

import (
	"time"

	"github.com/hako/durafmt"
)

type Tier string

const (
	TierFresh   Tier = "fresh"
	TierStale   Tier = "stale"
	TierOld     Tier = "old"
	TierUnknown Tier = "unknown"
)

const (
	StaleAfter = 5 * time.Minute
	OldAfter   = 15 * time.Minute
)

type Result struct {
	Label string
	Tier  Tier
	Age   time.Duration
}

// Evaluate classifies lastRefreshed relative to now. A nil or zero timestamp
// is unknown. Timestamps in the future count as just refreshed.
func Evaluate(now time.Time, lastRefreshed *time.Time) Result {
	if lastRefreshed == nil || lastRefreshed.IsZero() {
		return Result{Label: "never refreshed", Tier: TierUnknown}
	}
	if now.IsZero() {
		now = time.Now()
	}
	age := now.Sub(*lastRefreshed)
	if age < 0 {
		age = 0
	}
	return Result{Label: Label(age), Tier: TierFor(age), Age: age}
}

func TierFor(age time.Duration) Tier {
	switch {
	case age < StaleAfter:
		return TierFresh
	case age < OldAfter:
		return TierStale
	default:
		return TierOld
	}
}

// Label renders age as "just now" below one minute, otherwise the largest
// unit only, e.g. "12 minutes ago".
func Label(age time.Duration) string {
	if age < time.Minute {
		return "just now"
	}
	return durafmt.Parse(age.Truncate(time.Minute)).LimitFirstN(1).String() + " ago"
}

func (t Tier) BadgeClass() string {
	switch t {
	case TierFresh:
		return "badge bg-emerald-100 text-emerald-800 dark:bg-emerald-900/50 dark:text-emerald-100"
	case TierStale:
		return "badge bg-amber-100 text-amber-800 dark:bg-amber-900/50 dark:text-amber-100"
	case TierOld:
		return "badge bg-rose-100 text-rose-800 dark:bg-rose-900/50 dark:text-rose-100"
	default:
		return "badge bg-slate-100 text-slate-800 dark:bg-slate-900/50 dark:text-slate-100"
	}
}
