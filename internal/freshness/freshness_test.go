package freshness

import (
	"testing"
	"time"
)

func TestEvaluate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name      string
		last      *time.Time
		wantTier  Tier
		wantLabel string
	}{
		{name: "never", last: nil, wantTier: TierUnknown, wantLabel: "never refreshed"},
		{name: "zero", last: &time.Time{}, wantTier: TierUnknown, wantLabel: "never refreshed"},
		{name: "seconds", last: ago(20 * time.Second), wantTier: TierFresh, wantLabel: "just now"},
		{name: "future", last: ago(-time.Minute), wantTier: TierFresh, wantLabel: "just now"},
		{name: "oneMinute", last: ago(time.Minute + 10*time.Second), wantTier: TierFresh, wantLabel: "1 minute ago"},
		{name: "justUnderStale", last: ago(4*time.Minute + 59*time.Second), wantTier: TierFresh, wantLabel: "4 minutes ago"},
		{name: "staleBoundary", last: ago(5 * time.Minute), wantTier: TierStale, wantLabel: "5 minutes ago"},
		{name: "stale", last: ago(14 * time.Minute), wantTier: TierStale, wantLabel: "14 minutes ago"},
		{name: "oldBoundary", last: ago(15 * time.Minute), wantTier: TierOld, wantLabel: "15 minutes ago"},
		{name: "hours", last: ago(3*time.Hour + 20*time.Minute), wantTier: TierOld, wantLabel: "3 hours ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Evaluate(now, tt.last)
			if got.Tier != tt.wantTier {
				t.Fatalf("tier=%q, want %q", got.Tier, tt.wantTier)
			}
			if got.Label != tt.wantLabel {
				t.Fatalf("label=%q, want %q", got.Label, tt.wantLabel)
			}
		})
	}
}

func TestEvaluateReclassifiesAsTimePasses(t *testing.T) {
	t.Parallel()

	last := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var tiers []Tier
	for _, offset := range []time.Duration{time.Minute, 6 * time.Minute, 16 * time.Minute} {
		tiers = append(tiers, Evaluate(last.Add(offset), &last).Tier)
	}
	want := []Tier{TierFresh, TierStale, TierOld}
	for i := range want {
		if tiers[i] != want[i] {
			t.Fatalf("tiers=%v, want %v", tiers, want)
		}
	}
}

func TestBadgeClassDiffersPerTier(t *testing.T) {
	t.Parallel()

	seen := map[string]Tier{}
	for _, tier := range []Tier{TierFresh, TierStale, TierOld, TierUnknown} {
		class := tier.BadgeClass()
		if prev, ok := seen[class]; ok {
			t.Fatalf("%q and %q share class %q", prev, tier, class)
		}
		seen[class] = tier
	}
}
