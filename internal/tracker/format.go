package tracker

import (
	"fmt"
	"sort"
)

// FormatDuration renders whole seconds as HH:MM:SS. Hours are not capped at 24.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// CategoryShare is one category's slice of a total, for presentation.
type CategoryShare struct {
	Name     string
	Count    int
	Duration int64
	Percent  float64
}

// CategoryShares orders categories by duration, longest first, and computes
// each one's percentage of total. Ties are broken by name.
func CategoryShares(categories map[string]CategoryTotal, total int64) []CategoryShare {
	shares := make([]CategoryShare, 0, len(categories))
	for name, c := range categories {
		share := CategoryShare{Name: name, Count: c.Count, Duration: c.Duration}
		if total > 0 {
			share.Percent = float64(c.Duration) / float64(total) * 100
		}
		shares = append(shares, share)
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Duration != shares[j].Duration {
			return shares[i].Duration > shares[j].Duration
		}
		return shares[i].Name < shares[j].Name
	})
	return shares
}
