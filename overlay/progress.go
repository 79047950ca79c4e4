// overlay/progress.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package overlay

import (
	"fmt"
	gomath "math"
	"net/url"
	"time"

	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/panel"
)

// VoyageProgress returns how far along a voyage that departed at atd and
// is due at eta is at now. Once eta has passed the voyage has arrived;
// before that, progress is unknown if atd is missing or eta isn't after
// atd.
func VoyageProgress(atd, eta, now time.Time) panel.Progress {
	if eta.IsZero() {
		return panel.Progress{}
	}
	if !now.Before(eta) {
		return panel.Progress{Known: true, Percent: 100, Label: "Arrived"}
	}
	if atd.IsZero() || !eta.After(atd) {
		return panel.Progress{}
	}

	pct := float64(now.Sub(atd)) / float64(eta.Sub(atd)) * 100
	pct = math.Clamp(pct, 0, 100)
	p := int(gomath.Round(pct))
	return panel.Progress{
		Known:   true,
		Percent: p,
		Label:   fmt.Sprintf("%d%%, %s", p, FormatRemaining(eta.Sub(now))),
	}
}

// FormatRemaining formats a positive duration as "Nd Nh left", "Nh Nm
// left", or "Nm left", rounding up to the minute.
func FormatRemaining(d time.Duration) string {
	mins := int(gomath.Ceil(d.Minutes()))
	switch {
	case mins >= 24*60:
		return fmt.Sprintf("%dd %dh left", mins/(24*60), mins%(24*60)/60)
	case mins >= 60:
		return fmt.Sprintf("%dh %dm left", mins/60, mins%60)
	default:
		return fmt.Sprintf("%dm left", max(mins, 0))
	}
}

// DetailsPath returns the path of the vessel details page.
func DetailsPath(id string) string {
	return "/vessels/" + url.PathEscape(id)
}
