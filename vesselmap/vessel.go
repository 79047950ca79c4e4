// vesselmap/vessel.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vesselmap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/harborline/harborline/math"
)

// VesselInfo is everything the map knows about a vessel. The adapter owns
// the canonical copies; everyone else gets snapshots.
type VesselInfo struct {
	ID            string    `json:"id" yaml:"id" validate:"required"`
	Name          string    `json:"name" yaml:"name" validate:"required"`
	Lat           float32   `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon           float32   `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
	Course        float32   `json:"course" yaml:"course" validate:"gte=0,lte=360"`
	Type          string    `json:"type" yaml:"type"`
	Flag          string    `json:"flag" yaml:"flag"`
	Photo         string    `json:"photo,omitempty" yaml:"photo"`
	DeparturePort string    `json:"departurePort" yaml:"departure_port"`
	ATD           time.Time `json:"atd" yaml:"atd"`
	ReportedETA   time.Time `json:"reportedEta" yaml:"reported_eta" validate:"omitempty,gtfield=ATD"`
	Status        string    `json:"status" yaml:"status"`
	Speed         float32   `json:"speed" yaml:"speed" validate:"gte=0"`
	LoadCondition string    `json:"loadCondition" yaml:"load_condition"`

	// Updated is when the position was last reported; LastUpdated is
	// derived from it when a snapshot is taken.
	Updated     time.Time `json:"-" yaml:"-"`
	LastUpdated string    `json:"lastUpdated" yaml:"-"`
}

func (v VesselInfo) Pos() math.Point2LL {
	return math.LL(v.Lat, v.Lon)
}

func (v VesselInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", v.ID),
		slog.String("name", v.Name),
		slog.String("pos", v.Pos().DDString()),
		slog.Float64("course", float64(v.Course)),
		slog.String("heading", math.ShortCompass(v.Course)))
}

// UpdatedLabel returns a short description of how long ago t was.
func UpdatedLabel(t, now time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%d h ago", int(d/time.Hour))
	default:
		return fmt.Sprintf("%d d ago", int(d/(24*time.Hour)))
	}
}
