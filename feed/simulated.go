// feed/simulated.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/rand"
)

const DefaultInterval = 4 * time.Second

// StepFunc returns a vessel's next simulated position; it must only use r
// for randomness so that runs are reproducible from a seed.
type StepFunc func(r *rand.Rand, p math.Point2LL) math.Point2LL

// RandomWalk moves a position by up to 0.01 degrees in latitude and
// longitude.
func RandomWalk(r *rand.Rand, p math.Point2LL) math.Point2LL {
	return math.LL(
		math.Clamp(p.Latitude()+r.Range(-0.01, 0.01), -85, 85),
		math.Clamp(p.Longitude()+r.Range(-0.01, 0.01), -180, 180))
}

// Simulated is a Source that perturbs the current vessel positions on a
// fixed interval.
type Simulated struct {
	Interval time.Duration
	Step     StepFunc

	mu sync.Mutex
	r  *rand.Rand
	lg *log.Logger
}

// NewSimulated returns a random-walk source seeded with seed; a zero
// interval uses DefaultInterval.
func NewSimulated(seed int64, interval time.Duration, lg *log.Logger) *Simulated {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Simulated{
		Interval: interval,
		Step:     RandomWalk,
		r:        rand.MakeSeeded(seed),
		lg:       lg,
	}
}

// Tick advances each of the given positions by one step. A vessel's
// course is the heading from its old position to its new one, or is
// unchanged if it didn't move.
func (s *Simulated) Tick(ps []Position, now time.Time) []PositionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports := make([]PositionReport, 0, len(ps))
	for _, p := range ps {
		next := s.Step(s.r, p.Pos)
		course := p.Course
		if next != p.Pos {
			course = math.Heading2LL(p.Pos, next)
		}
		reports = append(reports, PositionReport{
			ID:     p.ID,
			Lat:    next.Latitude(),
			Lon:    next.Longitude(),
			Course: course,
			Speed:  p.Speed,
			Time:   now,
		})
	}
	return reports
}

func (s *Simulated) Run(ctx context.Context, current func() []Position, emit func([]PositionReport)) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.lg.Debug("simulated feed started", slog.Duration("interval", s.Interval))
	for {
		select {
		case <-ctx.Done():
			s.lg.Debug("simulated feed stopped")
			return ctx.Err()
		case now := <-ticker.C:
			reports := s.Tick(current(), now)
			// Cancellation may have raced with the tick.
			if ctx.Err() != nil {
				return ctx.Err()
			}
			emit(reports)
		}
	}
}
