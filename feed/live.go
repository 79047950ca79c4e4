// feed/live.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/util"

	"golang.org/x/time/rate"
)

// Stream is a connection to a live position feed.
type Stream interface {
	// Next blocks until the next batch of reports arrives, ctx is
	// canceled, or the stream fails. It returns ErrClosed after Close.
	Next(ctx context.Context) ([]PositionReport, error)
	Close() error
}

// Dialer opens a new Stream.
type Dialer func(ctx context.Context) (Stream, error)

// Live is a Source that forwards reports from a Stream, redialing when
// the stream fails. Redials are paced by a token-bucket limiter so that a
// feed that is down isn't hammered.
type Live struct {
	Dial    Dialer
	Limiter *rate.Limiter
	lg      *log.Logger
}

// NewLive returns a Live source that redials at most once every
// reconnect interval after an initial burst of three attempts.
func NewLive(dial Dialer, reconnect time.Duration, lg *log.Logger) *Live {
	return &Live{
		Dial:    dial,
		Limiter: rate.NewLimiter(rate.Every(reconnect), 3),
		lg:      lg,
	}
}

// Run forwards reports for the vessels returned by current; reports for
// other ids are dropped.
func (l *Live) Run(ctx context.Context, current func() []Position, emit func([]PositionReport)) error {
	for {
		if err := l.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		st, err := l.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.lg.Warn("unable to connect to live feed", slog.Any("error", err))
			continue
		}
		l.lg.Info("live feed connected")

		err = l.forward(ctx, st, current, emit)
		st.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.lg.Warn("live feed lost; reconnecting", slog.Any("error", err))
	}
}

func (l *Live) forward(ctx context.Context, st Stream, current func() []Position, emit func([]PositionReport)) error {
	for {
		reports, err := st.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) && ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		known := make(map[string]bool)
		for _, p := range current() {
			known[p.ID] = true
		}
		keep := util.FilterSlice(reports, func(r PositionReport) bool {
			if !known[r.ID] {
				l.lg.Debug("report for unknown vessel", slog.Any("report", r))
			}
			return known[r.ID]
		})

		if len(keep) > 0 && ctx.Err() == nil {
			emit(keep)
		}
	}
}
