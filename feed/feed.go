// feed/feed.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package feed provides sources of vessel position updates: a simulated
// random walk and live streams delivered over a websocket or MQTT.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborline/harborline/math"

	"github.com/vmihailenco/msgpack/v5"
)

var ErrClosed = errors.New("feed: stream closed")

// PositionReport is a single vessel position update.
type PositionReport struct {
	ID     string    `json:"id" msgpack:"id"`
	Lat    float32   `json:"lat" msgpack:"lat"`
	Lon    float32   `json:"lon" msgpack:"lon"`
	Course float32   `json:"course" msgpack:"course"`
	Speed  float32   `json:"speed,omitempty" msgpack:"speed,omitempty"`
	Time   time.Time `json:"time,omitzero" msgpack:"time,omitempty"`
}

func (r PositionReport) Pos() math.Point2LL {
	return math.LL(r.Lat, r.Lon)
}

func (r PositionReport) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", r.ID),
		slog.String("pos", r.Pos().DDString()),
		slog.Float64("course", float64(r.Course)))
}

// Position is the current state of a vessel that a Source steps from.
type Position struct {
	ID     string
	Pos    math.Point2LL
	Course float32
	Speed  float32
}

// Source delivers position reports until its context is canceled. Run
// calls current to get the positions of the vessels being tracked
// whenever it needs them and passes each batch of updates to emit; emit
// is never called after Run returns.
type Source interface {
	Run(ctx context.Context, current func() []Position, emit func([]PositionReport)) error
}

// Frame encodings used by live streams.
type Encoding int

const (
	EncodingJSON Encoding = iota
	EncodingMsgpack
)

// DecodeFrame decodes a frame holding either a single PositionReport or
// an array of them.
func DecodeFrame(enc Encoding, b []byte) ([]PositionReport, error) {
	switch enc {
	case EncodingJSON:
		b = bytes.TrimSpace(b)
		if len(b) > 0 && b[0] == '[' {
			var rs []PositionReport
			if err := json.Unmarshal(b, &rs); err != nil {
				return nil, err
			}
			return validReports(rs)
		}
		var r PositionReport
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return validReports([]PositionReport{r})

	case EncodingMsgpack:
		var v any
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		if _, ok := v.([]any); ok {
			var rs []PositionReport
			if err := msgpack.Unmarshal(b, &rs); err != nil {
				return nil, err
			}
			return validReports(rs)
		}
		var r PositionReport
		if err := msgpack.Unmarshal(b, &r); err != nil {
			return nil, err
		}
		return validReports([]PositionReport{r})

	default:
		return nil, fmt.Errorf("%d: unknown frame encoding", enc)
	}
}

func validReports(rs []PositionReport) ([]PositionReport, error) {
	for _, r := range rs {
		if r.ID == "" {
			return nil, errors.New("position report without id")
		}
		if r.Lat < -90 || r.Lat > 90 || r.Lon < -180 || r.Lon > 180 {
			return nil, fmt.Errorf("%s: position %f,%f out of range", r.ID, r.Lat, r.Lon)
		}
		if r.Course < 0 || r.Course > 360 {
			return nil, fmt.Errorf("%s: course %f out of range", r.ID, r.Course)
		}
	}
	return rs, nil
}
