// feed/feed_test.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/rand"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

func testPositions() []Position {
	return []Position{
		{ID: "v1", Pos: math.LL(51.95, 4.05), Course: 90, Speed: 12},
		{ID: "v2", Pos: math.LL(53.55, 9.95), Course: 270, Speed: 8},
	}
}

func TestSimulatedReproducible(t *testing.T) {
	a := NewSimulated(7, 0, nil)
	b := NewSimulated(7, 0, nil)
	now := time.Now()

	pa, pb := testPositions(), testPositions()
	for range 20 {
		ra, rb := a.Tick(pa, now), b.Tick(pb, now)
		for i := range ra {
			if ra[i] != rb[i] {
				t.Fatalf("same seed diverged: %+v vs %+v", ra[i], rb[i])
			}
			pa[i].Pos, pb[i].Pos = ra[i].Pos(), rb[i].Pos()
		}
	}

	if a.Interval != DefaultInterval {
		t.Errorf("interval %s, expected default %s", a.Interval, DefaultInterval)
	}
}

func TestSimulatedStep(t *testing.T) {
	s := NewSimulated(1, time.Second, nil)
	s.Step = func(r *rand.Rand, p math.Point2LL) math.Point2LL {
		return math.LL(p.Latitude()+0.01, p.Longitude())
	}

	reports := s.Tick(testPositions(), time.Now())
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	for i, r := range reports {
		if r.ID != testPositions()[i].ID {
			t.Errorf("report %d has id %q", i, r.ID)
		}
		if math.Abs(r.Course) > 0.5 && math.Abs(r.Course-360) > 0.5 {
			t.Errorf("moving north should give course ~0, got %f", r.Course)
		}
		if r.Speed != testPositions()[i].Speed {
			t.Errorf("speed not carried over")
		}
	}

	// Not moving keeps the course.
	s.Step = func(r *rand.Rand, p math.Point2LL) math.Point2LL { return p }
	if r := s.Tick(testPositions(), time.Now()); r[0].Course != 90 || r[1].Course != 270 {
		t.Errorf("stationary vessels changed course: %+v", r)
	}
}

func TestRandomWalkBounded(t *testing.T) {
	r := rand.MakeSeeded(99)
	p := math.LL(10, 10)
	for range 1000 {
		n := RandomWalk(r, p)
		if math.Abs(n.Latitude()-p.Latitude()) > 0.0100001 || math.Abs(n.Longitude()-p.Longitude()) > 0.0100001 {
			t.Fatalf("step too large: %v -> %v", p, n)
		}
		p = n
	}
}

func TestSimulatedRunStops(t *testing.T) {
	s := NewSimulated(3, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	ticks := 0
	done := make(chan error)
	go func() {
		done <- s.Run(ctx, testPositions, func([]PositionReport) {
			mu.Lock()
			ticks++
			mu.Unlock()
		})
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	mu.Lock()
	n := ticks
	mu.Unlock()
	if n == 0 {
		t.Errorf("no ticks delivered")
	}

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if ticks != n {
		t.Errorf("ticks delivered after Run returned")
	}
}

func TestDecodeFrame(t *testing.T) {
	one := `{"id":"v1","lat":51.9,"lon":4.1,"course":45}`
	rs, err := DecodeFrame(EncodingJSON, []byte(one))
	if err != nil || len(rs) != 1 || rs[0].ID != "v1" || rs[0].Course != 45 {
		t.Errorf("single JSON: %+v %v", rs, err)
	}

	rs, err = DecodeFrame(EncodingJSON, []byte(" ["+one+`,{"id":"v2","lat":1,"lon":2,"course":0}]`))
	if err != nil || len(rs) != 2 || rs[1].ID != "v2" {
		t.Errorf("JSON array: %+v %v", rs, err)
	}

	b, err := msgpack.Marshal([]PositionReport{{ID: "m1", Lat: 1, Lon: 2, Course: 3}})
	if err != nil {
		t.Fatal(err)
	}
	rs, err = DecodeFrame(EncodingMsgpack, b)
	if err != nil || len(rs) != 1 || rs[0].ID != "m1" || rs[0].Lon != 2 {
		t.Errorf("msgpack array: %+v %v", rs, err)
	}

	b, _ = msgpack.Marshal(PositionReport{ID: "m2", Lat: -3, Lon: 4, Course: 5})
	if rs, err = DecodeFrame(EncodingMsgpack, b); err != nil || len(rs) != 1 || rs[0].ID != "m2" {
		t.Errorf("msgpack single: %+v %v", rs, err)
	}

	for _, bad := range []string{`{"lat":1,"lon":2}`, `{"id":"x","lat":91,"lon":0}`,
		`{"id":"x","lat":0,"lon":0,"course":400}`, `nope`} {
		if _, err := DecodeFrame(EncodingJSON, []byte(bad)); err == nil {
			t.Errorf("%s: expected error", bad)
		}
	}
}

type fakeStream struct {
	frames [][]PositionReport
	closed bool
}

func (f *fakeStream) Next(ctx context.Context) ([]PositionReport, error) {
	if len(f.frames) == 0 {
		return nil, errors.New("eof")
	}
	r := f.frames[0]
	f.frames = f.frames[1:]
	return r, nil
}

func (f *fakeStream) Close() error { f.closed = true; return nil }

func TestLiveForwardsAndRedials(t *testing.T) {
	var mu sync.Mutex
	var streams []*fakeStream
	dial := func(ctx context.Context) (Stream, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(streams) == 1 {
			streams = append(streams, nil)
			return nil, errors.New("connection refused")
		}
		st := &fakeStream{frames: [][]PositionReport{
			{{ID: "v1", Lat: 1, Lon: 1}, {ID: "ghost", Lat: 2, Lon: 2}},
			{{ID: "ghost", Lat: 2, Lon: 2}},
		}}
		streams = append(streams, st)
		return st, nil
	}

	l := NewLive(dial, time.Millisecond, nil)
	l.Limiter = rate.NewLimiter(rate.Inf, 1)

	ctx, cancel := context.WithCancel(context.Background())
	got := make(chan []PositionReport, 16)
	done := make(chan error)
	go func() { done <- l.Run(ctx, testPositions, func(r []PositionReport) { got <- r }) }()

	for range 2 {
		select {
		case r := <-got:
			if len(r) != 1 || r[0].ID != "v1" {
				t.Errorf("expected only v1, got %+v", r)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for reports")
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(streams) < 3 || streams[1] != nil {
		t.Fatalf("expected a failed dial between two streams, got %d dials", len(streams))
	}
	if !streams[0].closed {
		t.Errorf("failed stream not closed")
	}
}

func TestWebSocketStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		js, _ := json.Marshal(PositionReport{ID: "v1", Lat: 51, Lon: 4, Course: 10})
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteMessage(websocket.TextMessage, js)
		mp, _ := msgpack.Marshal([]PositionReport{{ID: "v2", Lat: 53, Lon: 9, Course: 20}})
		conn.WriteMessage(websocket.BinaryMessage, mp)
		// Wait for the client to hang up.
		conn.ReadMessage()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx := context.Background()
	st, err := DialWebSocket(url, nil, nil)(ctx)
	if err != nil {
		t.Fatal(err)
	}

	r, err := st.Next(ctx)
	if err != nil || len(r) != 1 || r[0].ID != "v1" {
		t.Errorf("text frame: %+v %v", r, err)
	}
	r, err = st.Next(ctx)
	if err != nil || len(r) != 1 || r[0].ID != "v2" {
		t.Errorf("binary frame: %+v %v", r, err)
	}

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	if _, err := st.Next(cctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after cancel, got %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

type fakeMessage struct {
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return "harborline/positions" }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTStreamMessages(t *testing.T) {
	s := newMQTTStream("harborline/positions", nil)

	s.onMessage(nil, fakeMessage{payload: []byte("not json")})
	s.onMessage(nil, fakeMessage{payload: []byte(`[{"id":"v1","lat":1,"lon":2,"course":3}]`)})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r, err := s.Next(ctx)
	if err != nil || len(r) != 1 || r[0].ID != "v1" {
		t.Errorf("got %+v %v", r, err)
	}

	// A full queue drops rather than blocks.
	for range cap(s.ch) + 10 {
		s.onMessage(nil, fakeMessage{payload: []byte(`{"id":"v1","lat":1,"lon":2,"course":3}`)})
	}

	s.Close()
	s.Close()
	s.onMessage(nil, fakeMessage{payload: []byte(`{"id":"v1","lat":1,"lon":2,"course":3}`)})
	for {
		if _, err := s.Next(ctx); errors.Is(err, ErrClosed) {
			break
		} else if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}
}
