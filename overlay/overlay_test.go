// overlay/overlay_test.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package overlay

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harborline/harborline/feed"
	"github.com/harborline/harborline/fleet"
	"github.com/harborline/harborline/kv"
	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/panel"
	"github.com/harborline/harborline/vesselmap"
)

func TestVoyageProgress(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	p := VoyageProgress(now.Add(-time.Hour), now.Add(time.Hour), now)
	if !p.Known || p.Percent != 50 {
		t.Errorf("expected 50%%, got %+v", p)
	}
	if strings.Contains(p.Label, "Arrived") || !(strings.Contains(p.Label, "h") || strings.Contains(p.Label, "m")) {
		t.Errorf("label %q", p.Label)
	}
	if p.Label != "50%, 1h 0m left" {
		t.Errorf("label %q", p.Label)
	}

	for _, eta := range []time.Time{now, now.Add(-time.Minute)} {
		if p := VoyageProgress(now.Add(-time.Hour), eta, now); p.Label != "Arrived" || p.Percent != 100 {
			t.Errorf("eta %s: got %+v", eta, p)
		}
	}

	// Before departure clamps to zero.
	if p := VoyageProgress(now.Add(time.Hour), now.Add(2*time.Hour), now); p.Percent != 0 || !p.Known {
		t.Errorf("before departure: %+v", p)
	}

	// A passed ETA has arrived even without a usable ATD.
	for _, c := range [][2]time.Time{{{}, now.Add(-time.Hour)}, {now.Add(-time.Hour), now.Add(-2 * time.Hour)}, {now, now}} {
		if p := VoyageProgress(c[0], c[1], now); p.Label != "Arrived" || p.Percent != 100 || !p.Known {
			t.Errorf("%v: expected Arrived, got %+v", c, p)
		}
	}

	later := now.Add(time.Hour)
	for _, c := range [][2]time.Time{{{}, later}, {now, {}}, {later, later}, {later.Add(time.Hour), later}} {
		if p := VoyageProgress(c[0], c[1], now); p.Known {
			t.Errorf("%v: expected unknown progress, got %+v", c, p)
		}
	}
}

func TestFormatRemaining(t *testing.T) {
	for _, c := range []struct {
		d      time.Duration
		expect string
	}{
		{30 * time.Second, "1m left"},
		{59 * time.Minute, "59m left"},
		{time.Hour, "1h 0m left"},
		{3*time.Hour + 25*time.Minute, "3h 25m left"},
		{24 * time.Hour, "1d 0h left"},
		{50*time.Hour + 10*time.Minute, "2d 2h left"},
	} {
		if s := FormatRemaining(c.d); s != c.expect {
			t.Errorf("%s: got %q, expected %q", c.d, s, c.expect)
		}
	}
}

func TestDetailsPath(t *testing.T) {
	if p := DetailsPath("imo-9321483"); p != "/vessels/imo-9321483" {
		t.Errorf("got %q", p)
	}
	if p := DetailsPath("a b/c"); p != "/vessels/a%20b%2Fc" {
		t.Errorf("got %q", p)
	}
}

func TestModeSignal(t *testing.T) {
	if ModeForWidth(640) != panel.Sheet || ModeForWidth(641) != panel.Floating {
		t.Errorf("breakpoint misplaced")
	}

	s := NewModeSignal(1024)
	var got []panel.Mode
	sub := s.Subscribe(func(m panel.Mode) { got = append(got, m) })

	s.SetWidth(900)
	s.SetWidth(600)
	s.SetWidth(320)
	s.SetWidth(800)
	sub.Unsubscribe()
	s.SetWidth(100)

	if len(got) != 2 || got[0] != panel.Sheet || got[1] != panel.Floating {
		t.Errorf("notifications %v", got)
	}
	if s.Mode() != panel.Sheet {
		t.Errorf("mode %s", s.Mode())
	}
}

type fixture struct {
	m      *maplib.Map
	a      *vesselmap.Adapter
	fleet  *fleet.Set
	mode   *ModeSignal
	c      *Controller
	mu     sync.Mutex
	views  []*panel.View
	navs   []string
	nowVal time.Time
}

func (f *fixture) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nowVal
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nowVal = f.nowVal.Add(d)
}

func (f *fixture) lastView() *panel.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.views) == 0 {
		return nil
	}
	return f.views[len(f.views)-1]
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	f := &fixture{nowVal: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.m = maplib.New(maplib.NewViewport(math.LL(52, 5), 6, [2]float32{1024, 768}), nil)
	f.a = vesselmap.New(f.m, vesselmap.Options{Now: f.now}, nil)
	f.a.SetVessels([]vesselmap.VesselInfo{
		{ID: "v1", Name: "Nordic Star", Lat: 51.95, Lon: 4.05, Course: 90,
			ATD: f.nowVal.Add(-time.Hour), ReportedETA: f.nowVal.Add(time.Hour)},
		{ID: "v2", Name: "Baltic Dawn", Lat: 53.54, Lon: 9.93, Course: 270},
	})
	f.fleet = fleet.New(kv.NewMemoryStore(), nil)
	f.mode = NewModeSignal(1024)

	opts.Now = f.now
	opts.OnRender = func(v *panel.View) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.views = append(f.views, v)
	}
	opts.OnNavigate = func(p string) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.navs = append(f.navs, p)
	}
	f.c = New(f.a, f.fleet, f.mode, opts, nil)
	t.Cleanup(func() {
		f.c.Destroy()
		f.a.Destroy()
	})
	return f
}

func (f *fixture) clickVessel(lat, lon float32) {
	f.m.Click(f.a.Project(lat, lon))
}

func insideContainer(pl math.Placement, size [2]float32) bool {
	return pl.Left >= math.PanelMargin && pl.Left+panel.Size[0] <= size[0]-math.PanelMargin &&
		pl.Top >= math.PanelMargin && pl.Top+panel.Size[1] <= size[1]-math.PanelMargin
}

func TestSelectAndClose(t *testing.T) {
	f := newFixture(t, Options{})

	if _, ok := f.c.View(); ok || f.c.State() != Idle {
		t.Fatalf("expected idle")
	}

	f.clickVessel(51.95, 4.05)
	if f.c.State() != Selected || f.a.Highlighted() != "v1" {
		t.Fatalf("state %s highlighted %q", f.c.State(), f.a.Highlighted())
	}
	v := f.lastView()
	if v == nil || v.VesselID != "v1" || !v.RequestFocus {
		t.Fatalf("rendered %+v", v)
	}
	if !insideContainer(v.Placement, f.a.ViewSize()) {
		t.Errorf("placement %+v outside container", v.Placement)
	}
	if !v.Progress.Known || v.Progress.Percent != 50 {
		t.Errorf("progress %+v", v.Progress)
	}
	if pv, _ := f.c.View(); pv.RequestFocus {
		t.Errorf("focus requested twice")
	}

	// Selecting another vessel moves the highlight.
	f.c.HandleIntent(panel.IntentToggleTrack)
	f.clickVessel(53.54, 9.93)
	if id, _ := f.c.SelectedID(); id != "v2" || f.a.Highlighted() != "v2" {
		t.Errorf("selected %q highlighted %q", id, f.a.Highlighted())
	}
	if f.a.HasPastTrack("v1") {
		t.Errorf("previous vessel's track left drawn")
	}
	highlighted := 0
	f.m.View(func(_ maplib.Viewport, layers []maplib.Layer) {
		for _, l := range layers {
			if mk, ok := l.(*maplib.Marker); ok && mk.Icon.Selected {
				highlighted++
			}
		}
	})
	if highlighted != 1 {
		t.Errorf("%d highlighted markers", highlighted)
	}

	// Turn on the track and route tool, then click elsewhere.
	f.c.HandleIntent(panel.IntentToggleTrack)
	f.c.HandleIntent(panel.IntentToggleRoute)
	f.c.HandleIntent(panel.IntentToggleRoute)
	if f.a.RouteToolEnabled() {
		t.Errorf("route tool not toggled off")
	}
	f.c.HandleIntent(panel.IntentToggleRoute)
	if !f.a.RouteToolEnabled() {
		t.Errorf("route tool not on")
	}

	// With the route tool on, map clicks measure.
	f.m.Click([2]float32{5, 5})
	if f.c.State() != Selected {
		t.Errorf("map click closed the panel while measuring")
	}
	f.m.Click([2]float32{50, 700})
	if v := f.lastView(); v == nil || !strings.HasSuffix(v.Route, "nm") {
		t.Errorf("route distance not shown: %+v", v)
	}

	f.c.Close()
	if f.c.State() != Idle || f.a.Highlighted() != "" || f.a.HasPastTrack("v2") || f.a.RouteToolEnabled() {
		t.Errorf("adapter not clean after close")
	}
	if v := f.lastView(); v != nil {
		t.Errorf("expected nil render after close")
	}
}

func TestClickOutsideCloses(t *testing.T) {
	f := newFixture(t, Options{})
	f.clickVessel(51.95, 4.05)
	f.c.HandleIntent(panel.IntentToggleTrack)

	f.m.Click([2]float32{1000, 20})
	if f.c.State() != Idle || f.a.Highlighted() != "" || f.a.HasPastTrack("v1") {
		t.Errorf("click outside didn't close cleanly")
	}
}

func TestRepositionOnMove(t *testing.T) {
	f := newFixture(t, Options{})
	f.clickVessel(51.95, 4.05)
	before := f.lastView().Placement

	f.m.Pan([2]float32{200, 0})
	after := f.lastView().Placement
	if after == before {
		t.Errorf("placement unchanged after pan")
	}
	anchor := f.a.Project(51.95, 4.05)
	expect := math.ComputeAnchoredPosition(anchor, panel.Size, f.a.ViewSize(), math.SideRight, PanelOffset)
	if after != expect {
		t.Errorf("placement %+v, expected %+v", after, expect)
	}

	// Narrow viewports use the sheet.
	f.m.Resize([2]float32{600, 800})
	f.mode.SetWidth(600)
	v := f.lastView()
	if v.Mode != panel.Sheet || v.Placement.Side != math.SideBottom {
		t.Errorf("expected sheet placement, got %s %+v", v.Mode, v.Placement)
	}
	if !insideContainer(v.Placement, [2]float32{600, 800}) {
		t.Errorf("sheet placement %+v outside container", v.Placement)
	}

	f.c.Close()
	n := len(f.views)
	f.m.Pan([2]float32{10, 10})
	if len(f.views) != n {
		t.Errorf("rendered while idle")
	}
}

func TestIntents(t *testing.T) {
	f := newFixture(t, Options{})
	f.clickVessel(51.95, 4.05)

	if err := f.c.HandleIntent(panel.IntentToggleFleet); err != nil {
		t.Fatal(err)
	}
	if !f.fleet.Contains("v1") || !f.lastView().Buttons[0].Active {
		t.Errorf("v1 not added to fleet")
	}
	f.c.HandleIntent(panel.IntentToggleFleet)
	if f.fleet.Contains("v1") {
		t.Errorf("v1 not removed from fleet")
	}

	f.c.HandleIntent(panel.IntentDetails)
	if len(f.navs) != 1 || f.navs[0] != "/vessels/v1" {
		t.Errorf("navigation %v", f.navs)
	}

	f.c.HandleIntent(panel.IntentClose)
	if f.c.State() != Idle {
		t.Errorf("close intent ignored")
	}
	if err := f.c.HandleIntent(panel.IntentToggleFleet); err != nil || f.fleet.Contains("v1") {
		t.Errorf("intent acted while idle")
	}
}

func TestVesselRemovedCloses(t *testing.T) {
	f := newFixture(t, Options{})
	f.clickVessel(51.95, 4.05)

	f.a.SetVessels([]vesselmap.VesselInfo{{ID: "v9", Name: "Other", Lat: 52, Lon: 5}})
	if f.c.State() != Idle {
		t.Errorf("selection survived removal of its vessel")
	}
}

func TestProgressTicker(t *testing.T) {
	f := newFixture(t, Options{ProgressInterval: 5 * time.Millisecond})
	f.clickVessel(51.95, 4.05)

	f.advance(2 * time.Hour)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if v := f.lastView(); v != nil && v.Progress.Label == "Arrived" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("progress never refreshed")
		}
		time.Sleep(2 * time.Millisecond)
	}

	f.c.Destroy()
	f.mu.Lock()
	n := len(f.views)
	f.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.views) != n {
		t.Errorf("rendered after destroy")
	}
}

func TestFocusRequestedOnce(t *testing.T) {
	f := newFixture(t, Options{})

	// Polling the panel doesn't use up the focus request.
	f.c.View()
	f.c.View()
	f.clickVessel(51.95, 4.05)

	if v := f.lastView(); v == nil || !v.RequestFocus {
		t.Fatalf("first render %+v didn't request focus", v)
	}
	if v, _ := f.c.View(); v.RequestFocus {
		t.Errorf("View requested focus")
	}

	f.m.Pan([2]float32{10, 0})
	if v := f.lastView(); v == nil || v.RequestFocus {
		t.Errorf("render after move requested focus again: %+v", v)
	}
}

// stepSource emits one batch of reports per call to step.
type stepSource struct {
	batches chan []feed.PositionReport
	applied chan struct{}
}

func (s *stepSource) Run(ctx context.Context, current func() []feed.Position, emit func([]feed.PositionReport)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b := <-s.batches:
			emit(b)
			s.applied <- struct{}{}
		}
	}
}

func (s *stepSource) step(b ...feed.PositionReport) {
	s.batches <- b
	<-s.applied
}

func TestTrackFollowsHistory(t *testing.T) {
	src := &stepSource{batches: make(chan []feed.PositionReport), applied: make(chan struct{})}
	m := maplib.New(maplib.NewViewport(math.LL(52, 5), 6, [2]float32{1024, 768}), nil)
	a := vesselmap.New(m, vesselmap.Options{Source: src}, nil)
	a.SetVessels([]vesselmap.VesselInfo{{ID: "v1", Name: "Nordic Star", Lat: 51.95, Lon: 4.05}})
	c := New(a, nil, NewModeSignal(1024), Options{}, nil)
	t.Cleanup(func() {
		c.Destroy()
		a.Destroy()
	})

	trackPoints := func() int {
		n := -1
		m.View(func(_ maplib.Viewport, layers []maplib.Layer) {
			for _, l := range layers {
				if pl, ok := l.(*maplib.Polyline); ok && !pl.Dashed {
					n = len(pl.Points)
				}
			}
		})
		return n
	}

	a.SelectVessel("v1")
	c.HandleIntent(panel.IntentToggleTrack)
	if a.HasPastTrack("v1") {
		t.Fatalf("track drawn from a single position")
	}

	src.step(feed.PositionReport{ID: "v1", Lat: 51.96, Lon: 4.06})
	if !a.HasPastTrack("v1") {
		t.Fatalf("track not drawn once two positions were known")
	}
	if n := trackPoints(); n != 2 {
		t.Errorf("track has %d points, expected 2", n)
	}

	src.step(feed.PositionReport{ID: "v1", Lat: 51.97, Lon: 4.07})
	if n := trackPoints(); n != 3 {
		t.Errorf("track has %d points after another report, expected 3", n)
	}
	if v, ok := c.View(); !ok || !v.Buttons[1].Active {
		t.Errorf("track button not active")
	}

	c.HandleIntent(panel.IntentToggleTrack)
	src.step(feed.PositionReport{ID: "v1", Lat: 51.98, Lon: 4.08})
	if a.HasPastTrack("v1") {
		t.Errorf("track redrawn after being turned off")
	}
}
