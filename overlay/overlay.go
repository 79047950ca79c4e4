// overlay/overlay.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package overlay implements the vessel overlay: it follows marker
// selections on a vesselmap.Adapter, keeps the info panel positioned next
// to the selected vessel, and carries out the panel's intents.
package overlay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harborline/harborline/fleet"
	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/panel"
	"github.com/harborline/harborline/vesselmap"
)

const (
	// PanelOffset is the distance in pixels between a vessel's marker and
	// the floating panel.
	PanelOffset = 16

	ProgressInterval = 60 * time.Second
)

type State int

const (
	Idle State = iota
	Selected
)

func (s State) String() string {
	if s == Selected {
		return "selected"
	}
	return "idle"
}

type Options struct {
	// OnRender is called with the panel after every change, or with nil
	// when the panel closes.
	OnRender func(*panel.View)
	// OnNavigate is called with the path of the details page.
	OnNavigate func(path string)
	// Now returns the current time; it defaults to time.Now.
	Now func() time.Time
	// ProgressInterval is how often voyage progress is recomputed while a
	// vessel is selected; it defaults to ProgressInterval.
	ProgressInterval time.Duration
	// PreferredSide is where the floating panel goes if it fits.
	PreferredSide math.Side
}

// Controller is safe for concurrent use; OnRender and OnNavigate are
// called without its lock held.
type Controller struct {
	mu        sync.Mutex
	state     State
	vessel    vesselmap.VesselInfo
	placement math.Placement
	progress  panel.Progress
	focus     bool
	trackOn   bool
	trackPct  float32
	routeOn   bool
	routeNM   float32
	hasRoute  bool
	destroyed bool

	tickDone chan struct{}
	tickWg   sync.WaitGroup

	a     *vesselmap.Adapter
	fleet *fleet.Set
	mode  *ModeSignal
	subs  []*maplib.Subscription
	opts  Options
	lg    *log.Logger
}

func New(a *vesselmap.Adapter, fs *fleet.Set, mode *ModeSignal, opts Options, lg *log.Logger) *Controller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = ProgressInterval
	}
	c := &Controller{
		a:        a,
		fleet:    fs,
		mode:     mode,
		trackPct: 100,
		opts:     opts,
		lg:       lg,
	}
	c.subs = []*maplib.Subscription{
		a.OnMarkerSelect(c.selectVessel),
		a.OnMapClick(c.mapClicked),
		a.OnMove(func(maplib.Viewport) { c.reposition() }),
		a.OnUpdate(c.vesselsUpdated),
		mode.Subscribe(func(panel.Mode) { c.reposition() }),
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SelectedID returns the id of the selected vessel, if any.
func (c *Controller) SelectedID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vessel.ID, c.state == Selected
}

// View returns the panel for the current selection; ok is false when no
// vessel is selected. Its focus request is only delivered to OnRender.
func (c *Controller) View() (v panel.View, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Selected {
		return panel.View{}, false
	}
	v = c.viewLocked()
	v.RequestFocus = false
	return v, true
}

func (c *Controller) viewLocked() panel.View {
	return panel.Build(c.vessel, panel.State{
		InFleet:   c.fleet != nil && c.fleet.Contains(c.vessel.ID),
		TrackOn:   c.trackOn,
		RouteOn:   c.routeOn,
		RouteNM:   c.routeNM,
		HasRoute:  c.hasRoute,
		Progress:  c.progress,
		Mode:      c.mode.Mode(),
		Placement: c.placement,
		Focus:     c.focus,
	})
}

// render calls OnRender with the current panel; the first render after a
// selection requests focus. It must be called without c.mu held.
func (c *Controller) render() {
	c.mu.Lock()
	selected := c.state == Selected
	var v panel.View
	if selected {
		v = c.viewLocked()
		c.focus = false
	}
	c.mu.Unlock()

	if c.opts.OnRender == nil {
		return
	}
	if selected {
		c.opts.OnRender(&v)
	} else {
		c.opts.OnRender(nil)
	}
}

// placeLocked computes where the panel goes for the selected vessel's
// current position.
func (c *Controller) placeLocked() {
	size := c.a.ViewSize()
	if c.mode.Mode() == panel.Sheet {
		c.placement = math.Placement{
			Left: math.PanelMargin,
			Top:  max(math.PanelMargin, size[1]-panel.Size[1]-math.PanelMargin),
			Side: math.SideBottom,
		}
		return
	}
	anchor := c.a.Project(c.vessel.Lat, c.vessel.Lon)
	c.placement = math.ComputeAnchoredPosition(anchor, panel.Size, size, c.opts.PreferredSide, PanelOffset)
}

func (c *Controller) selectVessel(v vesselmap.VesselInfo) {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}

	if c.state == Selected && c.vessel.ID != v.ID {
		c.a.HighlightMarker(c.vessel.ID, false)
		if c.trackOn {
			c.a.ClearPastTrack(c.vessel.ID)
			c.trackOn = false
		}
	}
	if c.state == Idle {
		c.startTickerLocked()
	}

	c.state = Selected
	c.vessel = v
	c.focus = true
	c.a.HighlightMarker(v.ID, true)
	c.progress = VoyageProgress(v.ATD, v.ReportedETA, c.opts.Now())
	c.placeLocked()
	c.mu.Unlock()

	c.lg.Debug("vessel selected", slog.Any("vessel", v))
	c.render()
}

// Close returns to Idle, leaving the adapter with no highlight, track, or
// route tool.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state != Selected {
		c.mu.Unlock()
		return
	}
	c.closeLocked()
	c.mu.Unlock()

	c.render()
}

func (c *Controller) closeLocked() {
	c.a.HighlightMarker(c.vessel.ID, false)
	c.a.ClearPastTrack(c.vessel.ID)
	if c.routeOn {
		c.a.DisableRouteTool()
	}
	c.stopTickerLocked()

	c.state = Idle
	c.vessel = vesselmap.VesselInfo{}
	c.trackOn, c.routeOn, c.hasRoute, c.focus = false, false, false, false
	c.routeNM = 0
	c.progress = panel.Progress{}
	c.lg.Debug("selection closed")
}

// mapClicked closes the panel for clicks elsewhere on the map; while the
// route tool is on, map clicks are measurements instead.
func (c *Controller) mapClicked(maplib.ClickEvent) {
	c.mu.Lock()
	measuring := c.routeOn
	c.mu.Unlock()

	if !measuring {
		c.Close()
	}
}

func (c *Controller) reposition() {
	c.mu.Lock()
	if c.state != Selected {
		c.mu.Unlock()
		return
	}
	c.placeLocked()
	c.mu.Unlock()

	c.render()
}

// vesselsUpdated refreshes the selected vessel's snapshot; if it is gone,
// the selection closes.
func (c *Controller) vesselsUpdated() {
	c.mu.Lock()
	if c.state != Selected {
		c.mu.Unlock()
		return
	}
	v, ok := c.a.Vessel(c.vessel.ID)
	if !ok {
		c.closeLocked()
	} else {
		c.vessel = v
		c.placeLocked()
		if c.trackOn {
			// Drawn once there are two points, then kept current.
			c.a.DrawPastTrack(v.ID, c.trackPct)
		}
	}
	c.mu.Unlock()

	c.render()
}

///////////////////////////////////////////////////////////////////////////
// Intents

// HandleIntent carries out a panel intent for the selected vessel. It
// returns an error only if updating the fleet fails.
func (c *Controller) HandleIntent(in panel.Intent) error {
	c.mu.Lock()
	if c.state != Selected {
		c.mu.Unlock()
		return nil
	}
	id := c.vessel.ID

	var err error
	var navigate string
	switch in {
	case panel.IntentClose:
		c.closeLocked()

	case panel.IntentToggleFleet:
		if c.fleet != nil {
			_, err = c.fleet.Toggle(id)
		}

	case panel.IntentToggleTrack:
		if c.trackOn {
			c.a.ClearPastTrack(id)
		} else {
			c.a.DrawPastTrack(id, c.trackPct)
		}
		c.trackOn = !c.trackOn

	case panel.IntentToggleRoute:
		if c.routeOn {
			c.a.DisableRouteTool()
		} else {
			c.a.EnableRouteTool(c.routeDistance)
		}
		c.routeOn = !c.routeOn
		c.hasRoute, c.routeNM = false, 0

	case panel.IntentDetails:
		navigate = DetailsPath(id)
	}
	c.mu.Unlock()

	c.lg.Debug("panel intent", slog.String("intent", in.String()), slog.String("id", id))
	if navigate != "" && c.opts.OnNavigate != nil {
		c.opts.OnNavigate(navigate)
	}
	c.render()
	return err
}

// SetTrackPercent sets how much of the history the past track covers and
// redraws it if it is shown.
func (c *Controller) SetTrackPercent(pct float32) {
	c.mu.Lock()
	c.trackPct = math.Clamp(pct, 0, 100)
	if c.state == Selected && c.trackOn {
		c.a.DrawPastTrack(c.vessel.ID, c.trackPct)
	}
	c.mu.Unlock()
}

func (c *Controller) routeDistance(nm float32, ok bool) {
	c.mu.Lock()
	if !c.routeOn {
		c.mu.Unlock()
		return
	}
	c.routeNM, c.hasRoute = nm, ok
	c.mu.Unlock()

	c.render()
}

///////////////////////////////////////////////////////////////////////////
// Progress ticker

func (c *Controller) startTickerLocked() {
	done := make(chan struct{})
	c.tickDone = done

	c.tickWg.Add(1)
	go func() {
		defer c.tickWg.Done()

		t := time.NewTicker(c.opts.ProgressInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				c.refreshProgress(done)
			}
		}
	}()
}

// stopTickerLocked stops the ticker without waiting for it; the ticker
// goroutine may be blocked on c.mu.
func (c *Controller) stopTickerLocked() {
	if c.tickDone != nil {
		close(c.tickDone)
		c.tickDone = nil
	}
}

func (c *Controller) refreshProgress(done chan struct{}) {
	c.mu.Lock()
	// A stale ticker for an earlier selection does nothing.
	if c.tickDone != done || c.state != Selected {
		c.mu.Unlock()
		return
	}
	c.progress = VoyageProgress(c.vessel.ATD, c.vessel.ReportedETA, c.opts.Now())
	c.mu.Unlock()

	c.render()
}

// Destroy closes any selection, stops the progress ticker, and
// unsubscribes from the adapter.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	if c.state == Selected {
		c.closeLocked()
	}
	c.stopTickerLocked()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	c.tickWg.Wait()
}
