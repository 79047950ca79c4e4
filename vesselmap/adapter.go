// vesselmap/adapter.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package vesselmap puts a fleet of moving vessels on a maplib.Map: it
// owns their markers and position history, keeps them moving from a
// feed.Source, and provides the basemap, overlay layer, past track, and
// route measuring operations used by the vessel overlay.
package vesselmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/harborline/harborline/feed"
	"github.com/harborline/harborline/kv"
	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/util"

	"github.com/brunoga/deep"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ErrUnknownBasemap = errors.New("unknown basemap")
	ErrUnknownLayer   = errors.New("unknown layer")
)

const (
	// HistoryLength is the number of past positions kept per vessel.
	HistoryLength = 150

	// FitPadding is the margin in pixels left around the markers by
	// FitToVisible.
	FitPadding = 40
)

type marker struct {
	layer   *maplib.Marker
	history *util.RingBuffer[math.Point2LL]
}

type Options struct {
	// Store holds the basemap and layer preferences; if nil, preferences
	// aren't persisted.
	Store kv.Store
	// Source moves the vessels; if nil, they stay where they are.
	Source feed.Source
	// Registerer is where metrics are registered; nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
	// Now returns the current time; it defaults to time.Now.
	Now func() time.Time
}

// Adapter is safe for concurrent use. Handlers registered with it are
// called without its lock held.
type Adapter struct {
	// feedMu serializes starting and stopping the feed; it is held while
	// waiting for a running feed to exit, which needs mu.
	feedMu   sync.Mutex
	cancel   context.CancelFunc
	feedDone chan struct{}

	mu          sync.Mutex
	m           *maplib.Map
	vessels     []VesselInfo
	index       map[string]int
	markers     map[string]*marker
	tracks      map[string]*maplib.Polyline
	highlighted string
	route       routeTool
	basemap     string
	baseLayer   *maplib.TileLayer
	overlays    map[string]*maplib.Group
	generation  int
	destroyed   bool

	selectHandlers map[int]func(VesselInfo)
	updateHandlers map[int]func()
	nextHandler    int
	mapSubs        []*maplib.Subscription

	source  feed.Source
	prefs   kv.Prefs
	persist bool
	now     func() time.Time
	metrics *metrics
	lg      *log.Logger
}

// New returns an Adapter for m with the basemap and overlay layers
// restored from the preferences in opts.Store.
func New(m *maplib.Map, opts Options, lg *log.Logger) *Adapter {
	a := &Adapter{
		m:              m,
		index:          make(map[string]int),
		markers:        make(map[string]*marker),
		tracks:         make(map[string]*maplib.Polyline),
		overlays:       make(map[string]*maplib.Group),
		selectHandlers: make(map[int]func(VesselInfo)),
		updateHandlers: make(map[int]func()),
		source:         opts.Source,
		now:            opts.Now,
		metrics:        newMetrics(opts.Registerer),
		lg:             lg,
	}
	if a.now == nil {
		a.now = time.Now
	}
	if opts.Store != nil {
		a.prefs = kv.Prefs{Store: opts.Store, Lg: lg}
		a.persist = true
	}

	style := DefaultBasemap
	if a.persist {
		style = a.prefs.Basemap(DefaultBasemap)
	}
	if err := a.SetBasemap(style); err != nil {
		lg.Warn("ignoring stored basemap", slog.String("style", style), slog.Any("error", err))
		a.SetBasemap(DefaultBasemap)
	}
	if a.persist {
		for _, name := range LayerNames {
			if a.prefs.LayerVisible(name) {
				a.ToggleLayer(name, true)
			}
		}
	}

	a.mapSubs = append(a.mapSubs, m.OnMarkerClick(a.markerClicked))
	return a
}

// Map returns the underlying map.
func (a *Adapter) Map() *maplib.Map {
	return a.m
}

///////////////////////////////////////////////////////////////////////////
// Vessels and the feed

// SetVessels replaces all of the vessels on the map. Markers, tracks,
// the route overlay, and the highlight are cleared, and the feed is
// restarted for the new vessels; the previous feed has stopped before
// any markers are removed.
func (a *Adapter) SetVessels(list []VesselInfo) {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()

	a.stopFeed()

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		a.lg.Debug("SetVessels after Destroy")
		return
	}

	a.clearLocked()

	now := a.now()
	a.vessels = make([]VesselInfo, 0, len(list))
	for _, v := range list {
		if _, ok := a.index[v.ID]; ok {
			a.lg.Warn("duplicate vessel id; keeping the first", slog.String("id", v.ID))
			continue
		}
		if v.Updated.IsZero() {
			v.Updated = now
		}
		a.index[v.ID] = len(a.vessels)
		a.vessels = append(a.vessels, v)

		mk := &marker{
			layer:   maplib.NewMarker(v.ID, v.Pos(), vesselIcon),
			history: util.NewRingBuffer[math.Point2LL](HistoryLength),
		}
		mk.layer.Rotation = v.Course
		mk.layer.Title = v.Name
		mk.history.Add(v.Pos())
		a.markers[v.ID] = mk
		a.m.AddLayer(mk.layer)
	}
	a.metrics.markers.Set(float64(len(a.vessels)))
	a.generation++
	gen := a.generation
	handlers := a.updateHandlersLocked()
	a.mu.Unlock()

	a.lg.Info("vessels replaced", slog.Int("count", len(list)))
	a.startFeed(gen)

	for _, h := range handlers {
		h()
	}
}

// clearLocked removes markers, tracks, and the route overlay and drops
// the highlight.
func (a *Adapter) clearLocked() {
	for _, mk := range a.markers {
		a.m.RemoveLayer(mk.layer.ID())
	}
	for _, pl := range a.tracks {
		a.m.RemoveLayer(pl.ID())
	}
	clear(a.markers)
	clear(a.tracks)
	clear(a.index)
	a.vessels = nil
	a.highlighted = ""
	a.route.reset(a.m)
	a.metrics.markers.Set(0)
}

// startFeed must be called with feedMu held.
func (a *Adapter) startFeed(gen int) {
	if a.source == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	a.cancel, a.feedDone = cancel, done

	go func() {
		defer close(done)
		err := a.source.Run(ctx, a.positions, func(reports []feed.PositionReport) {
			a.applyReports(gen, reports)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.lg.Error("position feed failed", slog.Any("error", err))
		}
	}()
}

// stopFeed must be called with feedMu held and mu not held.
func (a *Adapter) stopFeed() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	<-a.feedDone
	a.cancel, a.feedDone = nil, nil
}

func (a *Adapter) positions() []feed.Position {
	a.mu.Lock()
	defer a.mu.Unlock()

	ps := make([]feed.Position, len(a.vessels))
	for i, v := range a.vessels {
		ps[i] = feed.Position{ID: v.ID, Pos: v.Pos(), Course: v.Course, Speed: v.Speed}
	}
	return ps
}

// applyReports moves markers to reported positions. Reports from a feed
// started for an earlier set of vessels are ignored.
func (a *Adapter) applyReports(gen int, reports []feed.PositionReport) {
	a.mu.Lock()
	if a.destroyed || gen != a.generation {
		a.mu.Unlock()
		return
	}

	n := 0
	for _, r := range reports {
		i, ok := a.index[r.ID]
		if !ok {
			continue
		}
		v := &a.vessels[i]
		v.Lat, v.Lon, v.Course = r.Lat, r.Lon, r.Course
		if r.Speed != 0 {
			v.Speed = r.Speed
		}
		v.Updated = util.Select(r.Time.IsZero(), a.now(), r.Time)

		mk := a.markers[r.ID]
		a.m.Update(func() {
			mk.layer.Pos = r.Pos()
			mk.layer.Rotation = r.Course
		})
		mk.history.Add(r.Pos())
		n++
	}
	a.metrics.feedTicks.Inc()
	a.metrics.feedReports.Add(float64(n))
	handlers := a.updateHandlersLocked()
	a.mu.Unlock()

	for _, h := range handlers {
		h()
	}
}

// Vessel returns a snapshot of the vessel with the given id.
func (a *Adapter) Vessel(id string) (VesselInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	i, ok := a.index[id]
	if !ok {
		return VesselInfo{}, false
	}
	v := deep.MustCopy(a.vessels[i])
	v.LastUpdated = UpdatedLabel(v.Updated, a.now())
	return v, true
}

// Vessels returns a snapshot of all of the vessels.
func (a *Adapter) Vessels() []VesselInfo {
	a.mu.Lock()
	defer a.mu.Unlock()

	vs := deep.MustCopy(a.vessels)
	now := a.now()
	for i := range vs {
		vs[i].LastUpdated = UpdatedLabel(vs[i].Updated, now)
	}
	return vs
}

// History returns a vessel's past positions, oldest first.
func (a *Adapter) History(id string) []math.Point2LL {
	a.mu.Lock()
	defer a.mu.Unlock()

	if mk, ok := a.markers[id]; ok {
		return mk.history.Oldest(HistoryLength)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Projection and events

// Project returns the position of (lat, lon) in container pixels.
func (a *Adapter) Project(lat, lon float32) [2]float32 {
	return a.m.Project(math.LL(lat, lon))
}

// ViewSize returns the size of the map container.
func (a *Adapter) ViewSize() [2]float32 {
	return a.m.Viewport().Size
}

func (a *Adapter) OnMove(f func(maplib.Viewport)) *maplib.Subscription {
	return a.m.OnMove(f)
}

func (a *Adapter) OnMapClick(f func(maplib.ClickEvent)) *maplib.Subscription {
	return a.m.OnClick(f)
}

func addHandler[F any](a *Adapter, hs map[int]F, f F) *maplib.Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextHandler++
	id := a.nextHandler
	hs[id] = f
	return maplib.NewSubscription(func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(hs, id)
	})
}

func sortedHandlers[F any](hs map[int]F) []F {
	var fs []F
	for _, id := range slices.Sorted(maps.Keys(hs)) {
		fs = append(fs, hs[id])
	}
	return fs
}

// OnMarkerSelect registers f to be called with a snapshot of a vessel
// when its marker is clicked.
func (a *Adapter) OnMarkerSelect(f func(VesselInfo)) *maplib.Subscription {
	return addHandler(a, a.selectHandlers, f)
}

// OnUpdate registers f to be called after vessel positions change or the
// vessels are replaced.
func (a *Adapter) OnUpdate(f func()) *maplib.Subscription {
	return addHandler(a, a.updateHandlers, f)
}

func (a *Adapter) updateHandlersLocked() []func() {
	return sortedHandlers(a.updateHandlers)
}

func (a *Adapter) markerClicked(mk *maplib.Marker) {
	v, ok := a.Vessel(mk.Key)
	if !ok {
		return
	}

	a.mu.Lock()
	hs := sortedHandlers(a.selectHandlers)
	a.mu.Unlock()

	a.lg.Debug("vessel selected", slog.Any("vessel", v))
	for _, h := range hs {
		h(v)
	}
}

// SelectVessel behaves as if the vessel's marker had been clicked.
func (a *Adapter) SelectVessel(id string) {
	a.mu.Lock()
	mk, ok := a.markers[id]
	a.mu.Unlock()

	if ok {
		a.markerClicked(mk.layer)
	}
}

///////////////////////////////////////////////////////////////////////////
// Marker highlighting and tracks

// HighlightMarker shows the vessel's marker with the selected icon, or
// restores its normal icon. Unknown ids are ignored.
func (a *Adapter) HighlightMarker(id string, selected bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mk, ok := a.markers[id]
	if !ok {
		a.lg.Debug("highlight of missing marker", slog.String("id", id))
		return
	}

	a.m.Update(func() {
		if selected {
			mk.layer.Icon = selectedIcon
			mk.layer.ZIndex = selectedZIndex
		} else {
			mk.layer.Icon = vesselIcon
			mk.layer.ZIndex = 0
		}
	})
	if selected {
		a.highlighted = id
	} else if a.highlighted == id {
		a.highlighted = ""
	}
}

// Highlighted returns the id of the most recently highlighted marker that
// is still highlighted, if any.
func (a *Adapter) Highlighted() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.highlighted
}

// DrawPastTrack draws the oldest pct percent of the vessel's position
// history as a polyline. Drawing again replaces the existing track's
// points. If that is fewer than two points, any existing track is
// removed. Unknown ids are ignored.
func (a *Adapter) DrawPastTrack(id string, pct float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	mk, ok := a.markers[id]
	if !ok {
		a.lg.Debug("track for missing marker", slog.String("id", id))
		return
	}

	n := math.Clamp(math.Round(math.Clamp(pct, 0, 100)/100*float32(mk.history.Size())), 0, mk.history.Size())
	if n < 2 {
		a.removeTrackLocked(id)
		return
	}

	pts := mk.history.Oldest(n)
	if pl, ok := a.tracks[id]; ok {
		a.m.Update(func() { pl.Points = pts })
		return
	}
	pl := maplib.NewPolyline(pts, "#0277bd", 2)
	a.tracks[id] = pl
	a.m.AddLayer(pl)
}

func (a *Adapter) ClearPastTrack(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removeTrackLocked(id)
}

func (a *Adapter) removeTrackLocked(id string) {
	if pl, ok := a.tracks[id]; ok {
		a.m.RemoveLayer(pl.ID())
		delete(a.tracks, id)
	}
}

// HasPastTrack reports whether a track is drawn for the vessel.
func (a *Adapter) HasPastTrack(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.tracks[id]
	return ok
}

///////////////////////////////////////////////////////////////////////////
// Basemap and overlays

// SetBasemap switches to the named basemap, removing the current one
// first.
func (a *Adapter) SetBasemap(style string) error {
	bm, ok := Basemaps[style]
	if !ok {
		return fmt.Errorf("%q: %w", style, ErrUnknownBasemap)
	}

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil
	}
	if a.baseLayer != nil {
		a.m.RemoveLayer(a.baseLayer.ID())
	}
	a.baseLayer = maplib.NewTileLayer(style, bm.URL, bm.Subdomains, bm.Attribution, bm.MaxZoom)
	a.basemap = style
	a.m.AddLayer(a.baseLayer)
	a.mu.Unlock()

	if a.persist {
		if err := a.prefs.SetBasemap(style); err != nil {
			a.lg.Warn("unable to save basemap", slog.Any("error", err))
		}
	}
	return nil
}

// Basemap returns the name and tile layer of the current basemap.
func (a *Adapter) Basemap() (string, *maplib.TileLayer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.basemap, a.baseLayer
}

// ToggleLayer shows or hides one of the demo overlays (LayerPorts,
// LayerAnchorages, LayerRoutes). Overlays are built the first time they
// are shown.
func (a *Adapter) ToggleLayer(name string, on bool) error {
	if !slices.Contains(LayerNames, name) {
		return fmt.Errorf("%q: %w", name, ErrUnknownLayer)
	}

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return nil
	}
	g, ok := a.overlays[name]
	if on {
		if !ok {
			g, _ = newOverlayGroup(name)
			a.overlays[name] = g
		}
		a.m.AddLayer(g)
	} else if ok {
		a.m.RemoveLayer(g.ID())
	}
	a.mu.Unlock()

	if a.persist {
		if err := a.prefs.SetLayerVisible(name, on); err != nil {
			a.lg.Warn("unable to save layer visibility", slog.String("layer", name), slog.Any("error", err))
		}
	}
	return nil
}

func (a *Adapter) LayerVisible(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ok := a.overlays[name]
	return ok && a.m.HasLayer(g.ID())
}

///////////////////////////////////////////////////////////////////////////
// Viewport

// VisibleCount returns the number of vessels inside the current viewport.
func (a *Adapter) VisibleCount() int {
	vp := a.m.Viewport()

	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, v := range a.vessels {
		if vp.Contains(v.Pos()) {
			n++
		}
	}
	a.metrics.visible.Set(float64(n))
	return n
}

// FitToVisible zooms and centers the map to show all of the vessels.
func (a *Adapter) FitToVisible() {
	a.mu.Lock()
	pts := make([]math.Point2LL, len(a.vessels))
	for i, v := range a.vessels {
		pts[i] = v.Pos()
	}
	a.mu.Unlock()

	if len(pts) == 0 {
		return
	}
	// Not under mu: Fit notifies move handlers, which may call back in.
	a.m.Fit(math.Extent2DFromP2LLs(pts), FitPadding)
}

///////////////////////////////////////////////////////////////////////////
// Teardown

// Destroy stops the feed and removes everything the adapter added to the
// map. Afterward, the adapter's operations are no-ops.
func (a *Adapter) Destroy() {
	a.feedMu.Lock()
	defer a.feedMu.Unlock()

	a.stopFeed()

	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	a.clearLocked()
	a.route.disable(a.m)
	if a.baseLayer != nil {
		a.m.RemoveLayer(a.baseLayer.ID())
		a.baseLayer = nil
	}
	for _, g := range a.overlays {
		a.m.RemoveLayer(g.ID())
	}
	clear(a.overlays)
	clear(a.selectHandlers)
	clear(a.updateHandlers)
	subs := a.mapSubs
	a.mapSubs = nil
	a.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	a.lg.Info("vessel map destroyed")
}
