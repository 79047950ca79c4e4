// maplib/map.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package maplib is a small headless slippy map: a Web Mercator viewport,
// a set of layers, and pan/zoom/click events. It has no rendering of its
// own; hosts draw its layers however they like.
package maplib

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/math"
)

// minHitRadius is the smallest distance in pixels from a marker's center
// at which a click is still considered to have hit it.
const minHitRadius = 6

// ClickEvent describes a click on the map surface that did not hit a
// marker.
type ClickEvent struct {
	Point [2]float32 // container pixels
	Pos   math.Point2LL
}

// Subscription is returned by each of the Map's On* methods; calling
// Unsubscribe removes the handler. Unsubscribe may be called more than
// once and on a nil Subscription.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// NewSubscription returns a Subscription that calls cancel the first
// time it is unsubscribed; it lets wrappers of a Map hand out their own
// subscriptions.
func NewSubscription(cancel func()) *Subscription {
	return &Subscription{cancel: cancel}
}

func (s *Subscription) Unsubscribe() {
	if s != nil && s.cancel != nil {
		s.once.Do(s.cancel)
	}
}

// handlers holds the registered handlers of one event type, in
// registration order.
type handlers[F any] struct {
	next int
	m    map[int]F
}

func (h *handlers[F]) add(f F) int {
	if h.m == nil {
		h.m = make(map[int]F)
	}
	h.next++
	h.m[h.next] = f
	return h.next
}

func (h *handlers[F]) list() []F {
	var fs []F
	for _, k := range slices.Sorted(maps.Keys(h.m)) {
		fs = append(fs, h.m[k])
	}
	return fs
}

// Map is safe for concurrent use. Event handlers are called without the
// Map's lock held, so they may call back into the Map.
type Map struct {
	mu     sync.Mutex
	vp     Viewport
	layers map[LayerID]Layer
	order  []LayerID

	moveHandlers   handlers[func(Viewport)]
	clickHandlers  handlers[func(ClickEvent)]
	markerHandlers handlers[func(*Marker)]

	tiles *tileCache
	lg    *log.Logger
}

func New(vp Viewport, lg *log.Logger) *Map {
	return &Map{
		vp:     vp,
		layers: make(map[LayerID]Layer),
		tiles:  newTileCache(),
		lg:     lg,
	}
}

func (m *Map) Viewport() Viewport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vp
}

func (m *Map) Project(p math.Point2LL) [2]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vp.Project(p)
}

func (m *Map) Unproject(pt [2]float32) math.Point2LL {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vp.Unproject(pt)
}

// SetView replaces the viewport and notifies move handlers.
func (m *Map) SetView(vp Viewport) {
	m.mu.Lock()
	m.vp = vp
	hs := m.moveHandlers.list()
	m.mu.Unlock()

	m.lg.Debug("map moved", slog.Any("viewport", vp))
	for _, h := range hs {
		h(vp)
	}
}

// changeView applies f to the current viewport under the lock and
// notifies move handlers with the result.
func (m *Map) changeView(f func(Viewport) Viewport) {
	m.mu.Lock()
	vp := f(m.vp)
	m.mu.Unlock()
	m.SetView(vp)
}

func (m *Map) Pan(delta [2]float32) {
	m.changeView(func(v Viewport) Viewport { return v.Pan(delta) })
}

func (m *Map) SetZoom(z float32) {
	m.changeView(func(v Viewport) Viewport { return v.WithZoom(z) })
}

func (m *Map) ZoomBy(dz float32) {
	m.changeView(func(v Viewport) Viewport { return v.WithZoom(v.Zoom + dz) })
}

func (m *Map) Resize(size [2]float32) {
	m.changeView(func(v Viewport) Viewport { return v.WithSize(size) })
}

// Fit centers and zooms the map so that extent e (in lon/lat) is visible
// with the given padding in pixels.
func (m *Map) Fit(e math.Extent2D, padding float32) {
	m.changeView(func(v Viewport) Viewport { return v.Fit(e, padding) })
}

// AddLayer adds l to the map; adding a layer that is already present has
// no effect.
func (m *Map) AddLayer(l Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layers[l.ID()]; ok {
		return
	}
	m.layers[l.ID()] = l
	m.order = append(m.order, l.ID())
}

// RemoveLayer removes the layer with the given id, returning false if it
// was not on the map.
func (m *Map) RemoveLayer(id LayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.layers[id]; !ok {
		return false
	}
	delete(m.layers, id)
	m.order = slices.DeleteFunc(m.order, func(o LayerID) bool { return o == id })
	return true
}

func (m *Map) HasLayer(id LayerID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.layers[id]
	return ok
}

func (m *Map) LayerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.layers)
}

// Update calls f with the Map's lock held; all modifications to the
// fields of layers that are on the map must be made this way.
func (m *Map) Update(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f()
}

// View calls f with the current viewport and the map's layers in the
// order they were added, with the lock held. f must not retain the
// layers or call other Map methods.
func (m *Map) View(f func(vp Viewport, layers []Layer)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	layers := make([]Layer, 0, len(m.order))
	for _, id := range m.order {
		layers = append(layers, m.layers[id])
	}
	f(m.vp, layers)
}

// VisibleTiles returns the tiles of the given tile layer needed to cover
// the current viewport.
func (m *Map) VisibleTiles(tl *TileLayer) []TileCoord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tiles.coverage(m.vp, tl.MaxZoom)
}

// markersLocked returns the markers on the map, topmost first.
func (m *Map) markersLocked() []*Marker {
	var ms []*Marker
	for _, id := range m.order {
		if mk, ok := m.layers[id].(*Marker); ok {
			ms = append(ms, mk)
		}
	}
	// Later-added markers are above earlier ones with the same ZIndex.
	slices.Reverse(ms)
	slices.SortStableFunc(ms, func(a, b *Marker) int { return b.ZIndex - a.ZIndex })
	return ms
}

// Click dispatches a click at pt (container pixels): if it hits a marker,
// the topmost one is reported to the marker handlers; otherwise the map
// click handlers get the click and its geographic position.
func (m *Map) Click(pt [2]float32) {
	m.mu.Lock()
	var hit *Marker
	for _, mk := range m.markersLocked() {
		r := max(mk.Icon.Size/2, minHitRadius)
		if math.Distance2f(m.vp.Project(mk.Pos), pt) <= r {
			hit = mk
			break
		}
	}
	if hit != nil {
		hs := m.markerHandlers.list()
		m.mu.Unlock()

		m.lg.Debug("marker clicked", slog.String("key", hit.Key))
		for _, h := range hs {
			h(hit)
		}
		return
	}

	ev := ClickEvent{Point: pt, Pos: m.vp.Unproject(pt)}
	hs := m.clickHandlers.list()
	m.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

func subscribe[F any](m *Map, hs *handlers[F], f F) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := hs.add(f)
	return &Subscription{cancel: func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(hs.m, id)
	}}
}

// OnMove registers f to be called after every pan, zoom, or resize.
func (m *Map) OnMove(f func(Viewport)) *Subscription {
	return subscribe(m, &m.moveHandlers, f)
}

// OnClick registers f to be called for clicks that don't hit a marker.
func (m *Map) OnClick(f func(ClickEvent)) *Subscription {
	return subscribe(m, &m.clickHandlers, f)
}

// OnMarkerClick registers f to be called with the marker that was
// clicked.
func (m *Map) OnMarkerClick(f func(*Marker)) *Subscription {
	return subscribe(m, &m.markerHandlers, f)
}
