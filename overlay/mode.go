// overlay/mode.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package overlay

import (
	"maps"
	"slices"
	"sync"

	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/panel"
)

// MobileBreakpoint is the widest viewport, in pixels, that gets the
// bottom sheet instead of the floating panel.
const MobileBreakpoint = 640

func ModeForWidth(w float32) panel.Mode {
	if w <= MobileBreakpoint {
		return panel.Sheet
	}
	return panel.Floating
}

// ModeSignal tracks the viewport width and the panel mode it implies. It
// is the one place that decides the mode.
type ModeSignal struct {
	mu       sync.Mutex
	mode     panel.Mode
	handlers map[int]func(panel.Mode)
	next     int
}

func NewModeSignal(width float32) *ModeSignal {
	return &ModeSignal{mode: ModeForWidth(width), handlers: make(map[int]func(panel.Mode))}
}

func (s *ModeSignal) Mode() panel.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetWidth updates the viewport width; subscribers are notified if the
// mode changes.
func (s *ModeSignal) SetWidth(w float32) {
	s.mu.Lock()
	m := ModeForWidth(w)
	if m == s.mode {
		s.mu.Unlock()
		return
	}
	s.mode = m
	var hs []func(panel.Mode)
	for _, id := range slices.Sorted(maps.Keys(s.handlers)) {
		hs = append(hs, s.handlers[id])
	}
	s.mu.Unlock()

	for _, h := range hs {
		h(m)
	}
}

func (s *ModeSignal) Subscribe(f func(panel.Mode)) *maplib.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	id := s.next
	s.handlers[id] = f
	return maplib.NewSubscription(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	})
}
