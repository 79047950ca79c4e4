// kv/prefs.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package kv

import (
	"github.com/harborline/harborline/log"
)

const (
	BasemapKey     = "map.basemap"
	layerKeyPrefix = "map.layer."
)

// Prefs provides typed access to the map display preferences.
type Prefs struct {
	Store Store
	Lg    *log.Logger
}

// Basemap returns the stored basemap style name, or def if there is none.
func (p Prefs) Basemap(def string) string {
	return GetJSON(p.Store, BasemapKey, def, p.Lg)
}

func (p Prefs) SetBasemap(style string) error {
	return SetJSON(p.Store, BasemapKey, style)
}

// LayerVisible reports whether the named overlay layer was left on;
// missing or malformed values read as off.
func (p Prefs) LayerVisible(name string) bool {
	return GetJSON(p.Store, layerKeyPrefix+name, false, p.Lg)
}

func (p Prefs) SetLayerVisible(name string, on bool) error {
	return SetJSON(p.Store, layerKeyPrefix+name, on)
}
