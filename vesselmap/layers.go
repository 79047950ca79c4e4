// vesselmap/layers.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package vesselmap

import (
	"slices"

	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/util"
)

// Basemap describes one of the available base tile layers.
type Basemap struct {
	URL         string
	Subdomains  string
	Attribution string
	MaxZoom     int
}

const DefaultBasemap = "osm"

var Basemaps = map[string]Basemap{
	"osm": {
		URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
		Attribution: "© OpenStreetMap contributors",
		MaxZoom:     19,
	},
	"light": {
		URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Subdomains:  "abcd",
		Attribution: "© OpenStreetMap contributors © CARTO",
		MaxZoom:     20,
	},
	"dark": {
		URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
		Subdomains:  "abcd",
		Attribution: "© OpenStreetMap contributors © CARTO",
		MaxZoom:     20,
	},
	"satellite": {
		URL:         "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}",
		Attribution: "Tiles © Esri, Maxar, Earthstar Geographics",
		MaxZoom:     19,
	},
}

func BasemapNames() []string {
	return util.SortedMapKeys(Basemaps)
}

// Overlay layer names.
const (
	LayerPorts      = "ports"
	LayerAnchorages = "anchorages"
	LayerRoutes     = "routes"
)

var LayerNames = []string{LayerPorts, LayerAnchorages, LayerRoutes}

type namedPoint struct {
	name string
	pos  math.Point2LL
}

var demoPorts = []namedPoint{
	{"Rotterdam", math.LL(51.95, 4.05)},
	{"Antwerp", math.LL(51.27, 4.33)},
	{"Hamburg", math.LL(53.54, 9.93)},
	{"Felixstowe", math.LL(51.95, 1.33)},
	{"Le Havre", math.LL(49.48, 0.11)},
	{"Bremerhaven", math.LL(53.56, 8.55)},
	{"Gdansk", math.LL(54.40, 18.67)},
	{"Algeciras", math.LL(36.13, -5.44)},
	{"Piraeus", math.LL(37.94, 23.62)},
	{"Singapore", math.LL(1.26, 103.82)},
}

var demoAnchorages = []namedPoint{
	{"Maas Anchorage", math.LL(52.03, 3.65)},
	{"Wandelaar", math.LL(51.40, 3.05)},
	{"Elbe Approach", math.LL(54.02, 8.12)},
	{"Sunk Inner", math.LL(51.85, 1.60)},
	{"Gibraltar East", math.LL(36.12, -5.30)},
	{"Eastern OPL", math.LL(1.28, 104.10)},
}

var demoRoutes = [][]math.Point2LL{
	// English Channel to Rotterdam.
	{math.LL(49.90, -5.80), math.LL(50.15, -1.50), math.LL(50.95, 1.35), math.LL(51.60, 2.60), math.LL(51.95, 4.05)},
	// Rotterdam to Hamburg via the German Bight.
	{math.LL(51.95, 4.05), math.LL(53.00, 4.30), math.LL(53.90, 6.50), math.LL(54.02, 8.12), math.LL(53.54, 9.93)},
	// Gibraltar to Piraeus.
	{math.LL(36.05, -5.35), math.LL(37.20, 2.50), math.LL(37.35, 11.00), math.LL(36.10, 15.50), math.LL(37.94, 23.62)},
}

// newOverlayGroup constructs the named demo overlay.
func newOverlayGroup(name string) (*maplib.Group, bool) {
	var layers []maplib.Layer
	switch name {
	case LayerPorts:
		for _, p := range demoPorts {
			layers = append(layers, maplib.NewCircleMarker(p.pos, 5, "#2e7d32", p.name))
		}
	case LayerAnchorages:
		for _, p := range demoAnchorages {
			layers = append(layers, maplib.NewCircleMarker(p.pos, 4, "#f9a825", p.name))
		}
	case LayerRoutes:
		for _, r := range demoRoutes {
			pl := maplib.NewPolyline(slices.Clone(r), "#6a1b9a", 2)
			pl.Dashed = true
			layers = append(layers, pl)
		}
	default:
		return nil, false
	}
	return maplib.NewGroup(name, layers...), true
}

var (
	vesselIcon   = maplib.Icon{Glyph: '▲', Size: 14, Fill: "#1565c0"}
	selectedIcon = maplib.Icon{Glyph: '▲', Size: 22, Fill: "#ff6f00", Selected: true}
)

const selectedZIndex = 1000
