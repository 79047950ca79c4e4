// maplib/tiles.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package maplib

import (
	"fmt"
	gomath "math"
	"strconv"
	"strings"
	"time"

	"github.com/harborline/harborline/math"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TileCoord identifies a slippy-map tile.
type TileCoord struct {
	Z, X, Y int
}

func (t TileCoord) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}

// URL expands a tile URL template for t. subdomains, if non-empty,
// supplies the characters that {s} is replaced with, chosen per tile.
func (t TileCoord) URL(template, subdomains string) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
		"{r}", "",
		"{s}", func() string {
			if subdomains == "" {
				return ""
			}
			i := (t.X + t.Y) % len(subdomains)
			return subdomains[i : i+1]
		}())
	return r.Replace(template)
}

type tileKey struct {
	z      int
	center math.Point2LL
	size   [2]float32
}

// tileCache memoizes the tile coverage of recently seen viewports; panning
// back and forth over the same area is common.
type tileCache struct {
	lru *expirable.LRU[tileKey, []TileCoord]
}

func newTileCache() *tileCache {
	return &tileCache{lru: expirable.NewLRU[tileKey, []TileCoord](64, nil, 5*time.Minute)}
}

func (c *tileCache) coverage(v Viewport, maxZoom int) []TileCoord {
	z := math.Clamp(math.Round(v.Zoom), MinZoom, min(MaxZoom, maxZoom))
	key := tileKey{z: z, center: v.Center, size: v.Size}
	if tiles, ok := c.lru.Get(key); ok {
		return tiles
	}

	tiles := VisibleTiles(v, z)
	c.lru.Add(key, tiles)
	return tiles
}

// VisibleTiles returns the tiles at zoom z that cover the viewport, in
// row-major order starting at the northwest corner. Columns wrap around
// the antimeridian; rows beyond the poles are omitted.
func VisibleTiles(v Viewport, z int) []TileCoord {
	n := 1 << z
	ws := TileSize * gomath.Exp2(float64(z))
	// The viewport's pixel size is at its own zoom; scale it to z.
	scale := gomath.Exp2(float64(z) - float64(v.Zoom))
	cx, cy := worldPixel(v.Center, ws)
	hw, hh := float64(v.Size[0])/2*scale, float64(v.Size[1])/2*scale

	x0 := int(gomath.Floor((cx - hw) / TileSize))
	x1 := int(gomath.Floor((cx + hw - 1e-6) / TileSize))
	y0 := max(0, int(gomath.Floor((cy-hh)/TileSize)))
	y1 := min(n-1, int(gomath.Floor((cy+hh-1e-6)/TileSize)))
	if x1-x0 >= n {
		x0, x1 = 0, n-1
	}

	var tiles []TileCoord
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			tiles = append(tiles, TileCoord{Z: z, X: ((x % n) + n) % n, Y: y})
		}
	}
	return tiles
}
