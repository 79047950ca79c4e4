// cmd/harborline/tui.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/harborline/harborline/fleet"
	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/maplib"
	"github.com/harborline/harborline/math"
	"github.com/harborline/harborline/overlay"
	"github.com/harborline/harborline/panel"
	"github.com/harborline/harborline/util"
	"github.com/harborline/harborline/vesselmap"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/browser"
)

// Each terminal cell stands in for a block of map pixels.
const (
	cellWidth  = 8
	cellHeight = 16
)

// Rows at the bottom of the screen reserved for the status lines.
const statusRows = 2

var headingGlyphs = []rune("↑↗→↘↓↙←↖")

type tui struct {
	adapter *vesselmap.Adapter
	fleet   *fleet.Set
	baseURL string
	lg      *log.Logger

	screen   tcell.Screen
	ctrl     *overlay.Controller
	mode     *overlay.ModeSignal
	trackPct float32
	message  string
	buttons  tcell.ButtonMask

	// panelFocus is set when the panel asks for focus; panel keys are
	// only handled while it is set.
	panelFocus atomic.Bool
}

func (t *tui) run(ctx context.Context) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorReset).
		Foreground(tcell.ColorReset))
	screen.EnableMouse()
	t.screen = screen

	// Keep the browser launcher from writing over the screen.
	browser.Stdout, browser.Stderr = io.Discard, io.Discard

	t.trackPct = 100
	w, h := screen.Size()
	t.mode = overlay.NewModeSignal(float32(w * cellWidth))
	t.resize(w, h)
	t.adapter.FitToVisible()

	t.ctrl = overlay.New(t.adapter, t.fleet, t.mode, overlay.Options{
		OnRender:   t.panelRendered,
		OnNavigate: t.navigate,
	}, t.lg)
	defer t.ctrl.Destroy()

	sub := t.adapter.OnUpdate(t.redraw)
	defer sub.Unsubscribe()
	msub := t.adapter.OnMove(func(maplib.Viewport) { t.redraw() })
	defer msub.Unsubscribe()

	stop := context.AfterFunc(ctx, func() {
		screen.PostEvent(tcell.NewEventInterrupt(nil))
	})
	defer stop()

	for {
		t.render()
		screen.Show()

		ev := screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}
		if quit := t.handleEvent(ev); quit {
			return nil
		}
	}
}

func (t *tui) panelRendered(v *panel.View) {
	if v == nil {
		t.panelFocus.Store(false)
	} else if v.RequestFocus {
		t.panelFocus.Store(true)
	}
	t.redraw()
}

func (t *tui) redraw() {
	// A full queue already has a redraw pending.
	_ = t.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (t *tui) navigate(path string) {
	url := strings.TrimSuffix(t.baseURL, "/") + path
	t.lg.Info("opening details", slog.String("url", url))
	if err := browser.OpenURL(url); err != nil {
		t.lg.Warnf("%s: %v", url, err)
		t.message = "unable to open " + url
	}
}

// resize updates the map viewport for a terminal of w x h cells.
func (t *tui) resize(w, h int) {
	size := [2]float32{float32(w * cellWidth), float32(max(h-statusRows, 1) * cellHeight)}
	t.adapter.Map().Resize(size)
	t.mode.SetWidth(size[0])
}

func toCell(pt [2]float32) (int, int) {
	return int(math.Floor(pt[0] / cellWidth)), int(math.Floor(pt[1] / cellHeight))
}

func cellCenter(x, y int) [2]float32 {
	return [2]float32{float32(x*cellWidth) + cellWidth/2, float32(y*cellHeight) + cellHeight/2}
}

///////////////////////////////////////////////////////////////////////////
// Events

func (t *tui) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.screen.Sync()
		t.resize(ev.Size())

	case *tcell.EventMouse:
		pressed := ev.Buttons() & tcell.Button1
		if pressed != 0 && t.buttons&tcell.Button1 == 0 {
			x, y := ev.Position()
			t.click(x, y)
		}
		t.buttons = ev.Buttons()

	case *tcell.EventKey:
		return t.handleKey(ev)
	}
	return false
}

func (t *tui) click(x, y int) {
	if _, h := t.screen.Size(); y >= h-statusRows {
		return
	}
	if v, ok := t.ctrl.View(); ok && v.Mode == panel.Floating {
		px, py := toCell([2]float32{v.Placement.Left, v.Placement.Top})
		pw, ph := toCell(panel.Size)
		if x >= px && x < px+pw && y >= py && y < py+ph {
			t.panelFocus.Store(true)
			return
		}
	}
	t.adapter.Map().Click(cellCenter(x, y))
}

func (t *tui) handleKey(ev *tcell.EventKey) bool {
	m := t.adapter.Map()
	size := t.adapter.ViewSize()
	t.message = ""

	switch ev.Key() {
	case tcell.KeyCtrlC:
		return true
	case tcell.KeyUp:
		m.Pan([2]float32{0, -size[1] / 4})
		return false
	case tcell.KeyDown:
		m.Pan([2]float32{0, size[1] / 4})
		return false
	case tcell.KeyLeft:
		m.Pan([2]float32{-size[0] / 4, 0})
		return false
	case tcell.KeyRight:
		m.Pan([2]float32{size[0] / 4, 0})
		return false
	case tcell.KeyTab:
		t.selectNext()
		return false
	case tcell.KeyEscape:
		t.intent(panel.IntentClose)
		return false
	case tcell.KeyRune:
	default:
		return false
	}

	r := ev.Rune()
	switch r {
	case 'q':
		return true
	case '+', '=':
		m.ZoomBy(1)
	case '-':
		m.ZoomBy(-1)
	case 'F':
		t.adapter.FitToVisible()
	case 'b':
		t.cycleBasemap()
	case '1', '2', '3':
		name := vesselmap.LayerNames[r-'1']
		if err := t.adapter.ToggleLayer(name, !t.adapter.LayerVisible(name)); err != nil {
			t.message = err.Error()
		}
	case '[', ']':
		if r == '[' {
			t.trackPct = max(t.trackPct-10, 0)
		} else {
			t.trackPct = min(t.trackPct+10, 100)
		}
		t.ctrl.SetTrackPercent(t.trackPct)
		t.message = fmt.Sprintf("track %d%%", int(t.trackPct))
	default:
		if !t.panelFocus.Load() {
			break
		}
		if v, ok := t.ctrl.View(); ok {
			if in, ok := v.IntentForKey(r); ok {
				t.intent(in)
			}
		}
	}
	return false
}

func (t *tui) intent(in panel.Intent) {
	if err := t.ctrl.HandleIntent(in); err != nil {
		t.lg.Warnf("%s: %v", in, err)
		t.message = err.Error()
	}
}

func (t *tui) cycleBasemap() {
	names := vesselmap.BasemapNames()
	cur, _ := t.adapter.Basemap()
	i := slices.Index(names, cur)
	next := names[(i+1)%len(names)]
	if err := t.adapter.SetBasemap(next); err != nil {
		t.message = err.Error()
	}
}

// selectNext selects the vessel after the current one, in id order.
func (t *tui) selectNext() {
	vs := t.adapter.Vessels()
	if len(vs) == 0 {
		return
	}
	ids := util.MapSlice(vs, func(v vesselmap.VesselInfo) string { return v.ID })
	slices.Sort(ids)

	next := ids[0]
	if cur, ok := t.ctrl.SelectedID(); ok {
		if i := slices.Index(ids, cur); i >= 0 {
			next = ids[(i+1)%len(ids)]
		}
	}
	t.adapter.SelectVessel(next)
}

///////////////////////////////////////////////////////////////////////////
// Rendering

var (
	styleTrack    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleRoute    = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	styleOverlay  = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleVessel   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleSelected = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true).Reverse(true)
	stylePanel    = tcell.StyleDefault.Background(tcell.ColorWhite).Foreground(tcell.ColorBlack)
	styleStatus   = tcell.StyleDefault.Bold(true).Reverse(true)
	styleHelp     = tcell.StyleDefault.Foreground(tcell.ColorGray)
)

func (t *tui) render() {
	t.screen.Clear()
	width, height := t.screen.Size()

	t.adapter.Map().View(func(vp maplib.Viewport, layers []maplib.Layer) {
		// Markers go last so they end up on top.
		var markers []*maplib.Marker
		var draw func(ls []maplib.Layer)
		draw = func(ls []maplib.Layer) {
			for _, l := range ls {
				switch l := l.(type) {
				case *maplib.Group:
					draw(l.Layers)
				case *maplib.Polyline:
					t.drawPolyline(vp, l)
				case *maplib.CircleMarker:
					x, y := toCell(vp.Project(l.Center))
					t.screen.SetContent(x, y, 'o', nil, styleOverlay)
					drawText(t.screen, x+1, y, len([]rune(l.Label)), styleOverlay, l.Label)
				case *maplib.Marker:
					markers = append(markers, l)
				}
			}
		}
		draw(layers)

		slices.SortStableFunc(markers, func(a, b *maplib.Marker) int { return a.ZIndex - b.ZIndex })
		for _, mk := range markers {
			x, y := toCell(vp.Project(mk.Pos))
			if mk.Icon.Selected {
				t.screen.SetContent(x, y, headingGlyph(mk.Rotation), nil, styleSelected)
				drawText(t.screen, x+1, y, len([]rune(mk.Title))+1, styleSelected, " "+mk.Title)
			} else {
				t.screen.SetContent(x, y, headingGlyph(mk.Rotation), nil, styleVessel)
			}
		}
	})

	if v, ok := t.ctrl.View(); ok {
		t.drawPanel(v, width, height)
	}
	t.drawStatus(width, height)
}

func headingGlyph(rot float32) rune {
	i := int(math.Round(math.NormalizeHeading(rot)/45)) % len(headingGlyphs)
	return headingGlyphs[i]
}

func (t *tui) drawPolyline(vp maplib.Viewport, pl *maplib.Polyline) {
	style, ch := styleTrack, '·'
	if pl.Dashed {
		style, ch = styleRoute, '╌'
	}
	for i := 1; i < len(pl.Points); i++ {
		x0, y0 := toCell(vp.Project(pl.Points[i-1]))
		x1, y1 := toCell(vp.Project(pl.Points[i]))
		n := max(math.Abs(x1-x0), math.Abs(y1-y0), 1)
		for s := range n + 1 {
			x := x0 + (x1-x0)*s/n
			y := y0 + (y1-y0)*s/n
			t.screen.SetContent(x, y, ch, nil, style)
		}
	}
}

func (t *tui) drawPanel(v panel.View, width, height int) {
	var x, y, w int
	var lines []string
	if v.Mode == panel.Sheet {
		w = width
		lines = v.Lines(w - 2)
		x, y = 0, max(height-statusRows-len(lines)-1, 0)
	} else {
		cw, _ := toCell(panel.Size)
		w = cw
		lines = v.Lines(w - 2)
		x, y = toCell([2]float32{v.Placement.Left, v.Placement.Top})
	}

	for i, line := range lines {
		drawText(t.screen, x, y+i, w, stylePanel, " "+line)
	}
	hint, style := " click to focus", stylePanel.Foreground(tcell.ColorGray)
	if t.panelFocus.Load() {
		hint, style = " x:close [/]:track", stylePanel.Foreground(tcell.ColorDarkBlue).Bold(true)
	}
	drawText(t.screen, x, y+len(lines), w, style, hint)
}

func (t *tui) drawStatus(width, height int) {
	name, tl := t.adapter.Basemap()
	vp := t.adapter.Map().Viewport()

	var tiles int
	attribution := ""
	if tl != nil {
		tiles = len(t.adapter.Map().VisibleTiles(tl))
		attribution = tl.Attribution
	}

	var layers []string
	for i, l := range vesselmap.LayerNames {
		mark := " "
		if t.adapter.LayerVisible(l) {
			mark = "*"
		}
		layers = append(layers, fmt.Sprintf("%d%s%s", i+1, mark, l))
	}

	status := fmt.Sprintf(" harborline  %s (%d tiles)  z%d  %d/%d visible  %s  %s",
		name, tiles, int(vp.Zoom), t.adapter.VisibleCount(), len(t.adapter.Vessels()),
		strings.Join(layers, " "), t.mode.Mode())
	if t.message != "" {
		status += "  " + t.message
	}
	drawText(t.screen, 0, height-2, width, styleStatus, status)

	help := " q:quit arrows:pan +/-:zoom F:fit b:basemap 1-3:layers tab:next vessel"
	if attribution != "" {
		help += "  © " + attribution
	}
	drawText(t.screen, 0, height-1, width, styleHelp, help)
}

func drawText(screen tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			break
		}
		screen.SetContent(x+col, y, r, nil, style)
		col++
	}
	for col < maxWidth {
		screen.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}
