package ebitenctx

import (
	"fmt"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"github.com/phanxgames/flowline"
)

// HUD draws frame rate and layer counters in the top-left corner. The
// text is refreshed about twice a second.
type HUD struct {
	img        *ebiten.Image
	lastUpdate float64
	text       string
}

// NewHUD creates a HUD.
func NewHUD() *HUD {
	// 180x64 fits four short lines of the debug font.
	return &HUD{img: ebiten.NewImage(180, 64)}
}

// Update refreshes the HUD text after dt seconds have accumulated.
func (h *HUD) Update(dt float64, stats flowline.LayerStats, view flowline.ViewState) {
	h.lastUpdate += dt
	if h.text != "" && h.lastUpdate < 0.5 {
		return
	}
	h.lastUpdate = 0
	h.text = hudText(ebiten.ActualFPS(), ebiten.ActualTPS(), stats, view)

	h.img.Clear()
	// Semi-transparent background for readability
	h.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(h.img, h.text)
}

// Draw draws the HUD onto screen.
func (h *HUD) Draw(screen *ebiten.Image) {
	screen.DrawImage(h.img, nil)
}

func hudText(fps, tps float64, stats flowline.LayerStats, view flowline.ViewState) string {
	state := "moving"
	if view.Stationary {
		state = "still"
	}
	return fmt.Sprintf("FPS: %.1f TPS: %.1f\nlines: %d verts: %d\nrebuilds: %d\nres: %.3g %s",
		fps, tps, stats.Lines, stats.Vertices, stats.Rebuilds, view.Resolution, state)
}
