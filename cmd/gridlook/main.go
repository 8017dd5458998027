// Command gridlook renders a synthetic annotated dataset into a contact
// sheet PNG using the full grid pipeline: paged fetch, row packing, renderer
// lifecycle, and overlay drawing.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/config"
	"github.com/gridlook/gridlook/debug"
	"github.com/gridlook/gridlook/looker"
	"github.com/gridlook/gridlook/overlay"
	"github.com/gridlook/gridlook/spotlight"
)

func main() {
	var (
		configPath = flag.String("config", "gridlook.json", "path to JSON config file")
		out        = flag.String("out", "contact-sheet.png", "output PNG path")
		samples    = flag.Int("samples", 120, "number of synthetic samples")
		width      = flag.Int("width", 1200, "viewport width in pixels")
		height     = flag.Int("height", 800, "viewport height in pixels")
		zoom       = flag.Int("zoom", 0, "zoom level override (1-12)")
		seed       = flag.Int64("seed", 1, "dataset seed")
		debugFlag  = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		NewLogger(slog.LevelWarn).Warn("config load failed, using defaults", "path", *configPath, "error", err)
	}
	if *zoom > 0 {
		cfg.ZoomLevel = *zoom
	}
	if *debugFlag {
		cfg.Debug = true
	}
	_ = cfg.Validate()

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level)
	if cfg.Debug {
		debug.StartMemLogger(2*time.Second, logger)
	}

	if err := run(cfg, logger, *samples, *width, *height, *seed, *out); err != nil {
		logger.Error("gridlook failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, samples, width, height int, seed int64, out string) error {
	src, err := newSynthSource(samples, cfg.PageSize, seed)
	if err != nil {
		return err
	}
	surfaces := newSheetSurfaces()

	eng, err := spotlight.New(spotlight.Options{
		Source:    src,
		Surfaces:  surfaces,
		Config:    cfg,
		Logger:    logger,
		LoadMedia: synthMedia,
		Render: overlay.Options{
			ShowLabel:      true,
			ShowConfidence: true,
			Alpha:          cfg.MaskAlpha,
			FontSize:       cfg.FontSize,
		},
	})
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.SetViewport(width, height)
	ctx := context.Background()
	for {
		n, err := eng.FetchNext(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		logger.Debug("page fetched", "items", n)
	}

	// Sweep the viewport down the full layout so every resident cell gets a
	// rendered surface before compositing.
	for top := 0.0; top < eng.TotalHeight(); top += float64(height) {
		eng.ScrollTo(top, false)
	}

	m := eng.Metrics()
	logger.Info("window resident",
		"pages", m.PagesResident,
		"items", m.ItemsResident,
		"renderers", m.RenderersLive+m.RenderersDisabled,
	)
	return writeSheet(eng, surfaces, width, out, logger)
}

// sheetSurfaces hands out offscreen canvases and keeps them after release so
// scrolled-out cells still composite into the final sheet.
type sheetSurfaces struct {
	mu       sync.Mutex
	surfaces map[string]*looker.Surface
}

func newSheetSurfaces() *sheetSurfaces {
	return &sheetSurfaces{surfaces: make(map[string]*looker.Surface)}
}

func (p *sheetSurfaces) AcquireSurface(id string, w, h int) (*looker.Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sf := &looker.Surface{DC: gg.NewContext(w, h)}
	p.surfaces[id] = sf
	return sf, nil
}

func (p *sheetSurfaces) ReleaseSurface(string) {}

func (p *sheetSurfaces) get(id string) *looker.Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surfaces[id]
}

func writeSheet(eng *spotlight.Spotlight, surfaces *sheetSurfaces, width int, path string, logger *slog.Logger) error {
	rows := eng.Rows()
	if len(rows) == 0 {
		return errors.New("nothing to render")
	}
	total := int(math.Ceil(eng.TotalHeight()))
	sheet := gg.NewContext(width, total)
	defer sheet.Close()

	sheet.SetHexColor("#181818")
	sheet.DrawRectangle(0, 0, float64(width), float64(total))
	if err := sheet.Fill(); err != nil {
		return err
	}

	drawn := 0
	for _, row := range rows {
		for _, cell := range row.Cells {
			sf := surfaces.get(cell.ID)
			if sf == nil {
				continue
			}
			buf := gg.ImageBufFromImage(sf.DC.Image())
			sheet.DrawImageEx(buf, gg.DrawImageOptions{
				X: cell.X, Y: cell.Y,
				DstWidth: cell.W, DstHeight: cell.H,
			})
			drawn++
		}
	}
	logger.Info("contact sheet written", "path", path, "cells", drawn, "width", width, "height", total)
	return sheet.SavePNG(path)
}
