// Package looker implements the per-sample renderer: a small state machine
// owning viewport state, the overlay list and the draw loop for one sample.
// Renderers are driven through an explicit update queue (see Scheduler) so
// bursts of updates coalesce into a single redraw.
package looker

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/media"
	"github.com/gridlook/gridlook/overlay"
)

// ErrDestroyed is returned by operations on a destroyed renderer.
var ErrDestroyed = errors.New("looker: renderer destroyed")

// AttachError reports an attach call with a missing or zero-size target.
// The renderer stays in its prior state.
type AttachError struct {
	Reason string
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("looker: attach: %s", e.Reason)
}

// Phase is the renderer's primary lifecycle state.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseLoaded
	PhaseDestroyed
)

// PlayState is the orthogonal playback axis for video-capable renderers.
type PlayState int

const (
	PlayPaused PlayState = iota
	PlayPlaying
	PlaySeeking
)

// Surface is the concrete draw target a renderer binds to while attached.
type Surface struct {
	DC *gg.Context
}

// PostDrawFunc runs once after the draw that reflects the state it was
// registered with. It is the only sanctioned place for state-dependent side
// effects outside overlay draws.
type PostDrawFunc func(dc *gg.Context, st *overlay.State, overlays []overlay.Overlay)

// Patch is a merge-style partial state update. Nil fields keep their
// current value; Options is replaced wholesale when set.
type Patch struct {
	Cursor   *[2]float64
	Hovering *bool
	Panning  *bool
	Scale    *float64
	Pan      *[2]float64
	Rotation *float64
	Options  *overlay.Options
}

// Renderer owns the visualization state for one sample.
type Renderer struct {
	mu sync.Mutex

	id     string
	sample *label.Sample
	logger *slog.Logger
	sched  *Scheduler

	overlays []overlay.Overlay
	frameImg *image.RGBA
	frameBuf *gg.ImageBuf

	state    overlay.State
	phase    Phase
	disabled bool
	surface  *Surface

	play       PlayState
	frame      int
	prePlay    PlayState
	frameCount int

	posts []PostDrawFunc
	draws uint64
}

// New builds a renderer for a sample. The sample's labels become overlays
// immediately; media pixels arrive separately via SetMedia. sched may be
// nil, in which case updates apply synchronously.
func New(id string, sample *label.Sample, logger *slog.Logger, sched *Scheduler) *Renderer {
	r := &Renderer{
		id:     id,
		sample: sample,
		logger: logger,
		sched:  sched,
		phase:  PhaseLoading,
	}
	if sample != nil {
		r.overlays = overlay.FromSample(sample)
		r.state.ImageWidth = float64(sample.Metadata.Width)
		r.state.ImageHeight = float64(sample.Metadata.Height)
		if sample.MediaType == label.MediaVideo && sample.Metadata.FrameRate > 0 {
			r.frameCount = int(sample.Metadata.FrameRate) // single-second default until media reports length
		}
	}
	return r
}

// ID returns the stable identifier the renderer was created for.
func (r *Renderer) ID() string { return r.id }

// Sample returns the read-only sample reference.
func (r *Renderer) Sample() *label.Sample { return r.sample }

// Phase returns the primary lifecycle state.
func (r *Renderer) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Disabled reports whether the draw loop is suspended.
func (r *Renderer) Disabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled
}

// Draws returns the number of completed draws.
func (r *Renderer) Draws() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws
}

// State returns a copy of the current render state.
func (r *Renderer) State() overlay.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Overlays returns the active overlay list. Callers must treat it as
// read-only.
func (r *Renderer) Overlays() []overlay.Overlay {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlays
}

// SetMedia hands the renderer its decoded media pixels and moves it to
// loaded. The renderer owns recycling the frame on destroy.
func (r *Renderer) SetMedia(img *image.RGBA) {
	r.mu.Lock()
	if r.phase == PhaseDestroyed {
		r.mu.Unlock()
		return
	}
	if r.frameImg != nil {
		media.RecycleFrame(r.frameImg)
	}
	r.frameImg = img
	r.frameBuf = nil
	if img != nil {
		r.frameBuf = gg.ImageBufFromImage(img)
		if r.state.ImageWidth == 0 {
			r.state.ImageWidth = float64(img.Bounds().Dx())
			r.state.ImageHeight = float64(img.Bounds().Dy())
		}
	}
	r.phase = PhaseLoaded
	r.mu.Unlock()
	r.schedule()
}

// Attach binds the renderer to a draw surface, re-parenting if already
// attached. Attaching clears the disabled flag; decoded state survives a
// disable/attach cycle untouched.
func (r *Renderer) Attach(sf *Surface, width, height int) error {
	r.mu.Lock()
	if r.phase == PhaseDestroyed {
		r.mu.Unlock()
		return ErrDestroyed
	}
	if sf == nil || sf.DC == nil {
		r.mu.Unlock()
		return &AttachError{Reason: "nil surface"}
	}
	if width <= 0 || height <= 0 {
		r.mu.Unlock()
		return &AttachError{Reason: fmt.Sprintf("zero-size target %dx%d", width, height)}
	}
	r.surface = sf
	r.state.Width = float64(width)
	r.state.Height = float64(height)
	r.disabled = false
	if r.state.Scale == 0 {
		r.fitLocked()
	}
	r.mu.Unlock()
	r.schedule()
	return nil
}

// Disable suspends the draw loop and detaches the surface without
// discarding decoded state. Idempotent.
func (r *Renderer) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseDestroyed || r.disabled {
		return
	}
	r.disabled = true
	r.surface = nil
}

// Destroy releases overlays and buffers. Terminal: subsequent Attach
// returns ErrDestroyed.
func (r *Renderer) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == PhaseDestroyed {
		return
	}
	r.phase = PhaseDestroyed
	r.surface = nil
	r.overlays = nil
	r.posts = nil
	if r.frameImg != nil {
		media.RecycleFrame(r.frameImg)
		r.frameImg = nil
	}
	r.frameBuf = nil
}

// UpdateState merges a partial state into the current render state and
// schedules one coalesced redraw. post, if given, runs after the draw that
// reflects the merged state.
func (r *Renderer) UpdateState(p Patch, post ...PostDrawFunc) {
	r.Update(func(st *overlay.State) {
		if p.Cursor != nil {
			st.Cursor = *p.Cursor
		}
		if p.Hovering != nil {
			st.Hovering = *p.Hovering
		}
		if p.Panning != nil {
			st.Panning = *p.Panning
		}
		if p.Scale != nil {
			st.Scale = *p.Scale
		}
		if p.Pan != nil {
			st.Pan = *p.Pan
		}
		if p.Rotation != nil {
			st.Rotation = *p.Rotation
		}
		if p.Options != nil {
			st.Options = *p.Options
		}
	}, post...)
}

// Update is the updater-function form of UpdateState.
func (r *Renderer) Update(fn func(*overlay.State), post ...PostDrawFunc) {
	apply := func() {
		r.mu.Lock()
		if r.phase == PhaseDestroyed {
			r.mu.Unlock()
			return
		}
		fn(&r.state)
		r.posts = append(r.posts, post...)
		r.mu.Unlock()
	}
	if r.sched == nil || !r.sched.post(r, apply) {
		apply()
		r.draw()
	}
}

// Zoom scales the viewport about a canvas-space anchor point.
func (r *Renderer) Zoom(factor, cx, cy float64) {
	r.Update(func(st *overlay.State) {
		if st.Scale == 0 {
			st.Scale = 1
		}
		st.Pan[0] = cx - (cx-st.Pan[0])*factor
		st.Pan[1] = cy - (cy-st.Pan[1])*factor
		st.Scale *= factor
	})
}

// Pan shifts the viewport by a pixel delta.
func (r *Renderer) Pan(dx, dy float64) {
	r.Update(func(st *overlay.State) {
		st.Pan[0] += dx
		st.Pan[1] += dy
	})
}

// FitContent zooms to the union of all overlay bounding points, falling
// back to the full media extent when there are no overlays.
func (r *Renderer) FitContent() {
	r.Update(func(st *overlay.State) {
		r.fitToLocked(st, r.contentBoundsLocked())
	})
}

// contentBoundsLocked returns the normalized bounding rect of all overlays.
func (r *Renderer) contentBoundsLocked() [4]float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, o := range r.overlays {
		for _, p := range o.Points() {
			found = true
			minX = math.Min(minX, p[0])
			minY = math.Min(minY, p[1])
			maxX = math.Max(maxX, p[0])
			maxY = math.Max(maxY, p[1])
		}
	}
	if !found {
		return [4]float64{0, 0, 1, 1}
	}
	return [4]float64{minX, minY, maxX - minX, maxY - minY}
}

// fitLocked fills the canvas with the full media extent.
func (r *Renderer) fitLocked() {
	r.fitToLocked(&r.state, [4]float64{0, 0, 1, 1})
}

func (r *Renderer) fitToLocked(st *overlay.State, rect [4]float64) {
	iw, ih := st.ImageWidth, st.ImageHeight
	if iw <= 0 || ih <= 0 || st.Width <= 0 || st.Height <= 0 {
		st.Scale = 1
		return
	}
	w := rect[2] * iw
	h := rect[3] * ih
	if w <= 0 || h <= 0 {
		st.Scale = 1
		return
	}
	scale := math.Min(st.Width/w, st.Height/h)
	st.Scale = scale
	st.Pan[0] = -rect[0]*iw*scale + (st.Width-w*scale)/2
	st.Pan[1] = -rect[1]*ih*scale + (st.Height-h*scale)/2
}

// Play starts the playback axis for video media. No-op for other media.
func (r *Renderer) Play() {
	r.mu.Lock()
	if r.sample == nil || r.sample.MediaType != label.MediaVideo || r.phase == PhaseDestroyed {
		r.mu.Unlock()
		return
	}
	r.play = PlayPlaying
	r.mu.Unlock()
	r.schedule()
}

// Pause halts playback, keeping the current frame.
func (r *Renderer) Pause() {
	r.mu.Lock()
	if r.play == PlayPlaying {
		r.play = PlayPaused
	}
	r.mu.Unlock()
}

// Seek jumps to a frame; the renderer reports seeking until the draw that
// reflects the new frame completes, then returns to its prior play state.
func (r *Renderer) Seek(frame int) {
	r.mu.Lock()
	if r.sample == nil || r.sample.MediaType != label.MediaVideo || r.phase == PhaseDestroyed {
		r.mu.Unlock()
		return
	}
	if frame < 0 {
		frame = 0
	}
	if r.frameCount > 0 && frame >= r.frameCount {
		frame = r.frameCount - 1
	}
	if r.play != PlaySeeking {
		r.prePlay = r.play
	}
	r.play = PlaySeeking
	r.frame = frame
	r.mu.Unlock()
	r.schedule()
}

// Frame returns the current video frame index.
func (r *Renderer) Frame() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

// Playback returns the playback axis state.
func (r *Renderer) Playback() PlayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.play
}

// SelectAt resolves the overlay under a cursor position: lowest mouse
// distance wins, ties go to the most recently drawn overlay.
func (r *Renderer) SelectAt(cursor [2]float64) (overlay.SelectData, bool) {
	r.mu.Lock()
	st := r.state
	overlays := r.overlays
	r.mu.Unlock()
	st.Cursor = cursor

	var best overlay.Overlay
	bestDist := math.Inf(1)
	for _, o := range overlays {
		if o.ContainsPoint(&st) == overlay.None {
			continue
		}
		if d := o.MouseDistance(&st); d <= bestDist {
			best, bestDist = o, d
		}
	}
	if best == nil {
		return overlay.SelectData{}, false
	}
	return best.SelectData(&st)
}

// SizeBytes estimates the renderer's resident footprint for eviction
// accounting: decoded media plus every overlay's own estimate.
func (r *Renderer) SizeBytes() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(512)
	if r.frameImg != nil {
		n += int64(len(r.frameImg.Pix))
		// The ImageBuf copy doubles the frame.
		n += int64(len(r.frameImg.Pix))
	}
	for _, o := range r.overlays {
		n += int64(o.SizeBytes())
	}
	return n
}

func (r *Renderer) schedule() {
	if r.sched == nil || !r.sched.post(r, func() {}) {
		r.draw()
	}
}

// draw composes the media frame and all overlays onto the attached surface.
// A panicking or failing overlay is logged and skipped; the rest of the
// frame still renders.
func (r *Renderer) draw() {
	r.mu.Lock()
	if r.phase == PhaseDestroyed || r.disabled || r.surface == nil {
		r.posts = nil
		r.mu.Unlock()
		return
	}
	dc := r.surface.DC
	st := r.state
	overlays := r.overlays
	posts := r.posts
	r.posts = nil
	frame := r.frameBuf
	r.mu.Unlock()

	dc.Clear()
	if frame != nil {
		x0, y0 := st.ToPixel(0, 0)
		x1, y1 := st.ToPixel(1, 1)
		dc.DrawImageEx(frame, gg.DrawImageOptions{
			X: x0, Y: y0,
			DstWidth:  x1 - x0,
			DstHeight: y1 - y0,
		})
	}
	for _, o := range overlays {
		r.drawOverlay(dc, &st, o)
	}

	r.mu.Lock()
	r.draws++
	if r.play == PlaySeeking {
		r.play = r.prePlay
	}
	r.mu.Unlock()

	for _, post := range posts {
		post(dc, &st, overlays)
	}
}

func (r *Renderer) drawOverlay(dc *gg.Context, st *overlay.State, o overlay.Overlay) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Error("overlay draw panic",
				"renderer", r.id,
				"field", o.Field(),
				"error", rec,
				"stack", string(debug.Stack()))
		}
	}()
	if err := o.Draw(dc, st); err != nil && r.logger != nil {
		r.logger.Warn("overlay draw failed", "renderer", r.id, "field", o.Field(), "error", err)
	}
}
