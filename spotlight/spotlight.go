package spotlight

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gridlook/gridlook/cache"
	"github.com/gridlook/gridlook/config"
	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/looker"
	"github.com/gridlook/gridlook/overlay"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("spotlight: engine closed")

// SurfaceProvider supplies concrete draw targets for cells entering the
// viewport and reclaims them when cells leave. Implementations must not
// call back into the engine.
type SurfaceProvider interface {
	AcquireSurface(id string, width, height int) (*looker.Surface, error)
	ReleaseSurface(id string)
}

// MediaLoader loads a sample's media pixels at cell resolution.
type MediaLoader func(s *label.Sample, maxW, maxH int) (*image.RGBA, error)

// Options configures an engine instance. Source and Surfaces are required.
type Options struct {
	Source    DataSource
	Surfaces  SurfaceProvider
	Config    *config.Config
	Logger    *slog.Logger
	Scheduler *looker.Scheduler
	LoadMedia MediaLoader
	// Render is the base options bag handed to every renderer.
	Render overlay.Options
}

// Metrics is a point-in-time snapshot of engine behaviour.
type Metrics struct {
	PagesResident     int
	ItemsResident     int
	RenderersLive     int
	RenderersDisabled int
	BytesDisabled     int64
	Evictions         uint64
	Fetches           uint64
	FetchErrors       uint64
}

// Spotlight renders only the subset of an unbounded collection that
// intersects the scroll viewport. Every shared structure (page window,
// renderer pool) belongs to the instance and dies with Close; there are no
// module-level singletons.
type Spotlight struct {
	mu sync.Mutex

	cfg       *config.Config
	src       DataSource
	surfaces  SurfaceProvider
	logger    *slog.Logger
	sched     *looker.Scheduler
	loadMedia MediaLoader
	render    overlay.Options

	pages      *lru.Cache[string, *Page]
	pageTokens []string
	next       string
	started    bool
	done       bool

	items     map[string]Item
	order     []Item
	rows      []Row
	renderers map[string]*looker.Renderer
	pool      *cache.BudgetLRU[string]

	width, height int
	scrollTop     float64
	resizing      bool
	resizeTimer   *time.Timer

	epoch       uint64
	closed      bool
	fetches     uint64
	fetchErrors uint64
}

// New constructs an engine. The page window and renderer pool are created
// here and torn down by Close.
func New(opts Options) (*Spotlight, error) {
	if opts.Source == nil {
		return nil, errors.New("spotlight: nil data source")
	}
	if opts.Surfaces == nil {
		return nil, errors.New("spotlight: nil surface provider")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()

	s := &Spotlight{
		cfg:       cfg,
		src:       opts.Source,
		surfaces:  opts.Surfaces,
		logger:    opts.Logger,
		sched:     opts.Scheduler,
		loadMedia: opts.LoadMedia,
		render:    opts.Render,
		items:     make(map[string]Item),
		renderers: make(map[string]*looker.Renderer),
	}
	// Destroying an evicted renderer reclaims its decoded buffers; disable
	// alone is not enough once the byte budget is exceeded. The callback
	// runs under s.mu (every pool call site holds it).
	s.pool = cache.New[string](cfg.MemoryBudgetBytes, func(id string, cost int64) {
		if r, ok := s.renderers[id]; ok {
			delete(s.renderers, id)
			r.Destroy()
			s.surfaces.ReleaseSurface(id)
		}
	})

	var err error
	s.pages, err = lru.NewWithEvict[string, *Page](cfg.MaxResidentPages, func(token string, p *Page) {
		s.dropPageLocked(p)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// dropPageLocked removes an evicted page's items and renderers. Called from
// the page-window eviction hook, which only fires under s.mu.
func (s *Spotlight) dropPageLocked(p *Page) {
	for _, it := range p.Items {
		if r, ok := s.renderers[it.ID]; ok {
			delete(s.renderers, it.ID)
			r.Destroy()
			s.surfaces.ReleaseSurface(it.ID)
		}
		s.pool.Remove(it.ID)
		delete(s.items, it.ID)
	}
}

// FetchNext fetches the next page and folds it into the resident window.
// Returns the number of items added; zero with nil error once the
// collection is exhausted. A failed fetch leaves the current window
// untouched. A result that arrives after Reset or Close is discarded.
func (s *Spotlight) FetchNext(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if s.started && s.done {
		s.mu.Unlock()
		return 0, nil
	}
	token := s.next
	epoch := s.epoch
	s.mu.Unlock()

	page, err := s.src.Get(ctx, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || epoch != s.epoch {
		// The window this fetch belonged to no longer exists.
		return 0, nil
	}
	s.fetches++
	if err != nil {
		s.fetchErrors++
		return 0, &FetchError{Token: token, Err: err}
	}
	s.started = true
	s.pages.Add(token, page)
	s.pageTokens = append(s.pageTokens, token)
	s.next = page.Next
	s.done = page.Next == ""
	s.rebuildOrderLocked()
	s.reflowLocked()
	s.updateVisibleLocked()
	return len(page.Items), nil
}

func (s *Spotlight) rebuildOrderLocked() {
	s.order = s.order[:0]
	kept := s.pageTokens[:0]
	for _, token := range s.pageTokens {
		p, ok := s.pages.Peek(token)
		if !ok {
			continue
		}
		kept = append(kept, token)
		for _, it := range p.Items {
			s.items[it.ID] = it
			s.order = append(s.order, it)
		}
	}
	s.pageTokens = kept
}

func (s *Spotlight) reflowLocked() {
	s.rows = packRows(s.order, float64(s.width), s.cfg.ZoomLevel, s.cfg.Spacing)
}

// SetViewport applies the initial viewport dimensions without debounce.
func (s *Spotlight) SetViewport(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.width, s.height = width, height
	s.reflowLocked()
	s.updateVisibleLocked()
}

// Resize suspends rendering, debounces, then reflows every row. Stale
// layout metrics never survive a resize.
func (s *Spotlight) Resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resizing = true
	s.width, s.height = width, height
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
	}
	debounce := time.Duration(s.cfg.ResizeDebounceMillis) * time.Millisecond
	s.resizeTimer = time.AfterFunc(debounce, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.resizing = false
		s.reflowLocked()
		s.updateVisibleLocked()
	})
}

// Resizing reports whether the engine is between a resize and its rebuild.
func (s *Spotlight) Resizing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resizing
}

// ScrollTo moves the viewport top and refreshes cell lifecycle. Soft marks
// a fast-scroll placeholder pass: cells without a live renderer are left
// unrendered instead of paying construction cost mid-fling.
func (s *Spotlight) ScrollTo(top float64, soft bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.resizing {
		return
	}
	if top < 0 {
		top = 0
	}
	if maxTop := totalHeight(s.rows) - float64(s.height); maxTop > 0 && top > maxTop {
		top = maxTop
	}
	s.scrollTop = top
	s.updateVisibleSoftLocked(soft)
}

func (s *Spotlight) updateVisibleLocked() {
	s.updateVisibleSoftLocked(false)
}

// updateVisibleSoftLocked attaches renderers for cells intersecting the
// viewport (plus one viewport of margin) and disables the rest.
func (s *Spotlight) updateVisibleSoftLocked(soft bool) {
	if s.width <= 0 || s.height <= 0 {
		return
	}
	margin := float64(s.height)
	top := s.scrollTop - margin
	bottom := s.scrollTop + float64(s.height) + margin

	visible := make(map[string]struct{})
	for _, row := range s.rows {
		if row.Top+row.Height < top {
			continue
		}
		if row.Top > bottom {
			break
		}
		for _, cell := range row.Cells {
			visible[cell.ID] = struct{}{}
			s.renderCellLocked(cell, soft)
		}
	}
	for id, r := range s.renderers {
		if _, ok := visible[id]; ok {
			continue
		}
		if !r.Disabled() && r.Phase() != looker.PhaseDestroyed {
			s.disableLocked(id, r)
		}
	}
}

func (s *Spotlight) renderCellLocked(cell Cell, soft bool) {
	w, h := int(cell.W), int(cell.H)
	if w <= 0 || h <= 0 {
		return
	}
	r, ok := s.renderers[cell.ID]
	if !ok {
		if soft {
			return
		}
		item, known := s.items[cell.ID]
		if !known {
			return
		}
		r = looker.New(cell.ID, item.Sample, s.logger, s.sched)
		opts := s.render
		r.UpdateState(looker.Patch{Options: &opts})
		if s.loadMedia != nil && item.Sample != nil {
			img, err := s.loadMedia(item.Sample, w, h)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("media load failed", "item", cell.ID, "error", err)
				}
			} else {
				r.SetMedia(img)
			}
		}
		s.renderers[cell.ID] = r
	}
	// A visible cell is shielded from byte-budget eviction.
	s.pool.Remove(cell.ID)

	sf, err := s.surfaces.AcquireSurface(cell.ID, w, h)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("surface acquire failed", "item", cell.ID, "error", err)
		}
		return
	}
	if err := r.Attach(sf, w, h); err != nil && s.logger != nil {
		s.logger.Warn("attach failed", "item", cell.ID, "error", err)
	}
}

func (s *Spotlight) disableLocked(id string, r *looker.Renderer) {
	r.Disable()
	s.surfaces.ReleaseSurface(id)
	// Off-screen renderers stay warm until the byte budget forces them out.
	s.pool.Put(id, r.SizeBytes())
}

// Render drives one cell's lifecycle explicitly, for hosts that own their
// scroll loop. disable suspends the cell's renderer; soft skips renderer
// construction for cells without one.
func (s *Spotlight) Render(id string, sf *looker.Surface, width, height int, soft, disable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	r, ok := s.renderers[id]
	if disable {
		if ok {
			s.disableLocked(id, r)
		}
		return nil
	}
	if !ok {
		if soft {
			return nil
		}
		item, known := s.items[id]
		if !known {
			return &FetchError{Token: id, Err: errors.New("unknown item")}
		}
		r = looker.New(id, item.Sample, s.logger, s.sched)
		opts := s.render
		r.UpdateState(looker.Patch{Options: &opts})
		if s.loadMedia != nil && item.Sample != nil {
			img, err := s.loadMedia(item.Sample, width, height)
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("media load failed", "item", id, "error", err)
				}
			} else {
				r.SetMedia(img)
			}
		}
		s.renderers[id] = r
	}
	s.pool.Remove(id)
	return r.Attach(sf, width, height)
}

// RendererFor returns the live renderer for an item, if any.
func (s *Spotlight) RendererFor(id string) (*looker.Renderer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.renderers[id]
	return r, ok
}

// Rows returns a copy of the current layout.
func (s *Spotlight) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// TotalHeight returns the scroll extent of the current layout.
func (s *Spotlight) TotalHeight() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalHeight(s.rows)
}

// Reset drops the resident window and all renderers; in-flight fetches
// that complete afterwards are discarded.
func (s *Spotlight) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.epoch++
	s.pages.Purge()
	s.pageTokens = nil
	s.order = nil
	s.rows = nil
	s.next = ""
	s.started = false
	s.done = false
	for id, r := range s.renderers {
		delete(s.renderers, id)
		r.Destroy()
		s.surfaces.ReleaseSurface(id)
	}
	s.pool.Purge()
	clear(s.items)
}

// Metrics returns a snapshot of engine state.
func (s *Spotlight) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := Metrics{
		PagesResident: s.pages.Len(),
		ItemsResident: len(s.order),
		Evictions:     s.pool.Evictions(),
		Fetches:       s.fetches,
		FetchErrors:   s.fetchErrors,
		BytesDisabled: s.pool.Used(),
	}
	for _, r := range s.renderers {
		if r.Disabled() {
			m.RenderersDisabled++
		} else {
			m.RenderersLive++
		}
	}
	return m
}

// Close tears the engine down: every renderer is destroyed and both shared
// structures (page window, renderer pool) are purged.
func (s *Spotlight) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.epoch++
	if s.resizeTimer != nil {
		s.resizeTimer.Stop()
	}
	for id, r := range s.renderers {
		delete(s.renderers, id)
		r.Destroy()
		s.surfaces.ReleaseSurface(id)
	}
	s.pool.Purge()
	s.pages.Purge()
	s.pageTokens = nil
	s.order = nil
	s.rows = nil
	clear(s.items)
}
