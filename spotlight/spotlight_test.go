package spotlight

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/gg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridlook/gridlook/config"
	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/looker"
)

var testLogger = slog.New(slog.NewTextHandler(discard{}, nil))

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func gridSample(id string) *label.Sample {
	return &label.Sample{
		ID:        id,
		Filepath:  "/data/" + id + ".png",
		MediaType: label.MediaImage,
		Metadata:  label.Metadata{Width: 160, Height: 160},
		Fields: map[string][]label.Label{
			"ground_truth": {
				{Kind: label.KindDetection, ID: id + "-d1", Label: "cat", Box: [4]float64{0.2, 0.2, 0.4, 0.4}},
			},
		},
	}
}

func gridItems(prefix string, n int) []Item {
	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, i)
		items = append(items, Item{ID: id, AspectRatio: 1, Sample: gridSample(id)})
	}
	return items
}

// memSource serves fixed pages keyed by continuation token.
type memSource struct {
	pages []*Page
}

func newMemSource(perPage, pages int) *memSource {
	src := &memSource{}
	for p := 0; p < pages; p++ {
		next := ""
		if p < pages-1 {
			next = fmt.Sprintf("p%d", p+1)
		}
		src.pages = append(src.pages, &Page{
			Items: gridItems(fmt.Sprintf("p%d", p), perPage),
			Next:  next,
		})
	}
	return src
}

func (m *memSource) Get(_ context.Context, token string) (*Page, error) {
	if token == "" {
		return m.pages[0], nil
	}
	for i := range m.pages {
		if fmt.Sprintf("p%d", i) == token {
			return m.pages[i], nil
		}
	}
	return nil, fmt.Errorf("no such page %q", token)
}

type fakeSurfaces struct {
	mu       sync.Mutex
	acquired map[string]int
	released map[string]int
}

func newFakeSurfaces() *fakeSurfaces {
	return &fakeSurfaces{acquired: make(map[string]int), released: make(map[string]int)}
}

func (f *fakeSurfaces) AcquireSurface(id string, w, h int) (*looker.Surface, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquired[id]++
	return &looker.Surface{DC: gg.NewContext(w, h)}, nil
}

func (f *fakeSurfaces) ReleaseSurface(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released[id]++
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxResidentPages = 2
	cfg.ResizeDebounceMillis = 10
	return cfg
}

func newTestEngine(t *testing.T, src DataSource, cfg *config.Config) (*Spotlight, *fakeSurfaces) {
	t.Helper()
	sf := newFakeSurfaces()
	s, err := New(Options{Source: src, Surfaces: sf, Config: cfg, Logger: testLogger})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s, sf
}

func TestPackRowsFillsViewportWidth(t *testing.T) {
	items := gridItems("a", 13)
	rows := packRows(items, 1200, 6, 4)
	require.NotEmpty(t, rows)

	// Full rows span the viewport exactly: widths plus spacing add to 1200.
	for _, row := range rows[:len(rows)-1] {
		total := 0.0
		for _, c := range row.Cells {
			total += c.W
		}
		total += 4 * float64(len(row.Cells)-1)
		assert.InDelta(t, 1200, total, 0.001)
		assert.Len(t, row.Cells, 6)
	}
	// The trailing partial row keeps full-row sizing instead of stretching
	// one item across the viewport. Heights differ only by the spacing term.
	last := rows[len(rows)-1]
	require.Len(t, last.Cells, 1)
	assert.InDelta(t, rows[0].Height, last.Height, 4)
}

func TestPackRowsBudgetScalesWithZoom(t *testing.T) {
	items := gridItems("a", 24)
	narrow := packRows(items, 1200, 3, 4)
	wide := packRows(items, 1200, 12, 4)
	assert.Len(t, narrow[0].Cells, 3)
	assert.Len(t, wide[0].Cells, 12)
	assert.Greater(t, narrow[0].Height, wide[0].Height)
}

func TestFetchNextBuildsWindow(t *testing.T) {
	s, _ := newTestEngine(t, newMemSource(4, 3), testConfig())
	s.SetViewport(1200, 200)

	n, err := s.FetchNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 1, s.Metrics().PagesResident)
	assert.Equal(t, 4, s.Metrics().ItemsResident)

	_, err = s.FetchNext(context.Background())
	require.NoError(t, err)
	_, err = s.FetchNext(context.Background())
	require.NoError(t, err)

	// Exhausted: further fetches are no-ops.
	n, err = s.FetchNext(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPageWindowEvictsOldestPage(t *testing.T) {
	s, _ := newTestEngine(t, newMemSource(4, 3), testConfig())
	s.SetViewport(1200, 200)

	for i := 0; i < 3; i++ {
		_, err := s.FetchNext(context.Background())
		require.NoError(t, err)
	}
	m := s.Metrics()
	assert.Equal(t, 2, m.PagesResident)
	assert.Equal(t, 8, m.ItemsResident)

	// Page 0 fell out of the window; its renderers are destroyed.
	_, ok := s.RendererFor("p0-0")
	assert.False(t, ok)
	rows := s.Rows()
	require.NotEmpty(t, rows)
	assert.Equal(t, "p1-0", rows[0].Cells[0].ID)
}

type failSource struct{ err error }

func (f failSource) Get(context.Context, string) (*Page, error) { return nil, f.err }

func TestFetchErrorKeepsResidentWindow(t *testing.T) {
	src := newMemSource(4, 2)
	s, _ := newTestEngine(t, src, testConfig())
	s.SetViewport(1200, 200)

	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	s.mu.Lock()
	s.src = failSource{err: errors.New("backend down")}
	s.mu.Unlock()

	_, err = s.FetchNext(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "p1", fe.Token)

	m := s.Metrics()
	assert.Equal(t, 4, m.ItemsResident)
	assert.Equal(t, uint64(1), m.FetchErrors)
}

func TestScrollDisablesOffscreenAndReusesOnReturn(t *testing.T) {
	cfg := testConfig()
	s, sf := newTestEngine(t, newMemSource(60, 1), cfg)
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	r0, ok := s.RendererFor("p0-0")
	require.True(t, ok)
	require.False(t, r0.Disabled())

	// Scroll to the bottom: the first rows leave the margin band.
	s.ScrollTo(s.TotalHeight()-200, false)
	assert.True(t, r0.Disabled())
	sf.mu.Lock()
	released := sf.released["p0-0"]
	sf.mu.Unlock()
	assert.Equal(t, 1, released)

	// Scrolling back re-attaches the same renderer, no rebuild.
	s.ScrollTo(0, false)
	r0again, ok := s.RendererFor("p0-0")
	require.True(t, ok)
	assert.Same(t, r0, r0again)
	assert.False(t, r0again.Disabled())
}

func TestSoftScrollSkipsRendererConstruction(t *testing.T) {
	s, _ := newTestEngine(t, newMemSource(60, 1), testConfig())
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	// Bottom rows were never rendered; a soft pass leaves them that way.
	s.ScrollTo(s.TotalHeight()-200, true)
	_, ok := s.RendererFor("p0-59")
	assert.False(t, ok)

	s.ScrollTo(s.TotalHeight()-200, false)
	_, ok = s.RendererFor("p0-59")
	assert.True(t, ok)
}

func TestByteBudgetDestroysDisabledRenderers(t *testing.T) {
	cfg := testConfig()
	cfg.MemoryBudgetBytes = 1 // any disabled renderer overflows immediately
	s, _ := newTestEngine(t, newMemSource(60, 1), cfg)
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	require.NotZero(t, len(s.Rows()))
	s.ScrollTo(s.TotalHeight()-200, false)

	// Disabled renderers blew the budget and were destroyed outright.
	_, ok := s.RendererFor("p0-0")
	assert.False(t, ok)
	assert.NotZero(t, s.Metrics().Evictions)
}

type gatedSource struct {
	release chan struct{}
	page    *Page
}

func (g *gatedSource) Get(_ context.Context, _ string) (*Page, error) {
	<-g.release
	return g.page, nil
}

func TestLateFetchResultDiscardedAfterReset(t *testing.T) {
	src := &gatedSource{
		release: make(chan struct{}),
		page:    &Page{Items: gridItems("p0", 4)},
	}
	s, _ := newTestEngine(t, src, testConfig())
	s.SetViewport(1200, 200)

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = s.FetchNext(context.Background())
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	s.Reset()
	close(src.release)
	<-done

	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.Metrics().ItemsResident)
}

func TestResizeDebouncesThenReflows(t *testing.T) {
	cfg := testConfig()
	cfg.ResizeDebounceMillis = 50
	s, _ := newTestEngine(t, newMemSource(24, 1), cfg)
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Rows()[0].Cells, 6)

	s.Resize(600, 200)
	assert.True(t, s.Resizing())

	deadline := time.Now().Add(time.Second)
	for s.Resizing() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.False(t, s.Resizing())
	// Half the width halves the row budget.
	assert.Len(t, s.Rows()[0].Cells, 3)
}

func TestRenderExplicitLifecycle(t *testing.T) {
	s, sf := newTestEngine(t, newMemSource(4, 1), testConfig())
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	surface, err := sf.AcquireSurface("p0-1", 300, 300)
	require.NoError(t, err)
	require.NoError(t, s.Render("p0-1", surface, 300, 300, false, false))
	r, ok := s.RendererFor("p0-1")
	require.True(t, ok)
	assert.False(t, r.Disabled())

	require.NoError(t, s.Render("p0-1", nil, 0, 0, false, true))
	assert.True(t, r.Disabled())

	// Unknown items are a fetch-shaped error, not a panic.
	err = s.Render("missing", surface, 300, 300, false, false)
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestRenderSurvivesMediaLoadFailure(t *testing.T) {
	sf := newFakeSurfaces()
	s, err := New(Options{
		Source:   newMemSource(4, 1),
		Surfaces: sf,
		Config:   testConfig(),
		Logger:   testLogger,
		LoadMedia: func(*label.Sample, int, int) (*image.RGBA, error) {
			return nil, errors.New("decode failed")
		},
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	// No viewport: items arrive without the scroll path touching them.
	_, err = s.FetchNext(context.Background())
	require.NoError(t, err)

	surface, err := sf.AcquireSurface("p0-0", 300, 300)
	require.NoError(t, err)
	require.NoError(t, s.Render("p0-0", surface, 300, 300, false, false))

	// The renderer attaches without media and draws overlays only.
	r, ok := s.RendererFor("p0-0")
	require.True(t, ok)
	assert.False(t, r.Disabled())
	assert.Equal(t, looker.PhaseLoading, r.Phase())
}

func TestCloseDestroysEverything(t *testing.T) {
	s, _ := newTestEngine(t, newMemSource(8, 1), testConfig())
	s.SetViewport(1200, 200)
	_, err := s.FetchNext(context.Background())
	require.NoError(t, err)

	r, ok := s.RendererFor("p0-0")
	require.True(t, ok)
	s.Close()
	assert.Equal(t, looker.PhaseDestroyed, r.Phase())

	_, err = s.FetchNext(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
