package looker

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/mask"
	"github.com/gridlook/gridlook/overlay"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testSample(id string) *label.Sample {
	return &label.Sample{
		ID:        id,
		Filepath:  "/data/" + id + ".png",
		MediaType: label.MediaImage,
		Metadata:  label.Metadata{Width: 200, Height: 100},
		Fields: map[string][]label.Label{
			"ground_truth": {
				{Kind: label.KindDetection, ID: id + "-d1", Label: "cat", Box: [4]float64{0.1, 0.1, 0.2, 0.3}},
			},
		},
	}
}

func testSurface(w, h int) *Surface {
	return &Surface{DC: gg.NewContext(w, h)}
}

func TestAttachValidation(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)

	var ae *AttachError
	if err := r.Attach(nil, 100, 100); !errors.As(err, &ae) {
		t.Fatalf("nil surface error = %v", err)
	}
	if err := r.Attach(testSurface(10, 10), 0, 100); !errors.As(err, &ae) {
		t.Fatalf("zero-size error = %v", err)
	}
	// Renderer stays usable after failed attaches.
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
}

func TestDisableIdempotent(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.Disable()
	first := r.State()
	r.Disable()
	if !r.Disabled() {
		t.Fatal("expected disabled")
	}
	second := r.State()
	if second.Scale != first.Scale || second.Pan != first.Pan ||
		second.Cursor != first.Cursor || second.Width != first.Width ||
		second.Height != first.Height {
		t.Fatalf("double disable changed state: %+v vs %+v", first, second)
	}
}

func TestDestroyTerminal(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.Disable()
	r.Destroy()
	if r.Phase() != PhaseDestroyed {
		t.Fatalf("phase = %v", r.Phase())
	}
	if got := r.Overlays(); got != nil {
		t.Fatalf("overlays not released: %d", len(got))
	}
	if err := r.Attach(testSurface(100, 100), 100, 100); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("attach after destroy = %v, want ErrDestroyed", err)
	}
}

func segSample(id string) *label.Sample {
	buf := &mask.Buffer{ElemSize: 1, Shape: [2]int{8, 8}, Data: make([]byte, 64)}
	for i := range buf.Data {
		buf.Data[i] = 1
	}
	payload, err := mask.Encode(buf)
	if err != nil {
		panic(err)
	}
	return &label.Sample{
		ID:       id,
		Metadata: label.Metadata{Width: 80, Height: 80},
		Fields: map[string][]label.Label{
			"seg": {{Kind: label.KindSegmentation, ID: id + "-g1", Mask: payload}},
		},
	}
}

// Scrolling out and back within the disable grace window must reuse the
// renderer's decoded state: same overlay instances, no fresh decode.
func TestDisableReattachReusesDecodedState(t *testing.T) {
	r := New("s1", segSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(80, 80), 80, 80); err != nil {
		t.Fatalf("attach: %v", err)
	}
	before := r.Overlays()
	if len(before) != 1 {
		t.Fatalf("overlays = %d", len(before))
	}

	r.Disable()
	if err := r.Attach(testSurface(80, 80), 80, 80); err != nil {
		t.Fatalf("re-attach: %v", err)
	}
	after := r.Overlays()
	if len(after) != 1 || after[0] != before[0] {
		t.Fatal("re-attach rebuilt overlays instead of reusing them")
	}
}

func TestUpdateStateMergesAndReplacesOptions(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	scale := 2.5
	r.UpdateState(Patch{Scale: &scale})
	hov := true
	r.UpdateState(Patch{Hovering: &hov, Options: &overlay.Options{ShowLabel: true}})

	st := r.State()
	if st.Scale != 2.5 || !st.Hovering {
		t.Fatalf("merged state = %+v", st)
	}
	if !st.Options.ShowLabel {
		t.Fatal("options not replaced")
	}
	// Options replacement is wholesale: a second patch without ShowLabel
	// drops it.
	r.UpdateState(Patch{Options: &overlay.Options{ShowConfidence: true}})
	if st := r.State(); st.Options.ShowLabel || !st.Options.ShowConfidence {
		t.Fatalf("options = %+v, want wholesale replacement", st.Options)
	}
}

func TestPostDrawCallback(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	called := 0
	scale := 3.0
	r.UpdateState(Patch{Scale: &scale}, func(dc *gg.Context, st *overlay.State, overlays []overlay.Overlay) {
		called++
		if st.Scale != 3.0 {
			t.Errorf("post-draw state scale = %v", st.Scale)
		}
		if dc == nil || len(overlays) != 1 {
			t.Errorf("post-draw context/overlays missing")
		}
	})
	if called != 1 {
		t.Fatalf("post-draw callback ran %d times", called)
	}
}

type panicOverlay struct{}

func (panicOverlay) Field() string                                        { return "boom" }
func (panicOverlay) Draw(*gg.Context, *overlay.State) error               { panic("malformed label") }
func (panicOverlay) ContainsPoint(*overlay.State) overlay.PointLocation   { return overlay.None }
func (panicOverlay) MouseDistance(*overlay.State) float64                 { return 0 }
func (panicOverlay) Points() [][2]float64                                 { return nil }
func (panicOverlay) SelectData(*overlay.State) (overlay.SelectData, bool) { return overlay.SelectData{}, false }
func (panicOverlay) SizeBytes() int                                       { return 0 }

func TestOverlayPanicDoesNotBlankFrame(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	// One malformed overlay in front of a healthy one.
	r.mu.Lock()
	r.overlays = append([]overlay.Overlay{panicOverlay{}}, r.overlays...)
	r.mu.Unlock()

	before := r.Draws()
	r.Update(func(st *overlay.State) {})
	if r.Draws() != before+1 {
		t.Fatal("draw did not complete after overlay panic")
	}
}

func TestSelectAtTieBreaksToMostRecentlyDrawn(t *testing.T) {
	s := testSample("s1")
	// Two identical boxes: equal distance everywhere they overlap.
	s.Fields["ground_truth"] = append(s.Fields["ground_truth"], label.Label{
		Kind: label.KindDetection, ID: "s1-d2", Label: "dog", Box: [4]float64{0.1, 0.1, 0.2, 0.3},
	})
	r := New("s1", s, discardLogger, nil)
	if err := r.Attach(testSurface(200, 100), 200, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	one := 1.0
	r.UpdateState(Patch{Scale: &one, Pan: &[2]float64{0, 0}})

	sd, ok := r.SelectAt([2]float64{40, 25})
	if !ok {
		t.Fatal("expected a hit")
	}
	if sd.ID != "s1-d2" {
		t.Fatalf("tie resolved to %s, want s1-d2 (most recently drawn)", sd.ID)
	}
}

func TestVideoPlaybackAxis(t *testing.T) {
	s := testSample("v1")
	s.MediaType = label.MediaVideo
	s.Metadata.FrameRate = 30
	r := New("v1", s, discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if r.Playback() != PlayPaused {
		t.Fatalf("initial playback = %v", r.Playback())
	}
	r.Play()
	if r.Playback() != PlayPlaying {
		t.Fatalf("playback = %v, want playing", r.Playback())
	}
	r.Seek(10)
	// Synchronous mode draws immediately, so seeking resolves back to the
	// prior play state.
	if r.Playback() != PlayPlaying {
		t.Fatalf("playback after seek draw = %v, want playing", r.Playback())
	}
	if r.Frame() != 10 {
		t.Fatalf("frame = %d", r.Frame())
	}
	r.Pause()
	if r.Playback() != PlayPaused {
		t.Fatalf("playback = %v, want paused", r.Playback())
	}
}

func TestFitContentCentersOverlayBounds(t *testing.T) {
	r := New("s1", testSample("s1"), discardLogger, nil)
	if err := r.Attach(testSurface(100, 100), 100, 100); err != nil {
		t.Fatalf("attach: %v", err)
	}
	r.FitContent()
	st := r.State()
	if st.Scale <= 0 {
		t.Fatalf("scale = %v", st.Scale)
	}
	// The box's normalized bounds [0.1 0.1 0.2 0.3] must map inside the
	// canvas after fitting.
	x0, y0 := st.ToPixel(0.1, 0.1)
	x1, y1 := st.ToPixel(0.3, 0.4)
	if x0 < -1 || y0 < -1 || x1 > 101 || y1 > 101 {
		t.Fatalf("fit bounds escape canvas: (%v,%v)-(%v,%v)", x0, y0, x1, y1)
	}
}
