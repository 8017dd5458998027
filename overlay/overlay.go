// Package overlay implements the renderable wrappers around sample labels.
// Each label family has one variant; all variants share a uniform contract
// so the renderer can compose, hit-test and account for them without
// knowing their kind. Geometry stays in [0,1] normalized space and is
// multiplied out to pixels only at draw/hit time.
package overlay

import (
	"image"
	"image/color"
	"sort"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/mask"
)

// PointLocation classifies where the cursor sits relative to an overlay.
type PointLocation int

const (
	// None: the cursor does not touch the overlay.
	None PointLocation = iota
	// Content: the cursor is inside the overlay's shape.
	Content
	// Border: the cursor is on the fixed-size label header region.
	Border
)

// SelectData identifies the label a hover/selection point resolves to.
type SelectData struct {
	ID    string
	Field string
}

// Overlay is the uniform contract every variant satisfies.
type Overlay interface {
	// Field returns the sample field the overlay renders.
	Field() string
	// Draw renders onto the context using the state's viewport transform.
	// Labels rejected by the filter predicate or confidence range are
	// skipped inside Draw.
	Draw(dc *gg.Context, st *State) error
	// ContainsPoint classifies the cursor position in st.
	ContainsPoint(st *State) PointLocation
	// MouseDistance returns the pixel distance from the cursor to the
	// nearest edge of the shape, used to disambiguate overlapping overlays.
	MouseDistance(st *State) float64
	// Points returns the corners of the overlay's bounding geometry in
	// normalized space, recomputed per call.
	Points() [][2]float64
	// SelectData resolves the hovered label, if any.
	SelectData(st *State) (SelectData, bool)
	// SizeBytes estimates the overlay's memory footprint for cache
	// accounting, including decoded and tinted mask buffers.
	SizeBytes() int
}

// FromSample builds the overlay list for a sample in draw order:
// segmentations at the bottom, then detections, polylines, keypoints, and a
// single batched classification overlay on top. Field iteration is sorted
// so repeated builds for the same sample are deterministic.
func FromSample(s *label.Sample) []Overlay {
	if s == nil {
		return nil
	}
	fields := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	var segmentations, detections, polylines, keypoints []Overlay
	var classifications []classEntry
	for _, field := range fields {
		for _, l := range s.Fields[field] {
			switch l.Kind {
			case label.KindSegmentation:
				segmentations = append(segmentations, newSegmentation(field, l))
			case label.KindDetection:
				detections = append(detections, newDetection(field, l))
			case label.KindPolyline:
				polylines = append(polylines, newPolyline(field, l))
			case label.KindKeypoint:
				keypoints = append(keypoints, newKeypoint(field, l))
			case label.KindClassification:
				classifications = append(classifications, classEntry{field: field, lab: l})
			}
		}
	}

	out := make([]Overlay, 0, len(segmentations)+len(detections)+len(polylines)+len(keypoints)+1)
	out = append(out, segmentations...)
	out = append(out, detections...)
	out = append(out, polylines...)
	out = append(out, keypoints...)
	if len(classifications) > 0 {
		out = append(out, newClassifications(classifications))
	}
	return out
}

// fullImagePoints is returned by overlays whose bounding geometry is the
// whole media extent.
func fullImagePoints() [][2]float64 {
	return [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
}

// tintKey caches pre-tinted mask pixels per (color, selected) pair.
// Re-tinting the full mask dominates redraw cost, so the tinted buffer is
// kept until either input changes.
type tintKey struct {
	color    string
	selected bool
}

// tintMask builds an RGBA image where every non-zero mask element takes the
// given color at full opacity; overall transparency is applied at draw time.
func tintMask(buf *mask.Buffer, hex string) *gg.ImageBuf {
	r, g, b := parseHex(hex)
	rows, cols := buf.Shape[0], buf.Shape[1]
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if buf.At(y, x) != 0 {
				img.SetRGBA(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
			}
		}
	}
	return gg.ImageBufFromImage(img)
}

func parseHex(s string) (r, g, b uint8) {
	if len(s) != 7 || s[0] != '#' {
		return 0xff, 0x6d, 0x04
	}
	hex := func(c byte) uint8 {
		switch {
		case c >= '0' && c <= '9':
			return c - '0'
		case c >= 'a' && c <= 'f':
			return c - 'a' + 10
		case c >= 'A' && c <= 'F':
			return c - 'A' + 10
		}
		return 0
	}
	r = hex(s[1])<<4 | hex(s[2])
	g = hex(s[3])<<4 | hex(s[4])
	b = hex(s[5])<<4 | hex(s[6])
	return r, g, b
}

// drawChip paints one filled text chip with its top-left corner at (x, y)
// and returns the chip width actually used.
func drawChip(dc *gg.Context, st *State, x, y, w float64, text, fill string, selected bool) float64 {
	if w <= 0 {
		return 0
	}
	dc.SetHexColor(fill)
	dc.DrawRectangle(x, y, w, headerHeight)
	_ = dc.Fill()
	if selected {
		dc.SetLineWidth(1)
		dc.SetDash(3, 2)
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(x, y, w, headerHeight)
		_ = dc.Stroke()
		dc.ClearDash()
	}
	if text != "" {
		dc.SetRGB(1, 1, 1)
		dc.DrawStringAnchored(text, x+chipPad, y+headerHeight/2, 0, 0.5)
	}
	return w
}
