package overlay

import (
	"math"
	"strconv"

	"github.com/gridlook/gridlook/label"
)

// defaultColor is used when no color function has been supplied.
const defaultColor = "#ff6d04"

// Fixed pixel sizes for label chrome. The header region doubles as the
// BORDER hit target for hover-to-edit interactions.
const (
	headerHeight = 20.0
	chipPad      = 4.0
	chipGap      = 3.0
	pointRadius  = 6.0
)

// Options is the nested options bag of a render state. UpdateState replaces
// it wholesale; overlays only ever read it.
type Options struct {
	// ActiveFields lists visible label fields in activation order. A nil
	// slice means every field is active.
	ActiveFields []string
	// Filter is the externally supplied visibility predicate per field path.
	Filter label.Filter
	// Color assigns colors; deterministic per key within a session.
	Color label.ColorFunc
	// ColorBy selects the color key: "field" (default) or "label".
	ColorBy string
	// ConfidenceRange, when non-nil, hides labels whose confidence falls
	// outside [min, max]. Labels without a confidence always pass.
	ConfidenceRange *[2]float64
	ShowLabel       bool
	ShowConfidence  bool
	// Selected marks label ids rendered with selection styling.
	Selected map[string]bool
	// Alpha is the mask tint opacity; zero means the default.
	Alpha    float64
	FontSize float64
}

// State is the per-renderer viewport/selection/filter state read by draw and
// hit-test operations. Overlays never mutate it.
type State struct {
	Cursor   [2]float64
	Hovering bool
	Panning  bool

	// Canvas bounding box in pixels.
	Width, Height float64
	// Media dimensions in pixels.
	ImageWidth, ImageHeight float64

	// Viewport transform: normalized coordinates are scaled to image pixels,
	// then scaled and panned. Rotation is applied about the canvas center.
	Scale    float64
	Pan      [2]float64
	Rotation float64

	Options Options
}

// ToPixel maps a normalized [0,1] coordinate into canvas pixel space using
// the current viewport transform.
func (s *State) ToPixel(x, y float64) (float64, float64) {
	scale := s.Scale
	if scale == 0 {
		scale = 1
	}
	px := x*s.ImageWidth*scale + s.Pan[0]
	py := y*s.ImageHeight*scale + s.Pan[1]
	if s.Rotation != 0 {
		cx, cy := s.Width/2, s.Height/2
		sin, cos := math.Sincos(s.Rotation)
		px, py = cx+(px-cx)*cos-(py-cy)*sin, cy+(px-cx)*sin+(py-cy)*cos
	}
	return px, py
}

// FieldActive reports whether a field is part of the active set.
func (s *State) FieldActive(field string) bool {
	if s.Options.ActiveFields == nil {
		return true
	}
	for _, f := range s.Options.ActiveFields {
		if f == field {
			return true
		}
	}
	return false
}

// Visible applies the active-field set, the external filter predicate and
// the confidence range to one label.
func (s *State) Visible(field string, l label.Label) bool {
	if !s.FieldActive(field) {
		return false
	}
	if f := s.Options.Filter; f != nil && !f(field, l) {
		return false
	}
	if r := s.Options.ConfidenceRange; r != nil && l.HasConfidence {
		if l.Confidence < r[0] || l.Confidence > r[1] {
			return false
		}
	}
	return true
}

// ColorFor resolves the color for one label via the external color function.
func (s *State) ColorFor(field string, l label.Label) string {
	key := field
	if s.Options.ColorBy == "label" && l.Label != "" {
		key = l.Label
	}
	if s.Options.Color == nil {
		return defaultColor
	}
	if c := s.Options.Color(key); c != "" {
		return c
	}
	return defaultColor
}

// Selected reports whether a label id carries selection styling.
func (s *State) Selected(id string) bool {
	return s.Options.Selected[id]
}

// MaskAlpha returns the mask tint opacity for the given selection state.
func (s *State) MaskAlpha(selected bool) float64 {
	alpha := s.Options.Alpha
	if alpha <= 0 {
		alpha = 0.45
	}
	if selected {
		alpha = math.Min(1, alpha+0.25)
	}
	return alpha
}

func (s *State) fontSize() float64 {
	if s.Options.FontSize > 0 {
		return s.Options.FontSize
	}
	return 12
}

// chipText builds the text shown in a label chip, honoring the label and
// confidence display toggles. Confidence is formatted to two decimals.
func chipText(s *State, l label.Label) string {
	var text string
	if s.Options.ShowLabel && l.Label != "" {
		text = l.Label
	}
	if s.Options.ShowConfidence && l.HasConfidence {
		if text != "" {
			text += " "
		}
		text += strconv.FormatFloat(l.Confidence, 'f', 2, 64)
	}
	return text
}

// chipWidth estimates the pixel width of a chip. The estimate is also used
// for hit testing, which has no drawing context to measure against.
func chipWidth(text string, fontSize float64) float64 {
	if text == "" {
		return 0
	}
	return float64(len(text))*fontSize*0.6 + 2*chipPad
}

func dist(x1, y1, x2, y2 float64) float64 {
	return math.Hypot(x2-x1, y2-y1)
}

// segmentDistance returns the distance from point p to segment ab.
func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return dist(px, py, ax, ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return dist(px, py, ax+t*dx, ay+t*dy)
}

// pointInPolygon runs a ray cast over one vertex chain in pixel space.
func pointInPolygon(px, py float64, poly [][2]float64) bool {
	inside := false
	n := len(poly)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := poly[i][0], poly[i][1]
		xj, yj := poly[j][0], poly[j][1]
		if (yi > py) != (yj > py) && px < (xj-xi)*(py-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}
