package overlay

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
)

// Keypoint renders an ordered set of points as filled dots. A point hits
// when the cursor falls within a fixed pixel radius of any dot.
type Keypoint struct {
	field string
	lab   label.Label
}

func newKeypoint(field string, l label.Label) *Keypoint {
	return &Keypoint{field: field, lab: l}
}

func (k *Keypoint) Field() string { return k.field }

func (k *Keypoint) Draw(dc *gg.Context, st *State) error {
	if !st.Visible(k.field, k.lab) {
		return nil
	}
	selected := st.Selected(k.lab.ID)
	dc.SetHexColor(st.ColorFor(k.field, k.lab))
	r := pointRadius
	if selected {
		r += 2
	}
	for _, p := range k.lab.Points {
		x, y := st.ToPixel(p[0], p[1])
		dc.DrawCircle(x, y, r)
		if err := dc.Fill(); err != nil {
			return err
		}
		if selected {
			dc.SetRGB(1, 1, 1)
			dc.SetLineWidth(1.5)
			dc.DrawCircle(x, y, r)
			if err := dc.Stroke(); err != nil {
				return err
			}
			dc.SetHexColor(st.ColorFor(k.field, k.lab))
		}
	}
	return nil
}

func (k *Keypoint) ContainsPoint(st *State) PointLocation {
	if !st.Visible(k.field, k.lab) {
		return None
	}
	if k.MouseDistance(st) <= pointRadius {
		return Content
	}
	return None
}

func (k *Keypoint) MouseDistance(st *State) float64 {
	if !st.Visible(k.field, k.lab) {
		return math.Inf(1)
	}
	best := math.Inf(1)
	for _, p := range k.lab.Points {
		x, y := st.ToPixel(p[0], p[1])
		best = math.Min(best, dist(st.Cursor[0], st.Cursor[1], x, y))
	}
	return best
}

// Points returns the corners of the axis-aligned bounds of the point set.
func (k *Keypoint) Points() [][2]float64 {
	if len(k.lab.Points) == 0 {
		return nil
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range k.lab.Points {
		minX = math.Min(minX, p[0])
		minY = math.Min(minY, p[1])
		maxX = math.Max(maxX, p[0])
		maxY = math.Max(maxY, p[1])
	}
	return [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

func (k *Keypoint) SelectData(st *State) (SelectData, bool) {
	if k.ContainsPoint(st) == None {
		return SelectData{}, false
	}
	return SelectData{ID: k.lab.ID, Field: k.field}, true
}

func (k *Keypoint) SizeBytes() int {
	return 16*len(k.lab.Points) + 128
}
