package overlay

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
)

// Polyline renders one or more vertex chains, optionally closed and filled.
// A filled polyline hit-tests its interior; the header chip near the first
// vertex reports BORDER.
type Polyline struct {
	field string
	lab   label.Label
}

func newPolyline(field string, l label.Label) *Polyline {
	return &Polyline{field: field, lab: l}
}

func (p *Polyline) Field() string { return p.field }

func (p *Polyline) headerRect(st *State) (x, y, w, h float64) {
	if len(p.lab.Paths) == 0 || len(p.lab.Paths[0]) == 0 {
		return 0, 0, 0, 0
	}
	first := p.lab.Paths[0][0]
	px, py := st.ToPixel(first[0], first[1])
	w = chipWidth(chipText(st, p.lab), st.fontSize())
	return px, py - headerHeight, w, headerHeight
}

func (p *Polyline) Draw(dc *gg.Context, st *State) error {
	if !st.Visible(p.field, p.lab) {
		return nil
	}
	selected := st.Selected(p.lab.ID)
	fill := st.ColorFor(p.field, p.lab)

	for _, path := range p.lab.Paths {
		if len(path) == 0 {
			continue
		}
		dc.ClearPath()
		x, y := st.ToPixel(path[0][0], path[0][1])
		dc.MoveTo(x, y)
		for _, v := range path[1:] {
			x, y = st.ToPixel(v[0], v[1])
			dc.LineTo(x, y)
		}
		if p.lab.Closed {
			dc.ClosePath()
		}
		if p.lab.Filled && p.lab.Closed {
			dc.SetHexColor(fill)
			if err := dc.FillPreserve(); err != nil {
				return err
			}
		}
		dc.SetHexColor(fill)
		dc.SetLineWidth(2)
		if selected {
			dc.SetDash(6, 4)
		}
		if err := dc.Stroke(); err != nil {
			return err
		}
		dc.ClearDash()
	}

	if text := chipText(st, p.lab); text != "" {
		hx, hy, hw, _ := p.headerRect(st)
		drawChip(dc, st, hx, hy, hw, text, fill, selected)
	}
	return nil
}

func (p *Polyline) ContainsPoint(st *State) PointLocation {
	if !st.Visible(p.field, p.lab) {
		return None
	}
	cx, cy := st.Cursor[0], st.Cursor[1]
	if hx, hy, hw, hh := p.headerRect(st); hw > 0 && cx >= hx && cx <= hx+hw && cy >= hy && cy <= hy+hh {
		return Border
	}
	if p.lab.Closed && p.lab.Filled {
		for _, path := range p.lab.Paths {
			poly := make([][2]float64, len(path))
			for i, v := range path {
				x, y := st.ToPixel(v[0], v[1])
				poly[i] = [2]float64{x, y}
			}
			if pointInPolygon(cx, cy, poly) {
				return Content
			}
		}
	}
	if p.MouseDistance(st) <= 3 {
		return Content
	}
	return None
}

func (p *Polyline) MouseDistance(st *State) float64 {
	if !st.Visible(p.field, p.lab) {
		return math.Inf(1)
	}
	cx, cy := st.Cursor[0], st.Cursor[1]
	best := math.Inf(1)
	for _, path := range p.lab.Paths {
		n := len(path)
		for i := 0; i+1 < n; i++ {
			ax, ay := st.ToPixel(path[i][0], path[i][1])
			bx, by := st.ToPixel(path[i+1][0], path[i+1][1])
			best = math.Min(best, segmentDistance(cx, cy, ax, ay, bx, by))
		}
		if p.lab.Closed && n > 2 {
			ax, ay := st.ToPixel(path[n-1][0], path[n-1][1])
			bx, by := st.ToPixel(path[0][0], path[0][1])
			best = math.Min(best, segmentDistance(cx, cy, ax, ay, bx, by))
		}
	}
	return best
}

func (p *Polyline) Points() [][2]float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	found := false
	for _, path := range p.lab.Paths {
		for _, v := range path {
			found = true
			minX = math.Min(minX, v[0])
			minY = math.Min(minY, v[1])
			maxX = math.Max(maxX, v[0])
			maxY = math.Max(maxY, v[1])
		}
	}
	if !found {
		return nil
	}
	return [][2]float64{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

func (p *Polyline) SelectData(st *State) (SelectData, bool) {
	if p.ContainsPoint(st) == None {
		return SelectData{}, false
	}
	return SelectData{ID: p.lab.ID, Field: p.field}, true
}

func (p *Polyline) SizeBytes() int {
	n := 128
	for _, path := range p.lab.Paths {
		n += 16 * len(path)
	}
	return n
}
