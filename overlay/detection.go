package overlay

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/mask"
)

// Detection renders one bounding-box label: a stroked rectangle (dashed when
// selected), an optional header chip with label and confidence, and an
// optional instance mask tinted with the assigned color.
type Detection struct {
	field string
	lab   label.Label

	maskBuf *mask.Buffer
	maskErr error
	decoded bool
	tinted  map[tintKey]*gg.ImageBuf
}

func newDetection(field string, l label.Label) *Detection {
	return &Detection{field: field, lab: l}
}

func (d *Detection) Field() string { return d.field }

// pixelBox returns the box corners in canvas pixel space.
func (d *Detection) pixelBox(st *State) (x0, y0, x1, y1 float64) {
	b := d.lab.Box
	x0, y0 = st.ToPixel(b[0], b[1])
	x1, y1 = st.ToPixel(b[0]+b[2], b[1]+b[3])
	return x0, y0, x1, y1
}

func (d *Detection) headerRect(st *State) (x, y, w, h float64) {
	x0, y0, _, _ := d.pixelBox(st)
	w = chipWidth(chipText(st, d.lab), st.fontSize())
	return x0, y0 - headerHeight, w, headerHeight
}

func (d *Detection) ContainsPoint(st *State) PointLocation {
	if !st.Visible(d.field, d.lab) {
		return None
	}
	cx, cy := st.Cursor[0], st.Cursor[1]
	if hx, hy, hw, hh := d.headerRect(st); hw > 0 && cx >= hx && cx <= hx+hw && cy >= hy && cy <= hy+hh {
		return Border
	}
	x0, y0, x1, y1 := d.pixelBox(st)
	if cx >= x0 && cx <= x1 && cy >= y0 && cy <= y1 {
		return Content
	}
	return None
}

func (d *Detection) MouseDistance(st *State) float64 {
	if !st.Visible(d.field, d.lab) {
		return math.Inf(1)
	}
	x0, y0, x1, y1 := d.pixelBox(st)
	cx, cy := st.Cursor[0], st.Cursor[1]
	return math.Min(
		math.Min(segmentDistance(cx, cy, x0, y0, x1, y0), segmentDistance(cx, cy, x1, y0, x1, y1)),
		math.Min(segmentDistance(cx, cy, x1, y1, x0, y1), segmentDistance(cx, cy, x0, y1, x0, y0)),
	)
}

func (d *Detection) Points() [][2]float64 {
	b := d.lab.Box
	return [][2]float64{
		{b[0], b[1]},
		{b[0] + b[2], b[1]},
		{b[0] + b[2], b[1] + b[3]},
		{b[0], b[1] + b[3]},
	}
}

func (d *Detection) SelectData(st *State) (SelectData, bool) {
	if d.ContainsPoint(st) == None {
		return SelectData{}, false
	}
	return SelectData{ID: d.lab.ID, Field: d.field}, true
}

func (d *Detection) SizeBytes() int {
	n := len(d.lab.Mask)
	n += d.maskBuf.SizeBytes()
	for range d.tinted {
		// Tinted buffers are RGBA copies of the mask extent.
		n += d.maskBuf.SizeBytes() / maxInt(d.maskBuf.ElemSize, 1) * 4
	}
	return n + 256
}

// decodeMask decodes the instance mask payload once. A malformed payload is
// remembered so geometry keeps rendering and the error surfaces exactly once.
func (d *Detection) decodeMask() error {
	if d.decoded {
		return nil
	}
	d.decoded = true
	if len(d.lab.Mask) == 0 {
		return nil
	}
	buf, err := mask.Decode(d.lab.Mask)
	if err != nil {
		d.maskErr = err
		return err
	}
	d.maskBuf = buf
	return nil
}

func (d *Detection) Draw(dc *gg.Context, st *State) error {
	if !st.Visible(d.field, d.lab) {
		return nil
	}
	selected := st.Selected(d.lab.ID)
	fill := st.ColorFor(d.field, d.lab)
	x0, y0, x1, y1 := d.pixelBox(st)

	firstErr := d.decodeMask()
	if d.maskBuf != nil {
		key := tintKey{color: fill, selected: selected}
		buf, ok := d.tinted[key]
		if !ok {
			buf = tintMask(d.maskBuf, fill)
			// Either input change invalidates every older tint.
			d.tinted = map[tintKey]*gg.ImageBuf{key: buf}
		}
		dc.DrawImageEx(buf, gg.DrawImageOptions{
			X:         x0,
			Y:         y0,
			DstWidth:  x1 - x0,
			DstHeight: y1 - y0,
			Opacity:   st.MaskAlpha(selected),
		})
	}

	dc.SetHexColor(fill)
	dc.SetLineWidth(2)
	if selected {
		dc.SetDash(6, 4)
	}
	dc.DrawRectangle(x0, y0, x1-x0, y1-y0)
	if err := dc.Stroke(); err != nil && firstErr == nil {
		firstErr = err
	}
	dc.ClearDash()

	if text := chipText(st, d.lab); text != "" {
		hx, hy, hw, _ := d.headerRect(st)
		drawChip(dc, st, hx, hy, hw, text, fill, selected)
	}
	return firstErr
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
