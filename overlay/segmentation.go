package overlay

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
	"github.com/gridlook/gridlook/mask"
)

// Segmentation renders a full-extent label mask tinted with the assigned
// color. The decoded buffer lives on the overlay for its lifetime; the
// tinted pixels are cached per (color, selected) pair.
type Segmentation struct {
	field string
	lab   label.Label

	maskBuf *mask.Buffer
	maskErr error
	decoded bool
	tinted  map[tintKey]*gg.ImageBuf
}

func newSegmentation(field string, l label.Label) *Segmentation {
	return &Segmentation{field: field, lab: l}
}

func (g *Segmentation) Field() string { return g.field }

func (g *Segmentation) decodeMask() error {
	if g.decoded {
		return nil
	}
	g.decoded = true
	buf, err := mask.Decode(g.lab.Mask)
	if err != nil {
		g.maskErr = err
		return err
	}
	g.maskBuf = buf
	return nil
}

func (g *Segmentation) Draw(dc *gg.Context, st *State) error {
	if !st.Visible(g.field, g.lab) {
		return nil
	}
	if err := g.decodeMask(); err != nil {
		// Malformed payload: nothing to render, report once.
		return err
	}
	if g.maskBuf == nil {
		return nil
	}
	selected := st.Selected(g.lab.ID)
	fill := st.ColorFor(g.field, g.lab)
	key := tintKey{color: fill, selected: selected}
	buf, ok := g.tinted[key]
	if !ok {
		buf = tintMask(g.maskBuf, fill)
		g.tinted = map[tintKey]*gg.ImageBuf{key: buf}
	}
	x0, y0 := st.ToPixel(0, 0)
	x1, y1 := st.ToPixel(1, 1)
	dc.DrawImageEx(buf, gg.DrawImageOptions{
		X:         x0,
		Y:         y0,
		DstWidth:  x1 - x0,
		DstHeight: y1 - y0,
		Opacity:   st.MaskAlpha(selected),
	})
	return nil
}

// ContainsPoint reports CONTENT when the mask element under the cursor is
// non-zero.
func (g *Segmentation) ContainsPoint(st *State) PointLocation {
	if !st.Visible(g.field, g.lab) || g.maskBuf == nil {
		return None
	}
	x0, y0 := st.ToPixel(0, 0)
	x1, y1 := st.ToPixel(1, 1)
	if x1 <= x0 || y1 <= y0 {
		return None
	}
	nx := (st.Cursor[0] - x0) / (x1 - x0)
	ny := (st.Cursor[1] - y0) / (y1 - y0)
	if nx < 0 || nx >= 1 || ny < 0 || ny >= 1 {
		return None
	}
	r := int(ny * float64(g.maskBuf.Shape[0]))
	c := int(nx * float64(g.maskBuf.Shape[1]))
	if g.maskBuf.At(r, c) != 0 {
		return Content
	}
	return None
}

func (g *Segmentation) MouseDistance(st *State) float64 {
	if g.ContainsPoint(st) == Content {
		return 0
	}
	return math.Inf(1)
}

func (g *Segmentation) Points() [][2]float64 { return fullImagePoints() }

func (g *Segmentation) SelectData(st *State) (SelectData, bool) {
	if g.ContainsPoint(st) == None {
		return SelectData{}, false
	}
	return SelectData{ID: g.lab.ID, Field: g.field}, true
}

func (g *Segmentation) SizeBytes() int {
	n := len(g.lab.Mask) + g.maskBuf.SizeBytes()
	for range g.tinted {
		if g.maskBuf != nil {
			n += g.maskBuf.Shape[0] * g.maskBuf.Shape[1] * 4
		}
	}
	return n + 256
}
