package overlay

import (
	"math"
	"sort"

	"github.com/gogpu/gg"

	"github.com/gridlook/gridlook/label"
)

type classEntry struct {
	field string
	lab   label.Label
}

// Classifications batches every classification label of a sample into one
// overlay so the chips render as a single stacked column. Stacking order is
// field activation order first, then label value; equal or empty label
// values keep their input order (stable sort).
type Classifications struct {
	entries []classEntry
}

func newClassifications(entries []classEntry) *Classifications {
	return &Classifications{entries: entries}
}

// Field returns the field of the first entry; the batched overlay spans
// multiple fields and SelectData resolves the precise one.
func (c *Classifications) Field() string {
	if len(c.entries) == 0 {
		return ""
	}
	return c.entries[0].field
}

// visibleSorted returns the entries that pass the current filters, in
// stacking order for the current state.
func (c *Classifications) visibleSorted(st *State) []classEntry {
	rank := func(field string) int {
		for i, f := range st.Options.ActiveFields {
			if f == field {
				return i
			}
		}
		return len(st.Options.ActiveFields)
	}
	out := make([]classEntry, 0, len(c.entries))
	for _, e := range c.entries {
		if st.Visible(e.field, e.lab) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rank(out[i].field), rank(out[j].field)
		if ri != rj {
			return ri < rj
		}
		li, lj := out[i].lab.Label, out[j].lab.Label
		if li == "" || lj == "" {
			// Undefined labels preserve input order.
			return false
		}
		return li < lj
	})
	return out
}

// chipRow returns the pixel rect of the i-th stacked chip.
func (c *Classifications) chipRow(st *State, e classEntry, i int) (x, y, w, h float64) {
	text := chipText(st, e.lab)
	w = chipWidth(text, st.fontSize())
	if w == 0 {
		// Chips with both toggles off still occupy a fixed-size swatch.
		w = headerHeight
	}
	return chipPad, chipPad + float64(i)*(headerHeight+chipGap), w, headerHeight
}

func (c *Classifications) Draw(dc *gg.Context, st *State) error {
	for i, e := range c.visibleSorted(st) {
		x, y, w, _ := c.chipRow(st, e, i)
		drawChip(dc, st, x, y, w, chipText(st, e.lab), st.ColorFor(e.field, e.lab), st.Selected(e.lab.ID))
	}
	return nil
}

func (c *Classifications) hovered(st *State) (classEntry, int, bool) {
	cx, cy := st.Cursor[0], st.Cursor[1]
	for i, e := range c.visibleSorted(st) {
		x, y, w, h := c.chipRow(st, e, i)
		if cx >= x && cx <= x+w && cy >= y && cy <= y+h {
			return e, i, true
		}
	}
	return classEntry{}, 0, false
}

func (c *Classifications) ContainsPoint(st *State) PointLocation {
	if _, _, ok := c.hovered(st); ok {
		return Content
	}
	return None
}

func (c *Classifications) MouseDistance(st *State) float64 {
	cx, cy := st.Cursor[0], st.Cursor[1]
	best := math.Inf(1)
	for i, e := range c.visibleSorted(st) {
		x, y, w, h := c.chipRow(st, e, i)
		dx := math.Max(math.Max(x-cx, 0), cx-(x+w))
		dy := math.Max(math.Max(y-cy, 0), cy-(y+h))
		best = math.Min(best, math.Hypot(dx, dy))
	}
	return best
}

func (c *Classifications) Points() [][2]float64 { return fullImagePoints() }

func (c *Classifications) SelectData(st *State) (SelectData, bool) {
	e, _, ok := c.hovered(st)
	if !ok {
		return SelectData{}, false
	}
	return SelectData{ID: e.lab.ID, Field: e.field}, true
}

func (c *Classifications) SizeBytes() int {
	return 128 * (len(c.entries) + 1)
}
