package spotlight

// Row packing: rows accumulate items until their summed aspect ratio
// reaches a budget, then every item is scaled to the shared row height so
// the row fills the viewport width exactly. The budget rises with zoom
// level (more, smaller items per row) and with viewport width.

// Cell is the laid-out position of one item.
type Cell struct {
	ID   string
	X, Y float64
	W, H float64
}

// Row is one packed row of cells.
type Row struct {
	Top    float64
	Height float64
	Cells  []Cell
}

// rowAspectBudget returns the summed-aspect-ratio target for one row.
func rowAspectBudget(width float64, zoom int) float64 {
	if zoom < 1 {
		zoom = 1
	}
	budget := float64(zoom) * width / 1200
	if budget < 1 {
		budget = 1
	}
	return budget
}

// packRows lays items into rows for the given viewport width. Aspect ratios
// of zero or below are treated as square.
func packRows(items []Item, width float64, zoom int, spacing float64) []Row {
	if width <= 0 || len(items) == 0 {
		return nil
	}
	budget := rowAspectBudget(width, zoom)

	var rows []Row
	y := 0.0
	start := 0
	sum := 0.0
	flush := func(end int, partial bool) {
		n := end - start
		if n <= 0 {
			return
		}
		avail := width - spacing*float64(n-1)
		divisor := sum
		if partial {
			// Trailing rows keep full-row item sizing instead of
			// stretching a handful of items across the viewport.
			divisor = budget
		}
		h := avail / divisor
		row := Row{Top: y, Height: h, Cells: make([]Cell, 0, n)}
		x := 0.0
		for _, it := range items[start:end] {
			w := aspect(it) * h
			row.Cells = append(row.Cells, Cell{ID: it.ID, X: x, Y: y, W: w, H: h})
			x += w + spacing
		}
		rows = append(rows, row)
		y += h + spacing
		start = end
		sum = 0
	}

	for i, it := range items {
		sum += aspect(it)
		if sum >= budget {
			flush(i+1, false)
		}
	}
	flush(len(items), true)
	return rows
}

func aspect(it Item) float64 {
	if it.AspectRatio <= 0 {
		return 1
	}
	return it.AspectRatio
}

// totalHeight returns the scroll extent of the laid-out rows.
func totalHeight(rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	last := rows[len(rows)-1]
	return last.Top + last.Height
}
