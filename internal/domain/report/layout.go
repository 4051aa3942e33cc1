package report

// PageSpec fixes the raster geometry of the output document. The canvas is
// rendered at CanvasWidthPx and sliced into pages whose pixel height keeps
// the printed aspect ratio of the usable page area.
type PageSpec struct {
	CanvasWidthPx  int
	UsableWidthMM  float64
	UsableHeightMM float64

	// MinRemainPx is the smallest acceptable page fill. Pushing a boundary
	// back to a group top that would leave less content than this on the
	// current page is rejected, and the cut stays at the page increment.
	MinRemainPx int
}

// A4PageSpec is the default geometry: 10 mm margins on a 210x297 mm sheet.
func A4PageSpec() PageSpec {
	return PageSpec{
		CanvasWidthPx:  1240,
		UsableWidthMM:  190,
		UsableHeightMM: 277,
		MinRemainPx:    50,
	}
}

// PageHeightPx is the page-sized walk increment on the canvas.
func (p PageSpec) PageHeightPx() int {
	return int(p.UsableHeightMM * float64(p.CanvasWidthPx) / p.UsableWidthMM)
}

// MeasuredBlock is a block with its resolved position on the tall canvas.
type MeasuredBlock struct {
	Block
	Top    int
	Height int
}

func (m MeasuredBlock) Bottom() int { return m.Top + m.Height }

// AtomicGroups reduces measured blocks to the no-split pixel ranges.
// Consecutive atomic blocks merge into one group, and a heading is folded
// into the group of the block that follows it so a section title never sits
// alone at a page bottom.
func AtomicGroups(blocks []MeasuredBlock) []RenderGroup {
	var groups []RenderGroup

	flush := func(top, bottom int) {
		if bottom <= top {
			return
		}
		// Merge with the previous group when the ranges touch or overlap.
		if n := len(groups); n > 0 && groups[n-1].Bottom >= top {
			if bottom > groups[n-1].Bottom {
				groups[n-1].Bottom = bottom
			}
			return
		}
		groups = append(groups, RenderGroup{Top: top, Bottom: bottom})
	}

	for i := 0; i < len(blocks); i++ {
		b := blocks[i]
		switch {
		case b.Kind == KindHeading:
			// The heading and its first follower form one group.
			bottom := b.Bottom()
			if i+1 < len(blocks) {
				bottom = blocks[i+1].Bottom()
			}
			flush(b.Top, bottom)
		case b.Atomic:
			flush(b.Top, b.Bottom())
		}
	}
	return groups
}

// ResolveBoundaries walks the canvas top to bottom in page increments and
// returns the emitted page slices. A candidate boundary that lands inside an
// atomic group is pushed back to the group's top, unless the group is taller
// than a page (it must span) or pushing back would leave the current page
// under MinRemainPx of content (the cut stays put to avoid a near-blank
// page). A non-positive slice height skips a full page increment instead of
// emitting a zero-height page.
func ResolveBoundaries(totalHeight int, spec PageSpec, groups []RenderGroup) []PageSlice {
	pageHeight := spec.PageHeightPx()
	if totalHeight <= 0 || pageHeight <= 0 {
		return nil
	}

	var slices []PageSlice
	cur := 0
	for cur < totalHeight {
		boundary := cur + pageHeight
		if boundary >= totalHeight {
			slices = append(slices, PageSlice{Top: cur, Bottom: totalHeight})
			break
		}

		if g, ok := straddling(groups, boundary); ok && g.Height() <= pageHeight {
			if g.Top-cur >= spec.MinRemainPx {
				boundary = g.Top
			}
		}

		if boundary <= cur {
			cur += pageHeight
			continue
		}
		slices = append(slices, PageSlice{Top: cur, Bottom: boundary})
		cur = boundary
	}
	return slices
}

// straddling returns the first group that the boundary cuts through.
func straddling(groups []RenderGroup, boundary int) (RenderGroup, bool) {
	for _, g := range groups {
		if g.Top < boundary && g.Bottom > boundary {
			return g, true
		}
	}
	return RenderGroup{}, false
}
