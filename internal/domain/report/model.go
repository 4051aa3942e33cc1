package report

// BlockKind classifies a renderable unit of the case-study document.
type BlockKind int

const (
	KindHeading BlockKind = iota
	KindParagraph
	KindQuoteCard
	KindRiskItem
	KindTableRow
)

// Block is one renderable unit. Atomic blocks must not be split across a
// page boundary; adjacent atomic blocks fuse into a single render group, and
// a heading always travels with the block that follows it.
type Block struct {
	Kind   BlockKind
	Text   string
	Detail string
	Atomic bool
}

// RenderGroup is a vertical pixel range that must stay on one page when it
// fits within a page's height. Groups taller than a page may legally be cut.
type RenderGroup struct {
	Top    int
	Bottom int
}

func (g RenderGroup) Height() int { return g.Bottom - g.Top }

// PageSlice is the half-open pixel range [Top, Bottom) of the tall canvas
// emitted as one page.
type PageSlice struct {
	Top    int
	Bottom int
}

func (s PageSlice) Height() int { return s.Bottom - s.Top }
