package tooltip

import (
	"math"
	"time"

	"github.com/typelens/typelens/coalesce"
)

// GridCell is the quantization step for pinned-tooltip de-duplication.
const GridCell = 10.0

// GridKey is a quantized position bucket. Two selection gestures landing
// in the same bucket produce one pinned tooltip.
type GridKey struct {
	Col int
	Row int
}

// GridKeyFor buckets a position.
func GridKeyFor(pos coalesce.Point) GridKey {
	return GridKey{
		Col: int(math.Round(pos.X / GridCell)),
		Row: int(math.Round(pos.Y / GridCell)),
	}
}

// Pinned is one user-dismissable tooltip created from a text selection.
// Content is captured once at creation and never refreshed.
type Pinned struct {
	ID        string         `json:"id"`
	Pos       coalesce.Point `json:"-"`
	X         float64        `json:"x"`
	Y         float64        `json:"y"`
	Grid      GridKey        `json:"-"`
	Content   Content        `json:"content"`
	Snippet   Snippet        `json:"snippet"`
	CreatedAt time.Time      `json:"created_at"`
}
