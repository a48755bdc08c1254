package collab

import (
	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

// Buffer abstracts the document content store the engine applies deltas to.
type Buffer interface {
	Len() int
	Apply(d delta.Delta) error
	String() string
}
