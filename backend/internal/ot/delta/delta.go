package delta

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

type Op struct {
	Kind  Kind           `json:"kind"`
	Count int            `json:"count,omitempty"` // retain/delete length
	Text  string         `json:"text,omitempty"`  // insert payload
	Attrs map[string]any `json:"attrs,omitempty"` // style attributes (bold/color/...)
}

type Delta []Op

// Len returns the net length change the delta causes when applied.
func (d Delta) Len() int {
	n := 0
	for _, op := range d {
		switch op.Kind {
		case KindInsert:
			n += len([]rune(op.Text))
		case KindDelete:
			n -= op.Count
		}
	}
	return n
}

// Replace builds the delta that substitutes the rune span [start, end)
// with text: retain start, delete end-start, insert text.
func Replace(start, end int, text string) Delta {
	d := make(Delta, 0, 3)
	if start > 0 {
		d = append(d, Op{Kind: KindRetain, Count: start})
	}
	if end > start {
		d = append(d, Op{Kind: KindDelete, Count: end - start})
	}
	if text != "" {
		d = append(d, Op{Kind: KindInsert, Text: text})
	}
	return d
}
