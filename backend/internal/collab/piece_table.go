package collab

import "github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"

type bufferKind int

const (
	bufOriginal bufferKind = iota
	bufAdd
)

// piece references a span of either the original or the add buffer.
type piece struct {
	buf    bufferKind
	offset int
	length int
}

// PieceTable keeps the loaded text immutable and appends every insertion
// to a separate add buffer; the piece list stitches the two together.
// Edits only ever split, drop or reorder pieces.
type PieceTable struct {
	original []rune
	add      []rune
	pieces   []piece
}

func NewPieceTable(initial string) *PieceTable {
	r := []rune(initial)
	return &PieceTable{
		original: r,
		pieces:   []piece{{buf: bufOriginal, offset: 0, length: len(r)}},
	}
}

func (pt *PieceTable) Len() int {
	n := 0
	for _, p := range pt.pieces {
		n += p.length
	}
	return n
}

func (pt *PieceTable) String() string {
	var res string
	for _, p := range pt.pieces {
		switch p.buf {
		case bufOriginal:
			res += string(pt.original[p.offset : p.offset+p.length])
		case bufAdd:
			res += string(pt.add[p.offset : p.offset+p.length])
		}
	}
	return res
}

// Apply walks the delta: retain advances the cursor, insert splices a new
// add-buffer piece at the cursor, delete trims or drops pieces.
func (pt *PieceTable) Apply(d delta.Delta) error {
	pos := 0
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain:
			pos += op.Count

		case delta.KindInsert:
			text := []rune(op.Text)
			start := len(pt.add)
			pt.add = append(pt.add, text...)
			length := len(text)

			idx, offset := pt.locate(pos)
			newPiece := piece{buf: bufAdd, offset: start, length: length}

			if idx < len(pt.pieces) {
				cur := pt.pieces[idx]
				left := piece{buf: cur.buf, offset: cur.offset, length: offset}
				right := piece{buf: cur.buf, offset: cur.offset + offset, length: cur.length - offset}

				newPieces := make([]piece, 0, len(pt.pieces)+2)
				newPieces = append(newPieces, pt.pieces[:idx]...)
				if left.length > 0 {
					newPieces = append(newPieces, left)
				}
				newPieces = append(newPieces, newPiece)
				if right.length > 0 {
					newPieces = append(newPieces, right)
				}
				newPieces = append(newPieces, pt.pieces[idx+1:]...)
				pt.pieces = newPieces
			} else {
				pt.pieces = append(pt.pieces, newPiece)
			}

			pos += length

		case delta.KindDelete:
			remain := op.Count
			idx, offset := pt.locate(pos)

			for remain > 0 && idx < len(pt.pieces) {
				cur := &pt.pieces[idx]
				can := cur.length - offset
				if can <= 0 {
					idx++
					offset = 0
					continue
				}

				take := remain
				if take > can {
					take = can
				}

				if offset == 0 && take == cur.length {
					// Whole piece goes away; idx now points at the next one.
					pt.pieces = append(pt.pieces[:idx], pt.pieces[idx+1:]...)
					offset = 0
				} else {
					leftLen := offset
					rightLen := cur.length - offset - take

					newPieces := make([]piece, 0, len(pt.pieces)+1)
					newPieces = append(newPieces, pt.pieces[:idx]...)
					if leftLen > 0 {
						newPieces = append(newPieces, piece{
							buf:    cur.buf,
							offset: cur.offset,
							length: leftLen,
						})
					}
					if rightLen > 0 {
						newPieces = append(newPieces, piece{
							buf:    cur.buf,
							offset: cur.offset + offset + take,
							length: rightLen,
						})
					}
					newPieces = append(newPieces, pt.pieces[idx+1:]...)
					pt.pieces = newPieces
				}

				remain -= take
			}
		}
	}
	return nil
}

// locate maps a logical position to (piece index, offset inside piece).
func (pt *PieceTable) locate(pos int) (idx int, offset int) {
	cur := 0
	for i, p := range pt.pieces {
		if pos < cur+p.length {
			return i, pos - cur
		}
		cur += p.length
	}
	return len(pt.pieces), 0
}
