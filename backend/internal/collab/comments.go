package collab

import "time"

type Comment struct {
	ID         string     `json:"id"`
	DocID      string     `json:"docId"`
	AuthorID   uint64     `json:"authorId"`
	AuthorName string     `json:"authorName,omitempty"`
	Body       string     `json:"body"`
	Resolved   bool       `json:"resolved"`
	ResolvedBy uint64     `json:"resolvedBy,omitempty"`
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// commentRegistry keeps the session's in-memory comment list, keyed by ID.
// Remote add/update/delete/resolve events replay the same transitions the
// local operations perform.
type commentRegistry struct {
	byID  map[string]int
	items []Comment
}

func newCommentRegistry() *commentRegistry {
	return &commentRegistry{byID: make(map[string]int)}
}

func (r *commentRegistry) upsert(c Comment) {
	if i, ok := r.byID[c.ID]; ok {
		r.items[i] = c
		return
	}
	r.byID[c.ID] = len(r.items)
	r.items = append(r.items, c)
}

func (r *commentRegistry) get(id string) (Comment, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Comment{}, false
	}
	return r.items[i], true
}

func (r *commentRegistry) remove(id string) {
	i, ok := r.byID[id]
	if !ok {
		return
	}
	r.items = append(r.items[:i], r.items[i+1:]...)
	delete(r.byID, id)
	for j := i; j < len(r.items); j++ {
		r.byID[r.items[j].ID] = j
	}
}

func (r *commentRegistry) list() []Comment {
	out := make([]Comment, len(r.items))
	copy(out, r.items)
	return out
}
