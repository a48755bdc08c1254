package collab

import "time"

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionAccept   SuggestionStatus = "accepted"
	SuggestionReject   SuggestionStatus = "rejected"
	SuggestionWithdraw SuggestionStatus = "withdrawn"
)

// Terminal reports whether no further status transition is allowed.
func (s SuggestionStatus) Terminal() bool {
	return s == SuggestionAccept || s == SuggestionReject || s == SuggestionWithdraw
}

type Suggestion struct {
	ID            string           `json:"id"`
	DocID         string           `json:"docId"`
	AuthorID      uint64           `json:"authorId"`
	AuthorName    string           `json:"authorName,omitempty"`
	OriginalText  string           `json:"originalText"`
	SuggestedText string           `json:"suggestedText"`
	// Rune offsets into the document content: the span [Start, End).
	Start      int              `json:"start"`
	End        int              `json:"end"`
	Status     SuggestionStatus `json:"status"`
	ReviewerID uint64           `json:"reviewerId,omitempty"`
	ReviewedAt *time.Time       `json:"reviewedAt,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

type suggestionRegistry struct {
	byID  map[string]int
	items []Suggestion
}

func newSuggestionRegistry() *suggestionRegistry {
	return &suggestionRegistry{byID: make(map[string]int)}
}

func (r *suggestionRegistry) upsert(s Suggestion) {
	if i, ok := r.byID[s.ID]; ok {
		// Terminal states are one-way: a late event cannot move an
		// accepted/rejected/withdrawn suggestion back to pending.
		if r.items[i].Status.Terminal() && !s.Status.Terminal() {
			return
		}
		r.items[i] = s
		return
	}
	r.byID[s.ID] = len(r.items)
	r.items = append(r.items, s)
}

func (r *suggestionRegistry) get(id string) (Suggestion, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Suggestion{}, false
	}
	return r.items[i], true
}

func (r *suggestionRegistry) list() []Suggestion {
	out := make([]Suggestion, len(r.items))
	copy(out, r.items)
	return out
}

// applySuggestion substitutes the recorded span in content with the
// suggested text. Offsets are taken against the current content, which may
// have shifted since the suggestion was created; they are clamped so a
// stale span degrades to a bounded replacement instead of a panic.
func applySuggestion(content string, s Suggestion) string {
	runes := []rune(content)
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	if end < start {
		end = start
	}
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[:start]) + s.SuggestedText + string(runes[end:])
}
