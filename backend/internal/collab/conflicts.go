package collab

import "time"

type ResolutionStrategy string

const (
	ResolutionLWW    ResolutionStrategy = "lww"
	ResolutionLocal  ResolutionStrategy = "local"
	ResolutionRemote ResolutionStrategy = "remote"
	ResolutionManual ResolutionStrategy = "manual"
)

type Conflict struct {
	ID            string    `json:"id"`
	DocID         string    `json:"docId"`
	Description   string    `json:"description"`
	LocalVersion  uint64    `json:"localVersion,omitempty"`
	RemoteVersion uint64    `json:"remoteVersion,omitempty"`
	DetectedAt    time.Time `json:"detectedAt"`
}

// conflictSurface accumulates conflicts reported by the replication layer.
// No dedup: every detection is kept until explicitly resolved.
type conflictSurface struct {
	items []Conflict
}

func (s *conflictSurface) add(c Conflict) {
	s.items = append(s.items, c)
}

func (s *conflictSurface) remove(id string) bool {
	for i, c := range s.items {
		if c.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

func (s *conflictSurface) get(id string) (Conflict, bool) {
	for _, c := range s.items {
		if c.ID == id {
			return c, true
		}
	}
	return Conflict{}, false
}

func (s *conflictSurface) list() []Conflict {
	out := make([]Conflict, len(s.items))
	copy(out, s.items)
	return out
}
