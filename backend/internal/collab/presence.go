package collab

import "time"

type UserStatus string

const (
	StatusOnline  UserStatus = "online"
	StatusAway    UserStatus = "away"
	StatusBusy    UserStatus = "busy"
	StatusOffline UserStatus = "offline"
)

type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type SelectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type CollaborationUser struct {
	UserID    uint64          `json:"userId"`
	Username  string          `json:"username"`
	Tenant    string          `json:"tenant,omitempty"`
	Status    UserStatus      `json:"status"`
	Cursor    *CursorPosition `json:"cursor,omitempty"`
	Selection *SelectionRange `json:"selection,omitempty"`
	LastSeen  time.Time       `json:"lastSeen"`
}

// Roster tracks the live collaborators of one document. Not safe for
// concurrent use on its own; the session serializes access.
type Roster struct {
	users map[uint64]CollaborationUser
}

func NewRoster() *Roster {
	return &Roster{users: make(map[uint64]CollaborationUser)}
}

// Upsert inserts or overwrites by user ID. Applying the same join twice
// leaves the roster as if applied once.
func (r *Roster) Upsert(u CollaborationUser) {
	r.users[u.UserID] = u
}

// Merge applies a partial presence update to an existing entry, stamping
// last-seen. Unknown users are ignored (a presence event is not a join).
func (r *Roster) Merge(userID uint64, status *UserStatus, cursor *CursorPosition, sel *SelectionRange, now time.Time) {
	u, ok := r.users[userID]
	if !ok {
		return
	}
	if status != nil {
		u.Status = *status
	}
	if cursor != nil {
		u.Cursor = cursor
	}
	if sel != nil {
		u.Selection = sel
	}
	u.LastSeen = now
	r.users[userID] = u
}

// Remove drops a user; removing an absent user is a safe no-op.
func (r *Roster) Remove(userID uint64) {
	delete(r.users, userID)
}

func (r *Roster) Get(userID uint64) (CollaborationUser, bool) {
	u, ok := r.users[userID]
	return u, ok
}

func (r *Roster) Len() int { return len(r.users) }

func (r *Roster) List() []CollaborationUser {
	out := make([]CollaborationUser, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out
}
