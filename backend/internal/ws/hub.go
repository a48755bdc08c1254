package ws

import (
	"context"
	"sync"

	"github.com/michaelayoade/dotmac-collab/backend/internal/cache"
	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
)

// Hub tracks which connections sit in which document room. A room holds
// connections, not user IDs: one user can have several tabs/devices and a
// broadcast has to reach each of them.
type Hub struct {
	presence cache.PresenceCache

	mu    sync.RWMutex
	rooms map[string]map[*Conn]struct{}

	dispatcher *collab.KafkaDispatcher
}

func NewHub(p cache.PresenceCache, dispatcher *collab.KafkaDispatcher) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{}), dispatcher: dispatcher}
}

func (h *Hub) Join(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[*Conn]struct{})
	}
	h.rooms[docID][c] = struct{}{}
}

func (h *Hub) Leave(docID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[docID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, docID)
		}
	}
}

// Broadcast implements collab.Broadcaster: a session event goes to every
// other member of the room (wire message + remote replay into their
// session) and onto Kafka for peer instances. The sender is excluded —
// no local echo.
func (h *Hub) Broadcast(docID string, senderID uint64, evt collab.Event) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	msg, ok := eventMessage(docID, senderID, evt)
	remote := collab.AsRemote(evt)
	for _, c := range conns {
		if c.userID == senderID {
			continue
		}
		if ok {
			c.enqueue(msg)
		}
		if s := c.Session(); s != nil {
			s.Dispatch(remote)
		}
	}

	if h.dispatcher != nil {
		if kevt, ok := collab.NewSessionEvent(docID, senderID, evt); ok {
			_ = h.dispatcher.Enqueue(context.Background(), kevt)
		}
	}
}

// BroadcastAppliedOp fans a text operation out to the room, excluding the
// submitting connection (it gets the op_applied ack instead), and replays
// the new content into the other sessions' replicas.
func (h *Hub) BroadcastAppliedOp(docID string, from *Conn, op collab.AppliedOp, content string) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[docID]))
	for c := range h.rooms[docID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	msg := OpBroadcastMessage{
		Type:      "op_broadcast",
		DocID:     docID,
		Revision:  op.Revision,
		AuthorID:  op.AuthorID,
		Ops:       op.Ops,
		AppliedAt: op.AppliedAt,
	}
	for _, c := range conns {
		if c == from {
			continue
		}
		c.enqueue(msg)
		if s := c.Session(); s != nil {
			s.ApplyRemoteContent(content)
		}
	}
}
