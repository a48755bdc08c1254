package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/store"
)

// Allow local development origins; anything else is rejected.
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

// Manager upgrades authenticated requests and wires a Conn to the hub,
// the replicated text engine and per-join collaboration sessions.
type Manager struct {
	hub *Hub
	svc collab.Service
	sem *collab.SemaphoreControl

	docs        *store.DocumentStore
	comments    *store.CommentStore
	suggestions *store.SuggestionStore
	conflicts   *store.ConflictStore
	locker      collab.Locker
	opts        collab.SessionOptions
	log         zerolog.Logger
}

type ManagerDeps struct {
	Hub         *Hub
	Service     collab.Service
	Sem         *collab.SemaphoreControl
	Docs        *store.DocumentStore
	Comments    *store.CommentStore
	Suggestions *store.SuggestionStore
	Conflicts   *store.ConflictStore
	Locker      collab.Locker
	Options     collab.SessionOptions
	Logger      zerolog.Logger
}

func NewManager(d ManagerDeps) *Manager {
	return &Manager{
		hub:         d.Hub,
		svc:         d.Service,
		sem:         d.Sem,
		docs:        d.Docs,
		comments:    d.Comments,
		suggestions: d.Suggestions,
		conflicts:   d.Conflicts,
		locker:      d.Locker,
		opts:        d.Options,
		log:         d.Logger,
	}
}

// newSession loads the document, hydrates registries from the stores and
// seeds the engine so the first op_submit has the right base content.
func (m *Manager) newSession(ctx context.Context, docID string, user collab.CollaborationUser) (*collab.Session, error) {
	deps := collab.SessionDeps{
		Documents:   m.docs,
		Comments:    m.comments,
		Suggestions: m.suggestions,
		Conflicts:   m.conflicts,
		Locker:      m.locker,
		Broadcast:   m.hub,
		Logger:      m.log,
	}
	session, err := collab.NewSession(ctx, docID, user, m.opts, deps)
	if err != nil {
		return nil, err
	}

	if comments, err := m.comments.ListComments(ctx, docID); err == nil {
		session.SeedComments(comments)
	} else {
		m.log.Warn().Err(err).Str("doc", docID).Msg("comment hydration failed")
	}
	if suggestions, err := m.suggestions.ListSuggestions(ctx, docID); err == nil {
		session.SeedSuggestions(suggestions)
	} else {
		m.log.Warn().Err(err).Str("doc", docID).Msg("suggestion hydration failed")
	}

	doc := session.Document()
	m.svc.SeedDocument(ctx, docID, doc.Content, doc.Version)
	return session, nil
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	userID := c.GetUint64("userId")
	username := c.GetString("username")
	tenant := c.GetString("tenant")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.log.Warn().Err(err).Str("origin", c.Request.Header.Get("Origin")).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := m.log.With().Uint64("user", userID).Logger()
	wsConn := newConn(conn, m.hub, m, userID, username, tenant, log)

	// Writer first, so the welcome and anything after can drain.
	go wsConn.writeLoop()
	wsConn.enqueue(ServerMessage{Type: "welcome", Content: "connected"})

	// Blocks until the connection closes.
	wsConn.readLoop(c.Request.Context())
}
