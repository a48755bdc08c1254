package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/ot/delta"
)

const presenceTTL = 600 * time.Second

// Conn binds one WebSocket to at most one collaboration session. The read
// loop translates client messages into session operations; the write loop
// drains the outbound queue.
type Conn struct {
	ws       *websocket.Conn
	hub      *Hub
	mgr      *Manager
	userID   uint64
	username string
	tenant   string
	log      zerolog.Logger

	send chan OutboundMessage
	// closed stops the write loop; send itself is never closed so a
	// broadcaster holding a stale room snapshot cannot panic in enqueue.
	closed chan struct{}

	mu      sync.Mutex
	docID   string
	session *collab.Session
}

func newConn(ws *websocket.Conn, hub *Hub, mgr *Manager, userID uint64, username, tenant string, log zerolog.Logger) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		mgr:      mgr,
		userID:   userID,
		username: username,
		tenant:   tenant,
		log:      log,
		send:     make(chan OutboundMessage, 32),
		closed:   make(chan struct{}),
	}
}

func (c *Conn) Session() *collab.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Conn) setSession(docID string, s *collab.Session) {
	c.mu.Lock()
	c.docID = docID
	c.session = s
	c.mu.Unlock()
}

// enqueue drops the message when the queue is full rather than blocking
// the broadcaster on one slow client.
func (c *Conn) enqueue(msg OutboundMessage) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Conn) sendError(code string) {
	c.enqueue(ServerMessage{Type: "error", Content: code})
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		c.teardown(ctx)
		close(c.closed)
	}()
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.log.Debug().Err(err).Msg("read loop closed")
			return
		}
		c.handle(ctx, msg)
	}
}

func (c *Conn) handle(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case "heartbeat":
		c.handleHeartbeat(ctx)
	case "joinDocument":
		c.handleJoin(ctx, msg)
	case "leaveDocument":
		c.teardown(ctx)
		c.enqueue(ServerMessage{Type: "leaveDocument", DocID: msg.DocID})
	case "op_submit":
		c.handleOpSubmit(ctx, msg)
	case "updateContent":
		if s := c.Session(); s != nil {
			s.UpdateContent(msg.Content)
		}
	case "saveDocument":
		c.handleSave(ctx)
	case "lockDocument":
		c.withSession(func(s *collab.Session) error { return s.LockDocument(ctx) })
	case "unlockDocument":
		c.withSession(func(s *collab.Session) error { return s.UnlockDocument(ctx) })
	case "cursor":
		c.handleCursor(ctx, msg)
	case "selection":
		if s := c.Session(); s != nil {
			s.UpdateSelection(msg.Selection)
		}
	case "status":
		if s := c.Session(); s != nil && msg.Status != "" {
			s.UpdateStatus(collab.UserStatus(msg.Status))
		}
	case "comment_add":
		c.withSession(func(s *collab.Session) error {
			_, err := s.AddComment(ctx, msg.Body)
			return err
		})
	case "comment_resolve":
		c.withSession(func(s *collab.Session) error {
			_, err := s.ResolveComment(ctx, msg.CommentID)
			return err
		})
	case "comment_delete":
		c.withSession(func(s *collab.Session) error { return s.DeleteComment(ctx, msg.CommentID) })
	case "suggestion_add":
		c.withSession(func(s *collab.Session) error {
			_, err := s.AddSuggestion(ctx, msg.OriginalText, msg.SuggestedText, msg.Start, msg.End)
			return err
		})
	case "suggestion_accept":
		c.handleSuggestionAccept(ctx, msg)
	case "suggestion_reject":
		c.withSession(func(s *collab.Session) error { return s.RejectSuggestion(ctx, msg.SuggestionID) })
	case "suggestion_withdraw":
		c.withSession(func(s *collab.Session) error { return s.WithdrawSuggestion(ctx, msg.SuggestionID) })
	case "conflict_resolve":
		c.withSession(func(s *collab.Session) error {
			return s.ResolveConflict(ctx, msg.ConflictID, collab.ResolutionStrategy(msg.Strategy))
		})
	case "loadDocumentContent":
		c.handleLoad(ctx, msg)
	case "show_alive_members":
		c.handleAliveMembers(ctx)
	default:
		c.enqueue(ServerMessage{Type: "ignored", Content: "unknown message type"})
	}
}

// withSession runs op when a session is bound; operation errors go back to
// the client as typed error codes.
func (c *Conn) withSession(op func(*collab.Session) error) {
	s := c.Session()
	if s == nil {
		c.sendError("NO_SESSION")
		return
	}
	if err := op(s); err != nil {
		code := string(collab.CodeOf(err))
		if code == "" {
			code = err.Error()
		}
		c.sendError(code)
	}
}

func (c *Conn) handleHeartbeat(ctx context.Context) {
	c.mu.Lock()
	docID := c.docID
	c.mu.Unlock()
	if docID != "" {
		if err := c.hub.presence.AddMember(ctx, docID, c.userID, c.username, presenceTTL); err != nil {
			c.log.Warn().Err(err).Msg("presence refresh failed")
		}
	}
	c.enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})
}

func (c *Conn) handleJoin(ctx context.Context, msg ClientMessage) {
	docID := msg.DocID
	if docID == "" && msg.DocTitle != "" {
		id, err := c.mgr.docs.GetDocumentID(ctx, msg.DocTitle)
		if err != nil {
			c.sendError("GET_DOCID_FAILED")
			return
		}
		docID = id
	}
	if docID == "" {
		c.sendError("MISSING_DOC_ID")
		return
	}

	// Switching rooms tears the old session down first.
	c.teardown(ctx)

	session, err := c.mgr.newSession(ctx, docID, c.user())
	if err != nil {
		code := string(collab.CodeOf(err))
		if code == "" {
			code = "JOIN_FAILED"
		}
		c.sendError(code)
		return
	}

	c.setSession(docID, session)
	c.hub.Join(docID, c)
	if err := c.hub.presence.AddMember(ctx, docID, c.userID, c.username, presenceTTL); err != nil {
		c.log.Warn().Err(err).Msg("presence add failed")
	}
	session.Start()

	doc := session.Document()
	c.enqueue(ServerMessage{
		Type:     "joinDocument",
		DocID:    docID,
		Revision: doc.Version,
		Content:  doc.Content,
		Users:    session.Collaborators(),
	})
}

func (c *Conn) handleOpSubmit(ctx context.Context, msg ClientMessage) {
	s := c.Session()
	if s == nil {
		c.sendError("NO_SESSION")
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if err := c.mgr.sem.Acquire(submitCtx); err != nil {
		c.sendError("BUSY")
		return
	}
	defer c.mgr.sem.Release()

	applied, err := c.mgr.svc.Submit(submitCtx, msg.DocID, c.userID, msg.BaseRevision, msg.ClientID, msg.ClientSeq, msg.Ops)
	if err == collab.ErrRevisionConflict {
		rev, _ := c.mgr.svc.CurrentRevision(ctx, msg.DocID)
		s.ReportConflict("base revision mismatch on op_submit", msg.BaseRevision, rev)
		c.sendError("REVISION_CONFLICT")
		return
	}
	if err != nil {
		c.sendError(err.Error())
		return
	}

	content, _, lerr := c.mgr.svc.LoadDocumentContent(ctx, msg.DocID)
	if lerr == nil {
		s.UpdateContent(content)
	}
	c.enqueue(OpAppliedMessage{
		Type:            "op_applied",
		DocID:           msg.DocID,
		BaseRevision:    msg.BaseRevision,
		CurrentRevision: applied.Revision,
		ClientID:        msg.ClientID,
		ClientSeq:       msg.ClientSeq,
	})
	c.hub.BroadcastAppliedOp(msg.DocID, c, applied, content)
}

// handleSuggestionAccept applies the acceptance on the session, then
// mirrors the span replacement into the replicated engine so the next
// op_submit builds on the accepted text instead of resurrecting the old
// span. The engine op fans out like any other applied op.
func (c *Conn) handleSuggestionAccept(ctx context.Context, msg ClientMessage) {
	s := c.Session()
	if s == nil {
		c.sendError("NO_SESSION")
		return
	}
	sg, err := s.AcceptSuggestion(ctx, msg.SuggestionID)
	if err != nil {
		c.sendError(string(collab.CodeOf(err)))
		return
	}
	if sg.ID == "" {
		return
	}

	rev, _ := c.mgr.svc.CurrentRevision(ctx, s.DocID())
	// clientID derived from the suggestion: a replayed accept dedups.
	applied, err := c.mgr.svc.Submit(ctx, s.DocID(), c.userID, rev,
		"suggestion:"+sg.ID, 1, delta.Replace(sg.Start, sg.End, sg.SuggestedText))
	if err != nil {
		c.log.Warn().Err(err).Str("suggestion", sg.ID).Msg("engine replay of acceptance failed")
		return
	}
	if content, _, err := c.mgr.svc.LoadDocumentContent(ctx, s.DocID()); err == nil {
		c.hub.BroadcastAppliedOp(s.DocID(), c, applied, content)
	}
}

func (c *Conn) handleSave(ctx context.Context) {
	s := c.Session()
	if s == nil {
		c.sendError("NO_SESSION")
		return
	}
	if err := s.SaveDocument(ctx); err != nil {
		c.sendError(string(collab.CodeOf(err)))
		return
	}
	// Engine snapshot is a secondary, best-effort persistence path.
	if err := c.mgr.svc.SaveSnapshot(ctx, s.DocID()); err != nil {
		c.log.Debug().Err(err).Msg("engine snapshot skipped")
	}
	doc := s.Document()
	at := doc.LastSavedAt()
	c.enqueue(ServerMessage{Type: "saved", DocID: s.DocID(), Revision: doc.Version, SavedAt: &at})
}

func (c *Conn) handleCursor(ctx context.Context, msg ClientMessage) {
	s := c.Session()
	if s == nil || msg.Cursor == nil {
		return
	}
	s.UpdateCursor(*msg.Cursor)
	if b, err := json.Marshal(msg.Cursor); err == nil {
		if err := c.hub.presence.SetCursor(ctx, s.DocID(), c.userID, b, presenceTTL); err != nil {
			c.log.Debug().Err(err).Msg("cursor cache write failed")
		}
	}
}

func (c *Conn) handleLoad(ctx context.Context, msg ClientMessage) {
	content, revision, err := c.mgr.svc.LoadDocumentContent(ctx, msg.DocID)
	if err != nil {
		c.sendError("LOAD_FAILED")
		return
	}
	c.enqueue(ServerMessage{Type: "loadDocumentContent", DocID: msg.DocID, Content: content, Revision: revision})
}

func (c *Conn) handleAliveMembers(ctx context.Context) {
	c.mu.Lock()
	docID := c.docID
	c.mu.Unlock()
	if docID == "" {
		return
	}
	members, err := c.hub.presence.GetAliveMembersWithNames(ctx, docID)
	if err != nil {
		c.log.Warn().Err(err).Msg("alive members lookup failed")
		return
	}
	out := make([]PresenceMember, len(members))
	for i, m := range members {
		out[i] = PresenceMember{UserID: m.UserID, Username: m.Username}
	}
	c.enqueue(ServerMessage{Type: "show_alive_members", DocID: docID, Members: out})
}

func (c *Conn) teardown(ctx context.Context) {
	c.mu.Lock()
	docID := c.docID
	session := c.session
	c.docID = ""
	c.session = nil
	c.mu.Unlock()
	if session == nil {
		return
	}
	c.hub.Leave(docID, c)
	session.Close()
	if err := c.hub.presence.RemoveMember(ctx, docID, c.userID); err != nil {
		c.log.Debug().Err(err).Msg("presence remove failed")
	}
}

func (c *Conn) user() collab.CollaborationUser {
	return collab.CollaborationUser{
		UserID:   c.userID,
		Username: c.username,
		Tenant:   c.tenant,
		Status:   collab.StatusOnline,
		LastSeen: time.Now(),
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.WriteJSON(msg)
		case <-c.closed:
			return
		}
	}
}
