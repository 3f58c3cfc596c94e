package realtime

import (
	"context"
	"fmt"
	"job-chat/auth"
	"job-chat/domain/chat"
	"job-chat/errors"
	"job-chat/services"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxFrameBytes = 64 << 10

// ConnectionObserver is told about every connection opened and closed.
type ConnectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
}

type HandlerConfig struct {
	BufferSize       int
	MaxMessageLength int
	ReadTimeout      time.Duration
}

// Handler upgrades HTTP requests to websockets and turns inbound frames into
// chat service calls. Frames of one connection are handled one at a time, in
// arrival order.
//
// http.Server forgets a connection once it is hijacked, so the handler keeps
// its own count of live sessions. Drain closes them and waits until every
// frame already being handled has returned, a send still inside the store
// included.
type Handler struct {
	log      *slog.Logger
	chat     services.IChatService
	hub      *Hub
	observer ConnectionObserver
	config   HandlerConfig
	upgrader websocket.Upgrader

	mu       sync.Mutex
	draining bool
	sessions sync.WaitGroup
}

// NewHandler fills zero values of config with the service defaults.
func NewHandler(log *slog.Logger, chat services.IChatService, hub *Hub, observer ConnectionObserver, config HandlerConfig) *Handler {
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 60 * time.Second
	}
	return &Handler{
		log:      log,
		chat:     chat,
		hub:      hub,
		observer: observer,
		config:   config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.enter() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.sessions.Done()

	var identity *auth.Identity
	if id, ok := auth.FromContext(r.Context()); ok {
		identity = &id
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(ws, identity, h.config.BufferSize)
	h.hub.Attach(conn)
	if h.isDraining() {
		// Drain may have emptied the hub just before Attach.
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
	h.observer.ConnectionOpened()
	h.log.Debug("Connection opened", "connection_id", conn.ID)

	var disconnect sync.Once
	defer disconnect.Do(func() {
		h.chat.Disconnect(string(conn.ID))
		h.hub.Detach(conn.ID)
		conn.Close(websocket.CloseNormalClosure, "session closed")
		h.observer.ConnectionClosed()
		h.log.Debug("Connection closed", "connection_id", conn.ID)
	})

	ws.SetReadLimit(maxFrameBytes)
	_ = ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))
	})

	ctx := r.Context()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.log.Debug("Read loop ended", "connection_id", conn.ID, "error", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.config.ReadTimeout))

		frame, err := decodeFrame(data, h.config.MaxMessageLength)
		if err != nil {
			code := codeBadRequest
			if errors.Is(err, errors.ErrValidation) {
				code = errors.Code(err)
			}
			h.replyError(conn, code, err)
			continue
		}

		switch frame.Type {
		case frameJoinRoom:
			h.handleJoin(ctx, conn, frame)
		case frameSendMessage:
			h.handleSend(ctx, conn, frame)
		case frameLeaveRoom:
			h.handleLeave(conn, frame)
		}
	}
}

func (h *Handler) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.sessions.Add(1)
	return true
}

func (h *Handler) isDraining() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.draining
}

// Drain refuses new sessions, closes the live ones and waits for their
// handlers to return, or for ctx to end.
func (h *Handler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	h.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		h.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("websocket sessions still running: %w", ctx.Err())
	}
}

func (h *Handler) handleJoin(ctx context.Context, conn *Connection, frame inboundFrame) {
	key, err := chat.ResolveKey(frame.StudentID, frame.CompanyID)
	if err != nil {
		h.replyError(conn, errors.Code(err), err)
		return
	}
	if conn.Identity != nil {
		if err := conn.Identity.AuthorizeViewer(key.StudentID, key.CompanyID); err != nil {
			h.replyError(conn, errors.Code(err), err)
			return
		}
	}

	conn.beginJoin(key)
	_, history, err := h.chat.JoinRoom(ctx, chat.JoinCommand{
		ConnectionID: string(conn.ID),
		StudentID:    key.StudentID,
		CompanyID:    key.CompanyID,
	})
	if err != nil {
		conn.abortJoin(key)
		h.replyError(conn, errors.Code(err), err)
		return
	}
	if err := conn.completeJoin(key, history); err != nil {
		h.log.Debug("History not delivered", "connection_id", conn.ID, "conversation", key.String(), "error", err)
	}
}

func (h *Handler) handleSend(ctx context.Context, conn *Connection, frame inboundFrame) {
	sender, err := chat.ParseSender(frame.Sender)
	if err != nil {
		h.replyError(conn, errors.Code(err), err)
		return
	}
	if conn.Identity != nil {
		if err := conn.Identity.Authorize(frame.StudentID, frame.CompanyID, sender); err != nil {
			h.replyError(conn, errors.Code(err), err)
			return
		}
	}

	// The connection may go away mid-send; the message is still persisted
	// and broadcast to the other members.
	_, err = h.chat.PostMessage(context.WithoutCancel(ctx), chat.PostMessageCommand{
		ConnectionID: string(conn.ID),
		StudentID:    frame.StudentID,
		CompanyID:    frame.CompanyID,
		Sender:       sender,
		Body:         frame.Message,
	})
	if err != nil {
		h.replyError(conn, errors.Code(err), err)
	}
}

func (h *Handler) handleLeave(conn *Connection, frame inboundFrame) {
	key, err := h.chat.LeaveRoom(chat.JoinCommand{
		ConnectionID: string(conn.ID),
		StudentID:    frame.StudentID,
		CompanyID:    frame.CompanyID,
	})
	if err != nil {
		h.replyError(conn, errors.Code(err), err)
		return
	}
	conn.forget(key)
	_ = conn.SendFrame(leftFrame{Type: frameLeft, StudentID: key.StudentID, CompanyID: key.CompanyID})
}

func (h *Handler) replyError(conn *Connection, code string, err error) {
	if code == "internal_error" || code == "persistence_error" {
		h.log.Error("Frame failed", "connection_id", conn.ID, "code", code, "error", err)
	}
	_ = conn.SendFrame(errorFrame{Type: frameError, Code: code, Error: err.Error()})
}
