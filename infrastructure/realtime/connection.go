package realtime

import (
	"encoding/json"
	"fmt"
	"job-chat/auth"
	"job-chat/contract"
	"job-chat/domain/chat"
	"job-chat/errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	closeGrace = time.Second
	pingPeriod = 30 * time.Second
)

// Connection wraps a websocket and serialises outbound writes through a
// bounded buffer drained by a single write loop. A full buffer closes the
// connection.
//
// Per conversation it remembers the highest message id already handed to the
// client and drops anything at or below it. While a join is in flight, live
// messages of that conversation are held back and released right after the
// history frame.
type Connection struct {
	ID       contract.ConnectionID
	Identity *auth.Identity

	ws     *websocket.Conn
	send   chan []byte
	once   sync.Once
	closed chan struct{}

	mu        sync.Mutex
	delivered map[chat.ConversationKey]uint64
	joining   map[chat.ConversationKey][]chat.Message
}

func NewConnection(ws *websocket.Conn, identity *auth.Identity, bufferSize int) *Connection {
	return &Connection{
		ID:        contract.ConnectionID(uuid.NewString()),
		Identity:  identity,
		ws:        ws,
		send:      make(chan []byte, bufferSize),
		closed:    make(chan struct{}),
		delivered: make(map[chat.ConversationKey]uint64),
		joining:   make(map[chat.ConversationKey][]chat.Message),
	}
}

// Start launches the write loop. It must be called exactly once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// Deliver pushes a live message, honouring the join hold-back and the
// per-conversation watermark.
func (c *Connection) Deliver(message chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pending, ok := c.joining[message.Key]; ok {
		c.joining[message.Key] = append(pending, message)
		return nil
	}
	return c.deliverLocked(message)
}

func (c *Connection) deliverLocked(message chat.Message) error {
	if message.ID <= c.delivered[message.Key] {
		return nil
	}
	if err := c.enqueueLocked(receiveFrame{Type: frameReceiveMessage, messagePayload: toPayload(message)}); err != nil {
		return err
	}
	c.delivered[message.Key] = message.ID
	return nil
}

// beginJoin starts holding back live messages of key.
func (c *Connection) beginJoin(key chat.ConversationKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.joining[key]; !ok {
		c.joining[key] = nil
	}
}

// abortJoin discards what was held back for a join that failed.
func (c *Connection) abortJoin(key chat.ConversationKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.joining, key)
}

// completeJoin sends the history frame then the held back live messages that
// are not part of it. A connection that already follows the conversation
// gets no second history frame, only what it has not seen yet.
func (c *Connection) completeJoin(key chat.ConversationKey, history []chat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.joining[key]
	delete(c.joining, key)

	if _, following := c.delivered[key]; following {
		for _, message := range append(history, pending...) {
			if err := c.deliverLocked(message); err != nil {
				return err
			}
		}
		return nil
	}

	err := c.enqueueLocked(historyFrame{
		Type:      frameHistory,
		StudentID: key.StudentID,
		CompanyID: key.CompanyID,
		Messages:  toPayloads(history),
	})
	if err != nil {
		return err
	}
	c.delivered[key] = chat.LastID(history)
	for _, message := range pending {
		if err := c.deliverLocked(message); err != nil {
			return err
		}
	}
	return nil
}

// forget drops the watermark of a conversation the client left.
func (c *Connection) forget(key chat.ConversationKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.delivered, key)
	delete(c.joining, key)
}

// SendFrame encodes and enqueues any outbound frame.
func (c *Connection) SendFrame(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enqueueLocked(frame)
}

func (c *Connection) enqueueLocked(frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	select {
	case <-c.closed:
		return errors.ErrConnectionGone
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseTryAgainLater, "send buffer full")
		return fmt.Errorf("%w: send buffer full", errors.ErrConnectionGone)
	}
}

// Close marks the connection closed and stops the write loop. It never
// blocks: Deliver calls it while holding the conversation lock, so the close
// handshake runs on its own goroutine. Safe to call more than once.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.closed)
		go c.shutdown(code, reason)
	})
}

// shutdown sends the close frame and releases the socket. WriteControl waits
// for the write lock, which a write to a peer that stopped reading may hold
// until writeWait; closing the socket afterwards unblocks that write.
func (c *Connection) shutdown(code int, reason string) {
	deadline := time.Now().Add(closeGrace)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.ws.Close()
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
