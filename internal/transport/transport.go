// Package transport provides a minimal WebSocket transport abstraction
// shared by producers and viewers: a non-blocking event queue sitting on
// top of a native gorilla/websocket connection. It deliberately mirrors the
// shape of a browser WebSocket API (open/message/error/close events,
// non-blocking receive) so the same producer and viewer code can one day
// run unmodified against a WASM build.
package transport

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 * 1024

	// outboundQueueSize bounds the outbound write-pump channel. Unlike the
	// inbound eventQueue, this sits between Send (caller-driven) and the
	// network, so Send itself documents the drop-on-full behavior below.
	outboundQueueSize = 4096
)

// WsMessageKind tags a WsMessage's payload variant.
type WsMessageKind uint8

const (
	WsBinary WsMessageKind = iota
	WsText
	WsPing
	WsPong
	WsUnknown
)

// WsMessage is a single inbound or outbound frame.
type WsMessage struct {
	Kind WsMessageKind
	Data []byte
}

func Binary(data []byte) WsMessage { return WsMessage{Kind: WsBinary, Data: data} }
func Text(data string) WsMessage   { return WsMessage{Kind: WsText, Data: []byte(data)} }

// WsEventKind tags a WsEvent's variant.
type WsEventKind uint8

const (
	EventOpened WsEventKind = iota
	EventMessage
	EventError
	EventClosed
)

// WsEvent is a single connection lifecycle event delivered to the receiver.
type WsEvent struct {
	Kind    WsEventKind
	Message WsMessage // EventMessage
	Error   string    // EventError
}

// Sender enqueues outbound frames. Send never blocks the caller on network
// I/O; frames are handed to a dedicated write goroutine.
type Sender interface {
	Send(WsMessage)
	Close()
}

// Receiver delivers inbound connection events. TryRecv is non-blocking and
// returns ok=false when no event is currently queued.
type Receiver interface {
	TryRecv() (WsEvent, bool)
}

// Connect dials url and returns a Sender/Receiver pair. wake, if non-nil, is
// invoked once (from an arbitrary goroutine) every time a new event is
// enqueued, so a caller integrating with an external event loop (egui-style
// repaint request) knows to poll TryRecv again without busy-waiting.
func Connect(ctx context.Context, rawURL string, wake func()) (Sender, Receiver, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}

	c := &client{
		conn:   conn,
		send:   make(chan WsMessage, outboundQueueSize),
		events: newEventQueue(),
		wake:   wake,
		logger: slog.Default().With("component", "transport", "url", rawURL),
	}
	c.events.push(WsEvent{Kind: EventOpened})
	c.wakeIfSet()

	go c.readPump()
	go c.writePump()

	return c, c, nil
}

// client implements both Sender and Receiver for a single connection.
type client struct {
	conn   *websocket.Conn
	send   chan WsMessage
	events *eventQueue
	wake   func()
	logger *slog.Logger

	closeOnce sync.Once
}

func (c *client) wakeIfSet() {
	if c.wake != nil {
		c.wake()
	}
}

// Send hands msg to the write goroutine without blocking. When the outbound
// queue already holds outboundQueueSize frames, msg is dropped and a warning
// is logged.
func (c *client) Send(msg WsMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("outbound queue full, dropping frame")
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

func (c *client) TryRecv() (WsEvent, bool) {
	return c.events.pop()
}

func (c *client) readPump() {
	defer func() {
		c.conn.Close()
		c.events.push(WsEvent{Kind: EventClosed})
		c.wakeIfSet()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.events.push(WsEvent{Kind: EventMessage, Message: WsMessage{Kind: WsPong}})
		c.wakeIfSet()
		return nil
	})
	c.conn.SetPingHandler(func(appData string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.events.push(WsEvent{Kind: EventMessage, Message: WsMessage{Kind: WsPing, Data: []byte(appData)}})
		c.wakeIfSet()
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.events.push(WsEvent{Kind: EventError, Error: err.Error()})
				c.wakeIfSet()
			}
			return
		}
		var msg WsMessage
		switch frameType {
		case websocket.BinaryMessage:
			msg = WsMessage{Kind: WsBinary, Data: data}
		case websocket.TextMessage:
			msg = WsMessage{Kind: WsText, Data: data}
		default:
			msg = WsMessage{Kind: WsUnknown, Data: data}
		}
		c.events.push(WsEvent{Kind: EventMessage, Message: msg})
		c.wakeIfSet()
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeOne(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) writeOne(msg WsMessage) error {
	switch msg.Kind {
	case WsBinary:
		return c.conn.WriteMessage(websocket.BinaryMessage, msg.Data)
	case WsText:
		return c.conn.WriteMessage(websocket.TextMessage, msg.Data)
	case WsPing:
		return c.conn.WriteControl(websocket.PingMessage, msg.Data, time.Now().Add(writeWait))
	case WsPong:
		return c.conn.WriteControl(websocket.PongMessage, msg.Data, time.Now().Add(writeWait))
	default:
		return nil
	}
}

// eventQueue is an unbounded, mutex-guarded FIFO used to bridge the read
// goroutine's pushes with a consumer's non-blocking, single-consumer polls.
// A channel would work for Push/blocking-Pop, but TryRecv's contract (never
// block) is awkward to express with a plain channel once a buffered
// channel fills, so a slice-backed queue under a mutex is used instead. It
// grows without bound: a slow consumer accumulates memory rather than
// silently losing events.
type eventQueue struct {
	mu    sync.Mutex
	items []WsEvent
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

func (q *eventQueue) push(ev WsEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, ev)
}

func (q *eventQueue) pop() (WsEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return WsEvent{}, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}
