package broker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rerun-io/tracepipe/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 * 1024
)

// Client represents a single WebSocket connection to the broker, playing
// either or both of the producer/subscriber roles (the protocol does not
// distinguish them at the transport level).
type Client struct {
	broker *Broker
	conn   *websocket.Conn

	send chan []byte // raw PubSubMsg frames queued for this client

	// subscriptions mirrors, for this client alone, the topic ids it has
	// joined. It exists only so removeClient can unwind the broker-side
	// topicState.subscribers sets on disconnect; all mutations happen
	// under Broker.mu inside subscribeAndReplay, never independently.
	subscriptions map[wire.TopicId]struct{}

	closeOnce sync.Once
	logger    *slog.Logger
}

// NewClient wraps an upgraded connection, registers it with the broker, and
// returns it. The caller must run ReadPump and WritePump in separate
// goroutines.
func NewClient(b *Broker, conn *websocket.Conn) *Client {
	c := &Client{
		broker:        b,
		conn:          conn,
		send:          make(chan []byte, clientSendBufferSize),
		subscriptions: make(map[wire.TopicId]struct{}),
		logger:        slog.Default().With("component", "broker-client", "remote", conn.RemoteAddr().String()),
	}
	b.register <- c
	return c
}

// terminate closes the underlying connection, which unblocks ReadPump and
// triggers unregistration. Safe to call multiple times and from any
// goroutine.
func (c *Client) terminate() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// deliver attempts a non-blocking send of an already-encoded frame to this
// client. A full queue means the client cannot keep up with its current
// subscriptions; this is fatal for the connection.
func (c *Client) deliver(frame []byte, b *Broker) {
	select {
	case c.send <- frame:
		b.metrics.incFramesBroadcast()
	default:
		b.metrics.incFramesDropped()
		c.closeOnce.Do(func() {
			b.logger.Warn("slow consumer, terminating connection")
			b.metrics.incConnectionsTerminated()
			_ = c.conn.Close()
		})
	}
}

// ReadPump reads frames from the connection and dispatches them. It must
// run in its own goroutine; on return the client is unregistered.
func (c *Client) ReadPump() {
	defer func() {
		c.broker.unregister <- c
		c.terminate()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		frameType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", "error", err)
			}
			return
		}

		switch frameType {
		case websocket.BinaryMessage:
			c.handleFrame(data)
		case websocket.PingMessage:
			_ = c.conn.WriteControl(websocket.PongMessage, data, time.Now().Add(writeWait))
		case websocket.TextMessage:
			c.logger.Debug("ignoring text frame", "bytes", len(data))
		}
	}
}

// WritePump writes queued frames to the connection and sends periodic
// pings. It must run in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.terminate()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
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

// sendRaw enqueues a single already-encoded frame directly to this client,
// bypassing subscription admission. Used for replies that are meaningful
// to one client only (AllTopics).
func (c *Client) sendRaw(frame []byte) {
	select {
	case c.send <- frame:
	default:
		c.logger.Warn("client send queue full, dropping direct reply")
	}
}

// handleFrame implements the "on incoming frame from client C" dispatch
// for a single decoded Binary frame.
func (c *Client) handleFrame(raw []byte) {
	msg, err := wire.DecodePubSubMsg(raw)
	if err != nil {
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	switch msg.Kind {
	case wire.KindNewTopic:
		if !c.broker.addTopic(msg.NewTopic) {
			c.logger.Warn("duplicate topic id, ignoring", "topic", msg.NewTopic.Id)
			return
		}
		c.broker.publish(broadcastFrame{kind: wire.KindNewTopic, raw: raw})

	case wire.KindTopicMsg:
		if !c.broker.appendBacklog(msg.TopicMsgId, msg.TopicMsgPayload) {
			c.logger.Warn("topic message for unknown topic, ignoring", "topic", msg.TopicMsgId)
			return
		}
		c.broker.publish(broadcastFrame{kind: wire.KindTopicMsg, topicID: msg.TopicMsgId, raw: raw})

	case wire.KindSubscribeTo:
		if !c.broker.subscribeAndReplay(c, msg.SubscribeTo) {
			c.logger.Warn("subscribe to unknown topic", "topic", msg.SubscribeTo)
		}

	case wire.KindListTopics:
		reply := wire.EncodePubSubMsg(wire.AllTopicsMsg(c.broker.allTopics()))
		c.sendRaw(reply)

	case wire.KindAllTopics:
		c.logger.Debug("ignoring client-sent AllTopics", "count", len(msg.AllTopics))

	default:
		c.logger.Warn("unknown PubSubMsg kind, ignoring", "kind", msg.Kind)
	}
}
