// Package broker implements the pub/sub fan-out server: it accepts many
// concurrent WebSocket connections, tracks the set of known topics and
// their backlogs, and routes wire.PubSubMsg frames between producers and
// subscribers with at-most-once delivery and per-topic ordering.
//
// It is grounded on internal/streaming.Hub/Client, generalized from
// per-tenant string topics to wire.TopicId/PubSubMsg keyed state, and
// extended with per-topic backlog replay.
package broker

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/rerun-io/tracepipe/internal/wire"
)

// broadcastBufferSize is the bound on the broker's fan-out channel: a
// bounded buffer with capacity on the order of 1024 frames.
const broadcastBufferSize = 1024

// clientSendBufferSize is the per-client outbound queue depth. A client
// whose queue fills is considered a slow consumer and is disconnected.
const clientSendBufferSize = 1024

// topicState is the broker's record for a single topic: its announced
// metadata, the ordered backlog of encoded TopicMsg payloads replayed to
// late subscribers, and the set of clients currently subscribed.
//
// Both backlog and subscribers are guarded by Broker.mu. Subscribing is
// "read backlog snapshot, add to subscribers, replay snapshot" performed
// while holding Broker.mu for the whole operation (see Client.subscribe);
// this is what prevents a concurrently-published live message for the same
// topic from reaching the client's send queue ahead of, or interleaved
// with, its backlog replay -- appendBacklog and the TopicMsg branch of
// fanOut both need the same lock, so they cannot run between a subscribe's
// snapshot and the end of its replay loop.
type topicState struct {
	meta        wire.TopicMeta
	backlog     [][]byte
	subscribers map[*Client]struct{}
}

// broadcastFrame is a message in flight on the broker's fan-out channel. It
// carries the already-encoded PubSubMsg bytes alongside enough metadata
// (kind, topic) for per-client admission filtering, so fan-out never has to
// re-decode a frame per subscriber.
type broadcastFrame struct {
	kind    wire.PubSubKind
	topicID wire.TopicId
	raw     []byte
}

// Broker is the shared pub/sub server state. The zero value is not usable;
// construct with New.
type Broker struct {
	mu     sync.RWMutex
	topics map[wire.TopicId]*topicState

	clientsMu sync.Mutex
	clients   map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastFrame

	logger  *slog.Logger
	metrics *Metrics
}

// New constructs a Broker. Run must be called in a dedicated goroutine
// before any client is registered.
func New(metrics *Metrics) *Broker {
	return &Broker{
		topics:     make(map[wire.TopicId]*topicState),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastFrame, broadcastBufferSize),
		logger:     slog.Default().With("component", "broker"),
		metrics:    metrics,
	}
}

// Run drives the broker's registration and fan-out event loop. It returns
// only when done is closed.
func (b *Broker) Run(done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case c := <-b.register:
			b.addClient(c)
		case c := <-b.unregister:
			b.removeClient(c)
		case f := <-b.broadcast:
			b.fanOut(f)
		}
	}
}

func (b *Broker) addClient(c *Client) {
	b.clientsMu.Lock()
	b.clients[c] = struct{}{}
	n := len(b.clients)
	b.clientsMu.Unlock()

	b.logger.Info("client connected", "total_clients", n)
	b.metrics.setConnectedClients(n)
}

func (b *Broker) removeClient(c *Client) {
	b.clientsMu.Lock()
	delete(b.clients, c)
	n := len(b.clients)
	b.clientsMu.Unlock()

	b.mu.Lock()
	for id := range c.subscriptions {
		if t, ok := b.topics[id]; ok {
			delete(t.subscribers, c)
		}
	}
	b.mu.Unlock()

	close(c.send)
	b.logger.Info("client disconnected", "total_clients", n)
	b.metrics.setConnectedClients(n)
}

// fanOut delivers a broadcast frame to every client whose subscription
// state admits it: NewTopic always passes (delivered to every connected
// client); TopicMsg passes only to clients subscribed to its topic.
// SubscribeTo/ListTopics/AllTopics are never broadcast (callers of publish
// never enqueue those kinds).
func (b *Broker) fanOut(f broadcastFrame) {
	var targets []*Client

	switch f.kind {
	case wire.KindNewTopic:
		b.clientsMu.Lock()
		targets = make([]*Client, 0, len(b.clients))
		for c := range b.clients {
			targets = append(targets, c)
		}
		b.clientsMu.Unlock()

	case wire.KindTopicMsg:
		b.mu.RLock()
		if t, ok := b.topics[f.topicID]; ok {
			targets = make([]*Client, 0, len(t.subscribers))
			for c := range t.subscribers {
				targets = append(targets, c)
			}
		}
		b.mu.RUnlock()
	}

	for _, c := range targets {
		c.deliver(f.raw, b)
	}
}

// publish enqueues a frame for fan-out. It never blocks the caller beyond
// the bounded broadcast channel's own backpressure, which in steady state
// is drained continuously by Run.
func (b *Broker) publish(f broadcastFrame) {
	b.broadcast <- f
}

// addTopic registers a new topic. It reports whether the topic was newly
// inserted; a duplicate id is a protocol violation the caller logs and
// ignores (broker state is left untouched).
func (b *Broker) addTopic(meta wire.TopicMeta) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.topics[meta.Id]; exists {
		return false
	}
	b.topics[meta.Id] = &topicState{meta: meta, subscribers: make(map[*Client]struct{})}
	return true
}

// appendBacklog appends payload to id's backlog if the topic is known. It
// reports whether the topic existed.
func (b *Broker) appendBacklog(id wire.TopicId, payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.topics[id]
	if !ok {
		return false
	}
	t.backlog = append(t.backlog, payload)
	return true
}

// subscribeAndReplay registers c as a subscriber of id and replays the
// topic's current backlog to c, atomically with respect to appendBacklog
// and fanOut's TopicMsg branch (all three take Broker.mu for this topic).
// It reports whether the topic was known.
func (b *Broker) subscribeAndReplay(c *Client, id wire.TopicId) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[id]
	if !ok {
		return false
	}
	t.subscribers[c] = struct{}{}
	c.subscriptions[id] = struct{}{}

	for _, payload := range t.backlog {
		frame := wire.EncodePubSubMsg(wire.TopicMsgMsg(id, payload))
		c.deliver(frame, b)
	}
	return true
}

// allTopics returns every known topic's metadata, sorted by creation time
// for reproducibility. Cross-client ordering is otherwise unguaranteed.
func (b *Broker) allTopics() []wire.TopicMeta {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]wire.TopicMeta, 0, len(b.topics))
	for _, t := range b.topics {
		out = append(out, t.meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out
}

// topicDebugInfo is used by the /debug/topics endpoint.
type topicDebugInfo struct {
	Id            string `json:"id"`
	Name          string `json:"name"`
	Created       int64  `json:"created"`
	BacklogFrames int    `json:"backlog_frames"`
	Subscribers   int    `json:"subscribers"`
}

func (b *Broker) debugTopics() []topicDebugInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]topicDebugInfo, 0, len(b.topics))
	for id, t := range b.topics {
		out = append(out, topicDebugInfo{
			Id:            id.String(),
			Name:          t.meta.Name,
			Created:       int64(t.meta.Created),
			BacklogFrames: len(t.backlog),
			Subscribers:   len(t.subscribers),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created < out[j].Created })
	return out
}

// connectedClients returns the current client count, for metrics and
// health reporting.
func (b *Broker) connectedClients() int {
	b.clientsMu.Lock()
	defer b.clientsMu.Unlock()
	return len(b.clients)
}

// TopicCount returns the current number of known topics. It is exported so
// callers can wire it as a Prometheus GaugeFunc source before the broker's
// metrics are attached (see SetMetrics).
func (b *Broker) TopicCount() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return float64(len(b.topics))
}

// SetMetrics attaches a Metrics instance constructed after the broker
// itself, since NewMetrics needs a TopicCount callback that closes over a
// live *Broker. Must be called before Run starts processing events from
// more than one goroutine's perspective; in practice this means calling it
// immediately after New, before any client connects.
func (b *Broker) SetMetrics(m *Metrics) {
	b.metrics = m
}
