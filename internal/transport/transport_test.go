package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventQueueFIFO(t *testing.T) {
	q := newEventQueue()
	q.push(WsEvent{Kind: EventOpened})
	q.push(WsEvent{Kind: EventMessage, Message: Text("a")})
	q.push(WsEvent{Kind: EventMessage, Message: Text("b")})

	ev, ok := q.pop()
	assert.True(t, ok)
	assert.Equal(t, EventOpened, ev.Kind)

	ev, ok = q.pop()
	assert.True(t, ok)
	assert.Equal(t, "a", string(ev.Message.Data))

	ev, ok = q.pop()
	assert.True(t, ok)
	assert.Equal(t, "b", string(ev.Message.Data))

	_, ok = q.pop()
	assert.False(t, ok, "queue should be empty")
}

func TestEventQueueGrowsUnboundedWhenConsumerLags(t *testing.T) {
	q := newEventQueue()
	const n = 10000
	for i := 0; i < n; i++ {
		q.push(WsEvent{Kind: EventMessage, Message: Text(string(rune('a' + i%26)))})
	}

	for i := 0; i < n; i++ {
		ev, ok := q.pop()
		assert.True(t, ok, "event %d should still be present, not dropped", i)
		assert.Equal(t, string(rune('a'+i%26)), string(ev.Message.Data))
	}

	_, ok := q.pop()
	assert.False(t, ok, "queue should be empty after draining everything pushed")
}

func TestMessageConstructors(t *testing.T) {
	bm := Binary([]byte{1, 2, 3})
	assert.Equal(t, WsBinary, bm.Kind)
	assert.Equal(t, []byte{1, 2, 3}, bm.Data)

	tm := Text("hello")
	assert.Equal(t, WsText, tm.Kind)
	assert.Equal(t, "hello", string(tm.Data))
}
