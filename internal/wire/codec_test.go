package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
	}{
		{
			name: "new callsite with location and field names",
			msg: Message{
				LogTime: 1234,
				Kind:    MsgNewCallsite,
				NewCallsite: Callsite{
					Id:         CallsiteId(0xdeadbeef),
					Kind:       CallsiteSpan,
					Name:       "handle_request",
					Level:      LevelInfo,
					Location:   Location{Module: "server", File: "server.rs", Line: 42, HasLine: true},
					FieldNames: []string{"method", "path"},
				},
			},
		},
		{
			name: "new span with parent and mixed fields",
			msg: Message{
				LogTime: 5555,
				Kind:    MsgNewSpan,
				NewSpan: Span{
					Id:           SpanId(7),
					HasParent:    true,
					ParentSpanId: SpanId(3),
					CallsiteId:   CallsiteId(1),
					Fields: FieldSet{
						{Name: "method", Value: StringValue("GET")},
						{Name: "count", Value: I64Value(-4)},
						{Name: "size", Value: U64Value(1024)},
						{Name: "ratio", Value: F64Value(0.25)},
						{Name: "ok", Value: BoolValue(true)},
						{Name: "dbg", Value: DebugValue("Foo { x: 1 }")},
						{Name: "err", Value: ErrorValue("boom", "disk full")},
					},
				},
			},
		},
		{
			name: "new span without parent",
			msg: Message{
				LogTime: 1,
				Kind:    MsgNewSpan,
				NewSpan: Span{
					Id:         SpanId(1),
					HasParent:  false,
					CallsiteId: CallsiteId(1),
				},
			},
		},
		{name: "enter span", msg: Message{LogTime: 2, Kind: MsgEnterSpan, SpanId: SpanId(9)}},
		{name: "exit span", msg: Message{LogTime: 3, Kind: MsgExitSpan, SpanId: SpanId(9)}},
		{name: "destroy span", msg: Message{LogTime: 4, Kind: MsgDestroySpan, SpanId: SpanId(9)}},
		{
			name: "span follows from",
			msg: Message{
				LogTime: 6,
				Kind:    MsgSpanFollowsFrom,
				Follows: SpanFollowsFrom{Span: SpanId(2), Follows: SpanId(1)},
			},
		},
		{
			name: "data event with parent",
			msg: Message{
				LogTime: 7,
				Kind:    MsgDataEvent,
				DataEvent: DataEvent{
					CallsiteId:   CallsiteId(3),
					HasParent:    true,
					ParentSpanId: SpanId(2),
					Fields:       FieldSet{{Name: "msg", Value: StringValue("hello")}},
				},
			},
		},
		{
			name: "data event without parent and no fields",
			msg: Message{
				LogTime:   8,
				Kind:      MsgDataEvent,
				DataEvent: DataEvent{CallsiteId: CallsiteId(3)},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodeMessage(tc.msg)
			decoded, err := DecodeMessage(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.msg, decoded)
		})
	}
}

func TestDecodeMessageRejectsTrailingBytes(t *testing.T) {
	encoded := EncodeMessage(Message{LogTime: 1, Kind: MsgEnterSpan, SpanId: SpanId(1)})
	encoded = append(encoded, 0xff)
	_, err := DecodeMessage(encoded)
	assert.Error(t, err, "trailing bytes after a valid message must be rejected")
}

func TestDecodeMessageRejectsTruncatedBuffer(t *testing.T) {
	encoded := EncodeMessage(Message{LogTime: 1, Kind: MsgEnterSpan, SpanId: SpanId(1)})
	_, err := DecodeMessage(encoded[:len(encoded)-2])
	assert.Error(t, err, "truncated buffer must be rejected")
}

func TestDecodeMessageRejectsUnknownKind(t *testing.T) {
	encoded := EncodeMessage(Message{LogTime: 1, Kind: MsgEnterSpan, SpanId: SpanId(1)})
	encoded[8] = 0xff // the byte right after the 8-byte log_time holds the kind tag
	_, err := DecodeMessage(encoded)
	assert.Error(t, err)
}

func TestPubSubMsgRoundTrip(t *testing.T) {
	topicA := NewTopicId()
	topicB := NewTopicId()

	cases := []struct {
		name string
		msg  PubSubMsg
	}{
		{name: "new topic", msg: NewTopicMsg(TopicMeta{Id: topicA, Created: 100, Name: "my-session"})},
		{name: "topic message", msg: TopicMsgMsg(topicA, []byte{1, 2, 3, 4})},
		{name: "topic message empty payload", msg: TopicMsgMsg(topicA, nil)},
		{name: "subscribe to", msg: SubscribeToMsg(topicA)},
		{name: "list topics", msg: ListTopicsMsg()},
		{
			name: "all topics",
			msg: AllTopicsMsg([]TopicMeta{
				{Id: topicA, Created: 1, Name: "a"},
				{Id: topicB, Created: 2, Name: "b"},
			}),
		},
		{name: "all topics empty", msg: AllTopicsMsg(nil)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := EncodePubSubMsg(tc.msg)
			decoded, err := DecodePubSubMsg(encoded)
			require.NoError(t, err)
			assert.Equal(t, tc.msg.Kind, decoded.Kind)
			switch tc.msg.Kind {
			case KindNewTopic:
				assert.Equal(t, tc.msg.NewTopic, decoded.NewTopic)
			case KindTopicMsg:
				assert.Equal(t, tc.msg.TopicMsgId, decoded.TopicMsgId)
				assert.Equal(t, len(tc.msg.TopicMsgPayload), len(decoded.TopicMsgPayload))
			case KindSubscribeTo:
				assert.Equal(t, tc.msg.SubscribeTo, decoded.SubscribeTo)
			case KindAllTopics:
				assert.Equal(t, len(tc.msg.AllTopics), len(decoded.AllTopics))
				for i := range tc.msg.AllTopics {
					assert.Equal(t, tc.msg.AllTopics[i], decoded.AllTopics[i])
				}
			}
		})
	}
}

func TestDecodePubSubMsgRejectsTrailingBytes(t *testing.T) {
	encoded := EncodePubSubMsg(ListTopicsMsg())
	encoded = append(encoded, 0x00)
	_, err := DecodePubSubMsg(encoded)
	assert.Error(t, err)
}

func TestValueStringFormatting(t *testing.T) {
	assert.Equal(t, `"GET"`, StringValue("GET").String())
	assert.Equal(t, "-4", I64Value(-4).String())
	assert.Equal(t, "1024", U64Value(1024).String())
	assert.Equal(t, "true", BoolValue(true).String())
	assert.Equal(t, "false", BoolValue(false).String())
	assert.Equal(t, "Error: boom, disk full", ErrorValue("boom", "disk full").String())
}

func TestLocationFormatting(t *testing.T) {
	assert.Equal(t, "mymod", Location{Module: "mymod"}.String())
	assert.Equal(t, "mymod file.rs", Location{Module: "mymod", File: "file.rs"}.String())
	assert.Equal(t, "mymod, line 42", Location{Module: "mymod", Line: 42, HasLine: true}.String())
	assert.Equal(t, "mymod file.rs:42", Location{Module: "mymod", File: "file.rs", Line: 42, HasLine: true}.String())
}

func TestCallsiteIdAndSpanIdHexFormatting(t *testing.T) {
	assert.Equal(t, "00000000deadbeef", CallsiteId(0xdeadbeef).HexString())
	assert.Equal(t, "00000000DEADBEEF", SpanId(0xdeadbeef).HexString())
}
