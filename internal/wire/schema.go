// Package wire defines the tagged-message vocabulary and framing shared by
// every endpoint of the tracing pipeline: producers, the broker, and
// viewers. It has no dependency on transport or storage -- only the wire
// schema itself.
package wire

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultPubSubPort is the broker's default TCP/HTTP bind port.
const DefaultPubSubPort = 9002

// DefaultViewerWebServerPort is the default port of the (out-of-scope)
// static web host that serves the viewer application. It is carried here
// only so producers and documentation have one place to reference it.
const DefaultViewerWebServerPort = 8787

// TopicId is a 128-bit opaque identity, globally unique per producer
// session.
type TopicId = uuid.UUID

// NewTopicId returns a fresh, random TopicId.
func NewTopicId() TopicId {
	return uuid.New()
}

// CallsiteId is a 64-bit hash of a stable source-location identity; equal
// hashes denote equal callsites.
type CallsiteId uint64

// HexString renders a CallsiteId as 16 lowercase hex digits.
func (id CallsiteId) HexString() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// SpanId is a 64-bit hash of a per-producer span instance identity; unique
// within a topic over the session.
type SpanId uint64

// HexString renders a SpanId as 16 uppercase hex digits, matching the
// convention that distinguishes span identities from callsite identities at
// a glance in logs.
func (id SpanId) HexString() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// Time is nanoseconds since the Unix epoch, monotone within a single
// producer.
type Time int64

// Now returns the current time as nanoseconds since the Unix epoch.
func Now() Time {
	return Time(time.Now().UnixNano())
}

// Format renders a Time as a human-readable local time of day
// ("15:04:05.000000000", nanosecond precision, no date), for logging and
// UI display.
func (t Time) Format() string {
	return time.Unix(0, int64(t)).Format("15:04:05.000000000")
}

// ---------------------------------------------------------------------------
// TopicMeta
// ---------------------------------------------------------------------------

// TopicMeta describes a topic: its identity, creation time, and a
// human-readable name. It is announced once per topic, by the producer's
// first connect, and re-announced by the broker to every subscriber.
type TopicMeta struct {
	Id      TopicId
	Created Time
	Name    string
}

// ---------------------------------------------------------------------------
// PubSubMsg
// ---------------------------------------------------------------------------

// PubSubKind tags a PubSubMsg's variant, both on the wire and for the
// broker's internal broadcast admission checks.
type PubSubKind uint8

const (
	KindNewTopic PubSubKind = iota
	KindTopicMsg
	KindSubscribeTo
	KindListTopics
	KindAllTopics
)

// PubSubMsg is the envelope exchanged between producers, the broker, and
// subscribers. Exactly one of the fields below is meaningful, selected by
// Kind; this mirrors a Rust-style tagged union without needing a `type
// switch` over an interface at every call site.
type PubSubMsg struct {
	Kind PubSubKind

	// KindNewTopic
	NewTopic TopicMeta

	// KindTopicMsg
	TopicMsgId      TopicId
	TopicMsgPayload []byte

	// KindSubscribeTo
	SubscribeTo TopicId

	// KindListTopics carries no payload.

	// KindAllTopics
	AllTopics []TopicMeta
}

func NewTopicMsg(meta TopicMeta) PubSubMsg {
	return PubSubMsg{Kind: KindNewTopic, NewTopic: meta}
}

func TopicMsgMsg(id TopicId, payload []byte) PubSubMsg {
	return PubSubMsg{Kind: KindTopicMsg, TopicMsgId: id, TopicMsgPayload: payload}
}

func SubscribeToMsg(id TopicId) PubSubMsg {
	return PubSubMsg{Kind: KindSubscribeTo, SubscribeTo: id}
}

func ListTopicsMsg() PubSubMsg {
	return PubSubMsg{Kind: KindListTopics}
}

func AllTopicsMsg(metas []TopicMeta) PubSubMsg {
	return PubSubMsg{Kind: KindAllTopics, AllTopics: metas}
}

// ---------------------------------------------------------------------------
// Message / MessageEnum
// ---------------------------------------------------------------------------

// MessageKind tags a Message's body variant.
type MessageKind uint8

const (
	MsgNewCallsite MessageKind = iota
	MsgNewSpan
	MsgEnterSpan
	MsgExitSpan
	MsgDestroySpan
	MsgSpanFollowsFrom
	MsgDataEvent
)

// Message is a single structured-tracing record: a log_time plus a tagged
// body.
type Message struct {
	LogTime Time
	Kind    MessageKind

	NewCallsite Callsite
	NewSpan     Span
	SpanId      SpanId // EnterSpan / ExitSpan / DestroySpan
	Follows     SpanFollowsFrom
	DataEvent   DataEvent
}

func NewMessage(logTime Time, kind MessageKind) Message {
	return Message{LogTime: logTime, Kind: kind}
}

// ---------------------------------------------------------------------------
// Callsite
// ---------------------------------------------------------------------------

// CallsiteKind distinguishes an Event callsite from a Span callsite.
type CallsiteKind uint8

const (
	CallsiteEvent CallsiteKind = iota
	CallsiteSpan
)

func (k CallsiteKind) String() string {
	switch k {
	case CallsiteEvent:
		return "Event"
	case CallsiteSpan:
		return "Span"
	default:
		return "Unknown"
	}
}

// LogLevel mirrors the five levels of the host tracing framework.
type LogLevel uint8

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "Trace"
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarn:
		return "Warn"
	case LevelError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Location describes a source-code position: the producing module, and
// optionally a file and line number.
type Location struct {
	Module string
	File   string // empty means "not provided"
	Line   uint32
	HasLine bool
}

func (l Location) String() string {
	switch {
	case l.File == "" && !l.HasLine:
		return l.Module
	case l.File != "" && !l.HasLine:
		return l.Module + " " + l.File
	case l.File == "" && l.HasLine:
		return l.Module + ", line " + itoa(l.Line)
	default:
		return l.Module + " " + l.File + ":" + itoa(l.Line)
	}
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Callsite is a static source-code position from which spans or events
// originate. The field-name list names data that may be provided in later
// Span/DataEvent calls.
type Callsite struct {
	Id         CallsiteId
	Kind       CallsiteKind
	Name       string
	Level      LogLevel
	Location   Location
	FieldNames []string
}

// ---------------------------------------------------------------------------
// Span / DataEvent / Value
// ---------------------------------------------------------------------------

// Span is a dynamic instance of a Span-kind callsite.
type Span struct {
	Id            SpanId
	HasParent     bool
	ParentSpanId  SpanId
	CallsiteId    CallsiteId
	Fields        FieldSet
}

// SpanFollowsFrom records that a span follows (was spawned from) another.
type SpanFollowsFrom struct {
	Span    SpanId
	Follows SpanId
}

// DataEvent is a single, immutable emission of fields tied to an Event
// callsite, optionally attached to a parent span.
type DataEvent struct {
	CallsiteId   CallsiteId
	HasParent    bool
	ParentSpanId SpanId
	Fields       FieldSet
}

// Field is a single named value within a FieldSet.
type Field struct {
	Name  string
	Value Value
}

// FieldSet is an ordered list of (name, value) pairs.
type FieldSet []Field

// ValueKind tags a Value's variant.
type ValueKind uint8

const (
	ValueString ValueKind = iota
	ValueI64
	ValueU64
	ValueF64
	ValueBool
	ValueDebug
	ValueError
)

// Value is a tagged union of the scalar types a field may hold.
type Value struct {
	Kind Kind

	Str             string // String, Debug
	I64             int64
	U64             uint64
	F64             float64
	Bool            bool
	ErrDescription  string
	ErrDetails      string
}

// Kind is an alias kept for readability at call sites (wire.Value{Kind: wire.ValueI64, ...}).
type Kind = ValueKind

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func I64Value(v int64) Value     { return Value{Kind: ValueI64, I64: v} }
func U64Value(v uint64) Value    { return Value{Kind: ValueU64, U64: v} }
func F64Value(v float64) Value   { return Value{Kind: ValueF64, F64: v} }
func BoolValue(v bool) Value     { return Value{Kind: ValueBool, Bool: v} }
func DebugValue(s string) Value  { return Value{Kind: ValueDebug, Str: s} }
func ErrorValue(description, details string) Value {
	return Value{Kind: ValueError, ErrDescription: description, ErrDetails: details}
}

// String renders a Value the way the viewer displays it inline.
func (v Value) String() string {
	switch v.Kind {
	case ValueString:
		return `"` + v.Str + `"`
	case ValueI64:
		return itoa64(v.I64)
	case ValueU64:
		return itoau64(v.U64)
	case ValueF64:
		return ftoa(v.F64)
	case ValueBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case ValueDebug:
		return `"` + v.Str + `"`
	case ValueError:
		return "Error: " + v.ErrDescription + ", " + v.ErrDetails
	default:
		return "?"
	}
}

func itoa64(v int64) string {
	if v < 0 {
		return "-" + itoau64(uint64(-v))
	}
	return itoau64(uint64(v))
}

func itoau64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
