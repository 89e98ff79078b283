package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Encode and Decode implement the pipeline's canonical binary framing: every
// value has exactly one encoding, and Decode rejects any buffer with
// trailing bytes. Scalars are little-endian fixed-width; strings and byte
// slices carry a uint32 length prefix.
//
// This is hand-rolled rather than built on a general-purpose serialization
// library because the "one canonical encoding per value, strict decode"
// contract (needed so that topic backlogs replay byte-identically to
// subscribers that received them live) is stricter than what a generic
// codec guarantees by default.

type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
	} else {
		e.u8(0)
	}
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) i64(v int64) { e.u64(uint64(v)) }

func (e *encoder) f64(v float64) {
	e.u64(math.Float64bits(v))
}

func (e *encoder) bytes(v []byte) {
	e.u32(uint32(len(v)))
	e.buf = append(e.buf, v...)
}

func (e *encoder) str(v string) { e.bytes([]byte(v)) }

func (e *encoder) strSlice(v []string) {
	e.u32(uint32(len(v)))
	for _, s := range v {
		e.str(s)
	}
}

func (e *encoder) uuid(v TopicId) {
	b := v // [16]byte-backed via uuid.UUID
	e.buf = append(e.buf, b[:]...)
}

type decoder struct {
	buf []byte
	pos int
}

func (d *decoder) fail(what string) error {
	return fmt.Errorf("wire: decode %s: truncated buffer at offset %d", what, d.pos)
}

func (d *decoder) u8() (uint8, error) {
	if d.pos+1 > len(d.buf) {
		return 0, d.fail("u8")
	}
	v := d.buf[d.pos]
	d.pos++
	return v, nil
}

func (d *decoder) boolean() (bool, error) {
	v, err := d.u8()
	if err != nil {
		return false, err
	}
	if v > 1 {
		return false, fmt.Errorf("wire: decode bool: invalid byte %d", v)
	}
	return v == 1, nil
}

func (d *decoder) u32() (uint32, error) {
	if d.pos+4 > len(d.buf) {
		return 0, d.fail("u32")
	}
	v := binary.LittleEndian.Uint32(d.buf[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if d.pos+8 > len(d.buf) {
		return 0, d.fail("u64")
	}
	v := binary.LittleEndian.Uint64(d.buf[d.pos:])
	d.pos += 8
	return v, nil
}

func (d *decoder) i64() (int64, error) {
	v, err := d.u64()
	return int64(v), err
}

func (d *decoder) f64() (float64, error) {
	v, err := d.u64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (d *decoder) bytes() ([]byte, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if d.pos+int(n) > len(d.buf) {
		return nil, d.fail("bytes")
	}
	v := make([]byte, n)
	copy(v, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return v, nil
}

func (d *decoder) str() (string, error) {
	b, err := d.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *decoder) strSlice() ([]string, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.str()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) uuid() (TopicId, error) {
	var id TopicId
	if d.pos+16 > len(d.buf) {
		return id, d.fail("uuid")
	}
	copy(id[:], d.buf[d.pos:d.pos+16])
	d.pos += 16
	return id, nil
}

func (d *decoder) finish() error {
	if d.pos != len(d.buf) {
		return fmt.Errorf("wire: decode: %d trailing byte(s)", len(d.buf)-d.pos)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Location / Callsite / Value / FieldSet / Span / DataEvent
// ---------------------------------------------------------------------------

func (e *encoder) location(l Location) {
	e.str(l.Module)
	e.boolean(l.File != "")
	if l.File != "" {
		e.str(l.File)
	}
	e.boolean(l.HasLine)
	if l.HasLine {
		e.u32(l.Line)
	}
}

func (d *decoder) location() (Location, error) {
	var l Location
	var err error
	if l.Module, err = d.str(); err != nil {
		return l, err
	}
	hasFile, err := d.boolean()
	if err != nil {
		return l, err
	}
	if hasFile {
		if l.File, err = d.str(); err != nil {
			return l, err
		}
	}
	if l.HasLine, err = d.boolean(); err != nil {
		return l, err
	}
	if l.HasLine {
		if l.Line, err = d.u32(); err != nil {
			return l, err
		}
	}
	return l, nil
}

func (e *encoder) value(v Value) {
	e.u8(uint8(v.Kind))
	switch v.Kind {
	case ValueString, ValueDebug:
		e.str(v.Str)
	case ValueI64:
		e.i64(v.I64)
	case ValueU64:
		e.u64(v.U64)
	case ValueF64:
		e.f64(v.F64)
	case ValueBool:
		e.boolean(v.Bool)
	case ValueError:
		e.str(v.ErrDescription)
		e.str(v.ErrDetails)
	}
}

func (d *decoder) value() (Value, error) {
	kind, err := d.u8()
	if err != nil {
		return Value{}, err
	}
	v := Value{Kind: ValueKind(kind)}
	switch v.Kind {
	case ValueString, ValueDebug:
		if v.Str, err = d.str(); err != nil {
			return v, err
		}
	case ValueI64:
		if v.I64, err = d.i64(); err != nil {
			return v, err
		}
	case ValueU64:
		if v.U64, err = d.u64(); err != nil {
			return v, err
		}
	case ValueF64:
		if v.F64, err = d.f64(); err != nil {
			return v, err
		}
	case ValueBool:
		if v.Bool, err = d.boolean(); err != nil {
			return v, err
		}
	case ValueError:
		if v.ErrDescription, err = d.str(); err != nil {
			return v, err
		}
		if v.ErrDetails, err = d.str(); err != nil {
			return v, err
		}
	default:
		return v, fmt.Errorf("wire: decode value: unknown kind %d", kind)
	}
	return v, nil
}

func (e *encoder) fieldSet(fs FieldSet) {
	e.u32(uint32(len(fs)))
	for _, f := range fs {
		e.str(f.Name)
		e.value(f.Value)
	}
}

func (d *decoder) fieldSet() (FieldSet, error) {
	n, err := d.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	fs := make(FieldSet, 0, n)
	for i := uint32(0); i < n; i++ {
		name, err := d.str()
		if err != nil {
			return nil, err
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		fs = append(fs, Field{Name: name, Value: val})
	}
	return fs, nil
}

func (e *encoder) callsite(c Callsite) {
	e.u64(uint64(c.Id))
	e.u8(uint8(c.Kind))
	e.str(c.Name)
	e.u8(uint8(c.Level))
	e.location(c.Location)
	e.strSlice(c.FieldNames)
}

func (d *decoder) callsite() (Callsite, error) {
	var c Callsite
	id, err := d.u64()
	if err != nil {
		return c, err
	}
	c.Id = CallsiteId(id)
	kind, err := d.u8()
	if err != nil {
		return c, err
	}
	c.Kind = CallsiteKind(kind)
	if c.Name, err = d.str(); err != nil {
		return c, err
	}
	level, err := d.u8()
	if err != nil {
		return c, err
	}
	c.Level = LogLevel(level)
	if c.Location, err = d.location(); err != nil {
		return c, err
	}
	if c.FieldNames, err = d.strSlice(); err != nil {
		return c, err
	}
	return c, nil
}

func (e *encoder) optionalSpanId(has bool, id SpanId) {
	e.boolean(has)
	if has {
		e.u64(uint64(id))
	}
}

func (d *decoder) optionalSpanId() (bool, SpanId, error) {
	has, err := d.boolean()
	if err != nil || !has {
		return has, 0, err
	}
	id, err := d.u64()
	return has, SpanId(id), err
}

func (e *encoder) span(s Span) {
	e.u64(uint64(s.Id))
	e.optionalSpanId(s.HasParent, s.ParentSpanId)
	e.u64(uint64(s.CallsiteId))
	e.fieldSet(s.Fields)
}

func (d *decoder) span() (Span, error) {
	var s Span
	id, err := d.u64()
	if err != nil {
		return s, err
	}
	s.Id = SpanId(id)
	if s.HasParent, s.ParentSpanId, err = d.optionalSpanId(); err != nil {
		return s, err
	}
	cid, err := d.u64()
	if err != nil {
		return s, err
	}
	s.CallsiteId = CallsiteId(cid)
	if s.Fields, err = d.fieldSet(); err != nil {
		return s, err
	}
	return s, nil
}

func (e *encoder) dataEvent(ev DataEvent) {
	e.u64(uint64(ev.CallsiteId))
	e.optionalSpanId(ev.HasParent, ev.ParentSpanId)
	e.fieldSet(ev.Fields)
}

func (d *decoder) dataEvent() (DataEvent, error) {
	var ev DataEvent
	cid, err := d.u64()
	if err != nil {
		return ev, err
	}
	ev.CallsiteId = CallsiteId(cid)
	if ev.HasParent, ev.ParentSpanId, err = d.optionalSpanId(); err != nil {
		return ev, err
	}
	if ev.Fields, err = d.fieldSet(); err != nil {
		return ev, err
	}
	return ev, nil
}

func (e *encoder) topicMeta(m TopicMeta) {
	e.uuid(m.Id)
	e.i64(int64(m.Created))
	e.str(m.Name)
}

func (d *decoder) topicMeta() (TopicMeta, error) {
	var m TopicMeta
	var err error
	if m.Id, err = d.uuid(); err != nil {
		return m, err
	}
	created, err := d.i64()
	if err != nil {
		return m, err
	}
	m.Created = Time(created)
	if m.Name, err = d.str(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Message
// ---------------------------------------------------------------------------

// EncodeMessage returns the canonical byte encoding of a Message.
func EncodeMessage(m Message) []byte {
	e := &encoder{}
	e.i64(int64(m.LogTime))
	e.u8(uint8(m.Kind))
	switch m.Kind {
	case MsgNewCallsite:
		e.callsite(m.NewCallsite)
	case MsgNewSpan:
		e.span(m.NewSpan)
	case MsgEnterSpan, MsgExitSpan, MsgDestroySpan:
		e.u64(uint64(m.SpanId))
	case MsgSpanFollowsFrom:
		e.u64(uint64(m.Follows.Span))
		e.u64(uint64(m.Follows.Follows))
	case MsgDataEvent:
		e.dataEvent(m.DataEvent)
	}
	return e.buf
}

// DecodeMessage parses a Message from its canonical byte encoding. It
// returns an error if the buffer has trailing bytes beyond the single
// encoded value.
func DecodeMessage(buf []byte) (Message, error) {
	d := &decoder{buf: buf}
	var m Message
	logTime, err := d.i64()
	if err != nil {
		return m, err
	}
	m.LogTime = Time(logTime)
	kind, err := d.u8()
	if err != nil {
		return m, err
	}
	m.Kind = MessageKind(kind)
	switch m.Kind {
	case MsgNewCallsite:
		if m.NewCallsite, err = d.callsite(); err != nil {
			return m, err
		}
	case MsgNewSpan:
		if m.NewSpan, err = d.span(); err != nil {
			return m, err
		}
	case MsgEnterSpan, MsgExitSpan, MsgDestroySpan:
		id, err := d.u64()
		if err != nil {
			return m, err
		}
		m.SpanId = SpanId(id)
	case MsgSpanFollowsFrom:
		sp, err := d.u64()
		if err != nil {
			return m, err
		}
		fl, err := d.u64()
		if err != nil {
			return m, err
		}
		m.Follows = SpanFollowsFrom{Span: SpanId(sp), Follows: SpanId(fl)}
	case MsgDataEvent:
		if m.DataEvent, err = d.dataEvent(); err != nil {
			return m, err
		}
	default:
		return m, fmt.Errorf("wire: decode message: unknown kind %d", kind)
	}
	if err := d.finish(); err != nil {
		return m, err
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// PubSubMsg
// ---------------------------------------------------------------------------

// EncodePubSubMsg returns the canonical byte encoding of a PubSubMsg.
func EncodePubSubMsg(m PubSubMsg) []byte {
	e := &encoder{}
	e.u8(uint8(m.Kind))
	switch m.Kind {
	case KindNewTopic:
		e.topicMeta(m.NewTopic)
	case KindTopicMsg:
		e.uuid(m.TopicMsgId)
		e.bytes(m.TopicMsgPayload)
	case KindSubscribeTo:
		e.uuid(m.SubscribeTo)
	case KindListTopics:
		// no payload
	case KindAllTopics:
		e.u32(uint32(len(m.AllTopics)))
		for _, t := range m.AllTopics {
			e.topicMeta(t)
		}
	}
	return e.buf
}

// DecodePubSubMsg parses a PubSubMsg from its canonical byte encoding. It
// returns an error if the buffer has trailing bytes beyond the single
// encoded value.
func DecodePubSubMsg(buf []byte) (PubSubMsg, error) {
	d := &decoder{buf: buf}
	var m PubSubMsg
	kind, err := d.u8()
	if err != nil {
		return m, err
	}
	m.Kind = PubSubKind(kind)
	switch m.Kind {
	case KindNewTopic:
		if m.NewTopic, err = d.topicMeta(); err != nil {
			return m, err
		}
	case KindTopicMsg:
		if m.TopicMsgId, err = d.uuid(); err != nil {
			return m, err
		}
		if m.TopicMsgPayload, err = d.bytes(); err != nil {
			return m, err
		}
	case KindSubscribeTo:
		if m.SubscribeTo, err = d.uuid(); err != nil {
			return m, err
		}
	case KindListTopics:
		// no payload
	case KindAllTopics:
		n, err := d.u32()
		if err != nil {
			return m, err
		}
		m.AllTopics = make([]TopicMeta, 0, n)
		for i := uint32(0); i < n; i++ {
			t, err := d.topicMeta()
			if err != nil {
				return m, err
			}
			m.AllTopics = append(m.AllTopics, t)
		}
	default:
		return m, fmt.Errorf("wire: decode pubsub message: unknown kind %d", kind)
	}
	if err := d.finish(); err != nil {
		return m, err
	}
	return m, nil
}
