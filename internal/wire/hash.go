package wire

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// HashCallsiteId derives a stable CallsiteId from a source-location
// identity (module path, callsite name, and line number). Producers that
// don't already have a native callsite pointer to hash (as the host
// tracing framework's tracing::callsite::Identifier does) can use this to
// get the same "equal source location implies equal id" property, using
// the hasher prometheus's client library already pulls in transitively.
func HashCallsiteId(module, name string, line uint32) CallsiteId {
	h := xxhash.New()
	_, _ = h.WriteString(module)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(name)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(strconv.FormatUint(uint64(line), 10))
	return CallsiteId(h.Sum64())
}

// HashSpanId derives a SpanId for a new span instance. Unlike a callsite
// id, a span id must be unique per instance, not per source location, so
// the seed includes a caller-supplied monotonically increasing sequence
// number alongside the callsite.
func HashSpanId(callsite CallsiteId, seq uint64) SpanId {
	h := xxhash.New()
	var buf [8]byte
	putUint64(buf[:], uint64(callsite))
	_, _ = h.Write(buf[:])
	putUint64(buf[:], seq)
	_, _ = h.Write(buf[:])
	return SpanId(h.Sum64())
}

func putUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
