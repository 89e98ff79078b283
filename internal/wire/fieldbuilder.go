package wire

// FieldBuilder incrementally accumulates a FieldSet, mirroring the
// visitor-style field collection the host tracing framework performs per
// callsite (original_source/logger/src/lib.rs's KvCollector walks a
// tracing::field::Visit callback one field at a time). It exists purely for
// producer-side convenience and has no effect on wire semantics -- the
// broker and trace index only ever see the resulting FieldSet.
type FieldBuilder struct {
	fields FieldSet
}

// NewFieldBuilder returns an empty builder.
func NewFieldBuilder() *FieldBuilder {
	return &FieldBuilder{}
}

func (b *FieldBuilder) Str(name, v string) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: StringValue(v)})
	return b
}

func (b *FieldBuilder) I64(name string, v int64) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: I64Value(v)})
	return b
}

func (b *FieldBuilder) U64(name string, v uint64) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: U64Value(v)})
	return b
}

func (b *FieldBuilder) F64(name string, v float64) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: F64Value(v)})
	return b
}

func (b *FieldBuilder) Bool(name string, v bool) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: BoolValue(v)})
	return b
}

func (b *FieldBuilder) Debug(name, v string) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: DebugValue(v)})
	return b
}

func (b *FieldBuilder) Err(name, description, details string) *FieldBuilder {
	b.fields = append(b.fields, Field{Name: name, Value: ErrorValue(description, details)})
	return b
}

// Build returns the accumulated FieldSet. The builder remains usable
// afterwards; callers that want an isolated copy should not keep adding
// fields to a builder whose FieldSet has already been handed to a message.
func (b *FieldBuilder) Build() FieldSet {
	return b.fields
}
