package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// fieldWriter appends protobuf wire fields to a message body.
type fieldWriter struct {
	b []byte
}

func (w *fieldWriter) uint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, v)
}

func (w *fieldWriter) int(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, protowire.EncodeZigZag(v))
}

func (w *fieldWriter) bool(num protowire.Number, v bool) {
	if v {
		w.uint(num, 1)
	}
}

func (w *fieldWriter) float32(num protowire.Number, v float32) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.Fixed32Type)
	w.b = protowire.AppendFixed32(w.b, math.Float32bits(v))
}

func (w *fieldWriter) float64(num protowire.Number, v float64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.Fixed64Type)
	w.b = protowire.AppendFixed64(w.b, math.Float64bits(v))
}

func (w *fieldWriter) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendString(w.b, v)
}

func (w *fieldWriter) message(num protowire.Number, body []byte) {
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendBytes(w.b, body)
}

// fieldReader walks the fields of a message body.
type fieldReader struct {
	b   []byte
	err error

	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

func newFieldReader(b []byte) *fieldReader {
	return &fieldReader{b: b}
}

// next advances to the next field. Unknown wire types are skipped.
func (r *fieldReader) next() bool {
	if r.err != nil || len(r.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		r.err = fmt.Errorf("%w: %w", ErrMalformedField, protowire.ParseError(n))
		return false
	}
	r.b = r.b[n:]
	r.num, r.typ = num, typ

	switch typ {
	case protowire.VarintType:
		r.varint, n = protowire.ConsumeVarint(r.b)
	case protowire.Fixed32Type:
		var v uint32
		v, n = protowire.ConsumeFixed32(r.b)
		r.fixed = uint64(v)
	case protowire.Fixed64Type:
		r.fixed, n = protowire.ConsumeFixed64(r.b)
	case protowire.BytesType:
		r.bytes, n = protowire.ConsumeBytes(r.b)
	default:
		n = protowire.ConsumeFieldValue(num, typ, r.b)
	}
	if n < 0 {
		r.err = fmt.Errorf("%w: field %d: %w", ErrMalformedField, num, protowire.ParseError(n))
		return false
	}
	r.b = r.b[n:]
	return true
}

func (r *fieldReader) uint() uint64 { return r.varint }

func (r *fieldReader) int() int64 { return protowire.DecodeZigZag(r.varint) }

func (r *fieldReader) bool() bool { return r.varint != 0 }

func (r *fieldReader) float32() float32 { return math.Float32frombits(uint32(r.fixed)) }

func (r *fieldReader) float64() float64 { return math.Float64frombits(r.fixed) }

func (r *fieldReader) string() string { return string(r.bytes) }
