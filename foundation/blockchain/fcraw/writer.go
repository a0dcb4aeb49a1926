package fcraw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Writer is the inverse of Reader. It produces the same wire format and is
// used to build chain fixtures. The first error encountered is kept and all
// later writes become no-ops.
type Writer struct {
	buf bytes.Buffer
	err error
}

// NewWriter constructs an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes, or the first error seen while writing.
func (w *Writer) Bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	return w.buf.Bytes(), nil
}

// Err returns the first error seen while writing.
func (w *Writer) Err() error {
	return w.err
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Fail records an error produced outside the writer, such as a bad value in
// a structure being encoded.
func (w *Writer) Fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// WriteVarint writes an unsigned LEB128 value.
func (w *Writer) WriteVarint(v uint64) {
	if w.err != nil {
		return
	}

	var b [maxVarintLen]byte
	n := binary.PutUvarint(b[:], v)
	w.buf.Write(b[:n])
}

// WriteSignedVarint writes a signed LEB128 value.
func (w *Writer) WriteSignedVarint(v int64) {
	if w.err != nil {
		return
	}

	for {
		b := byte(v & 0x7f)
		v >>= 7

		done := (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0)
		if !done {
			b |= 0x80
		}
		w.buf.WriteByte(b)

		if done {
			return
		}
	}
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) {
	if w.err != nil {
		return
	}

	w.buf.WriteByte(v)
}

// WriteU16 writes a little-endian 16 bit value.
func (w *Writer) WriteU16(v uint16) {
	if w.err != nil {
		return
	}

	w.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
}

// WriteU32 writes a little-endian 32 bit value.
func (w *Writer) WriteU32(v uint32) {
	if w.err != nil {
		return
	}

	w.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
}

// WriteU64 writes a little-endian 64 bit value.
func (w *Writer) WriteU64(v uint64) {
	if w.err != nil {
		return
	}

	w.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
}

// WriteBool writes a flag byte.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
		return
	}
	w.WriteU8(0)
}

// WriteTimestamp writes the time as microseconds since the unix epoch.
func (w *Writer) WriteTimestamp(t time.Time) {
	w.WriteU64(uint64(t.UnixMicro()))
}

// WriteFixed writes the bytes with no length prefix.
func (w *Writer) WriteFixed(b []byte) {
	if w.err != nil {
		return
	}

	w.buf.Write(b)
}

// WriteBytes writes a varint length followed by the bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteVarint(uint64(len(b)))
	w.WriteFixed(b)
}

// WriteString writes a varint length followed by the string bytes.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteObjectID writes the instance number of the object id. The space and
// type must match what the reader of the field expects.
func (w *Writer) WriteObjectID(id string, space, typ uint64) {
	if w.err != nil {
		return
	}

	s, t, instance, err := ParseObjectID(id)
	if err != nil {
		w.Fail(err)
		return
	}

	if s != space || t != typ {
		w.Fail(fmt.Errorf("object id %q: want space %d type %d", id, space, typ))
		return
	}

	w.WriteVarint(instance)
}

// WriteAssetAmount writes the amount followed by the asset id.
func (w *Writer) WriteAssetAmount(amount uint64, assetID string, space, typ uint64) {
	w.WriteU64(amount)
	w.WriteObjectID(assetID, space, typ)
}

// WriteArray writes a varint count followed by each element.
func WriteArray[T any](w *Writer, values []T, element func(*Writer, T)) {
	w.WriteVarint(uint64(len(values)))
	for _, v := range values {
		element(w, v)
	}
}

// WriteOptional writes a flag byte followed by the value when present.
func WriteOptional[T any](w *Writer, value *T, element func(*Writer, T)) {
	if value == nil {
		w.WriteBool(false)
		return
	}

	w.WriteBool(true)
	element(w, *value)
}
