// Package fcraw implements the binary serialization format used by the legacy
// chain's node software for blocks, transactions and operations. The package
// knows nothing about chain semantics, it only provides the primitives.
package fcraw

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Set of error variables for decoding failures.
var (
	ErrTruncatedInput = errors.New("truncated input")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrVarintOverflow = errors.New("varint overflows 64 bits")
)

// maxVarintLen is the longest encoding of a 64 bit LEB128 value.
const maxVarintLen = 10

// Reader is a cursor over a byte buffer. Every read either advances the
// cursor and returns a value or fails with ErrTruncatedInput, it never reads
// past the end of the buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader constructs a Reader positioned at the start of the buffer.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor offset.
func (r *Reader) Pos() int {
	return r.pos
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// AtEnd reports whether every byte of the buffer has been consumed.
func (r *Reader) AtEnd() bool {
	return r.pos >= len(r.buf)
}

// Span returns a copy of the bytes between the two offsets. It is used to
// capture the exact encoding of a structure that was just decoded.
func (r *Reader) Span(from, to int) []byte {
	if from < 0 || to > len(r.buf) || from > to {
		return nil
	}

	out := make([]byte, to-from)
	copy(out, r.buf[from:to])

	return out
}

// take advances the cursor n bytes and returns the bytes skipped over.
func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedInput, n, r.pos, r.Remaining())
	}

	b := r.buf[r.pos : r.pos+n]
	r.pos += n

	return b, nil
}

// /////////////////////////////////////////////////////////////////

// ReadVarint reads an unsigned LEB128 value. Seven bits accumulate per byte
// while the high bit is set.
func (r *Reader) ReadVarint() (uint64, error) {
	var value uint64
	var shift uint

	for i := 0; i < maxVarintLen; i++ {
		b, err := r.ReadU8()
		if err != nil {
			return 0, err
		}

		if i == maxVarintLen-1 && b > 1 {
			return 0, ErrVarintOverflow
		}

		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, nil
		}
		shift += 7
	}

	return 0, ErrVarintOverflow
}

// ReadSignedVarint reads a signed LEB128 value. The result is sign extended
// when the second highest bit of the terminating byte is set.
func (r *Reader) ReadSignedVarint() (int64, error) {
	var value int64
	var shift uint
	var b byte

	for i := 0; ; i++ {
		if i == maxVarintLen {
			return 0, ErrVarintOverflow
		}

		var err error
		if b, err = r.ReadU8(); err != nil {
			return 0, err
		}

		value |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}

	if shift < 64 && b&0x40 != 0 {
		value |= -1 << shift
	}

	return value, nil
}

// ReadU8 reads a single byte.
func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// ReadU16 reads a little-endian 16 bit value.
func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads a little-endian 32 bit value.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads a little-endian 64 bit value.
func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// ReadBool reads a single byte flag. Any nonzero value is true.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}

	return b != 0, nil
}

// ReadTimestamp reads a 64 bit count of microseconds since the unix epoch.
func (r *Reader) ReadTimestamp() (time.Time, error) {
	us, err := r.ReadU64()
	if err != nil {
		return time.Time{}, err
	}

	return time.UnixMicro(int64(us)).UTC(), nil
}

// ReadFixed reads exactly n bytes with no length prefix.
func (r *Reader) ReadFixed(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, b)

	return out, nil
}

// ReadBytes reads a varint length followed by that many raw bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}

	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: declared length %d at offset %d, have %d", ErrTruncatedInput, n, r.pos, r.Remaining())
	}

	return r.ReadFixed(int(n))
}

// ReadString reads a varint length followed by that many bytes of UTF-8.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ReadObjectID reads a varint instance number and renders it with the space
// and type implied by the field being read.
func (r *Reader) ReadObjectID(space, typ uint64) (string, error) {
	instance, err := r.ReadVarint()
	if err != nil {
		return "", err
	}

	return FormatObjectID(space, typ, instance), nil
}

// ReadAssetAmount reads a 64 bit amount followed by the asset's object id.
func (r *Reader) ReadAssetAmount(space, typ uint64) (uint64, string, error) {
	amount, err := r.ReadU64()
	if err != nil {
		return 0, "", err
	}

	assetID, err := r.ReadObjectID(space, typ)
	if err != nil {
		return 0, "", err
	}

	return amount, assetID, nil
}

// /////////////////////////////////////////////////////////////////

// ReadArray reads a varint count followed by that many elements decoded by
// the element reader. The result is fully materialized.
func ReadArray[T any](r *Reader, element func(*Reader) (T, error)) ([]T, error) {
	count, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}

	// Every element occupies at least one byte in this format, so a count
	// larger than what is left can't be satisfied.
	if count > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: array of %d elements at offset %d, have %d bytes", ErrTruncatedInput, count, r.pos, r.Remaining())
	}

	out := make([]T, 0, count)
	for i := uint64(0); i < count; i++ {
		v, err := element(r)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, v)
	}

	return out, nil
}

// ReadOptional reads a flag byte and, when it is nonzero, the value.
func ReadOptional[T any](r *Reader, value func(*Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}

	if !present {
		return nil, nil
	}

	v, err := value(r)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

// ReadTaggedUnion reads a varint discriminant and invokes the matching
// decoder from the ordered table. The union is closed, a discriminant past
// the end of the table fails with ErrUnknownVariant.
func ReadTaggedUnion[T any](r *Reader, variants []func(*Reader) (T, error)) (T, error) {
	var zero T

	tag, err := r.ReadVarint()
	if err != nil {
		return zero, err
	}

	if tag >= uint64(len(variants)) {
		return zero, fmt.Errorf("%w: discriminant %d, have %d variants", ErrUnknownVariant, tag, len(variants))
	}

	return variants[tag](r)
}

// /////////////////////////////////////////////////////////////////

// FormatObjectID renders the three part object identifier.
func FormatObjectID(space, typ, instance uint64) string {
	return strconv.FormatUint(space, 10) + "." + strconv.FormatUint(typ, 10) + "." + strconv.FormatUint(instance, 10)
}

// ParseObjectID splits an object identifier into its three parts.
func ParseObjectID(id string) (space, typ, instance uint64, err error) {
	var parts [3]uint64
	start := 0
	n := 0

	for i := 0; i <= len(id); i++ {
		if i < len(id) && id[i] != '.' {
			continue
		}

		if n == 3 {
			return 0, 0, 0, fmt.Errorf("object id %q: too many parts", id)
		}

		v, err := strconv.ParseUint(id[start:i], 10, 64)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("object id %q: %w", id, err)
		}
		parts[n] = v
		n++
		start = i + 1
	}

	if n != 3 {
		return 0, 0, 0, fmt.Errorf("object id %q: want 3 parts, got %d", id, n)
	}

	return parts[0], parts[1], parts[2], nil
}
