package netoff

import (
	"encoding/binary"
	"fmt"
	"math"
)

// wire is host-native byte order, per spec: no endianness translation between
// heterogeneous hosts is in scope.
var wire = binary.NativeEndian

// DefaultMaxStringLen bounds a single decoded string's length. A declared
// length past this is treated as corruption (ErrCodec) rather than an
// allocation request, since the wire format carries no way to validate a
// length prefix against the actual bytes available until it's too late.
const DefaultMaxStringLen = 64 << 20 // 64 MiB

// DefaultMaxCount bounds a single decoded VariableList kind's cardinality.
const DefaultMaxCount = 1 << 20

// Encoder appends primitive wire values to an in-memory buffer. The zero
// value is ready to use.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an Encoder with buf as its initial backing array,
// reusable across calls to avoid per-message allocation on the hot path.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf[:0]}
}

// Bytes returns the encoded bytes accumulated so far.
func (e *Encoder) Bytes() []byte { return e.buf }

// Reset clears the buffer for reuse, keeping the backing array.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

func (e *Encoder) PutByte(b byte) { e.buf = append(e.buf, b) }

func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutByte(1)
	} else {
		e.PutByte(0)
	}
}

func (e *Encoder) PutInt32(v int32) {
	var tmp [4]byte
	wire.PutUint32(tmp[:], uint32(v))
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) PutUint32(v uint32) {
	var tmp [4]byte
	wire.PutUint32(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	var tmp [8]byte
	wire.PutUint64(tmp[:], v)
	e.buf = append(e.buf, tmp[:]...)
}

func (e *Encoder) PutFloat64(v float64) {
	e.PutUint64(math.Float64bits(v))
}

// PutString writes a u64 length prefix followed by the raw bytes of s.
func (e *Encoder) PutString(s string) {
	e.PutUint64(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// PutBytes writes a u64 length prefix followed by raw bytes, for opaque
// blobs (e.g. GET_FILE payloads) rather than text.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint64(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// Decoder reads primitive wire values from a cursor over a fixed buffer.
type Decoder struct {
	buf          []byte
	pos          int
	maxStringLen int
	maxCount     int
}

// NewDecoder returns a Decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf, maxStringLen: DefaultMaxStringLen, maxCount: DefaultMaxCount}
}

// SetLimits overrides the truncation guards used by GetString/VariableList
// decoding. Exposed mainly for tests that want tight bounds.
func (d *Decoder) SetLimits(maxStringLen, maxCount int) {
	d.maxStringLen = maxStringLen
	d.maxCount = maxCount
}

// Remaining reports how many undecoded bytes are left in the cursor.
func (d *Decoder) Remaining() int { return len(d.buf) - d.pos }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrCodec, n, d.Remaining())
	}
	return nil
}

func (d *Decoder) GetByte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *Decoder) GetBool() (bool, error) {
	b, err := d.GetByte()
	if err != nil {
		return false, err
	}
	if b != 0 && b != 1 {
		return false, fmt.Errorf("%w: bool byte must be 0 or 1, got %d", ErrCodec, b)
	}
	return b == 1, nil
}

func (d *Decoder) GetInt32() (int32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := int32(wire.Uint32(d.buf[d.pos : d.pos+4]))
	d.pos += 4
	return v, nil
}

func (d *Decoder) GetUint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := wire.Uint32(d.buf[d.pos : d.pos+4])
	d.pos += 4
	return v, nil
}

func (d *Decoder) GetUint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := wire.Uint64(d.buf[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *Decoder) GetFloat64() (float64, error) {
	bits, err := d.GetUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}

// GetString reads a u64 length prefix then that many raw bytes.
func (d *Decoder) GetString() (string, error) {
	n, err := d.GetUint64()
	if err != nil {
		return "", err
	}
	if n > uint64(d.maxStringLen) {
		return "", fmt.Errorf("%w: declared string length %d exceeds limit %d", ErrCodec, n, d.maxStringLen)
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.buf[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// GetBytes reads a u64 length prefix then that many raw bytes, copied out of
// the decoder's backing buffer so the caller owns the result.
func (d *Decoder) GetBytes() ([]byte, error) {
	n, err := d.GetUint64()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.maxStringLen) {
		return nil, fmt.Errorf("%w: declared blob length %d exceeds limit %d", ErrCodec, n, d.maxStringLen)
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, d.buf[d.pos:d.pos+int(n)])
	d.pos += int(n)
	return out, nil
}
