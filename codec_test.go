package netoff

import "testing"

func TestEncoderDecoderRoundTrip(t *testing.T) {
	e := NewEncoder(nil)
	e.PutByte(7)
	e.PutBool(true)
	e.PutInt32(-42)
	e.PutUint32(42)
	e.PutUint64(1 << 40)
	e.PutFloat64(3.5)
	e.PutString("hello")
	e.PutBytes([]byte{1, 2, 3})

	d := NewDecoder(e.Bytes())

	b, err := d.GetByte()
	if err != nil || b != 7 {
		t.Fatalf("GetByte: got %d, %v", b, err)
	}
	bo, err := d.GetBool()
	if err != nil || !bo {
		t.Fatalf("GetBool: got %v, %v", bo, err)
	}
	i32, err := d.GetInt32()
	if err != nil || i32 != -42 {
		t.Fatalf("GetInt32: got %d, %v", i32, err)
	}
	u32, err := d.GetUint32()
	if err != nil || u32 != 42 {
		t.Fatalf("GetUint32: got %d, %v", u32, err)
	}
	u64, err := d.GetUint64()
	if err != nil || u64 != 1<<40 {
		t.Fatalf("GetUint64: got %d, %v", u64, err)
	}
	f, err := d.GetFloat64()
	if err != nil || f != 3.5 {
		t.Fatalf("GetFloat64: got %v, %v", f, err)
	}
	s, err := d.GetString()
	if err != nil || s != "hello" {
		t.Fatalf("GetString: got %q, %v", s, err)
	}
	blob, err := d.GetBytes()
	if err != nil || string(blob) != "\x01\x02\x03" {
		t.Fatalf("GetBytes: got %v, %v", blob, err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("expected no bytes remaining, got %d", d.Remaining())
	}
}

func TestDecoderRejectsTruncatedBuffer(t *testing.T) {
	d := NewDecoder([]byte{1, 2})
	if _, err := d.GetUint64(); err == nil {
		t.Fatal("expected error reading uint64 from 2-byte buffer")
	}
}

func TestDecoderRejectsOversizedString(t *testing.T) {
	e := NewEncoder(nil)
	e.PutString("twenty-one characters")
	d := NewDecoder(e.Bytes())
	d.SetLimits(4, DefaultMaxCount)
	if _, err := d.GetString(); err == nil {
		t.Fatal("expected error decoding a string past the configured limit")
	}
}

func TestDecoderRejectsInvalidBool(t *testing.T) {
	d := NewDecoder([]byte{2})
	if _, err := d.GetBool(); err == nil {
		t.Fatal("expected error decoding a bool byte that isn't 0 or 1")
	}
}
