package netoff

import "testing"

func TestVariableListEncodeDecodeRoundTrip(t *testing.T) {
	v := NewVariableList()
	v.AddReals([]string{"x", "y"})
	v.AddInt("count")
	v.AddBools([]string{"on", "ready"})

	e := NewEncoder(nil)
	v.Encode(e)
	if len(e.Bytes()) != v.EncodedSize() {
		t.Fatalf("EncodedSize mismatch: declared %d, actual %d", v.EncodedSize(), len(e.Bytes()))
	}

	got, err := DecodeVariableList(NewDecoder(e.Bytes()))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Equal(got) {
		t.Fatalf("round trip mismatch: sent %s, got %s", v, got)
	}
}

func TestVariableListSubset(t *testing.T) {
	full := NewVariableList()
	full.AddReals([]string{"a", "b", "c"})
	full.AddInt("n")

	sub := NewVariableList()
	sub.AddReals([]string{"c", "a"})

	if !sub.Subset(full) {
		t.Fatal("expected sub to be a subset of full")
	}

	notSub := NewVariableList()
	notSub.AddReal("d")
	if notSub.Subset(full) {
		t.Fatal("expected notSub not to be a subset of full")
	}
}

func TestVariableListEmpty(t *testing.T) {
	v := NewVariableList()
	if !v.Empty() {
		t.Fatal("expected a freshly constructed VariableList to be empty")
	}
	v.AddBool("flag")
	if v.Empty() {
		t.Fatal("expected VariableList with one name to be non-empty")
	}
}

func TestVariableListDecodeRejectsOversizedCardinality(t *testing.T) {
	e := NewEncoder(nil)
	e.PutUint64(1 << 30)
	e.PutUint64(0)
	e.PutUint64(0)
	d := NewDecoder(e.Bytes())
	d.SetLimits(DefaultMaxStringLen, 1024)
	if _, err := DecodeVariableList(d); err == nil {
		t.Fatal("expected error decoding a declared cardinality past the configured limit")
	}
}
