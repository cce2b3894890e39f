package netoff

import "testing"

func testVars() *VariableList {
	v := NewVariableList()
	v.AddReals([]string{"x", "y"})
	v.AddInt("n")
	v.AddBool("flag")
	return v
}

func TestValueContainerBodyRoundTrip(t *testing.T) {
	vars := testVars()
	c := NewValueContainer(3, vars)
	if err := c.SetReals([]float64{1.5, -2.25}); err != nil {
		t.Fatalf("SetReals: %v", err)
	}
	if err := c.SetInts([]int32{7}); err != nil {
		t.Fatalf("SetInts: %v", err)
	}
	if err := c.SetBools([]bool{true}); err != nil {
		t.Fatalf("SetBools: %v", err)
	}
	c.SetTime(12.5)

	e := NewEncoder(nil)
	c.EncodeBody(e)
	if len(e.Bytes()) != c.BodySize() {
		t.Fatalf("BodySize mismatch: declared %d, actual %d", c.BodySize(), len(e.Bytes()))
	}

	into := NewValueContainer(0, vars)
	simID, err := DecodeBodyInto(NewDecoder(e.Bytes()), into)
	if err != nil {
		t.Fatalf("DecodeBodyInto: %v", err)
	}
	if simID != 3 {
		t.Fatalf("expected decoded sim_id 3, got %d", simID)
	}
	if !c.Equal(into) {
		t.Fatalf("round trip mismatch: sent %s, got %s", c, into)
	}
}

func TestValueContainerPayloadRoundTrip(t *testing.T) {
	vars := testVars()
	c := NewValueContainer(9, vars)
	_ = c.SetReals([]float64{0.5, 0.25})
	_ = c.SetInts([]int32{-1})
	_ = c.SetBools([]bool{false})
	c.SetTime(4)

	e := NewEncoder(nil)
	c.EncodePayload(e)
	if len(e.Bytes()) != c.PayloadSize() {
		t.Fatalf("PayloadSize mismatch: declared %d, actual %d", c.PayloadSize(), len(e.Bytes()))
	}

	into := NewValueContainer(9, vars)
	if err := DecodePayloadInto(NewDecoder(e.Bytes()), into); err != nil {
		t.Fatalf("DecodePayloadInto: %v", err)
	}
	if !c.Equal(into) {
		t.Fatalf("payload round trip mismatch: sent %s, got %s", c, into)
	}
}

func TestValueContainerSetRealsRejectsWrongLength(t *testing.T) {
	c := NewValueContainer(1, testVars())
	if err := c.SetReals([]float64{1}); err == nil {
		t.Fatal("expected error setting reals with wrong length")
	}
}
