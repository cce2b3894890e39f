package netoff

import (
	"fmt"
	"strings"
)

// VariableList is an ordered triple of ordered name sequences, one sequence
// per scalar kind. Per-kind order is the positional index used by any
// ValueContainer bound to this list. No uniqueness is enforced; callers are
// responsible for avoiding duplicate names within a kind if that matters to
// them.
type VariableList struct {
	Reals []string
	Ints  []string
	Bools []string
}

// NewVariableList returns an empty VariableList, ready to use.
func NewVariableList() *VariableList {
	return &VariableList{}
}

// AddReal appends a single real-valued variable name.
func (v *VariableList) AddReal(name string) { v.Reals = append(v.Reals, name) }

// AddInt appends a single integer-valued variable name.
func (v *VariableList) AddInt(name string) { v.Ints = append(v.Ints, name) }

// AddBool appends a single boolean-valued variable name.
func (v *VariableList) AddBool(name string) { v.Bools = append(v.Bools, name) }

// AddReals appends several real-valued variable names, preserving order.
func (v *VariableList) AddReals(names []string) { v.Reals = append(v.Reals, names...) }

// AddInts appends several integer-valued variable names, preserving order.
func (v *VariableList) AddInts(names []string) { v.Ints = append(v.Ints, names...) }

// AddBools appends several boolean-valued variable names, preserving order.
func (v *VariableList) AddBools(names []string) { v.Bools = append(v.Bools, names...) }

// Empty reports whether all three kinds are empty.
func (v *VariableList) Empty() bool {
	return len(v.Reals) == 0 && len(v.Ints) == 0 && len(v.Bools) == 0
}

// Subset reports whether v is a per-kind name-subset of other: every name in
// v.Reals appears somewhere in other.Reals, and likewise for Ints and Bools.
// Order and duplication are irrelevant to this test.
func (v *VariableList) Subset(other *VariableList) bool {
	return nameSubset(v.Reals, other.Reals) &&
		nameSubset(v.Ints, other.Ints) &&
		nameSubset(v.Bools, other.Bools)
}

func nameSubset(a, b []string) bool {
	if len(a) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(b))
	for _, n := range b {
		set[n] = struct{}{}
	}
	for _, n := range a {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// String renders a human-readable summary, e.g. "reals=[x,y] ints=[] bools=[on]".
func (v *VariableList) String() string {
	return fmt.Sprintf("reals=[%s] ints=[%s] bools=[%s]", joinNames(v.Reals), joinNames(v.Ints), joinNames(v.Bools))
}

// EncodedSize returns the exact number of bytes Encode will produce.
func (v *VariableList) EncodedSize() int {
	n := 24 // nReal, nInt, nBool as u64 each
	for _, s := range v.Reals {
		n += 8 + len(s)
	}
	for _, s := range v.Ints {
		n += 8 + len(s)
	}
	for _, s := range v.Bools {
		n += 8 + len(s)
	}
	return n
}

// Encode appends the wire encoding of v to e: u64 counts for each kind,
// followed by that many length-prefixed names per kind, reals first.
func (v *VariableList) Encode(e *Encoder) {
	e.PutUint64(uint64(len(v.Reals)))
	e.PutUint64(uint64(len(v.Ints)))
	e.PutUint64(uint64(len(v.Bools)))
	for _, s := range v.Reals {
		e.PutString(s)
	}
	for _, s := range v.Ints {
		e.PutString(s)
	}
	for _, s := range v.Bools {
		e.PutString(s)
	}
}

// DecodeVariableList reads a VariableList from d in the layout Encode wrote.
func DecodeVariableList(d *Decoder) (*VariableList, error) {
	nReal, err := d.GetUint64()
	if err != nil {
		return nil, fmt.Errorf("variable list real count: %w", err)
	}
	nInt, err := d.GetUint64()
	if err != nil {
		return nil, fmt.Errorf("variable list int count: %w", err)
	}
	nBool, err := d.GetUint64()
	if err != nil {
		return nil, fmt.Errorf("variable list bool count: %w", err)
	}
	if nReal > uint64(d.maxCount) || nInt > uint64(d.maxCount) || nBool > uint64(d.maxCount) {
		return nil, fmt.Errorf("%w: variable list cardinality exceeds limit %d", ErrCodec, d.maxCount)
	}

	v := &VariableList{
		Reals: make([]string, 0, nReal),
		Ints:  make([]string, 0, nInt),
		Bools: make([]string, 0, nBool),
	}
	for i := uint64(0); i < nReal; i++ {
		s, err := d.GetString()
		if err != nil {
			return nil, fmt.Errorf("variable list real name %d: %w", i, err)
		}
		v.Reals = append(v.Reals, s)
	}
	for i := uint64(0); i < nInt; i++ {
		s, err := d.GetString()
		if err != nil {
			return nil, fmt.Errorf("variable list int name %d: %w", i, err)
		}
		v.Ints = append(v.Ints, s)
	}
	for i := uint64(0); i < nBool; i++ {
		s, err := d.GetString()
		if err != nil {
			return nil, fmt.Errorf("variable list bool name %d: %w", i, err)
		}
		v.Bools = append(v.Bools, s)
	}
	return v, nil
}

// Equal reports whether v and other have byte-identical, order-identical
// name sequences in every kind.
func (v *VariableList) Equal(other *VariableList) bool {
	if other == nil {
		return false
	}
	return slicesEqual(v.Reals, other.Reals) && slicesEqual(v.Ints, other.Ints) && slicesEqual(v.Bools, other.Bools)
}

func slicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// joinNames renders a name sequence for String.
func joinNames(names []string) string {
	return strings.Join(names, ",")
}
