package netoff

import "fmt"

// ValueContainer is a typed bundle of variable values bound at construction
// to a simulation id and a VariableList whose per-kind cardinalities fix
// this container's array lengths for its entire lifetime. It additionally
// carries a timestamp.
//
// A container belongs to exactly one message slot on its owning peer;
// mutating accessors hand back a borrow into its arrays rather than a copy,
// so callers on the hot path (run-phase INPUTS/OUTPUTS) never allocate.
type ValueContainer struct {
	simID int32
	time  float64
	reals []float64
	ints  []int32
	bools []bool
}

// NewValueContainer constructs a container bound to simID and vars. The
// returned container's arrays are zero-valued and sized to vars' per-kind
// cardinalities; that binding is immutable thereafter.
func NewValueContainer(simID int32, vars *VariableList) *ValueContainer {
	return &ValueContainer{
		simID: simID,
		reals: make([]float64, len(vars.Reals)),
		ints:  make([]int32, len(vars.Ints)),
		bools: make([]bool, len(vars.Bools)),
	}
}

// SimID returns the simulation id this container is bound to.
func (c *ValueContainer) SimID() int32 { return c.simID }

// Time returns the container's timestamp.
func (c *ValueContainer) Time() float64 { return c.time }

// SetTime sets the container's timestamp.
func (c *ValueContainer) SetTime(t float64) { c.time = t }

// Reals returns a borrow of the real-valued array, indexed positionally per
// the bound VariableList's Reals order.
func (c *ValueContainer) Reals() []float64 { return c.reals }

// Ints returns a borrow of the integer-valued array.
func (c *ValueContainer) Ints() []int32 { return c.ints }

// Bools returns a borrow of the boolean-valued array.
func (c *ValueContainer) Bools() []bool { return c.bools }

// SetReals overwrites the real-valued array in place. Writing a slice of the
// wrong length is a programmer error and fails rather than silently
// truncating or leaving the container partially updated.
func (c *ValueContainer) SetReals(v []float64) error {
	if len(v) != len(c.reals) {
		return fmt.Errorf("%w: reals has %d slots, got %d values", ErrSizeMismatch, len(c.reals), len(v))
	}
	copy(c.reals, v)
	return nil
}

// SetInts overwrites the integer-valued array in place.
func (c *ValueContainer) SetInts(v []int32) error {
	if len(v) != len(c.ints) {
		return fmt.Errorf("%w: ints has %d slots, got %d values", ErrSizeMismatch, len(c.ints), len(v))
	}
	copy(c.ints, v)
	return nil
}

// SetBools overwrites the boolean-valued array in place.
func (c *ValueContainer) SetBools(v []bool) error {
	if len(v) != len(c.bools) {
		return fmt.Errorf("%w: bools has %d slots, got %d values", ErrSizeMismatch, len(c.bools), len(v))
	}
	copy(c.bools, v)
	return nil
}

// BodySize returns the exact number of bytes EncodeBody will produce: the
// i32 sim_id, f64 time, then the typed arrays.
func (c *ValueContainer) BodySize() int {
	return 4 + 8 + 8*len(c.reals) + 4*len(c.ints) + 1*len(c.bools)
}

// EncodeBody appends the ValueContainer body (sim_id, time, typed arrays) to
// e, per spec: sizes are taken from the bound variable list, not re-sent.
func (c *ValueContainer) EncodeBody(e *Encoder) {
	e.PutInt32(c.simID)
	e.PutFloat64(c.time)
	for _, r := range c.reals {
		e.PutFloat64(r)
	}
	for _, i := range c.ints {
		e.PutInt32(i)
	}
	for _, b := range c.bools {
		e.PutBool(b)
	}
}

// DecodeBodyInto decodes a ValueContainer body from d into c in place,
// reusing c's existing arrays (their lengths come from the bound variable
// list, not from the wire) rather than allocating a new container, since
// this is the hot path. It returns the decoded sim_id so callers can check
// it matches the container they meant to read into.
func DecodeBodyInto(d *Decoder, c *ValueContainer) (int32, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return 0, fmt.Errorf("value container sim_id: %w", err)
	}
	t, err := d.GetFloat64()
	if err != nil {
		return 0, fmt.Errorf("value container time: %w", err)
	}
	for i := range c.reals {
		v, err := d.GetFloat64()
		if err != nil {
			return 0, fmt.Errorf("value container real %d: %w", i, err)
		}
		c.reals[i] = v
	}
	for i := range c.ints {
		v, err := d.GetInt32()
		if err != nil {
			return 0, fmt.Errorf("value container int %d: %w", i, err)
		}
		c.ints[i] = v
	}
	for i := range c.bools {
		v, err := d.GetBool()
		if err != nil {
			return 0, fmt.Errorf("value container bool %d: %w", i, err)
		}
		c.bools[i] = v
	}
	c.simID = simID
	c.time = t
	return simID, nil
}

// PayloadSize returns the exact number of bytes EncodePayload will produce:
// the f64 time and the typed arrays, without the sim_id (the run plane sends
// sim_id once in its frame header rather than repeating it in the body; see
// EncodeRunHeader).
func (c *ValueContainer) PayloadSize() int {
	return 8 + 8*len(c.reals) + 4*len(c.ints) + 1*len(c.bools)
}

// EncodePayload appends time and the typed arrays, omitting sim_id.
func (c *ValueContainer) EncodePayload(e *Encoder) {
	e.PutFloat64(c.time)
	for _, r := range c.reals {
		e.PutFloat64(r)
	}
	for _, i := range c.ints {
		e.PutInt32(i)
	}
	for _, b := range c.bools {
		e.PutBool(b)
	}
}

// DecodePayloadInto decodes a run-plane payload (time plus typed arrays,
// sim_id already consumed from the frame header) into c in place, reusing
// c's existing arrays.
func DecodePayloadInto(d *Decoder, c *ValueContainer) error {
	t, err := d.GetFloat64()
	if err != nil {
		return fmt.Errorf("value container time: %w", err)
	}
	for i := range c.reals {
		v, err := d.GetFloat64()
		if err != nil {
			return fmt.Errorf("value container real %d: %w", i, err)
		}
		c.reals[i] = v
	}
	for i := range c.ints {
		v, err := d.GetInt32()
		if err != nil {
			return fmt.Errorf("value container int %d: %w", i, err)
		}
		c.ints[i] = v
	}
	for i := range c.bools {
		v, err := d.GetBool()
		if err != nil {
			return fmt.Errorf("value container bool %d: %w", i, err)
		}
		c.bools[i] = v
	}
	c.time = t
	return nil
}

// Equal reports whether c and other have the same sim id, a bit-exact equal
// time, and element-wise equal typed arrays.
func (c *ValueContainer) Equal(other *ValueContainer) bool {
	if other == nil || c.simID != other.simID || c.time != other.time {
		return false
	}
	if len(c.reals) != len(other.reals) || len(c.ints) != len(other.ints) || len(c.bools) != len(other.bools) {
		return false
	}
	for i := range c.reals {
		if c.reals[i] != other.reals[i] {
			return false
		}
	}
	for i := range c.ints {
		if c.ints[i] != other.ints[i] {
			return false
		}
	}
	for i := range c.bools {
		if c.bools[i] != other.bools[i] {
			return false
		}
	}
	return true
}

func (c *ValueContainer) String() string {
	return fmt.Sprintf("sim=%d t=%v reals=%v ints=%v bools=%v", c.simID, c.time, c.reals, c.ints, c.bools)
}
