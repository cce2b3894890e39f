package netoff

import "errors"

// Sentinel error kinds. Each is wrapped with context via fmt.Errorf("%w: ...")
// at the call site so callers can still errors.Is/errors.As against the kind.
var (
	// ErrTransport covers socket open/accept/connect/send/recv failures.
	ErrTransport = errors.New("netoff: transport error")
	// ErrCodec covers a decoded field whose length overflows the buffer, or an
	// implausible declared count.
	ErrCodec = errors.New("netoff: codec error")
	// ErrProtocolState covers a method called in the wrong state, or with an
	// outstanding request of a conflicting kind.
	ErrProtocolState = errors.New("netoff: protocol state error")
	// ErrUnknownTag covers a received tag outside the enumerated set for the
	// current plane.
	ErrUnknownTag = errors.New("netoff: unknown tag")
	// ErrDuplicatePath covers ADD_SIM issued with a path already registered.
	ErrDuplicatePath = errors.New("netoff: duplicate simulation path")
	// ErrUnknownSimID covers a frame referencing a sim id without a prior
	// ADD_SIM/INIT_SIM.
	ErrUnknownSimID = errors.New("netoff: unknown simulation id")
	// ErrSizeMismatch covers a received container whose implicit size
	// disagrees with the bound selected variable lists.
	ErrSizeMismatch = errors.New("netoff: size mismatch")
	// ErrInvalidConfig covers an Option-assembled Config that fails Validate.
	ErrInvalidConfig = errors.New("netoff: invalid configuration")
)
