package netoff

import "fmt"

// InitialClientTag discriminates driver -> worker messages during the init
// phase (ADD_SIM / INIT_SIM / GET_FILE / START / CLIENT_INIT_ABORT).
type InitialClientTag byte

const (
	TagAddSim          InitialClientTag = 0
	TagInitSim         InitialClientTag = 1
	TagGetFile         InitialClientTag = 2
	TagStart           InitialClientTag = 3
	TagClientInitAbort InitialClientTag = 4
)

// InitialServerTag discriminates worker -> driver replies during the init
// phase. INIT_SIM's reply, SUCCESS_SIM_INIT, travels on the run plane
// instead (its payload is the initial output container).
type InitialServerTag byte

const (
	TagSuccessAddSim  InitialServerTag = 0
	TagSuccessGetFile InitialServerTag = 1
	TagSuccessStart   InitialServerTag = 2
)

// ClientTag discriminates driver -> worker messages during the run phase.
type ClientTag byte

const (
	TagInputs      ClientTag = 0
	TagPause       ClientTag = 1
	TagUnpause     ClientTag = 2
	TagReset       ClientTag = 3
	TagClientAbort ClientTag = 4
)

// ServerTag discriminates worker -> driver messages during the run phase.
type ServerTag byte

const (
	TagOutputs        ServerTag = 0
	TagSuccessSimInit ServerTag = 1
	TagSuccessPause   ServerTag = 2
	TagSuccessUnpause ServerTag = 3
	TagSuccessReset   ServerTag = 4
)

// EncodeInitialFrame builds a complete initial-plane frame: a u32 length
// prefix covering [tag byte][payload], followed by the tag and payload
// themselves. The companion Transport.RecvVariable on C1 strips the length prefix, so
// DecodeInitialFrame below operates on the remaining [tag][payload] bytes.
func EncodeInitialFrame(tag byte, payload []byte) []byte {
	e := NewEncoder(make([]byte, 0, 4+1+len(payload)))
	e.PutUint32(uint32(1 + len(payload)))
	e.PutByte(tag)
	e.buf = append(e.buf, payload...)
	return e.Bytes()
}

// DecodeInitialFrame splits a length-stripped initial-plane frame (as
// returned by Transport.RecvVariable) into its tag byte and remaining payload.
func DecodeInitialFrame(raw []byte) (tag byte, payload []byte, err error) {
	if len(raw) < 1 {
		return 0, nil, fmt.Errorf("%w: initial frame shorter than tag byte", ErrCodec)
	}
	return raw[0], raw[1:], nil
}

// runHeaderSize is the fixed i32 sim_id + 1 byte tag every run-plane frame
// begins with, read before the recipient knows which container to size the
// rest of the read against.
const runHeaderSize = 4 + 1

// EncodeRunHeader appends the fixed [sim_id][tag] prefix every run-plane
// frame begins with.
func EncodeRunHeader(e *Encoder, simID int32, tag byte) {
	e.PutInt32(simID)
	e.PutByte(tag)
}

// DecodeRunHeader reads the fixed [sim_id][tag] prefix of a run-plane frame.
// Callers use simID to look up the pre-sized container before reading the
// rest of the frame (if the tag implies one follows).
func DecodeRunHeader(d *Decoder) (simID int32, tag byte, err error) {
	simID, err = d.GetInt32()
	if err != nil {
		return 0, 0, fmt.Errorf("run header sim_id: %w", err)
	}
	tag, err = d.GetByte()
	if err != nil {
		return 0, 0, fmt.Errorf("run header tag: %w", err)
	}
	return simID, tag, nil
}

// clientTagHasPayload and serverTagHasPayload report whether the given client
// or server run-plane tag is
// followed by a [time][typed arrays] payload sized by the bound container,
// as opposed to carrying no further bytes. recvRunFrameInto on both Worker
// and Driver checks this before sizing a payload read off dst.
func clientTagHasPayload(tag ClientTag) bool { return tag == TagInputs }
func serverTagHasPayload(tag ServerTag) bool { return tag == TagOutputs || tag == TagSuccessSimInit }

// AddSimRequest is the ADD_SIM payload: a driver-assigned id and the path to
// the simulation the worker should load.
type AddSimRequest struct {
	SimID int32
	Path  string
}

func (r AddSimRequest) Encode(e *Encoder) {
	e.PutInt32(r.SimID)
	e.PutString(r.Path)
}

func DecodeAddSimRequest(d *Decoder) (AddSimRequest, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return AddSimRequest{}, fmt.Errorf("add_sim sim_id: %w", err)
	}
	path, err := d.GetString()
	if err != nil {
		return AddSimRequest{}, fmt.Errorf("add_sim path: %w", err)
	}
	return AddSimRequest{SimID: simID, Path: path}, nil
}

// AddSimSuccess is the SUCCESS_ADD_SIM payload: the confirmed id and the
// full possible input/output variable lists the worker reports for it.
type AddSimSuccess struct {
	SimID           int32
	PossibleInputs  *VariableList
	PossibleOutputs *VariableList
}

func (r AddSimSuccess) Encode(e *Encoder) {
	e.PutInt32(r.SimID)
	r.PossibleInputs.Encode(e)
	r.PossibleOutputs.Encode(e)
}

func DecodeAddSimSuccess(d *Decoder) (AddSimSuccess, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return AddSimSuccess{}, fmt.Errorf("success_add_sim sim_id: %w", err)
	}
	in, err := DecodeVariableList(d)
	if err != nil {
		return AddSimSuccess{}, fmt.Errorf("success_add_sim possible inputs: %w", err)
	}
	out, err := DecodeVariableList(d)
	if err != nil {
		return AddSimSuccess{}, fmt.Errorf("success_add_sim possible outputs: %w", err)
	}
	return AddSimSuccess{SimID: simID, PossibleInputs: in, PossibleOutputs: out}, nil
}

// InitSimRequest is the INIT_SIM payload: the driver's chosen input/output
// subsets for simID. Its initial input values follow immediately on the wire
// as a separate INPUTS run-plane frame (see Driver.InitializeSimulation).
type InitSimRequest struct {
	SimID           int32
	SelectedInputs  *VariableList
	SelectedOutputs *VariableList
}

func (r InitSimRequest) Encode(e *Encoder) {
	e.PutInt32(r.SimID)
	r.SelectedInputs.Encode(e)
	r.SelectedOutputs.Encode(e)
}

func DecodeInitSimRequest(d *Decoder) (InitSimRequest, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return InitSimRequest{}, fmt.Errorf("init_sim sim_id: %w", err)
	}
	in, err := DecodeVariableList(d)
	if err != nil {
		return InitSimRequest{}, fmt.Errorf("init_sim selected inputs: %w", err)
	}
	out, err := DecodeVariableList(d)
	if err != nil {
		return InitSimRequest{}, fmt.Errorf("init_sim selected outputs: %w", err)
	}
	return InitSimRequest{SimID: simID, SelectedInputs: in, SelectedOutputs: out}, nil
}

// GetFileRequest is the GET_FILE payload: the simulation whose file is
// wanted and the remote path to fetch.
type GetFileRequest struct {
	SimID int32
	Path  string
}

func (r GetFileRequest) Encode(e *Encoder) {
	e.PutInt32(r.SimID)
	e.PutString(r.Path)
}

func DecodeGetFileRequest(d *Decoder) (GetFileRequest, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return GetFileRequest{}, fmt.Errorf("get_file sim_id: %w", err)
	}
	path, err := d.GetString()
	if err != nil {
		return GetFileRequest{}, fmt.Errorf("get_file path: %w", err)
	}
	return GetFileRequest{SimID: simID, Path: path}, nil
}

// GetFileSuccess is the SUCCESS_GET_FILE payload: sim_id plus the opaque
// blob, per the tag table in spec.md §4.5. Any informational name the
// embedding application supplied is not part of the wire payload; it's a
// local concern of ConfirmSimulationFile / the blob cache (see DESIGN.md).
type GetFileSuccess struct {
	SimID int32
	Blob  []byte
}

func (r GetFileSuccess) Encode(e *Encoder) {
	e.PutInt32(r.SimID)
	e.PutBytes(r.Blob)
}

func DecodeGetFileSuccess(d *Decoder) (GetFileSuccess, error) {
	simID, err := d.GetInt32()
	if err != nil {
		return GetFileSuccess{}, fmt.Errorf("success_get_file sim_id: %w", err)
	}
	blob, err := d.GetBytes()
	if err != nil {
		return GetFileSuccess{}, fmt.Errorf("success_get_file blob: %w", err)
	}
	return GetFileSuccess{SimID: simID, Blob: blob}, nil
}
