package netoff

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// driverSimRecord holds everything the driver knows about one simulation it
// has registered with the worker.
type driverSimRecord struct {
	id   int32
	path string

	possibleInputs  *VariableList
	possibleOutputs *VariableList
	selectedInputs  *VariableList
	selectedOutputs *VariableList

	inputs  *ValueContainer
	outputs *ValueContainer
}

// Driver is C7: the client side of one netoff session, registering and
// driving zero or more simulations hosted by a single Worker peer. A Driver
// is used by exactly one goroutine; it does not synchronize its own state.
type Driver struct {
	cfg       *Config
	transport *Transport
	logger    *slog.Logger
	sessionID string

	state              ConnState
	handledLastRequest bool
	nextSimID          int32

	sims map[int32]*driverSimRecord

	lastRunTag ClientTag
	lastSimID  int32

	// inputsSentAt marks when SendInputValues issued the pending INPUTS
	// request, for RecvOutputValues's ObserveRoundTrip (C10).
	inputsSentAt time.Time
}

// NewDriver builds a Driver in StateNone; call InitializeConnection to dial
// its one worker peer.
func NewDriver(opts ...Option) (*Driver, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		cfg:                cfg,
		logger:             cfg.logger,
		state:              StateNone,
		handledLastRequest: true,
		sims:               make(map[int32]*driverSimRecord),
	}, nil
}

// InitializeConnection dials host:cfg.port, per C1's bounded retry budget.
func (d *Driver) InitializeConnection(host string) error {
	if d.state != StateNone {
		return fmt.Errorf("%w: initialize_connection called twice", ErrProtocolState)
	}
	t, err := Connect(host, d.cfg)
	if err != nil {
		return err
	}
	d.transport = t
	d.sessionID = uuid.NewString()
	d.state = StateInited
	d.logger.Info("netoff: driver connected to worker", "session", d.sessionID, "remote", t.RemoteAddr())
	return nil
}

// Deinitialize closes the transport and returns the driver to StateNone.
func (d *Driver) Deinitialize() error {
	if d.state == StateNone {
		return nil
	}
	var err error
	if d.transport != nil {
		err = d.transport.Close()
	}
	d.transport = nil
	d.state = StateNone
	d.handledLastRequest = true
	d.sims = make(map[int32]*driverSimRecord)
	return err
}

func (d *Driver) simOrErr(simID int32) (*driverSimRecord, error) {
	sim, ok := d.sims[simID]
	if !ok {
		return nil, fmt.Errorf("%w: sim %d", ErrUnknownSimID, simID)
	}
	return sim, nil
}

func (d *Driver) sendInitialRequest(tag InitialClientTag, payload []byte) error {
	if err := d.transport.Send(EncodeInitialFrame(byte(tag), payload)); err != nil {
		return err
	}
	d.transport.metrics.IncrementRequestsSent()
	return nil
}

func (d *Driver) recvInitialReply(want InitialServerTag) ([]byte, error) {
	raw, err := d.transport.RecvVariable()
	if err != nil {
		return nil, err
	}
	tagByte, payload, err := DecodeInitialFrame(raw)
	if err != nil {
		return nil, err
	}
	d.transport.metrics.IncrementRequestsReceived()
	if InitialServerTag(tagByte) != want {
		return nil, fmt.Errorf("%w: expected reply tag %d, got %d", ErrProtocolState, want, tagByte)
	}
	return payload, nil
}

// AddSimulation registers path with the worker, assigning it the next
// sequential, dense simulation id (spec.md §4.3), and returns the worker's
// reported possible input/output variable lists.
func (d *Driver) AddSimulation(path string) (int32, *VariableList, *VariableList, error) {
	if d.state != StateInited {
		return 0, nil, nil, fmt.Errorf("%w: add_simulation requires INITED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return 0, nil, nil, fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}

	simID := d.nextSimID
	start := time.Now()
	e := NewEncoder(nil)
	AddSimRequest{SimID: simID, Path: path}.Encode(e)
	if err := d.sendInitialRequest(TagAddSim, e.Bytes()); err != nil {
		return 0, nil, nil, err
	}

	payload, err := d.recvInitialReply(TagSuccessAddSim)
	if err != nil {
		return 0, nil, nil, err
	}
	d.transport.metrics.ObserveRoundTrip(time.Since(start))
	resp, err := DecodeAddSimSuccess(NewDecoder(payload))
	if err != nil {
		return 0, nil, nil, err
	}
	if resp.SimID != simID {
		return 0, nil, nil, fmt.Errorf("%w: success_add_sim carried sim %d, expected %d", ErrProtocolState, resp.SimID, simID)
	}

	d.sims[simID] = &driverSimRecord{
		id:              simID,
		path:            path,
		possibleInputs:  resp.PossibleInputs,
		possibleOutputs: resp.PossibleOutputs,
	}
	d.nextSimID++
	return simID, resp.PossibleInputs, resp.PossibleOutputs, nil
}

// GetPossibleInputVariableNames returns the full input variable list the
// worker reported for simID when it was added.
func (d *Driver) GetPossibleInputVariableNames(simID int32) (*VariableList, error) {
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	return sim.possibleInputs, nil
}

// GetPossibleOutputVariableNames returns the full output variable list the
// worker reported for simID when it was added.
func (d *Driver) GetPossibleOutputVariableNames(simID int32) (*VariableList, error) {
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	return sim.possibleOutputs, nil
}

// InitializeSimulation selects simID's active input/output subsets (each
// must be a subset of the possible lists AddSimulation reported), ships the
// initial input values, and blocks for the worker's initial output
// container. If a SessionLedger is configured, the registration is recorded
// once the worker confirms it.
func (d *Driver) InitializeSimulation(simID int32, inputs, outputs *VariableList, initReals []float64, initInts []int32, initBools []bool) (*ValueContainer, error) {
	if d.state != StateInited {
		return nil, fmt.Errorf("%w: initialize_simulation requires INITED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return nil, fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if !inputs.Subset(sim.possibleInputs) || !outputs.Subset(sim.possibleOutputs) {
		return nil, fmt.Errorf("%w: initialize_simulation selection is not a subset of sim %d's possible variables", ErrProtocolState, simID)
	}

	sim.selectedInputs = inputs
	sim.selectedOutputs = outputs
	sim.inputs = NewValueContainer(simID, inputs)
	sim.outputs = NewValueContainer(simID, outputs)
	if err := sim.inputs.SetReals(initReals); err != nil {
		return nil, err
	}
	if err := sim.inputs.SetInts(initInts); err != nil {
		return nil, err
	}
	if err := sim.inputs.SetBools(initBools); err != nil {
		return nil, err
	}

	start := time.Now()
	e := NewEncoder(nil)
	InitSimRequest{SimID: simID, SelectedInputs: inputs, SelectedOutputs: outputs}.Encode(e)
	if err := d.sendInitialRequest(TagInitSim, e.Bytes()); err != nil {
		return nil, err
	}

	// The initial input container follows the INIT_SIM frame immediately,
	// ahead of any reply (spec.md §4.6).
	sim.inputs.SetTime(0)
	if err := d.sendRunFrame(simID, byte(TagInputs), sim.inputs.EncodePayload); err != nil {
		return nil, err
	}

	if err := d.recvRunFrameInto(simID, sim.outputs, byte(TagSuccessSimInit)); err != nil {
		return nil, err
	}
	d.transport.metrics.ObserveRoundTrip(time.Since(start))

	if d.cfg.sessionLedger != nil {
		if err := d.cfg.sessionLedger.Record(d.sessionID, SessionRecord{
			SimID: simID, Path: sim.path, SelectedInputs: inputs, SelectedOutputs: outputs,
		}); err != nil {
			d.logger.Warn("netoff: session ledger record failed", "sim", simID, "err", err)
		}
	}
	return sim.outputs, nil
}

func (d *Driver) sendRunFrame(simID int32, tag byte, payload func(e *Encoder)) error {
	e := NewEncoder(make([]byte, 0, runHeaderSize+32))
	EncodeRunHeader(e, simID, tag)
	if payload != nil {
		payload(e)
	}
	if err := d.transport.Send(e.Bytes()); err != nil {
		return err
	}
	d.transport.metrics.IncrementRequestsSent()
	return nil
}

func (d *Driver) recvRunFrameInto(simID int32, dst *ValueContainer, wantTag byte) error {
	var hdr [runHeaderSize]byte
	if err := d.transport.Recv(hdr[:]); err != nil {
		return err
	}
	gotSimID, gotTag, err := DecodeRunHeader(NewDecoder(hdr[:]))
	if err != nil {
		return err
	}
	if gotSimID != simID {
		return fmt.Errorf("%w: expected sim %d, frame carried sim %d", ErrUnknownSimID, simID, gotSimID)
	}
	if gotTag != wantTag {
		return fmt.Errorf("%w: expected run tag %d, got %d", ErrProtocolState, wantTag, gotTag)
	}
	if !serverTagHasPayload(ServerTag(wantTag)) {
		return fmt.Errorf("%w: run tag %d carries no payload", ErrProtocolState, wantTag)
	}
	body := make([]byte, dst.PayloadSize())
	if err := d.transport.Recv(body); err != nil {
		return err
	}
	d.transport.metrics.IncrementRequestsReceived()
	return DecodePayloadInto(NewDecoder(body), dst)
}

// GetFile requests remotePath from simID's worker-side simulation and
// returns the blob.
func (d *Driver) GetFile(simID int32, remotePath string) ([]byte, error) {
	if d.state != StateInited {
		return nil, fmt.Errorf("%w: get_file requires INITED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return nil, fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}
	if _, err := d.simOrErr(simID); err != nil {
		return nil, err
	}

	start := time.Now()
	e := NewEncoder(nil)
	GetFileRequest{SimID: simID, Path: remotePath}.Encode(e)
	if err := d.sendInitialRequest(TagGetFile, e.Bytes()); err != nil {
		return nil, err
	}
	payload, err := d.recvInitialReply(TagSuccessGetFile)
	if err != nil {
		return nil, err
	}
	d.transport.metrics.ObserveRoundTrip(time.Since(start))
	resp, err := DecodeGetFileSuccess(NewDecoder(payload))
	if err != nil {
		return nil, err
	}
	if resp.SimID != simID {
		return nil, fmt.Errorf("%w: success_get_file carried sim %d, expected %d", ErrProtocolState, resp.SimID, simID)
	}
	return resp.Blob, nil
}

// Start tells the worker all registration/initialization is complete and
// blocks for SUCCESS_START, moving the driver to StateStarted.
func (d *Driver) Start() error {
	if d.state != StateInited {
		return fmt.Errorf("%w: start requires INITED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}
	start := time.Now()
	if err := d.sendInitialRequest(TagStart, nil); err != nil {
		return err
	}
	if _, err := d.recvInitialReply(TagSuccessStart); err != nil {
		return err
	}
	d.transport.metrics.ObserveRoundTrip(time.Since(start))
	d.state = StateStarted
	return nil
}

// GetInputValueContainer returns a borrow of simID's input container, for
// the application to write new values into before SendInputValues.
func (d *Driver) GetInputValueContainer(simID int32) (*ValueContainer, error) {
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	return sim.inputs, nil
}

// GetOutputValueContainer returns a borrow of simID's output container, as
// last populated by RecvOutputValues.
func (d *Driver) GetOutputValueContainer(simID int32) (*ValueContainer, error) {
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	return sim.outputs, nil
}

// SendInputValues sends simID's current input container timestamped t as
// INPUTS.
func (d *Driver) SendInputValues(simID int32, t float64) error {
	if d.state != StateStarted {
		return fmt.Errorf("%w: send_input_values requires STARTED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}
	sim, err := d.simOrErr(simID)
	if err != nil {
		return err
	}
	sim.inputs.SetTime(t)
	if err := d.sendRunFrame(simID, byte(TagInputs), sim.inputs.EncodePayload); err != nil {
		return err
	}
	d.inputsSentAt = time.Now()
	d.handledLastRequest = false
	d.lastRunTag = TagInputs
	d.lastSimID = simID
	return nil
}

// RecvOutputValues blocks for simID's OUTPUTS reply, populating its output
// container, and confirms the pending INPUTS request.
func (d *Driver) RecvOutputValues(simID int32) (*ValueContainer, error) {
	if d.handledLastRequest || d.lastRunTag != TagInputs || simID != d.lastSimID {
		return nil, fmt.Errorf("%w: no pending inputs request for sim %d", ErrProtocolState, simID)
	}
	sim, err := d.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if err := d.recvRunFrameInto(simID, sim.outputs, byte(TagOutputs)); err != nil {
		return nil, err
	}
	d.transport.metrics.ObserveRoundTrip(time.Since(d.inputsSentAt))
	d.handledLastRequest = true
	return sim.outputs, nil
}

// Pause, Unpause, and Reset send their respective control tag against simID
// and block for its SUCCESS_* reply. Per spec.md §9's design note, Reset
// leaves the worker STARTED and able to run again rather than tearing the
// session down.
func (d *Driver) Pause(simID int32) error { return d.sendControl(simID, TagPause, TagSuccessPause) }
func (d *Driver) Unpause(simID int32) error {
	return d.sendControl(simID, TagUnpause, TagSuccessUnpause)
}
func (d *Driver) Reset(simID int32) error { return d.sendControl(simID, TagReset, TagSuccessReset) }

func (d *Driver) sendControl(simID int32, tag ClientTag, want ServerTag) error {
	if d.state != StateStarted {
		return fmt.Errorf("%w: control request requires STARTED, have %s", ErrProtocolState, d.state)
	}
	if !d.handledLastRequest {
		return fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}
	start := time.Now()
	if err := d.sendRunFrame(simID, byte(tag), nil); err != nil {
		return err
	}
	var hdr [runHeaderSize]byte
	if err := d.transport.Recv(hdr[:]); err != nil {
		return err
	}
	gotSimID, gotTag, err := DecodeRunHeader(NewDecoder(hdr[:]))
	if err != nil {
		return err
	}
	if gotSimID != simID || ServerTag(gotTag) != want {
		return fmt.Errorf("%w: expected %d for sim %d, got tag %d for sim %d", ErrProtocolState, want, simID, gotTag, gotSimID)
	}
	d.transport.metrics.IncrementRequestsReceived()
	d.transport.metrics.ObserveRoundTrip(time.Since(start))
	return nil
}

// ClientAbort tells the worker the driver is giving up and closes the
// connection; per spec.md's run phase it requires no reply.
func (d *Driver) ClientAbort(simID int32) error {
	if d.state != StateStarted {
		return fmt.Errorf("%w: client_abort requires STARTED, have %s", ErrProtocolState, d.state)
	}
	if err := d.sendRunFrame(simID, byte(TagClientAbort), nil); err != nil {
		return err
	}
	return d.Deinitialize()
}

// ClientInitAbort tells the worker the driver is giving up during the init
// phase and closes the connection; it requires no reply.
func (d *Driver) ClientInitAbort() error {
	if d.state != StateInited {
		return fmt.Errorf("%w: client_init_abort requires INITED, have %s", ErrProtocolState, d.state)
	}
	if err := d.sendInitialRequest(TagClientInitAbort, nil); err != nil {
		return err
	}
	return d.Deinitialize()
}
