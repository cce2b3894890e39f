package netoff

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// simRecord holds everything the worker knows about one simulation: the
// full variable lists ADD_SIM reported, the driver-selected subsets INIT_SIM
// chose, and the two pre-sized ValueContainers those subsets bind the run
// phase to.
type simRecord struct {
	id   int32
	path string

	possibleInputs  *VariableList
	possibleOutputs *VariableList
	selectedInputs  *VariableList
	selectedOutputs *VariableList

	inputs  *ValueContainer
	outputs *ValueContainer

	initialized bool
}

// Worker is C6: the server side of one netoff session, hosting zero or more
// black-box simulations behind a request/response state machine mirrored
// against a single Driver peer. A Worker is used by exactly one goroutine;
// it does not synchronize its own state.
type Worker struct {
	cfg       *Config
	transport *Transport
	logger    *slog.Logger
	sessionID string

	state              ConnState
	handledLastRequest bool

	pathToID map[string]int32
	sims     map[int32]*simRecord

	lastInitTag InitialClientTag
	lastRunTag  ClientTag
	lastSimID   int32

	pendingAddPath string
	pendingAddID   int32

	pendingFileSimID int32
	pendingFilePath  string

	// pendingSince marks when the request currently awaiting a Confirm*/Send*
	// reply was received, for ObserveRoundTrip (C10).
	pendingSince time.Time
}

// NewWorker builds a Worker in StateNone; call InitializeConnection to
// accept its one driver peer.
func NewWorker(opts ...Option) (*Worker, error) {
	cfg := applyConfig(opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Worker{
		cfg:                cfg,
		logger:             cfg.logger,
		state:              StateNone,
		handledLastRequest: true,
		pathToID:           make(map[string]int32),
		sims:               make(map[int32]*simRecord),
	}, nil
}

// SetPort overrides the configured bind port. Only valid before
// InitializeConnection.
func (w *Worker) SetPort(port int) error {
	if w.state != StateNone {
		return fmt.Errorf("%w: set_port after initialize_connection", ErrProtocolState)
	}
	if port <= 0 {
		return fmt.Errorf("%w: port must be positive", ErrInvalidConfig)
	}
	w.cfg.port = port
	return nil
}

// InitializeConnection blocks until one driver connects, per C1's bounded
// retry budget.
func (w *Worker) InitializeConnection() error {
	if w.state != StateNone {
		return fmt.Errorf("%w: initialize_connection called twice", ErrProtocolState)
	}
	t, err := AcceptOnePeer(w.cfg)
	if err != nil {
		return err
	}
	w.transport = t
	w.sessionID = uuid.NewString()
	w.state = StateInited
	w.logger.Info("netoff: worker accepted driver", "session", w.sessionID, "remote", t.RemoteAddr())
	if w.cfg.auditSink != nil {
		w.cfg.auditSink.Emit(AuditEvent{Session: w.sessionID, SimID: -1, Kind: AuditSessionStarted})
	}
	return nil
}

// Deinitialize closes the transport and returns the worker to StateNone, so
// a fresh InitializeConnection can accept a new driver (spec.md §9: the
// protocol permits restart; this library never forces a process exit).
func (w *Worker) Deinitialize() error {
	if w.state == StateNone {
		return nil
	}
	var err error
	if w.transport != nil {
		err = w.transport.Close()
	}
	if w.cfg.auditSink != nil {
		w.cfg.auditSink.Emit(AuditEvent{Session: w.sessionID, SimID: -1, Kind: AuditSessionEnded})
	}
	w.transport = nil
	w.state = StateNone
	w.handledLastRequest = true
	w.pathToID = make(map[string]int32)
	w.sims = make(map[int32]*simRecord)
	return err
}

func (w *Worker) simOrErr(simID int32) (*simRecord, error) {
	sim, ok := w.sims[simID]
	if !ok {
		return nil, fmt.Errorf("%w: sim %d", ErrUnknownSimID, simID)
	}
	return sim, nil
}

// GetInitialClientRequest blocks for the driver's next init-phase message,
// decoding enough of it to classify and store, then returns its tag. The
// caller inspects the tag and calls the matching Get*/Confirm* pair.
func (w *Worker) GetInitialClientRequest() (InitialClientTag, error) {
	if w.state != StateInited {
		return 0, fmt.Errorf("%w: get_initial_client_request requires INITED, have %s", ErrProtocolState, w.state)
	}
	if !w.handledLastRequest {
		return 0, fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}

	raw, err := w.transport.RecvVariable()
	if err != nil {
		return 0, err
	}
	tagByte, payload, err := DecodeInitialFrame(raw)
	if err != nil {
		return 0, err
	}
	tag := InitialClientTag(tagByte)
	w.transport.metrics.IncrementRequestsReceived()

	switch tag {
	case TagAddSim:
		req, err := DecodeAddSimRequest(NewDecoder(payload))
		if err != nil {
			return 0, err
		}
		if _, dup := w.pathToID[req.Path]; dup {
			return 0, fmt.Errorf("%w: %s", ErrDuplicatePath, req.Path)
		}
		w.pendingAddPath = req.Path
		w.pendingAddID = req.SimID
		w.lastSimID = req.SimID

	case TagInitSim:
		req, err := DecodeInitSimRequest(NewDecoder(payload))
		if err != nil {
			return 0, err
		}
		sim, err := w.simOrErr(req.SimID)
		if err != nil {
			return 0, err
		}
		if !req.SelectedInputs.Subset(sim.possibleInputs) || !req.SelectedOutputs.Subset(sim.possibleOutputs) {
			return 0, fmt.Errorf("%w: init_sim selection is not a subset of sim %d's possible variables", ErrProtocolState, req.SimID)
		}
		sim.selectedInputs = req.SelectedInputs
		sim.selectedOutputs = req.SelectedOutputs
		sim.inputs = NewValueContainer(req.SimID, sim.selectedInputs)
		sim.outputs = NewValueContainer(req.SimID, sim.selectedOutputs)
		w.lastSimID = req.SimID

		// The driver ships the initial input container immediately after
		// INIT_SIM, ahead of any reply (spec.md §4.6); receive it now so the
		// application finds it already populated when it asks.
		if err := w.recvRunFrameInto(req.SimID, sim.inputs, byte(TagInputs)); err != nil {
			return 0, err
		}

	case TagGetFile:
		req, err := DecodeGetFileRequest(NewDecoder(payload))
		if err != nil {
			return 0, err
		}
		w.pendingFileSimID = req.SimID
		w.pendingFilePath = req.Path
		w.lastSimID = req.SimID

	case TagStart:
		// no payload to decode

	case TagClientInitAbort:
		w.logger.Warn("netoff: worker received client_init_abort", "session", w.sessionID)
		_ = w.Deinitialize()
		w.handledLastRequest = true
		return tag, nil

	default:
		return 0, fmt.Errorf("%w: initial client tag %d", ErrUnknownTag, tagByte)
	}

	w.lastInitTag = tag
	w.pendingSince = time.Now()
	w.handledLastRequest = false
	return tag, nil
}

// recvRunFrameInto reads one run-plane frame, checks its header against
// (simID, wantTag), and decodes its payload into dst.
func (w *Worker) recvRunFrameInto(simID int32, dst *ValueContainer, wantTag byte) error {
	var hdr [runHeaderSize]byte
	if err := w.transport.Recv(hdr[:]); err != nil {
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
	if !clientTagHasPayload(ClientTag(wantTag)) {
		return fmt.Errorf("%w: run tag %d carries no payload", ErrProtocolState, wantTag)
	}
	body := make([]byte, dst.PayloadSize())
	if err := w.transport.Recv(body); err != nil {
		return err
	}
	return DecodePayloadInto(NewDecoder(body), dst)
}

func (w *Worker) sendRunFrame(simID int32, tag byte, payload func(e *Encoder)) error {
	e := NewEncoder(make([]byte, 0, runHeaderSize+32))
	EncodeRunHeader(e, simID, tag)
	if payload != nil {
		payload(e)
	}
	if err := w.transport.Send(e.Bytes()); err != nil {
		return err
	}
	w.transport.metrics.IncrementRequestsSent()
	return nil
}

// GetAddedSimulation returns the path and driver-assigned id from the
// pending ADD_SIM request.
func (w *Worker) GetAddedSimulation() (path string, simID int32, err error) {
	if w.handledLastRequest || w.lastInitTag != TagAddSim {
		return "", 0, fmt.Errorf("%w: no pending add_sim request", ErrProtocolState)
	}
	return w.pendingAddPath, w.pendingAddID, nil
}

// ConfirmSimulationAdd registers the simulation's full variable lists and
// replies SUCCESS_ADD_SIM.
func (w *Worker) ConfirmSimulationAdd(simID int32, possibleInputs, possibleOutputs *VariableList) error {
	if w.handledLastRequest || w.lastInitTag != TagAddSim || simID != w.pendingAddID {
		return fmt.Errorf("%w: confirm_simulation_add without a matching pending request", ErrProtocolState)
	}
	sim := &simRecord{
		id:              simID,
		path:            w.pendingAddPath,
		possibleInputs:  possibleInputs,
		possibleOutputs: possibleOutputs,
	}
	w.sims[simID] = sim
	w.pathToID[w.pendingAddPath] = simID

	resp := AddSimSuccess{SimID: simID, PossibleInputs: possibleInputs, PossibleOutputs: possibleOutputs}
	e := NewEncoder(nil)
	resp.Encode(e)
	if err := w.transport.Send(EncodeInitialFrame(byte(TagSuccessAddSim), e.Bytes())); err != nil {
		return err
	}
	w.transport.metrics.IncrementRequestsSent()
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.handledLastRequest = true

	w.logger.Info("netoff: sim added", "session", w.sessionID, "sim", simID, "path", sim.path)
	if w.cfg.auditSink != nil {
		w.cfg.auditSink.Emit(AuditEvent{Session: w.sessionID, SimID: simID, Kind: AuditSimAdded})
	}
	return nil
}

// GetLastSimID returns the simulation id carried by the most recently
// decoded request, for tags whose Get* accessor doesn't already return one.
func (w *Worker) GetLastSimID() int32 { return w.lastSimID }

// GetSelectedInputVariables returns the driver-selected input subset for
// simID, populated once INIT_SIM has been processed.
func (w *Worker) GetSelectedInputVariables(simID int32) (*VariableList, error) {
	sim, err := w.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if sim.selectedInputs == nil {
		return nil, fmt.Errorf("%w: sim %d has not completed init_sim", ErrProtocolState, simID)
	}
	return sim.selectedInputs, nil
}

// GetSelectedOutputVariables returns the driver-selected output subset for
// simID.
func (w *Worker) GetSelectedOutputVariables(simID int32) (*VariableList, error) {
	sim, err := w.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if sim.selectedOutputs == nil {
		return nil, fmt.Errorf("%w: sim %d has not completed init_sim", ErrProtocolState, simID)
	}
	return sim.selectedOutputs, nil
}

// GetInputValueContainer returns a borrow of simID's input container,
// already populated with the driver's initial values once INIT_SIM has run,
// and with the latest RecvInputValues result thereafter.
func (w *Worker) GetInputValueContainer(simID int32) (*ValueContainer, error) {
	sim, err := w.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if sim.inputs == nil {
		return nil, fmt.Errorf("%w: sim %d has not completed init_sim", ErrProtocolState, simID)
	}
	return sim.inputs, nil
}

// GetOutputValueContainer returns a borrow of simID's output container, for
// the application to write into before ConfirmSimulationInit or
// SendOutputValues.
func (w *Worker) GetOutputValueContainer(simID int32) (*ValueContainer, error) {
	sim, err := w.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	if sim.outputs == nil {
		return nil, fmt.Errorf("%w: sim %d has not completed init_sim", ErrProtocolState, simID)
	}
	return sim.outputs, nil
}

// ConfirmSimulationInit sends the application's initial output values as
// SUCCESS_SIM_INIT, timestamped 0. outputs must be the same container
// GetOutputValueContainer returned for simID.
func (w *Worker) ConfirmSimulationInit(simID int32, outputs *ValueContainer) error {
	if w.handledLastRequest || w.lastInitTag != TagInitSim || simID != w.lastSimID {
		return fmt.Errorf("%w: confirm_simulation_init without a matching pending request", ErrProtocolState)
	}
	sim, err := w.simOrErr(simID)
	if err != nil {
		return err
	}
	if outputs != sim.outputs {
		return fmt.Errorf("%w: confirm_simulation_init outputs is not sim %d's output container", ErrProtocolState, simID)
	}
	outputs.SetTime(0)
	if err := w.sendRunFrame(simID, byte(TagSuccessSimInit), outputs.EncodePayload); err != nil {
		return err
	}
	sim.initialized = true
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.handledLastRequest = true

	w.logger.Info("netoff: sim initialized", "session", w.sessionID, "sim", simID)
	if w.cfg.auditSink != nil {
		w.cfg.auditSink.Emit(AuditEvent{Session: w.sessionID, SimID: simID, Kind: AuditSimInitialized})
	}
	return nil
}

// GetSimulationFileName returns the remote path from the pending GET_FILE
// request.
func (w *Worker) GetSimulationFileName() (string, error) {
	if w.handledLastRequest || w.lastInitTag != TagGetFile {
		return "", fmt.Errorf("%w: no pending get_file request", ErrProtocolState)
	}
	return w.pendingFilePath, nil
}

// ConfirmSimulationFile replies SUCCESS_GET_FILE with blob. If a BlobCache is
// configured, a hit for the pending path is sent instead of blob (saving the
// application a disk read it already avoided), and a miss stores blob under
// that path for next time.
func (w *Worker) ConfirmSimulationFile(simID int32, blob []byte) error {
	if w.handledLastRequest || w.lastInitTag != TagGetFile || simID != w.pendingFileSimID {
		return fmt.Errorf("%w: confirm_simulation_file without a matching pending request", ErrProtocolState)
	}
	if w.cfg.blobCache != nil {
		if cached, ok, err := w.cfg.blobCache.Get(w.pendingFilePath); err != nil {
			w.logger.Warn("netoff: blob cache get failed", "path", w.pendingFilePath, "err", err)
		} else if ok {
			blob = cached
		} else if err := w.cfg.blobCache.Put(w.pendingFilePath, blob); err != nil {
			w.logger.Warn("netoff: blob cache put failed", "path", w.pendingFilePath, "err", err)
		}
	}
	resp := GetFileSuccess{SimID: simID, Blob: blob}
	e := NewEncoder(nil)
	resp.Encode(e)
	if err := w.transport.Send(EncodeInitialFrame(byte(TagSuccessGetFile), e.Bytes())); err != nil {
		return err
	}
	w.transport.metrics.IncrementRequestsSent()
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.handledLastRequest = true
	return nil
}

// ConfirmStart replies SUCCESS_START and moves the worker to StateStarted.
func (w *Worker) ConfirmStart() error {
	if w.handledLastRequest || w.lastInitTag != TagStart {
		return fmt.Errorf("%w: confirm_start without a pending start request", ErrProtocolState)
	}
	if err := w.transport.Send(EncodeInitialFrame(byte(TagSuccessStart), nil)); err != nil {
		return err
	}
	w.transport.metrics.IncrementRequestsSent()
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.state = StateStarted
	w.handledLastRequest = true
	return nil
}

// GetClientRequest blocks for the driver's next run-phase message header and
// returns its tag. INPUTS carries a payload the caller reads separately via
// RecvInputValues; the control tags (PAUSE/UNPAUSE/RESET) carry no further
// bytes and can be confirmed immediately.
func (w *Worker) GetClientRequest() (ClientTag, error) {
	if w.state != StateStarted {
		return 0, fmt.Errorf("%w: get_client_request requires STARTED, have %s", ErrProtocolState, w.state)
	}
	if !w.handledLastRequest {
		return 0, fmt.Errorf("%w: previous request not yet confirmed", ErrProtocolState)
	}

	var hdr [runHeaderSize]byte
	if err := w.transport.Recv(hdr[:]); err != nil {
		return 0, err
	}
	simID, tagByte, err := DecodeRunHeader(NewDecoder(hdr[:]))
	if err != nil {
		return 0, err
	}
	tag := ClientTag(tagByte)
	w.transport.metrics.IncrementRequestsReceived()

	if tag == TagClientAbort {
		w.logger.Warn("netoff: worker received client_abort", "session", w.sessionID)
		_ = w.Deinitialize()
		w.handledLastRequest = true
		return tag, nil
	}

	if tag != TagInputs && tag != TagPause && tag != TagUnpause && tag != TagReset {
		return 0, fmt.Errorf("%w: client tag %d", ErrUnknownTag, tagByte)
	}
	if tag == TagInputs {
		if _, err := w.simOrErr(simID); err != nil {
			return 0, err
		}
	}

	w.lastSimID = simID
	w.lastRunTag = tag
	w.pendingSince = time.Now()
	w.handledLastRequest = false
	return tag, nil
}

// RecvInputValues reads the INPUTS payload for simID into its input
// container and returns a borrow of it.
func (w *Worker) RecvInputValues(simID int32) (*ValueContainer, error) {
	if w.handledLastRequest || w.lastRunTag != TagInputs || simID != w.lastSimID {
		return nil, fmt.Errorf("%w: no pending inputs request for sim %d", ErrProtocolState, simID)
	}
	sim, err := w.simOrErr(simID)
	if err != nil {
		return nil, err
	}
	body := make([]byte, sim.inputs.PayloadSize())
	if err := w.transport.Recv(body); err != nil {
		return nil, err
	}
	if err := DecodePayloadInto(NewDecoder(body), sim.inputs); err != nil {
		return nil, err
	}
	return sim.inputs, nil
}

// SendOutputValues sends simID's current output container timestamped t as
// OUTPUTS, confirming the pending INPUTS request.
func (w *Worker) SendOutputValues(simID int32, t float64) error {
	if w.handledLastRequest || w.lastRunTag != TagInputs || simID != w.lastSimID {
		return fmt.Errorf("%w: send_output_values without a matching pending inputs request", ErrProtocolState)
	}
	sim, err := w.simOrErr(simID)
	if err != nil {
		return err
	}
	sim.outputs.SetTime(t)
	if err := w.sendRunFrame(simID, byte(TagOutputs), sim.outputs.EncodePayload); err != nil {
		return err
	}
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.handledLastRequest = true
	return nil
}

// ConfirmPause replies SUCCESS_PAUSE to a pending PAUSE request.
func (w *Worker) ConfirmPause() error { return w.confirmControl(TagPause, TagSuccessPause) }

// ConfirmUnpause replies SUCCESS_UNPAUSE to a pending UNPAUSE request.
func (w *Worker) ConfirmUnpause() error { return w.confirmControl(TagUnpause, TagSuccessUnpause) }

// ConfirmReset replies SUCCESS_RESET to a pending RESET request. Per
// spec.md §9's design note, the worker stays STARTED with its simulations
// and buffers intact, preserving its ability to run again, rather than
// tearing the session down the way the original implementation did.
func (w *Worker) ConfirmReset() error { return w.confirmControl(TagReset, TagSuccessReset) }

func (w *Worker) confirmControl(want ClientTag, reply ServerTag) error {
	if w.handledLastRequest || w.lastRunTag != want {
		return fmt.Errorf("%w: no pending request for this confirm call", ErrProtocolState)
	}
	if err := w.sendRunFrame(w.lastSimID, byte(reply), nil); err != nil {
		return err
	}
	w.transport.metrics.ObserveRoundTrip(time.Since(w.pendingSince))
	w.handledLastRequest = true

	if reply == TagSuccessReset {
		w.logger.Info("netoff: sim reset", "session", w.sessionID, "sim", w.lastSimID)
		if w.cfg.auditSink != nil {
			w.cfg.auditSink.Emit(AuditEvent{Session: w.sessionID, SimID: w.lastSimID, Kind: AuditSimulationReset})
		}
	}
	return nil
}

// GetLastReceivedTime returns simID's input container's timestamp, valid
// after the most recent RecvInputValues call for it.
func (w *Worker) GetLastReceivedTime(simID int32) (float64, error) {
	sim, err := w.simOrErr(simID)
	if err != nil {
		return 0, err
	}
	return sim.inputs.Time(), nil
}
