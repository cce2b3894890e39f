package netoff

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testPort = 19391

func newTestPair(t *testing.T) (*Worker, *Driver) {
	t.Helper()

	worker, err := NewWorker(WithPort(testPort), WithRetry(10, 20*time.Millisecond))
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, worker.InitializeConnection())
	}()

	driver, err := NewDriver(WithPort(testPort), WithRetry(20, 20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, driver.InitializeConnection("127.0.0.1"))

	wg.Wait()

	t.Cleanup(func() {
		_ = driver.Deinitialize()
		_ = worker.Deinitialize()
	})
	return worker, driver
}

// runWorkerAddInitStart drives the worker side of registration, INIT_SIM,
// and START on a background goroutine, matching the demo CLI's init-phase
// loop, and signals done once the worker reaches StateStarted.
func runWorkerAddInitStart(t *testing.T, worker *Worker, possible *VariableList, done chan<- error) {
	t.Helper()
	go func() {
		for {
			tag, err := worker.GetInitialClientRequest()
			if err != nil {
				done <- err
				return
			}
			switch tag {
			case TagAddSim:
				_, simID, err := worker.GetAddedSimulation()
				if err != nil {
					done <- err
					return
				}
				if err := worker.ConfirmSimulationAdd(simID, possible, possible); err != nil {
					done <- err
					return
				}
			case TagInitSim:
				simID := worker.GetLastSimID()
				outputs, err := worker.GetOutputValueContainer(simID)
				if err != nil {
					done <- err
					return
				}
				if err := worker.ConfirmSimulationInit(simID, outputs); err != nil {
					done <- err
					return
				}
			case TagStart:
				done <- worker.ConfirmStart()
				return
			}
		}
	}()
}

func TestAddSimInitSimStart(t *testing.T) {
	worker, driver := newTestPair(t)

	possible := NewVariableList()
	possible.AddReal("x")

	done := make(chan error, 1)
	runWorkerAddInitStart(t, worker, possible, done)

	simID, possIn, possOut, err := driver.AddSimulation("sim.one")
	require.NoError(t, err)
	require.Equal(t, int32(0), simID)
	require.True(t, possIn.Equal(possible))
	require.True(t, possOut.Equal(possible))

	outputs, err := driver.InitializeSimulation(simID, possible, possible, []float64{1.5}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{0}, outputs.Reals())

	require.NoError(t, driver.Start())
	require.NoError(t, <-done)

	require.Equal(t, StateStarted, worker.state)
	require.Equal(t, StateStarted, driver.state)
}

func TestInputsOutputsRoundTrip(t *testing.T) {
	worker, driver := newTestPair(t)

	possible := NewVariableList()
	possible.AddReal("x")

	done := make(chan error, 1)
	runWorkerAddInitStart(t, worker, possible, done)

	simID, _, _, err := driver.AddSimulation("sim.one")
	require.NoError(t, err)
	_, err = driver.InitializeSimulation(simID, possible, possible, []float64{0}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, driver.Start())
	require.NoError(t, <-done)

	workerDone := make(chan error, 1)
	go func() {
		tag, err := worker.GetClientRequest()
		if err != nil {
			workerDone <- err
			return
		}
		if tag != TagInputs {
			workerDone <- ErrUnknownTag
			return
		}
		in, err := worker.RecvInputValues(simID)
		if err != nil {
			workerDone <- err
			return
		}
		out, err := worker.GetOutputValueContainer(simID)
		if err != nil {
			workerDone <- err
			return
		}
		if err := out.SetReals([]float64{in.Reals()[0] * 2}); err != nil {
			workerDone <- err
			return
		}
		workerDone <- worker.SendOutputValues(simID, in.Time())
	}()

	inputs, err := driver.GetInputValueContainer(simID)
	require.NoError(t, err)
	require.NoError(t, inputs.SetReals([]float64{21}))
	require.NoError(t, driver.SendInputValues(simID, 1.0))

	outputs, err := driver.RecvOutputValues(simID)
	require.NoError(t, err)
	require.Equal(t, []float64{42}, outputs.Reals())
	require.NoError(t, <-workerDone)
}

func TestPauseUnpauseReset(t *testing.T) {
	worker, driver := newTestPair(t)

	possible := NewVariableList()
	possible.AddReal("x")

	done := make(chan error, 1)
	runWorkerAddInitStart(t, worker, possible, done)

	simID, _, _, err := driver.AddSimulation("sim.one")
	require.NoError(t, err)
	_, err = driver.InitializeSimulation(simID, possible, possible, []float64{0}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, driver.Start())
	require.NoError(t, <-done)

	for _, step := range []struct {
		driverCall func() error
		workerCall func() error
	}{
		{func() error { return driver.Pause(simID) }, worker.ConfirmPause},
		{func() error { return driver.Unpause(simID) }, worker.ConfirmUnpause},
		{func() error { return driver.Reset(simID) }, worker.ConfirmReset},
	} {
		workerDone := make(chan error, 1)
		go func() {
			if _, err := worker.GetClientRequest(); err != nil {
				workerDone <- err
				return
			}
			workerDone <- step.workerCall()
		}()
		require.NoError(t, step.driverCall())
		require.NoError(t, <-workerDone)
	}

	// Reset leaves the worker STARTED, preserving its ability to run again.
	require.Equal(t, StateStarted, worker.state)
}

func TestClientAbortTearsDownWithoutReply(t *testing.T) {
	worker, driver := newTestPair(t)

	possible := NewVariableList()
	possible.AddReal("x")

	done := make(chan error, 1)
	runWorkerAddInitStart(t, worker, possible, done)

	simID, _, _, err := driver.AddSimulation("sim.one")
	require.NoError(t, err)
	_, err = driver.InitializeSimulation(simID, possible, possible, []float64{0}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, driver.Start())
	require.NoError(t, <-done)

	workerDone := make(chan error, 1)
	go func() {
		tag, err := worker.GetClientRequest()
		if err != nil {
			workerDone <- err
			return
		}
		if tag != TagClientAbort {
			workerDone <- ErrUnknownTag
			return
		}
		workerDone <- nil
	}()

	require.NoError(t, driver.ClientAbort(simID))
	require.NoError(t, <-workerDone)
	require.Equal(t, StateNone, worker.state)
}
