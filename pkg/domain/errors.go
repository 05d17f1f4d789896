package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingAddress is returned when a remote engine is built without an address or port.
var ErrMissingAddress = errors.New("remote engine requires an address and a port")

// ErrMixedDevices is returned when simulated and external devices are staged in the same run.
var ErrMixedDevices = errors.New("simulated and external devices cannot be mixed in one run")

// ErrInsufficientRays is the failure reported by the IndexError token:
// post-processing found too few rays to analyze.
var ErrInsufficientRays = errors.New("not enough rays for the simulation")

// ErrSimulationFailed is the failure reported by the SimulationError token.
var ErrSimulationFailed = errors.New("simulation failed for unknown reason")

// ErrProtocol is returned when a transport stream cannot be decoded.
var ErrProtocol = errors.New("protocol violation")

// ErrNoExports is returned when a simulation is requested with no export names.
var ErrNoExports = errors.New("no exports requested")

// ErrSimulationInFlight is returned when an engine already runs a simulation.
var ErrSimulationInFlight = errors.New("a simulation is already in flight")

// ErrRunNotFound is returned when a run ID is absent from the ledger.
var ErrRunNotFound = errors.New("run not found")

// ErrResultsNotReady is returned when a simulated detector is read before its engine finished.
var ErrResultsNotReady = errors.New("simulation results are not ready")

// MixedDevicesError lists the external devices found alongside simulated ones.
type MixedDevicesError struct {
	External []string
}

func (e *MixedDevicesError) Error() string {
	return fmt.Sprintf("%v; external devices: %s", ErrMixedDevices, strings.Join(e.External, ", "))
}

func (e *MixedDevicesError) Unwrap() error {
	return ErrMixedDevices
}
