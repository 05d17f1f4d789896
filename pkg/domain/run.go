package domain

import "time"

// Outcome is the final state of a served simulation request.
type Outcome string

const (
	OutcomeRunning          Outcome = "running"
	OutcomeSuccess          Outcome = "success"
	OutcomeSimulationError  Outcome = "simulation_error"
	OutcomePostprocessError Outcome = "postprocess_error"
	OutcomeProtocolError    Outcome = "protocol_error"
)

// RunRecord describes one simulation request handled by the transport server.
type RunRecord struct {
	ID       string    `json:"id"`
	Peer     string    `json:"peer"`
	Dir      string    `json:"dir"`
	Exports  []string  `json:"exports"`
	Scene    string    `json:"scene,omitempty"`
	Outcome  Outcome   `json:"outcome"`
	Error    string    `json:"error,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Files    int       `json:"files"`
}

// Duration returns how long the run took, or zero while it is running.
func (r RunRecord) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
