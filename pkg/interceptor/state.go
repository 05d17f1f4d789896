package interceptor

import "slices"

// State is the bookkeeping accumulated over one run.
type State struct {
	// Simulated and External hold the names of staged devices by classification.
	Simulated []string
	External  []string
	// Validated is set once open_run accepted the staged set.
	Validated bool
	// Triggers counts the trigger operations injected in this run.
	Triggers int
}

// SimulationOnly reports whether only simulated devices were staged.
func (s State) SimulationOnly() bool {
	return len(s.Simulated) > 0 && len(s.External) == 0
}

// Mixed reports whether simulated and external devices were staged together.
func (s State) Mixed() bool {
	return len(s.Simulated) > 0 && len(s.External) > 0
}

// Phase names where the run is: classifying, validated, triggered or reset.
func (s State) Phase() string {
	switch {
	case s.Triggers > 0:
		return "triggered"
	case s.Validated:
		return "validated"
	case len(s.Simulated) > 0 || len(s.External) > 0:
		return "classifying"
	default:
		return "reset"
	}
}

func (s State) clone() State {
	s.Simulated = slices.Clone(s.Simulated)
	s.External = slices.Clone(s.External)
	return s
}
