/*
Package runner executes host operation streams against devices.

It plays the part of the experiment-control scheduler: it stages devices, fires
triggers, waits on their completion statuses by group and collects readings into
events. Simulation is added by wrapping the plan with an interceptor.

# Key Components

  - Runner: executes one plan and returns the collected Result.
  - Preprocessor: rewrites the plan before execution (see package interceptor).
  - Count: the plan that reads a set of detectors a number of times.

# Usage

	ic := interceptor.New(trigger, detectors)
	r := runner.New(runner.WithPreprocessor(ic.Wrap))

	result, err := r.Run(ctx, runner.Count(detectors, 3))
	if err != nil {
		log.Fatal(err)
	}
*/
package runner
