/*
Package raysim runs ray-tracing simulations in place of detector acquisitions.

An experiment plan is a stream of operations (stage, open_run, trigger, read,
close_run...). When every staged device is a simulated one, raysim rewrites
the plan so that a trigger device starts a simulation before the first
detector is triggered, and the detectors read the simulation results once it
completes. The simulation runs either locally, driving the ray-tracing program
directly, or on a remote simulation server reached over TCP.

# Key Features

  - Plan interception: four composable stages classify, validate, trigger and clean up.
  - Local and remote engines behind one interface.
  - Wire compatible delimited protocol plus a length-prefixed CBOR framing.
  - Cancellation: cancelling a trigger's status aborts the simulation.

# Usage

	eng, err := engine.NewRemote("beamline-sim", 8888)
	if err != nil {
		log.Fatal(err)
	}

	sim, err := raysim.New("/tmp/raysim", scene, eng, []string{"DetectorAtFocus"})
	if err != nil {
		log.Fatal(err)
	}

	result, err := sim.Count(ctx, 1)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Events[0].Readings["DetectorAtFocus_intensity"])
*/
package raysim
