// Package interceptor rewrites a host operation stream so that simulated
// detectors are fed by a ray-tracing simulation.
//
// Four stages run in a fixed order over every observed operation:
//
//   - Classify records staged devices as simulated or external.
//   - PrepareRun rejects mixed runs at open_run and hands the export list to the
//     trigger device.
//   - InjectTrigger inserts a trigger of the trigger device before the first
//     detector's trigger, in the same group, and binds the engine to every detector.
//   - Cleanup deletes the working directory at close_run and resets the state.
//
// Stages take the accumulated State and return the operations to emit with the
// next State; Pipeline folds them. Runs of the same stream are independent.
package interceptor
