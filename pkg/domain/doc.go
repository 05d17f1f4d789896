/*
Package domain contains the core models of the raysim trigger orchestration.

It defines the operations flowing through a host acquisition sequence, the device
capabilities the interceptor inspects, the scene and result artifacts exchanged
with the simulation, and the completion signal that bridges background
simulations with the host scheduler. This package is kept free of I/O beyond the
small file helpers on Scene and ResultFile.

# Key Entities

  - Operation: One step of the host sequence (stage, open_run, trigger, ...).
  - SimulationTarget: Capability marker for devices that take part in simulation.
  - Scene: The serialized optical layout handed to the ray-tracer.
  - ResultFile: A named artifact streamed back from a simulation.
  - Status: Single-resolution completion signal for a trigger.
  - RunRecord: Ledger entry describing one served simulation request.
*/
package domain
