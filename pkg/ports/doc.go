/*
Package ports defines the driven ports (interfaces) of the raysim core.

These interfaces decouple the interceptor, trigger detector and transport from
concrete simulation backends, storage and the external ray-tracing program.

# Key Interfaces

  - Engine: Runs one simulation into a working directory (local or remote).
  - Application: A session of the external ray-tracing program.
  - PostProcessor: Turns a raw export into an analyzed result file.
  - RunLedger: Persists records of served simulation requests.
  - Locker: Serializes simulations that share a working directory or program instance.
*/
package ports
