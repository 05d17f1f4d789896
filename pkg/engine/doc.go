/*
Package engine provides the simulation engines bound to the trigger detector.

Local drives the ray-tracing program in-process through a ports.Application and
post-processes the exports itself. Remote ships the scene to a simulation server
through the transport client and waits for the result files. Both satisfy
ports.Engine; Simulate blocks and is meant to run off the host scheduler.
*/
package engine
