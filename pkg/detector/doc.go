// Package detector holds the devices that take part in a simulated acquisition.
//
// Trigger starts a simulation on its engine when the host sequence triggers it.
// Simulated reads one export's analyzed result file once that simulation is done.
package detector
