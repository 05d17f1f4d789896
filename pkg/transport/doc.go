/*
Package transport carries simulation requests between a remote engine and a
simulation server over TCP.

Each connection carries exactly one exchange: the client writes one request and
half-closes its side, the server runs the simulation and streams the result files
back (or a failure token), then closes. There is no pooling and no reuse.
*/
package transport
