/*
Package protocol implements the wire format exchanged between the remote simulation
client and the simulation server.

Two framings are available. FramingDelimited is the original sentinel-delimited
format:

	request:  <export>,<export>|||<scene document>
	response: <file>|||<chunk>|||<file>|||<chunk>|||...|ENDOFTRANSMISSION|
	failure:  SimulationError | IndexError

Export names and documents must not contain the "|||" delimiter; nothing is
escaped. Result files are split into chunks of a configurable byte budget, each
extended forward to the next line terminator, and consecutive chunks carrying the
same file name are appended on the receiving side.

FramingLengthPrefixed sends each message as a 4-byte big-endian length followed
by a CBOR document, so payloads may contain any bytes. Chunk bodies may
additionally be compressed with zstd or lz4.
*/
package protocol
