// Package channel provides the I/O endpoints a relay copies bytes between.
//
// A [Channel] is one of exactly four transports:
//
//   - [UDP]: a bound UDP socket, either listening ("udpin") or connected to a
//     fixed remote ("udpout").
//   - [TCPServer]: a listening TCP socket and every peer it has accepted.
//     Writes are broadcast to all peers; reads merge bytes from all peers.
//   - [TCPClient]: one outbound TCP connection.
//   - [Console]: the process's stdin/stdout pair.
//
// Every Channel exposes the same contract: Read never blocks on a socket
// (an OS would-block is reported as zero bytes and no error), Write hands the
// whole buffer to the transport, and Descriptors lists the file descriptors a
// caller should poll for read readiness before calling Read. The set of
// variants is closed: the interface has an unexported method so only this
// package can implement it.
//
// # Channel strings
//
// [Parse] and [Open] turn the textual forms accepted on the command line into
// a ready Channel:
//
//	stdio                 console on stdin/stdout
//	udpin:<port>          UDP bound on 0.0.0.0:<port>
//	udpout:<ip>:<port>    UDP on an ephemeral port, connected to <ip>:<port>
//	tcpin:<port>          TCP listener on 0.0.0.0:<port>
//	tcpin:<addr>:<port>   TCP listener on <addr>:<port>
//	tcpout:<ip>:<port>    TCP client connected to <ip>:<port>
//
// # Fan-in
//
// A TCPServer read concatenates whatever each peer has buffered, in
// connection order, into the caller's buffer. Peer boundaries are not
// preserved: with several active peers the result is an N-to-1 byte merge.
//
// # Errors
//
// Failures are returned as [*Error] carrying an [ErrorKind]. A peer of a
// TCPServer that fails or disconnects is dropped instead of failing the call.
// End of stream on a single-stream channel is reported with an error that
// matches [ErrEndOfStream].
//
// The Console transport reads from whatever stdin the process inherited,
// which is usually a blocking descriptor. Poll it first; a read after a
// readiness report returns promptly.
package channel
