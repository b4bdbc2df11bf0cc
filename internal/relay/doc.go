// Package relay moves bytes between two channels with a single-threaded,
// readiness-driven loop.
//
// # Loop
//
// Each iteration of a Session:
//
//  1. calls Accept once on every endpoint that is an Acceptor (tcpin);
//  2. collects the input descriptors, then the output descriptors;
//  3. waits for read readiness with poll(2), bounded by the poll timeout;
//  4. reads the input if any input descriptor is ready, then the output;
//  5. writes the input bytes to the output, then the output bytes to the
//     input. Zero-length transfers are skipped.
//
// A wait that expires with nothing ready starts the next iteration. The wait
// happens even when neither endpoint has a descriptor, so an idle relay
// sleeps instead of spinning.
//
// Any read, write, accept or poll error ends the loop and is returned to the
// caller wrapped with its direction. Peer failures inside a tcpin channel
// never reach the loop: the channel drops the peer itself.
//
// # Concurrency
//
// A Session and both of its endpoints belong to the goroutine calling Run or
// Step. Run checks its context once per iteration, so cancellation takes
// effect within one poll timeout.
//
// # Usage Example
//
//	input, err := channel.OpenString("tcpin:9000")
//	if err != nil {
//	    return err
//	}
//	defer input.Close()
//
//	output, err := channel.OpenString("udpout:127.0.0.1:9001")
//	if err != nil {
//	    return err
//	}
//	defer output.Close()
//
//	stats, err := relay.Run(ctx, input, output, relay.Options{})
//
// # Mock Implementation
//
// MockEndpoint and MockAcceptor are pipe-backed endpoints with real
// descriptors, so tests can drive the loop deterministically and inspect the
// order of calls through a shared Journal.
package relay
