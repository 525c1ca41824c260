// Package rpc implements a msgpack-RPC client for driving a remote editor
// process over a single duplex byte stream.
//
// # Architecture
//
// The package is organized around these components:
//
//   - Transport: the byte stream (process pipes, TCP or unix socket)
//   - Decoder/encode helpers: msgpack frame codec
//   - Client: correlates responses to pending calls and queues inbound
//     requests and notifications for a consumer
//   - Future: the handle returned by Call
//
// # Wire format
//
//	Request:      [0, msgid, method, params]
//	Response:     [1, msgid, error, result]
//	Notification: [2, method, params]
//
// # Concurrency
//
// Start launches two goroutines. The read loop decodes frames in arrival
// order and never blocks on consumers: inbound requests and notifications
// are pushed onto unbounded FIFO queues, and responses resolve their Future
// by closing a channel. The write loop is single-flight: outbound frames are
// queued by Send/Call/Respond and written one at a time in enqueue order.
//
// Continuations registered with Future.Then are not run on the I/O
// goroutines; they are queued and executed by whoever calls
// Client.RunContinuations, normally the session consumer.
//
// # Failure
//
// A malformed top-level frame is logged and discarded. A response with an
// unknown id is logged and dropped. Any read or write error, or Close,
// disconnects the client and resolves every pending Future with an error
// wrapping ErrDisconnected.
package rpc
