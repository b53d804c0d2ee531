/*
Package api exposes the storage engine over TCP: an acceptor loop, one task
per connection, and a thin dispatcher mapping wire commands 1:1 to engine
operations.

# Architecture

	┌────────────────────── API SERVER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │           Acceptor (Server.Start)           │          │
	│  │  - net.Listener on 127.0.0.1:4343           │          │
	│  │  - one taskgroup task per connection        │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Connection loop (handleConn)        │          │
	│  │  read frame → decode command → dispatch →   │          │
	│  │  write reply frame → repeat until EOF       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Dispatch                         │          │
	│  │  - 1:1 switch on the command tag            │          │
	│  │  - folds engine errors into replies         │          │
	│  │  - records operation metrics                │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Connection lifecycle

A zero-byte read means the client half-closed: the server closes its side
and the task ends without logging an error. Two conditions are protocol
violations that end the connection after exactly one error reply: a frame
announcing more than 16 MiB, and a frame whose payload does not decode as a
command. Domain outcomes — misses, conflicts, emptiness — never close the
connection.

Within one connection requests are handled strictly in order; ordering
across connections is whatever the per-document mutexes impose.

# Usage

	srv := api.NewServer(engine)
	go srv.Start("127.0.0.1:4343") // blocks
	...
	srv.Stop() // closes the listener, waits for connections

# See Also

  - pkg/protocol for the frame and message formats
  - pkg/storage for the operations behind Dispatch
*/
package api
