/*
Package client implements the TuringDB protocol client used by the CLI and
by end-to-end tests.

A Client owns one TCP connection and exposes one method per protocol
command. Calls are serialized on the connection — one request frame out,
one reply frame back — matching the server's strictly-ordered handling.

# Usage

	c, err := client.Connect("127.0.0.1:4343")
	if err != nil { ... }
	defer c.Close()

	res, err := c.FieldInsert("db0", "doc0", "field0", []byte("hello"))
	// err is a transport failure; res.Kind carries the domain outcome

Transport failures come back as errors; every domain outcome — including
misses and conflicts — arrives as a *protocol.Result.

# See Also

  - pkg/protocol for the message formats
  - cmd/turingdb for the CLI built on this client
*/
package client
