/*
Package tai64 implements the 12-byte TAI64N timestamp label: 8 big-endian
bytes of seconds offset by 2^62, followed by 4 big-endian bytes of
nanoseconds.

Labels order correctly under bytewise comparison of their encoding, which
is why the storage layer can persist them raw. Leap seconds are not
tabulated; labels are derived from the Unix clock, matching every producer
that lacks a leap table.
*/
package tai64
