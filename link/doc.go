// Package link owns the physical serial connection to a Nextion display.
//
// A [Link] wraps a [Port] produced by an [Opener] and enforces the rules the
// upload protocol depends on:
//
//   - the baud rate is changed only by closing the port and opening it again;
//   - no read or write is accepted while the link is closed;
//   - reads are bounded: [Link.ReadAvailable] returns whatever arrived within
//     the given wait, or nothing.
//
// Bytes that arrive back to back are coalesced into a single read, so a reply
// burst such as the ten byte completion marker is observed as one read event.
// The gap that ends a burst is configured with [WithBurstGap].
//
// [SerialOpener] is the production backend built on go.bug.st/serial.
// Errors are never retried inside this package.
package link
