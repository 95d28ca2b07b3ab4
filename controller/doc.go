// Package controller runs firmware uploads on a dedicated worker goroutine
// and reports their progress as a stream of events.
//
// # Modes
//
// [Controller.StartManual] makes a single attempt: handshake, upload, and an
// event describing the outcome. [Controller.StartAuto] runs the production
// line loop. Every failure restarts the cycle from the handshake, which waits
// without bound for a display to appear. After a successful upload the display
// is reset to 115200 baud and polled until it reports the ready page; the poll
// gives up after the retry budget (three by default) is used and the loop
// returns to Idle to wait for the next display.
//
// # States
//
//	Idle → Handshaking → Uploading → PostUpdatePolling → Idle
//
// Any state moves back to Handshaking on a recoverable failure, and to Stopped
// once [Controller.Stop] is observed. Stop is cooperative: it is checked on
// Idle entry, at the top of every handshake and polling iteration, and before
// every chunk write, so a pending wait finishes before the run ends.
//
// # Events
//
// Events are queued by the worker and delivered by a dispatcher goroutine to
// every channel returned by [Controller.Subscribe]. The worker never blocks on
// a subscriber.
package controller
