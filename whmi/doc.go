// Package whmi implements the wire level of the Nextion "whmi-wri" upload protocol.
//
// # Command frames
//
// Commands are written as hybrid text: literal ASCII characters interleaved
// with "0xNN" escape tokens that stand for single raw bytes. [Encode] turns a
// [Command] into the bytes put on the wire. No terminator is added implicitly;
// callers embed the three byte terminator (0xFF 0xFF 0xFF) themselves, which is
// what [Terminated] does.
//
// # Responses
//
// The display answers with short bursts:
//
//   - "comok ..." to a connect probe
//   - 0x05 after the whmi-wri command and after every firmware chunk
//   - 00 00 00 FF FF FF 88 FF FF FF when the image has been flashed
//   - a reply containing 0x07 to "sendme" while the ready page is shown
//
// [WaitFor] polls a [Reader] until an [Expectation] is met or its timeout
// elapses. It is the only timeout primitive of the upload engine.
// [WaitForRest] also returns the bytes that followed the match in the same
// read, and [Prepend] feeds them to the next wait.
package whmi
