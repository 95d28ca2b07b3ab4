// Package uploader drives a single firmware upload attempt over a [link.Link].
//
// An attempt has two phases:
//
//   - [Negotiator.Connect] finds the baud the display currently listens at.
//     It probes 9600 and then 115200, sending the wake-up, connect and retry
//     frames at each baud and waiting for "comok". The first baud that answers
//     becomes the control baud.
//   - [Uploader.Upload] announces the image with whmi-wri at the control baud,
//     switches to the upload baud, and streams the image in 4096 byte chunks.
//     Every chunk must be acknowledged with 0x05 before the next one is sent,
//     and the attempt succeeds only when the completion marker arrives.
//
// Neither phase retries. A failed attempt reports a typed error from package
// whmi and leaves the recovery decision to the caller.
package uploader
