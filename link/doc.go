// Package link provides the byte channel shared by the terminal's background
// listener and the file transfer engine, and the arbiter deciding which of the
// two may touch it.
//
// # Channel
//
// [Channel] is a minimal byte pipe with three operations:
//
//   - Read(p, timeout): returns as soon as at least one byte is available, or
//     [ErrTimeout] when nothing arrived within timeout.
//   - Write(p): writes all of p.
//   - Available(): non-blocking probe for pending input.
//
// Errors other than [ErrTimeout] wrap [ErrChannelFault]; they are fatal to a
// transfer session and stop the listener.
//
// Two backends are provided: [OpenSerial] for local serial devices through
// go.bug.st/serial, and [NewConnChannel] for any net.Conn (TCP serial servers,
// net.Pipe in tests). [Open] chooses between them from a device string.
//
// # Arbiter
//
// [Arbiter] holds the single ownership state ([Idle], [ListenerOwned],
// [TransferOwned]). The listener takes ownership for one poll at a time and
// yields between polls; a transfer request waits for that yield and then
// holds the channel until [Arbiter.Release]. A second transfer request while
// one is active fails with [ErrBusy].
package link
