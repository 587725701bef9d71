package xmodem

import (
	"errors"
	"fmt"
)

// Recoverable errors. The receiver answers them with NAK and retries within
// its failure budget.
var (
	// ErrIntegrityMismatch reports a checksum or CRC that does not match the payload.
	ErrIntegrityMismatch = errors.New("xmodem: integrity mismatch")

	// ErrProtocolViolation reports a malformed block: bad complement, unexpected
	// sequence, wrong length or an unknown start byte.
	ErrProtocolViolation = errors.New("xmodem: protocol violation")
)

// Abort sentinels, one per AbortReason. An *AbortError matches its reason's
// sentinel with errors.Is.
var (
	ErrNoResponse     = errors.New("xmodem: no response from peer")
	ErrTooManyRetries = errors.New("xmodem: too many retries")
	ErrTimeout        = errors.New("xmodem: timeout")
	ErrPeerCancelled  = errors.New("xmodem: cancelled by peer")
	ErrUserCancelled  = errors.New("xmodem: cancelled by user")
	ErrEOTNotAcked    = errors.New("xmodem: EOT not acknowledged")
	ErrChannelFault   = errors.New("xmodem: channel fault")
	ErrLocalIO        = errors.New("xmodem: local I/O error")
)

// ErrEngineRunning is returned when a second transfer is started on an engine
// that is already running one.
var ErrEngineRunning = errors.New("xmodem: engine already running a transfer")

// AbortReason classifies why a session ended without completing.
type AbortReason uint8

const (
	NoResponse AbortReason = iota + 1
	TooManyRetries
	Timeout
	PeerCancelled
	UserCancelled
	EOTNotAcked
	ChannelFault
	LocalIO
)

var reasonNames = map[AbortReason]string{
	NoResponse:     "NoResponse",
	TooManyRetries: "TooManyRetries",
	Timeout:        "Timeout",
	PeerCancelled:  "PeerCancelled",
	UserCancelled:  "UserCancelled",
	EOTNotAcked:    "EOTNotAcked",
	ChannelFault:   "ChannelFault",
	LocalIO:        "LocalIO",
}

var reasonErrors = map[AbortReason]error{
	NoResponse:     ErrNoResponse,
	TooManyRetries: ErrTooManyRetries,
	Timeout:        ErrTimeout,
	PeerCancelled:  ErrPeerCancelled,
	UserCancelled:  ErrUserCancelled,
	EOTNotAcked:    ErrEOTNotAcked,
	ChannelFault:   ErrChannelFault,
	LocalIO:        ErrLocalIO,
}

func (r AbortReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}

	return fmt.Sprintf("AbortReason(%d)", uint8(r))
}

// Sentinel returns the sentinel error for the reason.
func (r AbortReason) Sentinel() error {
	return reasonErrors[r]
}

// notifiesPeer reports whether the local side decided the abort and must tell
// the peer with a CAN burst.
func (r AbortReason) notifiesPeer() bool {
	return r != PeerCancelled && r != ChannelFault
}

// AbortError is returned by Send and Receive when a session aborts.
type AbortError struct {
	Reason AbortReason
	// Err is the last underlying cause, if any.
	Err error
}

func (e *AbortError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("xmodem: transfer aborted: %s", e.Reason)
	}

	return fmt.Sprintf("xmodem: transfer aborted: %s: %v", e.Reason, e.Err)
}

// Unwrap exposes both the reason sentinel and the cause to errors.Is/As.
func (e *AbortError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Reason.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// ReasonOf extracts the abort reason from err.
func ReasonOf(err error) (AbortReason, bool) {
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Reason, true
	}

	return 0, false
}

func abortErr(reason AbortReason, cause error) *AbortError {
	return &AbortError{Reason: reason, Err: cause}
}
