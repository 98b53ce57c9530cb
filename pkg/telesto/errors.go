package telesto

import (
	"errors"
	"fmt"

	"github.com/exepirit/telesto-go/pkg/telesto/frame"
)

var (
	// ErrBusy is returned when a command is sent while another transaction
	// has not been consumed yet.
	ErrBusy = errors.New("transaction in flight")
	// ErrUnconsumed is the ErrBusy variant for a resolved result nobody read.
	ErrUnconsumed = fmt.Errorf("%w: previous result not consumed", ErrBusy)
	// ErrTimeout indicates no confirmation arrived before the deadline.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrMismatch indicates the module confirmed a different command.
	ErrMismatch = errors.New("unexpected confirmation")
	// ErrCancelled indicates the caller gave up on the transaction.
	ErrCancelled = errors.New("transaction cancelled")
	// ErrStatus indicates the module refused the command.
	ErrStatus = errors.New("module reported failure")
	// ErrMalformedResponse indicates a confirmation payload that is too short.
	ErrMalformedResponse = errors.New("malformed confirmation payload")
	// ErrClosed is returned by a transport after Close.
	ErrClosed = errors.New("transport closed")
)

// TransportError wraps an I/O failure of the underlying byte link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MismatchError is the result of a transaction answered by the wrong
// confirmation. It usually means host and module lost sync or run
// different firmware versions.
type MismatchError struct {
	Command  string
	Expected frame.Opcode
	Got      frame.Opcode
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: expected confirmation %s, got %s", e.Command, e.Expected, e.Got)
}

func (e *MismatchError) Unwrap() error {
	return ErrMismatch
}

// StatusError carries the status byte of a refused command.
type StatusError struct {
	Command string
	Code    byte
}

func (e *StatusError) Error() string {
	if e.Command == Telesto.Name(ReqSendData) || e.Command == Telesto.Name(ReqSendDataEx) {
		return fmt.Sprintf("%s: %s", e.Command, SendDataStatus(e.Code))
	}
	return fmt.Sprintf("%s: status 0x%02X", e.Command, e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}
