package mqtt

import "errors"

// ErrNotConnected is returned when attempting to perform an operation on a client that is not connected to the broker.
var ErrNotConnected = errors.New("client is not connected to broker")

// ErrInvalidCommand is returned for a send request that does not carry a request opcode.
var ErrInvalidCommand = errors.New("invalid command envelope")
