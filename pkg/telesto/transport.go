package telesto

// Transport is the byte link to the radio module.
type Transport interface {
	// Write sends all of p or fails.
	Write(p []byte) error
	// ReadAvailable returns the bytes received since the previous call
	// without blocking. It returns an empty slice when nothing arrived.
	ReadAvailable() ([]byte, error)
}

// Notifier is implemented by transports that can signal incoming bytes, so
// Driver.Run does not have to wait for the next poll.
type Notifier interface {
	Ready() <-chan struct{}
}
