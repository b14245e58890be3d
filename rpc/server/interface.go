package server

// IAnsweringAdapter is the interface for all answering service adapters.
// It answers one forwarded block.
type IAnsweringAdapter interface {
	// Answer returns the answered block for block and its source tag.
	// The answer must have the same length as block.
	Answer(block []byte, tag uint32) ([]byte, error)
}

// IBridge is the bridge side of the host channel. Every call is processed by the
// bridge loop and waits for its result.
type IBridge interface {
	// Embedded forwards block and returns it updated in place
	Embedded(tag uint32, block []byte) ([]byte, error)
	// Referenced forwards the block at offset inside the region registered under id
	Referenced(id uint32, offset int64) error
	// Restart reconnects, optionally to a new host:port
	Restart(endpoint string) error
	// Status returns a human readable status line
	Status() (string, error)
	// Shutdown stops the bridge loop
	Shutdown() error
}

// NewAdapter returns the adapter registered under name ("echo" or "memory")
func NewAdapter(name string) (IAnsweringAdapter, error) {
	switch name {
	case "echo", "":
		return NewEchoAdapter(), nil
	case "memory":
		return NewMemoryAdapter(0), nil
	default:
		return nil, errUnknownAdapter(name)
	}
}
