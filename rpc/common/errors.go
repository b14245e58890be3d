package common

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrTransport covers connect, send and receive failures as well as malformed reply lines.
	// The connection is always dropped after such an error.
	ErrTransport = errors.New("transport failure")

	// ErrTimeout is a transport failure caused by an expired send or receive deadline
	ErrTimeout = fmt.Errorf("%w: deadline exceeded", ErrTransport)
)

// IsExpectedCloseError reports whether err is the normal result of a peer closing
// its connection. Servers log these at debug level only.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
