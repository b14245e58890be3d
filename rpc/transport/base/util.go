package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"io"
	"net"
	"os"
)

const (
	frameHeaderSize = 20
	readChunkSize   = 4096
)

// --------------------------------------------------------------------------
// Host channel frames
// --------------------------------------------------------------------------

// writeFrame writes a frame to the connection with the format:
// - 8 bytes: kind (uint64, big endian)
// - 8 bytes: argument (uint64, big endian)
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
func writeFrame(w io.Writer, frame common.Frame) error {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], uint64(frame.Kind))
	binary.BigEndian.PutUint64(header[8:16], frame.Arg)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(frame.Payload)))

	b := net.Buffers{header, frame.Payload}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads one frame. Payloads larger than maxPayload are rejected before
// anything is allocated for them.
func readFrame(r io.Reader, maxPayload int) (common.Frame, error) {
	header := make([]byte, frameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return common.Frame{}, err
	}

	frame := common.Frame{
		Kind: common.FrameKind(binary.BigEndian.Uint64(header[:8])),
		Arg:  binary.BigEndian.Uint64(header[8:16]),
	}
	contentLength := binary.BigEndian.Uint32(header[16:20])

	if maxPayload > 0 && uint64(contentLength) > uint64(maxPayload) {
		return common.Frame{}, fmt.Errorf("frame payload of %d bytes exceeds limit of %d", contentLength, maxPayload)
	}

	// If no data, return empty slice
	if contentLength == 0 {
		frame.Payload = []byte{}
		return frame, nil
	}

	frame.Payload = make([]byte, contentLength)
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		return common.Frame{}, err
	}
	return frame, nil
}

// --------------------------------------------------------------------------
// Line protocol
// --------------------------------------------------------------------------

// lineReader accumulates bytes across reads until a newline shows up. Bytes read
// past the newline are kept for the next line.
type lineReader struct {
	r       io.Reader
	limit   int
	pending []byte
	chunk   []byte
}

func newLineReader(r io.Reader, limit int) *lineReader {
	return &lineReader{
		r:     r,
		limit: limit,
		chunk: make([]byte, readChunkSize),
	}
}

// ReadLine returns the next line without the newline and an optional trailing '\r'
func (l *lineReader) ReadLine() ([]byte, error) {
	scanned := 0
	for {
		// only scan the bytes that were not scanned yet
		if idx := bytes.IndexByte(l.pending[scanned:], '\n'); idx >= 0 {
			end := scanned + idx
			line := bytes.TrimSuffix(l.pending[:end], []byte{'\r'})
			line = bytes.Clone(line)

			// keep what follows the newline for the next call
			rest := l.pending[end+1:]
			l.pending = append(l.pending[:0], rest...)
			return line, nil
		}
		scanned = len(l.pending)

		if l.limit > 0 && len(l.pending) > l.limit {
			return nil, fmt.Errorf("line exceeds limit of %d bytes", l.limit)
		}

		n, err := l.r.Read(l.chunk)
		l.pending = append(l.pending, l.chunk[:n]...)
		if err != nil {
			// a complete line may have arrived together with the error
			if n > 0 && bytes.IndexByte(l.chunk[:n], '\n') >= 0 {
				continue
			}
			if errors.Is(err, io.EOF) && len(l.pending) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// Buffered returns the number of bytes read past the last returned line
func (l *lineReader) Buffered() int {
	return len(l.pending)
}

// writeAll writes buf completely, looping on partial writes
func writeAll(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

// writeLine writes line followed by a newline
func writeLine(w io.Writer, line []byte) error {
	out := make([]byte, 0, len(line)+1)
	out = append(out, line...)
	out = append(out, '\n')
	return writeAll(w, out)
}

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

// classify wraps err into the transport taxonomy
func classify(op string, err error) error {
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", common.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", common.ErrTransport, op, err)
}
