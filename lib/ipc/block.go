package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrFraming is returned when a block cannot be decoded into terminated records
	ErrFraming = errors.New("ipc: undecodable record block")

	// ErrTruncated is returned when a known record's header or payload exceeds the block
	ErrTruncated = fmt.Errorf("%w: record truncated", ErrFraming)
	// ErrUnknownTag is returned when a record starts with a tag that is not known
	ErrUnknownTag = fmt.Errorf("%w: unknown record tag", ErrFraming)
	// ErrNoTerminator is returned when the block ends before a terminator
	ErrNoTerminator = fmt.Errorf("%w: no terminator", ErrFraming)
)

// --------------------------------------------------------------------------
// Record Kinds
// --------------------------------------------------------------------------

// RecordKind is the leading tag of a legacy record
type RecordKind uint32

const (
	KindTerminator RecordKind = 0 // Ends the block
	KindRead       RecordKind = 1 // Read state data request
	KindWrite      RecordKind = 2 // Write state data request
)

const (
	// TagSize is the size of the record tag and of the terminator
	TagSize = 4
	// ReadHeaderSize is the fixed header of a read record (tag, offset, length, destination tag)
	ReadHeaderSize = 16
	// WriteHeaderSize is the fixed header of a write record (tag, offset, length)
	WriteHeaderSize = 12
)

// String returns the name of the record kind
func (k RecordKind) String() string {
	switch k {
	case KindTerminator:
		return "terminator"
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	default:
		return fmt.Sprintf("unknown(0x%08X)", uint32(k))
	}
}

// headerSize returns the fixed header size of the kind, false if the kind is not known
func (k RecordKind) headerSize() (int, bool) {
	switch k {
	case KindTerminator:
		return TagSize, true
	case KindRead:
		return ReadHeaderSize, true
	case KindWrite:
		return WriteHeaderSize, true
	default:
		return 0, false
	}
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Record is one decoded record of a block
type Record interface {
	// Kind returns the tag of the record
	Kind() RecordKind
	// Size returns the number of bytes the record occupies, header included
	Size() int
}

// Terminator ends a block
type Terminator struct{}

// ReadRequest asks the answering side to fill Payload with Length bytes read at Offset
type ReadRequest struct {
	Offset         uint32
	Length         uint32
	DestinationTag uint32
	// Payload is a view into the block, it is not copied
	Payload []byte
}

// WriteRequest carries Length bytes to be written at Offset
type WriteRequest struct {
	Offset uint32
	Length uint32
	// Payload is a view into the block, it is not copied
	Payload []byte
}

func (Terminator) Kind() RecordKind   { return KindTerminator }
func (Terminator) Size() int          { return TagSize }
func (ReadRequest) Kind() RecordKind  { return KindRead }
func (r ReadRequest) Size() int       { return ReadHeaderSize + int(r.Length) }
func (WriteRequest) Kind() RecordKind { return KindWrite }
func (w WriteRequest) Size() int      { return WriteHeaderSize + int(w.Length) }

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// WalkFunc is called for every decoded record with the position of its tag.
// Returning an error stops the walk and the error is returned by Walk.
type WalkFunc func(pos int, rec Record) error

// Walk decodes the records of block in order, the terminator included, and
// returns the number of bytes through the terminator. The scan never writes
// to block. fn may be nil.
func Walk(block []byte, fn WalkFunc) (int, error) {
	pos := 0
	for {
		rec, err := decodeRecord(block, pos)
		if err != nil {
			return 0, err
		}

		if fn != nil {
			if err := fn(pos, rec); err != nil {
				return 0, err
			}
		}

		pos += rec.Size()
		if rec.Kind() == KindTerminator {
			return pos, nil
		}
	}
}

// BlockLength returns the number of bytes that make up one terminated record
// sequence at the start of block. It fails with ErrTruncated if a header or payload
// exceeds the available bytes, with ErrUnknownTag if a tag is unknown and with
// ErrNoTerminator if the block ends first. All of them wrap ErrFraming.
func BlockLength(block []byte) (int, error) {
	return Walk(block, nil)
}

// decodeRecord decodes the record whose tag starts at pos
func decodeRecord(block []byte, pos int) (Record, error) {
	avail := len(block) - pos
	if avail < TagSize {
		return nil, fmt.Errorf("%w before end of block (pos %d)", ErrNoTerminator, pos)
	}

	kind := RecordKind(binary.LittleEndian.Uint32(block[pos:]))
	header, ok := kind.headerSize()
	if !ok {
		return nil, fmt.Errorf("%w %s at pos %d", ErrUnknownTag, kind, pos)
	}
	if avail < header {
		return nil, fmt.Errorf("%w: %s header at pos %d (%d of %d bytes)", ErrTruncated, kind, pos, avail, header)
	}

	// payload bounds are checked in uint64 so a huge length can not wrap
	payloadLen := func() (int, error) {
		length := binary.LittleEndian.Uint32(block[pos+8:])
		if uint64(length) > uint64(avail-header) {
			return 0, fmt.Errorf("%w: %s payload of %d bytes exceeds the %d available at pos %d",
				ErrTruncated, kind, length, avail-header, pos)
		}
		return int(length), nil
	}

	switch kind {
	case KindTerminator:
		return Terminator{}, nil
	case KindRead:
		n, err := payloadLen()
		if err != nil {
			return nil, err
		}
		start := pos + ReadHeaderSize
		return ReadRequest{
			Offset:         binary.LittleEndian.Uint32(block[pos+4:]),
			Length:         uint32(n),
			DestinationTag: binary.LittleEndian.Uint32(block[pos+12:]),
			Payload:        block[start : start+n : start+n],
		}, nil
	case KindWrite:
		n, err := payloadLen()
		if err != nil {
			return nil, err
		}
		start := pos + WriteHeaderSize
		return WriteRequest{
			Offset:  binary.LittleEndian.Uint32(block[pos+4:]),
			Length:  uint32(n),
			Payload: block[start : start+n : start+n],
		}, nil
	default:
		// unreachable, headerSize rejects unknown kinds
		return nil, fmt.Errorf("%w %s at pos %d", ErrUnknownTag, kind, pos)
	}
}

// --------------------------------------------------------------------------
// Builders
// --------------------------------------------------------------------------

// AppendRead appends a read record for length bytes at offset. The payload is
// zero filled, the answering side overwrites it.
func AppendRead(dst []byte, offset, length, destinationTag uint32) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(KindRead))
	dst = binary.LittleEndian.AppendUint32(dst, offset)
	dst = binary.LittleEndian.AppendUint32(dst, length)
	dst = binary.LittleEndian.AppendUint32(dst, destinationTag)
	return append(dst, make([]byte, length)...)
}

// AppendWrite appends a write record carrying payload for offset
func AppendWrite(dst []byte, offset uint32, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(KindWrite))
	dst = binary.LittleEndian.AppendUint32(dst, offset)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// AppendTerminator appends the 4-byte zero terminator
func AppendTerminator(dst []byte) []byte {
	return binary.LittleEndian.AppendUint32(dst, uint32(KindTerminator))
}
