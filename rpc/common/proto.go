package common

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Line Protocol (bridge <-> answering service)
// --------------------------------------------------------------------------

// IPCCommand is the fixed command marker of every forwarded request
const IPCCommand = "ipc"

// IPCRequest is one request line sent to the answering service.
// The field order is the wire order.
type IPCRequest struct {
	Cmd    string `json:"cmd"`
	DwData uint32 `json:"dwData"` // opaque source tag
	CbData uint32 `json:"cbData"` // declared block length
	Hex    string `json:"hex"`    // uppercase hex of the block
}

// IPCReply is one reply line of the answering service.
// ReplyHex is nil when the field is missing so that a malformed success reply
// can be told apart from an empty block.
type IPCReply struct {
	Ok          bool    `json:"ok"`
	ReplyHex    *string `json:"replyHex,omitempty"`
	ReplyDwData *uint32 `json:"replyDwData,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// NewIPCRequest creates the request for a block and its source tag
func NewIPCRequest(block []byte, tag uint32) *IPCRequest {
	return &IPCRequest{
		Cmd:    IPCCommand,
		DwData: tag,
		CbData: uint32(len(block)),
		Hex:    EncodeHex(block),
	}
}

// NewSuccessReply creates a reply carrying the answered block
func NewSuccessReply(block []byte, tag uint32) *IPCReply {
	replyHex := EncodeHex(block)
	return &IPCReply{
		Ok:          true,
		ReplyHex:    &replyHex,
		ReplyDwData: &tag,
	}
}

// NewErrorReply creates a failure reply
func NewErrorReply(err string) *IPCReply {
	return &IPCReply{
		Ok:    false,
		Error: err,
	}
}

// EncodeHex encodes b as even length uppercase hex
func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// DecodeHex decodes a hex string of either case. Odd length strings and non hex
// characters are rejected.
func DecodeHex(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload: %w", err)
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Host Channel Frames (host shim <-> bridge)
// --------------------------------------------------------------------------

// FrameKind identifies a host channel frame
type FrameKind uint64

// Request kinds sent by the host shim
const (
	NotifyEmbedded FrameKind = iota + 1
	NotifyReferenced
	NotifyRestart
	NotifyStatus
	NotifyShutdown
)

// Reply kinds, following the legacy convention of 0 for failure and 1 for success
const (
	ReplyFailure FrameKind = 0
	ReplySuccess FrameKind = 1
)

// String returns the name of a request kind
func (k FrameKind) String() string {
	switch k {
	case NotifyEmbedded:
		return "embedded"
	case NotifyReferenced:
		return "referenced"
	case NotifyRestart:
		return "restart"
	case NotifyStatus:
		return "status"
	case NotifyShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(k))
	}
}

// Frame is one message on the host channel. Which fields are used depends on the kind.
type Frame struct {
	Kind    FrameKind
	Arg     uint64 // embedded: source tag, referenced: region identifier
	Payload []byte // embedded: block, referenced: offset, restart: host:port
}

// NewEmbeddedFrame creates an embedded request frame
func NewEmbeddedFrame(tag uint32, block []byte) Frame {
	return Frame{Kind: NotifyEmbedded, Arg: uint64(tag), Payload: block}
}

// NewReferencedFrame creates a referenced request frame
func NewReferencedFrame(id uint32, offset int64) Frame {
	return Frame{
		Kind:    NotifyReferenced,
		Arg:     uint64(id),
		Payload: binary.BigEndian.AppendUint64(nil, uint64(offset)),
	}
}

// NewRestartFrame creates a restart request frame, an empty endpoint keeps the current one
func NewRestartFrame(endpoint string) Frame {
	return Frame{Kind: NotifyRestart, Payload: []byte(endpoint)}
}

// NewStatusFrame creates a status request frame
func NewStatusFrame() Frame {
	return Frame{Kind: NotifyStatus}
}

// NewShutdownFrame creates a shutdown request frame
func NewShutdownFrame() Frame {
	return Frame{Kind: NotifyShutdown}
}

// NewSuccessFrame creates a success reply
func NewSuccessFrame(payload []byte) Frame {
	return Frame{Kind: ReplySuccess, Payload: payload}
}

// NewFailureFrame creates a failure reply carrying the error text
func NewFailureFrame(err error) Frame {
	return Frame{Kind: ReplyFailure, Payload: []byte(err.Error())}
}

// Offset decodes the signed offset of a referenced request frame
func (f Frame) Offset() (int64, error) {
	if len(f.Payload) != 8 {
		return 0, fmt.Errorf("referenced frame payload is %d bytes, expected 8", len(f.Payload))
	}
	return int64(binary.BigEndian.Uint64(f.Payload)), nil
}

// Ok reports whether a reply frame signals success
func (f Frame) Ok() bool {
	return f.Kind == ReplySuccess
}
