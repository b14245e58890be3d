package serializer

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
)

// ILineSerializer is the interface for all line protocol serializers.
// Encoded lines never contain the trailing newline, the transport adds it.
type ILineSerializer interface {
	// EncodeRequest serializes a request into a single line
	EncodeRequest(req *common.IPCRequest) ([]byte, error)
	// DecodeRequest parses a request line
	DecodeRequest(line []byte) (*common.IPCRequest, error)
	// EncodeReply serializes a reply into a single line
	EncodeReply(reply *common.IPCReply) ([]byte, error)
	// DecodeReply parses a reply line
	DecodeReply(line []byte) (*common.IPCReply, error)
}

// New returns the serializer registered under name ("json" or "gjson")
func New(name string) (ILineSerializer, error) {
	switch name {
	case "json", "":
		return NewJSONSerializer(), nil
	case "gjson":
		return NewGJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q: must be one of json, gjson", name)
	}
}
