package serializer

import (
	"encoding/json"
	"github.com/ValentinKolb/uBridge/rpc/common"
)

// NewJSONSerializer creates a new serializer using strict json encoding
func NewJSONSerializer() ILineSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the ILineSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ILineSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) EncodeRequest(req *common.IPCRequest) ([]byte, error) {
	return json.Marshal(req)
}

func (j jsonSerializerImpl) DecodeRequest(line []byte) (*common.IPCRequest, error) {
	req := &common.IPCRequest{}
	if err := json.Unmarshal(line, req); err != nil {
		return nil, err
	}
	return req, nil
}

func (j jsonSerializerImpl) EncodeReply(reply *common.IPCReply) ([]byte, error) {
	return json.Marshal(reply)
}

func (j jsonSerializerImpl) DecodeReply(line []byte) (*common.IPCReply, error) {
	reply := &common.IPCReply{}
	if err := json.Unmarshal(line, reply); err != nil {
		return nil, err
	}
	return reply, nil
}
