package serializer

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NewGJSONSerializer creates a lenient serializer. Lines are scanned field by field
// with gjson and built with sjson. A reply line that is not JSON at all is not an
// error: it decodes into a failed reply carrying the raw line as error text.
func NewGJSONSerializer() ILineSerializer {
	return &gjsonSerializerImpl{}
}

// gjsonSerializerImpl implements the ILineSerializer interface using gjson/sjson
type gjsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ILineSerializer)
// --------------------------------------------------------------------------

func (g gjsonSerializerImpl) EncodeRequest(req *common.IPCRequest) ([]byte, error) {
	line := []byte("{}")
	var err error

	// the field order is the wire order
	if line, err = sjson.SetBytes(line, "cmd", req.Cmd); err != nil {
		return nil, err
	}
	if line, err = sjson.SetBytes(line, "dwData", req.DwData); err != nil {
		return nil, err
	}
	if line, err = sjson.SetBytes(line, "cbData", req.CbData); err != nil {
		return nil, err
	}
	if line, err = sjson.SetBytes(line, "hex", req.Hex); err != nil {
		return nil, err
	}
	return line, nil
}

func (g gjsonSerializerImpl) DecodeRequest(line []byte) (*common.IPCRequest, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("request line is not valid json")
	}

	fields := gjson.GetManyBytes(line, "cmd", "dwData", "cbData", "hex")
	for i, name := range []string{"cmd", "dwData", "cbData", "hex"} {
		if !fields[i].Exists() {
			return nil, fmt.Errorf("request line lacks field %q", name)
		}
	}

	return &common.IPCRequest{
		Cmd:    fields[0].String(),
		DwData: uint32(fields[1].Uint()),
		CbData: uint32(fields[2].Uint()),
		Hex:    fields[3].String(),
	}, nil
}

func (g gjsonSerializerImpl) EncodeReply(reply *common.IPCReply) ([]byte, error) {
	line := []byte("{}")
	var err error

	if line, err = sjson.SetBytes(line, "ok", reply.Ok); err != nil {
		return nil, err
	}
	if reply.ReplyHex != nil {
		if line, err = sjson.SetBytes(line, "replyHex", *reply.ReplyHex); err != nil {
			return nil, err
		}
	}
	if reply.ReplyDwData != nil {
		if line, err = sjson.SetBytes(line, "replyDwData", *reply.ReplyDwData); err != nil {
			return nil, err
		}
	}
	if reply.Error != "" {
		if line, err = sjson.SetBytes(line, "error", reply.Error); err != nil {
			return nil, err
		}
	}
	return line, nil
}

func (g gjsonSerializerImpl) DecodeReply(line []byte) (*common.IPCReply, error) {
	// Case not json: the whole line is the error message
	if !gjson.ValidBytes(line) {
		return common.NewErrorReply(string(line)), nil
	}

	fields := gjson.GetManyBytes(line, "ok", "replyHex", "replyDwData", "error")
	reply := &common.IPCReply{
		Ok:    fields[0].Type == gjson.True,
		Error: fields[3].String(),
	}

	if fields[1].Type == gjson.String {
		replyHex := fields[1].String()
		reply.ReplyHex = &replyHex
	}
	if fields[2].Type == gjson.Number {
		dwData := uint32(fields[2].Uint())
		reply.ReplyDwData = &dwData
	}

	// keep the raw line for failures without an error text
	if !reply.Ok && reply.Error == "" {
		reply.Error = string(line)
	}
	return reply, nil
}
