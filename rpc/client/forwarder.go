package client

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("forwarder")

// Forwarder sends blocks to the answering service and returns the answered bytes.
// It never writes into the block it forwards.
type Forwarder struct {
	conn       *Connection
	serializer serializer.ILineSerializer
}

// NewForwarder creates a forwarder on top of a connection
func NewForwarder(conn *Connection, serializer serializer.ILineSerializer) *Forwarder {
	return &Forwarder{
		conn:       conn,
		serializer: serializer,
	}
}

// Forward sends block with its source tag and returns the decoded reply payload.
// Every failure past encoding closes the connection and arms the reconnect timer.
// The caller has to check the reply length against the block length.
func (f *Forwarder) Forward(block []byte, tag uint32) ([]byte, error) {
	// Serialize the request
	req := common.NewIPCRequest(block, tag)
	line, err := f.serializer.EncodeRequest(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// Send the request, the connection is established on demand
	respLine, err := f.conn.RoundTrip(line)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	reply, err := f.serializer.DecodeReply(respLine)
	if err != nil {
		return nil, f.conn.Fail(fmt.Errorf("%w: malformed reply line: %v", common.ErrTransport, err))
	}

	// Check for the explicit success marker
	if !reply.Ok {
		msg := reply.Error
		if msg == "" {
			msg = string(respLine)
		}
		Logger.Warningf("answering service rejected request (tag 0x%X, %d bytes): %s", tag, len(block), msg)
		return nil, f.conn.Fail(fmt.Errorf("%w: answering service error: %s", common.ErrTransport, msg))
	}

	if reply.ReplyHex == nil {
		return nil, f.conn.Fail(fmt.Errorf("%w: success reply without replyHex", common.ErrTransport))
	}

	data, err := common.DecodeHex(*reply.ReplyHex)
	if err != nil {
		return nil, f.conn.Fail(fmt.Errorf("%w: %v", common.ErrTransport, err))
	}

	if reply.ReplyDwData != nil && *reply.ReplyDwData != tag {
		Logger.Debugf("reply tag 0x%X differs from request tag 0x%X", *reply.ReplyDwData, tag)
	}
	return data, nil
}

// Connection returns the underlying connection
func (f *Forwarder) Connection() *Connection {
	return f.conn
}
