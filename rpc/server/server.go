package server

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"os/signal"
	"runtime"
	"syscall"
)

var Logger = logger.GetLogger("answer")

func errUnknownAdapter(name string) error {
	return fmt.Errorf("unknown adapter %q: must be one of echo, memory", name)
}

// NewAnsweringServer creates the development answering service.
// It takes a config, transport, serializer and adapter as parameters
//
// Usage:
//
//	s := server.NewAnsweringServer(
//		*config,
//		tcp.NewTCPLineServerTransport(),
//		serializer.NewJSONSerializer(),
//		server.NewEchoAdapter(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewAnsweringServer(
	config common.AnsweringConfig,
	transport transport.ILineServerTransport,
	serializer serializer.ILineSerializer,
	adapter IAnsweringAdapter,
) *AnsweringServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &AnsweringServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		adapter:    adapter,
	}
}

// AnsweringServer answers request lines with the configured adapter
type AnsweringServer struct {
	config     common.AnsweringConfig
	transport  transport.ILineServerTransport
	serializer serializer.ILineSerializer
	adapter    IAnsweringAdapter
}

// Serve registers the handler and starts listening, it returns once the listener is ready
func (s *AnsweringServer) Serve() error {
	Logger.Infof("Created answering service")
	Logger.Infof(s.config.String())

	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config.Server)
}

// Addr returns the listening address
func (s *AnsweringServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Close stops the server
func (s *AnsweringServer) Close() error {
	return s.transport.Close()
}

// handle answers one request line
func (s *AnsweringServer) handle(line []byte) []byte {
	reply := s.answer(line)

	// Return result
	val, err := s.serializer.EncodeReply(reply)
	if err != nil {
		Logger.Errorf("failed to serialize reply: %v", err)
		val, _ = s.serializer.EncodeReply(common.NewErrorReply(fmt.Sprintf("failed to serialize reply: %s", err)))
	}
	return val
}

func (s *AnsweringServer) answer(line []byte) *common.IPCReply {
	// Decode the request
	req, err := s.serializer.DecodeRequest(line)
	if err != nil {
		return common.NewErrorReply(fmt.Sprintf("failed to deserialize request: %s", err))
	}

	if req.Cmd != common.IPCCommand {
		return common.NewErrorReply(fmt.Sprintf("unknown cmd %q", req.Cmd))
	}

	block, err := common.DecodeHex(req.Hex)
	if err != nil {
		return common.NewErrorReply(err.Error())
	}

	// the hex payload is authoritative
	if int(req.CbData) != len(block) {
		Logger.Warningf("cbData %d does not match payload of %d bytes (tag 0x%X)", req.CbData, len(block), req.DwData)
	}

	// Let the adapter handle the request
	answer, err := s.adapter.Answer(block, req.DwData)
	if err != nil {
		Logger.Debugf("adapter failed for tag 0x%X: %v", req.DwData, err)
		return common.NewErrorReply(err.Error())
	}

	Logger.Debugf("answered %d bytes for tag 0x%X", len(answer), req.DwData)
	return common.NewSuccessReply(answer, req.DwData)
}
