package server

import (
	"fmt"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"net"
)

var hostLogger = logger.GetLogger("bridge")

// NewHostServer creates the inbound host channel. Every frame is translated into a
// call on the bridge and the result is written back as reply frame.
func NewHostServer(config common.ServerConfig, transport transport.IFrameServerTransport, bridge IBridge) *HostServer {
	return &HostServer{
		config:    config,
		transport: transport,
		bridge:    bridge,
	}
}

// HostServer accepts notifications of the host shim
type HostServer struct {
	config    common.ServerConfig
	transport transport.IFrameServerTransport
	bridge    IBridge
}

// Serve registers the handler and starts listening, it returns once the listener is ready
func (s *HostServer) Serve() error {
	s.transport.RegisterHandler(s.handle)
	return s.transport.Listen(s.config)
}

// Addr returns the listening address
func (s *HostServer) Addr() net.Addr {
	return s.transport.Addr()
}

// Close stops accepting notifications
func (s *HostServer) Close() error {
	return s.transport.Close()
}

// handle maps one request frame onto the bridge
func (s *HostServer) handle(req common.Frame) common.Frame {
	switch req.Kind {
	case common.NotifyEmbedded:
		if req.Arg > 0xFFFFFFFF {
			return common.NewFailureFrame(fmt.Errorf("source tag 0x%X exceeds 32 bits", req.Arg))
		}
		block, err := s.bridge.Embedded(uint32(req.Arg), req.Payload)
		if err != nil {
			return s.failure(req, err)
		}
		return common.NewSuccessFrame(block)

	case common.NotifyReferenced:
		if req.Arg > 0xFFFFFFFF {
			return common.NewFailureFrame(fmt.Errorf("region identifier 0x%X exceeds 32 bits", req.Arg))
		}
		offset, err := req.Offset()
		if err != nil {
			return common.NewFailureFrame(err)
		}
		if err := s.bridge.Referenced(uint32(req.Arg), offset); err != nil {
			return s.failure(req, err)
		}
		return common.NewSuccessFrame(nil)

	case common.NotifyRestart:
		if err := s.bridge.Restart(string(req.Payload)); err != nil {
			return s.failure(req, err)
		}
		return common.NewSuccessFrame(nil)

	case common.NotifyStatus:
		status, err := s.bridge.Status()
		if err != nil {
			return s.failure(req, err)
		}
		return common.NewSuccessFrame([]byte(status))

	case common.NotifyShutdown:
		if err := s.bridge.Shutdown(); err != nil {
			return s.failure(req, err)
		}
		return common.NewSuccessFrame(nil)

	default:
		return common.NewFailureFrame(fmt.Errorf("unsupported notification %s", req.Kind))
	}
}

func (s *HostServer) failure(req common.Frame, err error) common.Frame {
	hostLogger.Debugf("%s notification failed: %v", req.Kind, err)
	return common.NewFailureFrame(err)
}
