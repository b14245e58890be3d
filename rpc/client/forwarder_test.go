package client

import (
	"bufio"
	"encoding/json"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/ValentinKolb/uBridge/rpc/transport/tcp"
	"github.com/stretchr/testify/require"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// stubService answers every request line with reply(request) and counts connections
type stubService struct {
	listener    net.Listener
	connections atomic.Int32
}

func newStubService(t *testing.T, reply func(req common.IPCRequest) string) *stubService {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &stubService{listener: l}
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			s.connections.Add(1)
			go func(conn net.Conn) {
				defer conn.Close()
				r := bufio.NewReader(conn)
				for {
					line, err := r.ReadBytes('\n')
					if err != nil {
						return
					}
					var req common.IPCRequest
					if err := json.Unmarshal(line, &req); err != nil {
						return
					}
					if _, err := conn.Write([]byte(reply(req) + "\n")); err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	return s
}

func (s *stubService) endpoint() string {
	return s.listener.Addr().String()
}

func newTestForwarder(endpoint string) *Forwarder {
	config := common.ClientConfig{
		Transport:     common.TransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1}},
		TimeoutSecond: 2,
	}
	conn := NewConnection(tcp.NewTCPLineClientTransport(), config, NewReconnectPolicy(20*time.Millisecond, 0))
	return NewForwarder(conn, serializer.NewJSONSerializer())
}

func echoReply(req common.IPCRequest) string {
	return `{"ok":true,"replyHex":"` + req.Hex + `","replyDwData":0}`
}

func TestForward_Echo(t *testing.T) {
	svc := newStubService(t, echoReply)
	fwd := newTestForwarder(svc.endpoint())
	defer fwd.Connection().Close()

	block := []byte{0x02, 0, 0, 0, 0x60, 0x05, 0, 0, 0xAB, 0xCD, 0, 0, 0, 0}
	reply, err := fwd.Forward(block, 0)
	require.NoError(t, err)
	require.Equal(t, block, reply)
	require.Equal(t, Connected, fwd.Connection().State())

	// the connection is reused
	_, err = fwd.Forward(block, 0)
	require.NoError(t, err)
	require.Equal(t, int32(1), svc.connections.Load())
}

func TestForward_RequestLine(t *testing.T) {
	seen := make(chan common.IPCRequest, 1)
	svc := newStubService(t, func(req common.IPCRequest) string {
		seen <- req
		return echoReply(req)
	})
	fwd := newTestForwarder(svc.endpoint())
	defer fwd.Connection().Close()

	_, err := fwd.Forward([]byte{0xde, 0xad}, 0x1234)
	require.NoError(t, err)

	req := <-seen
	require.Equal(t, common.IPCRequest{Cmd: "ipc", DwData: 0x1234, CbData: 2, Hex: "DEAD"}, req)
}

func TestForward_MalformedReplies(t *testing.T) {
	replies := map[string]string{
		"no success marker": `{"error":"offset not supported"}`,
		"explicit failure":  `{"ok":false,"error":"offset not supported"}`,
		"no replyHex":       `{"ok":true}`,
		"odd length hex":    `{"ok":true,"replyHex":"ABC"}`,
		"non hex payload":   `{"ok":true,"replyHex":"ZZ"}`,
		"not json":          `internal server error`,
	}

	for name, replyLine := range replies {
		t.Run(name, func(t *testing.T) {
			svc := newStubService(t, func(common.IPCRequest) string { return replyLine })
			fwd := newTestForwarder(svc.endpoint())
			defer fwd.Connection().Close()

			_, err := fwd.Forward([]byte{0, 0, 0, 0}, 1)
			require.ErrorIs(t, err, common.ErrTransport)

			// the connection is closed and a reconnect is scheduled
			require.Equal(t, Disconnected, fwd.Connection().State())
			require.NotNil(t, fwd.Connection().TimerC())
		})
	}
}

func TestForward_ExtraReplyLineNeverAnswersNextRequest(t *testing.T) {
	var calls atomic.Int32
	svc := newStubService(t, func(req common.IPCRequest) string {
		if calls.Add(1) == 1 {
			// a second line follows the first reply
			return echoReply(req) + "\n" + `{"ok":true,"replyHex":"` + strings.Repeat("FF", int(req.CbData)) + `"}`
		}
		return echoReply(req)
	})
	fwd := newTestForwarder(svc.endpoint())
	defer fwd.Connection().Close()

	_, err := fwd.Forward([]byte{1, 1, 1, 1}, 0)
	require.ErrorIs(t, err, common.ErrTransport)
	require.Equal(t, Disconnected, fwd.Connection().State())

	// the next forward gets its own reply on a fresh connection
	reply, err := fwd.Forward([]byte{9, 9, 9, 9}, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 9, 9, 9}, reply)
	require.Equal(t, int32(2), svc.connections.Load())
}

func TestForward_ReconnectsAfterFailure(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	svc := newStubService(t, func(req common.IPCRequest) string {
		if fail.Load() {
			return `{"ok":false,"error":"not ready"}`
		}
		return echoReply(req)
	})
	fwd := newTestForwarder(svc.endpoint())
	defer fwd.Connection().Close()

	_, err := fwd.Forward([]byte{1, 2, 3, 4}, 0)
	require.Error(t, err)
	fail.Store(false)

	// the timer brings the connection back without any forward
	select {
	case <-fwd.Connection().TimerC():
		fwd.Connection().Tick()
	case <-time.After(time.Second):
		t.Fatal("reconnect timer did not fire")
	}
	require.Equal(t, Connected, fwd.Connection().State())

	reply, err := fwd.Forward([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, reply)
	require.Equal(t, int32(2), svc.connections.Load())
}

func TestForward_ServiceDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	endpoint := l.Addr().String()
	l.Close()

	fwd := newTestForwarder(endpoint)
	defer fwd.Connection().Close()

	_, err = fwd.Forward([]byte{0, 0, 0, 0}, 0)
	require.ErrorIs(t, err, common.ErrTransport)
	require.Equal(t, Disconnected, fwd.Connection().State())
	require.NotNil(t, fwd.Connection().TimerC())
}
