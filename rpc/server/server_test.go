package server

import (
	"bufio"
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/rpc/client"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/ValentinKolb/uBridge/rpc/transport/tcp"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

func startAnswering(t *testing.T, adapter IAnsweringAdapter, ser serializer.ILineSerializer) *AnsweringServer {
	t.Helper()
	s := NewAnsweringServer(
		common.AnsweringConfig{Server: common.ServerConfig{Endpoint: "127.0.0.1:0", TimeoutSecond: 2}},
		tcp.NewTCPLineServerTransport(),
		ser,
		adapter,
	)
	require.NoError(t, s.Serve())
	t.Cleanup(func() { s.Close() })
	return s
}

func newForwarder(endpoint string) *client.Forwarder {
	config := common.ClientConfig{
		Transport:     common.TransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPLingerSec: -1}},
		TimeoutSecond: 2,
	}
	conn := client.NewConnection(tcp.NewTCPLineClientTransport(), config, client.NewReconnectPolicy(time.Second, 0))
	return client.NewForwarder(conn, serializer.NewJSONSerializer())
}

// rawRoundTrip sends one raw line and returns the raw reply line
func rawRoundTrip(t *testing.T, endpoint, line string) string {
	t.Helper()
	conn, err := net.Dial("tcp", endpoint)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return reply[:len(reply)-1]
}

func TestAnsweringServer_Echo(t *testing.T) {
	s := startAnswering(t, NewEchoAdapter(), serializer.NewJSONSerializer())
	fwd := newForwarder(s.Addr().String())
	defer fwd.Connection().Close()

	block := ipc.AppendTerminator(ipc.AppendWrite(nil, 0x0560, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	reply, err := fwd.Forward(block, 42)
	require.NoError(t, err)
	require.Equal(t, block, reply)
}

func TestAnsweringServer_MemoryAdapter(t *testing.T) {
	for name, ser := range map[string]serializer.ILineSerializer{
		"json":  serializer.NewJSONSerializer(),
		"gjson": serializer.NewGJSONSerializer(),
	} {
		t.Run(name, func(t *testing.T) {
			s := startAnswering(t, NewMemoryAdapter(0), ser)
			fwd := newForwarder(s.Addr().String())
			defer fwd.Connection().Close()

			// write 4 bytes at 0x0BC8
			write := ipc.AppendTerminator(ipc.AppendWrite(nil, 0x0BC8, []byte{0xDE, 0xAD, 0xBE, 0xEF}))
			_, err := fwd.Forward(write, 0)
			require.NoError(t, err)

			// read them back together with the 2 bytes before
			read := ipc.AppendTerminator(ipc.AppendRead(nil, 0x0BC6, 6, 0))
			reply, err := fwd.Forward(read, 0)
			require.NoError(t, err)
			require.Len(t, reply, len(read))
			require.Equal(t, []byte{0, 0, 0xDE, 0xAD, 0xBE, 0xEF}, reply[ipc.ReadHeaderSize:ipc.ReadHeaderSize+6])
		})
	}
}

func TestAnsweringServer_Errors(t *testing.T) {
	s := startAnswering(t, NewMemoryAdapter(0x100), serializer.NewJSONSerializer())
	endpoint := s.Addr().String()

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "unknown cmd", line: `{"cmd":"ping","dwData":0,"cbData":0,"hex":""}`, want: `unknown cmd`},
		{name: "bad hex", line: `{"cmd":"ipc","dwData":0,"cbData":1,"hex":"0"}`, want: `invalid hex`},
		{name: "not json", line: `hello`, want: `failed to deserialize`},
		{name: "out of range", line: `{"cmd":"ipc","dwData":0,"cbData":20,"hex":"` +
			common.EncodeHex(ipc.AppendTerminator(ipc.AppendRead(nil, 0x1000, 0, 0))) + `"}`, want: `outside`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply := rawRoundTrip(t, endpoint, tt.line)
			decoded, err := serializer.NewJSONSerializer().DecodeReply([]byte(reply))
			require.NoError(t, err)
			require.False(t, decoded.Ok)
			require.Contains(t, decoded.Error, tt.want)
		})
	}
}

func TestAnsweringServer_CbDataMismatchUsesPayload(t *testing.T) {
	s := startAnswering(t, NewEchoAdapter(), serializer.NewJSONSerializer())
	reply := rawRoundTrip(t, s.Addr().String(), `{"cmd":"ipc","dwData":5,"cbData":99,"hex":"00000000"}`)
	require.Equal(t, `{"ok":true,"replyHex":"00000000","replyDwData":5}`, reply)
}

func TestMemoryAdapter_LeavesTrailingBytes(t *testing.T) {
	block := ipc.AppendTerminator(ipc.AppendRead(nil, 0, 2, 0))
	block = append(block, 0xAA, 0xBB)

	answer, err := NewMemoryAdapter(16).Answer(block, 0)
	require.NoError(t, err)
	require.Len(t, answer, len(block))
	require.Equal(t, []byte{0xAA, 0xBB}, answer[len(answer)-2:])
}

func TestMemoryAdapter_TruncatedRecordFails(t *testing.T) {
	block := ipc.AppendWrite(nil, 0, []byte{1, 2, 3, 4})[:ipc.WriteHeaderSize+2]

	_, err := NewMemoryAdapter(16).Answer(block, 0)
	require.ErrorIs(t, err, ipc.ErrTruncated)
}

func TestMemoryAdapter_UnknownTagStopsWalk(t *testing.T) {
	adapter := NewMemoryAdapter(16)
	block := ipc.AppendWrite(nil, 4, []byte{0xAA, 0xBB})
	block = binary.LittleEndian.AppendUint32(block, 0x99)
	block = ipc.AppendRead(block, 4, 2, 0)

	answer, err := adapter.Answer(block, 0)
	require.NoError(t, err)
	// the record after the unknown tag is left as it came
	require.Equal(t, block, answer)

	// the write before the unknown tag was applied
	read := ipc.AppendTerminator(ipc.AppendRead(nil, 4, 2, 0))
	answer, err = adapter.Answer(read, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, answer[ipc.ReadHeaderSize:ipc.ReadHeaderSize+2])
}

func TestMemoryAdapter_MissingTerminatorAnswersRecords(t *testing.T) {
	adapter := NewMemoryAdapter(16)
	_, err := adapter.Answer(ipc.AppendTerminator(ipc.AppendWrite(nil, 0, []byte{7, 8})), 0)
	require.NoError(t, err)

	// a read record followed by two stray bytes and no terminator
	block := append(ipc.AppendRead(nil, 0, 2, 0), 0xEE, 0xEE)
	answer, err := adapter.Answer(block, 0)
	require.NoError(t, err)
	require.Len(t, answer, len(block))
	require.Equal(t, []byte{7, 8}, answer[ipc.ReadHeaderSize:ipc.ReadHeaderSize+2])
	require.Equal(t, []byte{0xEE, 0xEE}, answer[len(answer)-2:])
}

func TestNewAdapter(t *testing.T) {
	for _, name := range []string{"", "echo", "memory"} {
		a, err := NewAdapter(name)
		require.NoError(t, err)
		require.NotNil(t, a)
	}
	_, err := NewAdapter("simulator")
	require.Error(t, err)
}

// --------------------------------------------------------------------------
// Host channel
// --------------------------------------------------------------------------

type fakeBridge struct {
	embeddedTag uint32
	refID       uint32
	refOffset   int64
	restartTo   string
	shutdown    bool
	err         error
}

func (f *fakeBridge) Embedded(tag uint32, block []byte) ([]byte, error) {
	f.embeddedTag = tag
	if f.err != nil {
		return nil, f.err
	}
	for i := range block {
		block[i] = ^block[i]
	}
	return block, nil
}

func (f *fakeBridge) Referenced(id uint32, offset int64) error {
	f.refID, f.refOffset = id, offset
	return f.err
}

func (f *fakeBridge) Restart(endpoint string) error {
	f.restartTo = endpoint
	return f.err
}

func (f *fakeBridge) Status() (string, error) { return "connected to test", f.err }

func (f *fakeBridge) Shutdown() error {
	f.shutdown = true
	return nil
}

func startHost(t *testing.T, bridge IBridge) string {
	t.Helper()
	s := NewHostServer(common.ServerConfig{Endpoint: "127.0.0.1:0"}, tcp.NewTCPFrameServerTransport(), bridge)
	require.NoError(t, s.Serve())
	t.Cleanup(func() { s.Close() })
	return s.Addr().String()
}

func TestHostServer_Notifications(t *testing.T) {
	bridge := &fakeBridge{}
	endpoint := startHost(t, bridge)

	c := tcp.NewTCPFrameClientTransport()
	require.NoError(t, c.Connect(common.ClientConfig{Transport: common.TransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPLingerSec: -1}}, TimeoutSecond: 2}))
	defer c.Close()

	resp, err := c.Send(common.NewEmbeddedFrame(0xBEEF, []byte{0x00, 0xFF}))
	require.NoError(t, err)
	require.True(t, resp.Ok())
	require.Equal(t, []byte{0xFF, 0x00}, resp.Payload)
	require.Equal(t, uint32(0xBEEF), bridge.embeddedTag)

	resp, err = c.Send(common.NewReferencedFrame(0x1234, 0x20))
	require.NoError(t, err)
	require.True(t, resp.Ok())
	require.Equal(t, uint32(0x1234), bridge.refID)
	require.Equal(t, int64(0x20), bridge.refOffset)

	resp, err = c.Send(common.NewRestartFrame("10.0.0.2:9000"))
	require.NoError(t, err)
	require.True(t, resp.Ok())
	require.Equal(t, "10.0.0.2:9000", bridge.restartTo)

	resp, err = c.Send(common.NewStatusFrame())
	require.NoError(t, err)
	require.Equal(t, "connected to test", string(resp.Payload))

	resp, err = c.Send(common.Frame{Kind: 99})
	require.NoError(t, err)
	require.False(t, resp.Ok())

	resp, err = c.Send(common.NewShutdownFrame())
	require.NoError(t, err)
	require.True(t, resp.Ok())
	require.True(t, bridge.shutdown)
}

func TestHostServer_FailureCarriesError(t *testing.T) {
	bridge := &fakeBridge{err: errors.New("region 0x1234 not found")}
	endpoint := startHost(t, bridge)

	c := tcp.NewTCPFrameClientTransport()
	require.NoError(t, c.Connect(common.ClientConfig{Transport: common.TransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPLingerSec: -1}}, TimeoutSecond: 2}))
	defer c.Close()

	resp, err := c.Send(common.NewReferencedFrame(0x1234, 0))
	require.NoError(t, err)
	require.False(t, resp.Ok())
	require.Equal(t, "region 0x1234 not found", string(resp.Payload))

	// malformed referenced payload
	resp, err = c.Send(common.Frame{Kind: common.NotifyReferenced, Arg: 1, Payload: []byte{1}})
	require.NoError(t, err)
	require.False(t, resp.Ok())
}
