package bridge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/uBridge/lib/ipc"
	"github.com/ValentinKolb/uBridge/lib/region"
	"github.com/ValentinKolb/uBridge/rpc/client"
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/ValentinKolb/uBridge/rpc/serializer"
	"github.com/ValentinKolb/uBridge/rpc/transport/tcp"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

// fakeForwarder records forwarded blocks and answers with answer(block)
type fakeForwarder struct {
	forwarded [][]byte
	answer    func(block []byte) ([]byte, error)
}

func (f *fakeForwarder) Forward(block []byte, tag uint32) ([]byte, error) {
	f.forwarded = append(f.forwarded, bytes.Clone(block))
	if f.answer == nil {
		return bytes.Clone(block), nil
	}
	return f.answer(block)
}

// fakeRegions serves a single region buffer for every non zero identifier
type fakeRegions struct {
	data     []byte
	err      error
	resolved []region.ID
}

func (f *fakeRegions) Resolve(id region.ID) ([]byte, error) {
	f.resolved = append(f.resolved, id)
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// stubService is an answering service on 127.0.0.1 replying reply(request) to every line
func stubService(t *testing.T, reply func(req common.IPCRequest) string) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
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
	return l.Addr().String()
}

func echo(req common.IPCRequest) string {
	return `{"ok":true,"replyHex":"` + req.Hex + `","replyDwData":0}`
}

func invert(req common.IPCRequest) string {
	block, _ := common.DecodeHex(req.Hex)
	for i := range block {
		block[i] = ^block[i]
	}
	return `{"ok":true,"replyHex":"` + common.EncodeHex(block) + `"}`
}

func newForwarder(endpoint string, interval time.Duration) *client.Forwarder {
	config := common.ClientConfig{
		Transport:     common.TransportConfig{Endpoint: endpoint, TCPConf: common.TCPConf{TCPNoDelay: true, TCPLingerSec: -1}},
		TimeoutSecond: 2,
	}
	conn := client.NewConnection(tcp.NewTCPLineClientTransport(), config, client.NewReconnectPolicy(interval, 0))
	return client.NewForwarder(conn, serializer.NewJSONSerializer())
}

// scenarioABlock is a write record (offset 0x0560, 8 bytes) followed by the terminator
func scenarioABlock() []byte {
	return ipc.AppendTerminator(ipc.AppendWrite(nil, 0x0560, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

func TestScenarioA_EchoLeavesBlockUnchanged(t *testing.T) {
	block := scenarioABlock()
	n, err := ipc.BlockLength(block)
	require.NoError(t, err)
	require.Equal(t, 24, n)

	fwd := newForwarder(stubService(t, echo), time.Second)
	defer fwd.Connection().Close()
	d := NewDispatcher(fwd, &fakeRegions{})

	want := bytes.Clone(block)
	require.NoError(t, d.Embedded(block, 7))
	require.Equal(t, want, block)
}

func TestScenarioB_UndecodableForwardsRemainingRegion(t *testing.T) {
	data := make([]byte, 0x100)
	// read record at 0x80 declaring far more payload than the region holds
	copy(data[0x80:], ipc.AppendRead(nil, 0x0BC8, 0x1000, 0))

	fwd := &fakeForwarder{}
	d := NewDispatcher(fwd, &fakeRegions{data: data})

	require.NoError(t, d.Referenced(0x42, 0x80))
	require.Len(t, fwd.forwarded, 1)
	require.Len(t, fwd.forwarded[0], 0x100-0x80)
}

func TestScenarioC_MissingSuccessMarker(t *testing.T) {
	fwd := newForwarder(stubService(t, func(common.IPCRequest) string {
		return `{"error":"simulator not running"}`
	}), time.Second)
	defer fwd.Connection().Close()
	d := NewDispatcher(fwd, &fakeRegions{})

	block := scenarioABlock()
	want := bytes.Clone(block)

	err := d.Embedded(block, 0)
	require.ErrorIs(t, err, common.ErrTransport)
	require.Equal(t, want, block)
	require.Equal(t, client.Disconnected, fwd.Connection().State())
}

func TestScenarioD_LengthMismatch(t *testing.T) {
	fwd := newForwarder(stubService(t, func(req common.IPCRequest) string {
		return `{"ok":true,"replyHex":"` + req.Hex + `00"}`
	}), time.Second)
	defer fwd.Connection().Close()
	d := NewDispatcher(fwd, &fakeRegions{})

	block := scenarioABlock()
	want := bytes.Clone(block)

	err := d.Embedded(block, 0)
	require.ErrorIs(t, err, ErrContractViolation)
	require.NotErrorIs(t, err, common.ErrTransport)
	require.Equal(t, want, block)
}

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

func TestDispatcher_EmbeddedOverwritesInPlace(t *testing.T) {
	fwd := newForwarder(stubService(t, invert), time.Second)
	defer fwd.Connection().Close()
	d := NewDispatcher(fwd, &fakeRegions{})

	block := []byte{0x00, 0x0F, 0xF0}
	require.NoError(t, d.Embedded(block, 0))
	require.Equal(t, []byte{0xFF, 0xF0, 0x0F}, block)
}

func TestDispatcher_EmptyEmbeddedIsSuccess(t *testing.T) {
	fwd := &fakeForwarder{}
	d := NewDispatcher(fwd, &fakeRegions{})

	require.NoError(t, d.Embedded(nil, 0))
	require.Empty(t, fwd.forwarded)
}

func TestDispatcher_ReferencedFramedBlock(t *testing.T) {
	data := make([]byte, 0x100)
	block := scenarioABlock()
	copy(data[0x20:], block)
	data[0x20+len(block)] = 0xAA // after the terminator, must not be forwarded or touched

	fwd := &fakeForwarder{answer: func(b []byte) ([]byte, error) {
		return bytes.Repeat([]byte{0x55}, len(b)), nil
	}}
	d := NewDispatcher(fwd, &fakeRegions{data: data})

	require.NoError(t, d.Referenced(0x1234, 0x20))
	require.Len(t, fwd.forwarded, 1)
	require.Equal(t, block, fwd.forwarded[0])
	require.Equal(t, bytes.Repeat([]byte{0x55}, len(block)), data[0x20:0x20+len(block)])
	require.Equal(t, byte(0xAA), data[0x20+len(block)])
	require.Equal(t, byte(0), data[0x1F])
}

func TestDispatcher_ReferencedRejects(t *testing.T) {
	regions := &fakeRegions{data: make([]byte, 0x100)}
	d := NewDispatcher(&fakeForwarder{}, regions)

	require.ErrorIs(t, d.Referenced(0x1234, -1), ErrInvalidRequest)
	require.ErrorIs(t, d.Referenced(0x1234, 0x100), ErrInvalidRequest)
	require.ErrorIs(t, d.Referenced(0x1234, 0x7FFFFFFFFFFFFFFF), ErrInvalidRequest)
}

func TestDispatcher_ZeroRegionIsNoop(t *testing.T) {
	regions := &fakeRegions{data: make([]byte, 0x100)}
	fwd := &fakeForwarder{}
	d := NewDispatcher(fwd, regions)

	require.NoError(t, d.Referenced(0, 0x10))
	require.Empty(t, regions.resolved)
	require.Empty(t, fwd.forwarded)
}

func TestDispatcher_ResourceErrorPropagates(t *testing.T) {
	regions := &fakeRegions{err: region.ErrResource}
	fwd := &fakeForwarder{}
	d := NewDispatcher(fwd, regions)

	require.ErrorIs(t, d.Referenced(0x1234, 0), region.ErrResource)
	require.Empty(t, fwd.forwarded)
}

func TestDispatcher_ForwardErrorLeavesRegion(t *testing.T) {
	data := make([]byte, 0x40)
	copy(data, scenarioABlock())
	want := bytes.Clone(data)

	fwd := &fakeForwarder{answer: func([]byte) ([]byte, error) {
		return nil, errors.Join(common.ErrTimeout, errors.New("read"))
	}}
	d := NewDispatcher(fwd, &fakeRegions{data: data})

	require.ErrorIs(t, d.Referenced(1, 0), common.ErrTimeout)
	require.Equal(t, want, data)
}
