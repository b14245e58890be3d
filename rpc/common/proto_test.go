package common

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/uBridge/lib/region"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"syscall"
	"testing"
	"time"
)

func TestHex_RoundTripEveryByte(t *testing.T) {
	for v := 0; v < 256; v++ {
		b := []byte{byte(v)}
		s := EncodeHex(b)
		require.Len(t, s, 2)

		decoded, err := DecodeHex(s)
		require.NoError(t, err)
		require.Equal(t, b, decoded)
	}

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	decoded, err := DecodeHex(EncodeHex(all))
	require.NoError(t, err)
	require.Equal(t, all, decoded)
}

func TestHex_Empty(t *testing.T) {
	require.Equal(t, "", EncodeHex(nil))

	decoded, err := DecodeHex("")
	require.NoError(t, err)
	require.Empty(t, decoded)
}

func TestHex_Uppercase(t *testing.T) {
	require.Equal(t, "00ABCDEF", EncodeHex([]byte{0x00, 0xAB, 0xCD, 0xEF}))

	// both cases are accepted on decode
	decoded, err := DecodeHex("abCD")
	require.NoError(t, err)
	require.Equal(t, []byte{0xAB, 0xCD}, decoded)
}

func TestHex_Rejects(t *testing.T) {
	for _, s := range []string{"A", "ABC", "0G", "zz", "12 4", "0x12"} {
		_, err := DecodeHex(s)
		require.Error(t, err, "input %q", s)
	}
}

func TestIPCRequest_WireFormat(t *testing.T) {
	req := NewIPCRequest([]byte{0x02, 0x00, 0xFF}, 7)
	line, err := json.Marshal(req)
	require.NoError(t, err)
	require.Equal(t, `{"cmd":"ipc","dwData":7,"cbData":3,"hex":"0200FF"}`, string(line))
}

func TestIPCReply_MissingReplyHex(t *testing.T) {
	var reply IPCReply
	require.NoError(t, json.Unmarshal([]byte(`{"ok":true}`), &reply))
	require.True(t, reply.Ok)
	require.Nil(t, reply.ReplyHex)

	require.NoError(t, json.Unmarshal([]byte(`{"ok":true,"replyHex":""}`), &reply))
	require.NotNil(t, reply.ReplyHex)
	require.Equal(t, "", *reply.ReplyHex)
}

func TestFrame_ReferencedOffset(t *testing.T) {
	frame := NewReferencedFrame(0x1234, -5)
	require.Equal(t, NotifyReferenced, frame.Kind)
	require.Equal(t, uint64(0x1234), frame.Arg)

	offset, err := frame.Offset()
	require.NoError(t, err)
	require.Equal(t, int64(-5), offset)

	_, err = Frame{Kind: NotifyReferenced, Payload: []byte{1, 2}}.Offset()
	require.Error(t, err)
}

func TestFrame_Replies(t *testing.T) {
	require.True(t, NewSuccessFrame(nil).Ok())

	failure := NewFailureFrame(errors.New("boom"))
	require.False(t, failure.Ok())
	require.Equal(t, "boom", string(failure.Payload))
}

func TestFrameKind_String(t *testing.T) {
	require.Equal(t, "embedded", NotifyEmbedded.String())
	require.Equal(t, "shutdown", NotifyShutdown.String())
	require.Equal(t, "unknown(42)", FrameKind(42).String())
}

func TestErrTimeoutIsTransport(t *testing.T) {
	err := errors.Join(ErrTimeout)
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestIsExpectedCloseError(t *testing.T) {
	require.False(t, IsExpectedCloseError(nil))
	require.True(t, IsExpectedCloseError(io.EOF))
	require.True(t, IsExpectedCloseError(net.ErrClosed))
	require.True(t, IsExpectedCloseError(&net.OpError{Op: "read", Err: syscall.ECONNRESET}))
	require.False(t, IsExpectedCloseError(errors.New("other")))
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "warning", "error"} {
		_, err := ParseLogLevel(level)
		require.NoError(t, err, level)
	}
	_, err := ParseLogLevel("verbose")
	require.Error(t, err)
}

func TestBridgeConfig_String(t *testing.T) {
	cfg := BridgeConfig{
		Client:           ClientConfig{Transport: TransportConfig{Endpoint: "10.0.0.1:9000"}},
		TransportName:    "tcp",
		Serializer:       "json",
		RegionNameFormat: DefaultRegionNameFormat,
	}
	s := cfg.String()
	require.Contains(t, s, "10.0.0.1:9000")
	require.Contains(t, s, "FsasmLib_IPC_%04X")
	require.Contains(t, s, "RECONNECT")
	require.Equal(t, time.Second, cfg.ReconnectInterval())
}

func TestLimits_FollowRegionSize(t *testing.T) {
	require.Equal(t, region.RegionSize, DefaultRegionSize)

	// a full region encoded as one request line fits the line limit
	line, err := json.Marshal(NewIPCRequest(make([]byte, region.RegionSize), 0xFFFFFFFF))
	require.NoError(t, err)
	require.Less(t, len(line), DefaultMaxLineBytes)
	require.GreaterOrEqual(t, DefaultMaxFrameBytes, region.RegionSize)
}
