package serializer

import (
	"github.com/ValentinKolb/uBridge/rpc/common"
	"github.com/stretchr/testify/require"
	"testing"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() ILineSerializer{
	"JSON":  NewJSONSerializer,
	"GJSON": NewGJSONSerializer,
}

func TestEncodeRequest_WireFormat(t *testing.T) {
	req := common.NewIPCRequest([]byte{0x02, 0x00, 0x00, 0x00, 0xAB}, 0x20)

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			line, err := factory().EncodeRequest(req)
			require.NoError(t, err)
			require.Equal(t, `{"cmd":"ipc","dwData":32,"cbData":5,"hex":"02000000AB"}`, string(line))
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	req := common.NewIPCRequest([]byte{1, 2, 3, 4}, 0xFFFFFFFF)

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			line, err := s.EncodeRequest(req)
			require.NoError(t, err)

			decoded, err := s.DecodeRequest(line)
			require.NoError(t, err)
			require.Equal(t, req, decoded)
		})
	}
}

func TestReplyRoundTrip(t *testing.T) {
	replies := []*common.IPCReply{
		common.NewSuccessReply([]byte{0xDE, 0xAD}, 3),
		common.NewSuccessReply(nil, 0),
		common.NewErrorReply("unknown offset"),
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			s := factory()
			for _, reply := range replies {
				line, err := s.EncodeReply(reply)
				require.NoError(t, err)

				decoded, err := s.DecodeReply(line)
				require.NoError(t, err)
				require.Equal(t, reply, decoded)
			}
		})
	}
}

func TestDecodeReply_MissingFields(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			reply, err := factory().DecodeReply([]byte(`{"ok":true}`))
			require.NoError(t, err)
			require.True(t, reply.Ok)
			require.Nil(t, reply.ReplyHex)

			reply, err = factory().DecodeReply([]byte(`{"replyHex":"00"}`))
			require.NoError(t, err)
			require.False(t, reply.Ok)
		})
	}
}

func TestDecodeReply_NotJSON(t *testing.T) {
	_, err := NewJSONSerializer().DecodeReply([]byte("service unavailable"))
	require.Error(t, err)

	reply, err := NewGJSONSerializer().DecodeReply([]byte("service unavailable"))
	require.NoError(t, err)
	require.False(t, reply.Ok)
	require.Equal(t, "service unavailable", reply.Error)
}

func TestGJSON_IgnoresUnknownFields(t *testing.T) {
	reply, err := NewGJSONSerializer().DecodeReply([]byte(`{"ok":true,"replyHex":"0A0B","extra":[1,2,3],"replyDwData":9}`))
	require.NoError(t, err)
	require.True(t, reply.Ok)
	require.Equal(t, "0A0B", *reply.ReplyHex)
	require.Equal(t, uint32(9), *reply.ReplyDwData)
}

func TestGJSON_DecodeRequestMissingField(t *testing.T) {
	_, err := NewGJSONSerializer().DecodeRequest([]byte(`{"cmd":"ipc","dwData":1}`))
	require.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "json", "gjson"} {
		s, err := New(name)
		require.NoError(t, err)
		require.NotNil(t, s)
	}
	_, err := New("gob")
	require.Error(t, err)
}
