package codec

import (
	"testing"

	"method-bridge/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEnvelopes() []*message.Envelope {
	return []*message.Envelope{
		{Method: "max", Payload: []byte(`[1,5,3,9,2,8,4,7]`)},
		{Method: "getInteger", Status: message.StatusSuccess, Payload: []byte(`72`)},
		{Method: "toUpperCase", Status: message.StatusError, Code: "missing_argument", Error: "argument payload is required"},
		{Method: "getOrigin", Status: message.StatusNotImplemented},
	}
}

func TestCodecs(t *testing.T) {
	for _, cdc := range []Codec{&JSONCodec{}, &BinaryCodec{}} {
		for _, original := range sampleEnvelopes() {
			data, err := cdc.Encode(original)
			require.NoError(t, err, "%s encode", cdc.Type())

			var decoded message.Envelope
			require.NoError(t, cdc.Decode(data, &decoded), "%s decode", cdc.Type())

			assert.Equal(t, original.Method, decoded.Method)
			assert.Equal(t, original.Status, decoded.Status)
			assert.Equal(t, original.Code, decoded.Code)
			assert.Equal(t, original.Error, decoded.Error)
			assert.Equal(t, string(original.Payload), string(decoded.Payload))
		}
	}
}

func TestBinaryCodecRejectsOtherTypes(t *testing.T) {
	cdc := &BinaryCodec{}
	_, err := cdc.Encode("not an envelope")
	assert.Error(t, err)

	var s string
	assert.Error(t, cdc.Decode([]byte{0, 0}, &s))
}

func TestBinaryCodecTruncated(t *testing.T) {
	cdc := &BinaryCodec{}
	data, err := cdc.Encode(&message.Envelope{Method: "max", Payload: []byte(`[1,2,3,4,5,6,7,8]`)})
	require.NoError(t, err)

	for _, n := range []int{0, 1, 4, len(data) - 1} {
		var env message.Envelope
		assert.Error(t, cdc.Decode(data[:n], &env), "cut at %d", n)
	}
}

func TestParseCodecType(t *testing.T) {
	ct, err := ParseCodecType("binary")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeBinary, ct)
	assert.Equal(t, "binary", ct.String())

	ct, err = ParseCodecType("")
	require.NoError(t, err)
	assert.Equal(t, CodecTypeJSON, ct)

	_, err = ParseCodecType("protobuf")
	assert.Error(t, err)
}
