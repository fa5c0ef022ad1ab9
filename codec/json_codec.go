package codec

import (
	"encoding/json"
)

// JSONCodec uses encoding/json for envelopes. Human-readable and easy to debug
// with a packet capture, at the cost of repeating field names on every frame.
type JSONCodec struct{}

func (c *JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (c *JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (c *JSONCodec) Type() CodecType {
	return CodecTypeJSON
}
