package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"method-bridge/message"
)

var errNotEnvelope = errors.New("BinaryCodec: v must be *message.Envelope")

// BinaryCodec lays an envelope out as length-prefixed fields:
//
//	methodLen u16 | method | status u8 | codeLen u16 | code | payloadLen u32 | payload | errLen u16 | error
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	env, ok := v.(*message.Envelope)
	if !ok {
		return nil, errNotEnvelope
	}
	for name, n := range map[string]int{"method": len(env.Method), "code": len(env.Code), "error": len(env.Error)} {
		if n > 0xFFFF {
			return nil, fmt.Errorf("BinaryCodec: %s too long (%d bytes)", name, n)
		}
	}

	total := 2 + len(env.Method) + 1 + 2 + len(env.Code) + 4 + len(env.Payload) + 2 + len(env.Error)
	buf := make([]byte, 0, total)

	buf = binary.BigEndian.AppendUint16(buf, uint16(len(env.Method)))
	buf = append(buf, env.Method...)
	buf = append(buf, byte(env.Status))
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(env.Code)))
	buf = append(buf, env.Code...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(env.Payload)))
	buf = append(buf, env.Payload...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(env.Error)))
	buf = append(buf, env.Error...)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	env, ok := v.(*message.Envelope)
	if !ok {
		return errNotEnvelope
	}
	r := reader{data: data}

	env.Method = string(r.next(int(r.u16())))
	env.Status = message.Status(r.u8())
	env.Code = string(r.next(int(r.u16())))
	if payload := r.next(int(r.u32())); len(payload) > 0 {
		env.Payload = append([]byte(nil), payload...)
	} else {
		env.Payload = nil
	}
	env.Error = string(r.next(int(r.u16())))

	if r.short {
		return fmt.Errorf("BinaryCodec: truncated envelope (%d bytes)", len(data))
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

// reader walks a byte slice and latches short on the first out-of-range read.
type reader struct {
	data  []byte
	off   int
	short bool
}

func (r *reader) next(n int) []byte {
	if r.short || n < 0 || r.off+n > len(r.data) {
		r.short = true
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	if b := r.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.next(2); b != nil {
		return binary.BigEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.next(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}
