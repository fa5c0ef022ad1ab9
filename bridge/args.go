package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MaxArity is the number of values the max method takes.
const MaxArity = 8

// Call is one named request received on the channel.
type Call struct {
	Method    string
	Arguments json.RawMessage
}

// NewCall marshals args as the payload. A nil args leaves the payload empty.
func NewCall(method string, args any) (Call, error) {
	if args == nil {
		return Call{Method: method}, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return Call{}, fmt.Errorf("bridge: marshal %s arguments: %w", method, err)
	}
	return Call{Method: method, Arguments: raw}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeArgs unmarshals a required payload into T.
func decodeArgs[T any](m Method, raw json.RawMessage) (T, error) {
	var v T
	if isAbsent(raw) {
		return v, missingArgument(m)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, shapeMismatch(m, err)
	}
	return v, nil
}

func decodeMaxArgs(raw json.RawMessage) ([MaxArity]int32, error) {
	var out [MaxArity]int32
	values, err := decodeArgs[[]int32](MethodMax, raw)
	if err != nil {
		return out, err
	}
	if len(values) != MaxArity {
		return out, shapeMismatch(MethodMax, fmt.Errorf("expected %d integers, got %d", MaxArity, len(values)))
	}
	copy(out[:], values)
	return out, nil
}
