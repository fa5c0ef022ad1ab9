package message

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeJSON(t *testing.T) {
	reply := &Envelope{
		Method:  "getStringOfLength",
		Status:  StatusError,
		Code:    "argument_shape_mismatch",
		Error:   "expected integer",
		Payload: nil,
	}

	data, err := json.Marshal(reply)
	if err != nil {
		t.Fatalf("Failed to marshal reply: %v", err)
	}

	var decoded Envelope
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal with error: %v", err)
	}

	if !decoded.Failed() {
		t.Fatalf("expect decoded reply to be failed, got status %s", decoded.Status)
	}
	if decoded.Code != reply.Code {
		t.Fatalf("Code mismatch: got %s, want %s", decoded.Code, reply.Code)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusSuccess:        "success",
		StatusError:          "error",
		StatusNotImplemented: "not_implemented",
		Status(9):            "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("Status(%d).String() = %s, want %s", s, s.String(), want)
		}
	}
}
