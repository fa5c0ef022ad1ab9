// Package message defines the envelope exchanged on the method channel.
//
// An Envelope carries one call or one reply. It gets serialized by the codec
// layer and wrapped in a protocol frame for transmission over TCP.
package message

// Status tells a caller how to read a reply envelope.
type Status byte

const (
	StatusSuccess        Status = 0 // Payload holds the JSON result
	StatusError          Status = 1 // Code and Error describe the failure
	StatusNotImplemented Status = 2 // The host does not know the method
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNotImplemented:
		return "not_implemented"
	}
	return "unknown"
}

// Envelope carries the data for a single call or reply.
//
//   - On call:  Method is set, Payload holds the JSON arguments (may be empty).
//   - On reply: Status is set; Payload holds the JSON result on success,
//     Code and Error are set on failure.
type Envelope struct {
	Method  string // Channel method name, e.g. "getStringOfLength"
	Status  Status
	Code    string // Machine-readable error code, e.g. "missing_argument"
	Error   string // Human-readable error message
	Payload []byte
}

// Failed reports whether the envelope is an error reply.
func (e *Envelope) Failed() bool {
	return e.Status == StatusError
}
