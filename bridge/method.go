// Package bridge routes named method-channel calls to the benchmark operation set.
//
// A call carries a method name and a JSON argument payload. The dispatcher
// parses the name into the closed Method set, decodes the payload into the
// method's typed parameters, runs the operation and writes exactly one
// outcome to a ResultSink.
//
//	Call{Method, Arguments} → ParseMethod → decode args → benchmark.* → sink.Success
//	                              │               │
//	                              │               └─ MissingArgument / ArgumentShapeMismatch → sink.Error
//	                              └─ unknown name → policy (NotImplemented or silent)
package bridge

import "fmt"

// Method is one of the operations recognised on the channel.
type Method int

const (
	MethodGetInteger Method = iota + 1
	MethodGetStringOfLength
	MethodToUpperCase
	MethodMax
)

var methodNames = map[Method]string{
	MethodGetInteger:        "getInteger",
	MethodGetStringOfLength: "getStringOfLength",
	MethodToUpperCase:       "toUpperCase",
	MethodMax:               "max",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for k, v := range methodNames {
		m[v] = k
	}
	return m
}()

// Methods returns every recognised method in declaration order.
func Methods() []Method {
	return []Method{MethodGetInteger, MethodGetStringOfLength, MethodToUpperCase, MethodMax}
}

// ParseMethod maps a wire name to a Method. Names are case-sensitive.
func ParseMethod(name string) (Method, error) {
	m, ok := methodsByName[name]
	if !ok {
		return 0, &CallError{Kind: KindUnrecognizedMethod, Method: name, Err: ErrUnknownMethod}
	}
	return m, nil
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Method(%d)", int(m))
}
