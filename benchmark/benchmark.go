// Package benchmark holds the operation set exposed on the benchmark channel.
//
// Every function here is pure: no shared state, no I/O, safe to call from any
// goroutine. Integer parameters are int32 to keep the host's 32-bit wrapping
// arithmetic.
package benchmark

import "strings"

// ChannelName is the method channel the operation set is served on.
const ChannelName = "com.github.dart_lang.jnigen/benchmark"

// GetInteger always returns 72.
func GetInteger() int32 {
	return 72
}

// GetStringOfLength returns n repetitions of "z". A non-positive n yields "".
func GetStringOfLength(n int32) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("z", int(n))
}

// ToUpperCase returns text unchanged.
//
// The name promises an uppercase transform but the benchmark only measures
// the round trip of a string argument, so the body stays an identity.
func ToUpperCase(text string) string {
	return text
}

// Max returns the largest of eight values.
func Max(a, b, c, d, e, f, g, h int32) int32 {
	abcd := max(max(a, b), max(c, d))
	efgh := max(max(e, f), max(g, h))
	return max(abcd, efgh)
}
