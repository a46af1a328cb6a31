// Package legacystr decodes NUL-terminated strings as they appear in
// legacy 16-bit address space. String data crossing the compatibility
// boundary is Windows-1252, not UTF-8.
package legacystr

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// TerminatorIndex returns the index of the first NUL byte in b, or -1 when
// the string is unterminated within b.
func TerminatorIndex(b []byte) int {
	return bytes.IndexByte(b, 0)
}

// Decode converts Windows-1252 bytes to UTF-8.
func Decode(data []byte) (string, error) {
	// Fast path: ASCII is identical in Windows-1252 and UTF-8.
	if isASCII(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("legacystr: %w", err)
	}
	return string(decoded), nil
}

// DecodeZ decodes up to the NUL terminator. An unterminated buffer decodes
// in full.
func DecodeZ(data []byte) (string, error) {
	if i := TerminatorIndex(data); i >= 0 {
		data = data[:i]
	}
	return Decode(data)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
