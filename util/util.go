// Package util contains misc internal utilities shared by the fel core and
// the felix CLI.
package util

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// GetBit returns the value of a given bit in a byte.
func GetBit(b byte, bitIndex uint) bool {
	return (b>>bitIndex)&1 == 1
}

// SetBit sets a single bit in a byte.
func SetBit(in byte, bitIndex uint, high bool) byte {
	if high {
		in |= 1 << bitIndex
	} else {
		in &= ^(1 << bitIndex)
	}
	return in
}

// MergeErrors converts many errors to a single one, newline separated.
// felix's CLI uses this to report every invalid flag at once instead of
// bailing on the first.
func MergeErrors(errs []error) error {
	var strs []string
	for idx := 0; idx < len(errs); idx++ {
		err := errs[idx]
		if err != nil {
			strs = append(strs, err.Error())
		}
	}
	err := fmt.Errorf(strings.Join(strs, "\n"))
	if err.Error() == "" {
		return nil
	}
	return err
}

// HexDump renders b as a conventional offset-prefixed hex dump, one 16-byte
// row per line. Used by felix's verbose setting to print request/response
// frames alongside a USB capture for comparison.
func HexDump(b []byte) string {
	var sb strings.Builder
	for offset := 0; offset < len(b); offset += 16 {
		end := offset + 16
		if end > len(b) {
			end = len(b)
		}
		row := b[offset:end]
		fmt.Fprintf(&sb, "%08x  %s\n", offset, hex.EncodeToString(row))
	}
	return sb.String()
}
