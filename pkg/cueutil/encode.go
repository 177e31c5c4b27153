// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
)

// Encode renders a Go value as a formatted CUE document. Field names follow
// the json struct tags of v.
func Encode(v any) ([]byte, error) {
	value := cuecontext.New().Encode(v)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("encode CUE value: %w", err)
	}
	out, err := format.Node(value.Syntax())
	if err != nil {
		return nil, fmt.Errorf("format CUE value: %w", err)
	}
	return append(out, '\n'), nil
}
