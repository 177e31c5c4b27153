// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Schema is a compiled CUE definition documents are checked against. It is
// safe for concurrent use.
type Schema struct {
	mu         sync.Mutex
	ctx        *cue.Context
	definition cue.Value
}

// Compile compiles src and selects the definition named by path, such as
// "#Metadata".
func Compile(src []byte, path string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath(path))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("schema definition %s: %w", path, err)
	}
	return &Schema{ctx: ctx, definition: def}, nil
}

// MustCompile is Compile for schemas embedded in the binary.
func MustCompile(src []byte, path string) *Schema {
	s, err := Compile(src, path)
	if err != nil {
		panic(err)
	}
	return s
}

// Decode validates data against s and decodes the unified value into a T.
// Field names follow the json struct tags of T. Every failure other than a
// size violation is a *ValidationError.
func Decode[T any](s *Schema, data []byte, opts ...Option) (*T, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := CheckFileSize(data, o.maxFileSize, o.filename); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.ctx.CompileBytes(data, cue.Filename(o.filename))
	if err := doc.Err(); err != nil {
		return nil, Validation(err, o.filename)
	}
	unified := s.definition.Unify(doc)
	if err := unified.Validate(cue.Concrete(o.concrete)); err != nil {
		return nil, Validation(err, o.filename)
	}
	out := new(T)
	if err := unified.Decode(out); err != nil {
		return nil, Validation(err, o.filename)
	}
	return out, nil
}
