// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

const testSchema = `
#Entry: {
	name:  string & !=""
	level: int & >=1 & <=9 | *1
	tags?: [...string]
}
`

type testEntry struct {
	Name  string   `json:"name"`
	Level int      `json:"level"`
	Tags  []string `json:"tags,omitempty"`
}

var entrySchema = MustCompile([]byte(testSchema), "#Entry")

func TestCompileUnknownDefinition(t *testing.T) {
	t.Parallel()

	if _, err := Compile([]byte(testSchema), "#Missing"); err == nil {
		t.Error("Compile() with unknown definition should fail")
	}
	if _, err := Compile([]byte(`#Entry: {`), "#Entry"); err == nil {
		t.Error("Compile() with broken schema should fail")
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	got, err := Decode[testEntry](entrySchema, []byte(`name: "core"`), WithFilename("entry.cue"))
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if got.Name != "core" || got.Level != 1 {
		t.Errorf("Decode() = %+v, want name core at default level 1", got)
	}
}

func TestDecodeRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		wantPath string
	}{
		{name: "out of range", data: "name: \"core\"\nlevel: 12", wantPath: "level"},
		{name: "empty name", data: `name: ""`, wantPath: "name"},
		{name: "syntax error", data: `name: "core`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decode[testEntry](entrySchema, []byte(tt.data), WithFilename("entry.cue"))
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Decode() error = %v, want *ValidationError", err)
			}
			if ve.File != "entry.cue" || !strings.HasPrefix(err.Error(), "entry.cue: ") {
				t.Errorf("error should name the file, got: %v", err)
			}
			if tt.wantPath != "" && !strings.Contains(err.Error(), tt.wantPath) {
				t.Errorf("error %q should mention %q", err, tt.wantPath)
			}
		})
	}
}

func TestDecodeRequiresConcreteValues(t *testing.T) {
	t.Parallel()

	_, err := Decode[testEntry](entrySchema, []byte(`level: 3`))
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Decode() without name error = %v, want *ValidationError", err)
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("error %q should mention name", err)
	}
}

func TestDecodeFileSize(t *testing.T) {
	t.Parallel()

	data := []byte(`name: "` + strings.Repeat("a", 64) + `"`)
	if _, err := Decode[testEntry](entrySchema, data, WithMaxFileSize(16)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Decode() over size limit error = %v, want ErrTooLarge", err)
	}
}

func TestDecodeConcurrent(t *testing.T) {
	t.Parallel()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Go(func() {
			if _, err := Decode[testEntry](entrySchema, []byte(`name: "core", level: 4`)); err != nil {
				errs <- err
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Decode() error: %v", err)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	in := testEntry{Name: "needs \"quotes\"\n and lines", Level: 7, Tags: []string{"a", "b"}}
	data, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	got, err := Decode[testEntry](entrySchema, data)
	if err != nil {
		t.Fatalf("Decode(Encode()) error: %v\n%s", err, data)
	}
	if got.Name != in.Name || got.Level != in.Level || strings.Join(got.Tags, ",") != "a,b" {
		t.Errorf("round trip = %+v, want %+v", got, in)
	}
}
