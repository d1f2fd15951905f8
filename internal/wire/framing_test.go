// Copyright 2025 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestDecoderClassification(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Kind
	}{
		{"empty", "", KindEmpty},
		{"whitespace", "   \t  ", KindEmpty},
		{"bad json", "{not json}", KindParseError},
		{"json array", "[1,2,3]", KindInvalidRequest},
		{"json scalar", `"hello"`, KindInvalidRequest},
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, KindRequest},
		{"notification", `{"jsonrpc":"2.0","method":"exit"}`, KindRequest},
		{"response", `{"jsonrpc":"2.0","id":1,"result":{}}`, KindResponse},
		{"object no method no id", `{"jsonrpc":"2.0"}`, KindInvalidRequest},
		{"boolean id", `{"jsonrpc":"2.0","id":true,"method":"x"}`, KindInvalidRequest},
	}

	// All non-empty cases share one stream so Next()'s skip-blank-lines
	// behavior is exercised alongside classification.
	var buf bytes.Buffer
	var wantKinds []Kind
	for _, tt := range tests {
		buf.WriteString(tt.line)
		buf.WriteByte('\n')
		if tt.want != KindEmpty {
			wantKinds = append(wantKinds, tt.want)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range wantKinds {
		f, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: Next: %v", i, err)
		}
		if f.Kind != want {
			t.Errorf("frame %d: kind = %v, want %v", i, f.Kind, want)
		}
	}
	if _, err := dec.Next(); err != io.EOF {
		t.Errorf("final Next: err = %v, want io.EOF", err)
	}
}

func TestWriterCompactAndNewlineTerminated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	req, err := NewRequest(IntID(7), "tools/call", map[string]string{"a": "b"})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.WriteRequest(req); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("output not newline-terminated: %q", out)
	}
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected exactly one newline, got %q", out)
	}
	if strings.Contains(strings.TrimSuffix(out, "\n"), "  ") {
		t.Fatalf("output not compact: %q", out)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp, err := NewResponse(StringID("abc"), map[string]int{"x": 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := EncodeResponse(resp)
	if err != nil {
		t.Fatal(err)
	}
	dec := NewDecoder(bytes.NewReader(append(data, '\n')))
	f, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindResponse {
		t.Fatalf("kind = %v, want KindResponse", f.Kind)
	}
	if f.Response.ID.Raw() != "abc" {
		t.Fatalf("id = %v, want abc", f.Response.ID.Raw())
	}
}

func TestBadFrameProducesParseError(t *testing.T) {
	dec := NewDecoder(strings.NewReader("{not json}\n"))
	f, err := dec.Next()
	if err != nil {
		t.Fatal(err)
	}
	if f.Kind != KindParseError {
		t.Fatalf("kind = %v, want KindParseError", f.Kind)
	}
}
