// Copyright 2026 The Alumnet Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("session-token")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if got := buffer.String(); got != "session-token" {
		t.Errorf("String() = %q, want %q", got, "session-token")
	}
	if buffer.Len() != len("session-token") {
		t.Errorf("Len() = %d", buffer.Len())
	}
	for index, value := range source {
		if value != 0 {
			t.Fatalf("source[%d] = %d, want zeroed", index, value)
		}
	}
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	if _, err := NewFromBytes(nil); err == nil {
		t.Fatal("expected error for empty credential")
	}
}

func TestCloseIsIdempotentAndPoisons(t *testing.T) {
	buffer, err := FromString("abc")
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("String() on closed buffer did not panic")
		}
	}()
	_ = buffer.String()
}

func TestReadFromPath(t *testing.T) {
	directory := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    string
		wantErr string
	}{
		{name: "plain", content: "tok", want: "tok"},
		{name: "trailing newline", content: "tok\n", want: "tok"},
		{name: "surrounding whitespace", content: "  tok \n", want: "tok"},
		{name: "blank", content: " \n", wantErr: "credential is empty"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(directory, strings.ReplaceAll(test.name, " ", "-"))
			if err := os.WriteFile(path, []byte(test.content), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			buffer, err := ReadFromPath(path)
			if test.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("ReadFromPath error = %v, want %q", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadFromPath: %v", err)
			}
			defer buffer.Close()
			if got := buffer.String(); got != test.want {
				t.Errorf("credential = %q, want %q", got, test.want)
			}
		})
	}
}

func TestReadFirstLine(t *testing.T) {
	buffer, err := readFirstLine(strings.NewReader("from-stdin\nignored\n"))
	if err != nil {
		t.Fatalf("readFirstLine: %v", err)
	}
	defer buffer.Close()
	if got := buffer.String(); got != "from-stdin" {
		t.Errorf("credential = %q, want from-stdin", got)
	}

	if _, err := readFirstLine(strings.NewReader("")); err == nil {
		t.Error("expected error for empty stdin")
	}
}
