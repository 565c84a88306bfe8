// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadFromPathTrims(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain", "s3cret"},
		{"trailing newline", "s3cret\n"},
		{"surrounding whitespace", "  s3cret \n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "secret")
			if err := os.WriteFile(path, []byte(test.content), 0600); err != nil {
				t.Fatal(err)
			}
			buffer, err := ReadFromPath(path)
			if err != nil {
				t.Fatalf("ReadFromPath: %v", err)
			}
			defer buffer.Close()
			if buffer.String() != "s3cret" {
				t.Errorf("secret = %q, want s3cret", buffer.String())
			}
		})
	}
}

func TestReadFromPathErrors(t *testing.T) {
	directory := t.TempDir()
	if _, err := ReadFromPath(filepath.Join(directory, "missing")); err == nil {
		t.Error("missing file succeeded")
	}
	blank := filepath.Join(directory, "blank")
	if err := os.WriteFile(blank, []byte(" \n\t"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadFromPath(blank); err == nil {
		t.Error("whitespace-only file succeeded")
	}
}
