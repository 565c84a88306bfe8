// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ReadFromPath reads a secret from path, or the first line of stdin
// when path is "-". Surrounding whitespace is trimmed and every heap
// copy is zeroed.
func ReadFromPath(path string) (*Buffer, error) {
	var data []byte
	if path == "-" {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return nil, fmt.Errorf("secret: reading stdin: %w", err)
			}
			return nil, errors.New("secret: stdin is empty")
		}
		data = scanner.Bytes()
	} else {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("secret: %w", err)
		}
	}
	defer Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return NewFromBytes(trimmed)
}
