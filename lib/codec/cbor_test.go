// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

type sampleRecord struct {
	Action  string         `cbor:"action"`
	Subject string         `cbor:"subject,omitempty"`
	Count   int            `cbor:"count"`
	At      time.Time      `cbor:"at"`
	Context map[string]any `cbor:"context,omitempty"`
}

type level uint8

func (l level) MarshalText() ([]byte, error) {
	return []byte([]string{"low", "high"}[l]), nil
}

func (l *level) UnmarshalText(text []byte) error {
	switch string(text) {
	case "low":
		*l = 0
	case "high":
		*l = 1
	default:
		return errors.New("bad level")
	}
	return nil
}

type withLevel struct {
	Level level `json:"level"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Action:  "identity.register",
		Subject: "spiffe://dom/ns/production/sa/checkout",
		Count:   42,
		At:      time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Action != original.Action || decoded.Subject != original.Subject || decoded.Count != original.Count {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
	if !decoded.At.Equal(original.At) {
		t.Errorf("At = %v, want %v (nanoseconds must survive)", decoded.At, original.At)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := sampleRecord{
		Action:  "decision",
		Count:   7,
		Context: map[string]any{"zeta": 1, "alpha": true, "mid": "x"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for range 20 {
		again, err := Marshal(record)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("deterministic encoding violated: %x != %x", first, again)
		}
	}
}

func TestNestedMapsDecodeAsStringKeyed(t *testing.T) {
	record := sampleRecord{
		Action:  "decision",
		Context: map[string]any{"request": map[string]any{"ip": "10.0.0.1"}},
	}
	data, err := Marshal(record)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	nested, ok := decoded.Context["request"].(map[string]any)
	if !ok {
		t.Fatalf("nested context type = %T, want map[string]any", decoded.Context["request"])
	}
	if nested["ip"] != "10.0.0.1" {
		t.Errorf("nested ip = %v", nested["ip"])
	}
}

func TestTextMarshalerEncodesAsString(t *testing.T) {
	data, err := Marshal(withLevel{Level: 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, err := Diagnose(data)
	if err != nil {
		t.Fatalf("Diagnose: %v", err)
	}
	if !strings.Contains(diagnostic, `"high"`) {
		t.Errorf("diagnostic %s does not contain the text form", diagnostic)
	}

	var decoded withLevel
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Level != 1 {
		t.Errorf("Level = %d, want 1", decoded.Level)
	}
}

func TestEncoderDecoderSequence(t *testing.T) {
	records := []sampleRecord{
		{Action: "identity.register", Count: 1},
		{Action: "policy.activate", Count: 2},
		{Action: "decision", Count: 3},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range records {
		var got sampleRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got.Action != want.Action || got.Count != want.Count {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	var extra sampleRecord
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode past end: got %v, want io.EOF", err)
	}
}
