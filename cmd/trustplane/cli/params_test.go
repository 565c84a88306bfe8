// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlags_BasicTypes(t *testing.T) {
	type params struct {
		Name     string        `flag:"name" desc:"the name"`
		Verbose  bool          `flag:"verbose,v" desc:"enable verbose output"`
		Count    int           `flag:"count" desc:"number of items"`
		Timeout  time.Duration `flag:"timeout" desc:"request timeout"`
		Context  []string      `flag:"context" desc:"key=value pairs"`
		Untagged string        // no flag tag: skipped
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"--name", "alice",
		"-v",
		"--count", "42",
		"--timeout", "30s",
		"--context", "target_model=gpt-4o,llama",
		"--context", "mfa_verified=true",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "alice" {
		t.Errorf("Name = %q, want %q", p.Name, "alice")
	}
	if !p.Verbose {
		t.Error("Verbose = false, want true")
	}
	if p.Count != 42 {
		t.Errorf("Count = %d, want 42", p.Count)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", p.Timeout)
	}
	// Repeated values are kept whole; commas are not separators.
	if len(p.Context) != 2 || p.Context[0] != "target_model=gpt-4o,llama" {
		t.Errorf("Context = %q, want two unsplit entries", p.Context)
	}
	if p.Untagged != "" {
		t.Errorf("Untagged = %q, want empty", p.Untagged)
	}
}

func TestBindFlags_Defaults(t *testing.T) {
	type params struct {
		Host    string        `flag:"host" default:"localhost"`
		Port    int           `flag:"port" default:"8080"`
		Timeout time.Duration `flag:"timeout" default:"10s"`
		Debug   bool          `flag:"debug" default:"true"`
		Tags    []string      `flag:"tags" default:"x,y"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Host != "localhost" || p.Port != 8080 || p.Timeout != 10*time.Second || !p.Debug {
		t.Errorf("params = %+v, want tag defaults", p)
	}
	if len(p.Tags) != 2 || p.Tags[0] != "x" || p.Tags[1] != "y" {
		t.Errorf("Tags = %v, want [x y]", p.Tags)
	}
}

func TestBindFlags_EmbeddedStruct(t *testing.T) {
	type shared struct {
		Config string `flag:"config" desc:"config file"`
	}
	type params struct {
		shared
		JSONOutput
		Subject string `flag:"subject"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}
	if err := flagSet.Parse([]string{"--config", "tp.yaml", "--json", "--subject", "s"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Config != "tp.yaml" || !p.OutputJSON || p.Subject != "s" {
		t.Errorf("params = %+v, want embedded fields bound", p)
	}
}

func TestBindFlags_Errors(t *testing.T) {
	tests := []struct {
		name    string
		params  any
		wantErr string
	}{
		{"not a pointer", struct{}{}, "pointer to a struct"},
		{"unsupported type", &struct {
			Ratio float32 `flag:"ratio"`
		}{}, "unsupported type"},
		{"bad default", &struct {
			Count int `flag:"count" default:"many"`
		}{}, "default for --count"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := BindFlags(test.params, pflag.NewFlagSet("test", pflag.ContinueOnError))
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Errorf("BindFlags error = %v, want it to contain %q", err, test.wantErr)
			}
		})
	}
}
