// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/trustplane/lib/schema"
)

// Bundle is a file of identities and policies applied together.
// Authored as YAML or as JSONC (JSON with comments and trailing
// commas).
type Bundle struct {
	Identities []IdentitySpec `yaml:"identities,omitempty" json:"identities,omitempty"`
	Policies   []PolicySpec   `yaml:"policies,omitempty" json:"policies,omitempty"`
}

// IdentitySpec declares an identity to register.
type IdentitySpec struct {
	Name       string              `yaml:"name" json:"name"`
	Kind       schema.IdentityKind `yaml:"kind" json:"kind"`
	Namespace  string              `yaml:"namespace" json:"namespace"`
	Contact    string              `yaml:"contact,omitempty" json:"contact,omitempty"`
	TrustLevel *schema.TrustLevel  `yaml:"trust_level,omitempty" json:"trust_level,omitempty"`
	Labels     map[string]string   `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// PolicySpec declares a policy and the status it should end up in.
// An empty Status leaves the policy in draft.
type PolicySpec struct {
	Draft  `yaml:",inline"`
	Status schema.PolicyStatus `yaml:"status,omitempty" json:"status,omitempty"`
}

// Format is a bundle encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from a file extension: .yaml and
// .yml are YAML, .json and .jsonc are JSONC.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("bundle %s: unrecognized extension (want .yaml, .yml, .json, or .jsonc): %w", path, schema.ErrValidation)
}

// LoadBundle reads and parses a bundle file.
func LoadBundle(path string) (*Bundle, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	bundle, err := ParseBundle(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bundle, nil
}

// ParseBundle decodes a bundle. Unknown fields are rejected so typos
// in policy files surface instead of silently widening a policy.
func ParseBundle(data []byte, format Format) (*Bundle, error) {
	var bundle Bundle
	switch format {
	case FormatYAML:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing bundle: %v: %w", err, schema.ErrValidation)
		}
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&bundle); err != nil {
			return nil, fmt.Errorf("parsing bundle: %v: %w", err, schema.ErrValidation)
		}
	default:
		return nil, fmt.Errorf("bundle format %q: %w", format, schema.ErrValidation)
	}

	for index, spec := range bundle.Policies {
		switch spec.Status {
		case "", schema.PolicyDraft, schema.PolicyActive, schema.PolicyDisabled:
		default:
			return nil, fmt.Errorf("policies[%d] %q: status %q: %w", index, spec.Name, spec.Status, schema.ErrValidation)
		}
	}
	return &bundle, nil
}
