// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"strings"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/config"
	"github.com/bureau-foundation/trustplane/lib/controlplane"
)

// planeParams are the flags shared by every command that needs a
// running control plane.
type planeParams struct {
	Config  string   `json:"-" flag:"config,c" desc:"path to trustplane.yaml (default: $TRUSTPLANE_CONFIG)"`
	Bundles []string `json:"-" flag:"bundle,b" desc:"identity and policy bundle to apply after the configured ones (repeatable)"`
	Demo    bool     `json:"-" flag:"demo" desc:"seed the built-in demo identities and policies"`
}

func (params planeParams) loadConfig() (*config.Config, error) {
	if params.Config != "" {
		return config.LoadFile(params.Config)
	}
	return config.Load()
}

// open loads the configuration, starts a plane, and applies the
// configured bundles, then --bundle files, then the demo seed. The
// caller must Close the plane.
func (params planeParams) open(ctx context.Context, command string) (*controlplane.Plane, *config.Config, error) {
	cfg, err := params.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := cli.NewLogger(os.Stderr, cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.With("command", command)

	plane, err := controlplane.Open(ctx, cfg, controlplane.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	for _, path := range slices.Concat(cfg.Bundles, params.Bundles) {
		if _, err := plane.ApplyFile(ctx, path); err != nil {
			plane.Close()
			return nil, nil, err
		}
	}
	if params.Demo {
		if _, err := plane.SeedDemo(ctx); err != nil {
			plane.Close()
			return nil, nil, err
		}
	}
	return plane, cfg, nil
}

// parseContext turns key=value pairs into a request context. Values
// that parse as JSON (numbers, booleans, quoted strings, arrays) keep
// their JSON type; anything else is a plain string.
func parseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	parsed := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, cli.Validation("--context %q: want key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		parsed[key] = value
	}
	return parsed, nil
}

func requireFlag(name, value string) error {
	if value == "" {
		return cli.Validation("--%s is required", name)
	}
	return nil
}
