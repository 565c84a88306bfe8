// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommand_Execute_DispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "trustplane",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(args []string) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "evaluate",
				Run: func(args []string) error {
					called = "evaluate"
					return nil
				},
			},
		},
	}

	if err := root.Execute([]string{"evaluate"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "evaluate" {
		t.Errorf("dispatched to %q, want %q", called, "evaluate")
	}
}

func TestCommand_Execute_NestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "trustplane",
		Subcommands: []*Command{
			{
				Name: "token",
				Subcommands: []*Command{
					{
						Name: "verify",
						Run: func(args []string) error {
							called = "token verify"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute([]string{"token", "verify", "eyJhbGciOi"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "token verify" {
		t.Errorf("dispatched to %q, want %q", called, "token verify")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "eyJhbGciOi" {
		t.Errorf("args = %v, want [eyJhbGciOi]", receivedArgs)
	}
}

func TestCommand_Execute_FlagParsing(t *testing.T) {
	var configPath string
	var positional string

	command := &Command{
		Name: "evaluate",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("evaluate", pflag.ContinueOnError)
			flagSet.StringVar(&configPath, "config", "", "config file")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				positional = args[0]
			}
			return nil
		},
	}

	if err := command.Execute([]string{"--config", "/etc/trustplane.yaml", "extra"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if configPath != "/etc/trustplane.yaml" {
		t.Errorf("configPath = %q, want %q", configPath, "/etc/trustplane.yaml")
	}
	if positional != "extra" {
		t.Errorf("positional = %q, want %q", positional, "extra")
	}
}

func TestCommand_Execute_Params(t *testing.T) {
	type params struct {
		JSONOutput
		Subject string `flag:"subject" desc:"request subject"`
	}
	var p params
	var ran bool

	command := &Command{
		Name:   "evaluate",
		Params: func() any { return &p },
		Run: func(args []string) error {
			ran = true
			return nil
		},
	}

	if err := command.Execute([]string{"--subject", "admin@example.com", "--json"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !ran {
		t.Fatal("Run was not called")
	}
	if p.Subject != "admin@example.com" || !p.OutputJSON {
		t.Errorf("params = %+v, want subject and --json bound", p)
	}
}

func TestCommand_Execute_UnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "evaluate",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("evaluate", pflag.ContinueOnError)
			flagSet.String("resource", "", "resource")
			flagSet.String("subject", "", "subject")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--resouce", "inventory-service"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --resource") {
		t.Errorf("error = %q, want suggestion for '--resource'", errStr)
	}
	if !strings.Contains(errStr, "resouce") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommand_Execute_UnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "evaluate",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("evaluate", pflag.ContinueOnError)
			flagSet.Bool("json", false, "json")
			return flagSet
		},
		Run: func(args []string) error { return nil },
	}

	err := command.Execute([]string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
}

func TestCommand_Execute_UnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "trustplane",
		Subcommands: []*Command{
			{Name: "evaluate"},
			{Name: "explain"},
			{Name: "version"},
		},
	}

	err := root.Execute([]string{"evalute"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), `did you mean "evaluate"`) {
		t.Errorf("error = %q, want suggestion for 'evaluate'", err.Error())
	}
}

func TestCommand_Execute_HelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "trustplane",
				Summary: "Identity and policy control plane",
				Subcommands: []*Command{
					{Name: "audit", Summary: "Inspect the audit trail"},
				},
			}
			if err := root.Execute([]string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
		})
	}
}

func TestCommand_Execute_NoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "trustplane",
		Subcommands: []*Command{
			{Name: "audit", Summary: "Inspect the audit trail"},
		},
	}

	err := root.Execute([]string{})
	if err == nil || !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %v, want 'subcommand required'", err)
	}
}

func TestCommand_PrintHelp(t *testing.T) {
	var p struct {
		Namespace string `flag:"namespace" desc:"evaluation namespace"`
	}
	command := &Command{
		Name:        "trustplane",
		Description: "Identity and policy control plane.",
		Params:      func() any { return &p },
		Subcommands: []*Command{
			{Name: "evaluate", Summary: "Decide an access request"},
			{Name: "audit", Summary: "Inspect the audit trail"},
		},
		Examples: []Example{
			{
				Description: "Check a request against the demo policies",
				Command:     "trustplane evaluate --demo --subject admin@example.com",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Identity and policy control plane.",
		"Usage:",
		"trustplane <command> [flags]",
		"Commands:",
		"evaluate",
		"Decide an access request",
		"Flags:",
		"--namespace",
		"Examples:",
		"# Check a request against the demo policies",
		"Run 'trustplane <command> --help'",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\nFull output:\n%s", want, output)
		}
	}
}

func TestCommand_FullName(t *testing.T) {
	root := &Command{Name: "trustplane"}
	token := &Command{Name: "token", parent: root}
	issue := &Command{Name: "issue", parent: token}

	if got := issue.fullName(); got != "trustplane token issue" {
		t.Errorf("issue.fullName() = %q, want %q", got, "trustplane token issue")
	}
}
