// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bureau-foundation/trustplane/cmd/trustplane/cli"
	"github.com/bureau-foundation/trustplane/lib/audit"
	"github.com/bureau-foundation/trustplane/lib/codec"
	"github.com/bureau-foundation/trustplane/lib/schema"
)

func auditCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "audit",
		Summary: "Inspect, verify, and export the audit trail",
		Description: `Every identity change, credential issuance, policy change, and access
decision is appended to a hash-chained audit trail. With audit.persist
set, the chain is stored in paths.audit_db and reloaded (and verified)
on every start.`,
		Subcommands: []*cli.Command{
			auditVerifyCommand(out),
			auditExportCommand(out),
			auditRecentCommand(out),
			auditShowCommand(out),
			auditStatsCommand(out),
		},
	}
}

type chainSummary struct {
	Source string      `json:"source"`
	Events int         `json:"events"`
	Head   schema.Hash `json:"head"`
}

func summarize(source string, events []schema.AuditEvent) chainSummary {
	summary := chainSummary{Source: source, Events: len(events)}
	if len(events) > 0 {
		summary.Head = events[len(events)-1].Hash
	}
	return summary
}

func auditVerifyCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
		File        string `json:"file"        flag:"file,f"      desc:"verify an export file instead of the stored trail"`
		Compression string `json:"compression" flag:"compression" desc:"compression of --file: none, lz4, or zstd" default:"zstd"`
	}

	return &cli.Command{
		Name:    "verify",
		Summary: "Check the integrity of the hash chain",
		Usage:   "trustplane audit verify [--file <export> [--compression <c>]] [flags]",
		Examples: []cli.Example{
			{
				Description: "Verify the persisted trail",
				Command:     "trustplane audit verify",
			},
			{
				Description: "Verify an archived export",
				Command:     "trustplane audit verify --file audit-2026-03.cbor.zst",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			var summary chainSummary
			if params.File != "" {
				compression, err := audit.ParseCompression(params.Compression)
				if err != nil {
					return cli.Validation("--compression: %v", err)
				}
				file, err := os.Open(params.File)
				if err != nil {
					return err
				}
				defer file.Close()
				events, err := audit.ReadExport(file, compression)
				if err != nil {
					return err
				}
				if err := audit.VerifyChain(events); err != nil {
					return fmt.Errorf("%s: %w", params.File, err)
				}
				summary = summarize(params.File, events)
			} else {
				// Open restores and verifies a persisted chain.
				plane, cfg, err := params.open(context.Background(), "audit/verify")
				if err != nil {
					return err
				}
				defer plane.Close()
				if err := plane.Trail.Verify(); err != nil {
					return err
				}
				summary = summarize(cfg.Paths.AuditDB, plane.Trail.Events())
			}

			if done, err := params.EmitJSON(out, summary); done {
				return err
			}
			fmt.Fprintf(out, "%s: %d events, chain intact\n", summary.Source, summary.Events)
			if summary.Events > 0 {
				fmt.Fprintf(out, "  head %s\n", summary.Head)
			}
			return nil
		},
	}
}

func auditExportCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		Output      string `json:"output"      flag:"output,o"    desc:"file to write (default: stdout)"`
		Compression string `json:"compression" flag:"compression" desc:"none, lz4, or zstd (default: audit.export_compression)"`
	}

	return &cli.Command{
		Name:    "export",
		Summary: "Write the trail as a compressed CBOR sequence",
		Usage:   "trustplane audit export [--output <file>] [--compression <c>] [flags]",
		Examples: []cli.Example{
			{
				Description: "Archive the trail with zstd",
				Command:     "trustplane audit export -o audit-2026-03.cbor.zst --compression zstd",
			},
		},
		Params: func() any { return &params },
		Run: func(args []string) error {
			plane, cfg, err := params.open(context.Background(), "audit/export")
			if err != nil {
				return err
			}
			defer plane.Close()

			name := params.Compression
			if name == "" {
				name = cfg.Audit.ExportCompression
			}
			compression, err := audit.ParseCompression(name)
			if err != nil {
				return cli.Validation("--compression: %v", err)
			}

			events := plane.Trail.Events()
			if params.Output == "" {
				return audit.Export(out, events, compression)
			}
			file, err := os.OpenFile(params.Output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
			if err != nil {
				return err
			}
			if err := audit.Export(file, events, compression); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d events to %s (%s)\n", len(events), params.Output, compression)
			return nil
		},
	}
}

func auditRecentCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
		Limit int `json:"limit" flag:"limit,l" desc:"number of events; 0 shows all" default:"20"`
	}

	return &cli.Command{
		Name:    "recent",
		Summary: "Show the most recent events, newest first",
		Usage:   "trustplane audit recent [--limit <n>] [flags]",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			plane, _, err := params.open(context.Background(), "audit/recent")
			if err != nil {
				return err
			}
			defer plane.Close()

			var events []schema.AuditEvent
			for event := range plane.Trail.Recent(params.Limit) {
				events = append(events, event)
			}
			if done, err := params.EmitJSON(out, events); done {
				return err
			}

			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SEQ\tTIME\tACTION\tOUTCOME\tACTOR\tTARGET\tREASON")
			for _, event := range events {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
					event.Sequence, event.Timestamp.Format(time.RFC3339), event.Action,
					event.Outcome, event.Actor, event.Target, event.Reason)
			}
			return tw.Flush()
		},
	}
}

// shownEvent is an event with the CBOR payload its hash covers.
type shownEvent struct {
	Event      schema.AuditEvent `json:"event"`
	Diagnostic string            `json:"cbor_diagnostic"`
}

func auditShowCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
	}

	return &cli.Command{
		Name:    "show",
		Summary: "Show one event and the exact payload its hash covers",
		Description: `Print the event with the given sequence number, followed by the CBOR
diagnostic notation (RFC 8949) of the encoding the chain hash is
computed over. Useful when checking a chain by hand.`,
		Usage:  "trustplane audit show <sequence> [flags]",
		Params: func() any { return &params },
		Run: func(args []string) error {
			if len(args) != 1 {
				return cli.Validation("expected one sequence number, got %d arguments", len(args))
			}
			sequence, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || sequence == 0 {
				return cli.Validation("sequence %q: must be a positive integer", args[0])
			}

			plane, _, err := params.open(context.Background(), "audit/show")
			if err != nil {
				return err
			}
			defer plane.Close()

			events := plane.Trail.Events()
			if sequence > uint64(len(events)) {
				return fmt.Errorf("audit event %d: %w", sequence, schema.ErrNotFound)
			}
			event := events[sequence-1]
			payload, err := audit.ChainPayload(event)
			if err != nil {
				return err
			}
			diagnostic, err := codec.Diagnose(payload)
			if err != nil {
				return fmt.Errorf("diagnosing event %d: %w", sequence, err)
			}

			shown := shownEvent{Event: event, Diagnostic: diagnostic}
			if done, err := params.EmitJSON(out, shown); done {
				return err
			}
			tw := tabwriter.NewWriter(out, 2, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "sequence\t%d\n", event.Sequence)
			fmt.Fprintf(tw, "time\t%s\n", event.Timestamp.Format(time.RFC3339Nano))
			fmt.Fprintf(tw, "kind\t%s\n", event.Kind)
			fmt.Fprintf(tw, "action\t%s\n", event.Action)
			fmt.Fprintf(tw, "outcome\t%s\n", event.Outcome)
			fmt.Fprintf(tw, "actor\t%s\n", event.Actor)
			fmt.Fprintf(tw, "target\t%s\n", event.Target)
			fmt.Fprintf(tw, "previous\t%s\n", event.PreviousHash)
			fmt.Fprintf(tw, "hash\t%s\n", event.Hash)
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%s\n", diagnostic)
			return nil
		},
	}
}

func auditStatsCommand(out io.Writer) *cli.Command {
	var params struct {
		planeParams
		cli.JSONOutput
		Namespace string `json:"namespace" flag:"namespace,n" desc:"only count events in this namespace"`
	}

	return &cli.Command{
		Name:    "stats",
		Summary: "Count identities, policies, and audit outcomes",
		Usage:   "trustplane audit stats [--namespace <ns>] [flags]",
		Params:  func() any { return &params },
		Run: func(args []string) error {
			plane, _, err := params.open(context.Background(), "audit/stats")
			if err != nil {
				return err
			}
			defer plane.Close()

			stats := plane.Stats(params.Namespace)
			if done, err := params.EmitJSON(out, stats); done {
				return err
			}
			fmt.Fprintf(out, "identities       %d\n", stats.Identities)
			fmt.Fprintf(out, "policies         %d (%d active)\n", stats.Policies, stats.ActivePolicies)
			fmt.Fprintf(out, "audit events     %d\n", stats.Audit.Total)
			fmt.Fprintf(out, "  allow          %d\n", stats.Audit.AllowCount)
			fmt.Fprintf(out, "  deny           %d\n", stats.Audit.DenyCount)
			fmt.Fprintf(out, "  error          %d\n", stats.Audit.ErrorCount)
			return nil
		},
	}
}
