package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/c0deZ3R0/fieldsync/report"
)

// errSyncFailures is returned by sync when at least one report failed.
var errSyncFailures = errors.New("some reports failed to sync")

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("fieldsync "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func requireOwner(owner int64) error {
	if owner <= 0 {
		return fmt.Errorf("%w: -owner is required", errUsage)
	}
	return nil
}

// readPayload reads a report payload from path, or stdin when path is "-".
func readPayload(path string) (report.Payload, error) {
	var p report.Payload
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return p, err
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return p, fmt.Errorf("invalid report payload: %w", err)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdSubmit(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("submit")
	owner := fs.Int64("owner", 0, "technician (owner) id")
	file := fs.String("file", "-", "report payload JSON, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}
	payload, err := readPayload(*file)
	if err != nil {
		return err
	}

	out, err := a.engine.SubmitOrQueue(ctx, *owner, payload)
	if err != nil {
		return err
	}
	if out.Duplicates.HasDuplicates {
		fmt.Fprintf(stdout, "warning: %d similar report(s) already queued for client %d on %s\n",
			out.Duplicates.Count, payload.ClientID, payload.DateOfService)
	}
	if out.Submitted {
		fmt.Fprintf(stdout, "submitted: server id %d\n", out.ServerID)
		return nil
	}
	fmt.Fprintf(stdout, "queued offline as %s (%s)\n", out.LocalID, out.Reason)
	return nil
}

func cmdQueue(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("queue")
	owner := fs.Int64("owner", 0, "technician (owner) id")
	file := fs.String("file", "-", "report payload JSON, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}
	payload, err := readPayload(*file)
	if err != nil {
		return err
	}

	id, err := a.repo.Save(ctx, payload, *owner)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, id)
	return nil
}

func cmdList(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("list")
	owner := fs.Int64("owner", 0, "technician (owner) id, 0 for every owner")
	stuck := fs.Bool("stuck", false, "only reports that exhausted their retries")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		entries []report.PendingReport
		err     error
	)
	switch {
	case *stuck:
		if err := requireOwner(*owner); err != nil {
			return err
		}
		entries, err = a.repo.Stuck(ctx, *owner)
	case *owner == 0:
		entries, err = a.repo.ListAll(ctx)
	default:
		entries, err = a.repo.ListByOwner(ctx, *owner)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(stdout, entries)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOWNER\tCLIENT\tDATE\tTYPE\tATTEMPTS\tCREATED\tLAST ERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
			e.ID, e.OwnerID, e.Payload.ClientID, e.Payload.DateOfService, e.Payload.ReportType,
			e.Attempts, e.CreatedAt.Local().Format(time.DateTime), e.LastError)
	}
	return tw.Flush()
}

func cmdRemove(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("remove")
	id := fs.String("id", "", "local report id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", errUsage)
	}

	_, found, err := a.repo.Get(ctx, *id)
	if err != nil {
		return err
	}
	if err := a.repo.Remove(ctx, *id); err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(stdout, "%s was not queued\n", *id)
		return nil
	}
	fmt.Fprintf(stdout, "removed %s\n", *id)
	return nil
}

func cmdSync(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("sync")
	owner := fs.Int64("owner", 0, "technician (owner) id")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	results, err := a.engine.Run(ctx, *owner, true)
	if err != nil {
		return err
	}

	if *asJSON {
		if err := writeJSON(stdout, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Success {
				fmt.Fprintf(stdout, "ok      %s -> %d\n", r.LocalID, r.ServerID)
				continue
			}
			fmt.Fprintf(stdout, "failed  %s: %s\n", r.LocalID, r.Error)
		}
	}
	if report.Summarize(results).Failed > 0 {
		return errSyncFailures
	}
	return nil
}

func cmdDupes(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlagSet("dupes")
	owner := fs.Int64("owner", 0, "technician (owner) id")
	client := fs.Int64("client", 0, "client id")
	date := fs.String("date", "", "date of service, e.g. 2024-05-01")
	kind := fs.String("type", report.TypeInspection, "report type")
	exclude := fs.String("exclude", "", "local id to ignore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOwner(*owner); err != nil {
		return err
	}

	d, err := a.repo.FindDuplicates(ctx, *owner, *client, *date, *kind, *exclude)
	if err != nil {
		return err
	}
	if !d.HasDuplicates {
		fmt.Fprintln(stdout, "no duplicates")
		return nil
	}
	fmt.Fprintf(stdout, "%d queued report(s) match client %d, %s, %s\n", d.Count, *client, *date, *kind)
	return nil
}
