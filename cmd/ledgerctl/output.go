package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/jmerrifield20/ConfidenceLedger/pkg/client"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printReceipt(r *client.Receipt) error {
	if outputJSON {
		return printJSON(r)
	}
	if r == nil {
		return nil
	}
	fmt.Printf("Row:      %d\n", r.Row)
	fmt.Printf("ID:       %s\n", r.ID)
	fmt.Printf("Time:     %s\n", r.Timestamp)
	fmt.Printf("Hash:     %s\n", r.RecordHash)
	fmt.Printf("Identity: %s\n", r.Identity)
	return nil
}

func printAudit(res *client.AuditResult) error {
	if outputJSON {
		return printJSON(res)
	}
	verdict := "PASSED"
	if !res.Passed {
		verdict = "FAILED"
	}
	fmt.Printf("Audit %s: %d row(s) at width %d\n", verdict, res.Report.Rows, res.Report.Width)
	if res.Receipt != nil {
		fmt.Printf("Recorded as row %d (%s)\n", res.Receipt.Row, res.Receipt.ID)
	}
	if len(res.Report.Violations) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROW\tID\tKIND\tEXPECTED\tACTUAL")
	for _, v := range res.Report.Violations {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.Row, v.ID, v.Kind, short(v.Expected), short(v.Actual))
	}
	return w.Flush()
}

func printDeclarationAudit(a *client.DeclarationAudit) error {
	if outputJSON {
		return printJSON(a)
	}
	levels := make([]string, 0, len(a.Levels))
	for l := range a.Levels {
		levels = append(levels, l)
	}
	sort.Strings(levels)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LEVEL\tTOTAL\tLINKED\tUNLINKED")
	for _, l := range levels {
		c := a.Levels[l]
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", l, c.Total, c.Linked, c.Unlinked)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d declaration(s), %d legacy row(s)\n", a.Total, a.LegacyRows)

	for _, group := range []struct {
		title string
		rows  []client.DeclarationSummary
	}{
		{"Unlinked", a.Unlinked},
		{"Violated", a.Violated},
	} {
		if len(group.rows) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", group.title)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tCONFIDENCE ID\tLEVEL\tSTATUS\tDECLARED")
		for _, d := range group.rows {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", d.Row, d.ConfidenceID, d.Level, d.Status, d.DeclaredAt)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// short truncates a hash for table display.
func short(h string) string {
	if len(h) > 16 {
		return h[:16] + "…"
	}
	return h
}
