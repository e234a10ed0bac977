package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"paymanager/internal/core"
)

// Format selects how command results are printed.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q: must be table, json or yaml", s)
}

// encode writes v as JSON or YAML. It reports false for the table format.
func encode(w io.Writer, format Format, v any) (bool, error) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writePayments(w io.Writer, format Format, list []core.Payment, loc *time.Location) error {
	if done, err := encode(w, format, list); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tAMOUNT\tDUE\tSTATUS")
	for _, p := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.AmountMoney(), core.FormatDueDate(p.DueAt.In(loc)), p.Status)
	}
	return tw.Flush()
}

func writePayment(w io.Writer, format Format, p core.Payment, loc *time.Location) error {
	if done, err := encode(w, format, p); done {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", p.Name)
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Amount:\t%s\n", p.AmountMoney())
	fmt.Fprintf(tw, "Due:\t%s\n", core.FormatDueDate(p.DueAt.In(loc)))
	fmt.Fprintf(tw, "Status:\t%s\n", p.Status)
	fmt.Fprintf(tw, "Created:\t%s\n", p.CreatedAt.In(loc).Format(time.RFC3339))
	fmt.Fprintf(tw, "Updated:\t%s\n", p.UpdatedAt.In(loc).Format(time.RFC3339))
	return tw.Flush()
}

func percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func euros(v float64) string {
	return core.MoneyFromFloat(v).String()
}

func writeSummary(w io.Writer, format Format, s core.Summary, loc *time.Location) error {
	if done, err := encode(w, format, s); done {
		return err
	}
	health := "n/a"
	if s.Health != nil {
		health = string(*s.Health)
	}
	day := func(t time.Time) string { return t.In(loc).Format("02/01/2006") }

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Payments:\t%d (%d open)\n", s.Count, s.OpenCount)
	fmt.Fprintf(tw, "Total due:\t%s\n", euros(s.TotalDue))
	fmt.Fprintf(tw, "Total paid:\t%s\n", euros(s.TotalPaid))
	fmt.Fprintf(tw, "Total unpaid:\t%s\n", euros(s.TotalUnpaid))
	fmt.Fprintf(tw, "Health:\t%s (%s)\n", health, percent(s.HealthPercent))
	fmt.Fprintf(tw, "Week %s - %s:\t%s unpaid, progress %s\n",
		day(s.Week.Start), day(s.Week.End), euros(s.Week.UnpaidTotal), percent(s.Week.Progress))
	fmt.Fprintf(tw, "Month %s:\t%s unpaid, progress %s\n",
		s.Month.Start.In(loc).Format("01/2006"), euros(s.Month.UnpaidTotal), percent(s.Month.Progress))
	for _, b := range s.Histogram {
		fmt.Fprintf(tw, "  %s:\t%d\n", b.Status, b.Count)
	}
	return tw.Flush()
}

// readBackup decodes a list of payments written by writePayments in the JSON
// or YAML format, chosen by the file extension.
func readBackup(path string) ([]core.Payment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var list []core.Payment
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &list)
	default:
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("read backup %s: %w", path, err)
	}
	return list, nil
}
