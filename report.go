// ABOUTME: Renders Power BI client results as terminal tables or JSON.
// ABOUTME: Sizes columns to the terminal and colors refresh statuses.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"golang.org/x/term"

	"github.com/rcresswell/pbi-report/powerbi"
)

type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, out string) *printer {
	return &printer{w: w, json: out == "json"}
}

func (p *printer) printJSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) newTable(widths map[int]int) *tablewriter.Table {
	table := tablewriter.NewWriter(p.w)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Formatting.AutoWrap = tw.WrapTruncate
		if widths != nil {
			cfg.Widths.PerColumn = widths
		}
	})
	return table
}

func (p *printer) nameIDs(kind string, ids map[string]string) error {
	if p.json {
		return p.printJSON(ids)
	}
	if len(ids) == 0 {
		color.New(color.Faint).Fprintf(p.w, "  No %ss found.\n", strings.ToLower(kind))
		return nil
	}

	names := make([]string, 0, len(ids))
	for name := range ids {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, ids[name]})
	}
	return p.grid([]string{kind, "ID"}, rows)
}

func (p *printer) reports(reports []powerbi.Report) error {
	if p.json {
		return p.printJSON(reports)
	}
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{r.Name, r.ID, r.DatasetID, r.WebURL})
	}
	return p.grid([]string{"Report", "ID", "Dataset", "URL"}, rows)
}

func (p *printer) datasets(datasets []powerbi.Dataset) error {
	if p.json {
		return p.printJSON(datasets)
	}
	rows := make([][]string, 0, len(datasets))
	for _, d := range datasets {
		rows = append(rows, []string{d.Name, d.ID, d.ConfiguredBy, fmt.Sprintf("%t", d.IsRefreshable)})
	}
	return p.grid([]string{"Dataset", "ID", "Configured By", "Refreshable"}, rows)
}

func (p *printer) users(users []powerbi.UserAccess) error {
	if p.json {
		return p.printJSON(users)
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.Name, u.Email, u.Rights})
	}
	return p.grid([]string{"Name", "Email", "Rights"}, rows)
}

func (p *printer) userDetails(users []powerbi.User) error {
	if p.json {
		return p.printJSON(users)
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{u.DisplayName, u.EmailAddress, u.AccessRight(), u.PrincipalType, u.UserType, u.Identifier})
	}
	return p.grid([]string{"Name", "Email", "Rights", "Principal", "User Type", "Identifier"}, rows)
}

func (p *printer) schedule(s *powerbi.Schedule) error {
	if p.json {
		return p.printJSON(s)
	}

	state := color.New(color.FgGreen, color.Bold).Sprint("enabled")
	if !s.Enabled {
		state = color.New(color.FgRed, color.Bold).Sprint("disabled")
	}

	fmt.Fprintf(p.w, "Dataset:   %s\n", s.DatasetID)
	fmt.Fprintf(p.w, "Schedule:  %s\n", state)
	fmt.Fprintf(p.w, "Days:      %s\n", strings.Join(s.Days, ", "))
	fmt.Fprintf(p.w, "Times:     %s\n", strings.Join(s.Times, ", "))
	fmt.Fprintf(p.w, "Time zone: %s\n", s.TimeZone)
	if s.NotifyOption != "" {
		fmt.Fprintf(p.w, "Notify:    %s\n", s.NotifyOption)
	}
	return nil
}

func (p *printer) refreshInfo(info *powerbi.RefreshInfo) error {
	if p.json {
		return p.printJSON(info)
	}
	if info.InProgress {
		color.New(color.FgYellow, color.Bold).Fprintln(p.w, info.Status)
		return nil
	}
	return p.refreshResults([]powerbi.RefreshResult{{DatasetID: info.DatasetID, Info: info}})
}

func (p *printer) refreshHistory(history []powerbi.Refresh) error {
	if p.json {
		return p.printJSON(history)
	}
	rows := make([][]string, 0, len(history))
	for _, r := range history {
		rows = append(rows, []string{r.StartTime, r.EndTime, statusText(r.Status), r.RefreshType, r.RequestID})
	}
	return p.grid([]string{"Start", "End", "Status", "Type", "Request"}, rows)
}

type refreshResultJSON struct {
	DatasetID string               `json:"datasetId"`
	Name      string               `json:"name,omitempty"`
	Info      *powerbi.RefreshInfo `json:"info,omitempty"`
	Error     string               `json:"error,omitempty"`
}

func (p *printer) refreshResults(results []powerbi.RefreshResult) error {
	if p.json {
		out := make([]refreshResultJSON, 0, len(results))
		for _, r := range results {
			item := refreshResultJSON{DatasetID: r.DatasetID, Name: r.Name, Info: r.Info}
			if r.Err != nil {
				item.Error = r.Err.Error()
			}
			out = append(out, item)
		}
		return p.printJSON(out)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		name := r.Name
		if name == "" {
			name = r.DatasetID
		}
		switch {
		case r.Err != nil:
			rows = append(rows, []string{name, "", "", "", color.New(color.FgRed).Sprint("error"), ""})
		case r.Info.InProgress:
			rows = append(rows, []string{name, "", "", "", color.New(color.FgYellow).Sprint("refreshing"), ""})
		default:
			i := r.Info
			rows = append(rows, []string{name, localTime(i.Start), localTime(i.End), i.Span, statusText(i.Status), i.Type})
		}
	}
	if err := p.grid([]string{"Dataset", "Start", "End", "Span", "Status", "Type"}, rows); err != nil {
		return err
	}

	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "  warning: %s: %v\n", r.Name, r.Err)
		}
	}
	return nil
}

func (p *printer) queryTable(t *powerbi.Table, delimited bool) error {
	if p.json {
		return p.printJSON(struct {
			Columns []string   `json:"columns"`
			Rows    [][]string `json:"rows"`
		}{t.Columns, t.Rows})
	}
	if delimited {
		fmt.Fprint(p.w, t.HeaderLine("|"))
		for _, line := range t.Lines("|") {
			fmt.Fprint(p.w, line)
		}
		return nil
	}
	if len(t.Columns) == 0 {
		color.New(color.Faint).Fprintln(p.w, "  Query returned no rows.")
		return nil
	}
	return p.grid(t.Columns, t.Rows)
}

func (p *printer) grid(header []string, rows [][]string) error {
	table := p.newTable(columnWidths(terminalWidth(), header, rows))

	table.Header(toCells(header)...)
	for _, row := range rows {
		if err := table.Append(toCells(row)...); err != nil {
			return err
		}
	}
	return table.Render()
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func terminalWidth() int {
	const minWidth = 80

	width := 120
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	if width < minWidth {
		width = minWidth
	}
	return width
}

// columnWidths returns nil when every column fits at its natural width.
// Otherwise the space left after separators is shared in proportion to
// each column's widest cell.
func columnWidths(termWidth int, header []string, rows [][]string) map[int]int {
	if len(header) == 0 {
		return nil
	}

	natural := make([]int, len(header))
	for i, h := range header {
		natural[i] = len(h)
	}
	for _, row := range rows {
		for i, v := range row {
			if i < len(natural) && len(v) > natural[i] {
				natural[i] = len(v)
			}
		}
	}

	// One separator plus one space of padding each side per column.
	available := termWidth - 3*len(header) - 1
	total := 0
	for _, n := range natural {
		total += n
	}
	if total <= available {
		return nil
	}

	widths := make(map[int]int, len(natural))
	for i, n := range natural {
		w := available * n / total
		if w < 4 {
			w = 4
		}
		widths[i] = w
	}
	return widths
}

func statusText(status string) string {
	switch status {
	case "Completed":
		return color.New(color.FgGreen).Sprint(status)
	case "Failed", "Cancelled", "Disabled":
		return color.New(color.FgRed).Sprint(status)
	case "Unknown", powerbi.StatusRefreshing:
		return color.New(color.FgYellow).Sprint(status)
	}
	return status
}

// localTime shows an API timestamp in the local zone, or as-is if it does not parse.
func localTime(v string) string {
	if v == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return v
	}
	return strings.ToLower(t.Local().Format("Mon 1/2 3:04pm"))
}

// withSpinner shows progress on stderr while fn runs.
func withSpinner(label string, fn func(update func(string)) error) error {
	s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Prefix = "["
	s.Suffix = "] " + label
	s.Start()

	err := fn(func(msg string) {
		s.Lock()
		s.Suffix = "] " + msg
		s.Unlock()
	})
	s.Stop()
	return err
}
