package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/andreyvit/evecache"
)

type rowsCmd struct {
	markdown bool
	style    string
	width    int
	only     string
}

func (*rowsCmd) Name() string     { return "rows" }
func (*rowsCmd) Synopsis() string { return "print the rows found in cache files as tables" }
func (*rowsCmd) Usage() string {
	return `evecache rows [-md] [-style <name>] [-descriptor <name>] <file.cache>...

  Decodes each file and prints every row, grouped by descriptor, as a
  Markdown table. With -md the tables are rendered for the terminal.
`
}

func (c *rowsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.markdown, "md", false, "Render the tables for the terminal.")
	f.StringVar(&c.style, "style", "auto", "Rendering style: auto, dark, light, notty.")
	f.IntVar(&c.width, "width", 120, "Word wrap width of rendered output.")
	f.StringVar(&c.only, "descriptor", "", "Only print rows of this descriptor.")
}

func (c *rowsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	opt, release, err := decodeOptions()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer release()

	var buf strings.Builder
	status := subcommands.ExitSuccess
	for _, path := range f.Args() {
		doc, err := decodeFile(path, opt)
		if err != nil {
			fail(err)
			status = subcommands.ExitFailure
			continue
		}
		groups, order := collectRows(doc)
		fmt.Fprintf(&buf, "# %s\n\n", path)
		for _, name := range order {
			if c.only != "" && name != c.only {
				continue
			}
			writeTable(&buf, groups[name])
		}
	}

	out := buf.String()
	if c.markdown {
		if out, err = c.render(out); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
	}
	fmt.Fprint(stdout, out)
	return status
}

func (c *rowsCmd) render(md string) (string, error) {
	style := glamour.WithAutoStyle()
	if c.style != "auto" {
		style = glamour.WithStandardStyle(c.style)
	}
	tr, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(c.width))
	if err != nil {
		return "", err
	}
	return tr.Render(md)
}

// collectRows finds every row reachable from the top-level values, grouped
// by descriptor name in order of first appearance.
func collectRows(doc *evecache.Document) (map[string][]*evecache.Row, []string) {
	groups := make(map[string][]*evecache.Row)
	var order []string
	seen := make(map[int]bool)
	var walk func(v evecache.Value)
	walk = func(v evecache.Value) {
		if idx, ok := v.RefIndex(); ok {
			if seen[idx] {
				return
			}
			seen[idx] = true
			target, err := doc.Resolve(v)
			if err != nil {
				return
			}
			v = target
		}
		switch v.Kind() {
		case evecache.KindObject:
			row, _ := v.AsRow()
			name := row.Descriptor().Name()
			if _, ok := groups[name]; !ok {
				order = append(order, name)
			}
			groups[name] = append(groups[name], row)
		case evecache.KindTuple, evecache.KindList:
			for _, item := range v.Items() {
				walk(item)
			}
		case evecache.KindDict:
			for _, e := range v.Entries() {
				walk(e.Key)
				walk(e.Value)
			}
		}
	}
	for _, v := range doc.Values {
		walk(v)
	}
	return groups, order
}

func writeTable(w *strings.Builder, rows []*evecache.Row) {
	desc := rows[0].Descriptor()
	fmt.Fprintf(w, "## %s (%d rows)\n\n|", desc.Name(), len(rows))
	for _, col := range desc.Columns() {
		fmt.Fprintf(w, " %s |", col.Name)
	}
	w.WriteString("\n|")
	for range desc.Len() {
		w.WriteString(" --- |")
	}
	w.WriteString("\n")
	for _, row := range rows {
		w.WriteString("|")
		for i := range row.Len() {
			fmt.Fprintf(w, " %s |", cell(row.Descriptor().Column(i), row.Field(i)))
		}
		w.WriteString("\n")
	}
	w.WriteString("\n")
}

func cell(col evecache.Column, v evecache.Value) string {
	if v.IsNone() {
		return ""
	}
	switch col.Type {
	case evecache.AdoCurrency:
		if raw, ok := v.AsInt(); ok {
			return evecache.CurrencyDecimal(raw).StringFixed(2)
		}
	case evecache.AdoFileTime:
		if ticks, ok := v.AsInt(); ok {
			return evecache.FileTime(ticks).Format("2006-01-02 15:04:05")
		}
	case evecache.AdoDate:
		if days, ok := v.AsFloat(); ok {
			return evecache.OleDate(days).Format("2006-01-02 15:04:05")
		}
	}
	if s, ok := v.AsStr(); ok {
		return strings.ReplaceAll(s, "|", `\|`)
	}
	return v.String()
}
