package evecache

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpValues = DumpFlags(1 << iota)
	DumpShares
	DumpStats
	DumpRows

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)

	indentStep = "  "
)

var dumpSep = strings.Repeat("-", 60)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump describes the document for debugging: top-level values, the slots
// of the share table, and decode statistics. With DumpRows, objects are
// expanded one field per line.
func (doc *Document) Dump(f DumpFlags) string {
	var buf strings.Builder
	if f.Contains(DumpValues) {
		fmt.Fprintln(&buf, rpadf('=', "== values (%d) ", len(doc.Values)))
		for i, v := range doc.Values {
			doc.dumpValue(&buf, fmt.Sprintf("values.%d", i), f, v)
		}
	}
	if f.Contains(DumpShares) && doc.Shares != nil {
		fmt.Fprintln(&buf, rpadf('=', "== shares (%d of %d) ", doc.Shares.Len(), doc.Shares.Cap()))
		for i := range doc.Shares.Cap() {
			v, err := doc.Shares.Resolve(i)
			if err != nil {
				fmt.Fprintf(&buf, "shares.%d ** ERROR: %v\n", i, err)
				continue
			}
			doc.dumpValue(&buf, fmt.Sprintf("shares.%d", i), f, v)
		}
	}
	if f.Contains(DumpStats) {
		fmt.Fprintln(&buf, dumpSep)
		s := doc.Stats
		fmt.Fprintf(&buf, "stats: bytes = %d, values = %d, shared = %d, refs = %d, rows = %d, streams = %d\n", s.Bytes, s.Values, s.Shared, s.Refs, s.Rows, s.Streams)
	}
	return buf.String()
}

func (doc *Document) dumpValue(w *strings.Builder, prefix string, f DumpFlags, v Value) {
	if !f.Contains(DumpRows) {
		fmt.Fprintf(w, "%s = %v\n", prefix, v)
		return
	}
	fmt.Fprintf(w, "%s =", prefix)
	dumpTree(w, "", v)
}

func dumpTree(w *strings.Builder, indent string, v Value) {
	switch v.kind {
	case KindTuple, KindList:
		fmt.Fprintf(w, " %v(%d)\n", v.kind, len(v.items))
		for i, item := range v.items {
			fmt.Fprintf(w, "%s%s%d:", indent, indentStep, i)
			dumpTree(w, indent+indentStep, item)
		}
	case KindDict:
		fmt.Fprintf(w, " dict(%d)\n", len(v.pairs))
		for _, e := range v.pairs {
			fmt.Fprintf(w, "%s%s%v:", indent, indentStep, e.Key)
			dumpTree(w, indent+indentStep, e.Value)
		}
	case KindObject:
		fmt.Fprintf(w, " %s\n", v.row.desc.name)
		for i, col := range v.row.desc.columns {
			fmt.Fprintf(w, "%s%s%s:", indent, indentStep, col)
			dumpTree(w, indent+indentStep, v.row.fields[i])
		}
	default:
		fmt.Fprintf(w, " %v\n", v)
	}
}

func rpadf(pad rune, format string, args ...any) string {
	s := fmt.Sprintf(format, args...)
	return rpad(s, 80, pad)
}
