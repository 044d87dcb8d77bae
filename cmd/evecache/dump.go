package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/PaesslerAG/jsonpath"
	"github.com/google/subcommands"

	"github.com/andreyvit/evecache"
)

type dumpCmd struct {
	query   string
	json    bool
	inline  bool
	summary bool
	tree    bool
}

func (*dumpCmd) Name() string     { return "dump" }
func (*dumpCmd) Synopsis() string { return "print the values stored in cache files" }
func (*dumpCmd) Usage() string {
	return `evecache dump [-json] [-inline] [-tree] [-q <jsonpath>] <file.cache>...

  Decodes each file and prints its top-level values. With -q, the values are
  converted to JSON and the query is evaluated against the array of
  top-level values, e.g. -q '$[0][1]' selects the payload of a cached call.
`
}

func (c *dumpCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.query, "q", "", "JSONPath query evaluated against the top-level values. Implies -json.")
	f.BoolVar(&c.json, "json", false, "Print JSON instead of the Python-like notation.")
	f.BoolVar(&c.inline, "inline", true, "Replace shared references with the values they point to.")
	f.BoolVar(&c.summary, "stats", false, "Print decode statistics after each file.")
	f.BoolVar(&c.tree, "tree", false, "Print values, shared objects and rows one field per line.")
}

func (c *dumpCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	status := subcommands.ExitSuccess
	for _, path := range f.Args() {
		if err := c.dump(path, opt, f.NArg() > 1); err != nil {
			fail(err)
			status = subcommands.ExitFailure
		}
	}
	return status
}

func (c *dumpCmd) dump(path string, opt evecache.Options, header bool) error {
	doc, err := decodeFile(path, opt)
	if err != nil {
		return err
	}
	values := doc.Values
	if c.inline {
		values = make([]evecache.Value, len(doc.Values))
		for i, v := range doc.Values {
			if values[i], err = doc.Inline(v); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
	}

	if header {
		fmt.Fprintf(stdout, "# %s\n", path)
	}
	if c.tree {
		fmt.Fprint(stdout, doc.Dump(evecache.DumpAll))
		return nil
	}
	if c.query == "" && !c.json {
		for _, v := range values {
			fmt.Fprintln(stdout, v)
		}
	} else {
		out, err := toJSON(values)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if c.query != "" {
			if out, err = jsonpath.Get(c.query, out); err != nil {
				return fmt.Errorf("%s: query %q: %w", path, c.query, err)
			}
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	if c.summary {
		fmt.Fprintf(os.Stderr, "%s: %d bytes, %d values, %d shared, %d refs, %d rows, %d streams\n", path, doc.Stats.Bytes, doc.Stats.Values, doc.Stats.Shared, doc.Stats.Refs, doc.Stats.Rows, doc.Stats.Streams)
	}
	return nil
}

// toJSON converts values into the generic form produced by encoding/json,
// which is what jsonpath expects (float64 numbers, []any, map[string]any).
func toJSON(values []evecache.Value) (any, error) {
	plain := make([]any, len(values))
	for i, v := range values {
		plain[i] = v.Interface()
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}
