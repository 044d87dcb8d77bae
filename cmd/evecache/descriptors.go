package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/andreyvit/evecache"
	"github.com/andreyvit/evecache/orders"
)

type descriptorsCmd struct {
	builtin bool
}

func (*descriptorsCmd) Name() string     { return "descriptors" }
func (*descriptorsCmd) Synopsis() string { return "manage the descriptor database" }
func (*descriptorsCmd) Usage() string {
	return `evecache descriptors list
evecache descriptors import [-builtin] [<file.json>...]
evecache descriptors export
evecache descriptors delete <name>...

  Descriptors map row layouts to column names and ADO types. JSON files hold
  an array of {"name": ..., "columns": [{"name": ..., "type": ...}]}
  objects; types are names (i4, r8, cy, filetime, str, ...) or numeric
  DBTYPE codes. -builtin also imports the layouts known to this tool.
`
}

func (c *descriptorsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.builtin, "builtin", false, "Import the built-in descriptors too.")
}

func (c *descriptorsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	verb, args := f.Arg(0), f.Args()[1:]

	db, err := evecache.OpenDescriptorDB(*dbPath, evecache.DescriptorDBOptions{
		ReadOnly: verb == "list" || verb == "export",
	})
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer db.Close()

	switch verb {
	case "list":
		err = c.list(db)
	case "export":
		err = c.export(db)
	case "import":
		err = c.importFiles(db, args)
	case "delete":
		for _, name := range args {
			if err = db.DeleteDescriptor(name); err != nil {
				break
			}
		}
	default:
		f.Usage()
		return subcommands.ExitUsageError
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *descriptorsCmd) list(db *evecache.DescriptorDB) error {
	descs, err := db.ListDescriptors()
	if err != nil {
		return err
	}
	for _, desc := range descs {
		fmt.Fprintln(stdout, desc)
	}
	return nil
}

func (c *descriptorsCmd) export(db *evecache.DescriptorDB) error {
	descs, err := db.ListDescriptors()
	if err != nil {
		return err
	}
	return evecache.WriteDescriptorsJSON(stdout, descs)
}

func (c *descriptorsCmd) importFiles(db *evecache.DescriptorDB, paths []string) error {
	var descs []*evecache.Descriptor
	if c.builtin {
		descs = append(descs, orders.Descriptor)
	}
	for _, path := range paths {
		m, err := evecache.LoadDescriptorsJSONFile(path)
		if err != nil {
			return err
		}
		for _, desc := range m {
			descs = append(descs, desc)
		}
	}
	for _, desc := range descs {
		if err := db.PutDescriptor(desc); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "imported %d descriptors into %s\n", len(descs), db.Path())
	return nil
}
