package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/andreyvit/evecache"
	"github.com/andreyvit/evecache/orders"
)

type scanCmd struct {
	folders stringList
	methods stringList
	workers int
	changed bool
	orders  bool
	noMmap  bool
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "decode every cache file under machoNet folders" }
func (*scanCmd) Usage() string {
	return `evecache scan [-folder <name>]... [-method <name>]... [-changed] [-orders] <machoNet path>...

  Walks the given folders for *.cache files and lists the remote method,
  size and fingerprint of each one, or the reason it could not be read.
  -changed skips files seen unchanged by a previous -changed scan; it needs
  a writable descriptor database. -orders prints market orders instead,
  keeping only the newest file per item type.
`
}

func (c *scanCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.folders, "folder", "Only scan cache folders with this name (repeatable).")
	f.Var(&c.methods, "method", "Only keep artifacts of this remote method (repeatable).")
	f.IntVar(&c.workers, "workers", 0, "Number of files decoded in parallel (default GOMAXPROCS).")
	f.BoolVar(&c.changed, "changed", false, "Skip files whose fingerprint was recorded by a previous scan.")
	f.BoolVar(&c.orders, "orders", false, "Print the market orders found.")
	f.BoolVar(&c.noMmap, "no-mmap", false, "Read files instead of mapping them.")
}

func (c *scanCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	mopt := evecache.ManagerOptions{Workers: c.workers}
	mopt.Logger = slog.Default()
	mopt.NoMmap = c.noMmap

	var src evecache.DescriptorSource
	if c.changed {
		db, err := evecache.OpenDescriptorDB(*dbPath, evecache.DescriptorDBOptions{})
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		defer db.Close()
		mopt.Registry, mopt.SkipUnchanged = db, true
		src = db
		if *descriptorsFile != "" {
			if src, err = evecache.LoadDescriptorsJSONFile(*descriptorsFile); err != nil {
				fail(err)
				return subcommands.ExitFailure
			}
		}
	} else {
		s, release, err := openDescriptors()
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		defer release()
		src = s
	}
	rows := evecache.NewRowDecoder(evecache.NewDescriptorStore(src))
	mopt.Rows = rows

	m := evecache.NewManager(f.Args(), mopt)
	for _, name := range c.folders {
		m.AddCacheFolderFilter(name)
	}
	for _, name := range c.methods {
		m.AddMethodFilter(name)
	}
	entries, err := m.Scan(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	if c.orders {
		imp := &orders.Importer{Rows: rows, Logger: slog.Default()}
		found, err := imp.Import(entries)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		for i := range found {
			fmt.Fprintln(stdout, found[i].String())
		}
		return subcommands.ExitSuccess
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tMETHOD\tSIZE\tFINGERPRINT\tERROR")
	status := subcommands.ExitSuccess
	for _, e := range entries {
		errText := ""
		if e.Err != nil {
			errText = e.Err.Error()
			status = subcommands.ExitFailure
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%016x\t%s\n", e.Path, e.Method, e.Size, e.Fingerprint, errText)
	}
	w.Flush()
	return status
}
