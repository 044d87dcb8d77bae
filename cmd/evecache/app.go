package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/andreyvit/evecache"
)

const dbEnvVar = "EVECACHE_DB"

var (
	verbose         = flag.Bool("v", false, "Log debug messages to stderr.")
	dbPath          = flag.String("db", defaultDBPath(), "Path to the descriptor database (env "+dbEnvVar+").")
	descriptorsFile = flag.String("descriptors", "", "Read descriptors from this JSON file instead of the database.")
)

// stdout receives command output.
var stdout io.Writer = os.Stdout

func defaultDBPath() string {
	if p := os.Getenv(dbEnvVar); p != "" {
		return p
	}
	return "evecache.db"
}

func setupLogging() {
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openDescriptors returns the descriptor source selected by the global
// flags, and a function to release it.
func openDescriptors() (evecache.DescriptorSource, func(), error) {
	if *descriptorsFile != "" {
		m, err := evecache.LoadDescriptorsJSONFile(*descriptorsFile)
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	}
	if _, err := os.Stat(*dbPath); err != nil {
		slog.Debug("no descriptor database, objects and streams will not decode", "path", *dbPath)
		return evecache.DescriptorMap{}, func() {}, nil
	}
	db, err := evecache.OpenDescriptorDB(*dbPath, evecache.DescriptorDBOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	return db, func() { db.Close() }, nil
}

func decodeOptions() (evecache.Options, func(), error) {
	src, release, err := openDescriptors()
	if err != nil {
		return evecache.Options{}, nil, err
	}
	rows := evecache.NewRowDecoder(evecache.NewDescriptorStore(src))
	return evecache.Options{Logger: slog.Default(), Rows: rows}, release, nil
}

func decodeFile(path string, opt evecache.Options) (*evecache.Document, error) {
	f, err := evecache.OpenCacheFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := evecache.NewCacheBuffer(f, opt)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return buf.DecodeAll()
}

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
}
