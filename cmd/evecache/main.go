package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	name := path.Base(os.Args[0])
	completion().Complete(name)

	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.Parse()
	setupLogging()
	os.Exit(int(commander.Execute(context.Background())))
}

var commands = []subcommands.Command{
	&dumpCmd{},
	&rowsCmd{},
	&descriptorsCmd{},
	&scanCmd{},
}
