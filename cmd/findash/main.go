package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range commands {
		commander.Register(c, "")
	}

	flag.StringVar(&configPath, "config", defaultConfigPath(), "Path to the YAML configuration file.")
	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
