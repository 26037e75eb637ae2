package cmd

import (
	"fmt"
	"os"
)

func Execute(args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "run":
		runLCA(args[1:])
	case "faire":
		runFaire(args[1:])
	case "fetch":
		runFetch(args[1:])
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "LCAKit - LCA assignment from BLAST tabular output")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  lcakit <command> [options]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  run      Assign per-query LCAs from a BLAST result table")
	fmt.Fprintln(os.Stderr, "  faire    Like run, with domain/phylum ranks, abundance join and raw/final hit tables")
	fmt.Fprintln(os.Stderr, "  fetch    Populate the reference-data cache (FishBase, NCBI taxdump)")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Run 'lcakit <command> -h' for command-specific options.")
}
