// reloadlog prints the reload history journal of an Ember isolate.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chazu/ember/vm"
)

func main() {
	dbPath := flag.String("db", "ember-reloads.db", "Path to the reload history database")
	limit := flag.Int("n", 20, "Number of reloads to show (newest first)")
	errorsOnly := flag.Bool("errors", false, "Show only failed reloads")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: reloadlog [options]\n\n")
		fmt.Fprintf(os.Stderr, "Prints the reload history journal written by an Ember isolate.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	history, err := vm.OpenReloadHistory(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reloadlog: %v\n", err)
		os.Exit(1)
	}
	defer history.Close()

	recs, err := history.Recent(*limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reloadlog: %v\n", err)
		os.Exit(1)
	}

	for _, rec := range recs {
		if *errorsOnly && rec.Status != vm.ReloadFailed {
			continue
		}
		fmt.Printf("%s  %-5s  %-30s  classes=%d libs=%d  %s\n",
			rec.When.Format("2006-01-02 15:04:05"), rec.Status, rec.RootURL,
			rec.NumClasses, rec.NumLibraries, rec.Duration.Round(0))
		if rec.Error != "" {
			fmt.Printf("    %s\n", rec.Error)
		}
	}
}
