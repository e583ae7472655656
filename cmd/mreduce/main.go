// Command mreduce aggregates storage manifest records into
// per-owner, per-namespace usage counters. It reads newline-delimited
// JSON records from stdin and writes one JSON line per (owner,
// namespace) pair to stdout.
/*
 * Adapted from the original khalfella/storage-reduce1 main().
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/khalfella/storage-reduce1/rcos"
	"github.com/khalfella/storage-reduce1/reduce"
	"github.com/khalfella/storage-reduce1/rlog"
)

const (
	defaultWorkers    = 16
	defaultArenaMB    = 128
	defaultScratchDir = "/var/tmp"
	defaultNamespaces = "stor public jobs reports"
	namespacesEnvVar  = "NAMESPACES"
)

var (
	workers    = flag.Int("t", defaultWorkers, "number of reducer workers")
	namespaces = flag.String("n", "", fmt.Sprintf("namespaces (default: %q, or $%s)", defaultNamespaces, namespacesEnvVar))
	scratchDir = flag.String("d", defaultScratchDir, "temp directory for per-worker scratch files")
	arenaMB    = flag.Int("m", defaultArenaMB, "mapped memory per worker, in megabytes")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *workers <= 0 {
		rcos.Exitf(rcos.ExitConfig, "invalid number of workers %q", flag.Lookup("t").Value.String())
	}
	if *arenaMB <= 0 {
		rcos.Exitf(rcos.ExitConfig, "invalid per-worker memory size %q", flag.Lookup("m").Value.String())
	}
	if !rcos.IsPowerOfTwo(*workers) {
		rcos.Exitf(rcos.ExitConfig, "number of workers is not a power of two")
	}

	nsList, err := parseNamespaces(*namespaces)
	if err != nil {
		rcos.Exitf(rcos.ExitConfig, "failed to parse namespaces: %v", err)
	}

	cfg := reduce.Config{
		Workers:    *workers,
		Namespaces: nsList,
		ScratchDir: *scratchDir,
		ArenaBytes: int64(*arenaMB) * rcos.MiB,
	}

	driver, err := reduce.NewDriver(cfg)
	if err != nil {
		rcos.Exitf(rcos.ExitConfig, "failed to initialize: %v", err)
	}
	defer driver.Close()

	if err := driver.Run(context.Background(), os.Stdin, os.Stdout); err != nil {
		rcos.ExitLogf(rcos.ExitResource, "%v", err)
	}

	if err := driver.DumpMetrics(os.Stderr); err != nil {
		rlog.Warnf("failed to dump metrics: %v", err)
	}
	rlog.Flush()
}

// parseNamespaces splits a space-separated namespace list, skipping
// repeated or leading/trailing separators, and falls back to
// $NAMESPACES and then defaultNamespaces when ens is empty.
func parseNamespaces(ens string) ([]string, error) {
	if ens == "" {
		ens = os.Getenv(namespacesEnvVar)
	}
	if ens == "" {
		ens = defaultNamespaces
	}

	ns := strings.Fields(ens)
	if len(ns) == 0 {
		return nil, fmt.Errorf("no namespaces given")
	}
	if len(ns) > reduce.MaxNamespaces {
		return nil, fmt.Errorf("too many namespaces: %d (max %d)", len(ns), reduce.MaxNamespaces)
	}
	return ns, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: mreduce [-t workers] [-n namespaces] [-d tempdir] [-m arenamb] [-h]\n\n")
	flag.PrintDefaults()
}
