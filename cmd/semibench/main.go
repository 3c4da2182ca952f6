// Command semibench runs the GCBench workload against the semispace heap
// and reports collector statistics.
//
// A single run:
//
//	semibench -heap 64MB -max-depth 16
//
// Several configurations back to back, from a YAML file of named flag sets:
//
//	semibench -scenarios bench.yaml -report results.txt
//
// where bench.yaml looks like:
//
//	scenarios:
//	  - name: small
//	    args: "-heap 16MB -max-depth 12 -array 100000"
//	  - name: default
//	    args: "-heap 64MB"
//
// Report files are append-only and flock-guarded, so parallel invocations
// can share one.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/shlex"
	"github.com/inhies/go-bytesize"
	"github.com/mattn/go-colorable"
	"gopkg.in/yaml.v2"

	"github.com/tinygc/semispace"
)

const (
	colorCyan  = "\x1b[36m"
	colorGreen = "\x1b[32m"
	colorRed   = "\x1b[31m"
	colorReset = "\x1b[0m"
)

type options struct {
	heapSize   string
	configPath string
	report     string
	trace      bool
	audit      bool
	minDepth   int
	maxDepth   int
	arrayLen   int
}

func newFlagSet(name string, opts *options) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&opts.heapSize, "heap", "", "total heap size, a power of two (default 64MB)")
	fs.StringVar(&opts.configPath, "config", "", "heap configuration YAML, overridden by -heap")
	fs.StringVar(&opts.report, "report", "", "append a result line to this file")
	fs.BoolVar(&opts.trace, "trace", false, "print one line per collection")
	fs.BoolVar(&opts.audit, "audit", false, "verify the reachable set around every collection")
	fs.IntVar(&opts.minDepth, "min-depth", 4, "smallest short-lived tree depth")
	fs.IntVar(&opts.maxDepth, "max-depth", 16, "largest short-lived tree depth")
	fs.IntVar(&opts.arrayLen, "array", 500000, "length of the long-lived double array")
	return fs
}

type scenarioFile struct {
	Scenarios []scenario `yaml:"scenarios"`
}

type scenario struct {
	Name string `yaml:"name"`
	Args string `yaml:"args"`
}

func main() {
	var opts options
	fs := newFlagSet("semibench", &opts)
	scenarios := fs.String("scenarios", "", "YAML file of scenarios to run back to back")
	noColor := fs.Bool("no-color", false, "disable colored output")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	var out io.Writer = colorable.NewColorableStdout()
	if *noColor {
		out = colorable.NewNonColorable(os.Stdout)
	}

	if *scenarios == "" {
		exit(runOne("default", opts, out), out)
	}

	data, err := os.ReadFile(*scenarios)
	if err != nil {
		exit(err, out)
	}
	var file scenarioFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		exit(fmt.Errorf("%s: %w", *scenarios, err), out)
	}
	for _, sc := range file.Scenarios {
		args, err := shlex.Split(sc.Args)
		if err != nil {
			exit(fmt.Errorf("scenario %s: %w", sc.Name, err), out)
		}
		scOpts := opts
		if err := newFlagSet(sc.Name, &scOpts).Parse(args); err != nil {
			os.Exit(2)
		}
		fmt.Fprintf(out, "%s== scenario %s ==%s\n", colorCyan, sc.Name, colorReset)
		if err := runOne(sc.Name, scOpts, out); err != nil {
			exit(err, out)
		}
	}
	os.Exit(0)
}

func exit(err error, out io.Writer) {
	if err == nil {
		os.Exit(0)
	}
	fmt.Fprintf(out, "%ssemibench: %v%s\n", colorRed, err, colorReset)
	os.Exit(1)
}

func runOne(name string, opts options, out io.Writer) error {
	cfg := semispace.Config{}
	if opts.configPath != "" {
		loaded, err := semispace.LoadConfig(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.heapSize != "" {
		size, err := bytesize.Parse(opts.heapSize)
		if err != nil {
			return fmt.Errorf("-heap %q: %w", opts.heapSize, err)
		}
		cfg.HeapSize = semispace.ByteSize(size)
	}
	if cfg.HeapSize == 0 {
		cfg.HeapSize = 64 << 20
	}
	if opts.trace {
		cfg.Trace = out
	}
	if opts.audit {
		cfg.Audit = true
	}
	if opts.maxDepth < opts.minDepth {
		return fmt.Errorf("-max-depth %d is below -min-depth %d", opts.maxDepth, opts.minDepth)
	}

	heap, m, err := semispace.Initialize(cfg)
	if err != nil {
		return err
	}
	defer heap.Release()

	b := newBench(m, out)
	start := time.Now()
	runErr := b.run(benchParams{
		minDepth:    opts.minDepth,
		maxDepth:    opts.maxDepth,
		arrayLength: uintptr(opts.arrayLen),
	})
	elapsed := time.Since(start)
	if runErr != nil {
		return runErr
	}

	heap.PrintStats(out)
	var stats semispace.MemStats
	heap.ReadMemStats(&stats)
	fmt.Fprintf(out, "Spent %v in %d pauses\n", time.Duration(stats.PauseTotalNs), stats.NumGC)
	fmt.Fprintf(out, "%sCompleted in %v%s\n", colorGreen, elapsed, colorReset)

	if opts.report != "" {
		return appendReport(opts.report, name, elapsed, stats)
	}
	return nil
}

// appendReport adds one line to the shared report file. Parallel semibench
// processes may target the same file, so the append happens under an
// exclusive flock taken on a sidecar lock file.
func appendReport(path, name string, elapsed time.Duration, stats semispace.MemStats) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s\t%s\t%v\t%d collections\t%v paused\t%s heap\n",
		time.Now().Format(time.RFC3339), name, elapsed, stats.NumGC,
		time.Duration(stats.PauseTotalNs), bytesize.New(float64(stats.Sys)))
	return err
}
