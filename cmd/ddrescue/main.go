package main

import (
	"context"
	"fmt"
	"os"
	"time"

	ddrescue "github.com/mattkeenan/ddrescuego/pkg"
	"golang.org/x/sys/unix"
)

func main() {
	opts := NewParsedOptions()
	defineRescueOptions(opts)
	if err := opts.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ddrescue: %v\n", err)
		os.Exit(ddrescue.ExitEnvironment)
	}

	if opts.GetBool("help") {
		opts.ShowUsage("ddrescue")
		return
	}

	if opts.IsSet("debug") {
		ddrescue.SetDebugFlags(opts.GetString("debug"))
	}
	if opts.GetBool("quiet") {
		ddrescue.SetVerboseLevel(-1)
	} else {
		ddrescue.SetVerboseLevel(opts.GetInt("verbose"))
	}

	args := opts.GetArgs()
	if len(args) < 2 || len(args) > 3 {
		opts.ShowUsage("ddrescue")
		os.Exit(ddrescue.ExitEnvironment)
	}
	inPath, outPath := args[0], args[1]
	mapPath := ""
	if len(args) == 3 {
		mapPath = args[2]
	}

	code, err := run(opts, inPath, outPath, mapPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddrescue: %v\n", err)
	}
	os.Exit(code)
}

func run(opts *ParsedOptions, inPath, outPath, mapPath string) (int, error) {
	setupSignalHandler()

	hardbs, err := ddrescue.ParseNumber(opts.GetString("block-size"), 0)
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}
	clusterSectors, err := ddrescue.ParseNumber(opts.GetString("cluster-size"), 0)
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}

	ipos, err := ddrescue.ParseNumber(opts.GetString("input-position"), hardbs)
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}
	size := int64(-1)
	if opts.IsSet("size") {
		size, err = ddrescue.ParseNumber(opts.GetString("size"), hardbs)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
	}

	domain, err := ddrescue.NewDomain(ipos, size, "")
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}

	var mb *ddrescue.Mapbook
	if mapPath != "" {
		if _, statErr := os.Stat(mapPath); statErr == nil {
			mb, err = ddrescue.LoadMapbook(mapPath, true)
			if err != nil {
				return ddrescue.ExitCode(err), err
			}
		}
	}
	if mb == nil {
		mb = ddrescue.NewMapbook(mapPath, domain)
	}

	inFd, err := unix.Open(inPath, unix.O_RDONLY, 0)
	if err != nil {
		return ddrescue.ExitEnvironment, &ddrescue.EnvironmentError{Msg: "cannot open input file " + inPath, Err: err}
	}
	defer unix.Close(inFd)

	outFlags := unix.O_WRONLY | unix.O_CREAT
	if opts.GetBool("force") {
		outFlags |= unix.O_TRUNC
	}
	outFd, err := unix.Open(outPath, outFlags, 0o644)
	if err != nil {
		return ddrescue.ExitEnvironment, &ddrescue.EnvironmentError{Msg: "cannot open output file " + outPath, Err: err}
	}
	defer unix.Close(outFd)

	var rateLog *ddrescue.RateLog
	if opts.IsSet("log-rates") {
		rateLog, err = ddrescue.OpenRateLog(opts.GetString("log-rates"))
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		defer rateLog.Close()
	}
	var readLog *ddrescue.ReadLog
	if opts.IsSet("log-reads") {
		readLog, err = ddrescue.OpenReadLog(opts.GetString("log-reads"))
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		defer readLog.Close()
	}

	cfg := ddrescue.Config{
		ClusterSize:    clusterSectors * hardbs,
		HardBS:         hardbs,
		SkipBS:         64 * 1024,
		MaxRetries:     opts.GetInt("max-retries"),
		MaxErrors:      -1,
		NoScrape:       opts.GetBool("no-scrape"),
		NoTrim:         opts.GetBool("no-trim"),
		NoSplit:        opts.GetBool("no-split"),
		Reverse:        opts.GetBool("reverse"),
		Unidirectional: opts.GetBool("unidirectional"),
		ExitOnError:    opts.GetBool("exit-on-error"),
		ReopenOnError:  opts.GetBool("reopen-on-error"),
		VerifyOnError:  opts.GetBool("verify-on-error"),
		Sparse:         opts.GetBool("sparse"),
		CompleteOnly:   opts.GetBool("complete-only"),
		UpdateInterval: 30 * time.Second,
		UpdateOps:      100,
		MapfilePath:    mapPath,
		CommandLine:    joinArgs(os.Args),
	}
	if opts.IsSet("max-errors") {
		cfg.MaxErrors, err = ddrescue.ParseNumber(opts.GetString("max-errors"), 0)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
	}
	if opts.IsSet("timeout") {
		secs, err := ddrescue.ParseNumber(opts.GetString("timeout"), 0)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		cfg.Timeout = time.Duration(secs) * time.Second
	}
	if opts.IsSet("max-read-rate") {
		rate, err := ddrescue.ParseNumber(opts.GetString("max-read-rate"), 0)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		cfg.MaxReadRate = float64(rate)
	}
	if opts.IsSet("min-read-rate") {
		rate, err := ddrescue.ParseNumber(opts.GetString("min-read-rate"), 0)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		cfg.MinReadRate = float64(rate)
	}
	if opts.IsSet("pause") {
		secs, err := ddrescue.ParseNumber(opts.GetString("pause"), 0)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
		cfg.Pause = time.Duration(secs) * time.Second
	}
	if opts.IsSet("cpass") {
		cfg.Cpass = make(map[ddrescue.Phase]bool)
		for _, c := range opts.GetString("cpass") {
			if c < '1' || c > '4' {
				return ddrescue.ExitEnvironment, fmt.Errorf("invalid --cpass value %q", opts.GetString("cpass"))
			}
			cfg.Cpass[ddrescue.PhaseCopying+ddrescue.Phase(c-'1')] = true
		}
	}

	eng := ddrescue.NewEngine(cfg, mb, domain, inPath, inFd, outFd, rateLog, readLog)
	return eng.Run(context.Background())
}

func joinArgs(args []string) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += " "
		}
		s += a
	}
	return s
}
