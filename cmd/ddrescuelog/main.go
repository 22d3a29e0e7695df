package main

import (
	"bufio"
	"fmt"
	"os"

	ddrescue "github.com/mattkeenan/ddrescuego/pkg"
)

func main() {
	opts := NewParsedOptions()
	defineLogOptions(opts)
	if err := opts.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "ddrescuelog: %v\n", err)
		os.Exit(ddrescue.ExitEnvironment)
	}

	if opts.GetBool("help") {
		opts.ShowUsage("ddrescuelog")
		return
	}
	if opts.GetBool("quiet") {
		ddrescue.SetVerboseLevel(-1)
	} else {
		ddrescue.SetVerboseLevel(opts.GetInt("verbose"))
	}

	args := opts.GetArgs()
	if len(args) != 1 {
		opts.ShowUsage("ddrescuelog")
		os.Exit(ddrescue.ExitEnvironment)
	}
	logname := args[0]

	hardbs, err := ddrescue.ParseNumber(opts.GetString("block-size"), 0)
	if err != nil {
		fatal(err, ddrescue.ExitEnvironment)
	}
	ipos, err := ddrescue.ParseNumber(opts.GetString("input-position"), hardbs)
	if err != nil {
		fatal(err, ddrescue.ExitEnvironment)
	}
	size := int64(-1)
	if opts.IsSet("size") {
		size, err = ddrescue.ParseNumber(opts.GetString("size"), hardbs)
		if err != nil {
			fatal(err, ddrescue.ExitEnvironment)
		}
	}

	refMapfile := ""
	if opts.IsSet("domain-logfile") {
		refMapfile = opts.GetString("domain-logfile")
	}
	domain, err := ddrescue.NewDomain(ipos, size, refMapfile)
	if err != nil {
		fatal(err, ddrescue.ExitCode(err))
	}

	code, err := dispatch(opts, logname, hardbs, domain)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ddrescuelog: %v\n", err)
	}
	os.Exit(code)
}

func fatal(err error, code int) {
	fmt.Fprintf(os.Stderr, "ddrescuelog: %v\n", err)
	os.Exit(code)
}

// dispatch runs the single mode selected by the CLI flags, mirroring
// ddrescuelog.cc's main()'s mode switch. When several mode options are
// set, the first of them in this switch's case order wins.
func dispatch(opts *ParsedOptions, logname string, hardbs int64, domain ddrescue.Domain) (int, error) {
	switch {
	case opts.IsSet("and-logfile"):
		return logicOp(logname, opts.GetString("and-logfile"), domain, ddrescue.And)
	case opts.IsSet("or-logfile"):
		return logicOp(logname, opts.GetString("or-logfile"), domain, ddrescue.Or)
	case opts.IsSet("xor-logfile"):
		return logicOp(logname, opts.GetString("xor-logfile"), domain, ddrescue.Xor)
	case opts.GetBool("invert-logfile"):
		mb, err := ddrescue.LoadMapbook(logname, true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		ddrescue.Invert(mb, domain)
		return writeResult(mb)
	case opts.IsSet("change-types"):
		return changeTypes(logname, opts.GetString("change-types"), domain)
	case opts.IsSet("compare-logfile"):
		mb, err := ddrescue.LoadMapbook(logname, true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		mb2, err := ddrescue.LoadMapbook(opts.GetString("compare-logfile"), true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		if err := ddrescue.Compare(mb, mb2, domain, logname, opts.GetString("compare-logfile")); err != nil {
			return ddrescue.ExitEnvironment, err
		}
		return ddrescue.ExitOK, nil
	case opts.IsSet("create-logfile"):
		return createLogfile(opts, logname, domain, hardbs)
	case opts.IsSet("list-blocks"):
		return listBlocks(opts.GetString("list-blocks"), logname, domain, hardbs)
	case opts.GetBool("done-status") || opts.GetBool("delete-if-done"):
		mb, err := ddrescue.LoadMapbook(logname, true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		if !ddrescue.DoneStatusDomain(mb, domain) {
			return ddrescue.ExitEnvironment, fmt.Errorf("logfile %q not done", logname)
		}
		if opts.GetBool("delete-if-done") {
			if err := os.Remove(logname); err != nil {
				return ddrescue.ExitEnvironment, fmt.Errorf("error deleting logfile %q: %w", logname, err)
			}
		}
		return ddrescue.ExitOK, nil
	case opts.GetBool("show-status"):
		mb, err := ddrescue.LoadMapbook(logname, true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		printSummary(ddrescue.Summary(mb, domain))
		return ddrescue.ExitOK, nil
	default:
		mb, err := ddrescue.LoadMapbook(logname, true)
		if err != nil {
			return ddrescue.ExitCode(err), err
		}
		return writeResult(mb)
	}
}

func logicOp(logname, logname2 string, domain ddrescue.Domain, op func(a, b *ddrescue.Mapbook, d ddrescue.Domain)) (int, error) {
	mb, err := ddrescue.LoadMapbook(logname, true)
	if err != nil {
		return ddrescue.ExitCode(err), err
	}
	mb2, err := ddrescue.LoadMapbook(logname2, true)
	if err != nil {
		return ddrescue.ExitCode(err), err
	}
	op(mb, mb2, domain)
	return writeResult(mb)
}

func changeTypes(logname, arg string, domain ddrescue.Domain) (int, error) {
	types1, types2, err := parseTypePair(arg)
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}
	mb, err := ddrescue.LoadMapbook(logname, true)
	if err != nil {
		return ddrescue.ExitCode(err), err
	}
	ddrescue.ChangeTypes(mb, domain, types1, types2)
	return writeResult(mb)
}

func parseTypePair(arg string) ([]ddrescue.Status, []ddrescue.Status, error) {
	comma := -1
	for i, c := range arg {
		if c == ',' {
			comma = i
			break
		}
	}
	if comma < 0 {
		return nil, nil, fmt.Errorf("invalid type for change-types option: %q", arg)
	}
	raw1, raw2 := arg[:comma], arg[comma+1:]
	if raw1 == "" || raw2 == "" {
		return nil, nil, fmt.Errorf("invalid type for change-types option: %q", arg)
	}
	types1 := make([]ddrescue.Status, 0, len(raw1))
	for _, c := range raw1 {
		if !ddrescue.IsStatus(byte(c)) {
			return nil, nil, fmt.Errorf("invalid status char %q", c)
		}
		types1 = append(types1, ddrescue.Status(c))
	}
	types2 := make([]ddrescue.Status, 0, len(raw2))
	for _, c := range raw2 {
		if !ddrescue.IsStatus(byte(c)) {
			return nil, nil, fmt.Errorf("invalid status char %q", c)
		}
		types2 = append(types2, ddrescue.Status(c))
	}
	return types1, types2, nil
}

func createLogfile(opts *ParsedOptions, logname string, domain ddrescue.Domain, hardbs int64) (int, error) {
	if !opts.GetBool("force") {
		if _, err := os.Stat(logname); err == nil {
			return ddrescue.ExitEnvironment, fmt.Errorf("logfile %q exists, use --force to overwrite it", logname)
		}
	}
	if domain.Size() == 0 {
		fmt.Fprintln(os.Stderr, "Empty domain.")
		return ddrescue.ExitOK, nil
	}

	type1, type2 := ddrescue.BadSector, ddrescue.NonTried
	if tt := opts.GetString("create-logfile"); tt != "" {
		var err error
		type1, type2, err = parseTypePairSingle(tt)
		if err != nil {
			return ddrescue.ExitEnvironment, err
		}
	}

	blocks := ddrescue.NewBlockSet()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		n, err := ddrescue.ParseNumber(line, hardbs)
		if err != nil {
			return ddrescue.ExitCorrupt, fmt.Errorf("error reading block number from stdin: %w", err)
		}
		blocks.Add(n)
	}

	mb, err := ddrescue.CreateFromBlocklist(domain, hardbs, blocks.Slice(), type1, type2)
	if err != nil {
		return ddrescue.ExitEnvironment, err
	}
	return ddrescue.ExitOK, mb.Save(logname, "")
}

func parseTypePairSingle(tt string) (ddrescue.Status, ddrescue.Status, error) {
	if len(tt) != 2 || !ddrescue.IsStatus(tt[0]) || !ddrescue.IsStatus(tt[1]) {
		return 0, 0, fmt.Errorf("invalid type pair for create-logfile: %q", tt)
	}
	return ddrescue.Status(tt[0]), ddrescue.Status(tt[1]), nil
}

func listBlocks(typesArg, logname string, domain ddrescue.Domain, hardbs int64) (int, error) {
	types := make([]ddrescue.Status, 0, len(typesArg))
	for _, c := range typesArg {
		if !ddrescue.IsStatus(byte(c)) {
			return ddrescue.ExitEnvironment, fmt.Errorf("invalid status char %q", c)
		}
		types = append(types, ddrescue.Status(c))
	}
	mb, err := ddrescue.LoadMapbook(logname, true)
	if err != nil {
		return ddrescue.ExitCode(err), err
	}
	for _, n := range ddrescue.ListBlocks(mb, domain, types, hardbs) {
		fmt.Println(n)
	}
	return ddrescue.ExitOK, nil
}

func writeResult(mb *ddrescue.Mapbook) (int, error) {
	w := bufio.NewWriter(os.Stdout)
	for i := 0; i < mb.Sblocks(); i++ {
		sb := mb.Sblock(i)
		fmt.Fprintf(w, "0x%08X  0x%08X  %c\n", sb.Pos, sb.Size, sb.Status.Char())
	}
	if err := w.Flush(); err != nil {
		return ddrescue.ExitEnvironment, err
	}
	return ddrescue.ExitOK, nil
}

func printSummary(st ddrescue.SummaryStats) {
	fmt.Printf("\ncurrent pos: 0x%08X,  current status: %s\n", st.CurrentPos, st.CurrentStatus)
	fmt.Printf("domain size: %d B,  in %d area(s)\n", st.DomainSize, st.DomainAreas)
	fmt.Printf("    rescued: %d B,  in %d area(s)\n", st.SizeByStatus[ddrescue.Finished], st.AreasByStatus[ddrescue.Finished])
	fmt.Printf("  non-tried: %d B,  in %d area(s)\n", st.SizeByStatus[ddrescue.NonTried], st.AreasByStatus[ddrescue.NonTried])
	errsize := st.SizeByStatus[ddrescue.NonTrimmed] + st.SizeByStatus[ddrescue.NonSplit] + st.SizeByStatus[ddrescue.BadSector]
	fmt.Printf("\n    errsize: %d B,  errors: %d\n", errsize, st.Errors)
	fmt.Printf("non-trimmed: %d B,  in %d area(s)\n", st.SizeByStatus[ddrescue.NonTrimmed], st.AreasByStatus[ddrescue.NonTrimmed])
	fmt.Printf("  non-split: %d B,  in %d area(s)\n", st.SizeByStatus[ddrescue.NonSplit], st.AreasByStatus[ddrescue.NonSplit])
	fmt.Printf(" bad-sector: %d B,  in %d area(s)\n", st.SizeByStatus[ddrescue.BadSector], st.AreasByStatus[ddrescue.BadSector])
}
