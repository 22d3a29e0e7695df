package main

// Same option parsing system as cmd/ddrescuelog/options.go. Duplicated
// here to keep the two binaries independently buildable.

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OptionType defines the type of value an option expects
type OptionType int

const (
	OptionTypeBool OptionType = iota
	OptionTypeString
	OptionTypeInt
)

// OptionDef defines a command-line option
type OptionDef struct {
	Long        string
	Short       string
	Type        OptionType
	Description string
	Default     string
}

// ParsedOptions holds the parsed command-line options
type ParsedOptions struct {
	values        map[string]string
	args          []string
	defs          map[string]*OptionDef
	shortMap      map[string]string
	explicitlySet map[string]bool
}

// NewParsedOptions creates a new options parser
func NewParsedOptions() *ParsedOptions {
	return &ParsedOptions{
		values:        make(map[string]string),
		args:          []string{},
		defs:          make(map[string]*OptionDef),
		shortMap:      make(map[string]string),
		explicitlySet: make(map[string]bool),
	}
}

// DefineOption defines a command-line option
func (p *ParsedOptions) DefineOption(long, short string, optType OptionType, defaultValue, description string) {
	def := &OptionDef{Long: long, Short: short, Type: optType, Description: description, Default: defaultValue}
	p.defs[long] = def
	if short != "" {
		p.shortMap[short] = long
	}
	if defaultValue != "" {
		p.values[long] = defaultValue
	}
}

// Parse parses command-line arguments
func (p *ParsedOptions) Parse(args []string) error {
	consumed := make([]bool, len(args))

	for i := 0; i < len(args); i++ {
		if consumed[i] {
			continue
		}
		arg := args[i]
		if strings.HasPrefix(arg, "--") {
			consumed[i] = true
			if err := p.parseLongOption(arg, args, &i, consumed); err != nil {
				return err
			}
		} else if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			consumed[i] = true
			if err := p.parseShortOptions(arg, args, &i, consumed); err != nil {
				return err
			}
		}
	}

	for i := 0; i < len(args); i++ {
		if !consumed[i] {
			p.args = append(p.args, args[i])
		}
	}
	return nil
}

func (p *ParsedOptions) parseLongOption(arg string, args []string, i *int, consumed []bool) error {
	optName := strings.TrimPrefix(arg, "--")
	var optValue string
	if equalPos := strings.Index(optName, "="); equalPos != -1 {
		optValue = optName[equalPos+1:]
		optName = optName[:equalPos]
	}

	def, exists := p.defs[optName]
	if !exists {
		return fmt.Errorf("unknown option: --%s", optName)
	}

	switch def.Type {
	case OptionTypeBool:
		if optValue != "" {
			switch optValue {
			case "true", "1":
				p.values[optName] = "true"
			case "false", "0":
				p.values[optName] = "false"
			default:
				return fmt.Errorf("invalid boolean value for --%s: %s", optName, optValue)
			}
		} else {
			p.values[optName] = "true"
		}
		p.explicitlySet[optName] = true
	case OptionTypeString, OptionTypeInt:
		if optValue == "" {
			return fmt.Errorf("option --%s requires a value (use --%s=value)", optName, optName)
		}
		p.values[optName] = optValue
		p.explicitlySet[optName] = true
		if def.Type == OptionTypeInt {
			if _, err := strconv.Atoi(p.values[optName]); err != nil {
				return fmt.Errorf("invalid integer value for --%s: %s", optName, p.values[optName])
			}
		}
	}
	return nil
}

func (p *ParsedOptions) parseShortOptions(arg string, args []string, i *int, consumed []bool) error {
	shortOpts := strings.TrimPrefix(arg, "-")

	optCounts := make(map[string]int)
	for _, r := range shortOpts {
		short := string(r)
		if _, exists := p.shortMap[short]; !exists {
			return fmt.Errorf("unknown option: -%s", short)
		}
		optCounts[short]++
	}

	for short, count := range optCounts {
		longOpt := p.shortMap[short]
		def := p.defs[longOpt]

		switch def.Type {
		case OptionTypeBool:
			p.values[longOpt] = "true"
			p.explicitlySet[longOpt] = true
		case OptionTypeInt:
			if count > 1 {
				p.values[longOpt] = strconv.Itoa(count)
			} else if nextArg := p.findNextAvailableIntArg(args, *i, consumed); nextArg != "" {
				p.values[longOpt] = nextArg
			} else {
				p.values[longOpt] = "1"
			}
			p.explicitlySet[longOpt] = true
		case OptionTypeString:
			if nextArg := p.findNextAvailableArg(args, *i, consumed); nextArg != "" {
				p.values[longOpt] = nextArg
				p.explicitlySet[longOpt] = true
			} else {
				return fmt.Errorf("option -%s requires a value", short)
			}
		}
	}
	return nil
}

func (p *ParsedOptions) findNextAvailableIntArg(args []string, startIdx int, consumed []bool) string {
	for i := startIdx + 1; i < len(args); i++ {
		if !consumed[i] && !strings.HasPrefix(args[i], "-") {
			if _, err := strconv.Atoi(args[i]); err == nil {
				consumed[i] = true
				return args[i]
			}
		}
	}
	return ""
}

func (p *ParsedOptions) findNextAvailableArg(args []string, startIdx int, consumed []bool) string {
	for i := startIdx + 1; i < len(args); i++ {
		if !consumed[i] && !strings.HasPrefix(args[i], "-") {
			consumed[i] = true
			return args[i]
		}
	}
	return ""
}

// GetString returns a string option value
func (p *ParsedOptions) GetString(option string) string { return p.values[option] }

// GetInt returns an integer option value
func (p *ParsedOptions) GetInt(option string) int {
	if val, exists := p.values[option]; exists {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return 0
}

// GetBool returns a boolean option value
func (p *ParsedOptions) GetBool(option string) bool { return p.values[option] == "true" }

// IsSet returns true if an option was explicitly set
func (p *ParsedOptions) IsSet(option string) bool { return p.explicitlySet[option] }

// GetArgs returns non-option arguments
func (p *ParsedOptions) GetArgs() []string { return p.args }

// ShowUsage displays usage information
func (p *ParsedOptions) ShowUsage(programName string) {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] infile outfile [mapfile]\n\n", programName)
	fmt.Fprintf(os.Stderr, "Options:\n")
	for _, def := range p.defs {
		var shortOpt string
		if def.Short != "" {
			shortOpt = fmt.Sprintf("-%s, ", def.Short)
		}
		var valueDesc string
		switch def.Type {
		case OptionTypeString:
			valueDesc = "=VALUE"
		case OptionTypeInt:
			valueDesc = "=N"
		}
		fmt.Fprintf(os.Stderr, "  %s--%s%s\n", shortOpt, def.Long, valueDesc)
		fmt.Fprintf(os.Stderr, "        %s\n", def.Description)
	}
}

// defineRescueOptions registers every rescue-mode option.
func defineRescueOptions(p *ParsedOptions) {
	p.DefineOption("block-size", "b", OptionTypeString, "512", "sector size in bytes")
	p.DefineOption("cluster-size", "c", OptionTypeString, "128", "sectors per cluster")
	p.DefineOption("input-position", "i", OptionTypeString, "0", "starting position of rescue domain")
	p.DefineOption("size", "s", OptionTypeString, "", "maximum size of rescue domain")
	p.DefineOption("output-position", "o", OptionTypeString, "", "starting position in output file (accepted but has no effect; output is written at the input position)")
	p.DefineOption("min-read-rate", "", OptionTypeString, "", "abort the rescue when the average read rate falls below this (bytes/s)")
	p.DefineOption("max-read-rate", "", OptionTypeString, "", "maximum read rate")
	p.DefineOption("max-retries", "r", OptionTypeInt, "0", "exit after given number of retry passes (-1 = infinite)")
	p.DefineOption("max-errors", "e", OptionTypeString, "", "maximum number of error areas allowed")
	p.DefineOption("no-scrape", "", OptionTypeBool, "false", "skip the scraping phase")
	p.DefineOption("no-trim", "", OptionTypeBool, "false", "skip the trimming phase")
	p.DefineOption("no-split", "", OptionTypeBool, "false", "do not try to split error areas (accepted but has no effect)")
	p.DefineOption("reverse", "R", OptionTypeBool, "false", "reverse direction of copying operations")
	p.DefineOption("unidirectional", "u", OptionTypeBool, "false", "run all passes in the same direction")
	p.DefineOption("exit-on-error", "", OptionTypeBool, "false", "exit on read error")
	p.DefineOption("reopen-on-error", "", OptionTypeBool, "false", "reopen input file after every read error")
	p.DefineOption("verify-on-error", "", OptionTypeBool, "false", "reread the last good sector after every error")
	p.DefineOption("sparse", "", OptionTypeBool, "false", "use sparse writes for output file")
	p.DefineOption("timeout", "", OptionTypeString, "", "maximum time since last successful read")
	p.DefineOption("cpass", "", OptionTypeString, "", "select which passes to run (1234)")
	p.DefineOption("complete-only", "", OptionTypeBool, "false", "do not read new blocks beyond the mapfile")
	p.DefineOption("force", "f", OptionTypeBool, "false", "overwrite existing output files")
	p.DefineOption("verbose", "v", OptionTypeInt, "0", "be verbose (repeat for more)")
	p.DefineOption("quiet", "q", OptionTypeBool, "false", "suppress all messages")
	p.DefineOption("log-rates", "", OptionTypeString, "", "log rate of data transfer to file")
	p.DefineOption("log-reads", "", OptionTypeString, "", "log all read operations to file")
	p.DefineOption("pause", "p", OptionTypeString, "0", "seconds to pause between passes")
	p.DefineOption("debug", "", OptionTypeString, "", "comma-separated debug sub-flags")
	p.DefineOption("help", "h", OptionTypeBool, "false", "display this help and exit")
}
