package main

// Same option parsing system as cmd/ddrescue/options.go. Duplicated
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
	fmt.Fprintf(os.Stderr, "Usage: %s [options] logfile\n\n", programName)
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

// defineLogOptions registers every ddrescuelog option, matching
// ddrescuelog.cc's show_help.
func defineLogOptions(p *ParsedOptions) {
	p.DefineOption("change-types", "a", OptionTypeString, "", "change the block types of a logfile, <ot>,<nt>")
	p.DefineOption("block-size", "b", OptionTypeString, "512", "block size in bytes")
	p.DefineOption("create-logfile", "c", OptionTypeString, "", "create logfile from list of blocks read from stdin")
	p.DefineOption("delete-if-done", "d", OptionTypeBool, "false", "delete the logfile if rescue is finished")
	p.DefineOption("done-status", "D", OptionTypeBool, "false", "return 0 if rescue is finished")
	p.DefineOption("force", "f", OptionTypeBool, "false", "overwrite existing output files")
	p.DefineOption("input-position", "i", OptionTypeString, "0", "starting position of rescue domain")
	p.DefineOption("list-blocks", "l", OptionTypeString, "", "print block numbers of given types")
	p.DefineOption("domain-logfile", "m", OptionTypeString, "", "restrict domain to finished blocks in file")
	p.DefineOption("invert-logfile", "n", OptionTypeBool, "false", "invert block types")
	p.DefineOption("output-position", "o", OptionTypeString, "", "starting position in output file (accepted but has no effect)")
	p.DefineOption("compare-logfile", "p", OptionTypeString, "", "compare block types in domain of both files")
	p.DefineOption("quiet", "q", OptionTypeBool, "false", "suppress all messages")
	p.DefineOption("size", "s", OptionTypeString, "", "maximum size of rescue domain to be processed")
	p.DefineOption("show-status", "t", OptionTypeBool, "false", "show a summary of logfile contents")
	p.DefineOption("verbose", "v", OptionTypeInt, "0", "be verbose (repeat for more)")
	p.DefineOption("xor-logfile", "x", OptionTypeString, "", "XOR the finished blocks in file with logfile")
	p.DefineOption("and-logfile", "y", OptionTypeString, "", "AND the finished blocks in file with logfile")
	p.DefineOption("or-logfile", "z", OptionTypeString, "", "OR the finished blocks in file with logfile")
	p.DefineOption("help", "h", OptionTypeBool, "false", "display this help and exit")
}
