package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mwantia/vds/data"
)

// Parser parses user-defined arguments into flags
type Parser struct {
	flagSet *CommandFlagSet

	long  map[string]string
	short map[string]string
}

func NewParser(flagSet *CommandFlagSet) *Parser {
	if flagSet == nil {
		flagSet = &CommandFlagSet{Flags: make(map[string]*CommandFlag)}
	}

	p := &Parser{
		flagSet: flagSet,
		long:    make(map[string]string),
		short:   make(map[string]string),
	}
	for flagName, flag := range flagSet.Flags {
		p.long[flag.Name] = flagName
		if flag.Short != "" {
			p.short[flag.Short] = flagName
		}
	}
	return p
}

// Parse splits raw into positional arguments and flags. Every error wraps
// data.ErrInvalidArgument.
func (p *Parser) Parse(raw []string) (*CommandArgs, error) {
	args := &CommandArgs{
		Flags: make(map[string]any),
		Raw:   raw,
	}

	for flagName, flag := range p.flagSet.Flags {
		if flag.Default != nil {
			args.Flags[flagName] = flag.Default
		}
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			args.Args = append(args.Args, raw[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "--") {
			consumed, err := p.parseLong(args, arg, raw[i+1:])
			if err != nil {
				return nil, err
			}
			i += consumed
			continue
		}

		if strings.HasPrefix(arg, "-") && len(arg) > 1 {
			consumed, err := p.parseShort(args, arg[1:], raw[i+1:])
			if err != nil {
				return nil, err
			}
			i += consumed
			continue
		}

		args.Args = append(args.Args, arg)
	}

	for flagName, flag := range p.flagSet.Flags {
		if !flag.Required {
			continue
		}
		if _, ok := args.Flags[flagName]; ok {
			continue
		}

		if flag.Short != "" {
			return nil, fmt.Errorf("%w: required flag -%s / --%s", data.ErrInvalidArgument, flag.Short, flag.Name)
		}
		return nil, fmt.Errorf("%w: required flag --%s", data.ErrInvalidArgument, flag.Name)
	}

	return args, nil
}

// parseLong handles "--name", "--name=value" and "--name value". It returns
// the number of following arguments it consumed.
func (p *Parser) parseLong(args *CommandArgs, arg string, rest []string) (int, error) {
	key, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")

	flagName, exists := p.long[key]
	if !exists {
		return 0, fmt.Errorf("%w: unknown flag --%s", data.ErrInvalidArgument, key)
	}

	flag := p.flagSet.Flags[flagName]
	switch {
	case flag.Type == "bool" && !hasValue:
		args.Flags[flagName] = true
		return 0, nil
	case hasValue:
		return 0, p.set(args, flagName, value)
	case len(rest) > 0 && !strings.HasPrefix(rest[0], "-"):
		return 1, p.set(args, flagName, rest[0])
	}

	return 0, fmt.Errorf("%w: flag --%s requires a value", data.ErrInvalidArgument, key)
}

// parseShort handles grouped bool flags ("-lv") and a trailing valued flag
// ("-fjson" or "-f json").
func (p *Parser) parseShort(args *CommandArgs, shortFlags string, rest []string) (int, error) {
	for j, shortChar := range shortFlags {
		shortStr := string(shortChar)
		flagName, exists := p.short[shortStr]
		if !exists {
			return 0, fmt.Errorf("%w: unknown flag -%s", data.ErrInvalidArgument, shortStr)
		}

		if p.flagSet.Flags[flagName].Type == "bool" {
			args.Flags[flagName] = true
			continue
		}

		if j+1 < len(shortFlags) {
			return 0, p.set(args, flagName, shortFlags[j+1:])
		}
		if len(rest) > 0 && !strings.HasPrefix(rest[0], "-") {
			return 1, p.set(args, flagName, rest[0])
		}
		return 0, fmt.Errorf("%w: flag -%s requires a value", data.ErrInvalidArgument, shortStr)
	}

	return 0, nil
}

func (p *Parser) set(args *CommandArgs, flagName, value string) error {
	flag := p.flagSet.Flags[flagName]

	switch flag.Type {
	case "int":
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: flag --%s expects an integer, got '%s'", data.ErrInvalidArgument, flag.Name, value)
		}
		args.Flags[flagName] = v
	case "bool":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: flag --%s expects a boolean, got '%s'", data.ErrInvalidArgument, flag.Name, value)
		}
		args.Flags[flagName] = v
	default:
		args.Flags[flagName] = value
	}

	return nil
}
