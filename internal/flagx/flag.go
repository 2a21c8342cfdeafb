// Package flagx contains helpers for parsing only a subset of command-line
// flags, so several components can share os.Args without colliding.
package flagx

import (
	"flag"
	"strings"
)

// FilterArgs keeps the flags listed in allowedFlags (and their values) and
// drops everything else.
//
// Supported forms:
//
//	-c conf.json
//	--config=conf.json
//
// A following argument is treated as the value only if it does not start
// with "-".
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigFileFlag returns the JSON config path given via -c or -config in
// args, or "" when neither is present.
func ConfigFileFlag(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "Path to config file")
	fs.StringVar(&path, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}

// StringList is a repeatable string flag: every occurrence appends a value.
// The first explicit occurrence replaces the defaults it was created with.
type StringList struct {
	values *[]string
	set    bool
}

// NewStringList binds a StringList to target, keeping target's current
// content as the default.
func NewStringList(target *[]string) *StringList {
	return &StringList{values: target}
}

func (s *StringList) String() string {
	if s == nil || s.values == nil {
		return ""
	}
	return strings.Join(*s.values, ", ")
}

func (s *StringList) Set(v string) error {
	if !s.set {
		*s.values = nil
		s.set = true
	}
	*s.values = append(*s.values, v)
	return nil
}

// Positional returns the arguments that are neither flags nor flag values.
// A flag written without "=" takes the following argument as its value
// unless it is listed in boolFlags or the next argument starts with "-".
// Everything after "--" is positional.
func Positional(args []string, boolFlags []string) []string {
	isBool := make(map[string]struct{}, len(boolFlags))
	for _, f := range boolFlags {
		isBool[f] = struct{}{}
	}

	var out []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return append(out, args[i+1:]...)
		case !strings.HasPrefix(arg, "-") || arg == "-":
			out = append(out, arg)
		case strings.Contains(arg, "="):
		default:
			if _, ok := isBool[arg]; ok {
				continue
			}
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
		}
	}
	return out
}
