// Package flagx lets several independent flag sets share one command line.
// Each consumer filters os.Args down to the flags it owns before parsing.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the subset of args made of allowed flags and their
// values. It is Filter with no boolean flags.
func FilterArgs(args []string, allowedFlags []string) []string {
	return Filter(args, allowedFlags, nil)
}

// Filter keeps the valued and boolean flags named in the two lists.
//
// "-c conf.json" and "--config=conf.json" are both recognised. A token
// following a valued flag is taken as its value unless it starts with "-";
// boolean flags never consume the next token. Scanning stops at "--".
// The result is never nil.
func Filter(args []string, valued, boolean []string) []string {
	kind := make(map[string]bool, len(valued)+len(boolean))
	for _, f := range valued {
		kind[f] = true
	}
	for _, f := range boolean {
		kind[f] = false
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		if name, _, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(arg, "-") {
			if _, known := kind[name]; known {
				filtered = append(filtered, arg)
			}
			continue
		}

		takesValue, known := kind[arg]
		if !known {
			continue
		}
		filtered = append(filtered, arg)
		if takesValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigFile extracts the config file path given through -c or -config.
// Other arguments are ignored; an empty string means no file was requested.
// When both are present the last one wins.
func ConfigFile(args []string) string {
	var path string

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
