// Package flagx lets several components parse their own subset of os.Args
// without tripping over each other's flags, and overlays settings taken from
// the environment.
package flagx

import (
	"flag"
	"os"
	"slices"
	"strings"
)

// FilterArgs keeps only the allowed flags (and their values) from args.
// Both "-c conf.json" and "-c=conf.json" forms are recognised; a token that
// follows an allowed flag is treated as its value unless it starts with "-".
// The result is never nil.
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

		if _, ok := allowed[arg]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// JsonConfigFlags returns the config file path given via -c or -config,
// or "" when neither is present. When both appear the last one wins.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}

// ApplyEnv overwrites each target whose variable is set to a non-empty value.
// It reports the names that were applied, in sorted order.
func ApplyEnv(lookup func(string) (string, bool), targets map[string]*string) []string {
	applied := make([]string, 0, len(targets))
	for name, dst := range targets {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
			applied = append(applied, name)
		}
	}
	slices.Sort(applied)
	return applied
}
