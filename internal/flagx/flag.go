// Package flagx lets several components parse their own flags from one
// command line without tripping over each other's unknown flags.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// ConfigEnv names the environment variable consulted when no config flag is given.
const ConfigEnv = "CONFIG"

// flagName strips one or two leading dashes; the flag package treats
// -name and --name alike.
func flagName(arg string) string {
	if strings.HasPrefix(arg, "--") {
		return arg[2:]
	}
	return strings.TrimPrefix(arg, "-")
}

// FilterArgs returns the subset of args that belongs to allowedFlags, with
// their values. Flags match in either -name or --name form, and values may be
// attached with '=' or given as the next argument. A bare "--" ends parsing.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[flagName(name)]; !ok {
			continue
		}
		filtered = append(filtered, arg)
		if hasValue {
			continue
		}
		// the next argument is the value unless it is itself a flag
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// ConfigPath returns the config file named by -c or -config on the command
// line, falling back to $CONFIG. Empty means no file.
func ConfigPath() string {
	return configPath(os.Args[1:], os.Getenv)
}

func configPath(args []string, getenv func(string) string) string {
	var config string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	if config == "" {
		config = getenv(ConfigEnv)
	}
	return config
}
