package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/akramov/fleetpoll/config"
	"github.com/akramov/fleetpoll/survey"
)

func runScript(args []string, io IO) error {
	if len(args) == 0 {
		printScriptUsage(io.ErrOut)
		return fmt.Errorf("missing script subcommand")
	}

	sub := strings.ToLower(strings.TrimSpace(args[0]))
	subArgs := args[1:]

	switch sub {
	case "check":
		script, origin, err := scriptFromArgs(subArgs)
		if err != nil {
			return err
		}
		fmt.Fprintf(io.Out, "Script OK (%s): %d questions\n", origin, script.Len())
		return nil
	case "show":
		script, origin, err := scriptFromArgs(subArgs)
		if err != nil {
			return err
		}
		fmt.Fprintf(io.Out, "Script (%s):\n", origin)
		for i, q := range script.Questions {
			flags := describeQuestion(q)
			fmt.Fprintf(io.Out, "  %2d. %-15s %-7s %s\n", i+1, q.Key, q.Kind, flags)
		}
		return nil
	case "help", "--help", "-h":
		printScriptUsage(io.Out)
		return nil
	default:
		printScriptUsage(io.ErrOut)
		return fmt.Errorf("unknown script subcommand %q", sub)
	}
}

func scriptFromArgs(args []string) (survey.Script, string, error) {
	if len(args) > 1 {
		return survey.Script{}, "", fmt.Errorf("usage: fleetpoll script <check|show> [path]")
	}
	if len(args) == 1 {
		path, err := config.ExpandPath(args[0])
		if err != nil {
			return survey.Script{}, "", err
		}
		script, err := survey.LoadScript(path)
		return script, path, err
	}

	cfg, err := config.Load()
	if err != nil {
		return survey.Script{}, "", err
	}
	if strings.TrimSpace(cfg.Script.Path) != "" {
		script, err := survey.LoadScript(cfg.Script.Path)
		return script, cfg.Script.Path, err
	}
	return survey.DefaultScript(), "built-in", nil
}

func describeQuestion(q survey.Question) string {
	var parts []string
	if len(q.Options) > 0 {
		parts = append(parts, fmt.Sprintf("%d options", len(q.Options)))
	}
	if q.AllowSkip {
		parts = append(parts, "allow_skip")
	}
	if q.Contact {
		parts = append(parts, "contact")
	}
	if q.SkipIf != "" {
		parts = append(parts, "skip_if")
	}
	return strings.Join(parts, ", ")
}

func printScriptUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fleetpoll script check [path]")
	fmt.Fprintln(w, "  fleetpoll script show [path]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Without a path the configured script.path (or the built-in script) is used.")
}
