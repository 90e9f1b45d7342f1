package cmd

import (
	"fmt"
	"io"
	"strings"
)

type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

func Execute(args []string, io IO) error {
	if io.In == nil || io.Out == nil || io.ErrOut == nil {
		return fmt.Errorf("invalid IO")
	}

	if len(args) == 0 {
		printRootUsage(io.ErrOut)
		return fmt.Errorf("missing command")
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "run":
		return runRun(args[1:], io)
	case "serve":
		return runServe(args[1:], io)
	case "setup":
		return runSetup(args[1:], io)
	case "config":
		return runConfig(args[1:], io)
	case "script":
		return runScript(args[1:], io)
	case "help", "--help", "-h":
		printRootUsage(io.Out)
		return nil
	default:
		printRootUsage(io.ErrOut)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printRootUsage(w io.Writer) {
	fmt.Fprintln(w, "fleetpoll: conversational fleet survey bot for Telegram")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fleetpoll run                 long-polling mode")
	fmt.Fprintln(w, "  fleetpoll serve               webhook mode (HTTP server)")
	fmt.Fprintln(w, "  fleetpoll setup [--webhook]   verify token, sink, and optionally register the webhook")
	fmt.Fprintln(w, "  fleetpoll config <path|show|init|set|reset>")
	fmt.Fprintln(w, "  fleetpoll script <check|show> [path]")
}
