package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/akramov/fleetpoll/config"
)

func runConfig(args []string, io IO) error {
	if len(args) == 0 {
		printConfigUsage(io.ErrOut)
		return fmt.Errorf("missing config subcommand")
	}

	sub := strings.ToLower(strings.TrimSpace(args[0]))
	subArgs := args[1:]

	switch sub {
	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(io.Out, path)
		return nil
	case "show":
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		b, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = io.Out.Write(b)
		return err
	case "init":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		_, statErr := os.Stat(path)
		if statErr == nil {
			fmt.Fprintf(io.ErrOut, "Config already exists at %s\n", path)
			return nil
		}
		if !errors.Is(statErr, os.ErrNotExist) {
			return statErr
		}
		cfg := config.Default()
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(io.ErrOut, "Initialized config at %s\n", path)
		return nil
	case "set":
		if len(subArgs) < 2 {
			printConfigUsage(io.ErrOut)
			return fmt.Errorf("usage: fleetpoll config set <key> <value>")
		}
		key := subArgs[0]
		value := strings.Join(subArgs[1:], " ")

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := config.Set(&cfg, key, value); err != nil {
			return err
		}
		if err := config.Save(cfg); err != nil {
			return err
		}
		fmt.Fprintf(io.ErrOut, "Updated %s\n", key)
		return nil
	case "reset":
		path, err := config.ConfigPath()
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(io.ErrOut, "Config not found at %s\n", path)
				return nil
			}
			return err
		}
		fmt.Fprintf(io.ErrOut, "Deleted config at %s\n", path)
		return nil
	case "help", "--help", "-h":
		printConfigUsage(io.Out)
		return nil
	default:
		printConfigUsage(io.ErrOut)
		return fmt.Errorf("unknown config subcommand %q", sub)
	}
}

func printConfigUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  fleetpoll config path")
	fmt.Fprintln(w, "  fleetpoll config show")
	fmt.Fprintln(w, "  fleetpoll config init")
	fmt.Fprintln(w, "  fleetpoll config set <key> <value>")
	fmt.Fprintln(w, "  fleetpoll config reset")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Supported keys:")
	fmt.Fprintln(w, "  telegram.bot_token")
	fmt.Fprintln(w, "  telegram.poll_interval_seconds")
	fmt.Fprintln(w, "  server.listen_addr")
	fmt.Fprintln(w, "  server.base_url")
	fmt.Fprintln(w, "  sheets.spreadsheet_id")
	fmt.Fprintln(w, "  sheets.credentials_json")
	fmt.Fprintln(w, "  sheets.sheet_name")
	fmt.Fprintln(w, "  sink.fallback (csv|sqlite)")
	fmt.Fprintln(w, "  sink.csv_path")
	fmt.Fprintln(w, "  sink.sqlite_path")
	fmt.Fprintln(w, "  script.path")
	fmt.Fprintln(w, "  log.level")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Env overrides: BOT_TOKEN, GOOGLE_SHEET_ID, GOOGLE_SERVICE_ACCOUNT_JSON, BASE_URL, PORT")
}
