package cmd

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/akramov/fleetpoll/config"
	"github.com/akramov/fleetpoll/sink"
	"github.com/akramov/fleetpoll/telegram"
)

// runSetup checks the deployment end to end: token, script, sink, and
// optionally registers the webhook with Telegram.
func runSetup(args []string, io IO) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	fs.SetOutput(io.ErrOut)

	var registerWebhook bool
	fs.BoolVar(&registerWebhook, "webhook", false, "Register server.base_url/webhook with Telegram")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return fmt.Errorf("setup does not take positional arguments")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := telegram.NewClient(cfg.Telegram.BotToken)
	if err != nil {
		return err
	}
	me, err := client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("token check failed: %w", err)
	}
	fmt.Fprintf(io.Out, "Bot: @%s (id %d)\n", me.Username, me.ID)

	script, err := loadScript(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(io.Out, "Script: %d questions\n", script.Len())

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	snk, err := sink.FromConfig(ctx, cfg, script.Header(), log)
	if err != nil {
		return err
	}
	fmt.Fprintf(io.Out, "Sink: %s\n", snk.Name())
	if err := snk.Close(); err != nil {
		return err
	}

	if registerWebhook {
		base := strings.TrimSpace(cfg.Server.BaseURL)
		if base == "" {
			return fmt.Errorf("server.base_url is required for --webhook")
		}
		url := base + "/webhook"
		if err := client.SetWebhook(ctx, url, true); err != nil {
			return err
		}
		fmt.Fprintf(io.Out, "Webhook registered: %s\n", url)
		return nil
	}

	info, err := client.GetWebhookInfo(ctx)
	if err != nil {
		return err
	}
	if info.URL != "" {
		fmt.Fprintf(io.Out, "Webhook currently set: %s (run mode will conflict; use serve or delete it)\n", info.URL)
	} else {
		fmt.Fprintln(io.Out, "No webhook set; run mode (long polling) is ready.")
	}
	return nil
}
