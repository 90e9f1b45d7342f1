package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/akramov/fleetpoll/bot"
	"github.com/akramov/fleetpoll/config"
	"github.com/akramov/fleetpoll/sink"
	"github.com/akramov/fleetpoll/survey"
	"github.com/akramov/fleetpoll/telegram"
)

// app bundles the wired-up components shared by run and serve.
type app struct {
	cfg    config.Config
	log    *zap.Logger
	script survey.Script
	snk    sink.Sink
	client *telegram.Client
	bot    *bot.Bot
}

func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	script, err := loadScript(cfg)
	if err != nil {
		return nil, err
	}

	snk, err := sink.FromConfig(ctx, cfg, script.Header(), log)
	if err != nil {
		return nil, err
	}

	client, err := telegram.NewClient(cfg.Telegram.BotToken)
	if err != nil {
		snk.Close()
		return nil, err
	}

	co := survey.NewCoordinator(script, snk, log)
	return &app{
		cfg:    cfg,
		log:    log,
		script: script,
		snk:    snk,
		client: client,
		bot:    bot.New(client, co, log),
	}, nil
}

func (a *app) close() {
	if err := a.snk.Close(); err != nil {
		a.log.Warn("sink close failed", zap.Error(err))
	}
	_ = a.log.Sync()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log.level %q: %w", cfg.Log.Level, err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func loadScript(cfg config.Config) (survey.Script, error) {
	if strings.TrimSpace(cfg.Script.Path) == "" {
		return survey.DefaultScript(), nil
	}
	return survey.LoadScript(cfg.Script.Path)
}
