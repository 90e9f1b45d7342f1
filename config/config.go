package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "FLEETPOLL_CONFIG"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Sink     SinkConfig     `yaml:"sink"`
	Script   ScriptConfig   `yaml:"script"`
	Log      LogConfig      `yaml:"log"`
}

type TelegramConfig struct {
	BotToken            string `yaml:"bot_token"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	BaseURL    string `yaml:"base_url"`
}

type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheet_id"`
	// CredentialsJSON is the service-account key, raw JSON or base64.
	CredentialsJSON string `yaml:"credentials_json"`
	SheetName       string `yaml:"sheet_name"`
}

type SinkConfig struct {
	Fallback   string `yaml:"fallback"`
	CSVPath    string `yaml:"csv_path"`
	SQLitePath string `yaml:"sqlite_path"`
}

type ScriptConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() Config {
	return Config{
		Telegram: TelegramConfig{
			PollIntervalSeconds: 2,
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		Sheets: SheetsConfig{
			SheetName: "Sheet1",
		},
		Sink: SinkConfig{
			Fallback: "csv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return ExpandPath(p)
	}

	if xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); xdg != "" {
		return filepath.Join(xdg, "fleetpoll", "config.yaml"), nil
	}

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "fleetpoll", "config.yaml"), nil
}

func DefaultStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "fleetpoll"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "fleetpoll"), nil
}

func Load() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			ApplyDefaults(&cfg)
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	ApplyDefaults(&cfg)
	applyEnv(&cfg)
	return cfg, nil
}

func Save(cfg Config) error {
	ApplyDefaults(&cfg)

	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, b, 0o600)
}

func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.Telegram.PollIntervalSeconds <= 0 {
		cfg.Telegram.PollIntervalSeconds = 2
	}
	if strings.TrimSpace(cfg.Server.ListenAddr) == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if strings.TrimSpace(cfg.Sheets.SheetName) == "" {
		cfg.Sheets.SheetName = "Sheet1"
	}
	cfg.Sink.Fallback = strings.ToLower(strings.TrimSpace(cfg.Sink.Fallback))
	if cfg.Sink.Fallback == "" {
		cfg.Sink.Fallback = "csv"
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}

	if strings.TrimSpace(cfg.Sink.CSVPath) == "" {
		if dir, err := DefaultStateDir(); err == nil {
			cfg.Sink.CSVPath = filepath.Join(dir, "responses.csv")
		}
	} else if p, err := ExpandPath(cfg.Sink.CSVPath); err == nil {
		cfg.Sink.CSVPath = p
	}
	if strings.TrimSpace(cfg.Sink.SQLitePath) == "" {
		if dir, err := DefaultStateDir(); err == nil {
			cfg.Sink.SQLitePath = filepath.Join(dir, "responses.db")
		}
	} else if p, err := ExpandPath(cfg.Sink.SQLitePath); err == nil {
		cfg.Sink.SQLitePath = p
	}
	if p, err := ExpandPath(cfg.Script.Path); err == nil {
		cfg.Script.Path = p
	}
}

// applyEnv layers well-known environment variables on top of the file
// config so the bot can run fully env-configured on a PaaS.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_ID")); v != "" {
		cfg.Sheets.SpreadsheetID = v
	}
	if v := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); v != "" {
		cfg.Sheets.CredentialsJSON = v
	}
	if v := strings.TrimSpace(os.Getenv("BASE_URL")); v != "" {
		cfg.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Server.ListenAddr = ":" + v
	}
}

func PollInterval(cfg Config) time.Duration {
	seconds := cfg.Telegram.PollIntervalSeconds
	if seconds <= 0 {
		seconds = 2
	}
	return time.Duration(seconds) * time.Second
}

func Set(cfg *Config, key string, value string) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	k := strings.ToLower(strings.TrimSpace(key))
	v := strings.TrimSpace(value)

	switch k {
	case "telegram.bot_token":
		cfg.Telegram.BotToken = v
	case "telegram.poll_interval_seconds":
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("telegram.poll_interval_seconds must be a positive integer")
		}
		cfg.Telegram.PollIntervalSeconds = n
	case "server.listen_addr":
		cfg.Server.ListenAddr = v
	case "server.base_url":
		cfg.Server.BaseURL = strings.TrimRight(v, "/")
	case "sheets.spreadsheet_id":
		cfg.Sheets.SpreadsheetID = v
	case "sheets.credentials_json":
		cfg.Sheets.CredentialsJSON = v
	case "sheets.sheet_name":
		cfg.Sheets.SheetName = v
	case "sink.fallback":
		v = strings.ToLower(v)
		if v != "csv" && v != "sqlite" {
			return fmt.Errorf("sink.fallback must be csv or sqlite")
		}
		cfg.Sink.Fallback = v
	case "sink.csv_path":
		expanded, err := ExpandPath(v)
		if err != nil {
			return err
		}
		cfg.Sink.CSVPath = expanded
	case "sink.sqlite_path":
		expanded, err := ExpandPath(v)
		if err != nil {
			return err
		}
		cfg.Sink.SQLitePath = expanded
	case "script.path":
		expanded, err := ExpandPath(v)
		if err != nil {
			return err
		}
		cfg.Script.Path = expanded
	case "log.level":
		v = strings.ToLower(v)
		switch v {
		case "debug", "info", "warn", "error":
			cfg.Log.Level = v
		default:
			return fmt.Errorf("log.level must be debug, info, warn, or error")
		}
	default:
		return fmt.Errorf("unsupported key %q", key)
	}

	ApplyDefaults(cfg)
	return nil
}

func Marshal(cfg Config) ([]byte, error) {
	ApplyDefaults(&cfg)
	return yaml.Marshal(cfg)
}

func ExpandPath(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if raw == "~" || strings.HasPrefix(raw, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if raw == "~" {
			return home, nil
		}
		return filepath.Join(home, strings.TrimPrefix(raw, "~/")), nil
	}
	return raw, nil
}
