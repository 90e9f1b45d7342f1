package survey

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"gopkg.in/yaml.v3"
)

type Kind string

const (
	KindText   Kind = "text"
	KindSingle Kind = "single"
	KindMulti  Kind = "multi"
	KindPhone  Kind = "phone"
)

// Question is one step of the script. Key doubles as the column name in the
// persisted row. SkipIf is an optional expr-lang expression over the answers
// collected so far; when it evaluates to true the question is skipped.
type Question struct {
	Key       string   `yaml:"key"`
	Text      string   `yaml:"text"`
	Kind      Kind     `yaml:"kind"`
	Options   []string `yaml:"options,omitempty"`
	AllowSkip bool     `yaml:"allow_skip,omitempty"`
	Contact   bool     `yaml:"contact,omitempty"`
	SkipIf    string   `yaml:"skip_if,omitempty"`
}

type Script struct {
	Questions []Question `yaml:"questions"`
}

func (s Script) Len() int { return len(s.Questions) }

// ContactIndex returns the index of the first question in the contact block,
// the jump target of the "leave contact only" shortcut.
func (s Script) ContactIndex() (int, bool) {
	for i, q := range s.Questions {
		if q.Contact {
			return i, true
		}
	}
	return 0, false
}

// Header lists the persisted row columns: the fixed identity columns
// followed by one column per question, in script order.
func (s Script) Header() []string {
	header := []string{"timestamp", "user_id", "username"}
	for _, q := range s.Questions {
		header = append(header, q.Key)
	}
	return header
}

func (s Script) Validate() error {
	if len(s.Questions) == 0 {
		return errors.New("script has no questions")
	}
	// skip_if expressions see every question key as a string answer.
	exprEnv := make(map[string]any, len(s.Questions))
	for _, q := range s.Questions {
		exprEnv[strings.TrimSpace(q.Key)] = ""
	}
	seen := make(map[string]struct{}, len(s.Questions))
	hasSkip := false
	for i, q := range s.Questions {
		key := strings.TrimSpace(q.Key)
		if key == "" {
			return fmt.Errorf("question %d: key is required", i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("question %d: duplicate key %q", i, key)
		}
		seen[key] = struct{}{}
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %q: text is required", key)
		}
		switch q.Kind {
		case KindText, KindPhone:
			if len(q.Options) > 0 {
				return fmt.Errorf("question %q: options are only valid for single/multi kinds", key)
			}
		case KindSingle, KindMulti:
			if len(q.Options) == 0 {
				return fmt.Errorf("question %q: %s kind requires options", key, q.Kind)
			}
			optSeen := make(map[string]struct{}, len(q.Options))
			for _, opt := range q.Options {
				if strings.TrimSpace(opt) == "" {
					return fmt.Errorf("question %q: empty option", key)
				}
				if _, dup := optSeen[opt]; dup {
					return fmt.Errorf("question %q: duplicate option %q", key, opt)
				}
				optSeen[opt] = struct{}{}
			}
		default:
			return fmt.Errorf("question %q: unknown kind %q", key, q.Kind)
		}
		if q.SkipIf != "" {
			if _, err := expr.Compile(q.SkipIf, expr.Env(exprEnv), expr.AsBool()); err != nil {
				return fmt.Errorf("question %q: invalid skip_if: %w", key, err)
			}
		}
		if q.AllowSkip {
			hasSkip = true
		}
	}
	if hasSkip {
		if _, ok := s.ContactIndex(); !ok {
			return errors.New("allow_skip requires at least one contact question to jump to")
		}
	}
	return nil
}

// LoadScript reads a script from a YAML file and validates it.
func LoadScript(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, fmt.Errorf("invalid script %s: %w", path, err)
	}
	return s, nil
}

// DefaultScript is the compiled-in fleet survey.
func DefaultScript() Script {
	features := []string{
		"Онлайн-оплата (Click/Payme)",
		"Рейтинг клиентов (скоринг)",
		"Аналитика и отчёты",
		"Админ-панель в Telegram",
		"API/1C интеграции",
		"Видимость в агрегаторе (витрина)",
	}
	return Script{Questions: []Question{
		{Key: "company", Text: "Как называется ваш автопарк/компания?", Kind: KindText, AllowSkip: true},
		{Key: "city", Text: "В каком городе вы работаете?", Kind: KindText},
		{Key: "fleet_size", Text: "Сколько машин в автопарке (примерно)?", Kind: KindText},
		{Key: "lead_channels", Text: "Где сейчас берёте клиентов? (Instagram, Telegram, сайт, Avtoelon и т.п.)", Kind: KindText},
		{Key: "features", Text: "Какие функции для вас важны? Отметьте кнопками, затем нажмите «Готово».", Kind: KindMulti, Options: features},
		{Key: "pilot_interest", Text: "Готовы участвовать в пилоте? (Да/Нет)", Kind: KindSingle, Options: []string{"Да", "Нет"}},
		{Key: "contact_name", Text: "Как связаться: контактное лицо (ФИО)?", Kind: KindText, Contact: true},
		{Key: "contact_phone", Text: "Оставьте номер телефона (или нажмите кнопку ниже «Отправить контакт»).", Kind: KindPhone, Contact: true},
	}}
}
