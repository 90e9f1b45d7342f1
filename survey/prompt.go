package survey

// KeyboardKind tells the transport which keyboard to attach to a prompt.
// The machine stays transport-neutral; the bot layer maps these onto
// Telegram reply markup.
type KeyboardKind int

const (
	KeyboardNone KeyboardKind = iota
	KeyboardMenu
	KeyboardChoice
	KeyboardMulti
	KeyboardPhone
	KeyboardRemove
)

type Option struct {
	Label    string
	Selected bool
}

// Prompt is one outbound chat turn. When Edit is set the prompt refreshes
// the keyboard of the message it was triggered from instead of sending a
// new message.
type Prompt struct {
	Text     string
	Keyboard KeyboardKind
	Options  []Option
	Edit     bool
}

const (
	msgGreeting = "Привет! Мы готовим платформу, которая помогает автопаркам получать клиентов напрямую.\n" +
		"Хотим учесть ваши пожелания — ответьте на пару вопросов 🙌"
	msgSurveyIntro   = "Начнём! Можно остановиться в любой момент командой /cancel."
	msgCancelled     = "Окей, остановил опрос. Возвращайтесь, когда будет удобно."
	msgAlreadyDone   = "Мы уже закончили опрос. Нажмите /start, чтобы начать заново."
	msgSavedOK       = "Спасибо! Ваши ответы сохранены. Мы свяжемся с вами по итогам беты 🙌"
	msgSavedDegraded = "Спасибо! Ответы получены. (Не смог записать в таблицу — сохраняю у себя. Мы всё равно свяжемся.)"
	msgMultiAccepted = "Принято ✅"
	msgPhoneAccepted = "Спасибо! 👍"
	msgNeedText      = "Пожалуйста, отправьте ответ текстом."
	msgNeedChoice    = "Пожалуйста, выберите один из предложенных вариантов."
	msgNeedSubset    = "Пожалуйста, отметьте варианты кнопками под сообщением."
	msgNeedPhone     = "Пожалуйста, отправьте номер телефона или нажмите кнопку «Отправить контакт»."
	msgChoiceEchoFmt = "Ответ: %s"
)

// Greeting is the /start menu: take the survey or leave a contact only.
func Greeting() Prompt {
	return Prompt{Text: msgGreeting, Keyboard: KeyboardMenu}
}

func questionPrompt(q Question, selected map[string]bool) Prompt {
	switch q.Kind {
	case KindSingle:
		return Prompt{Text: q.Text, Keyboard: KeyboardChoice, Options: optionStates(q.Options, nil)}
	case KindMulti:
		return Prompt{Text: q.Text, Keyboard: KeyboardMulti, Options: optionStates(q.Options, selected)}
	case KindPhone:
		return Prompt{Text: q.Text, Keyboard: KeyboardPhone}
	default:
		return Prompt{Text: q.Text}
	}
}

func optionStates(options []string, selected map[string]bool) []Option {
	out := make([]Option, 0, len(options))
	for _, opt := range options {
		out = append(out, Option{Label: opt, Selected: selected[opt]})
	}
	return out
}
