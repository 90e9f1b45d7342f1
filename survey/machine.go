package survey

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/expr-lang/expr"
	"go.uber.org/zap"

	"github.com/akramov/fleetpoll/sink"
)

type Status int

const (
	StatusInProgress Status = iota
	StatusCompleted
	StatusCancelled
)

var (
	ErrNoSession        = errors.New("no active survey")
	ErrNotMultiQuestion = errors.New("current question is not multi-choice")
	ErrUnknownOption    = errors.New("unknown option")
	ErrSkipNotAllowed   = errors.New("leaving contact only is not allowed here")
)

type User struct {
	ChatID   int64
	Username string
}

// Input is one inbound answer in whichever shape the transport received
// it: typed text, a pressed choice button, or a shared phone contact.
type Input struct {
	Text   string
	Choice string
	Phone  string
}

type Session struct {
	User      User
	Index     int
	Answers   []string
	Selected  map[string]bool
	Status    Status
	StartedAt time.Time

	emitted bool
}

// Coordinator owns the chat-to-Session map and drives every transition.
// All state lives here; handlers hold a reference, there are no globals.
type Coordinator struct {
	script Script
	sink   sink.Sink
	log    *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewCoordinator(script Script, s sink.Sink, log *zap.Logger) *Coordinator {
	return &Coordinator{
		script:   script,
		sink:     s,
		log:      log,
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
}

// Start resets or creates the user's Session at question 0 and returns the
// intro plus the first prompt.
func (c *Coordinator) Start(ctx context.Context, u User) []Prompt {
	c.mu.Lock()
	s := c.beginLocked(u)
	if s.Index >= c.script.Len() {
		row, emit := c.finalizeLocked(s)
		c.mu.Unlock()
		if emit {
			return []Prompt{c.deliver(ctx, row)}
		}
		return []Prompt{{Text: msgAlreadyDone}}
	}
	first := questionPrompt(c.script.Questions[s.Index], s.Selected)
	c.mu.Unlock()
	return []Prompt{{Text: msgSurveyIntro}, first}
}

// Submit validates the input against the current question. A valid answer
// is stored and the index advances; an invalid one re-prompts and leaves
// the Session unchanged. An unknown user is treated as an implicit Start
// and the input is not consumed.
func (c *Coordinator) Submit(ctx context.Context, u User, in Input) []Prompt {
	c.mu.Lock()
	s, ok := c.sessions[u.ChatID]
	if !ok {
		c.mu.Unlock()
		return c.Start(ctx, u)
	}
	if s.Status == StatusCompleted {
		c.mu.Unlock()
		return []Prompt{{Text: msgAlreadyDone}}
	}

	q := c.script.Questions[s.Index]
	val, err := validateAnswer(q, in)
	if err != nil {
		reprompt := questionPrompt(q, s.Selected)
		c.mu.Unlock()
		return []Prompt{{Text: validationMessage(q)}, reprompt}
	}

	s.Answers[s.Index] = val
	accepted := acceptancePrompts(q, val)
	next, row, emit := c.afterAnswerLocked(s)
	c.mu.Unlock()

	if next != nil {
		return append(accepted, *next)
	}
	if !emit {
		return []Prompt{{Text: msgAlreadyDone}}
	}
	return append(accepted, c.deliver(ctx, row))
}

// Toggle flips one option of the current multi-choice question and returns
// the refreshed keyboard.
func (c *Coordinator) Toggle(u User, option string) (Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[u.ChatID]
	if !ok || s.Status != StatusInProgress {
		return Prompt{}, ErrNoSession
	}
	q := c.script.Questions[s.Index]
	if q.Kind != KindMulti {
		return Prompt{}, ErrNotMultiQuestion
	}
	if !containsOption(q.Options, option) {
		return Prompt{}, ErrUnknownOption
	}

	if s.Selected[option] {
		delete(s.Selected, option)
	} else {
		s.Selected[option] = true
	}
	return Prompt{
		Keyboard: KeyboardMulti,
		Options:  optionStates(q.Options, s.Selected),
		Edit:     true,
	}, nil
}

// Done commits the current multi-choice selection, possibly empty, and
// advances.
func (c *Coordinator) Done(ctx context.Context, u User) ([]Prompt, error) {
	c.mu.Lock()
	s, ok := c.sessions[u.ChatID]
	if !ok || s.Status != StatusInProgress {
		c.mu.Unlock()
		return nil, ErrNoSession
	}
	q := c.script.Questions[s.Index]
	if q.Kind != KindMulti {
		c.mu.Unlock()
		return nil, ErrNotMultiQuestion
	}

	s.Answers[s.Index] = joinSelected(q.Options, s.Selected)
	next, row, emit := c.afterAnswerLocked(s)
	c.mu.Unlock()

	accepted := []Prompt{{Text: msgMultiAccepted}}
	if next != nil {
		return append(accepted, *next), nil
	}
	if !emit {
		return []Prompt{{Text: msgAlreadyDone}}, nil
	}
	return append(accepted, c.deliver(ctx, row)), nil
}

// Cancel discards the Session without emitting a row. From a clean state
// it is a no-op beyond the farewell message.
func (c *Coordinator) Cancel(u User) Prompt {
	c.mu.Lock()
	if s, ok := c.sessions[u.ChatID]; ok {
		s.Status = StatusCancelled
		delete(c.sessions, u.ChatID)
	}
	c.mu.Unlock()
	return Prompt{Text: msgCancelled, Keyboard: KeyboardRemove}
}

// SkipToContact jumps straight to the contact block, leaving the earlier
// answers empty. Permitted only when the current question allows it; a
// rejection leaves the session map untouched.
func (c *Coordinator) SkipToContact(u User) ([]Prompt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[u.ChatID]
	active := ok && s.Status == StatusInProgress
	if !active {
		s = c.newSessionLocked(u)
	}
	if s.Index >= c.script.Len() || !c.script.Questions[s.Index].AllowSkip {
		return nil, ErrSkipNotAllowed
	}
	ci, found := c.script.ContactIndex()
	if !found {
		return nil, ErrSkipNotAllowed
	}
	if !active {
		c.sessions[u.ChatID] = s
	}

	s.Index = ci
	s.Selected = make(map[string]bool)
	return []Prompt{questionPrompt(c.script.Questions[s.Index], s.Selected)}, nil
}

func (c *Coordinator) newSessionLocked(u User) *Session {
	s := &Session{
		User:      u,
		Answers:   make([]string, c.script.Len()),
		Selected:  make(map[string]bool),
		Status:    StatusInProgress,
		StartedAt: c.now(),
	}
	c.skipForwardLocked(s)
	return s
}

func (c *Coordinator) beginLocked(u User) *Session {
	s := c.newSessionLocked(u)
	c.sessions[u.ChatID] = s
	return s
}

// afterAnswerLocked advances past the just-answered question, evaluating
// skip_if branches, and either returns the next prompt or finalizes the
// Session. The returned row, if any, must be appended outside the lock.
func (c *Coordinator) afterAnswerLocked(s *Session) (next *Prompt, row []string, emit bool) {
	s.Index++
	s.Selected = make(map[string]bool)
	c.skipForwardLocked(s)
	if s.Index >= c.script.Len() {
		row, emit = c.finalizeLocked(s)
		return nil, row, emit
	}
	p := questionPrompt(c.script.Questions[s.Index], s.Selected)
	return &p, nil, false
}

func (c *Coordinator) skipForwardLocked(s *Session) {
	for s.Index < c.script.Len() {
		q := c.script.Questions[s.Index]
		if q.SkipIf == "" {
			return
		}
		skip, err := c.evalSkipLocked(s, q)
		if err != nil {
			c.log.Warn("skip_if evaluation failed; asking the question",
				zap.String("question", q.Key), zap.Error(err))
			return
		}
		if !skip {
			return
		}
		s.Index++
	}
}

func (c *Coordinator) evalSkipLocked(s *Session, q Question) (bool, error) {
	env := make(map[string]any, c.script.Len())
	for i, question := range c.script.Questions {
		env[question.Key] = s.Answers[i]
	}
	out, err := expr.Eval(q.SkipIf, env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("skip_if %q did not return a boolean", q.SkipIf)
	}
	return b, nil
}

// finalizeLocked transitions into Completed and hands out the response row
// at most once per Session.
func (c *Coordinator) finalizeLocked(s *Session) ([]string, bool) {
	s.Status = StatusCompleted
	if s.emitted {
		return nil, false
	}
	s.emitted = true

	username := strings.TrimSpace(s.User.Username)
	if username != "" {
		username = "@" + username
	}
	row := []string{
		c.now().UTC().Format(time.RFC3339),
		strconv.FormatInt(s.User.ChatID, 10),
		username,
	}
	row = append(row, s.Answers...)
	return row, true
}

func (c *Coordinator) deliver(ctx context.Context, row []string) Prompt {
	if err := c.sink.Append(ctx, row); err != nil {
		c.log.Error("response append failed", zap.Error(err))
		return Prompt{Text: msgSavedDegraded, Keyboard: KeyboardRemove}
	}
	return Prompt{Text: msgSavedOK, Keyboard: KeyboardRemove}
}

func validateAnswer(q Question, in Input) (string, error) {
	switch q.Kind {
	case KindText:
		t := strings.TrimSpace(in.Text)
		if t == "" {
			return "", errors.New("empty text answer")
		}
		return t, nil
	case KindSingle:
		v := strings.TrimSpace(in.Choice)
		if v == "" {
			v = strings.TrimSpace(in.Text)
		}
		if !containsOption(q.Options, v) {
			return "", fmt.Errorf("%q is not one of the options", v)
		}
		return v, nil
	case KindMulti:
		// Typed fallback; the usual path is Toggle plus Done.
		t := strings.TrimSpace(in.Text)
		if t == "" {
			return "", errors.New("empty multi-choice answer")
		}
		chosen := make(map[string]bool)
		for _, part := range strings.Split(t, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !containsOption(q.Options, part) {
				return "", fmt.Errorf("%q is not one of the options", part)
			}
			chosen[part] = true
		}
		if len(chosen) == 0 {
			return "", errors.New("empty multi-choice answer")
		}
		return joinSelected(q.Options, chosen), nil
	case KindPhone:
		if p := strings.TrimSpace(in.Phone); p != "" {
			return p, nil
		}
		t := strings.TrimSpace(in.Text)
		if t == "" {
			return "", errors.New("empty phone answer")
		}
		return t, nil
	default:
		return "", fmt.Errorf("unknown question kind %q", q.Kind)
	}
}

func validationMessage(q Question) string {
	switch q.Kind {
	case KindSingle:
		return msgNeedChoice
	case KindMulti:
		return msgNeedSubset
	case KindPhone:
		return msgNeedPhone
	default:
		return msgNeedText
	}
}

func acceptancePrompts(q Question, val string) []Prompt {
	switch q.Kind {
	case KindSingle:
		return []Prompt{{Text: fmt.Sprintf(msgChoiceEchoFmt, val)}}
	case KindPhone:
		return []Prompt{{Text: msgPhoneAccepted, Keyboard: KeyboardRemove}}
	default:
		return nil
	}
}

func containsOption(options []string, v string) bool {
	for _, opt := range options {
		if opt == v {
			return true
		}
	}
	return false
}

// joinSelected flattens a selection set into one answer cell, preserving
// script option order.
func joinSelected(options []string, selected map[string]bool) string {
	var picked []string
	for _, opt := range options {
		if selected[opt] {
			picked = append(picked, opt)
		}
	}
	return strings.Join(picked, ", ")
}
