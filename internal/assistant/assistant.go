// Package assistant keeps the transcript of one conversation with the
// farming assistant and makes sure only one question is answered at a time.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyQuestion = errors.New("assistant: empty question")
	ErrBusy          = errors.New("assistant: a question is already being answered")
	ErrNoMessage     = errors.New("assistant: no such message")
)

// Role of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID      string
	Role    Role
	Text    string
	Pending bool // placeholder waiting for an answer
}

// Backend answers questions.
type Backend interface {
	Ask(ctx context.Context, req api.AskRequest) (string, error)
}

// Speaker reads answers aloud.
type Speaker interface {
	Speak(text string) error
	Stop()
}

// Option configures a Session.
type Option func(*Session)

// WithTopic sets the subject of the conversation and how sure the caller is
// about it (0 to 100).
func WithTopic(topic string, confidence float64) Option {
	return func(s *Session) {
		s.topic = topic
		s.confidence = confidence
	}
}

// WithDetails attaches extra context sent with every question.
func WithDetails(details map[string]any) Option {
	return func(s *Session) { s.details = details }
}

// WithLanguage sets the answer language and the session texts.
func WithLanguage(lang string) Option {
	return func(s *Session) {
		s.lang = lang
		s.texts = TextsFor(lang)
	}
}

// WithTexts overrides the session texts.
func WithTexts(t Texts) Option {
	return func(s *Session) { s.texts = t }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) {
		if log != nil {
			s.log = log
		}
	}
}

// Session is one assistant conversation.
type Session struct {
	backend Backend
	speaker Speaker
	log     logrus.FieldLogger

	topic      string
	confidence float64
	details    map[string]any
	lang       string
	texts      Texts

	mu       sync.Mutex
	messages []Message
	inFlight bool
	epoch    uint64 // bumped by Close so older Pendings resolve to nothing
}

// New starts a conversation with the greeting as its only message. speaker
// may be nil.
func New(backend Backend, speaker Speaker, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		speaker: speaker,
		log:     logger.Discard(),
		lang:    "mr",
		texts:   TextsFor("mr"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "assistant")
	s.reset()
	return s
}

func (s *Session) reset() {
	s.messages = []Message{{ID: uuid.NewString(), Role: RoleAssistant, Text: s.texts.Greeting}}
}

// Pending is a question waiting for its answer.
type Pending struct {
	s        *Session
	epoch    uint64
	index    int
	question string
}

// Question returns the trimmed question text.
func (p *Pending) Question() string { return p.question }

// Ask records the question and a placeholder answer. The caller resolves
// the returned Pending, typically off the UI goroutine.
func (s *Session) Ask(question string) (*Pending, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight {
		return nil, ErrBusy
	}

	s.messages = append(s.messages,
		Message{ID: uuid.NewString(), Role: RoleUser, Text: question},
		Message{ID: uuid.NewString(), Role: RoleAssistant, Text: s.texts.Placeholder, Pending: true},
	)
	s.inFlight = true
	return &Pending{s: s, epoch: s.epoch, index: len(s.messages) - 1, question: question}, nil
}

// Resolve asks the backend and replaces the placeholder with the answer or
// a failure message. It returns the backend error, if any. A Pending from
// before the last Close changes nothing.
func (p *Pending) Resolve(ctx context.Context) error {
	s := p.s
	defer s.finish(p.epoch)

	answer, err := s.backend.Ask(ctx, api.AskRequest{
		Question:   p.question,
		Topic:      s.topic,
		Confidence: s.confidence,
		Details:    s.details,
		Language:   s.lang,
	})

	text, speak := answer, true
	switch {
	case errors.Is(err, api.ErrEmptyAnswer):
		text = s.texts.NoAnswer
	case err != nil:
		text, speak = s.texts.Failure, false
		s.log.WithError(err).Warn("ask")
	}

	s.mu.Lock()
	if p.epoch != s.epoch || p.index >= len(s.messages) {
		s.mu.Unlock()
		return err
	}
	s.messages[p.index] = Message{ID: s.messages[p.index].ID, Role: RoleAssistant, Text: text}
	s.mu.Unlock()

	if speak {
		s.say(text)
	}
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}
	return nil
}

func (s *Session) finish(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch == s.epoch {
		s.inFlight = false
	}
}

func (s *Session) say(text string) {
	if s.speaker == nil {
		return
	}
	if err := s.speaker.Speak(text); err != nil {
		s.log.WithError(err).Debug("speak answer")
	}
}

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// InFlight reports whether a question is waiting for its answer.
func (s *Session) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Topic returns the conversation subject and confidence.
func (s *Session) Topic() (string, float64) {
	return s.topic, s.confidence
}

// Language returns the session language.
func (s *Session) Language() string { return s.lang }

// Mute stops any speech.
func (s *Session) Mute() {
	if s.speaker != nil {
		s.speaker.Stop()
	}
}

// Replay speaks assistant message i again.
func (s *Session) Replay(i int) error {
	s.mu.Lock()
	if i < 0 || i >= len(s.messages) || s.messages[i].Role != RoleAssistant || s.messages[i].Pending {
		s.mu.Unlock()
		return ErrNoMessage
	}
	text := s.messages[i].Text
	s.mu.Unlock()

	s.say(text)
	return nil
}

// Close stops speech and starts the conversation over. Answers still on
// their way are dropped.
func (s *Session) Close() {
	s.Mute()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.inFlight = false
	s.reset()
}

var bulletPrefix = regexp.MustCompile(`^[-*•]\s*`)

// Bullets splits an answer into its non-empty lines with any list marker
// removed.
func Bullets(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = bulletPrefix.ReplaceAllString(strings.TrimSpace(line), "")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
