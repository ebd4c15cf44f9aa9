// Package speech queues text for a speech synthesis engine.
//
// A Controller plays either a single utterance or an ordered sequence of
// segments with a short lead-in and a fixed gap between segments. Any new
// request or Stop cancels what is playing and discards the rest of the
// sequence.
package speech

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/sirupsen/logrus"
)

// Voice is one synthesis voice offered by the engine.
type Voice struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// Utterance is one piece of text handed to the engine.
type Utterance struct {
	ID    string
	Text  string
	Lang  string
	Rate  float64
	Pitch float64
	Voice string
}

// Engine is a speech synthesis capability. Speak must return promptly; done
// is called once the utterance has finished playing and is never called for
// a cancelled utterance. Cancel drops everything queued or playing.
type Engine interface {
	Speak(u Utterance, done func()) error
	Cancel() error
	Voices() ([]Voice, error)
}

// Options tune a Controller. Zero values take the defaults.
type Options struct {
	Locales   []string // voice preference, most wanted first
	Rate      float64
	Pitch     float64
	LeadIn    time.Duration
	Gap       time.Duration
	Normalize *strings.Replacer // applied to every segment before speaking
}

// DefaultLocales is the voice preference chain.
var DefaultLocales = []string{"mr-IN", "hi-IN", "en-IN"}

const (
	defaultLeadIn = 200 * time.Millisecond
	defaultGap    = 600 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if len(o.Locales) == 0 {
		o.Locales = DefaultLocales
	}
	if o.Rate == 0 {
		o.Rate = 1
	}
	if o.Pitch == 0 {
		o.Pitch = 1
	}
	if o.LeadIn == 0 {
		o.LeadIn = defaultLeadIn
	}
	if o.Gap == 0 {
		o.Gap = defaultGap
	}
	return o
}

// MarathiNumbers spells out money ranges and units the way a Marathi voice
// should read them ("₹40k-60k/acre" becomes "40 हजार ते 60 हजार प्रति एकर").
var MarathiNumbers = strings.NewReplacer(
	"₹", "",
	"/acre", " प्रति एकर",
	"/hectare", " प्रति हेक्टर",
	"/", " प्रति ",
	"-", " ते ",
	"k", " हजार",
	"L", " लाख",
)

// SelectVoice picks the first voice matching the locale chain in order,
// comparing case-insensitively with "_" and "-" treated alike. Without a
// match it falls back to the first voice. ok is false when there are no
// voices at all.
func SelectVoice(voices []Voice, locales []string) (Voice, bool) {
	for _, want := range locales {
		want = canonicalLocale(want)
		for _, v := range voices {
			if canonicalLocale(v.Lang) == want {
				return v, true
			}
		}
	}
	if len(voices) > 0 {
		return voices[0], true
	}
	return Voice{}, false
}

func canonicalLocale(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}

// Controller owns the engine's queue.
type Controller struct {
	engine Engine
	opts   Options
	log    logrus.FieldLogger

	mu  sync.Mutex
	gen uint64 // bumped by every cancel; stale callbacks compare against it
}

// New returns a Controller for engine.
func New(engine Engine, opts Options, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logger.Discard()
	}
	return &Controller{
		engine: engine,
		opts:   opts.withDefaults(),
		log:    log.WithField("component", "speech"),
	}
}

// Speak cancels whatever is playing and speaks text once, immediately.
func (c *Controller) Speak(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	u, ok := c.utterance(text, c.pickVoice())
	if !ok {
		return nil
	}
	if err := c.engine.Speak(u, func() {}); err != nil {
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// SpeakSequence cancels whatever is playing and, after the lead-in, speaks
// segs in order with the configured gap after each one finishes.
func (c *Controller) SpeakSequence(segs []string) {
	c.mu.Lock()
	c.cancelLocked()
	gen := c.gen
	voice := c.pickVoice()
	c.mu.Unlock()

	if len(segs) == 0 {
		return
	}
	segs = append([]string(nil), segs...)
	time.AfterFunc(c.opts.LeadIn, func() { c.play(gen, segs, 0, voice) })
}

// Stop cancels speech and drops the rest of any sequence. Calling it when
// nothing is playing is harmless.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Controller) play(gen uint64, segs []string, i int, voice string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// skip blanks so one empty segment does not end the sequence
	for ; i < len(segs); i++ {
		if gen != c.gen {
			return
		}
		u, ok := c.utterance(segs[i], voice)
		if !ok {
			continue
		}
		next := i + 1
		done := func() {
			if next < len(segs) {
				time.AfterFunc(c.opts.Gap, func() { c.play(gen, segs, next, voice) })
			}
		}
		if err := c.engine.Speak(u, done); err != nil {
			c.log.WithError(err).WithField("segment", i).Warn("speak segment")
			continue
		}
		return
	}
}

func (c *Controller) cancelLocked() {
	c.gen++
	if err := c.engine.Cancel(); err != nil {
		c.log.WithError(err).Debug("cancel speech")
	}
}

func (c *Controller) pickVoice() string {
	voices, err := c.engine.Voices()
	if err != nil {
		c.log.WithError(err).Debug("list voices")
		return ""
	}
	v, ok := SelectVoice(voices, c.opts.Locales)
	if !ok {
		return ""
	}
	return v.Name
}

func (c *Controller) utterance(text, voice string) (Utterance, bool) {
	if c.opts.Normalize != nil {
		text = c.opts.Normalize.Replace(text)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Utterance{}, false
	}
	return Utterance{
		ID:    uuid.NewString(),
		Text:  text,
		Lang:  c.opts.Locales[0],
		Rate:  c.opts.Rate,
		Pitch: c.opts.Pitch,
		Voice: voice,
	}, true
}
