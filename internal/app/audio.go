package app

import (
	"errors"
	"sync"

	"github.com/jwulff/krishi/internal/daemon"
	"github.com/jwulff/krishi/internal/speech"
	"github.com/jwulff/krishi/internal/voice"
	"github.com/sirupsen/logrus"
)

var errNoDaemon = errors.New("speech daemon not connected")

// synthEngine is a speech engine told about finished utterances.
type synthEngine interface {
	speech.Engine
	Finished(id string)
}

// audio holds the engines built on the current daemon connection. It is
// shared by the UI loop and assistant commands running in the background.
type audio struct {
	mu     sync.Mutex
	cmd    *daemon.Client
	ev     *daemon.Client
	synth  synthEngine
	ctrl   *speech.Controller
	rec    *voice.Recognizer
	heard  []string
	opts   speech.Options
	log    logrus.FieldLogger
	locale string
}

func newAudio(locale string, opts speech.Options, log logrus.FieldLogger) *audio {
	return &audio{locale: locale, opts: opts, log: log}
}

// attach builds the engines on a fresh daemon connection pair.
func (a *audio) attach(cmd, ev *daemon.Client) {
	a.install(daemon.NewRecognition(cmd, a.locale), daemon.NewSynthesis(cmd))
	a.mu.Lock()
	a.cmd, a.ev = cmd, ev
	a.mu.Unlock()
}

func (a *audio) install(rec voice.Engine, synth synthEngine) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.synth = synth
	a.ctrl = speech.New(synth, a.opts, a.log)
	a.rec = voice.New(rec, a.hear, a.log)
}

// detach drops the connection and everything built on it.
func (a *audio) detach() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd != nil {
		a.cmd.Close()
	}
	if a.ev != nil {
		a.ev.Close()
	}
	if a.rec != nil {
		a.rec.Close()
	}
	a.cmd, a.ev, a.synth, a.ctrl, a.rec = nil, nil, nil, nil, nil
	a.heard = nil
}

func (a *audio) hear(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.heard = append(a.heard, text)
}

// takeHeard returns and forgets the text recognised since the last call.
func (a *audio) takeHeard() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	h := a.heard
	a.heard = nil
	return h
}

func (a *audio) recognizer() *voice.Recognizer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec
}

func (a *audio) controller() *speech.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctrl
}

func (a *audio) finished(id string) {
	a.mu.Lock()
	s := a.synth
	a.mu.Unlock()
	if s != nil {
		s.Finished(id)
	}
}

// Speak implements assistant.Speaker.
func (a *audio) Speak(text string) error {
	c := a.controller()
	if c == nil {
		return errNoDaemon
	}
	return c.Speak(text)
}

// Stop implements assistant.Speaker.
func (a *audio) Stop() {
	if c := a.controller(); c != nil {
		c.Stop()
	}
}

func (a *audio) speakSequence(segs []string) {
	if c := a.controller(); c != nil {
		c.SpeakSequence(segs)
	}
}
