// Package voice drives a speech recognition engine through one listening
// attempt at a time.
//
// Engine callbacks arrive as Events passed to Recognizer.Handle. The
// recognizer moves Idle → Starting → Listening → Done and back to Idle when
// the engine reports the end of the attempt. An error at any point returns
// it to Idle with LastError set.
package voice

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jwulff/krishi/internal/logger"
	"github.com/sirupsen/logrus"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("voice: recognizer closed")

// State of the current listening attempt.
type State int

const (
	Idle State = iota
	Starting
	Listening
	Done
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Listening:
		return "listening"
	case Done:
		return "done"
	default:
		return "idle"
	}
}

// ErrorKind classifies engine errors.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrPermissionDenied
	ErrNoSpeech
	ErrAudioCapture
	ErrNetwork
	ErrOther
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrPermissionDenied:
		return "permission-denied"
	case ErrNoSpeech:
		return "no-speech"
	case ErrAudioCapture:
		return "audio-capture"
	case ErrNetwork:
		return "network"
	default:
		return "other"
	}
}

// Classify maps an engine error code onto an ErrorKind.
func Classify(code string) ErrorKind {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "not-allowed", "service-not-allowed", "permission-denied":
		return ErrPermissionDenied
	case "no-speech":
		return ErrNoSpeech
	case "audio-capture":
		return ErrAudioCapture
	case "network":
		return ErrNetwork
	default:
		return ErrOther
	}
}

// Guidance is the user-facing text for an error kind.
func Guidance(k ErrorKind) string {
	switch k {
	case ErrPermissionDenied:
		return "Mic permission denied (allow microphone access)"
	case ErrNoSpeech:
		return "No speech detected, try again"
	case ErrAudioCapture:
		return "Microphone not found"
	case ErrNetwork:
		return "Network issue in voice recognition"
	case ErrOther:
		return "Voice error, try again"
	default:
		return ""
	}
}

const (
	statusStarting  = "Starting mic..."
	statusListening = "Listening..."
)

// Engine is a speech recognition capability. Start must not be called while
// a previous attempt is still running. Neither method may call back into the
// Recognizer synchronously.
type Engine interface {
	Start() error
	Stop() error
}

// EventType names an engine callback.
type EventType int

const (
	EventStart EventType = iota
	EventResult
	EventError
	EventEnd
)

// Alternative is one transcript candidate.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Event is one engine callback.
type Event struct {
	Type         EventType
	Alternatives []Alternative // EventResult
	Code         string        // EventError
}

// Best returns the highest-confidence candidate, trimmed. The first one
// wins ties.
func Best(alts []Alternative) string {
	best := -1
	for i, a := range alts {
		if strings.TrimSpace(a.Transcript) == "" {
			continue
		}
		if best < 0 || a.Confidence > alts[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return strings.TrimSpace(alts[best].Transcript)
}

// Recognizer is the listening state machine.
type Recognizer struct {
	mu       sync.Mutex
	engine   Engine
	consumer func(text string)
	log      logrus.FieldLogger

	state    State
	inFlight bool // set by Start, cleared by the end or error of the attempt
	lastErr  ErrorKind
	result   string
	status   string
	closed   bool
}

// New returns an idle Recognizer that hands recognised text to consumer.
func New(engine Engine, consumer func(text string), log logrus.FieldLogger) *Recognizer {
	if log == nil {
		log = logger.Discard()
	}
	return &Recognizer{
		engine:   engine,
		consumer: consumer,
		log:      log.WithField("component", "voice"),
	}
}

// Start begins a listening attempt. It does nothing while an attempt is
// already starting or listening.
func (r *Recognizer) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.inFlight || r.state == Starting || r.state == Listening {
		return nil
	}

	r.inFlight = true
	r.state = Starting
	r.lastErr = ErrNone
	r.result = ""
	r.status = statusStarting

	if err := r.engine.Start(); err != nil {
		r.inFlight = false
		r.state = Idle
		r.lastErr = ErrOther
		r.status = "Unable to start voice input"
		r.log.WithError(err).Warn("start recognition")
		return fmt.Errorf("start recognition: %w", err)
	}
	return nil
}

// Stop asks the engine to end the current attempt. The engine's end event
// returns the recognizer to Idle.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopEngine()
}

// Close releases the engine regardless of state.
func (r *Recognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.stopEngine()
}

// Handle applies one engine event.
func (r *Recognizer) Handle(ev Event) {
	var deliver string

	r.mu.Lock()
	switch ev.Type {
	case EventStart:
		if r.state == Starting {
			r.state = Listening
			r.status = statusListening
		}

	case EventResult:
		if r.state != Starting && r.state != Listening {
			break
		}
		text := Best(ev.Alternatives)
		if text != "" {
			r.result = text
			r.state = Done
			r.status = fmt.Sprintf("Detected: %q", text)
			deliver = text
		} else {
			r.status = "Could not detect speech"
		}
		r.stopEngine()

	case EventError:
		r.lastErr = Classify(ev.Code)
		r.state = Idle
		r.inFlight = false
		r.status = Guidance(r.lastErr)
		r.log.WithFields(logrus.Fields{"code": ev.Code, "kind": r.lastErr.String()}).Info("recognition error")
		r.stopEngine()

	case EventEnd:
		r.state = Idle
		r.inFlight = false
		if r.status == statusStarting || r.status == statusListening {
			r.status = ""
		}
	}
	consumer := r.consumer
	r.mu.Unlock()

	if deliver != "" && consumer != nil {
		consumer(deliver)
	}
}

// stopEngine requests a stop and swallows the error; the engine may already
// be stopped. Callers hold r.mu.
func (r *Recognizer) stopEngine() {
	if err := r.engine.Stop(); err != nil {
		r.log.WithError(err).Debug("stop recognition")
	}
}

// State returns the current state.
func (r *Recognizer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// LastError returns the kind of the last engine error of this attempt.
func (r *Recognizer) LastError() ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// Result returns the text recognised in the last attempt, if any.
func (r *Recognizer) Result() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.result != ""
}

// Status is a one-line description of the attempt for display.
func (r *Recognizer) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Active reports whether an attempt is starting or listening.
func (r *Recognizer) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight || r.state == Starting || r.state == Listening
}
