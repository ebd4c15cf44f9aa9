package daemon

import (
	"fmt"
	"sync"

	"github.com/jwulff/krishi/internal/speech"
	"github.com/jwulff/krishi/internal/voice"
)

// Commander sends one command and returns the daemon's answer.
type Commander interface {
	Call(cmd Command) (Response, error)
}

// Recognition drives the daemon's recogniser as a voice.Engine. Its events
// arrive on the event connection and are turned into voice events with
// ToVoiceEvent.
type Recognition struct {
	client Commander
	locale string
}

// NewRecognition returns a recognition engine listening in locale.
func NewRecognition(client Commander, locale string) *Recognition {
	return &Recognition{client: client, locale: locale}
}

// Start asks for one utterance.
func (r *Recognition) Start() error {
	if _, err := r.client.Call(Command{Cmd: CmdStart, Locale: r.locale, Single: BoolPtr(true)}); err != nil {
		return fmt.Errorf("start listening: %w", err)
	}
	return nil
}

// Stop ends listening.
func (r *Recognition) Stop() error {
	if _, err := r.client.Call(Command{Cmd: CmdStop}); err != nil {
		return fmt.Errorf("stop listening: %w", err)
	}
	return nil
}

// ToVoiceEvent maps a daemon event onto a recogniser event. ok is false for
// events the recogniser does not consume.
func ToVoiceEvent(ev Event) (voice.Event, bool) {
	switch ev.Event {
	case EventListening:
		return voice.Event{Type: voice.EventStart}, true
	case EventSegment:
		alts := make([]voice.Alternative, 0, len(ev.Alternatives)+1)
		for _, a := range ev.Alternatives {
			alts = append(alts, voice.Alternative{Transcript: a.Transcript, Confidence: a.Confidence})
		}
		if len(alts) == 0 && ev.Text != "" {
			alts = append(alts, voice.Alternative{Transcript: ev.Text, Confidence: 1})
		}
		return voice.Event{Type: voice.EventResult, Alternatives: alts}, true
	case EventError:
		return voice.Event{Type: voice.EventError, Code: ev.Code}, true
	case EventEnded:
		return voice.Event{Type: voice.EventEnd}, true
	}
	return voice.Event{}, false
}

// Synthesis drives the daemon's speaker as a speech.Engine. Completion is
// reported through Finished when an utterance_end event arrives.
type Synthesis struct {
	client Commander

	mu      sync.Mutex
	pending map[string]func()
}

// NewSynthesis returns a synthesis engine.
func NewSynthesis(client Commander) *Synthesis {
	return &Synthesis{client: client, pending: make(map[string]func())}
}

// Speak queues u on the daemon.
func (s *Synthesis) Speak(u speech.Utterance, done func()) error {
	s.mu.Lock()
	s.pending[u.ID] = done
	s.mu.Unlock()

	_, err := s.client.Call(Command{
		Cmd:         CmdSpeak,
		Text:        u.Text,
		Locale:      u.Lang,
		Rate:        u.Rate,
		Pitch:       u.Pitch,
		Voice:       u.Voice,
		UtteranceID: u.ID,
	})
	if err != nil {
		s.mu.Lock()
		delete(s.pending, u.ID)
		s.mu.Unlock()
		return fmt.Errorf("speak: %w", err)
	}
	return nil
}

// Cancel drops everything queued or playing. Their completion callbacks
// are forgotten.
func (s *Synthesis) Cancel() error {
	s.mu.Lock()
	clear(s.pending)
	s.mu.Unlock()

	if _, err := s.client.Call(Command{Cmd: CmdCancel}); err != nil {
		return fmt.Errorf("cancel speech: %w", err)
	}
	return nil
}

// Voices lists the daemon's voices.
func (s *Synthesis) Voices() ([]speech.Voice, error) {
	resp, err := s.client.Call(Command{Cmd: CmdVoices})
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	return resp.Voices, nil
}

// Finished runs the completion callback of utterance id, once. Unknown or
// cancelled IDs are ignored.
func (s *Synthesis) Finished(id string) {
	s.mu.Lock()
	done, ok := s.pending[id]
	delete(s.pending, id)
	s.mu.Unlock()

	if ok && done != nil {
		done()
	}
}
