// Package daemon provides the client and protocol types for talking to the
// local speech daemon over a Unix socket using NDJSON. The daemon owns the
// microphone and the speaker; recognition and synthesis are both driven
// through it.
package daemon

import "github.com/jwulff/krishi/internal/speech"

// Command is sent from a client to the daemon.
type Command struct {
	Cmd         string   `json:"cmd"`
	Locale      string   `json:"locale,omitempty"`
	Single      *bool    `json:"single,omitempty"`
	Text        string   `json:"text,omitempty"`
	Rate        float64  `json:"rate,omitempty"`
	Pitch       float64  `json:"pitch,omitempty"`
	Voice       string   `json:"voice,omitempty"`
	UtteranceID string   `json:"utteranceId,omitempty"`
	Events      []string `json:"events,omitempty"`
}

// Command names.
const (
	CmdSubscribe = "subscribe"
	CmdStatus    = "status"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdSpeak     = "speak"
	CmdCancel    = "cancel"
	CmdVoices    = "voices"
)

// Response is returned by the daemon after processing a command.
type Response struct {
	OK        bool           `json:"ok"`
	Error     string         `json:"error,omitempty"`
	Status    string         `json:"status,omitempty"`
	Listening *bool          `json:"listening,omitempty"`
	Speaking  *bool          `json:"speaking,omitempty"`
	Voices    []speech.Voice `json:"voices,omitempty"`
}

// Alternative is one recognition candidate.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event        string        `json:"event"`
	Text         string        `json:"text,omitempty"`
	Alternatives []Alternative `json:"alternatives,omitempty"`
	Code         string        `json:"code,omitempty"`
	Message      string        `json:"message,omitempty"`
	UtteranceID  string        `json:"utteranceId,omitempty"`
	Mic          *float32      `json:"mic,omitempty"`
}

// Event names.
const (
	EventListening    = "listening"
	EventPartial      = "partial"
	EventSegment      = "segment"
	EventError        = "error"
	EventEnded        = "ended"
	EventLevel        = "level"
	EventUtteranceEnd = "utterance_end"
)

// BoolPtr returns a pointer to a bool value. Convenience for building commands.
func BoolPtr(b bool) *bool { return &b }
