package app

import (
	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/daemon"
	"github.com/jwulff/krishi/internal/route"
	"github.com/jwulff/krishi/internal/session"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (start, stop, speak, cancel, voices)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ForbiddenMsg is sent by the HTTP client when the backend refuses access.
type ForbiddenMsg struct{}

// AuthDoneMsg carries the outcome of a login or registration.
type AuthDoneMsg struct {
	View route.View
	Err  error
}

// AnswerMsg is sent when an assistant question has been resolved.
type AnswerMsg struct {
	Err error
}

// VoiceStartedMsg carries the result of starting the recogniser.
type VoiceStartedMsg struct {
	Err error
}

// VoiceFieldsMsg carries crop form fields parsed from speech.
type VoiceFieldsMsg struct {
	Fields map[string]string
	Err    error
}

// CropResultMsg carries the crop recommendation.
type CropResultMsg struct {
	Picks []api.CropPick
	Err   error
}

// SubmitCropMsg submits the crop form once voice filled every field.
type SubmitCropMsg struct{}

// LocationMsg carries the formatted farm location.
type LocationMsg struct {
	Text string
}

// ProfileMsg carries the user behind the current token.
type ProfileMsg struct {
	User session.User
	Err  error
}
