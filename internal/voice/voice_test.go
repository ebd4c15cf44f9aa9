package voice

import (
	"errors"
	"testing"
)

type fakeEngine struct {
	starts   int
	stops    int
	startErr error
	stopErr  error
}

func (f *fakeEngine) Start() error {
	f.starts++
	return f.startErr
}

func (f *fakeEngine) Stop() error {
	f.stops++
	return f.stopErr
}

func newTestRecognizer() (*Recognizer, *fakeEngine, *[]string) {
	eng := &fakeEngine{}
	var got []string
	r := New(eng, func(text string) { got = append(got, text) }, nil)
	return r, eng, &got
}

func TestHappyPath(t *testing.T) {
	r, eng, got := newTestRecognizer()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.State() != Starting {
		t.Errorf("state = %v, want starting", r.State())
	}

	r.Handle(Event{Type: EventStart})
	if r.State() != Listening {
		t.Errorf("state = %v, want listening", r.State())
	}

	r.Handle(Event{Type: EventResult, Alternatives: []Alternative{{Transcript: "  कापूस पीक  ", Confidence: 0.9}}})
	if r.State() != Done {
		t.Errorf("state = %v, want done", r.State())
	}
	if len(*got) != 1 || (*got)[0] != "कापूस पीक" {
		t.Errorf("consumer got %q", *got)
	}
	if eng.stops != 1 {
		t.Errorf("stops = %d, want 1 after result", eng.stops)
	}
	if text, ok := r.Result(); !ok || text != "कापूस पीक" {
		t.Errorf("Result = %q, %v", text, ok)
	}

	r.Handle(Event{Type: EventEnd})
	if r.State() != Idle {
		t.Errorf("state = %v, want idle after end", r.State())
	}
	if r.Active() {
		t.Error("should not be active after end")
	}
}

func TestDoubleStartIsSingleEngineStart(t *testing.T) {
	r, eng, _ := newTestRecognizer()

	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if eng.starts != 1 {
		t.Errorf("engine starts = %d, want 1", eng.starts)
	}

	r.Handle(Event{Type: EventStart})
	r.Start()
	if eng.starts != 1 {
		t.Errorf("engine starts while listening = %d, want 1", eng.starts)
	}
}

func TestStartBlockedUntilEnd(t *testing.T) {
	r, eng, _ := newTestRecognizer()

	r.Start()
	r.Handle(Event{Type: EventStart})
	r.Handle(Event{Type: EventResult, Alternatives: []Alternative{{Transcript: "yes"}}})

	// done but the engine has not reported its end yet
	r.Start()
	if eng.starts != 1 {
		t.Errorf("starts before end = %d, want 1", eng.starts)
	}

	r.Handle(Event{Type: EventEnd})
	if err := r.Start(); err != nil {
		t.Fatalf("Start after end: %v", err)
	}
	if eng.starts != 2 {
		t.Errorf("starts after end = %d, want 2", eng.starts)
	}
}

func TestConsumerCalledOnce(t *testing.T) {
	r, _, got := newTestRecognizer()

	r.Start()
	r.Handle(Event{Type: EventStart})
	r.Handle(Event{Type: EventResult, Alternatives: []Alternative{{Transcript: "one"}}})
	r.Handle(Event{Type: EventResult, Alternatives: []Alternative{{Transcript: "two"}}})

	if len(*got) != 1 || (*got)[0] != "one" {
		t.Errorf("consumer got %q, want [one]", *got)
	}
}

func TestEmptyResultDoesNotDeliver(t *testing.T) {
	r, eng, got := newTestRecognizer()

	r.Start()
	r.Handle(Event{Type: EventStart})
	r.Handle(Event{Type: EventResult, Alternatives: []Alternative{{Transcript: "   "}}})

	if len(*got) != 0 {
		t.Errorf("consumer got %q, want nothing", *got)
	}
	if eng.stops != 1 {
		t.Errorf("stops = %d, want 1", eng.stops)
	}
	if r.Status() != "Could not detect speech" {
		t.Errorf("status = %q", r.Status())
	}
	r.Handle(Event{Type: EventEnd})
	if r.Status() != "Could not detect speech" {
		t.Errorf("status after end = %q, want message kept", r.Status())
	}
}

func TestErrorClassification(t *testing.T) {
	r, eng, _ := newTestRecognizer()
	eng.stopErr = errors.New("already stopped")

	r.Start()
	r.Handle(Event{Type: EventStart})
	r.Handle(Event{Type: EventError, Code: "not-allowed"})

	if r.LastError() != ErrPermissionDenied {
		t.Errorf("LastError = %v, want permission-denied", r.LastError())
	}
	if r.State() != Idle {
		t.Errorf("state = %v, want idle", r.State())
	}
	if r.Status() != Guidance(ErrPermissionDenied) {
		t.Errorf("status = %q", r.Status())
	}
	if eng.stops != 1 {
		t.Errorf("stops = %d, want 1", eng.stops)
	}

	// recoverable by retrying
	if err := r.Start(); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if eng.starts != 2 {
		t.Errorf("starts = %d, want 2", eng.starts)
	}
	if r.LastError() != ErrNone {
		t.Errorf("LastError after retry = %v, want none", r.LastError())
	}
}

func TestClassify(t *testing.T) {
	tests := map[string]ErrorKind{
		"not-allowed":         ErrPermissionDenied,
		"service-not-allowed": ErrPermissionDenied,
		"no-speech":           ErrNoSpeech,
		"audio-capture":       ErrAudioCapture,
		"network":             ErrNetwork,
		"aborted":             ErrOther,
		"":                    ErrOther,
	}
	for code, want := range tests {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%q) = %v, want %v", code, got, want)
		}
	}
}

func TestEngineStartFailure(t *testing.T) {
	r, eng, _ := newTestRecognizer()
	eng.startErr = errors.New("mic busy")

	if err := r.Start(); err == nil {
		t.Fatal("expected error")
	}
	if r.State() != Idle || r.Active() {
		t.Errorf("state = %v active = %v, want idle and inactive", r.State(), r.Active())
	}

	eng.startErr = nil
	if err := r.Start(); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
	if eng.starts != 2 {
		t.Errorf("starts = %d, want 2", eng.starts)
	}
}

func TestCloseStopsAndSwallows(t *testing.T) {
	r, eng, _ := newTestRecognizer()
	eng.stopErr = errors.New("not running")

	r.Close()
	if eng.stops != 1 {
		t.Errorf("stops = %d, want 1", eng.stops)
	}
	if err := r.Start(); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestBest(t *testing.T) {
	tests := []struct {
		alts []Alternative
		want string
	}{
		{nil, ""},
		{[]Alternative{{Transcript: "a", Confidence: 0.5}, {Transcript: "b", Confidence: 0.8}}, "b"},
		{[]Alternative{{Transcript: "first", Confidence: 0.5}, {Transcript: "second", Confidence: 0.5}}, "first"},
		{[]Alternative{{Transcript: " ", Confidence: 0.9}, {Transcript: "c", Confidence: 0.1}}, "c"},
	}
	for _, tt := range tests {
		if got := Best(tt.alts); got != tt.want {
			t.Errorf("Best(%v) = %q, want %q", tt.alts, got, tt.want)
		}
	}
}
