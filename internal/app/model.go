package app

import (
	"context"
	"errors"
	"time"

	"github.com/jwulff/krishi/internal/api"
	"github.com/jwulff/krishi/internal/assistant"
	"github.com/jwulff/krishi/internal/auth"
	"github.com/jwulff/krishi/internal/crop"
	"github.com/jwulff/krishi/internal/daemon"
	"github.com/jwulff/krishi/internal/logger"
	"github.com/jwulff/krishi/internal/route"
	"github.com/jwulff/krishi/internal/session"
	"github.com/jwulff/krishi/internal/speech"
	"github.com/jwulff/krishi/internal/voice"
	"github.com/sirupsen/logrus"

	tea "github.com/charmbracelet/bubbletea"
)

// Backend is the part of the API client the views call.
type Backend interface {
	Ask(ctx context.Context, req api.AskRequest) (string, error)
	ParseVoice(ctx context.Context, domain, text string) (map[string]string, error)
	RecommendCrops(ctx context.Context, req api.CropRequest) ([]api.CropPick, error)
	Me(ctx context.Context) (session.User, error)
}

// Authenticator runs the login, registration and logout flows.
type Authenticator interface {
	Login(ctx context.Context, creds auth.Credentials, remember bool) (route.View, error)
	Register(ctx context.Context, form auth.Registration) (route.View, error)
	Logout() (route.View, error)
}

// Deps are the services the model drives.
type Deps struct {
	Router     *route.Router
	Session    route.Reader
	Auth       Authenticator
	Backend    Backend
	Locator    crop.Locator
	SocketPath string
	Locale     string // recognition locale
	Language   string // assistant language
	Speech     speech.Options
	Log        logrus.FieldLogger
}

// Model is the root bubbletea model for the krishi TUI. The view shown is
// always the router's current view, so a navigation made elsewhere (the HTTP
// client logging out on a 401) shows on the next render.
type Model struct {
	deps  Deps
	audio *audio
	log   logrus.FieldLogger

	// Connection state
	evClient         *daemon.Client
	connected        bool
	connError        string
	reconnecting     bool
	reconnectAttempt int
	partialText      string

	// Login and registration
	name     string
	email    string
	password string
	confirm  string
	remember bool

	// Dashboard
	menu int

	// Assistant
	chat       *assistant.Session
	input      string
	suggestion int

	// Crop
	cropForm crop.Form
	picks    []api.CropPick

	// Admin
	profile *session.User

	// UI state
	focus  int
	busy   bool
	width  int
	height int

	// Errors and notices
	errorMessage   string
	errorTransient bool
	notice         string
}

// New creates a Model and sends the user to their landing view.
func New(deps Deps) Model {
	if deps.Log == nil {
		deps.Log = logger.Discard()
	}
	if deps.Language == "" {
		deps.Language = "mr"
	}
	log := deps.Log.WithField("component", "app")
	m := Model{
		deps:  deps,
		audio: newAudio(deps.Locale, deps.Speech, deps.Log),
		log:   log,
	}
	if u, ok := deps.Session.CurrentUser(); ok {
		m.navigate(route.LandingFor(u))
	} else {
		m.navigate(route.ViewDashboard)
	}
	return m
}

// Init returns the initial command: connect to the speech daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.deps.SocketPath)
}

// connectCmd dials the daemon's command and event connections.
func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, evClient, err := daemon.ConnectPair(ctx, socketPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd sends a subscribe command on the event client and starts reading events.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

func loginCmd(a Authenticator, creds auth.Credentials, remember bool) tea.Cmd {
	return func() tea.Msg {
		v, err := a.Login(context.Background(), creds, remember)
		return AuthDoneMsg{View: v, Err: err}
	}
}

func registerCmd(a Authenticator, form auth.Registration) tea.Cmd {
	return func() tea.Msg {
		v, err := a.Register(context.Background(), form)
		return AuthDoneMsg{View: v, Err: err}
	}
}

func resolveCmd(p *assistant.Pending) tea.Cmd {
	return func() tea.Msg {
		return AnswerMsg{Err: p.Resolve(context.Background())}
	}
}

func startVoiceCmd(rec *voice.Recognizer) tea.Cmd {
	return func() tea.Msg {
		return VoiceStartedMsg{Err: rec.Start()}
	}
}

// audioCmd runs a daemon round trip off the UI loop.
func audioCmd(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func stopVoiceCmd(rec *voice.Recognizer) tea.Cmd {
	return func() tea.Msg {
		rec.Stop()
		return nil
	}
}

func parseVoiceCmd(b Backend, text string) tea.Cmd {
	return func() tea.Msg {
		fields, err := b.ParseVoice(context.Background(), "crop", text)
		return VoiceFieldsMsg{Fields: fields, Err: err}
	}
}

func recommendCmd(b Backend, req api.CropRequest) tea.Cmd {
	return func() tea.Msg {
		picks, err := b.RecommendCrops(context.Background(), req)
		return CropResultMsg{Picks: picks, Err: err}
	}
}

func locateCmd(loc crop.Locator) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return LocationMsg{Text: crop.DescribeLocation(ctx, loc)}
	}
}

func profileCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		u, err := b.Me(context.Background())
		return ProfileMsg{User: u, Err: err}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.audio.attach(msg.Client, msg.EvClient)
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		return m, subscribeCmd(m.evClient)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		return m, reconnectCmd(m.reconnectAttempt)

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		// Continue reading events on event client
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.log.WithError(msg.Err).Info("daemon disconnected")
		m.audio.detach()
		m.evClient = nil
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.partialText = ""
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.deps.SocketPath)

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil

	case ForbiddenMsg:
		cmd := m.flash("You do not have access to that page")
		return m, cmd

	case AuthDoneMsg:
		m.busy = false
		if msg.Err != nil {
			cmd := m.flash(errorText(msg.Err, "Login failed"))
			return m, cmd
		}
		if msg.View == route.ViewLogin && m.deps.Router.Current() == route.ViewRegister {
			m.notice = "Registration successful, please log in"
		}
		m.password, m.confirm = "", ""
		cmd := m.navigate(msg.View)
		return m, cmd

	case AnswerMsg:
		if msg.Err != nil && errors.Is(msg.Err, api.ErrUnauthorized) {
			cmd := m.flash("Session expired, please log in again")
			return m, cmd
		}
		return m, nil

	case VoiceStartedMsg:
		if msg.Err != nil {
			cmd := m.flash("Unable to start voice input")
			return m, cmd
		}
		return m, nil

	case VoiceFieldsMsg:
		if msg.Err != nil {
			cmd := m.flash(errorText(msg.Err, "Voice detection failed"))
			return m, cmd
		}
		m.cropForm.Apply(msg.Fields)
		if len(m.cropForm.Missing()) > 0 {
			cmd := m.flash("Voice partially detected, choose the remaining options")
			return m, cmd
		}
		return m, tea.Tick(800*time.Millisecond, func(time.Time) tea.Msg { return SubmitCropMsg{} })

	case SubmitCropMsg:
		if m.deps.Router.Current() != route.ViewCrop {
			return m, nil
		}
		return m.submitCrop()

	case CropResultMsg:
		m.busy = false
		if msg.Err != nil {
			cmd := m.flash(errorText(msg.Err, "Recommendation failed"))
			return m, cmd
		}
		m.picks = msg.Picks
		script := crop.Script(msg.Picks)
		a := m.audio
		return m, audioCmd(func() { a.speakSequence(script) })

	case LocationMsg:
		if m.cropForm.Location == crop.LocationSearching {
			m.cropForm.Location = msg.Text
		}
		return m, nil

	case ProfileMsg:
		if msg.Err != nil {
			cmd := m.flash(errorText(msg.Err, "Could not load profile"))
			return m, cmd
		}
		u := msg.User
		m.profile = &u
		return m, nil
	}

	return m, nil
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case daemon.EventUtteranceEnd:
		m.audio.finished(ev.UtteranceID)
		return nil

	case daemon.EventPartial:
		m.partialText = ev.Text
		return nil
	}

	vev, ok := daemon.ToVoiceEvent(ev)
	if !ok {
		return nil
	}
	if rec := m.audio.recognizer(); rec != nil {
		rec.Handle(vev)
	}
	if vev.Type != voice.EventStart {
		m.partialText = ""
	}

	var cmds []tea.Cmd
	for _, text := range m.audio.takeHeard() {
		cmds = append(cmds, m.useHeard(text))
	}
	return tea.Batch(cmds...)
}

// useHeard routes recognised speech to the view that asked for it.
func (m *Model) useHeard(text string) tea.Cmd {
	switch m.deps.Router.Current() {
	case route.ViewAssistant:
		return m.ask(text)
	case route.ViewCrop:
		return parseVoiceCmd(m.deps.Backend, text)
	}
	return nil
}

func (m *Model) ask(question string) tea.Cmd {
	if m.chat == nil {
		return nil
	}
	p, err := m.chat.Ask(question)
	switch {
	case errors.Is(err, assistant.ErrEmptyQuestion):
		return nil
	case errors.Is(err, assistant.ErrBusy):
		return m.flash("Please wait for the current answer")
	case err != nil:
		return m.flash(err.Error())
	}
	m.input = ""
	return resolveCmd(p)
}

func (m Model) submitCrop() (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	if err := m.cropForm.Validate(); err != nil {
		cmd := m.flash("Please choose season / soil / water")
		return m, cmd
	}
	m.busy = true
	m.picks = nil
	return m, recommendCmd(m.deps.Backend, m.cropForm.Request())
}

// navigate moves the router and sets up the view it lands on.
func (m *Model) navigate(v route.View) tea.Cmd {
	prev := m.deps.Router.Current()
	got := m.deps.Router.Navigate(v)
	if got != prev {
		m.focus = 0
		m.errorMessage = ""
	}
	if prev == route.ViewAssistant && got != route.ViewAssistant && m.chat != nil {
		m.chat.Close()
		m.chat = nil
	}
	if prev == route.ViewCrop && got != route.ViewCrop {
		m.audio.Stop()
	}

	switch got {
	case route.ViewAssistant:
		if m.chat == nil {
			m.chat = assistant.New(m.deps.Backend, m.audio,
				assistant.WithLanguage(m.deps.Language),
				assistant.WithLogger(m.deps.Log))
			m.input = ""
			m.suggestion = 0
		}
	case route.ViewCrop:
		if got != prev {
			m.cropForm = crop.Form{Location: crop.LocationSearching}
			m.picks = nil
			return locateCmd(m.deps.Locator)
		}
	case route.ViewAdmin:
		if got != prev {
			m.profile = nil
			return profileCmd(m.deps.Backend)
		}
	}
	return nil
}

// flash shows a transient error.
func (m *Model) flash(text string) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = true
	m.notice = ""
	return clearTransientErrorCmd()
}

func errorText(err error, fallback string) string {
	var ve *auth.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	if errors.Is(err, api.ErrNetwork) {
		return "Server not reachable"
	}
	return api.Message(err, fallback)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.deps.Router.Current()

	switch msg.String() {
	case KeyCtrlC:
		return m.quit()

	case KeyLogout:
		if route.AccessFor(view) == route.Public {
			return m, nil
		}
		m.audio.Stop()
		v, err := m.deps.Auth.Logout()
		cmd := m.navigate(v)
		if err != nil {
			m.log.WithError(err).Warn("logout")
		}
		m.notice = "Logged out"
		return m, cmd

	case KeyVoice:
		cmd := m.toggleVoice(view)
		return m, cmd

	case KeyMute:
		return m, audioCmd(m.audio.Stop)

	case KeyEsc:
		switch view {
		case route.ViewAssistant, route.ViewCrop, route.ViewAdmin:
			if rec := m.audio.recognizer(); rec != nil && rec.Active() {
				return m, stopVoiceCmd(rec)
			}
			cmd := m.navigate(route.ViewDashboard)
			return m, cmd
		case route.ViewRegister:
			cmd := m.navigate(route.ViewLogin)
			return m, cmd
		}
		return m, nil
	}

	switch view {
	case route.ViewLogin, route.ViewRegister:
		return m.handleAuthKey(msg, view)
	case route.ViewDashboard:
		return m.handleMenuKey(msg)
	case route.ViewAssistant:
		return m.handleAssistantKey(msg)
	case route.ViewCrop:
		return m.handleCropKey(msg)
	default:
		switch msg.String() {
		case KeyQuit, KeyQuitUpper:
			return m.quit()
		}
	}
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.chat != nil {
		m.chat.Close()
	}
	m.audio.detach()
	return m, tea.Quit
}

func (m *Model) toggleVoice(view route.View) tea.Cmd {
	if view != route.ViewAssistant && view != route.ViewCrop {
		return nil
	}
	rec := m.audio.recognizer()
	if rec == nil {
		return m.flash("Voice input needs the speech daemon")
	}
	if rec.Active() {
		return stopVoiceCmd(rec)
	}
	return startVoiceCmd(rec)
}

func (m Model) handleAuthKey(msg tea.KeyMsg, view route.View) (tea.Model, tea.Cmd) {
	fields := m.authFields(view)

	switch msg.String() {
	case KeyTab, KeyDown:
		m.focus = (m.focus + 1) % len(fields)
		return m, nil
	case KeyShiftTab, KeyUp:
		m.focus = (m.focus + len(fields) - 1) % len(fields)
		return m, nil
	case KeyRemember:
		if view == route.ViewLogin {
			m.remember = !m.remember
		}
		return m, nil
	case KeySwitchForm:
		if view == route.ViewLogin {
			cmd := m.navigate(route.ViewRegister)
			return m, cmd
		}
		cmd := m.navigate(route.ViewLogin)
		return m, cmd
	case KeyEnter:
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.notice = ""
		if view == route.ViewRegister {
			return m, registerCmd(m.deps.Auth, auth.Registration{
				Name: m.name, Email: m.email, Password: m.password, ConfirmPassword: m.confirm,
			})
		}
		return m, loginCmd(m.deps.Auth, auth.Credentials{Email: m.email, Password: m.password}, m.remember)
	}

	editField(fields[m.focus%len(fields)], msg)
	return m, nil
}

func (m *Model) authFields(view route.View) []*string {
	if view == route.ViewRegister {
		return []*string{&m.name, &m.email, &m.password, &m.confirm}
	}
	return []*string{&m.email, &m.password}
}

// dashboard menu entries, admin last
func (m Model) menuItems() []route.View {
	items := []route.View{route.ViewAssistant, route.ViewCrop}
	if u, ok := m.deps.Session.CurrentUser(); ok && u.Role.IsAdmin() {
		items = append(items, route.ViewAdmin)
	}
	return items
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.menuItems()
	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		return m.quit()
	case KeyDown, KeyTab, "j":
		m.menu = (m.menu + 1) % len(items)
	case KeyUp, KeyShiftTab, "k":
		m.menu = (m.menu + len(items) - 1) % len(items)
	case KeyEnter:
		cmd := m.navigate(items[m.menu%len(items)])
		return m, cmd
	}
	return m, nil
}

func (m Model) handleAssistantKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEnter:
		cmd := m.ask(m.input)
		return m, cmd
	case KeyTab:
		s := assistant.Suggestions(m.deps.Language)
		m.input = s[m.suggestion%len(s)]
		m.suggestion++
		return m, nil
	case KeyReplay:
		if m.chat == nil {
			return m, nil
		}
		msgs := m.chat.Transcript()
		for i := len(msgs) - 1; i >= 0; i-- {
			if m.chat.Replay(i) == nil {
				break
			}
		}
		return m, nil
	}
	editField(&m.input, msg)
	return m, nil
}

func (m Model) handleCropKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	fields := m.cropFields()
	switch msg.String() {
	case KeyTab, KeyDown:
		m.focus = (m.focus + 1) % len(fields)
		return m, nil
	case KeyShiftTab, KeyUp:
		m.focus = (m.focus + len(fields) - 1) % len(fields)
		return m, nil
	case KeyEnter:
		return m.submitCrop()
	case KeyReplay:
		if len(m.picks) == 0 {
			return m, nil
		}
		script := crop.Script(m.picks)
		a := m.audio
		return m, audioCmd(func() { a.speakSequence(script) })
	}
	editField(fields[m.focus%len(fields)], msg)
	return m, nil
}

func (m *Model) cropFields() []*string {
	return []*string{&m.cropForm.Location, &m.cropForm.Season, &m.cropForm.SoilType, &m.cropForm.Water}
}

// editField applies typing and backspace to a text field.
func editField(dst *string, msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyRunes:
		*dst += string(msg.Runes)
	case tea.KeySpace:
		*dst += " "
	case tea.KeyBackspace:
		if r := []rune(*dst); len(r) > 0 {
			*dst = string(r[:len(r)-1])
		}
	}
}
