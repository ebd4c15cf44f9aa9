package app

// Key binding constants used in handleKey.
const (
	KeyQuit       = "q"
	KeyQuitUpper  = "Q"
	KeyCtrlC      = "ctrl+c"
	KeyTab        = "tab"
	KeyShiftTab   = "shift+tab"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyEnter      = "enter"
	KeyEsc        = "esc"
	KeyBackspace  = "backspace"
	KeyVoice      = "ctrl+v"
	KeyMute       = "ctrl+s"
	KeyLogout     = "ctrl+l"
	KeyRemember   = "ctrl+r"
	KeySwitchForm = "ctrl+n"
	KeyReplay     = "ctrl+p"
)
