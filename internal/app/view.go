package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jwulff/krishi/internal/assistant"
	"github.com/jwulff/krishi/internal/crop"
	"github.com/jwulff/krishi/internal/route"
	"github.com/jwulff/krishi/internal/ui"
	"github.com/jwulff/krishi/internal/voice"
)

var viewTitles = map[route.View]string{
	route.ViewLogin:     "Login",
	route.ViewRegister:  "Create account",
	route.ViewDashboard: "Dashboard",
	route.ViewAssistant: "Smart Agri AI Chat",
	route.ViewCrop:      "Crop recommendation",
	route.ViewAdmin:     "Admin",
}

func (m Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(30, m.width)
}

// View renders the full TUI.
func (m Model) View() string {
	view := m.deps.Router.Current()
	width := m.contentWidth()

	var sections []string

	// Header
	sections = append(sections, m.renderHeader(view))

	// Status bar
	sections = append(sections, m.renderStatusBar())

	// Divider
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", width)))

	switch view {
	case route.ViewLogin, route.ViewRegister:
		sections = append(sections, m.renderAuth(view))
	case route.ViewDashboard:
		sections = append(sections, m.renderDashboard())
	case route.ViewAssistant:
		sections = append(sections, m.renderAssistant(width))
	case route.ViewCrop:
		sections = append(sections, m.renderCrop())
	case route.ViewAdmin:
		sections = append(sections, m.renderAdmin())
	default:
		sections = append(sections, ui.DimStyle.Render("  Loading..."))
	}

	// Divider
	sections = append(sections, ui.DividerStyle.Render(strings.Repeat("─", width)))

	// Error or notice bar
	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	} else if m.notice != "" {
		sections = append(sections, ui.NoticeStyle.Render(m.notice))
	}

	// Footer
	sections = append(sections, m.renderFooter(view))

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader(view route.View) string {
	title := ui.TitleStyle.Render("KRISHI") + " " + ui.PanelTitleStyle.Render(viewTitles[view])

	if u, ok := m.deps.Session.CurrentUser(); ok && route.AccessFor(view) != route.Public {
		name := u.Name
		if name == "" {
			name = u.Email
		}
		title += ui.DimStyle.Render(" · "+name) + " " + ui.RoleBadgeStyle.Render("["+string(u.Role)+"]")
	}
	return title
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.connected:
		dot = ui.ConnectedDotStyle.Render("● SPEECH")
	case m.reconnecting:
		dot = ui.DisconnectedDotStyle.Render("○ SPEECH reconnecting...")
	default:
		dot = ui.DisconnectedDotStyle.Render("○ SPEECH connecting...")
	}

	var listening string
	if rec := m.audio.recognizer(); rec != nil {
		if rec.State() == voice.Listening {
			listening = "  " + ui.ListeningStyle.Render("🎙 Listening")
		}
		if s := rec.Status(); s != "" && rec.State() != voice.Listening {
			listening = "  " + ui.StatusStyle.Render(s)
		}
	}

	var partial string
	if m.partialText != "" {
		partial = "  " + ui.PartialTextStyle.Render(m.partialText+"▌")
	}

	var busy string
	if m.busy || (m.chat != nil && m.chat.InFlight()) {
		busy = "  " + ui.SpinnerStyle.Render("⟳")
	}

	return dot + listening + partial + busy
}

func (m Model) renderAuth(view route.View) string {
	var labels []string
	var values []string
	if view == route.ViewRegister {
		labels = []string{"Name", "Email", "Password", "Confirm password"}
		values = []string{m.name, m.email, mask(m.password), mask(m.confirm)}
	} else {
		labels = []string{"Email", "Password"}
		values = []string{m.email, mask(m.password)}
	}

	var lines []string
	lines = append(lines, "")
	for i, l := range labels {
		lines = append(lines, m.renderField(l, values[i], i == m.focus%len(labels)))
	}
	if view == route.ViewLogin {
		box := "[ ]"
		if m.remember {
			box = "[x]"
		}
		lines = append(lines, "", "  "+box+" Remember me")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderField(label, value string, focused bool) string {
	if focused {
		return "  " + ui.FocusedLabelStyle.Render(fmt.Sprintf("%-18s", label)) + " " + value + "▌"
	}
	return "  " + ui.LabelStyle.Render(fmt.Sprintf("%-18s", label)) + " " + value
}

func mask(s string) string {
	return strings.Repeat("•", len([]rune(s)))
}

var menuLabels = map[route.View]string{
	route.ViewAssistant: "🌿 AI assistant",
	route.ViewCrop:      "🌾 Crop recommendation",
	route.ViewAdmin:     "🛠 Admin",
}

func (m Model) renderDashboard() string {
	lines := []string{""}
	for i, v := range m.menuItems() {
		if i == m.menu%len(m.menuItems()) {
			lines = append(lines, ui.SelectedStyle.Render("> "+menuLabels[v]))
		} else {
			lines = append(lines, "  "+menuLabels[v])
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderAssistant(width int) string {
	if m.chat == nil {
		return ""
	}

	var lines []string
	if topic, conf := m.chat.Topic(); topic != "" {
		lines = append(lines, ui.DimStyle.Render(fmt.Sprintf("  Topic: %s | Confidence: %.0f%%", topic, conf)))
	}

	textWidth := max(10, width-6)
	for _, msg := range m.chat.Transcript() {
		if msg.Role == assistant.RoleUser {
			for _, wl := range wrapText(msg.Text, textWidth) {
				lines = append(lines, padLeft(ui.UserMsgStyle.Render(wl), width-2))
			}
			continue
		}
		bullets := assistant.Bullets(msg.Text)
		if len(bullets) > 1 {
			for _, b := range bullets {
				wrapped := wrapText(b, textWidth-2)
				lines = append(lines, "  • "+ui.AssistantMsgStyle.Render(wrapped[0]))
				for _, wl := range wrapped[1:] {
					lines = append(lines, "    "+ui.AssistantMsgStyle.Render(wl))
				}
			}
			continue
		}
		for _, wl := range wrapText(msg.Text, textWidth) {
			lines = append(lines, "  "+ui.AssistantMsgStyle.Render(wl))
		}
	}

	// Keep the newest messages on screen
	if h := m.transcriptVisibleLines(); len(lines) > h {
		lines = lines[len(lines)-h:]
	}

	lines = append(lines, "", ui.DimStyle.Render("  Tab: "+strings.Join(assistant.Suggestions(m.deps.Language), " · ")))
	lines = append(lines, "  "+ui.FocusedLabelStyle.Render(">")+" "+m.input+"▌")
	return strings.Join(lines, "\n")
}

func (m Model) transcriptVisibleLines() int {
	if m.height == 0 {
		return 20
	}
	// Reserve: header, status, two dividers, error, footer, suggestions, input, padding
	return max(5, m.height-10)
}

func (m Model) renderCrop() string {
	labels := []string{"Location", "Season", "Soil type", "Water"}
	values := []string{m.cropForm.Location, m.cropForm.Season, m.cropForm.SoilType, m.cropForm.Water}

	lines := []string{""}
	for i, l := range labels {
		lines = append(lines, m.renderField(l, values[i], i == m.focus%len(labels)))
	}

	if len(m.picks) > 0 {
		lines = append(lines, "", ui.PanelTitleStyle.Render("  Top crops"))
		for i, p := range m.picks {
			lines = append(lines, fmt.Sprintf("  %d. %s (%s) %s", i+1, crop.MarathiName(p.Crop), p.Crop, ui.DimStyle.Render(p.Profit)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderAdmin() string {
	if m.profile == nil {
		return ui.DimStyle.Render("  Loading profile...")
	}
	p := m.profile
	return strings.Join([]string{
		"",
		m.renderField("Name", p.Name, false),
		m.renderField("Email", p.Email, false),
		m.renderField("Role", string(p.Role), false),
	}, "\n")
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func footerKey(key, desc string) string {
	return ui.FooterKeyStyle.Render(key) + ui.FooterDescStyle.Render(" "+desc)
}

func (m Model) renderFooter(view route.View) string {
	var parts []string

	switch view {
	case route.ViewLogin:
		parts = append(parts, footerKey("Tab", "Field"), footerKey("Enter", "Login"),
			footerKey("^R", "Remember"), footerKey("^N", "Register"))
	case route.ViewRegister:
		parts = append(parts, footerKey("Tab", "Field"), footerKey("Enter", "Register"),
			footerKey("Esc", "Login"))
	case route.ViewDashboard:
		parts = append(parts, footerKey("↑↓", "Select"), footerKey("Enter", "Open"))
	case route.ViewAssistant:
		parts = append(parts, footerKey("Enter", "Ask"), footerKey("^V", "Voice"),
			footerKey("^P", "Replay"), footerKey("^S", "Mute"), footerKey("Esc", "Back"))
	case route.ViewCrop:
		parts = append(parts, footerKey("Tab", "Field"), footerKey("Enter", "Recommend"),
			footerKey("^V", "Voice"), footerKey("^P", "Replay"), footerKey("Esc", "Back"))
	case route.ViewAdmin:
		parts = append(parts, footerKey("Esc", "Back"))
	}
	if route.AccessFor(view) != route.Public {
		parts = append(parts, footerKey("^L", "Logout"))
	}

	switch view {
	case route.ViewDashboard, route.ViewAdmin:
		parts = append(parts, footerKey("q", "Quit"))
	default:
		parts = append(parts, footerKey("^C", "Quit"))
	}

	return strings.Join(parts, "  ")
}

// Helpers

func padLeft(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return strings.Repeat(" ", width-visible) + s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
