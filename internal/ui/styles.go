package ui

import "github.com/charmbracelet/lipgloss"

// Colors used throughout the TUI.
var (
	ColorRed     = lipgloss.Color("#FF5F5F")
	ColorGreen   = lipgloss.Color("#5FD75F")
	ColorLeaf    = lipgloss.Color("#157347")
	ColorYellow  = lipgloss.Color("#FFD75F")
	ColorGray    = lipgloss.Color("#808080")
	ColorDimGray = lipgloss.Color("#444444")
	ColorWhite   = lipgloss.Color("#FFFFFF")
)

// Base styles reused by UI components.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite).
			Background(ColorLeaf).
			Padding(0, 1)

	StatusStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	ConnectedDotStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	DisconnectedDotStyle = lipgloss.NewStyle().
				Foreground(ColorGray)

	ListeningStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorRed).
			Bold(true)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorRed)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(ColorGreen)

	PartialTextStyle = lipgloss.NewStyle().
				Foreground(ColorYellow)

	PanelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorWhite)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FocusedLabelStyle = lipgloss.NewStyle().
				Foreground(ColorGreen).
				Bold(true)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	UserMsgStyle = lipgloss.NewStyle().
			Foreground(ColorGreen).
			Bold(true)

	AssistantMsgStyle = lipgloss.NewStyle().
				Foreground(ColorWhite)

	RoleBadgeStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	FooterKeyStyle = lipgloss.NewStyle().
			Foreground(ColorYellow).
			Bold(true)

	FooterDescStyle = lipgloss.NewStyle().
			Foreground(ColorGray)

	DividerStyle = lipgloss.NewStyle().
			Foreground(ColorDimGray)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorYellow)
)
