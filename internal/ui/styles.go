package ui

import "github.com/charmbracelet/lipgloss"

// Palette. Greens for the card, amber for anything that needs water.
var (
	leaf     = lipgloss.Color("29")
	paleLeaf = lipgloss.Color("150")
	soil     = lipgloss.Color("236")
	stem     = lipgloss.Color("241")
	dryLeaf  = lipgloss.Color("240")
	thirsty  = lipgloss.Color("214")
	white    = lipgloss.Color("255")
	red      = lipgloss.Color("196")
)

// Card chrome.
var (
	titleBar  = lipgloss.NewStyle().Bold(true).Foreground(white).Background(leaf).Padding(0, 1)
	searchBar = lipgloss.NewStyle().Foreground(white).Background(dryLeaf).Padding(0, 1)
	footer    = lipgloss.NewStyle().Foreground(white).Background(soil).Padding(0, 1)

	searchPrompt = lipgloss.NewStyle().Foreground(paleLeaf).Bold(true)
	footerKey    = lipgloss.NewStyle().Foreground(paleLeaf).Bold(true)
	footerText   = lipgloss.NewStyle().Foreground(stem)
)

// Plant rows. A selected row reuses the title colors.
var (
	rowNormal   = lipgloss.NewStyle().Foreground(white).Padding(0, 1)
	rowSelected = titleBar
	rowWatering = lipgloss.NewStyle().Foreground(stem)
	rowDue      = lipgloss.NewStyle().Foreground(thirsty).Bold(true)
)

var (
	emptyState = lipgloss.NewStyle().Foreground(dryLeaf).Padding(1, 2)
	errorLine  = lipgloss.NewStyle().Foreground(red).Bold(true).Padding(0, 1)

	// Mark-done prompt.
	confirmBox = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(thirsty).Padding(1, 3)

	// Event overlay.
	eventsPanel   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dryLeaf).Padding(1, 2)
	eventsHeading = lipgloss.NewStyle().Foreground(paleLeaf).Bold(true)
)
