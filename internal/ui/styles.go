package ui

import "github.com/charmbracelet/lipgloss"

// Colors
var (
	primaryColor = lipgloss.Color("39")  // Cyan
	successColor = lipgloss.Color("82")  // Green
	warningColor = lipgloss.Color("214") // Orange/Yellow
	errorColor   = lipgloss.Color("196") // Red
	infoColor    = lipgloss.Color("33")  // Blue
	dimColor     = lipgloss.Color("240") // Gray
)

// Styles
var (
	promptStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle    = lipgloss.NewStyle().Foreground(dimColor)

	toolCallStyle  = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	toolNameStyle  = lipgloss.NewStyle().Foreground(primaryColor)
	toolOKStyle    = lipgloss.NewStyle().Foreground(successColor)
	toolErrorStyle = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	errorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(infoColor)

	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)
	waitStyle    = lipgloss.NewStyle().Foreground(warningColor)
)
