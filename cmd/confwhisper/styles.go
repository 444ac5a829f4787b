package main

import "github.com/charmbracelet/lipgloss"

var (
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Faint(true) // dim gray
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))             // gray
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))             // red
	headingStyle   = lipgloss.NewStyle().Bold(true)
)
