package main

import "github.com/charmbracelet/lipgloss"

var (
	importantStyle = lipgloss.NewStyle().Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4D03F"))
	failureStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E74C3C"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7A80"))
)

func important(s string) string { return importantStyle.Render(s) }
func success(s string) string   { return successStyle.Render(s) }
func warning(s string) string   { return warningStyle.Render(s) }
func failure(s string) string   { return failureStyle.Render(s) }
func muted(s string) string     { return mutedStyle.Render(s) }
