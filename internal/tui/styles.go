package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	tab         lipgloss.Style
	activeTab   lipgloss.Style
	title       lipgloss.Style
	groupHeader lipgloss.Style
	card        lipgloss.Style
	fresh       lipgloss.Style
	rollback    lipgloss.Style
	overtime    lipgloss.Style
	online      lipgloss.Style
	offline     lipgloss.Style
	muted       lipgloss.Style
	errorText   lipgloss.Style
	border      lipgloss.Color
	borderFocus lipgloss.Color
}

func defaultStyles() styles {
	return styles{
		tab:         lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		activeTab:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")),
		title:       lipgloss.NewStyle().Bold(true),
		groupHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111")),
		card:        lipgloss.NewStyle(),
		fresh:       lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		rollback:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		overtime:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		online:      lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		offline:     lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		muted:       lipgloss.NewStyle().Foreground(lipgloss.Color("243")),
		errorText:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		border:      lipgloss.Color("238"),
		borderFocus: lipgloss.Color("62"),
	}
}

func (s styles) column(width, height int, focused bool) lipgloss.Style {
	color := s.border
	if focused {
		color = s.borderFocus
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Width(width - 2).
		Height(height - 2)
}
