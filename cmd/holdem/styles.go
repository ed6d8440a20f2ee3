package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lox/holdem-engine/poker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15"))

	handStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("14"))

	winStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	tieStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	categoryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12"))

	redSuitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	blackSuitStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
)

// renderCards colours each card by suit, using suit symbols.
func renderCards(cards []poker.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		style := blackSuitStyle
		if c.Suit.IsRed() {
			style = redSuitStyle
		}
		parts[i] = style.Render(c.Rank.String() + c.Suit.Symbol())
	}
	return strings.Join(parts, " ")
}

// signed renders a net result green when positive and red when negative.
func signed(v float64, format string) string {
	s := fmt.Sprintf(format, v)
	switch {
	case v > 0:
		return winStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	}
	return s
}
