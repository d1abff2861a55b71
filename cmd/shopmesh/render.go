package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hupe1980/shopmesh/core"
)

var (
	replyStyle    = lipgloss.NewStyle().Bold(true)
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	priceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// renderReply formats a reply and its product cards for the terminal.
func renderReply(r core.Reply, width int) string {
	var b strings.Builder
	style := replyStyle
	if r.Degraded {
		style = degradedStyle
	}
	b.WriteString(style.Render(r.Reply))
	for _, p := range r.Products {
		b.WriteString("\n")
		b.WriteString(renderCard(p, width))
	}
	return b.String()
}

func renderCard(p core.ProductResult, width int) string {
	lines := []string{titleStyle.Render(p.Title)}
	if p.Brand != "" {
		lines = append(lines, mutedStyle.Render(p.Brand))
	}
	lines = append(lines, priceStyle.Render(formatPrice(p)))
	if p.Rating != nil {
		lines = append(lines, fmt.Sprintf("Rating: %.1f", *p.Rating))
	}
	if p.URL != "" {
		lines = append(lines, mutedStyle.Render(p.URL))
	}
	style := cardStyle
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(strings.Join(lines, "\n"))
}

// formatPrice renders whole rupees and shows the retail price struck
// through only when it is higher.
func formatPrice(p core.ProductResult) string {
	price := fmt.Sprintf("₹%.0f", p.DiscountedPrice)
	if p.RetailPrice > p.DiscountedPrice {
		price += fmt.Sprintf("  (MRP ₹%.0f)", p.RetailPrice)
	}
	return price
}
