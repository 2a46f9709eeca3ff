// Package theme maps the light/dark preference to a terminal palette.
package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"tweetsched/internal/model"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

// Default is the mode used when no valid preference is stored.
const Default = Dark

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Light, Dark:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown theme mode %q", s)
}

// Next returns the other mode.
func (m Mode) Next() Mode {
	if m == Light {
		return Dark
	}
	return Light
}

var statusColors = map[model.Status]lipgloss.Color{
	model.StatusDraft:     "#6c757d",
	model.StatusScheduled: "#007bff",
	model.StatusPosted:    "#28a745",
}

var bucketColors = map[model.Bucket]lipgloss.Color{
	model.BucketViral:           "#10b981",
	model.BucketPerforming:      "#3b82f6",
	model.BucketUnderperforming: "#ef4444",
}

// Palette is the set of styles a mode renders with.
type Palette struct {
	Mode   Mode
	Text   lipgloss.Style
	Muted  lipgloss.Style
	Accent lipgloss.Style
	Warn   lipgloss.Style
	Error  lipgloss.Style
	Title  lipgloss.Style
}

func For(m Mode) Palette {
	fg, muted, accent := lipgloss.Color("#e5e7eb"), lipgloss.Color("#9ca3af"), lipgloss.Color("#1d9bf0")
	if m == Light {
		fg, muted, accent = "#111827", "#6b7280", "#0c7abf"
	}
	return Palette{
		Mode:   m,
		Text:   lipgloss.NewStyle().Foreground(fg),
		Muted:  lipgloss.NewStyle().Foreground(muted),
		Accent: lipgloss.NewStyle().Foreground(accent).Bold(true),
		Warn:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f59e0b")),
		Error:  lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")).Bold(true),
		Title:  lipgloss.NewStyle().Foreground(accent).Bold(true).Underline(true),
	}
}

// Status renders a tweet status in its chip color.
func (p Palette) Status(s model.Status) string {
	c, ok := statusColors[s]
	if !ok {
		return p.Muted.Render(string(s))
	}
	return lipgloss.NewStyle().Foreground(c).Bold(true).Render(string(s))
}

// Bucket renders a performance bucket label.
func (p Palette) Bucket(b model.Bucket) string {
	c, ok := bucketColors[b]
	if !ok {
		return p.Muted.Render(string(b))
	}
	return lipgloss.NewStyle().Foreground(c).Render(string(b))
}

// StatusColor returns the hex color for s, or "" when unknown.
func StatusColor(s model.Status) string { return string(statusColors[s]) }

// BucketColor returns the hex color for b, or "" when unknown.
func BucketColor(b model.Bucket) string { return string(bucketColors[b]) }

// Banner returns the CLI header for the mode.
func Banner(m Mode) string {
	p := For(m)
	return p.Title.Render("tweetsched") + " " + p.Muted.Render("schedule, watch and tune your tweets") + "\n"
}
