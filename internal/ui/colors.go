package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/ryantate/typingpool-sub000/internal/models"
)

var styles = NewPalette(Colors{
	Title:     "#7D56F4",
	OK:        "#04B575",
	Err:       "#FF0000",
	Uncertain: "#FFA500",
	Muted:     "#626262",
})

// Colors names the hex colors a [Palette] is built from.
type Colors struct {
	Title     string
	OK        string
	Err       string
	Uncertain string
	Muted     string
}

// Palette is the stylesheet for status and progress output.
type Palette struct {
	title     lipgloss.Style
	ok        lipgloss.Style
	err       lipgloss.Style
	uncertain lipgloss.Style
	muted     lipgloss.Style
}

func NewPalette(c Colors) *Palette {
	return &Palette{
		title:     newBold(c.Title).MarginBottom(1),
		ok:        newBold(c.OK),
		err:       newBold(c.Err),
		uncertain: newStyle(c.Uncertain),
		muted:     newStyle(c.Muted).Italic(true),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Warn(s string) string  { return p.uncertain.Render(s) }
func (p *Palette) Help(s string) string  { return p.muted.Render(s) }

// Marker renders text in the color of marker m, leaving zero counts unstyled.
func (p *Palette) Marker(m models.Marker, n int, text string) string {
	if n == 0 {
		return text
	}
	switch m {
	case models.MarkerDone:
		return p.OK(text)
	case models.MarkerUncertain:
		return p.Warn(text)
	default:
		return text
	}
}
