// Package display renders the local status surfaces of the receiver: the
// six-line station board and the alert cue player.
package display

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// BoardLine formats one row, e.g. "M1 (Call): ON".
func BoardLine(number int, label string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("M%d (%s): %s", number, label, state)
}

// Console draws the board on a terminal, highlighting active rows.
type Console struct {
	mu  sync.Mutex
	w   io.Writer
	on  lipgloss.Style
	off lipgloss.Style
	box lipgloss.Style
}

func NewConsole(w io.Writer) *Console {
	return &Console{
		w:   w,
		on:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		off: lipgloss.NewStyle().Faint(true),
		box: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1),
	}
}

func (c *Console) Render(lines []string) {
	styled := make([]string, len(lines))
	for i, l := range lines {
		if strings.HasSuffix(l, ": ON") {
			styled[i] = c.on.Render(l)
		} else {
			styled[i] = c.off.Render(l)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.w, c.box.Render(strings.Join(styled, "\n"))); err != nil {
		log.Printf("display: render board: %v", err)
	}
}

// Plain writes the board as bare text, one row per line, for sinks that
// cannot take terminal styling (a serial display bridge, a file).
type Plain struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPlain(w io.Writer) *Plain { return &Plain{w: w} }

func (p *Plain) Render(lines []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := io.WriteString(p.w, strings.Join(lines, "\n")+"\n\n"); err != nil {
		log.Printf("display: write board: %v", err)
	}
}

// Renderer is anything that can show a board.
type Renderer interface {
	Render(lines []string)
}

// Tee renders to every target in order.
type Tee []Renderer

func (t Tee) Render(lines []string) {
	for _, r := range t {
		if r != nil {
			r.Render(lines)
		}
	}
}
