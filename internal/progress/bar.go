package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/term"

	"github.com/sysmanage-labs/projbuilder/internal/ui"
)

const (
	defaultWidth = 30

	// eraseLine returns the cursor to column 0 and clears the row.
	eraseLine = "\r\033[K"
)

// Bar is a terminal progress bar with a step label.
//
// On a terminal the bar occupies the cursor row and is redrawn in place;
// WriteLine erases it, prints the line, then redraws it underneath. On
// anything else (pipes, files, CI logs) the bar degrades to one plain line per
// label change.
type Bar struct {
	mu          sync.Mutex
	out         io.Writer
	interactive bool
	width       int
	columns     int // terminal width override, 0 means ask the terminal

	total   int
	current int
	label   string
	open    bool
	drawn   bool
}

// Option configures a Bar.
type Option func(*Bar)

// WithWidth sets the number of cells used by the bar itself.
func WithWidth(width int) Option {
	return func(b *Bar) {
		if width > 0 {
			b.width = width
		}
	}
}

// WithColumns fixes the terminal width the bar row must fit in.
func WithColumns(columns int) Option {
	return func(b *Bar) {
		if columns > 0 {
			b.columns = columns
		}
	}
}

// WithInteractive overrides terminal detection.
func WithInteractive(interactive bool) Option {
	return func(b *Bar) { b.interactive = interactive }
}

// NewBar creates a bar that renders to out, which should be the real output
// stream and never an intercepting Output.
func NewBar(out io.Writer, opts ...Option) *Bar {
	b := &Bar{
		out:         out,
		interactive: IsTerminal(out),
		width:       defaultWidth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Open resets the bar to zero of total units and draws it.
func (b *Bar) Open(total int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if total <= 0 {
		total = 100
	}
	b.total = total
	b.current = 0
	b.label = ""
	b.open = true
	b.drawn = false
	if b.interactive {
		b.redraw()
	}
}

// Advance moves the bar forward, never past total.
func (b *Bar) Advance(units int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || units <= 0 {
		return
	}
	b.current = min(b.current+units, b.total)
	if b.interactive {
		b.redraw()
	}
}

// SetLabel names the running step.
func (b *Bar) SetLabel(label string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || label == b.label {
		return
	}
	b.label = label
	if b.interactive {
		b.redraw()
		return
	}
	fmt.Fprintf(b.out, "[%3d%%] %s\n", b.percent(), label)
}

// WriteLine prints line above the bar.
func (b *Bar) WriteLine(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.drawn {
		fmt.Fprint(b.out, eraseLine)
		b.drawn = false
	}
	fmt.Fprintln(b.out, line)
	if b.open && b.interactive {
		b.redraw()
	}
}

// Close draws the final state and leaves the cursor on a fresh line.
func (b *Bar) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return
	}
	if b.interactive {
		b.redraw()
		fmt.Fprintln(b.out)
		b.drawn = false
	}
	b.open = false
}

// Current returns the bar position in units.
func (b *Bar) Current() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// redraw repaints the bar row. Caller must hold b.mu.
func (b *Bar) redraw() {
	fmt.Fprint(b.out, eraseLine+b.render())
	b.drawn = true
}

func (b *Bar) render() string {
	pct := fmt.Sprintf("%3d%%", b.percent())
	counter := fmt.Sprintf("%d/%d", b.current, b.total)

	// The row must stay shorter than the terminal or the terminal wraps it
	// and the erase sequence only clears the last physical line.
	width, label := b.width, b.label
	if cols := b.terminalColumns(); cols > 0 {
		fixed := len(pct) + 1 + 1 + len(counter)
		width = max(0, min(b.width, cols-1-fixed))
		if room := cols - 1 - fixed - width - 1; room > 0 {
			label = ansi.Truncate(label, room, "…")
		} else {
			label = ""
		}
	}
	if label != "" {
		label = ui.Bold(label) + " "
	}

	filled := 0
	if b.total > 0 {
		filled = width * b.current / b.total
	}
	cells := ui.Accent(strings.Repeat("█", filled)) + ui.Faint(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s%s %s %s", label, pct, cells, ui.Muted(counter))
}

// terminalColumns returns the row width available to the bar, or 0 when it
// is unknown.
func (b *Bar) terminalColumns() int {
	if b.columns > 0 {
		return b.columns
	}
	f, ok := b.out.(fder)
	if !ok {
		return 0
	}
	cols, _, err := term.GetSize(f.Fd())
	if err != nil {
		return 0
	}
	return cols
}

func (b *Bar) percent() int {
	if b.total == 0 {
		return 0
	}
	return 100 * b.current / b.total
}
