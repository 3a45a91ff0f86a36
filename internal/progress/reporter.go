package progress

// LineWriter prints a complete line without corrupting an active bar.
type LineWriter interface {
	WriteLine(line string)
}

// Reporter is the progress display driven by the build orchestrator.
//
// Implementations must never write through an intercepting Output; they own
// the real stream directly.
type Reporter interface {
	LineWriter

	// Open starts a display that completes at total units.
	Open(total int)
	// Advance adds units to the current position. Non-positive values are
	// ignored and the position is clamped at total.
	Advance(units int)
	// SetLabel names the step currently running.
	SetLabel(label string)
	// Close finalizes the display. It is safe to call more than once.
	Close()
}

// Nop is a Reporter that discards everything.
type Nop struct{}

func (Nop) Open(int)         {}
func (Nop) Advance(int)      {}
func (Nop) SetLabel(string)  {}
func (Nop) WriteLine(string) {}
func (Nop) Close()           {}
