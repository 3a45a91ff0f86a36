// Package progress renders build progress on the terminal and multiplexes
// ad-hoc output around it.
//
// A Bar draws a bounded percentage bar with a label for the current step.
// Output wraps the real output stream for the duration of a build so that
// text printed by steps and subprocesses is handed to the bar one line at a
// time instead of tearing through its redraw.
package progress
