package ui

import (
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	envNoInteraction = "NO_INTERACTION"
	envCI            = "CI"
)

var interactionState struct {
	mu          sync.RWMutex
	initialized bool
	interactive bool
}

// ConfigureInteraction decides whether prompts may block on the user and
// picks the colour profile for styled output. Plain ASCII is used whenever
// stdout is not a colour-capable terminal.
func ConfigureInteraction(noInteraction bool) {
	interactive := detectInteractiveMode(noInteraction)

	interactionState.mu.Lock()
	interactionState.initialized = true
	interactionState.interactive = interactive
	interactionState.mu.Unlock()

	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
}

// IsInteractive reports whether the user may be prompted.
func IsInteractive() bool {
	interactionState.mu.RLock()
	initialized, interactive := interactionState.initialized, interactionState.interactive
	interactionState.mu.RUnlock()
	if initialized {
		return interactive
	}
	return detectInteractiveMode(false)
}

func detectInteractiveMode(noInteraction bool) bool {
	if noInteraction {
		return false
	}
	return !envTruthy(envNoInteraction) && !envTruthy(envCI)
}

func envTruthy(key string) bool {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
