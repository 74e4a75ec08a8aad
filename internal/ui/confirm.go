package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Confirmer asks through the running program. It implements
// card.Confirmer and must not be called from the Update loop.
type Confirmer struct {
	send func(tea.Msg)
}

// NewConfirmer wraps a program's Send.
func NewConfirmer(send func(tea.Msg)) *Confirmer {
	return &Confirmer{send: send}
}

// Confirm shows prompt and waits for the answer. A cancelled ctx is a no.
func (c *Confirmer) Confirm(ctx context.Context, prompt string) bool {
	reply := make(chan bool, 1)
	c.send(ConfirmRequested{Prompt: prompt, Reply: reply})
	select {
	case ok := <-reply:
		return ok
	case <-ctx.Done():
		return false
	}
}
