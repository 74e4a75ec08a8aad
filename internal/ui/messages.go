// Package ui provides the Bubble Tea TUI for verdant.
package ui

import (
	"github.com/abelbrown/verdant/internal/card"
	"github.com/abelbrown/verdant/internal/config"
)

// RowsRendered is sent whenever a refresh is applied. It replaces the
// displayed rows in full.
type RowsRendered struct {
	Rows []card.Row
}

// Attached is sent once the card has subscribed and run its first refresh.
type Attached struct {
	Subscribed bool
}

// Resynced is sent after each periodic state resync.
type Resynced struct {
	Err error
}

// SortChanged is sent after the sort key was cycled.
type SortChanged struct {
	Key config.SortKey
}

// ConfirmRequested asks the user a yes/no question. The answer goes to
// Reply, which must be buffered.
type ConfirmRequested struct {
	Prompt string
	Reply  chan<- bool
}

// ActionDone is sent when a row action finished.
type ActionDone struct {
	Action   string // "done" or "snooze"
	EntityID string
	Err      error
}

// refreshDone is sent when a user-triggered refresh call returns.
type refreshDone struct{}
