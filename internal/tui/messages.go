package tui

import (
	"triageterm/internal/console"
	"triageterm/internal/listsync"
	"triageterm/internal/model"
)

// Async message types for Bubble Tea commands.

type pageLoadedMsg struct {
	seq   uint64
	state listsync.ViewState
	err   error
}

// searchCommitMsg carries a debounced search value from the timer goroutine.
type searchCommitMsg string

type statsLoadedMsg struct {
	stats model.Stats
	err   error
}

type deleteDoneMsg struct {
	outcome console.DeleteOutcome
	err     error
}

type submitDoneMsg struct {
	outcome console.CreateOutcome
	err     error
}

// clearStatusMsg clears the status line if nothing newer replaced it.
type clearStatusMsg int
