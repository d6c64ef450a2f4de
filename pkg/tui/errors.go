package tui

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("tui: aborted")
	// ErrNilEditor is returned by Fill without a session.
	ErrNilEditor = errors.New("tui: editor is nil")
)
