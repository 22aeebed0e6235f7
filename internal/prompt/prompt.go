// Package prompt abstracts the interactive surface of the grader: file
// pickers, value prompts and notifications.
package prompt

import (
	"context"
	"errors"
)

// ErrAborted is returned when the user dismisses a dialog.
var ErrAborted = errors.New("aborted by user")

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Interaction is everything the pipeline asks of the user.
type Interaction interface {
	// ChooseFile asks for an existing file with one of the given extensions.
	ChooseFile(ctx context.Context, title string, exts []string) (string, error)
	// ChooseSaveLocation asks for a path to write to; ext is appended when missing.
	ChooseSaveLocation(ctx context.Context, title, ext string) (string, error)
	PromptInteger(ctx context.Context, title string) (int, error)
	PromptText(ctx context.Context, title string) (string, error)
	Notify(ctx context.Context, level Level, title, message string)
}
