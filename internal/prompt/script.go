package prompt

import (
	"context"
	"log/slog"
)

// Notice is a notification captured by Script.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Script answers prompts from canned queues. An exhausted queue behaves like a
// dismissed dialog. It backs the headless commands and tests.
type Script struct {
	Files         []string
	SaveLocations []string
	Integers      []int
	Texts         []string

	Notices []Notice
}

func (s *Script) ChooseFile(_ context.Context, _ string, _ []string) (string, error) {
	return pop(&s.Files)
}

func (s *Script) ChooseSaveLocation(_ context.Context, _ string, _ string) (string, error) {
	return pop(&s.SaveLocations)
}

func (s *Script) PromptInteger(_ context.Context, _ string) (int, error) {
	return pop(&s.Integers)
}

func (s *Script) PromptText(_ context.Context, _ string) (string, error) {
	return pop(&s.Texts)
}

func (s *Script) Notify(_ context.Context, level Level, title, message string) {
	s.Notices = append(s.Notices, Notice{Level: level, Title: title, Message: message})
	switch level {
	case LevelError:
		slog.Error(message, "title", title)
	case LevelWarning:
		slog.Warn(message, "title", title)
	default:
		slog.Info(message, "title", title)
	}
}

// Last returns the most recent notice, or a zero Notice.
func (s *Script) Last() Notice {
	if len(s.Notices) == 0 {
		return Notice{}
	}
	return s.Notices[len(s.Notices)-1]
}

func pop[T any](q *[]T) (T, error) {
	var zero T
	if len(*q) == 0 {
		return zero, ErrAborted
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v, nil
}
