package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Terminal implements Interaction with huh forms.
type Terminal struct {
	accessible bool
	dir        string
	integer    int
	text       string
}

// NewTerminal creates a terminal interaction rooted at dir. Accessible mode
// replaces the full-screen widgets with plain line prompts.
func NewTerminal(dir string, accessible bool) *Terminal {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Terminal{accessible: accessible, dir: dir}
}

// WithDefaults pre-fills the integer and text prompts, typically with the
// answers of the previous run. Zero values leave the prompts empty.
func (t *Terminal) WithDefaults(integer int, text string) *Terminal {
	t.integer, t.text = integer, text
	return t
}

// Defaults returns the start directory and the pre-filled prompt values.
func (t *Terminal) Defaults() (dir string, integer int, text string) {
	return t.dir, t.integer, t.text
}

func (t *Terminal) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).WithAccessible(t.accessible)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ErrAborted
		}
		return err
	}
	return nil
}

func (t *Terminal) ChooseFile(ctx context.Context, title string, exts []string) (string, error) {
	var path string
	picker := huh.NewFilePicker().
		Title(title).
		CurrentDirectory(t.dir).
		AllowedTypes(exts).
		Picking(true).
		Value(&path)
	if err := t.run(ctx, picker); err != nil {
		return "", err
	}
	if path == "" {
		return "", ErrAborted
	}
	t.dir = filepath.Dir(path)
	return path, nil
}

func (t *Terminal) ChooseSaveLocation(ctx context.Context, title, ext string) (string, error) {
	var path string
	input := huh.NewInput().
		Title(title).
		Placeholder(filepath.Join(t.dir, "cleaned"+ext)).
		Value(&path)
	if err := t.run(ctx, input); err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrAborted
	}
	if filepath.Ext(path) == "" {
		path += ext
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(t.dir, path)
	}
	return path, nil
}

func (t *Terminal) PromptInteger(ctx context.Context, title string) (int, error) {
	var raw string
	if t.integer > 0 {
		raw = strconv.Itoa(t.integer)
	}
	input := huh.NewInput().
		Title(title).
		Value(&raw).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return nil
			}
			if _, err := strconv.Atoi(strings.TrimSpace(s)); err != nil {
				return fmt.Errorf("not an integer")
			}
			return nil
		})
	if err := t.run(ctx, input); err != nil {
		return 0, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrAborted
	}
	return strconv.Atoi(raw)
}

func (t *Terminal) PromptText(ctx context.Context, title string) (string, error) {
	value := t.text
	if err := t.run(ctx, huh.NewInput().Title(title).Value(&value)); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (t *Terminal) Notify(ctx context.Context, level Level, title, message string) {
	slog.Debug("notify", "level", level, "title", title, "message", message)
	note := huh.NewNote().Title(title).Description(message).Next(true)
	if err := t.run(ctx, note); err != nil && !errors.Is(err, ErrAborted) {
		slog.Warn("notification failed", "error", err)
	}
}
