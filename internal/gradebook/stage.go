package gradebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pavelanni/quizgrader/internal/i18n"
	"github.com/pavelanni/quizgrader/internal/model"
	"github.com/pavelanni/quizgrader/internal/prompt"
	"github.com/pavelanni/quizgrader/internal/sheet"
)

// Stage merges a results CSV into a gradebook CSV in place.
type Stage struct {
	Files    *sheet.Files
	UI       prompt.Interaction
	ScoreCfg model.ScoreConfig
	Cfg      model.GradebookConfig
}

// LoadScores reads the score map from a results CSV.
func (s *Stage) LoadScores(resultsPath string) (model.ScoreMap, error) {
	t, err := s.Files.ReadTable(resultsPath)
	if err != nil {
		return nil, err
	}
	scores, err := ReadScores(t, s.ScoreCfg)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, ErrEmptyScores
	}
	return scores, nil
}

// Run merges scores into the gradebook at path under the date column and
// rewrites the file. The previous version is kept as path.bak when backups are
// enabled. A date label missing from the header leaves the file untouched.
func (s *Stage) Run(ctx context.Context, scores model.ScoreMap, path, date string) (int, error) {
	records, err := s.Files.ReadCSV(path)
	if err != nil {
		return 0, s.fail(ctx, "UpdateFailed", err)
	}

	merged, updated, err := Merge(model.GradebookTable{Rows: records}, scores, date, s.Cfg)
	if err != nil {
		if errors.Is(err, ErrDateNotFound) {
			slog.Error("merge failed", "error", err)
			s.UI.Notify(ctx, prompt.LevelError, i18n.T(ctx, "TitleError"),
				i18n.Td(ctx, "DateNotFound", map[string]any{"Date": date}))
			return 0, err
		}
		return 0, s.fail(ctx, "UpdateFailed", err)
	}

	if s.Cfg.Backup {
		bak, err := s.Files.Backup(path)
		if err != nil {
			return 0, s.fail(ctx, "SaveGradebookFailed", err)
		}
		slog.Info("backed up gradebook", "path", bak)
	}
	if err := s.Files.WriteCSVCRLF(path, merged.Rows); err != nil {
		return 0, s.fail(ctx, "SaveGradebookFailed", fmt.Errorf("rewrite gradebook: %w", err))
	}
	slog.Info("merged scores into gradebook", "path", path, "date", date, "updated", updated)
	return updated, nil
}

func (s *Stage) fail(ctx context.Context, msgID string, err error) error {
	slog.Error("merge failed", "error", err)
	s.UI.Notify(ctx, prompt.LevelError, i18n.T(ctx, "TitleError"),
		i18n.Td(ctx, msgID, map[string]any{"Error": err.Error()}))
	return err
}
