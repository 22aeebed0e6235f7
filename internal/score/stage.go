package score

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/quizgrader/internal/i18n"
	"github.com/pavelanni/quizgrader/internal/model"
	"github.com/pavelanni/quizgrader/internal/prompt"
	"github.com/pavelanni/quizgrader/internal/sheet"
)

// ResultsPath derives the results file path from the cleaned CSV path.
func ResultsPath(csvPath string) string {
	return sheet.ReplaceExt(csvPath, "") + "_results.csv"
}

// ResultsTable renders scored rows as the four-column results table.
func ResultsTable(rows []model.ScoredRow, cfg model.ScoreConfig) model.Table {
	t := model.Table{Header: []string{cfg.TimestampColumn, cfg.IDColumn, cfg.CorrectColumn, cfg.ScoreColumn}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{
			r.Timestamp,
			r.StudentID,
			strconv.Itoa(r.Correct),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
		})
	}
	return t
}

// Stage scores a cleaned CSV and writes the results CSV.
type Stage struct {
	Files *sheet.Files
	UI    prompt.Interaction
	Cfg   model.ScoreConfig
}

// Run scores csvPath with the given time unit in minutes and returns the
// results path with the scored rows. Nothing is written unless scoring
// succeeds.
func (s *Stage) Run(ctx context.Context, csvPath string, timeUnit int) (string, []model.ScoredRow, error) {
	t, err := s.Files.ReadTable(csvPath)
	if err != nil {
		return "", nil, s.fail(ctx, err)
	}
	rows, err := Score(t, s.Cfg, timeUnit)
	if err != nil {
		return "", nil, s.fail(ctx, err)
	}

	out := ResultsPath(csvPath)
	if err := s.Files.WriteTable(out, ResultsTable(rows, s.Cfg)); err != nil {
		return "", nil, s.fail(ctx, err)
	}
	slog.Info("wrote results", "path", out, "respondents", len(rows), "time_unit", timeUnit)
	return out, rows, nil
}

func (s *Stage) fail(ctx context.Context, err error) error {
	slog.Error("scoring failed", "error", err)
	var msg string
	switch {
	case errors.Is(err, ErrNoQuestions):
		msg = i18n.T(ctx, "NoQuestionColumns")
	case errors.Is(err, ErrNoAnswerKey):
		msg = i18n.T(ctx, "NoAnswerKey")
	case errors.Is(err, ErrNoSubmissionTime):
		msg = i18n.T(ctx, "NoSubmissionTime")
	default:
		msg = i18n.Td(ctx, "ScoreFailed", map[string]any{"Error": strings.TrimSpace(err.Error())})
	}
	s.UI.Notify(ctx, prompt.LevelError, i18n.T(ctx, "TitleError"), msg)
	return err
}
