// Package gradebook merges computed quiz scores into a course gradebook CSV.
package gradebook

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pavelanni/quizgrader/internal/model"
)

var (
	ErrDateNotFound = errors.New("date column not found in gradebook header")
	ErrNoTrailer    = errors.New("gradebook has no end-of-data marker row")
	ErrEmptyScores  = errors.New("no readable scores")
	ErrEmpty        = errors.New("gradebook is empty")
	ErrIDColumn     = errors.New("gradebook ID column must not be negative")
)

// ReadScores builds the score map from a results table. Rows without an
// identifier or with unparsable numbers are logged and skipped.
func ReadScores(t model.Table, cfg model.ScoreConfig) (model.ScoreMap, error) {
	idCol := t.ColumnIndex(cfg.IDColumn)
	correctCol := t.ColumnIndex(cfg.CorrectColumn)
	scoreCol := t.ColumnIndex(cfg.ScoreColumn)
	if idCol < 0 || correctCol < 0 || scoreCol < 0 {
		return nil, fmt.Errorf("results table lacks %s/%s/%s columns", cfg.IDColumn, cfg.CorrectColumn, cfg.ScoreColumn)
	}

	scores := make(model.ScoreMap)
	for r := range t.Rows {
		id := strings.ToLower(strings.TrimSpace(t.Cell(r, idCol)))
		if id == "" {
			continue
		}
		correct, err := strconv.ParseFloat(strings.TrimSpace(t.Cell(r, correctCol)), 64)
		if err != nil {
			slog.Warn("skipping score row", "student_id", id, "error", err)
			continue
		}
		score, err := strconv.ParseFloat(strings.TrimSpace(t.Cell(r, scoreCol)), 64)
		if err != nil {
			slog.Warn("skipping score row", "student_id", id, "error", err)
			continue
		}
		scores[id] = model.ScoreEntry{Correct: correct, Score: score}
	}
	return scores, nil
}

// DataEnd returns the index of the first row whose first cell starts with
// prefix, and whether such a row exists. Without one every row is data.
func DataEnd(gb model.GradebookTable, prefix string) (int, bool) {
	for i, row := range gb.Rows {
		if len(row) > 0 && prefix != "" && strings.HasPrefix(row[0], prefix) {
			return i, true
		}
	}
	return len(gb.Rows), false
}

// FormatScore renders a score with the fewest digits that round-trip, keeping
// one decimal place on whole numbers ("2.0") as the gradebook always had.
func FormatScore(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

// Merge writes each matched student's score into the date column and the
// correct count into the column after it. It returns the updated copy of gb
// and the number of rows updated; gb itself is left untouched.
func Merge(gb model.GradebookTable, scores model.ScoreMap, date string, cfg model.GradebookConfig) (model.GradebookTable, int, error) {
	if cfg.IDColumn < 0 {
		return gb, 0, fmt.Errorf("%w: %d", ErrIDColumn, cfg.IDColumn)
	}
	if len(gb.Rows) == 0 {
		return gb, 0, ErrEmpty
	}

	end, found := DataEnd(gb, cfg.TrailerPrefix)
	if !found {
		if cfg.RequireTrailer {
			return gb, 0, ErrNoTrailer
		}
		slog.Warn("no end-of-data marker, treating every row as data", "prefix", cfg.TrailerPrefix)
	}

	dateCol := -1
	for i, h := range gb.Rows[0] {
		if h == date {
			dateCol = i
			break
		}
	}
	if dateCol < 0 {
		return gb, 0, fmt.Errorf("%w: %q", ErrDateNotFound, date)
	}
	countCol := dateCol + 1

	out := model.GradebookTable{Rows: make([][]string, len(gb.Rows))}
	for i, row := range gb.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}

	updated := 0
	for i := 1; i < end; i++ {
		row := out.Rows[i]
		if cfg.IDColumn >= len(row) {
			continue
		}
		id := strings.ToLower(strings.TrimSpace(row[cfg.IDColumn]))
		entry, ok := scores[id]
		if id == "" || !ok {
			continue
		}
		for len(row) <= countCol {
			row = append(row, "")
		}
		row[dateCol] = FormatScore(entry.Score)
		row[countCol] = strconv.Itoa(int(entry.Correct))
		out.Rows[i] = row
		updated++
	}
	return out, updated, nil
}
