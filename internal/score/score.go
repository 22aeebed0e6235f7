// Package score grades cleaned quiz responses against the answer-key row and
// applies the submission-order time decay.
package score

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pavelanni/quizgrader/internal/model"
)

var (
	ErrNoQuestions      = errors.New("no question columns found")
	ErrNoAnswerKey      = errors.New("answer key row not found")
	ErrNoSubmissionTime = errors.New("no valid submission time found")
	ErrInvalidTimeUnit  = errors.New("time unit must be a positive number of minutes")
	ErrMissingColumn    = errors.New("required column missing")
)

// QuestionCount counts the columns whose name starts with "q", ignoring case.
func QuestionCount(t model.Table) int {
	n := 0
	for _, h := range t.Header {
		if strings.HasPrefix(strings.ToLower(h), "q") {
			n++
		}
	}
	return n
}

// Mark returns 1 when answer matches key exactly after trimming surrounding
// whitespace, 0 otherwise. Empty answers and the no-answer sentinel score 0.
func Mark(answer, key, noAnswer string) int {
	a := strings.TrimSpace(answer)
	if a == "" || (noAnswer != "" && a == noAnswer) {
		return 0
	}
	if a == strings.TrimSpace(key) {
		return 1
	}
	return 0
}

// Weight is the decay factor for a submission delay:
// 1.01 - 0.01 * ceil(delay / unit). The result is rounded to hundredths.
func Weight(delay time.Duration, unit int, clamp bool) float64 {
	units := int(math.Ceil(delay.Minutes() / float64(unit)))
	w := float64(101-units) / 100
	if clamp && w < 0 {
		return 0
	}
	return w
}

// Score grades every respondent row of t. The answer-key row and rows
// without an identifier are excluded from the result.
func Score(t model.Table, cfg model.ScoreConfig, timeUnit int) ([]model.ScoredRow, error) {
	if timeUnit <= 0 {
		return nil, ErrInvalidTimeUnit
	}

	n := QuestionCount(t)
	if n == 0 {
		return nil, ErrNoQuestions
	}
	qcols := make([]int, n)
	for i := range qcols {
		name := "q" + strconv.Itoa(i+1)
		if qcols[i] = t.ColumnIndex(name); qcols[i] < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoQuestions, name)
		}
	}

	tsCol := t.ColumnIndex(cfg.TimestampColumn)
	if tsCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, cfg.TimestampColumn)
	}
	idCol := t.ColumnIndex(cfg.IDColumn)
	if idCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, cfg.IDColumn)
	}

	keyRow, err := findAnswerKey(t, cfg, tsCol, idCol)
	if err != nil {
		return nil, err
	}

	first, ok := firstSubmission(t, keyRow, tsCol, idCol)
	if !ok {
		return nil, ErrNoSubmissionTime
	}

	key := make([]string, n)
	for i, c := range qcols {
		key[i] = t.Cell(keyRow, c)
	}

	var out []model.ScoredRow
	for r := range t.Rows {
		if r == keyRow {
			continue
		}
		id := strings.TrimSpace(t.Cell(r, idCol))
		if id == "" {
			continue
		}
		sr := model.ScoredRow{
			Timestamp: t.Cell(r, tsCol),
			StudentID: id,
			Marks:     make([]int, n),
		}
		for i, c := range qcols {
			sr.Marks[i] = Mark(t.Cell(r, c), key[i], cfg.NoAnswer)
			sr.Correct += sr.Marks[i]
		}
		if at, err := parseSubmission(sr.Timestamp); err == nil {
			sr.Score = float64(sr.Correct) * Weight(at.Sub(first), timeUnit, cfg.ClampNegative)
			sr.Scored = true
		}
		out = append(out, sr)
	}
	return out, nil
}

func findAnswerKey(t model.Table, cfg model.ScoreConfig, tsCol, idCol int) (int, error) {
	found := -1
	for r := range t.Rows {
		if t.Cell(r, idCol) != cfg.KeySentinel || !model.IsNull(t.Cell(r, tsCol)) {
			continue
		}
		if found >= 0 {
			slog.Warn("multiple answer key rows, using the first", "row", found+1, "ignored", r+1)
			continue
		}
		found = r
	}
	if found < 0 {
		return 0, ErrNoAnswerKey
	}
	return found, nil
}

func firstSubmission(t model.Table, keyRow, tsCol, idCol int) (time.Time, bool) {
	var first time.Time
	ok := false
	for r := range t.Rows {
		ts, id := t.Cell(r, tsCol), t.Cell(r, idCol)
		if r == keyRow || model.IsNull(ts) || model.IsNull(id) {
			continue
		}
		at, err := parseSubmission(ts)
		if err != nil {
			slog.Warn("cannot parse submission time", "row", r+1, "value", ts, "error", err)
			continue
		}
		if !ok || at.Before(first) {
			first, ok = at, true
		}
	}
	return first, ok
}

func parseSubmission(s string) (time.Time, error) {
	return time.Parse(model.TimestampLayout, strings.TrimSpace(s))
}
