package model

import (
	"strings"
	"time"
)

// TimestampLayout is the canonical text form of a submission timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

// Table is an ordered header plus rows of text cells. An empty cell is null.
type Table struct {
	Header []string
	Rows   [][]string
}

// ResponseTable is a cleaned response sheet. Its answer key is the row whose
// identifier is the key sentinel and whose timestamp is empty.
type ResponseTable = Table

// ColumnIndex returns the index of the header cell equal to name, or -1.
func (t Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell returns the cell at row r, column c, or "" when out of range.
func (t Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][c]
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{Header: append([]string(nil), t.Header...)}
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Pad extends every row to the header width.
func (t *Table) Pad() {
	for i, row := range t.Rows {
		for len(row) < len(t.Header) {
			row = append(row, "")
		}
		t.Rows[i] = row
	}
}

// IsNull reports whether a cell holds no value.
func IsNull(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// ScoredRow is one respondent's scored submission.
type ScoredRow struct {
	Timestamp string
	StudentID string
	Marks     []int // one 0/1 mark per question
	Correct   int
	Score     float64
	Scored    bool // false when the timestamp could not be parsed
}

// ScoreEntry is the (correct-count, score) pair merged into a gradebook.
type ScoreEntry struct {
	Correct float64
	Score   float64
}

// ScoreMap maps a lower-cased student ID to its score entry.
type ScoreMap map[string]ScoreEntry

// GradebookTable holds the raw rows of a gradebook CSV. Row 0 is the header.
type GradebookTable struct {
	Rows [][]string
}

// RunStatus represents the outcome of a pipeline run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunAborted    RunStatus = "aborted"
	RunFailed     RunStatus = "failed"
)

// Run records one pass of the three-stage pipeline.
type Run struct {
	ID            int64      `json:"id"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	SourcePath    string     `json:"source_path"`
	CleanedPath   string     `json:"cleaned_path"`
	ResultsPath   string     `json:"results_path"`
	GradebookPath string     `json:"gradebook_path"`
	DateLabel     string     `json:"date_label"`
	TimeUnit      int        `json:"time_unit"`
	Updated       int        `json:"updated"`
	Status        RunStatus  `json:"status"`
	Error         string     `json:"error,omitempty"`
}

// RunScore is a per-student score recorded for a run.
type RunScore struct {
	RunID       int64   `json:"run_id"`
	StudentID   string  `json:"student_id"`
	SubmittedAt string  `json:"submitted_at"`
	Correct     int     `json:"correct"`
	Score       float64 `json:"score"`
}

// NormalizeConfig controls column detection in the normalizer.
type NormalizeConfig struct {
	AnswerMarker    string // substring marking an answer column header
	TimestampColumn string
}

// ScoreConfig names the columns and sentinels the scorer relies on.
type ScoreConfig struct {
	TimestampColumn string
	IDColumn        string
	KeySentinel     string // identifier of the answer-key row
	NoAnswer        string // answer value meaning "not answered"
	CorrectColumn   string
	ScoreColumn     string
	ClampNegative   bool // floor the decay weight at zero
}

// GradebookConfig describes the gradebook file layout.
type GradebookConfig struct {
	TrailerPrefix  string
	IDColumn       int
	RequireTrailer bool
	Backup         bool
}

// Config holds every tunable of a run, set via flags, env or config file.
type Config struct {
	Normalize NormalizeConfig
	Score     ScoreConfig
	Gradebook GradebookConfig
}

// DefaultConfig returns the column names and sentinels of the survey export
// the tool was built for.
func DefaultConfig() Config {
	return Config{
		Normalize: NormalizeConfig{
			AnswerMarker:    "題",
			TimestampColumn: "時間戳記",
		},
		Score: ScoreConfig{
			TimestampColumn: "時間戳記",
			IDColumn:        "學號",
			KeySentinel:     "email",
			NoAnswer:        "non",
			CorrectColumn:   "答對題數",
			ScoreColumn:     "考試分數",
		},
		Gradebook: GradebookConfig{
			TrailerPrefix: "本校",
			IDColumn:      2,
			Backup:        true,
		},
	}
}
