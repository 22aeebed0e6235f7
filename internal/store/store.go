package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pavelanni/quizgrader/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		source_path TEXT NOT NULL DEFAULT '',
		cleaned_path TEXT NOT NULL DEFAULT '',
		results_path TEXT NOT NULL DEFAULT '',
		gradebook_path TEXT NOT NULL DEFAULT '',
		date_label TEXT NOT NULL DEFAULT '',
		time_unit INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'in_progress',
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS run_scores (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		student_id TEXT NOT NULL,
		submitted_at TEXT NOT NULL DEFAULT '',
		correct INTEGER NOT NULL DEFAULT 0,
		score REAL NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_run_scores_run ON run_scores(run_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const runColumns = `id, started_at, finished_at, source_path, cleaned_path, results_path,
	gradebook_path, date_label, time_unit, updated, status, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (model.Run, error) {
	var r model.Run
	err := sc.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourcePath, &r.CleanedPath, &r.ResultsPath,
		&r.GradebookPath, &r.DateLabel, &r.TimeUnit, &r.Updated, &r.Status, &r.Error)
	return r, err
}

// CreateRun starts a run record for the given source spreadsheet.
func (s *Store) CreateRun(sourcePath string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (started_at, source_path, status) VALUES (?, ?, ?)`,
		time.Now(), sourcePath, model.RunInProgress,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FinishRun stores the final state of a run.
func (s *Store) FinishRun(r model.Run) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, cleaned_path = ?, results_path = ?, gradebook_path = ?,
		 date_label = ?, time_unit = ?, updated = ?, status = ?, error = ? WHERE id = ?`,
		time.Now(), r.CleanedPath, r.ResultsPath, r.GradebookPath,
		r.DateLabel, r.TimeUnit, r.Updated, r.Status, r.Error, r.ID,
	)
	return err
}

// GetRun returns a run by ID.
func (s *Store) GetRun(id int64) (model.Run, error) {
	return scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
}

// ListRuns returns runs newest first. A limit of 0 returns all of them.
func (s *Store) ListRuns(limit int) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveScores replaces the recorded scores of a run.
func (s *Store) SaveScores(runID int64, scored []model.ScoredRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_scores WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for _, r := range scored {
		_, err := tx.Exec(
			`INSERT INTO run_scores (run_id, student_id, submitted_at, correct, score) VALUES (?, ?, ?, ?, ?)`,
			runID, r.StudentID, r.Timestamp, r.Correct, r.Score,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetScores returns the recorded scores of a run in insertion order.
func (s *Store) GetScores(runID int64) ([]model.RunScore, error) {
	rows, err := s.db.Query(
		`SELECT run_id, student_id, submitted_at, correct, score FROM run_scores WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var scores []model.RunScore
	for rows.Next() {
		var sc model.RunScore
		if err := rows.Scan(&sc.RunID, &sc.StudentID, &sc.SubmittedAt, &sc.Correct, &sc.Score); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// RunCount returns the number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}
