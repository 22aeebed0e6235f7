package store

import (
	"database/sql"
	"testing"

	"github.com/pavelanni/quizgrader/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestRun(t *testing.T, s *Store, src string) int64 {
	t.Helper()
	id, err := s.CreateRun(src)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	return id
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	count, err := s.RunCount()
	if err != nil {
		t.Fatalf("RunCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 runs, got %d", count)
	}

	id := createTestRun(t, s, "/data/quiz.xlsx")
	run, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != model.RunInProgress {
		t.Errorf("expected status in_progress, got %q", run.Status)
	}
	if run.FinishedAt != nil {
		t.Error("expected nil finished_at")
	}
	if run.SourcePath != "/data/quiz.xlsx" {
		t.Errorf("expected source path, got %q", run.SourcePath)
	}

	run.CleanedPath = "/data/clean.csv"
	run.ResultsPath = "/data/clean_results.csv"
	run.GradebookPath = "/data/gradebook.csv"
	run.DateLabel = "10/8"
	run.TimeUnit = 10
	run.Updated = 12
	run.Status = model.RunCompleted
	if err := s.FinishRun(run); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun after finish: %v", err)
	}
	if got.Status != model.RunCompleted || got.Updated != 12 || got.DateLabel != "10/8" || got.TimeUnit != 10 {
		t.Errorf("unexpected finished run %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}

	// Not found.
	if _, err := s.GetRun(9999); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	createTestRun(t, s, "a.xlsx")
	createTestRun(t, s, "b.xlsx")
	createTestRun(t, s, "c.xlsx")

	tests := []struct {
		name      string
		limit     int
		wantCount int
		wantFirst string
	}{
		{"all", 0, 3, "c.xlsx"},
		{"limited", 2, 2, "c.xlsx"},
		{"over limit", 10, 3, "c.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := s.ListRuns(tt.limit)
			if err != nil {
				t.Fatalf("ListRuns: %v", err)
			}
			if len(runs) != tt.wantCount {
				t.Fatalf("expected %d runs, got %d", tt.wantCount, len(runs))
			}
			if runs[0].SourcePath != tt.wantFirst {
				t.Errorf("expected newest first (%q), got %q", tt.wantFirst, runs[0].SourcePath)
			}
		})
	}
}

func TestScores(t *testing.T) {
	s := newTestStore(t)
	id := createTestRun(t, s, "quiz.xlsx")

	scored := []model.ScoredRow{
		{Timestamp: "2024-10-08 14:00:00", StudentID: "s1", Correct: 2, Score: 2.02},
		{Timestamp: "2024-10-08 14:15:00", StudentID: "s2", Correct: 1, Score: 0.99},
	}
	if err := s.SaveScores(id, scored); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}
	got, err := s.GetScores(id)
	if err != nil {
		t.Fatalf("GetScores: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(got))
	}
	if got[0].StudentID != "s1" || got[0].Correct != 2 || got[0].Score != 2.02 {
		t.Errorf("unexpected first score %+v", got[0])
	}

	// Saving again replaces the previous set.
	if err := s.SaveScores(id, scored[:1]); err != nil {
		t.Fatalf("SaveScores again: %v", err)
	}
	got, err = s.GetScores(id)
	if err != nil {
		t.Fatalf("GetScores: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 score after replace, got %d", len(got))
	}
}

func TestExportRun(t *testing.T) {
	s := newTestStore(t)
	id := createTestRun(t, s, "quiz.xlsx")
	if err := s.SaveScores(id, []model.ScoredRow{
		{StudentID: "s1", Correct: 2, Score: 2.0},
		{StudentID: "s2", Correct: 1, Score: 1.0},
	}); err != nil {
		t.Fatalf("SaveScores: %v", err)
	}

	exp, err := s.ExportRun(id)
	if err != nil {
		t.Fatalf("ExportRun: %v", err)
	}
	if exp.Run.ID != id || len(exp.Scores) != 2 {
		t.Errorf("unexpected export %+v", exp)
	}
	if exp.Average != 1.5 {
		t.Errorf("expected average 1.5, got %v", exp.Average)
	}

	empty := createTestRun(t, s, "empty.xlsx")
	exp, err = s.ExportRun(empty)
	if err != nil {
		t.Fatalf("ExportRun empty: %v", err)
	}
	if exp.Scores == nil || len(exp.Scores) != 0 || exp.Average != 0 {
		t.Errorf("unexpected empty export %+v", exp)
	}

	if _, err := s.ExportRun(9999); err == nil {
		t.Error("expected error for missing run")
	}
}

func TestMetadata(t *testing.T) {
	s := newTestStore(t)

	v, err := s.GetMetadata(KeyLastDir)
	if err != nil || v != "" {
		t.Fatalf("GetMetadata on empty store = %q, %v", v, err)
	}

	if err := s.Remember("/data", 10, "10/8"); err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if err := s.Remember("/other", 0, ""); err != nil {
		t.Fatalf("Remember partial: %v", err)
	}

	tests := map[string]string{
		KeyLastDir:      "/other",
		KeyLastTimeUnit: "10",
		KeyLastDate:     "10/8",
	}
	for key, want := range tests {
		got, err := s.GetMetadata(key)
		if err != nil {
			t.Fatalf("GetMetadata(%s): %v", key, err)
		}
		if got != want {
			t.Errorf("GetMetadata(%s) = %q, want %q", key, got, want)
		}
	}
}
