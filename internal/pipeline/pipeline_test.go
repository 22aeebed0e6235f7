package pipeline

import (
	"context"
	"testing"

	"github.com/spf13/afero"

	"github.com/pavelanni/quizgrader/internal/model"
	"github.com/pavelanni/quizgrader/internal/prompt"
	"github.com/pavelanni/quizgrader/internal/sheet"
	"github.com/pavelanni/quizgrader/internal/store"
)

func seedFiles(t *testing.T) *sheet.Files {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := fs.MkdirAll("/course", 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := sheet.New(fs)

	raw := model.Table{
		Header: []string{"時間戳記", "電子郵件地址", "學號", "第1題", "第2題"},
		Rows: [][]string{
			{"2024/10/8 下午 1:00:00", "", "email", "A", "B"},
			{"2024/10/8 下午 2:00:00", "s1@school.edu", "S1", "A", "B"},
			{"2024/10/8 下午 2:15:00", "s2@school.edu", "s2", "A", "X"},
			{"2024/10/8 下午 2:20:00", "", "", "A", "B"},
		},
	}
	if err := files.WriteXLSX("/course/responses.xlsx", raw); err != nil {
		t.Fatalf("seed workbook: %v", err)
	}
	book := [][]string{
		{"班級", "姓名", "學號", "10/8", "10/8答對"},
		{"A", "王小明", "s1", "", ""},
		{"A", "李小華", "S2", "", ""},
		{"A", "陳大文", "s3", "", ""},
		{"本校", "", "", "", ""},
	}
	if err := files.WriteCSV("/course/gradebook.csv", book); err != nil {
		t.Fatalf("seed gradebook: %v", err)
	}
	return files
}

func newHistory(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunCompleteFlow(t *testing.T) {
	files := seedFiles(t)
	history := newHistory(t)
	ui := &prompt.Script{
		Files:         []string{"/course/responses.xlsx", "/course/gradebook.csv"},
		SaveLocations: []string{"/course/clean.xlsx"},
		Integers:      []int{10},
		Texts:         []string{"10/8"},
	}

	run, err := New(files, ui, model.DefaultConfig(), history).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != model.RunCompleted {
		t.Fatalf("status = %q (%s), want completed", run.Status, run.Error)
	}
	if run.Updated != 2 {
		t.Errorf("updated = %d, want 2", run.Updated)
	}
	if run.CleanedPath != "/course/clean.csv" || run.ResultsPath != "/course/clean_results.csv" {
		t.Errorf("unexpected paths %q %q", run.CleanedPath, run.ResultsPath)
	}
	if n := ui.Last(); n.Level != prompt.LevelInfo {
		t.Errorf("expected success notice, got %+v", n)
	}

	rows, err := files.ReadCSV("/course/gradebook.csv")
	if err != nil {
		t.Fatalf("read gradebook: %v", err)
	}
	if rows[1][3] != "2.02" || rows[1][4] != "2" {
		t.Errorf("s1 row = %v", rows[1])
	}
	if rows[2][3] != "0.99" || rows[2][4] != "1" {
		t.Errorf("s2 row = %v", rows[2])
	}
	if rows[3][3] != "" {
		t.Errorf("s3 should be untouched, got %v", rows[3])
	}

	stored, err := history.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if stored.Status != model.RunCompleted || stored.Updated != 2 {
		t.Errorf("stored run = %+v", stored)
	}
	scores, err := history.GetScores(run.ID)
	if err != nil {
		t.Fatalf("GetScores: %v", err)
	}
	if len(scores) != 2 {
		t.Errorf("expected 2 stored scores, got %d", len(scores))
	}
	if dir, _ := history.GetMetadata(store.KeyLastDir); dir != "/course" {
		t.Errorf("last dir = %q", dir)
	}
}

func TestRunAborts(t *testing.T) {
	tests := []struct {
		name   string
		ui     *prompt.Script
		status model.RunStatus
	}{
		{"no spreadsheet", &prompt.Script{}, model.RunAborted},
		{"no save location", &prompt.Script{
			Files: []string{"/course/responses.xlsx"},
		}, model.RunAborted},
		{"no time unit", &prompt.Script{
			Files:         []string{"/course/responses.xlsx"},
			SaveLocations: []string{"/course/clean.xlsx"},
		}, model.RunAborted},
		{"no gradebook", &prompt.Script{
			Files:         []string{"/course/responses.xlsx"},
			SaveLocations: []string{"/course/clean.xlsx"},
			Integers:      []int{10},
		}, model.RunAborted},
		{"empty date", &prompt.Script{
			Files:         []string{"/course/responses.xlsx", "/course/gradebook.csv"},
			SaveLocations: []string{"/course/clean.xlsx"},
			Integers:      []int{10},
			Texts:         []string{""},
		}, model.RunAborted},
		{"unknown date", &prompt.Script{
			Files:         []string{"/course/responses.xlsx", "/course/gradebook.csv"},
			SaveLocations: []string{"/course/clean.xlsx"},
			Integers:      []int{10},
			Texts:         []string{"12/25"},
		}, model.RunFailed},
		{"missing spreadsheet", &prompt.Script{
			Files:         []string{"/course/missing.xlsx"},
			SaveLocations: []string{"/course/clean.xlsx"},
		}, model.RunFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := seedFiles(t)
			history := newHistory(t)
			before, _ := afero.ReadFile(files.Fs(), "/course/gradebook.csv")

			run, err := New(files, tt.ui, model.DefaultConfig(), history).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if run.Status != tt.status {
				t.Errorf("status = %q, want %q", run.Status, tt.status)
			}
			if len(tt.ui.Notices) == 0 || tt.ui.Last().Level == prompt.LevelInfo {
				t.Errorf("expected a warning or error notice, got %+v", tt.ui.Notices)
			}
			after, _ := afero.ReadFile(files.Fs(), "/course/gradebook.csv")
			if string(before) != string(after) {
				t.Error("gradebook changed on an aborted or failed run")
			}
		})
	}
}

func TestRunNothingToUpdate(t *testing.T) {
	files := seedFiles(t)
	if err := files.WriteCSV("/course/gradebook.csv", [][]string{
		{"班級", "姓名", "學號", "10/8", "10/8答對"},
		{"B", "林小美", "x9", "", ""},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ui := &prompt.Script{
		Files:         []string{"/course/responses.xlsx", "/course/gradebook.csv"},
		SaveLocations: []string{"/course/clean.xlsx"},
		Integers:      []int{10},
		Texts:         []string{"10/8"},
	}

	run, err := New(files, ui, model.DefaultConfig(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != model.RunCompleted || run.Updated != 0 {
		t.Errorf("run = %+v, want completed with 0 updates", run)
	}
	if n := ui.Last(); n.Level != prompt.LevelWarning || n.Message != "NothingToUpdate" {
		t.Errorf("expected nothing-to-update warning, got %+v", n)
	}
}
