// Package pipeline runs the normalize, score and merge stages as one
// interactive flow.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/pavelanni/quizgrader/internal/gradebook"
	"github.com/pavelanni/quizgrader/internal/i18n"
	"github.com/pavelanni/quizgrader/internal/model"
	"github.com/pavelanni/quizgrader/internal/normalize"
	"github.com/pavelanni/quizgrader/internal/prompt"
	"github.com/pavelanni/quizgrader/internal/score"
	"github.com/pavelanni/quizgrader/internal/sheet"
)

// History records runs. *store.Store implements it.
type History interface {
	CreateRun(sourcePath string) (int64, error)
	FinishRun(r model.Run) error
	SaveScores(runID int64, scored []model.ScoredRow) error
	Remember(dir string, timeUnit int, date string) error
}

// Runner drives a full pass over the three stages.
type Runner struct {
	Files   *sheet.Files
	UI      prompt.Interaction
	Cfg     model.Config
	History History // optional
}

// New builds a runner over files and ui.
func New(files *sheet.Files, ui prompt.Interaction, cfg model.Config, history History) *Runner {
	return &Runner{Files: files, UI: ui, Cfg: cfg, History: history}
}

// Run executes the whole flow and returns the run record. Declined prompts end
// the run with status aborted; stage failures end it with status failed. Both
// have already been reported to the user, so only unexpected errors from the
// history store are returned.
func (r *Runner) Run(ctx context.Context) (model.Run, error) {
	run := model.Run{Status: model.RunInProgress}

	src, err := r.UI.ChooseFile(ctx, i18n.T(ctx, "SelectSpreadsheet"), []string{".xlsx"})
	if err != nil {
		r.warn(ctx, "NoFileSelected")
		run.Status = model.RunAborted
		return run, nil
	}
	run.SourcePath = src
	if r.History != nil {
		if run.ID, err = r.History.CreateRun(src); err != nil {
			return run, err
		}
	}

	r.execute(ctx, &run)
	slog.Info("run finished", "id", run.ID, "status", run.Status, "updated", run.Updated)
	return run, r.finish(run)
}

func (r *Runner) execute(ctx context.Context, run *model.Run) {
	norm := &normalize.Stage{Files: r.Files, UI: r.UI, Cfg: r.Cfg.Normalize}
	csvPath, err := norm.Run(ctx, run.SourcePath)
	if err != nil {
		end(run, err)
		return
	}
	run.CleanedPath = csvPath

	unit, err := r.UI.PromptInteger(ctx, i18n.T(ctx, "PromptTimeUnit"))
	if err != nil || unit <= 0 {
		r.warn(ctx, "NoTimeUnit")
		end(run, prompt.ErrAborted)
		return
	}
	run.TimeUnit = unit

	sc := &score.Stage{Files: r.Files, UI: r.UI, Cfg: r.Cfg.Score}
	resultsPath, scored, err := sc.Run(ctx, csvPath, unit)
	if err != nil {
		end(run, err)
		return
	}
	run.ResultsPath = resultsPath
	if r.History != nil {
		if err := r.History.SaveScores(run.ID, scored); err != nil {
			slog.Warn("failed to record scores", "run", run.ID, "error", err)
		}
	}

	gbPath, err := r.UI.ChooseFile(ctx, i18n.T(ctx, "SelectGradebook"), []string{".csv"})
	if err != nil {
		r.warn(ctx, "NoFileSelected")
		end(run, prompt.ErrAborted)
		return
	}
	run.GradebookPath = gbPath

	date, err := r.UI.PromptText(ctx, i18n.T(ctx, "PromptDate"))
	if err != nil || date == "" {
		r.warn(ctx, "NoDate")
		end(run, prompt.ErrAborted)
		return
	}
	run.DateLabel = date

	merger := &gradebook.Stage{Files: r.Files, UI: r.UI, ScoreCfg: r.Cfg.Score, Cfg: r.Cfg.Gradebook}
	scores, err := merger.LoadScores(resultsPath)
	if err != nil {
		slog.Error("cannot read scores", "path", resultsPath, "error", err)
		r.UI.Notify(ctx, prompt.LevelError, i18n.T(ctx, "TitleError"), i18n.T(ctx, "ScoresUnreadable"))
		end(run, err)
		return
	}
	updated, err := merger.Run(ctx, scores, gbPath, date)
	if err != nil {
		end(run, err)
		return
	}
	run.Updated = updated
	if updated > 0 {
		r.UI.Notify(ctx, prompt.LevelInfo, i18n.T(ctx, "TitleSuccess"), i18n.Tp(ctx, "StudentsUpdated", updated))
	} else {
		r.warn(ctx, "NothingToUpdate")
	}
	end(run, nil)
}

func (r *Runner) finish(run model.Run) error {
	if r.History == nil || run.ID == 0 {
		return nil
	}
	if err := r.History.FinishRun(run); err != nil {
		return err
	}
	if run.Status == model.RunCompleted {
		return r.History.Remember(filepath.Dir(run.SourcePath), run.TimeUnit, run.DateLabel)
	}
	return nil
}

func end(run *model.Run, err error) {
	switch {
	case err == nil:
		run.Status = model.RunCompleted
	case errors.Is(err, prompt.ErrAborted), errors.Is(err, normalize.ErrNoSaveLocation):
		run.Status = model.RunAborted
	default:
		run.Status = model.RunFailed
		run.Error = err.Error()
	}
}

func (r *Runner) warn(ctx context.Context, msgID string) {
	r.UI.Notify(ctx, prompt.LevelWarning, i18n.T(ctx, "TitleWarning"), i18n.T(ctx, msgID))
}
