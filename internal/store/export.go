package store

import (
	"fmt"

	"github.com/pavelanni/quizgrader/internal/model"
)

// ExportRun builds the export view of a run and its scores.
func (s *Store) ExportRun(id int64) (model.RunExport, error) {
	run, err := s.GetRun(id)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("get run %d: %w", id, err)
	}
	scores, err := s.GetScores(id)
	if err != nil {
		return model.RunExport{}, fmt.Errorf("get scores for run %d: %w", id, err)
	}
	return model.NewRunExport(run, scores), nil
}
