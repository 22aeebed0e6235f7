package normalize

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

// ErrNoSaveLocation is returned when the user declines to pick an output path.
var ErrNoSaveLocation = errors.New("no save location selected")

// Stage reads a raw spreadsheet, normalizes it and writes the cleaned
// workbook plus its CSV twin.
type Stage struct {
	Files *sheet.Files
	UI    prompt.Interaction
	Cfg   model.NormalizeConfig
}

// Run processes src and returns the path of the cleaned CSV. Failures are
// reported to the user before being returned.
func (s *Stage) Run(ctx context.Context, src string) (string, error) {
	raw, err := s.Files.ReadXLSX(src)
	if err != nil {
		return "", s.fail(ctx, err)
	}
	cleaned := Normalize(raw, s.Cfg)
	slog.Info("normalized spreadsheet", "source", src, "columns", len(cleaned.Header), "rows", len(cleaned.Rows))

	savePath, err := s.UI.ChooseSaveLocation(ctx, i18n.T(ctx, "SaveCleaned"), ".xlsx")
	if err != nil {
		if errors.Is(err, prompt.ErrAborted) {
			s.UI.Notify(ctx, prompt.LevelWarning, i18n.T(ctx, "TitleWarning"), i18n.T(ctx, "NoSaveLocation"))
			return "", ErrNoSaveLocation
		}
		return "", s.fail(ctx, err)
	}

	csvPath, err := s.Write(savePath, cleaned)
	if err != nil {
		return "", s.fail(ctx, err)
	}
	return csvPath, nil
}

// Write stores t as a workbook at savePath and as CSV beside it.
func (s *Stage) Write(savePath string, t model.Table) (string, error) {
	if err := s.Files.WriteXLSX(savePath, t); err != nil {
		return "", fmt.Errorf("write workbook: %w", err)
	}
	csvPath := sheet.ReplaceExt(savePath, ".csv")
	if err := s.Files.WriteTable(csvPath, t); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	slog.Info("wrote cleaned table", "xlsx", savePath, "csv", csvPath)
	return csvPath, nil
}

func (s *Stage) fail(ctx context.Context, err error) error {
	slog.Error("normalize failed", "error", err)
	s.UI.Notify(ctx, prompt.LevelError, i18n.T(ctx, "TitleError"),
		i18n.Td(ctx, "ProcessFileFailed", map[string]any{"Error": err.Error()}))
	return err
}
