package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "Quiz Grader" {
		t.Errorf("T(AppTitle) = %q, want 'Quiz Grader'", got)
	}
	if got := T(ctx, "NoAnswerKey"); got != "Answer key row not found" {
		t.Errorf("T(NoAnswerKey) = %q", got)
	}
}

func TestTranslateTraditionalChinese(t *testing.T) {
	ctx := initLang(t, "zh-TW")

	if got := T(ctx, "SelectSpreadsheet"); got != "選擇Excel檔案" {
		t.Errorf("T(SelectSpreadsheet) = %q, want '選擇Excel檔案'", got)
	}
	if got := T(ctx, "TitleWarning"); got != "警告" {
		t.Errorf("T(TitleWarning) = %q, want '警告'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "StudentsUpdated", 1); got != "Updated the score of 1 student" {
		t.Errorf("Tp(StudentsUpdated, 1) = %q", got)
	}
	if got := Tp(ctx, "StudentsUpdated", 5); got != "Updated the scores of 5 students" {
		t.Errorf("Tp(StudentsUpdated, 5) = %q", got)
	}

	zh := initLang(t, "zh-TW")
	if got := Tp(zh, "StudentsUpdated", 3); got != "已更新 3 位學生的成績" {
		t.Errorf("Tp(StudentsUpdated, 3) zh-TW = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "DateNotFound", map[string]any{"Date": "10/8"})
	want := "Column '10/8' not found in the CSV file. Make sure the date is entered correctly."
	if got != want {
		t.Errorf("Td(DateNotFound) = %q, want %q", got, want)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestNoBundleReturnsID(t *testing.T) {
	saved := bundle
	bundle = nil
	t.Cleanup(func() { bundle = saved })

	ctx := WithLanguage(context.Background(), "en")
	if got := T(ctx, "AppTitle"); got != "AppTitle" {
		t.Errorf("T without bundle = %q, want message ID", got)
	}
}
