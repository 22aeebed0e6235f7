package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pavelanni/quizgrader/internal/model"
)

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("69")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func statusStyle(s model.RunStatus) lipgloss.Style {
	switch s {
	case model.RunCompleted:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	case model.RunFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	}
}

// renderSummary formats the outcome of one interactive run.
func renderSummary(run model.Run) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}
	line("status", statusStyle(run.Status).Render(string(run.Status)))
	line("source", run.SourcePath)
	line("cleaned", run.CleanedPath)
	line("results", run.ResultsPath)
	line("gradebook", run.GradebookPath)
	line("date", run.DateLabel)
	if run.TimeUnit > 0 {
		line("unit", fmt.Sprintf("%d min", run.TimeUnit))
	}
	if run.Status == model.RunCompleted {
		line("updated", fmt.Sprintf("%d", run.Updated))
	}
	line("error", run.Error)
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// renderHistory formats recorded runs as a table, newest first.
func renderHistory(runs []model.Run) string {
	if len(runs) == 0 {
		return mutedStyle.Render("no runs recorded")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-5s %-19s %-11s %-8s %s", "ID", "STARTED", "STATUS", "UPDATED", "SOURCE")))
	for _, r := range runs {
		b.WriteString("\n")
		status := statusStyle(r.Status).Render(fmt.Sprintf("%-11s", r.Status))
		fmt.Fprintf(&b, "%-5d %-19s %s %-8d %s",
			r.ID, r.StartedAt.Format(model.TimestampLayout), status, r.Updated, r.SourcePath)
	}
	return b.String()
}
