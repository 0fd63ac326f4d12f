package ui

import (
	"fmt"
	"strings"

	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/tasks"
)

var markerOrder = []models.Marker{models.MarkerDone, models.MarkerNotDone, models.MarkerUncertain}

// RenderStatus formats a project status report for the terminal.
//
// Uncertain counts are highlighted: they mean an earlier run was interrupted.
func RenderStatus(project string, report *tasks.StatusReport) string {
	var b strings.Builder
	b.WriteString(styles.Title(fmt.Sprintf("Project %s", project)))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%-12s %d\n", "Rows", report.Rows)
	fmt.Fprintf(&b, "%-12s %s\n", "Audio", markerCounts(report.Audio))
	fmt.Fprintf(&b, "%-12s %s\n", "Questions", markerCounts(report.HTML))
	fmt.Fprintf(&b, "%-12s %d\n", "Assigned", report.Assigned)

	transcribed := fmt.Sprintf("%d/%d", report.Transcribed, report.Rows)
	if report.Rows > 0 && report.Transcribed == report.Rows {
		transcribed = styles.OK(transcribed)
	}
	fmt.Fprintf(&b, "%-12s %s\n", "Transcribed", transcribed)

	if report.Audio[string(models.MarkerUncertain)]+report.HTML[string(models.MarkerUncertain)] > 0 {
		b.WriteString("\n")
		b.WriteString(styles.Help("Uncertain rows are re-checked on the next upload, publish or delete."))
		b.WriteString("\n")
	}
	return b.String()
}

func markerCounts(counts map[string]int) string {
	parts := make([]string, 0, len(markerOrder))
	for _, m := range markerOrder {
		n := counts[string(m)]
		parts = append(parts, styles.Marker(m, n, fmt.Sprintf("%s %d", m, n)))
	}
	return strings.Join(parts, ", ")
}

// RenderProgress formats one engine progress update as a single line.
func RenderProgress(update tasks.ProgressUpdate) string {
	phase := fmt.Sprintf("%-8s", update.Phase)
	switch update.Phase {
	case tasks.Rollback:
		return styles.Err(phase) + " " + update.Message
	case tasks.Recover:
		return styles.Warn(phase) + " " + update.Message
	default:
		return styles.Help(phase) + " " + update.Message
	}
}

// Success formats a completion line.
func Success(format string, args ...any) string {
	return styles.OK("✓") + " " + fmt.Sprintf(format, args...)
}

// Failure formats an error line.
func Failure(err error) string {
	return styles.Err("✗") + " " + err.Error()
}
