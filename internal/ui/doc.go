// Package ui renders engine output for the terminal with a small [lipgloss] palette.
//
// [RenderStatus] draws the per-marker counts of a project, [RenderProgress] turns a
// [tasks.ProgressUpdate] into one line, and [Success] and [Failure] format final results.
package ui
