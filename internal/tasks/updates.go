package tasks

import (
	"fmt"

	"github.com/ryantate/typingpool-sub000/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Import Phase = iota
	Recover
	Upload
	Publish
	Delete
	Create
	Rollback
	Collect
	Review
	Reap
	Finish
)

func (p Phase) String() string {
	switch p {
	case Import:
		return "import"
	case Recover:
		return "recover"
	case Upload:
		return "upload"
	case Publish:
		return "publish"
	case Delete:
		return "delete"
	case Create:
		return "create"
	case Rollback:
		return "rollback"
	case Collect:
		return "collect"
	case Review:
		return "review"
	case Reap:
		return "reap"
	case Finish:
		return "finish"
	default:
		return ""
	}
}

func importUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Import,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Imported %s", step, total, name),
	}
}

func recoverUpdate(step, total int, asset models.Asset, row *models.Row) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recover,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s: %s", step, total, asset, row.AssetURL(asset), row.Marker(asset)),
		Data:    row,
	}
}

func batchUpdate(phase Phase, total int, asset models.Asset) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Sending %d %s file(s)...", total, asset),
	}
}

func batchDoneUpdate(phase Phase, total int, asset models.Asset) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("✓ %d %s file(s) confirmed", total, asset),
	}
}

func createUpdate(step, total int, unitID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Create,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Created unit %s", step, total, unitID),
	}
}

func rollbackUpdate(step, total int, unitID string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   Rollback,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, unitID, err),
		}
	}
	return ProgressUpdate{
		Phase:   Rollback,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removed unit %s", step, total, unitID),
	}
}

func collectUpdate(step int, unitID, worker string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Collect,
		Step:    step,
		Message: fmt.Sprintf("Collected unit %s from %s", unitID, worker),
	}
}

func reapUpdate(step, total int, unitID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reap,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Reaped unit %s", step, total, unitID),
	}
}

func finishUpdate(step, total int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finish,
		Step:    step,
		Total:   total,
		Message: message,
	}
}
