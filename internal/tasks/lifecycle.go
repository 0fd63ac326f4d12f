package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/units"
)

// CreateUnits posts one work unit per row that is published, transcript-less and unassigned.
//
// Rows are only updated once every creation has succeeded. If any creation fails, each unit
// created earlier in the batch is removed and the creation error is returned joined with any
// removal errors.
func (e *ProjectEngine) CreateUnits(ctx context.Context, progress chan<- ProgressUpdate) (*CreateResult, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr("create units", err)
	}

	var work []*models.Row
	for _, row := range rows {
		if row.UnitID == "" && row.Transcript == "" && row.Marker(models.AssetHTML) == models.MarkerDone {
			work = append(work, row)
		}
	}
	if len(work) == 0 {
		return &CreateResult{}, nil
	}

	created := make([]*services.UnitDetail, 0, len(work))
	for i, row := range work {
		question := services.Question{
			URL:        row.QuestionURL,
			Annotation: units.EncodeAnnotation(e.stash(row)),
		}
		detail, err := e.market().CreateUnit(ctx, question, e.settings.Policy)
		if err != nil {
			cause := fmt.Errorf("create unit for %s: %w", row.AudioURL, err)
			return &CreateResult{}, e.rollback(ctx, created, cause, progress)
		}
		created = append(created, detail)
		e.sendProgress(progress, createUpdate(i+1, len(work), detail.ID))
	}

	result := &CreateResult{UnitIDs: make([]string, 0, len(created))}
	for i, row := range work {
		d := created[i]
		duration := time.Duration(d.AssignmentDuration) * time.Second
		if err := row.AssignUnit(d.ID, d.ExpiresAt, duration); err != nil {
			return result, e.rollback(ctx, created, err, progress)
		}
		result.UnitIDs = append(result.UnitIDs, d.ID)
	}
	if err := e.rows.Write(rows, nil); err != nil {
		return result, rowsErr("create units", err)
	}

	e.logger.Info("units created", "count", len(created))
	return result, nil
}

// stash returns the parameters a row's unit and question document carry, keyed by the env's lookup fields.
func (e *ProjectEngine) stash(row *models.Row) map[string]string {
	return map[string]string{
		e.units.URLField():     row.AudioURL,
		e.units.ProjectField(): row.ProjectID,
	}
}

// rollback removes units created earlier in a failed batch.
func (e *ProjectEngine) rollback(ctx context.Context, created []*services.UnitDetail, cause error, progress chan<- ProgressUpdate) error {
	errs := []error{cause}
	for i, d := range created {
		u, err := e.units.FromDetail(*d)
		if err == nil {
			err = u.Remove(ctx)
		}
		if err != nil {
			e.logger.Error("rollback failed", "unit", d.ID, "error", err)
			errs = append(errs, fmt.Errorf("rollback unit %s: %w", d.ID, err))
		}
		e.sendProgress(progress, rollbackUpdate(i+1, len(created), d.ID, err))
	}
	if len(created) > 0 {
		e.logger.Warn("rolled back unit batch", "units", len(created))
	}
	return errors.Join(errs...)
}

// Collect walks the account's units and copies every submitted or approved transcript of this project into its row.
//
// A live unit whose row has no unit recorded is adopted.
func (e *ProjectEngine) Collect(ctx context.Context, progress chan<- ProgressUpdate) (*CollectResult, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr("collect", err)
	}
	byURL := make(map[string]*models.Row, len(rows))
	for _, row := range rows {
		byURL[row.AudioURL] = row
	}

	result := &CollectResult{}
	changed := false
	err = e.units.Search(ctx, func(u *units.Unit) error {
		result.Seen++
		row, err := e.rowForUnit(ctx, u, byURL)
		if err != nil || row == nil {
			return err
		}

		switch {
		case row.UnitID == "":
			full, err := u.Full(ctx)
			if err != nil {
				return err
			}
			if full.Status == services.UnitDisposed {
				return nil
			}
			if err := row.AssignUnit(u.ID(), full.ExpiresAt, full.AssignmentDuration); err != nil {
				return err
			}
			result.Adopted++
			changed = true
			e.logger.Warn("adopted unit missing from rows", "unit", u.ID(), "row", row.AudioURL)
		case row.UnitID != u.ID():
			e.logger.Warn("duplicate unit for row", "unit", u.ID(), "row", row.AudioURL, "recorded", row.UnitID)
			return nil
		}
		result.Matched++

		state, err := u.State(ctx)
		if err != nil {
			return err
		}
		if state != units.StateSubmitted && state != units.StateApproved {
			return nil
		}
		a, err := u.Assignment(ctx)
		if err != nil {
			return err
		}
		if copyTranscript(row, a) {
			result.Collected++
			changed = true
			e.sendProgress(progress, collectUpdate(result.Collected, u.ID(), a.WorkerID))
		}
		return nil
	})
	if changed {
		if werr := e.rows.Write(rows, nil); werr != nil {
			return result, errors.Join(err, rowsErr("collect", werr))
		}
	}
	if err != nil {
		return result, fmt.Errorf("collect: %w", err)
	}

	e.logger.Info("collect complete", "seen", result.Seen, "matched", result.Matched, "collected", result.Collected)
	return result, nil
}

// rowForUnit returns the row a unit belongs to, or nil when the unit is foreign or from another project.
func (e *ProjectEngine) rowForUnit(ctx context.Context, u *units.Unit, byURL map[string]*models.Row) (*models.Row, error) {
	ours, err := u.Ours(ctx)
	if err != nil || !ours {
		return nil, err
	}
	project, err := u.StashedParam(ctx, e.units.ProjectField())
	if err != nil {
		return nil, err
	}
	if project != e.settings.ProjectID {
		return nil, nil
	}
	url, err := u.StashedParam(ctx, e.units.URLField())
	if err != nil {
		return nil, err
	}
	row := byURL[url]
	if row == nil {
		e.logger.Warn("unit references unknown row", "unit", u.ID(), "url", url)
	}
	return row, nil
}

func copyTranscript(row *models.Row, a *units.AssignmentSnapshot) bool {
	text := a.Answers[AnswerField]
	if text == "" || (row.Transcript == text && row.Worker == a.WorkerID) {
		return false
	}
	row.Transcript = text
	row.Worker = a.WorkerID
	return true
}

// Review approves or rejects the pending submission on the unit with unitID.
//
// Approval copies the transcript into the row. Rejection clears the row's transcript
// and disposes of the unit so the row can be assigned again.
func (e *ProjectEngine) Review(ctx context.Context, unitID string, approve bool, feedback string) error {
	if unitID == "" {
		return fmt.Errorf("%w: unit id", shared.ErrMissingArgument)
	}
	rows, err := e.rows.Read()
	if err != nil {
		return rowsErr("review", err)
	}
	var row *models.Row
	for _, r := range rows {
		if r.UnitID == unitID {
			row = r
			break
		}
	}
	if row == nil {
		return fmt.Errorf("%w: no row holds unit %s", shared.ErrRowNotFound, unitID)
	}

	u, err := e.units.Load(ctx, unitID)
	if err != nil {
		return err
	}

	if approve {
		if err := u.Approve(ctx, feedback); err != nil {
			return err
		}
		a, err := u.Assignment(ctx)
		if err != nil {
			return err
		}
		copyTranscript(row, a)
		e.logger.Info("approved", "unit", unitID, "worker", a.WorkerID)
	} else {
		if err := u.Reject(ctx, feedback); err != nil {
			return err
		}
		if err := u.Remove(ctx); err != nil {
			return err
		}
		row.ClearUnit()
		row.Transcript = ""
		row.Worker = ""
		e.logger.Info("rejected", "unit", unitID)
	}

	return e.rows.Write(rows, nil)
}

// ReapExpired removes units whose lifetime and assignment deadline have both passed without a submission.
//
// Rows whose recorded deadline has not passed are skipped without a network call.
// Rows referencing units the marketplace no longer knows are cleared.
func (e *ProjectEngine) ReapExpired(ctx context.Context, progress chan<- ProgressUpdate) (*ReapResult, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr("reap", err)
	}

	now := e.now()
	var candidates []*models.Row
	for _, row := range rows {
		if row.UnitID == "" || row.Transcript != "" {
			continue
		}
		if !row.UnitExpiresAt.IsZero() && !now.After(row.UnitExpiresAt.Add(row.UnitDuration)) {
			continue
		}
		candidates = append(candidates, row)
	}

	result := &ReapResult{}
	cleared := map[string]bool{}
	var reapErr error
	for i, row := range candidates {
		outcome, err := e.reap(ctx, row)
		if err != nil {
			reapErr = fmt.Errorf("reap unit %s: %w", row.UnitID, err)
			break
		}
		switch outcome {
		case reapRemoved:
			result.Removed++
			e.sendProgress(progress, reapUpdate(i+1, len(candidates), row.UnitID))
		case reapGone:
			e.logger.Debug("unit gone", "unit", row.UnitID)
		default:
			continue
		}
		cleared[row.UnitID] = true
		result.Cleared++
	}

	if err := e.clearUnits(cleared); err != nil {
		return result, errors.Join(reapErr, rowsErr("reap", err))
	}
	return result, reapErr
}

// clearUnits drops the unit recorded on every row holding one of ids.
func (e *ProjectEngine) clearUnits(ids map[string]bool) error {
	if len(ids) == 0 {
		return nil
	}
	return e.rows.Mutate(func(row *models.Row) error {
		if ids[row.UnitID] {
			row.ClearUnit()
		}
		return nil
	})
}

type reapOutcome int

const (
	reapKept reapOutcome = iota
	reapRemoved
	reapGone
)

// reap removes one row's unit if it expired unsubmitted.
func (e *ProjectEngine) reap(ctx context.Context, row *models.Row) (reapOutcome, error) {
	u, err := e.units.Load(ctx, row.UnitID)
	if err != nil {
		return reapKept, err
	}
	state, err := u.State(ctx)
	if units.Gone(err) {
		return reapGone, nil
	}
	if err != nil {
		return reapKept, err
	}
	if !u.ExpiredOverdue() || state != units.StateAssignable {
		return reapKept, nil
	}
	if err := u.Remove(ctx); err != nil {
		return reapKept, err
	}
	return reapRemoved, nil
}

// Finish removes every unit recorded on a row, then deletes the project's questions and audio.
//
// Stops with [shared.ErrUnreviewedContent] if any unit holds a submission awaiting review;
// rows cleared before that point are persisted.
func (e *ProjectEngine) Finish(ctx context.Context, progress chan<- ProgressUpdate) error {
	rows, err := e.rows.Read()
	if err != nil {
		return rowsErr("finish", err)
	}

	var assigned []*models.Row
	for _, row := range rows {
		if row.UnitID != "" {
			assigned = append(assigned, row)
		}
	}

	var finishErr error
	cleared := map[string]bool{}
	for i, row := range assigned {
		u, err := e.units.Load(ctx, row.UnitID)
		if err == nil {
			err = u.Remove(ctx)
		}
		if err != nil && !units.Gone(err) {
			finishErr = fmt.Errorf("finish: %w", err)
			break
		}
		e.sendProgress(progress, finishUpdate(i+1, len(assigned), fmt.Sprintf("Removed unit %s", row.UnitID)))
		cleared[row.UnitID] = true
	}
	if err := e.clearUnits(cleared); err != nil {
		return errors.Join(finishErr, rowsErr("finish", err))
	}
	if finishErr != nil {
		return finishErr
	}

	if _, err := e.DeleteQuestions(ctx, progress); err != nil {
		return err
	}
	if _, err := e.DeleteAudio(ctx, progress); err != nil {
		return err
	}
	e.logger.Info("project finished", "units", len(cleared))
	return nil
}
