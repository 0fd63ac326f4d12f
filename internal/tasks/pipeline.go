package tasks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ryantate/typingpool-sub000/internal/formatter"
	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// pipeline describes one batched storage operation over a single asset kind.
//
// Rows whose marker equals from form the work set; after the batch is confirmed they are set to to.
type pipeline struct {
	name  string
	phase Phase
	asset models.Asset
	from  models.Marker
	to    models.Marker
	// prepare may fill in the remote references of work rows before names are resolved.
	prepare func(rows []*models.Row) error
	// execute performs the remote batch for the work rows and their resolved names.
	execute func(ctx context.Context, rows []*models.Row, names []string) error
}

// runPipeline drives the write-ahead protocol:
//
//  1. resolve uncertain markers by probing the public URL
//  2. select the work set
//  3. resolve every remote name, failing with [shared.ErrConfigMismatch] before anything is marked
//  4. mark the work set uncertain and persist
//  5. run the batch
//  6. mark the work set with the target state and persist
//
// A failure in step 5 leaves the work set uncertain for the next run's recovery.
func (e *ProjectEngine) runPipeline(ctx context.Context, p pipeline, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, rowsErr(p.name, err)
	}

	result := &PipelineResult{}
	result.Recovered, err = e.recover(ctx, rows, p.asset, progress)
	if err != nil {
		return result, fmt.Errorf("%s: %w", p.name, err)
	}

	work := selectWork(rows, p.asset, p.from)
	if len(work) == 0 {
		e.logger.Debug("nothing to do", "op", p.name)
		return result, nil
	}

	if p.prepare != nil {
		if err := p.prepare(work); err != nil {
			return result, fmt.Errorf("%s: %w", p.name, err)
		}
	}
	names, err := e.resolveNames(work, p.asset)
	if err != nil {
		return result, fmt.Errorf("%s: %w", p.name, err)
	}

	for _, row := range work {
		row.SetMarker(p.asset, models.MarkerUncertain)
	}
	if err := e.rows.Write(rows, nil); err != nil {
		return result, rowsErr(p.name, err)
	}

	e.sendProgress(progress, batchUpdate(p.phase, len(work), p.asset))
	if err := p.execute(ctx, work, names); err != nil {
		e.logger.Warn("batch failed, rows left uncertain", "op", p.name, "rows", len(work), "error", err)
		return result, fmt.Errorf("%s: %w", p.name, err)
	}

	for _, row := range work {
		row.SetMarker(p.asset, p.to)
	}
	if err := e.rows.Write(rows, nil); err != nil {
		return result, rowsErr(p.name, err)
	}

	result.Processed = len(work)
	e.sendProgress(progress, batchDoneUpdate(p.phase, len(work), p.asset))
	e.logger.Info("batch confirmed", "op", p.name, "rows", len(work))
	return result, nil
}

// recover resolves every uncertain marker of asset by probing its URL and persists the rows if any changed.
func (e *ProjectEngine) recover(ctx context.Context, rows []*models.Row, asset models.Asset, progress chan<- ProgressUpdate) (int, error) {
	uncertain := selectWork(rows, asset, models.MarkerUncertain)
	if len(uncertain) == 0 {
		return 0, nil
	}
	if _, err := e.resolveNames(uncertain, asset); err != nil {
		return 0, err
	}

	for i, row := range uncertain {
		exists, err := e.prober.Exists(ctx, row.AssetURL(asset))
		if err != nil {
			return 0, fmt.Errorf("probe %s: %w", row.AssetURL(asset), err)
		}
		if exists {
			row.SetMarker(asset, models.MarkerDone)
		} else {
			row.SetMarker(asset, models.MarkerNotDone)
		}
		e.sendProgress(progress, recoverUpdate(i+1, len(uncertain), asset, row))
	}

	if err := e.rows.Write(rows, nil); err != nil {
		return 0, err
	}
	e.logger.Info("recovered uncertain rows", "asset", asset, "rows", len(uncertain))
	return len(uncertain), nil
}

// selectWork returns the rows whose marker for asset equals m, in file order.
func selectWork(rows []*models.Row, asset models.Asset, m models.Marker) []*models.Row {
	var work []*models.Row
	for _, row := range rows {
		if row.Marker(asset) == m {
			work = append(work, row)
		}
	}
	return work
}

// resolveNames maps each row's asset URL to its stored name.
func (e *ProjectEngine) resolveNames(rows []*models.Row, asset models.Asset) ([]string, error) {
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		u := row.AssetURL(asset)
		if u == "" {
			return nil, fmt.Errorf("%w: row %s has no %s url", shared.ErrMalformedReference, row.AudioURL, asset)
		}
		name, err := e.storage.BasenameForURL(u)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// UploadAudio puts every not-yet-uploaded audio chunk into remote storage.
func (e *ProjectEngine) UploadAudio(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	return e.runPipeline(ctx, pipeline{
		name:    "upload audio",
		phase:   Upload,
		asset:   models.AssetAudio,
		from:    models.MarkerNotDone,
		to:      models.MarkerDone,
		execute: e.putAudio,
	}, progress)
}

func (e *ProjectEngine) putAudio(ctx context.Context, rows []*models.Row, names []string) error {
	uploads := make([]services.Upload, 0, len(rows))
	for i, row := range rows {
		local := row.AudioFile
		if local == "" {
			local = names[i]
		}
		f, err := os.Open(filepath.Join(e.settings.AudioDir, local))
		if err != nil {
			return fmt.Errorf("open audio %s: %w", local, err)
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{Name: names[i], Body: f, ContentType: audioContentType(names[i])})
	}
	_, err := e.storage.Put(ctx, uploads)
	return err
}

// PublishQuestions renders and uploads the question document for every row lacking one.
//
// Question URLs are derived from the audio name and persisted with the write-ahead marker.
func (e *ProjectEngine) PublishQuestions(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	return e.runPipeline(ctx, pipeline{
		name:    "publish questions",
		phase:   Publish,
		asset:   models.AssetHTML,
		from:    models.MarkerNotDone,
		to:      models.MarkerDone,
		prepare: e.assignQuestionURLs,
		execute: e.putQuestions,
	}, progress)
}

func (e *ProjectEngine) assignQuestionURLs(rows []*models.Row) error {
	for _, row := range rows {
		if row.QuestionURL != "" {
			continue
		}
		if row.Marker(models.AssetAudio) != models.MarkerDone {
			return fmt.Errorf("%w: audio for %s is not uploaded", shared.ErrInvalidArgument, row.AudioURL)
		}
		audio, err := e.storage.BasenameForURL(row.AudioURL)
		if err != nil {
			return err
		}
		row.QuestionURL = e.storage.URLForName(questionName(audio))
	}
	return nil
}

func (e *ProjectEngine) putQuestions(ctx context.Context, rows []*models.Row, names []string) error {
	uploads := make([]services.Upload, 0, len(rows))
	for i, row := range rows {
		page := formatter.QuestionForRow(row, e.settings.Policy.Title, e.settings.Instructions)
		page.Hidden = e.stash(row)
		data, err := formatter.RenderQuestion(page)
		if err != nil {
			return err
		}
		uploads = append(uploads, services.Upload{Name: names[i], Body: bytes.NewReader(data), ContentType: "text/html; charset=utf-8"})
	}
	_, err := e.storage.Put(ctx, uploads)
	return err
}

// DeleteAudio removes uploaded audio chunks from remote storage.
func (e *ProjectEngine) DeleteAudio(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	return e.runPipeline(ctx, e.deletion("delete audio", models.AssetAudio), progress)
}

// DeleteQuestions removes published question documents from remote storage.
func (e *ProjectEngine) DeleteQuestions(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error) {
	return e.runPipeline(ctx, e.deletion("delete questions", models.AssetHTML), progress)
}

func (e *ProjectEngine) deletion(name string, asset models.Asset) pipeline {
	return pipeline{
		name:  name,
		phase: Delete,
		asset: asset,
		from:  models.MarkerDone,
		to:    models.MarkerNotDone,
		execute: func(ctx context.Context, _ []*models.Row, names []string) error {
			return e.storage.Remove(ctx, names)
		},
	}
}

func questionName(audio string) string {
	return strings.TrimSuffix(audio, path.Ext(audio)) + ".html"
}

func audioContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}
