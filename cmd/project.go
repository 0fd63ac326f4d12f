package main

import (
	"context"
	"fmt"

	"github.com/ryantate/typingpool-sub000/internal/formatter"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/tasks"
	"github.com/ryantate/typingpool-sub000/internal/ui"
	"github.com/urfave/cli/v3"
)

// Import copies the given audio files into the project.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	files := cmd.Args().Slice()
	if len(files) == 0 {
		return fmt.Errorf("%w: at least one audio file is required", shared.ErrMissingArgument)
	}
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	result, err := engine.ImportChunks(ctx, files, progress)
	wait()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("imported %d chunk(s)", len(result.AudioFiles)))
}

// Upload sends every not-yet-uploaded audio chunk to remote storage.
func (r *Runner) Upload(ctx context.Context, cmd *cli.Command) error {
	return r.runPipeline(ctx, cmd, "uploaded", func(e tasks.SyncEngine, p chan<- tasks.ProgressUpdate) (*tasks.PipelineResult, error) {
		return e.UploadAudio(ctx, p)
	})
}

// Publish renders and uploads question documents.
func (r *Runner) Publish(ctx context.Context, cmd *cli.Command) error {
	return r.runPipeline(ctx, cmd, "published", func(e tasks.SyncEngine, p chan<- tasks.ProgressUpdate) (*tasks.PipelineResult, error) {
		return e.PublishQuestions(ctx, p)
	})
}

// DeleteAudio removes uploaded audio chunks.
func (r *Runner) DeleteAudio(ctx context.Context, cmd *cli.Command) error {
	return r.runPipeline(ctx, cmd, "deleted", func(e tasks.SyncEngine, p chan<- tasks.ProgressUpdate) (*tasks.PipelineResult, error) {
		return e.DeleteAudio(ctx, p)
	})
}

// DeleteQuestions removes published question documents.
func (r *Runner) DeleteQuestions(ctx context.Context, cmd *cli.Command) error {
	return r.runPipeline(ctx, cmd, "deleted", func(e tasks.SyncEngine, p chan<- tasks.ProgressUpdate) (*tasks.PipelineResult, error) {
		return e.DeleteQuestions(ctx, p)
	})
}

func (r *Runner) runPipeline(ctx context.Context, cmd *cli.Command, verb string, fn func(tasks.SyncEngine, chan<- tasks.ProgressUpdate) (*tasks.PipelineResult, error)) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	result, err := fn(engine, progress)
	wait()
	if err != nil {
		return err
	}

	if result.Recovered > 0 {
		r.writePlain("%s\n", ui.Success("re-checked %d interrupted row(s)", result.Recovered))
	}
	return r.writePlain("%s\n", ui.Success("%s %d file(s)", verb, result.Processed))
}

// Assign creates marketplace units.
func (r *Runner) Assign(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	result, err := engine.CreateUnits(ctx, progress)
	wait()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("created %d unit(s)", len(result.UnitIDs)))
}

// Collect copies submitted transcripts into rows.
func (r *Runner) Collect(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	result, err := engine.Collect(ctx, progress)
	wait()
	if err != nil {
		return err
	}

	r.writePlain("%s\n", ui.Success("collected %d transcript(s) from %d unit(s)", result.Collected, result.Matched))
	if result.Adopted > 0 {
		r.writePlain("%s\n", ui.Success("recorded %d unit(s) missing from rows", result.Adopted))
	}
	return nil
}

// Approve pays for the submission on a unit.
func (r *Runner) Approve(ctx context.Context, cmd *cli.Command) error {
	return r.review(ctx, cmd, true)
}

// Reject refuses the submission on a unit.
func (r *Runner) Reject(ctx context.Context, cmd *cli.Command) error {
	return r.review(ctx, cmd, false)
}

func (r *Runner) review(ctx context.Context, cmd *cli.Command, approve bool) error {
	unitID := cmd.StringArg("unit-id")
	if unitID == "" {
		return fmt.Errorf("%w: unit id is required", shared.ErrMissingArgument)
	}
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	if err := engine.Review(ctx, unitID, approve, cmd.String("feedback")); err != nil {
		return err
	}
	verb := "rejected"
	if approve {
		verb = "approved"
	}
	return r.writePlain("%s\n", ui.Success("%s %s", verb, unitID))
}

// Reap removes expired units with no submission.
func (r *Runner) Reap(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	result, err := engine.ReapExpired(ctx, progress)
	wait()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("removed %d unit(s), freed %d row(s)", result.Removed, result.Cleared))
}

// Finish removes every unit and remote file.
func (r *Runner) Finish(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	progress, wait := r.progress()
	err = engine.Finish(ctx, progress)
	wait()
	if err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("project finished"))
}

// Status prints per-marker counts.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	report, err := engine.Status()
	if err != nil {
		return err
	}
	if cmd.Bool("json") {
		return r.writeJSON(report, true)
	}

	project := ""
	if r.config != nil {
		project = r.config.Project.ID
	}
	return r.writePlain("%s", ui.RenderStatus(project, report))
}

// Transcript writes the assembled transcript to a file or stdout.
func (r *Runner) Transcript(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.load(ctx, cmd)
	if err != nil {
		return err
	}

	format := cmd.String("format")
	data, err := engine.ExportTranscript(format)
	if err != nil {
		return err
	}

	output := cmd.String("output")
	if output == "-" {
		return r.writePlain("%s", data)
	}
	if output == "" {
		if r.config == nil {
			return fmt.Errorf("%w: --output is required without a config", shared.ErrMissingArgument)
		}
		output = r.config.TranscriptPath(format)
	}
	if err := formatter.WriteTranscript(output, data); err != nil {
		return err
	}
	return r.writePlain("%s\n", ui.Success("transcript written to %s", output))
}
