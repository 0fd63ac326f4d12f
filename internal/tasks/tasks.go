package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/repositories"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
	"github.com/ryantate/typingpool-sub000/internal/units"
)

// AnswerField is the form field workers type the transcript into.
const AnswerField = "transcription"

// PipelineResult summarizes one run of a write-ahead pipeline.
type PipelineResult struct {
	Recovered int // uncertain markers resolved by probing
	Processed int // rows moved to the pipeline's target state
}

// CreateResult lists the units created by [SyncEngine.CreateUnits].
type CreateResult struct {
	UnitIDs []string
}

// CollectResult summarizes a [SyncEngine.Collect] run.
type CollectResult struct {
	Seen      int // units returned by search
	Matched   int // units belonging to this project's rows
	Collected int // transcripts copied into rows
	Adopted   int // units found live but missing from their row
}

// ReapResult summarizes a [SyncEngine.ReapExpired] run.
type ReapResult struct {
	Removed int
	Cleared int
}

// ImportResult lists the rows created by [SyncEngine.ImportChunks].
type ImportResult struct {
	AudioFiles []string
}

// StatusReport counts rows by state.
type StatusReport struct {
	Rows        int
	Audio       map[string]int // marker → rows
	HTML        map[string]int
	Assigned    int
	Transcribed int
}

// SyncEngine defines the operations that keep a project's rows and the remote marketplace and storage in step.
type SyncEngine interface {
	// ImportChunks copies local audio chunks into the project and creates a row for each.
	ImportChunks(ctx context.Context, files []string, progress chan<- ProgressUpdate) (*ImportResult, error)

	// UploadAudio puts every not-yet-uploaded audio chunk into remote storage.
	UploadAudio(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error)

	// PublishQuestions renders and uploads the question document for every row lacking one.
	PublishQuestions(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error)

	// DeleteAudio removes uploaded audio chunks from remote storage.
	DeleteAudio(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error)

	// DeleteQuestions removes published question documents from remote storage.
	DeleteQuestions(ctx context.Context, progress chan<- ProgressUpdate) (*PipelineResult, error)

	// CreateUnits posts a work unit for every published, unassigned row, disabling the whole cohort on failure.
	CreateUnits(ctx context.Context, progress chan<- ProgressUpdate) (*CreateResult, error)

	// Collect copies submitted transcripts from the marketplace into rows.
	Collect(ctx context.Context, progress chan<- ProgressUpdate) (*CollectResult, error)

	// Review approves or rejects the submission on one unit.
	Review(ctx context.Context, unitID string, approve bool, feedback string) error

	// ReapExpired removes expired, never-submitted units so their rows can be assigned again.
	ReapExpired(ctx context.Context, progress chan<- ProgressUpdate) (*ReapResult, error)

	// Finish removes every unit and all remote files of the project.
	Finish(ctx context.Context, progress chan<- ProgressUpdate) error

	// Status counts rows by marker and assignment state.
	Status() (*StatusReport, error)

	// ExportTranscript assembles the collected transcripts in row order.
	ExportTranscript(format string) ([]byte, error)
}

// Settings are the project-specific values the engine needs from configuration.
type Settings struct {
	ProjectID    string
	AudioDir     string
	Policy       services.Policy
	Instructions string
}

// ProjectEngine implements [SyncEngine] for one project.
//
// All work is sequential; a single ProjectEngine must be the only writer of its row store.
type ProjectEngine struct {
	rows     *repositories.RowStore
	storage  services.Storage
	prober   services.Prober
	units    *units.Env
	settings Settings
	logger   *log.Logger
	now      func() time.Time
}

var _ SyncEngine = (*ProjectEngine)(nil)

// NewProjectEngine creates a new ProjectEngine with the provided collaborators.
func NewProjectEngine(rows *repositories.RowStore, storage services.Storage, prober services.Prober, env *units.Env, settings Settings, logger *log.Logger) *ProjectEngine {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &ProjectEngine{
		rows:     rows,
		storage:  storage,
		prober:   prober,
		units:    env,
		settings: settings,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the time source.
func (e *ProjectEngine) WithClock(now func() time.Time) *ProjectEngine {
	e.now = now
	return e
}

// PolicyFromConfig converts the [assign] section into marketplace terms.
func PolicyFromConfig(cfg shared.AssignConfig) services.Policy {
	return services.Policy{
		Title:          cfg.Title,
		Description:    cfg.Description,
		Keywords:       append([]string{}, cfg.Keywords...),
		RewardCents:    cfg.RewardCents,
		Lifetime:       cfg.Lifetime.Duration,
		Deadline:       cfg.Deadline.Duration,
		Approval:       cfg.Approval.Duration,
		MaxAssignments: max(cfg.MaxAssignments, 1),
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *ProjectEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func (e *ProjectEngine) market() services.Marketplace {
	return e.units.Market()
}

// Status counts rows by marker and assignment state. No network calls.
func (e *ProjectEngine) Status() (*StatusReport, error) {
	rows, err := e.rows.Read()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{Rows: len(rows), Audio: map[string]int{}, HTML: map[string]int{}}
	for _, row := range rows {
		report.Audio[string(row.Marker(models.AssetAudio))]++
		report.HTML[string(row.Marker(models.AssetHTML))]++
		if row.UnitID != "" {
			report.Assigned++
		}
		if strings.TrimSpace(row.Transcript) != "" {
			report.Transcribed++
		}
	}
	return report, nil
}

func rowsErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
