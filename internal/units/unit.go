package units

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ryantate/typingpool-sub000/internal/models"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// Cache is the persistent store cacheable units are written to.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key, unitID string, snapshot []byte) error
	Delete(ctx context.Context, key string) error
}

// Env carries the collaborators every [Unit] needs. Build one at setup and share it.
type Env struct {
	market       services.Marketplace
	cache        Cache
	questions    services.QuestionFetcher
	urlField     string
	projectField string
	now          func() time.Time
	logger       *log.Logger
}

// NewEnv looks up ownership through the audio_url and project_id fields.
func NewEnv(market services.Marketplace, cache Cache, questions services.QuestionFetcher, logger *log.Logger) *Env {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &Env{
		market:       market,
		cache:        cache,
		questions:    questions,
		urlField:     models.ColAudioURL,
		projectField: models.ColProjectID,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock replaces the time source.
func (e *Env) WithClock(now func() time.Time) *Env {
	e.now = now
	return e
}

// WithFields changes the stashed parameters used for ownership and project lookup.
func (e *Env) WithFields(urlField, projectField string) *Env {
	e.urlField = urlField
	e.projectField = projectField
	return e
}

// Market returns the marketplace units talk to.
func (e *Env) Market() services.Marketplace {
	return e.market
}

// URLField is the stashed parameter that marks a unit as ours and names its row.
func (e *Env) URLField() string { return e.urlField }

// ProjectField is the stashed parameter holding the project id.
func (e *Env) ProjectField() string { return e.projectField }

// Load returns the unit with id, from the cache when possible. No network call is made.
func (e *Env) Load(ctx context.Context, id string) (*Unit, error) {
	if u, err := e.fromCache(ctx, id); err != nil || u != nil {
		return u, err
	}
	return &Unit{env: e, id: id}, nil
}

// FromSummary returns the cached unit for a search result, or one preloaded with the result.
func (e *Env) FromSummary(ctx context.Context, s services.UnitSummary) (*Unit, error) {
	if u, err := e.fromCache(ctx, s.ID); err != nil || u != nil {
		return u, err
	}
	full, err := FullFromSearch(s)
	if err != nil {
		return nil, err
	}
	return &Unit{env: e, id: s.ID, full: full}, nil
}

// FromDetail wraps a freshly created or fetched unit.
func (e *Env) FromDetail(d services.UnitDetail) (*Unit, error) {
	full, err := FullFromDetail(d)
	if err != nil {
		return nil, err
	}
	return &Unit{env: e, id: d.ID, full: full}, nil
}

// Search walks every page of the account's units, calling fn for each and caching it afterwards.
func (e *Env) Search(ctx context.Context, fn func(*Unit) error) error {
	token := ""
	for {
		page, err := e.market.SearchUnits(ctx, token)
		if err != nil {
			return err
		}
		for _, summary := range page.Units {
			u, err := e.FromSummary(ctx, summary)
			if err != nil {
				return err
			}
			if err := fn(u); err != nil {
				return err
			}
			if err := u.ToCache(ctx); err != nil {
				return err
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		token = page.NextPageToken
	}
}

// State is a unit's position in its lifecycle.
type State string

const (
	StateUnknown    State = "unknown"
	StateAssignable State = "assignable"
	StateSubmitted  State = "submitted"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
)

// Unit is one marketplace work unit. Snapshots are fetched lazily, at most once each.
type Unit struct {
	env        *Env
	id         string
	full       *FullSnapshot
	assignment *AssignmentSnapshot
	ours       *bool
	question   map[string]string
}

func (u *Unit) ID() string {
	return u.id
}

// Full returns the unit-level snapshot, fetching it on first use.
func (u *Unit) Full(ctx context.Context) (*FullSnapshot, error) {
	if u.full != nil {
		return u.full, nil
	}
	if err := u.fetchDetail(ctx); err != nil {
		return nil, err
	}
	return u.full, nil
}

func (u *Unit) fetchDetail(ctx context.Context) error {
	u.env.logger.Debug("fetching unit", "unit", u.id)
	detail, err := u.env.market.GetUnit(ctx, u.id)
	if err != nil {
		return fmt.Errorf("unit %s: %w", u.id, err)
	}
	full, err := FullFromDetail(*detail)
	if err != nil {
		return err
	}
	u.full = full
	return nil
}

// Assignment returns the submission snapshot, fetching it on first use.
func (u *Unit) Assignment(ctx context.Context) (*AssignmentSnapshot, error) {
	if u.assignment != nil {
		return u.assignment, nil
	}

	u.env.logger.Debug("fetching assignments", "unit", u.id)
	list, err := u.env.market.ListAssignments(ctx, u.id)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", u.id, err)
	}
	if len(list) == 0 {
		u.assignment = EmptyAssignment()
	} else {
		u.assignment = AssignmentFromDetail(list[len(list)-1])
	}
	return u.assignment, nil
}

// Ours reports whether this system created the unit: the URL field is findable as a stashed parameter.
// The answer is memoized.
func (u *Unit) Ours(ctx context.Context) (bool, error) {
	if u.ours != nil {
		return *u.ours, nil
	}
	v, err := u.StashedParam(ctx, u.env.urlField)
	if err != nil {
		return false, err
	}
	ours := v != ""
	u.ours = &ours
	return ours, nil
}

// StashedParam finds a field the unit was created with, cheapest source first:
//  1. answers of an already loaded assignment
//  2. the annotation
//  3. answers of a freshly fetched assignment, only when something was submitted
//  4. hidden inputs of the published question document
//
// Returns "" when no source has it.
func (u *Unit) StashedParam(ctx context.Context, field string) (string, error) {
	if u.assignment != nil {
		if v := u.assignment.Answers[field]; v != "" {
			return v, nil
		}
	}

	full, err := u.Full(ctx)
	if err != nil {
		return "", err
	}
	if v := full.Annotation[field]; v != "" {
		return v, nil
	}

	if u.assignment == nil && full.Completed > 0 {
		a, err := u.Assignment(ctx)
		if err != nil {
			return "", err
		}
		if v := a.Answers[field]; v != "" {
			return v, nil
		}
	}

	fields, err := u.questionFields(ctx)
	if err != nil {
		return "", err
	}
	return fields[field], nil
}

func (u *Unit) questionFields(ctx context.Context) (map[string]string, error) {
	if u.question != nil {
		return u.question, nil
	}
	if u.full.QuestionURL == "" && u.full.Origin == OriginSearch {
		if err := u.fetchDetail(ctx); err != nil {
			return nil, err
		}
	}
	if u.full.QuestionURL == "" || u.env.questions == nil {
		u.question = map[string]string{}
		return u.question, nil
	}

	u.env.logger.Debug("fetching question", "unit", u.id, "url", u.full.QuestionURL)
	fields, err := u.env.questions.QuestionFields(ctx, u.full.QuestionURL)
	if errors.Is(err, shared.ErrDocumentNotFound) {
		u.env.logger.Debug("question document gone", "unit", u.id, "url", u.full.QuestionURL)
		u.question = map[string]string{}
		return u.question, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unit %s question: %w", u.id, err)
	}
	u.question = fields
	return fields, nil
}

// assignmentIs answers from the full snapshot alone when it proves the unit has no reviewable submission.
func (u *Unit) assignmentIs(ctx context.Context, status services.AssignmentStatus) (bool, error) {
	if u.assignment == nil && u.full != nil {
		if u.full.Completed == 0 || !u.full.Status.Reviewable() {
			return false, nil
		}
	}
	a, err := u.Assignment(ctx)
	if err != nil {
		return false, err
	}
	return a.Status == status, nil
}

func (u *Unit) IsApproved(ctx context.Context) (bool, error) {
	return u.assignmentIs(ctx, services.AssignmentApproved)
}

func (u *Unit) IsRejected(ctx context.Context) (bool, error) {
	return u.assignmentIs(ctx, services.AssignmentRejected)
}

// IsSubmitted reports whether a submission is waiting for review.
func (u *Unit) IsSubmitted(ctx context.Context) (bool, error) {
	return u.assignmentIs(ctx, services.AssignmentSubmitted)
}

// Expired reports whether the unit's lifetime has passed. False until the full snapshot is loaded.
func (u *Unit) Expired() bool {
	return u.full != nil && u.env.now().After(u.full.ExpiresAt)
}

// ExpiredOverdue reports whether even a worker who accepted at the last moment has run out of time.
func (u *Unit) ExpiredOverdue() bool {
	return u.full != nil && u.env.now().After(u.full.ExpiresAt.Add(u.full.AssignmentDuration))
}

// State derives the lifecycle state, loading snapshots as needed.
func (u *Unit) State(ctx context.Context) (State, error) {
	full, err := u.Full(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if full.Completed == 0 && u.assignment == nil {
		return StateAssignable, nil
	}

	a, err := u.Assignment(ctx)
	if err != nil {
		return StateUnknown, err
	}
	switch a.Status {
	case services.AssignmentNone:
		return StateAssignable, nil
	case services.AssignmentSubmitted:
		return StateSubmitted, nil
	case services.AssignmentApproved:
		return StateApproved, nil
	case services.AssignmentRejected:
		return StateRejected, nil
	}
	return StateUnknown, nil
}

// Remove takes the unit off the marketplace: dispose when reviewable, disable otherwise.
// A reviewable unit with a submission still awaiting review is refused with
// [shared.ErrUnreviewedContent] before any remote call.
func (u *Unit) Remove(ctx context.Context) error {
	full, err := u.Full(ctx)
	if err != nil {
		return err
	}

	if full.Status.Reviewable() {
		submitted, err := u.IsSubmitted(ctx)
		if err != nil {
			return err
		}
		if submitted {
			return fmt.Errorf("%w: unit %s", shared.ErrUnreviewedContent, u.id)
		}
		u.env.logger.Debug("disposing unit", "unit", u.id)
		err = u.env.market.DisposeUnit(ctx, u.id)
		if err != nil {
			return fmt.Errorf("dispose unit %s: %w", u.id, err)
		}
	} else {
		u.env.logger.Debug("disabling unit", "unit", u.id)
		if err := u.env.market.DisableUnit(ctx, u.id); err != nil {
			return fmt.Errorf("disable unit %s: %w", u.id, err)
		}
	}

	full.Status = services.UnitDisposed
	if u.env.cache != nil {
		if err := u.env.cache.Delete(ctx, u.env.cacheKey(u.id)); err != nil {
			return err
		}
	}
	return nil
}

// Approve pays for the pending submission.
func (u *Unit) Approve(ctx context.Context, feedback string) error {
	return u.review(ctx, services.AssignmentApproved, feedback)
}

// Reject refuses the pending submission.
func (u *Unit) Reject(ctx context.Context, feedback string) error {
	return u.review(ctx, services.AssignmentRejected, feedback)
}

func (u *Unit) review(ctx context.Context, status services.AssignmentStatus, feedback string) error {
	a, err := u.Assignment(ctx)
	if err != nil {
		return err
	}
	if a.Status != services.AssignmentSubmitted {
		return fmt.Errorf("%w: unit %s has no submission awaiting review", shared.ErrInvalidArgument, u.id)
	}

	if status == services.AssignmentApproved {
		err = u.env.market.ApproveAssignment(ctx, a.ID, feedback)
	} else {
		err = u.env.market.RejectAssignment(ctx, a.ID, feedback)
	}
	if err != nil {
		return fmt.Errorf("review unit %s: %w", u.id, err)
	}

	a.Status = status
	return u.ToCache(ctx)
}

// Gone reports whether err means the marketplace no longer knows the unit.
func Gone(err error) bool {
	return errors.Is(err, shared.ErrUnitNotFound)
}
