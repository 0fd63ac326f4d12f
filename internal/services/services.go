// Remote collaborator interfaces and the wire types they exchange
package services

import (
	"context"
	"io"
	"time"
)

// UnitStatus is the marketplace-side status of a work unit.
type UnitStatus string

const (
	UnitAssignable   UnitStatus = "Assignable"
	UnitUnassignable UnitStatus = "Unassignable"
	UnitReviewable   UnitStatus = "Reviewable"
	UnitReviewing    UnitStatus = "Reviewing"
	UnitDisposed     UnitStatus = "Disposed"
)

// Reviewable reports whether submitted work on the unit is waiting for (or under) review.
func (s UnitStatus) Reviewable() bool {
	return s == UnitReviewable || s == UnitReviewing
}

// AssignmentStatus is the review state of a worker's submission.
type AssignmentStatus string

const (
	AssignmentNone      AssignmentStatus = ""
	AssignmentSubmitted AssignmentStatus = "Submitted"
	AssignmentApproved  AssignmentStatus = "Approved"
	AssignmentRejected  AssignmentStatus = "Rejected"
)

// Marketplace is the crowdsourcing marketplace the engine posts work units to.
type Marketplace interface {
	// CreateUnit posts a new work unit for question under policy.
	CreateUnit(ctx context.Context, question Question, policy Policy) (*UnitDetail, error)

	// GetUnit fetches the full record of one unit.
	// Returns an error wrapping shared.ErrUnitNotFound if the marketplace no longer knows the id.
	GetUnit(ctx context.Context, id string) (*UnitDetail, error)

	// ListAssignments returns the submissions for a unit, possibly empty.
	ListAssignments(ctx context.Context, unitID string) ([]AssignmentDetail, error)

	// SearchUnits returns one page of units owned by the account. An empty pageToken starts from the beginning.
	SearchUnits(ctx context.Context, pageToken string) (*UnitPage, error)

	// DisableUnit withdraws a unit that has no work waiting for review.
	DisableUnit(ctx context.Context, id string) error

	// DisposeUnit deletes a reviewable unit whose submissions have all been reviewed.
	DisposeUnit(ctx context.Context, id string) error

	// ApproveAssignment pays the worker for a submission.
	ApproveAssignment(ctx context.Context, assignmentID, feedback string) error

	// RejectAssignment refuses a submission.
	RejectAssignment(ctx context.Context, assignmentID, feedback string) error
}

// Question is the content of a work unit: a link to an externally hosted question document
// plus an annotation used to find the originating row again.
type Question struct {
	URL        string `json:"url"`
	Annotation string `json:"annotation"`
}

// Policy holds the terms a unit is posted under.
type Policy struct {
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Keywords       []string      `json:"keywords"`
	RewardCents    int           `json:"reward_cents"`
	Lifetime       time.Duration `json:"-"`
	Deadline       time.Duration `json:"-"`
	Approval       time.Duration `json:"-"`
	MaxAssignments int           `json:"max_assignments"`
}

// UnitSummary is the subset of a unit returned by search.
type UnitSummary struct {
	ID                 string     `json:"id"`
	Status             UnitStatus `json:"status"`
	ExpiresAt          time.Time  `json:"expires_at"`
	AssignmentDuration int64      `json:"assignment_duration_seconds"`
	Annotation         string     `json:"annotation"`
	Completed          int        `json:"completed"`
}

// UnitDetail is the full record of a unit.
type UnitDetail struct {
	UnitSummary
	QuestionURL string    `json:"question_url"`
	Pending     int       `json:"pending"`
	Available   int       `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
}

// UnitPage is one page of search results.
type UnitPage struct {
	Units         []UnitSummary `json:"units"`
	NextPageToken string        `json:"next_page_token"`
}

// AssignmentDetail is one worker's submission.
type AssignmentDetail struct {
	ID          string            `json:"id"`
	UnitID      string            `json:"unit_id"`
	WorkerID    string            `json:"worker_id"`
	Status      AssignmentStatus  `json:"status"`
	Answers     map[string]string `json:"answers"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Upload is one file to put into remote storage under Name.
type Upload struct {
	Name        string
	Body        io.Reader
	ContentType string
}

// Storage is a remote file store whose files are publicly reachable under a base URL.
type Storage interface {
	// Put stores every upload and returns their public URLs, in order.
	// Stops at the first failure.
	Put(ctx context.Context, uploads []Upload) ([]string, error)

	// Remove deletes the named files. Missing files are not an error.
	Remove(ctx context.Context, names []string) error

	Host() string
	BasePath() string

	// URLForName returns the public URL a file stored under name is reachable at.
	URLForName(name string) string

	// BasenameForURL is the inverse of URLForName.
	// Returns an error wrapping shared.ErrConfigMismatch if the URL lives elsewhere.
	BasenameForURL(rawURL string) (string, error)
}

// Prober checks whether a public URL currently resolves to a file.
type Prober interface {
	Exists(ctx context.Context, rawURL string) (bool, error)
}

// QuestionFetcher downloads a question document and returns its hidden form fields.
type QuestionFetcher interface {
	QuestionFields(ctx context.Context, rawURL string) (map[string]string, error)
}
