package units

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// Origin records which marketplace response a snapshot was built from.
type Origin string

const (
	OriginDetail Origin = "detail" // GetUnit / ListAssignments
	OriginSearch Origin = "search" // SearchUnits page, no question URL or pending counts
	OriginEmpty  Origin = "empty"  // known to have no submission
)

// FullSnapshot is the unit-level record: status, timing, counts and annotation.
type FullSnapshot struct {
	Origin             Origin              `json:"origin"`
	Status             services.UnitStatus `json:"status"`
	ExpiresAt          time.Time           `json:"expires_at"`
	AssignmentDuration time.Duration       `json:"assignment_duration"`
	Annotation         map[string]string   `json:"annotation"`
	Completed          int                 `json:"completed"`
	Pending            int                 `json:"pending"`
	Available          int                 `json:"available"`
	QuestionURL        string              `json:"question_url,omitempty"`
}

// AssignmentSnapshot is one worker's submission, or the known absence of one.
type AssignmentSnapshot struct {
	Origin      Origin                    `json:"origin"`
	ID          string                    `json:"id,omitempty"`
	Status      services.AssignmentStatus `json:"status,omitempty"`
	WorkerID    string                    `json:"worker_id,omitempty"`
	Answers     map[string]string         `json:"answers,omitempty"`
	SubmittedAt time.Time                 `json:"submitted_at,omitzero"`
}

// FullFromDetail builds a snapshot from a GetUnit or CreateUnit response.
func FullFromDetail(d services.UnitDetail) (*FullSnapshot, error) {
	full, err := fromSummary(d.UnitSummary, OriginDetail)
	if err != nil {
		return nil, err
	}
	full.Pending = d.Pending
	full.Available = d.Available
	full.QuestionURL = d.QuestionURL
	return full, nil
}

// FullFromSearch builds a snapshot from one search result.
func FullFromSearch(s services.UnitSummary) (*FullSnapshot, error) {
	return fromSummary(s, OriginSearch)
}

func fromSummary(s services.UnitSummary, origin Origin) (*FullSnapshot, error) {
	annotation, err := ParseAnnotation(s.Annotation)
	if err != nil {
		return nil, fmt.Errorf("unit %s: %w", s.ID, err)
	}
	return &FullSnapshot{
		Origin:             origin,
		Status:             s.Status,
		ExpiresAt:          s.ExpiresAt,
		AssignmentDuration: time.Duration(s.AssignmentDuration) * time.Second,
		Annotation:         annotation,
		Completed:          s.Completed,
	}, nil
}

// EmptyAssignment is the snapshot of a unit nobody has submitted to.
func EmptyAssignment() *AssignmentSnapshot {
	return &AssignmentSnapshot{Origin: OriginEmpty}
}

// AssignmentFromDetail builds a snapshot from a ListAssignments entry.
func AssignmentFromDetail(a services.AssignmentDetail) *AssignmentSnapshot {
	return &AssignmentSnapshot{
		Origin:      OriginDetail,
		ID:          a.ID,
		Status:      a.Status,
		WorkerID:    a.WorkerID,
		Answers:     a.Answers,
		SubmittedAt: a.SubmittedAt,
	}
}

// ParseAnnotation decodes a query-string annotation. An empty annotation is an empty map.
func ParseAnnotation(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: annotation %q: %v", shared.ErrMalformedReference, raw, err)
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out, nil
}

// EncodeAnnotation is the inverse of [ParseAnnotation].
func EncodeAnnotation(fields map[string]string) string {
	values := url.Values{}
	for k, v := range fields {
		values.Set(k, v)
	}
	return values.Encode()
}
