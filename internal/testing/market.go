package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// FakeMarket is an in-memory [services.Marketplace].
//
// It counts calls per method so tests can assert on network cost, and can
// serve its state over HTTP (see [FakeMarket.Handler]) for end-to-end tests
// of [services.MarketClient].
type FakeMarket struct {
	mu          sync.Mutex
	units       map[string]*services.UnitDetail
	assignments map[string][]services.AssignmentDetail
	order       []string
	calls       map[string]int
	removed     map[string]string
	nextID      int

	// FailCreateOn makes the nth CreateUnit call (1-based) fail. Zero never fails.
	FailCreateOn int
	// PageSize bounds SearchUnits pages. Zero means 2.
	PageSize int
	Now      func() time.Time
}

var _ services.Marketplace = (*FakeMarket)(nil)

func NewFakeMarket() *FakeMarket {
	return &FakeMarket{
		units:       map[string]*services.UnitDetail{},
		assignments: map[string][]services.AssignmentDetail{},
		calls:       map[string]int{},
		removed:     map[string]string{},
		Now:         time.Now,
	}
}

// Calls returns how many times method has been invoked.
func (f *FakeMarket) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Removed returns "disabled", "disposed" or "" for a unit id.
func (f *FakeMarket) Removed(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed[id]
}

// Live returns the ids of units that have not been disabled or disposed.
func (f *FakeMarket) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range f.order {
		if f.removed[id] == "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// AddUnit seeds a unit as if it had been created elsewhere.
func (f *FakeMarket) AddUnit(unit services.UnitDetail) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if unit.Status == "" {
		unit.Status = services.UnitAssignable
	}
	f.units[unit.ID] = &unit
	f.order = append(f.order, unit.ID)
}

// Submit records a worker's answers and makes the unit reviewable.
func (f *FakeMarket) Submit(unitID, workerID string, answers map[string]string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	unit := f.units[unitID]
	unit.Status = services.UnitReviewable
	unit.Completed++
	if unit.Available > 0 {
		unit.Available--
	}

	id := fmt.Sprintf("%s-A%d", unitID, len(f.assignments[unitID])+1)
	f.assignments[unitID] = append(f.assignments[unitID], services.AssignmentDetail{
		ID:          id,
		UnitID:      unitID,
		WorkerID:    workerID,
		Status:      services.AssignmentSubmitted,
		Answers:     answers,
		SubmittedAt: f.Now(),
	})
	return id
}

// SetAssignmentStatus moves every assignment of a unit to status without going through review calls.
func (f *FakeMarket) SetAssignmentStatus(unitID string, status services.AssignmentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.assignments[unitID] {
		f.assignments[unitID][i].Status = status
	}
}

func (f *FakeMarket) count(method string) {
	f.calls[method]++
}

func (f *FakeMarket) CreateUnit(_ context.Context, question services.Question, policy services.Policy) (*services.UnitDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("CreateUnit")
	if f.FailCreateOn > 0 && f.calls["CreateUnit"] == f.FailCreateOn {
		return nil, fmt.Errorf("%w: simulated create failure", shared.ErrAPIRequest)
	}

	f.nextID++
	now := f.Now()
	unit := &services.UnitDetail{
		UnitSummary: services.UnitSummary{
			ID:                 fmt.Sprintf("UNIT%04d", f.nextID),
			Status:             services.UnitAssignable,
			ExpiresAt:          now.Add(policy.Lifetime).UTC().Truncate(time.Second),
			AssignmentDuration: int64(policy.Deadline.Seconds()),
			Annotation:         question.Annotation,
		},
		QuestionURL: question.URL,
		Available:   max(policy.MaxAssignments, 1),
		CreatedAt:   now,
	}
	f.units[unit.ID] = unit
	f.order = append(f.order, unit.ID)

	out := *unit
	return &out, nil
}

func (f *FakeMarket) GetUnit(_ context.Context, id string) (*services.UnitDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("GetUnit")
	unit, ok := f.units[id]
	if !ok || f.removed[id] != "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnitNotFound, id)
	}
	out := *unit
	return &out, nil
}

func (f *FakeMarket) ListAssignments(_ context.Context, unitID string) ([]services.AssignmentDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("ListAssignments")
	if _, ok := f.units[unitID]; !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnitNotFound, unitID)
	}
	return append([]services.AssignmentDetail{}, f.assignments[unitID]...), nil
}

func (f *FakeMarket) SearchUnits(_ context.Context, pageToken string) (*services.UnitPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("SearchUnits")

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: bad page token %q", shared.ErrAPIRequest, pageToken)
		}
		start = n
	}
	size := f.PageSize
	if size <= 0 {
		size = 2
	}

	var live []string
	for _, id := range f.order {
		if f.removed[id] == "" {
			live = append(live, id)
		}
	}

	page := &services.UnitPage{Units: []services.UnitSummary{}}
	end := min(start+size, len(live))
	for _, id := range live[min(start, end):end] {
		page.Units = append(page.Units, f.units[id].UnitSummary)
	}
	if end < len(live) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (f *FakeMarket) DisableUnit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DisableUnit")
	if _, ok := f.units[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnitNotFound, id)
	}
	f.units[id].Status = services.UnitDisposed
	f.removed[id] = "disabled"
	return nil
}

func (f *FakeMarket) DisposeUnit(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count("DisposeUnit")
	if _, ok := f.units[id]; !ok {
		return fmt.Errorf("%w: %s", shared.ErrUnitNotFound, id)
	}
	for _, a := range f.assignments[id] {
		if a.Status == services.AssignmentSubmitted {
			return fmt.Errorf("%w: unit %s has unreviewed assignments", shared.ErrAPIRequest, id)
		}
	}
	f.units[id].Status = services.UnitDisposed
	f.removed[id] = "disposed"
	return nil
}

func (f *FakeMarket) review(method, assignmentID string, status services.AssignmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count(method)
	for unitID, list := range f.assignments {
		for i := range list {
			if list[i].ID == assignmentID {
				if list[i].Status != services.AssignmentSubmitted {
					return fmt.Errorf("%w: assignment %s already %s", shared.ErrAPIRequest, assignmentID, list[i].Status)
				}
				f.assignments[unitID][i].Status = status
				return nil
			}
		}
	}
	return fmt.Errorf("%w: assignment %s", shared.ErrUnitNotFound, assignmentID)
}

func (f *FakeMarket) ApproveAssignment(_ context.Context, assignmentID, _ string) error {
	return f.review("ApproveAssignment", assignmentID, services.AssignmentApproved)
}

func (f *FakeMarket) RejectAssignment(_ context.Context, assignmentID, _ string) error {
	return f.review("RejectAssignment", assignmentID, services.AssignmentRejected)
}

type createUnitBody struct {
	Question                  services.Question `json:"question"`
	Policy                    services.Policy   `json:"policy"`
	LifetimeSeconds           int64             `json:"lifetime_seconds"`
	AssignmentDurationSeconds int64             `json:"assignment_duration_seconds"`
}

// Handler serves the fake over the same REST routes [services.MarketClient] calls.
func (f *FakeMarket) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/units", func(w http.ResponseWriter, r *http.Request) {
		var body createUnitBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		body.Policy.Lifetime = time.Duration(body.LifetimeSeconds) * time.Second
		body.Policy.Deadline = time.Duration(body.AssignmentDurationSeconds) * time.Second
		unit, err := f.CreateUnit(r.Context(), body.Question, body.Policy)
		respond(w, unit, err)
	}).Methods(http.MethodPost)

	r.HandleFunc("/units", func(w http.ResponseWriter, r *http.Request) {
		page, err := f.SearchUnits(r.Context(), r.URL.Query().Get("page_token"))
		respond(w, page, err)
	}).Methods(http.MethodGet)

	r.HandleFunc("/units/{id}", func(w http.ResponseWriter, r *http.Request) {
		unit, err := f.GetUnit(r.Context(), mux.Vars(r)["id"])
		respond(w, unit, err)
	}).Methods(http.MethodGet)

	r.HandleFunc("/units/{id}", func(w http.ResponseWriter, r *http.Request) {
		respond(w, nil, f.DisposeUnit(r.Context(), mux.Vars(r)["id"]))
	}).Methods(http.MethodDelete)

	r.HandleFunc("/units/{id}/assignments", func(w http.ResponseWriter, r *http.Request) {
		list, err := f.ListAssignments(r.Context(), mux.Vars(r)["id"])
		respond(w, map[string]any{"assignments": list}, err)
	}).Methods(http.MethodGet)

	r.HandleFunc("/units/{id}/disable", func(w http.ResponseWriter, r *http.Request) {
		respond(w, nil, f.DisableUnit(r.Context(), mux.Vars(r)["id"]))
	}).Methods(http.MethodPost)

	r.HandleFunc("/assignments/{id}/{action:approve|reject}", func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var err error
		if vars["action"] == "approve" {
			err = f.ApproveAssignment(r.Context(), vars["id"], "")
		} else {
			err = f.RejectAssignment(r.Context(), vars["id"], "")
		}
		respond(w, nil, err)
	}).Methods(http.MethodPost)

	return r
}

func respond(w http.ResponseWriter, body any, err error) {
	switch {
	case errors.Is(err, shared.ErrUnitNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	case body == nil:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

