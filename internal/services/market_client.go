// HTTP client for the marketplace JSON API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/ryantate/typingpool-sub000/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// MarketClient implements [Marketplace] over the marketplace's REST API.
//
// Every request waits on a shared [rate.Limiter] first; the marketplace
// throttles aggressively and the engine never issues calls in parallel.
// Requests are authenticated with a bearer token via [oauth2.StaticTokenSource].
type MarketClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Marketplace = (*MarketClient)(nil)

// NewMarketClient creates a marketplace client.
//
// A non-positive rps disables rate limiting. A nil client defaults to [http.DefaultClient].
func NewMarketClient(baseURL, apiKey string, rps float64, client *http.Client) *MarketClient {
	if client == nil {
		client = http.DefaultClient
	}
	if apiKey != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	}

	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}

	return &MarketClient{
		baseURL:    baseURL,
		httpClient: client,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type apiError struct {
	Error string `json:"error"`
}

func (m *MarketClient) doRequest(ctx context.Context, method, endpoint string, body, result any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", shared.ErrAPIRequest, err)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", shared.ErrAPIRequest, method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrUnitNotFound, endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp apiError
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

type createUnitRequest struct {
	Question                  Question `json:"question"`
	Policy                    Policy   `json:"policy"`
	LifetimeSeconds           int64    `json:"lifetime_seconds"`
	AssignmentDurationSeconds int64    `json:"assignment_duration_seconds"`
	AutoApprovalSeconds       int64    `json:"auto_approval_delay_seconds"`
}

// CreateUnit posts a new unit. Calls POST /units.
func (m *MarketClient) CreateUnit(ctx context.Context, question Question, policy Policy) (*UnitDetail, error) {
	body := createUnitRequest{
		Question:                  question,
		Policy:                    policy,
		LifetimeSeconds:           int64(policy.Lifetime.Seconds()),
		AssignmentDurationSeconds: int64(policy.Deadline.Seconds()),
		AutoApprovalSeconds:       int64(policy.Approval.Seconds()),
	}

	var unit UnitDetail
	if err := m.doRequest(ctx, http.MethodPost, "/units", body, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// GetUnit calls GET /units/{id}.
func (m *MarketClient) GetUnit(ctx context.Context, id string) (*UnitDetail, error) {
	var unit UnitDetail
	if err := m.doRequest(ctx, http.MethodGet, "/units/"+url.PathEscape(id), nil, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

// ListAssignments calls GET /units/{id}/assignments.
func (m *MarketClient) ListAssignments(ctx context.Context, unitID string) ([]AssignmentDetail, error) {
	var resp struct {
		Assignments []AssignmentDetail `json:"assignments"`
	}
	if err := m.doRequest(ctx, http.MethodGet, "/units/"+url.PathEscape(unitID)+"/assignments", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Assignments, nil
}

// SearchUnits calls GET /units?page_token=...
func (m *MarketClient) SearchUnits(ctx context.Context, pageToken string) (*UnitPage, error) {
	endpoint := "/units"
	if pageToken != "" {
		endpoint += "?" + url.Values{"page_token": {pageToken}}.Encode()
	}

	var page UnitPage
	if err := m.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// DisableUnit calls POST /units/{id}/disable.
func (m *MarketClient) DisableUnit(ctx context.Context, id string) error {
	return m.doRequest(ctx, http.MethodPost, "/units/"+url.PathEscape(id)+"/disable", nil, nil)
}

// DisposeUnit calls DELETE /units/{id}.
func (m *MarketClient) DisposeUnit(ctx context.Context, id string) error {
	return m.doRequest(ctx, http.MethodDelete, "/units/"+url.PathEscape(id), nil, nil)
}

type reviewRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

// ApproveAssignment calls POST /assignments/{id}/approve.
func (m *MarketClient) ApproveAssignment(ctx context.Context, assignmentID, feedback string) error {
	return m.doRequest(ctx, http.MethodPost, "/assignments/"+url.PathEscape(assignmentID)+"/approve", reviewRequest{feedback}, nil)
}

// RejectAssignment calls POST /assignments/{id}/reject.
func (m *MarketClient) RejectAssignment(ctx context.Context, assignmentID, feedback string) error {
	return m.doRequest(ctx, http.MethodPost, "/assignments/"+url.PathEscape(assignmentID)+"/reject", reviewRequest{feedback}, nil)
}
