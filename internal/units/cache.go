package units

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ryantate/typingpool-sub000/internal/shared"
)

type cacheEntry struct {
	Full       *FullSnapshot       `json:"full"`
	Assignment *AssignmentSnapshot `json:"assignment,omitempty"`
	Ours       bool                `json:"ours"`
}

// cacheKey includes the lookup fields since ownership depends on them.
func (e *Env) cacheKey(id string) string {
	return id + ":" + e.urlField + ":" + e.projectField
}

func (e *Env) fromCache(ctx context.Context, id string) (*Unit, error) {
	if e.cache == nil {
		return nil, nil
	}

	data, err := e.cache.Get(ctx, e.cacheKey(id))
	if errors.Is(err, shared.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		e.logger.Warn("dropping unreadable cache entry", "unit", id, "error", err)
		return nil, e.cache.Delete(ctx, e.cacheKey(id))
	}

	e.logger.Debug("cache hit", "unit", id)
	ours := entry.Ours
	return &Unit{env: e, id: id, full: entry.Full, assignment: entry.Assignment, ours: &ours}, nil
}

// Cacheable reports whether the unit will never need fresh data:
// it is expired past its assignment deadline, or not ours, or its submission has been reviewed.
func (u *Unit) Cacheable(ctx context.Context) (bool, error) {
	if u.ExpiredOverdue() {
		return true, nil
	}

	ours, err := u.Ours(ctx)
	if err != nil {
		return false, err
	}
	if !ours || u.ExpiredOverdue() {
		return true, nil
	}

	if approved, err := u.IsApproved(ctx); err != nil || approved {
		return approved, err
	}
	return u.IsRejected(ctx)
}

// ToCache persists the unit if it is cacheable. Call it after every batch retrieval.
func (u *Unit) ToCache(ctx context.Context) error {
	if u.env.cache == nil {
		return nil
	}

	cacheable, err := u.Cacheable(ctx)
	if err != nil || !cacheable {
		return err
	}

	if _, err := u.Full(ctx); err != nil {
		return err
	}
	ours, err := u.Ours(ctx)
	if err != nil {
		return err
	}

	data, err := json.Marshal(cacheEntry{Full: u.full, Assignment: u.assignment, Ours: ours})
	if err != nil {
		return fmt.Errorf("failed to encode unit %s: %w", u.id, err)
	}
	return u.env.cache.Put(ctx, u.env.cacheKey(u.id), u.id, data)
}
