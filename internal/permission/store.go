// Package permission is the in-memory authority over permission records:
// grant, check, revoke, bulk-revoke, expiry sweep and stats. Conditional
// grants delegate to the conditions evaluator at check time.
package permission

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctxguard/ctxguard/internal/audit"
	"github.com/ctxguard/ctxguard/internal/conditions"
	"github.com/ctxguard/ctxguard/internal/types"
)

// Check reason strings. Three distinct diagnostic outcomes, not folded
// into one.
const (
	ReasonGranted      = "permission granted"
	ReasonNoApplicable = "no applicable permissions"
	ReasonConditions   = "conditions not satisfied"
	ReasonExpired      = "permission expired"
)

// actions that always demand an audit trail regardless of conditions
var sensitiveActions = map[types.Action]bool{
	types.ActionDelete:            true,
	types.ActionShare:             true,
	types.ActionExport:            true,
	types.ActionModifyPermissions: true,
}

type Store interface {
	Grant(ctx context.Context, userID, resourceType string, action types.Action, grantedBy string, opts types.GrantOptions) *types.Permission
	Check(ctx context.Context, req types.PermissionRequest) types.CheckResult
	Revoke(ctx context.Context, id, revokedBy string) bool
	RevokeAll(ctx context.Context, userID, resourceType, revokedBy string) int
	UserPermissions(userID string) []types.Permission
	ResourcePermissions(userID, resourceType string) []types.Permission
	SweepExpired(ctx context.Context) int
	Stats() (total, active, expired int)
}

// MemoryStore keeps permissions per user under a coarse RWMutex. All
// mutations are serialized; reads take the shared lock.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*types.Permission
	byUser map[string][]*types.Permission
	sink   audit.Sink
	now    func() time.Time
}

func NewMemoryStore(sink audit.Sink) *MemoryStore {
	if sink == nil {
		sink = audit.Discard{}
	}
	return &MemoryStore{
		byID:   make(map[string]*types.Permission),
		byUser: make(map[string][]*types.Permission),
		sink:   sink,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Grant records a new permission. Grants are authoritative administrative
// acts: no policy is consulted to veto them, so Grant always succeeds.
func (s *MemoryStore) Grant(ctx context.Context, userID, resourceType string, action types.Action, grantedBy string, opts types.GrantOptions) *types.Permission {
	now := s.now()
	p := &types.Permission{
		ID:           uuid.NewString(),
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   opts.ResourceID,
		Action:       action,
		Granted:      true,
		GrantedBy:    grantedBy,
		GrantedAt:    now,
		ExpiresAt:    opts.ExpiresAt,
		Conditions:   opts.Conditions,
		Metadata:     opts.Metadata,
	}

	s.mu.Lock()
	s.byID[p.ID] = p
	s.byUser[userID] = append(s.byUser[userID], p)
	s.mu.Unlock()

	s.sink.Record(audit.Entry{
		Timestamp:    now,
		Event:        audit.EventGranted,
		Kind:         "permission",
		Subject:      p.ID,
		UserID:       userID,
		ActedBy:      grantedBy,
		ResourceType: resourceType,
		Action:       string(action),
	})
	cp := *p
	return &cp
}

// Check scans the user's permissions for the requested resource and
// action. Expired records are discarded lazily (left in the store for the
// sweeper); conditional records are delegated to the evaluator. Granted
// iff at least one candidate is fully satisfied.
func (s *MemoryStore) Check(ctx context.Context, req types.PermissionRequest) types.CheckResult {
	now := s.now()

	s.mu.RLock()
	var candidates []*types.Permission
	for _, p := range s.byUser[req.UserID] {
		if p.ResourceType != req.ResourceType {
			continue
		}
		if req.ResourceID != "" && p.ResourceID != "" && p.ResourceID != req.ResourceID {
			continue
		}
		candidates = append(candidates, p)
	}
	s.mu.RUnlock()

	res := s.decide(candidates, req, now)

	event := audit.EventChecked
	if !res.Granted {
		event = audit.EventDenied
	}
	entry := audit.Entry{
		Timestamp:    now,
		Event:        event,
		Kind:         "permission",
		UserID:       req.UserID,
		ResourceType: req.ResourceType,
		Action:       string(req.Action),
		Reason:       res.Reason,
	}
	if len(res.FailedConditions) > 0 {
		entry.Detail = map[string]string{}
		for _, c := range res.FailedConditions {
			entry.Detail[c.Name] = conditions.Describe(c)
		}
	}
	s.sink.Record(entry)
	return res
}

func (s *MemoryStore) decide(candidates []*types.Permission, req types.PermissionRequest, now time.Time) types.CheckResult {
	var (
		sawExpired  bool
		sawUnmet    bool
		conditional bool
		failed      []types.Condition
	)
	for _, p := range candidates {
		if p.Action != req.Action || !p.Granted {
			continue
		}
		if p.Expired(now) {
			sawExpired = true
			continue
		}
		if len(p.Conditions) == 0 {
			return types.CheckResult{
				Granted:       true,
				Reason:        ReasonGranted,
				AuditRequired: sensitiveActions[req.Action],
			}
		}
		conditional = true
		ev := conditions.Evaluate(p.Conditions, req.Context)
		if ev.Satisfied {
			return types.CheckResult{
				Granted:       true,
				Reason:        ReasonGranted,
				AuditRequired: true,
			}
		}
		sawUnmet = true
		failed = append(failed, ev.Failed...)
	}

	res := types.CheckResult{
		Granted:       false,
		AuditRequired: conditional || sensitiveActions[req.Action],
	}
	switch {
	case sawUnmet:
		res.Reason = ReasonConditions
		res.FailedConditions = failed
	case sawExpired:
		res.Reason = ReasonExpired
	default:
		res.Reason = ReasonNoApplicable
	}
	return res
}

// Revoke removes the permission if it exists. Existence is the only
// check: revocation is an admin act, so there is no ownership test.
func (s *MemoryStore) Revoke(ctx context.Context, id, revokedBy string) bool {
	s.mu.Lock()
	p, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.remove(p)
	s.mu.Unlock()

	s.sink.Record(audit.Entry{
		Timestamp:    s.now(),
		Event:        audit.EventRevoked,
		Kind:         "permission",
		Subject:      id,
		UserID:       p.UserID,
		ActedBy:      revokedBy,
		ResourceType: p.ResourceType,
		Action:       string(p.Action),
	})
	return true
}

// RevokeAll revokes every active grant of the resource type for the user
// and returns how many were removed.
func (s *MemoryStore) RevokeAll(ctx context.Context, userID, resourceType, revokedBy string) int {
	now := s.now()

	s.mu.Lock()
	var revoked []*types.Permission
	for _, p := range s.byUser[userID] {
		if p.ResourceType == resourceType && p.Granted {
			revoked = append(revoked, p)
		}
	}
	for _, p := range revoked {
		s.remove(p)
	}
	s.mu.Unlock()

	for _, p := range revoked {
		s.sink.Record(audit.Entry{
			Timestamp:    now,
			Event:        audit.EventRevoked,
			Kind:         "permission",
			Subject:      p.ID,
			UserID:       userID,
			ActedBy:      revokedBy,
			ResourceType: resourceType,
			Action:       string(p.Action),
		})
	}
	return len(revoked)
}

// remove unlinks p from both indexes. Caller holds the write lock.
func (s *MemoryStore) remove(p *types.Permission) {
	delete(s.byID, p.ID)
	list := s.byUser[p.UserID]
	for i, q := range list {
		if q.ID == p.ID {
			s.byUser[p.UserID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.byUser[p.UserID]) == 0 {
		delete(s.byUser, p.UserID)
	}
}

// UserPermissions returns a snapshot of every permission for the user.
// Unknown users get an empty list, never nil.
func (s *MemoryStore) UserPermissions(userID string) []types.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Permission{}
	for _, p := range s.byUser[userID] {
		out = append(out, *p)
	}
	return out
}

// ResourcePermissions returns the user's permissions for one resource type.
func (s *MemoryStore) ResourcePermissions(userID, resourceType string) []types.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []types.Permission{}
	for _, p := range s.byUser[userID] {
		if p.ResourceType == resourceType {
			out = append(out, *p)
		}
	}
	return out
}

// SweepExpired removes every record whose expiry has passed, logging one
// "expired" event per removal. Idempotent: a second call with nothing new
// returns zero.
func (s *MemoryStore) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var swept []*types.Permission
	for _, p := range s.byID {
		if p.Expired(now) {
			swept = append(swept, p)
		}
	}
	for _, p := range swept {
		s.remove(p)
	}
	s.mu.Unlock()

	for _, p := range swept {
		s.sink.Record(audit.Entry{
			Timestamp:    now,
			Event:        audit.EventExpired,
			Kind:         "permission",
			Subject:      p.ID,
			UserID:       p.UserID,
			ResourceType: p.ResourceType,
			Action:       string(p.Action),
		})
	}
	return len(swept)
}

// Stats is computed live from the current collection, never cached.
func (s *MemoryStore) Stats() (total, active, expired int) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.byID {
		total++
		if p.Expired(now) {
			expired++
		} else if p.Granted {
			active++
		}
	}
	return total, active, expired
}

// Export returns a copy of every record, for the secure store.
func (s *MemoryStore) Export() []types.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Permission, 0, len(s.byID))
	for _, p := range s.byID {
		out = append(out, *p)
	}
	return out
}

// Import replaces the collection with the given records. Used when
// rehydrating from the secure store at startup.
func (s *MemoryStore) Import(perms []types.Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[string]*types.Permission, len(perms))
	s.byUser = make(map[string][]*types.Permission)
	for i := range perms {
		p := perms[i]
		s.byID[p.ID] = &p
		s.byUser[p.UserID] = append(s.byUser[p.UserID], &p)
	}
}
