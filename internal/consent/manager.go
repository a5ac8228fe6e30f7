// Package consent tracks explicit, revocable user consent for specific
// purposes. Decisions come from a pluggable presenter; every state
// transition lands in an append-only history.
package consent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ctxguard/ctxguard/internal/audit"
	"github.com/ctxguard/ctxguard/internal/conditions"
	"github.com/ctxguard/ctxguard/internal/types"
)

const (
	reasonMalformed      = "malformed consent request"
	reasonPresenterError = "consent presenter failed"
	reasonAlreadyValid   = "existing consent still valid"
)

// Manager owns the consent collection and its history. Mutations are
// serialized under one mutex; the presenter is called outside it.
type Manager struct {
	mu        sync.RWMutex
	byID      map[string]*types.Consent
	byUser    map[string][]*types.Consent
	history   map[string][]types.ConsentRecord
	presenter Presenter
	sink      audit.Sink
	now       func() time.Time
}

func NewManager(p Presenter, sink audit.Sink) *Manager {
	if p == nil {
		p = &DefaultPresenter{}
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	return &Manager{
		byID:      make(map[string]*types.Consent),
		byUser:    make(map[string][]*types.Consent),
		history:   make(map[string][]types.ConsentRecord),
		presenter: p,
		sink:      sink,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RequestConsent returns the existing decision when a still-valid consent
// already covers the request (idempotent re-request), and otherwise
// delegates to the presenter. A malformed request or a failing presenter
// yields a denied decision, never an error.
func (m *Manager) RequestConsent(ctx context.Context, req types.ConsentRequest) types.ConsentDecision {
	if req.ID == "" || req.Purpose == "" || len(req.DataTypes) == 0 || req.Requester == "" ||
		req.Context == nil || req.Context.UserID == "" {
		return types.ConsentDecision{Granted: false, Reason: reasonMalformed}
	}
	userID := req.Context.UserID
	now := m.now()

	// fast path: an unexpired consent already covers this exact request
	if existing := m.findCovering(userID, req, now); existing != nil {
		return decisionFrom(existing)
	}

	dec, err := m.present(ctx, req)
	if err != nil {
		dec = types.ConsentDecision{
			Granted: false,
			Reason:  fmt.Sprintf("%s: %v", reasonPresenterError, err),
		}
	}

	if !dec.Granted {
		m.appendDenied(userID, req, dec.Reason)
		return dec
	}

	m.mu.Lock()
	// the presenter ran unlocked; a concurrent identical request may have
	// stored a consent in the meantime
	if existing := m.findCoveringLocked(userID, req, m.now()); existing != nil {
		m.mu.Unlock()
		return decisionFrom(existing)
	}
	c := &types.Consent{
		ID:         uuid.NewString(),
		UserID:     userID,
		Purpose:    req.Purpose,
		DataTypes:  append([]string(nil), req.DataTypes...),
		Requester:  req.Requester,
		Granted:    true,
		GrantedAt:  now,
		ExpiresAt:  dec.ExpiresAt,
		Conditions: dec.Conditions,
		Revocable:  dec.Revocable,
		Context:    req.Context,
	}
	m.byID[c.ID] = c
	m.byUser[userID] = append(m.byUser[userID], c)
	m.history[userID] = append(m.history[userID], types.ConsentRecord{
		ConsentID: c.ID,
		UserID:    userID,
		Purpose:   c.Purpose,
		Requester: c.Requester,
		DataTypes: c.DataTypes,
		Action:    types.ConsentGranted,
		ActedBy:   userID,
		Timestamp: now,
	})
	m.mu.Unlock()

	m.sink.Record(audit.Entry{
		Timestamp: now,
		Event:     audit.EventGranted,
		Kind:      "consent",
		Subject:   c.ID,
		UserID:    userID,
		ActedBy:   req.Requester,
		Action:    c.Purpose,
	})

	dec.ConsentID = c.ID
	return dec
}

// present shields the manager from a misbehaving presenter: errors and
// panics both come back as plain errors.
func (m *Manager) present(ctx context.Context, req types.ConsentRequest) (dec types.ConsentDecision, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("presenter panic: %v", r)
		}
	}()
	return m.presenter.Present(ctx, req)
}

func (m *Manager) appendDenied(userID string, req types.ConsentRequest, reason string) {
	now := m.now()
	m.mu.Lock()
	m.history[userID] = append(m.history[userID], types.ConsentRecord{
		UserID:    userID,
		Purpose:   req.Purpose,
		Requester: req.Requester,
		DataTypes: req.DataTypes,
		Action:    types.ConsentDenied,
		ActedBy:   userID,
		Timestamp: now,
		Reason:    reason,
	})
	m.mu.Unlock()

	m.sink.Record(audit.Entry{
		Timestamp: now,
		Event:     audit.EventDenied,
		Kind:      "consent",
		UserID:    userID,
		ActedBy:   req.Requester,
		Action:    req.Purpose,
		Reason:    reason,
	})
}

func (m *Manager) findCovering(userID string, req types.ConsentRequest, now time.Time) *types.Consent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findCoveringLocked(userID, req, now)
}

// caller holds at least the read lock
func (m *Manager) findCoveringLocked(userID string, req types.ConsentRequest, now time.Time) *types.Consent {
	for _, c := range m.byUser[userID] {
		if c.Purpose == req.Purpose && c.Requester == req.Requester &&
			c.Granted && !c.Expired(now) && c.Covers(req.DataTypes) &&
			m.conditionsHold(c, req.Purpose, now) {
			return c
		}
	}
	return nil
}

func decisionFrom(c *types.Consent) types.ConsentDecision {
	return types.ConsentDecision{
		Granted:    true,
		Reason:     reasonAlreadyValid,
		Conditions: c.Conditions,
		ExpiresAt:  c.ExpiresAt,
		Revocable:  c.Revocable,
		ConsentID:  c.ID,
	}
}

// conditionsHold evaluates the consent's conditions at check time.
// retention_limit concerns the consent's own age rather than request
// context, so it bypasses the generic evaluator; purpose conditions are
// tested against the purpose being requested right now.
func (m *Manager) conditionsHold(c *types.Consent, purpose string, now time.Time) bool {
	var generic []types.Condition
	for _, cond := range c.Conditions {
		if cond.Type == types.CondRetentionLimit {
			if cond.Value.Duration <= 0 || now.Sub(c.GrantedAt) >= cond.Value.Duration {
				return false
			}
			continue
		}
		if cond.Type == types.CondPurpose && cond.Metadata == nil {
			cond.Metadata = &types.ConditionMetadata{Purpose: purpose}
		}
		generic = append(generic, cond)
	}
	if len(generic) == 0 {
		return true
	}
	rc := c.Context
	if rc == nil {
		rc = &types.RequestContext{UserID: c.UserID, Timestamp: now}
	}
	return conditions.Evaluate(generic, rc).Satisfied
}

// HasValidConsent reports whether an active, condition-satisfying consent
// for the purpose covers all requested data types. Consents found expired
// during the scan are evicted and logged.
func (m *Manager) HasValidConsent(purpose string, dataTypes []string, userID string) bool {
	now := m.now()

	m.mu.Lock()
	var expired []*types.Consent
	var match *types.Consent
	for _, c := range m.byUser[userID] {
		if c.Expired(now) {
			expired = append(expired, c)
			continue
		}
		if match == nil && c.Granted && c.Purpose == purpose && c.Covers(dataTypes) &&
			m.conditionsHold(c, purpose, now) {
			match = c
		}
	}
	for _, c := range expired {
		m.removeLocked(c)
		m.history[userID] = append(m.history[userID], types.ConsentRecord{
			ConsentID: c.ID,
			UserID:    userID,
			Purpose:   c.Purpose,
			Requester: c.Requester,
			DataTypes: c.DataTypes,
			Action:    types.ConsentExpired,
			ActedBy:   "system",
			Timestamp: now,
		})
	}
	m.mu.Unlock()

	for _, c := range expired {
		m.sink.Record(audit.Entry{
			Timestamp: now,
			Event:     audit.EventExpired,
			Kind:      "consent",
			Subject:   c.ID,
			UserID:    userID,
			Action:    c.Purpose,
		})
	}
	return match != nil
}

// RevokeConsent removes the consent when it exists, belongs to the caller
// and is revocable. Any other case is a plain false: not-found and
// not-yours are indistinguishable on purpose.
func (m *Manager) RevokeConsent(id, userID string) bool {
	now := m.now()

	m.mu.Lock()
	c, ok := m.byID[id]
	if !ok || c.UserID != userID || !c.Revocable {
		m.mu.Unlock()
		return false
	}
	m.removeLocked(c)
	m.history[userID] = append(m.history[userID], types.ConsentRecord{
		ConsentID: c.ID,
		UserID:    userID,
		Purpose:   c.Purpose,
		Requester: c.Requester,
		DataTypes: c.DataTypes,
		Action:    types.ConsentRevoked,
		ActedBy:   userID,
		Timestamp: now,
	})
	m.mu.Unlock()

	m.sink.Record(audit.Entry{
		Timestamp: now,
		Event:     audit.EventRevoked,
		Kind:      "consent",
		Subject:   id,
		UserID:    userID,
		ActedBy:   userID,
		Action:    c.Purpose,
	})
	return true
}

func (m *Manager) removeLocked(c *types.Consent) {
	delete(m.byID, c.ID)
	list := m.byUser[c.UserID]
	for i, q := range list {
		if q.ID == c.ID {
			m.byUser[c.UserID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(m.byUser[c.UserID]) == 0 {
		delete(m.byUser, c.UserID)
	}
}

// UserConsents returns the user's active grants. Empty list, never nil.
func (m *Manager) UserConsents(userID string) []types.Consent {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Consent{}
	for _, c := range m.byUser[userID] {
		if c.Granted && !c.Expired(now) {
			out = append(out, *c)
		}
	}
	return out
}

// ConsentHistory returns every transition recorded for the user, in
// chronological order. History is never pruned.
func (m *Manager) ConsentHistory(userID string) []types.ConsentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.ConsentRecord{}, m.history[userID]...)
}

// SweepExpired removes every expired consent, logging one "expired"
// transition per removal.
func (m *Manager) SweepExpired(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	var swept []*types.Consent
	for _, c := range m.byID {
		if c.Expired(now) {
			swept = append(swept, c)
		}
	}
	for _, c := range swept {
		m.removeLocked(c)
		m.history[c.UserID] = append(m.history[c.UserID], types.ConsentRecord{
			ConsentID: c.ID,
			UserID:    c.UserID,
			Purpose:   c.Purpose,
			Requester: c.Requester,
			DataTypes: c.DataTypes,
			Action:    types.ConsentExpired,
			ActedBy:   "system",
			Timestamp: now,
		})
	}
	m.mu.Unlock()

	for _, c := range swept {
		m.sink.Record(audit.Entry{
			Timestamp: now,
			Event:     audit.EventExpired,
			Kind:      "consent",
			Subject:   c.ID,
			UserID:    c.UserID,
			Action:    c.Purpose,
		})
	}
	return len(swept)
}

// Count reports the number of stored consents.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// Export returns a copy of every stored consent, for the secure store.
func (m *Manager) Export() []types.Consent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Consent, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out
}

// Import replaces the collection when rehydrating from the secure store.
// History is not rehydrated; the durable audit trail lives in the sink.
func (m *Manager) Import(consents []types.Consent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*types.Consent, len(consents))
	m.byUser = make(map[string][]*types.Consent)
	for i := range consents {
		c := consents[i]
		m.byID[c.ID] = &c
		m.byUser[c.UserID] = append(m.byUser[c.UserID], &c)
	}
}
