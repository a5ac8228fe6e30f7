// Package engine composes the permission store and consent manager into
// one authorization surface and owns the cross-store maintenance
// operations: expiry cleanup, stats, snapshot and restore.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ctxguard/ctxguard/internal/audit"
	"github.com/ctxguard/ctxguard/internal/authz"
	"github.com/ctxguard/ctxguard/internal/consent"
	"github.com/ctxguard/ctxguard/internal/permission"
	"github.com/ctxguard/ctxguard/internal/securestore"
	"github.com/ctxguard/ctxguard/internal/types"
)

const (
	snapshotPermissionsKey = "snapshot/permissions"
	snapshotConsentsKey    = "snapshot/consents"
)

type Engine struct {
	Permissions *permission.MemoryStore
	Consents    *consent.Manager
	Ledger      *audit.Ledger

	authorizer authz.Authorizer
	store      securestore.SecureStore
}

type Options struct {
	Presenter consent.Presenter
	// Sinks receive audit entries in addition to the built-in ledger.
	Sinks []audit.Sink
	// Authorizer is the optional fallback policy.
	Authorizer authz.Authorizer
	Store      securestore.SecureStore
}

func New(opts Options) *Engine {
	ledger := audit.NewLedger()
	sink := audit.Sink(ledger)
	if len(opts.Sinks) > 0 {
		sink = append(audit.Fanout{ledger}, opts.Sinks...)
	}
	store := opts.Store
	if store == nil {
		store = securestore.NewMemory()
	}
	return &Engine{
		Permissions: permission.NewMemoryStore(sink),
		Consents:    consent.NewManager(opts.Presenter, sink),
		Ledger:      ledger,
		authorizer:  opts.Authorizer,
		store:       store,
	}
}

// CheckPermission runs the local check; when nothing applies locally and
// an external authorizer is configured, its verdict is used as a
// fallback. A failing authorizer denies, it never errors out.
func (e *Engine) CheckPermission(ctx context.Context, req types.PermissionRequest) types.CheckResult {
	res := e.Permissions.Check(ctx, req)
	if res.Granted || res.Reason != permission.ReasonNoApplicable || e.authorizer == nil {
		return res
	}

	dec, err := e.authorizer.Check(ctx, authz.Request{
		UserID:       req.UserID,
		Action:       string(req.Action),
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
	})
	if err != nil {
		res.Reason = fmt.Sprintf("%s; external policy unavailable: %v", res.Reason, err)
		return res
	}
	if dec.Allowed {
		return types.CheckResult{Granted: true, Reason: "allowed by external policy", AuditRequired: true}
	}
	if dec.Reason != "" {
		res.Reason = fmt.Sprintf("%s; external policy: %s", res.Reason, dec.Reason)
	}
	return res
}

// CleanupExpired sweeps both stores. Safe to call concurrently with
// grants, checks and revocations; a second call with nothing new to
// remove returns zeros.
func (e *Engine) CleanupExpired(ctx context.Context) types.CleanupResult {
	return types.CleanupResult{
		Permissions: e.Permissions.SweepExpired(ctx),
		Consents:    e.Consents.SweepExpired(ctx),
	}
}

// Stats is computed live from the current collections.
func (e *Engine) Stats() types.Stats {
	total, active, expired := e.Permissions.Stats()
	return types.Stats{
		TotalPermissions:   total,
		ActivePermissions:  active,
		ExpiredPermissions: expired,
		TotalConsents:      e.Consents.Count(),
	}
}

// Snapshot persists both record collections to the secure store.
func (e *Engine) Snapshot(ctx context.Context) error {
	perms, err := json.Marshal(e.Permissions.Export())
	if err != nil {
		return fmt.Errorf("marshal permissions: %w", err)
	}
	consents, err := json.Marshal(e.Consents.Export())
	if err != nil {
		return fmt.Errorf("marshal consents: %w", err)
	}
	if err := e.store.Put(ctx, snapshotPermissionsKey, perms); err != nil {
		return fmt.Errorf("store permissions: %w", err)
	}
	if err := e.store.Put(ctx, snapshotConsentsKey, consents); err != nil {
		return fmt.Errorf("store consents: %w", err)
	}
	return nil
}

// Restore rehydrates both collections from the secure store. A missing
// snapshot is not an error; the engine simply starts empty.
func (e *Engine) Restore(ctx context.Context) error {
	if data, ok, err := e.store.Get(ctx, snapshotPermissionsKey); err != nil {
		return fmt.Errorf("load permissions: %w", err)
	} else if ok {
		var perms []types.Permission
		if err := json.Unmarshal(data, &perms); err != nil {
			return fmt.Errorf("decode permissions: %w", err)
		}
		e.Permissions.Import(perms)
	}
	if data, ok, err := e.store.Get(ctx, snapshotConsentsKey); err != nil {
		return fmt.Errorf("load consents: %w", err)
	} else if ok {
		var consents []types.Consent
		if err := json.Unmarshal(data, &consents); err != nil {
			return fmt.Errorf("decode consents: %w", err)
		}
		e.Consents.Import(consents)
	}
	return nil
}
