package consent

import (
	"context"
	"time"

	"github.com/ctxguard/ctxguard/internal/types"
)

// Presenter is the collaborator that obtains the actual human decision
// for a consent request. It may be interactive and slow; the manager
// never holds its lock across a Present call.
type Presenter interface {
	Present(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error)
}

// Data types that always get the short leash.
var sensitiveDataTypes = map[string]bool{
	"health":    true,
	"financial": true,
	"biometric": true,
	"location":  true,
}

const (
	sensitiveExpiry = 24 * time.Hour
	defaultExpiry   = 7 * 24 * time.Hour
)

// DefaultPresenter implements the reference policy: sensitive data types
// get a 24 h expiry with purpose and retention limits, everything else a
// 7 day expiry with a purpose limit. It grants unconditionally; a real
// deployment swaps in an interactive presenter.
type DefaultPresenter struct {
	Clock func() time.Time
}

func (p *DefaultPresenter) Present(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
	now := time.Now().UTC()
	if p.Clock != nil {
		now = p.Clock()
	}

	sensitive := false
	for _, dt := range req.DataTypes {
		if sensitiveDataTypes[dt] {
			sensitive = true
			break
		}
	}

	ttl := defaultExpiry
	conds := []types.Condition{purposeLimitation(req.Purpose)}
	if sensitive {
		ttl = sensitiveExpiry
		conds = append(conds, retentionLimit(sensitiveExpiry))
	}

	exp := now.Add(ttl)
	return types.ConsentDecision{
		Granted:    true,
		Conditions: conds,
		ExpiresAt:  &exp,
		Revocable:  true,
	}, nil
}

func purposeLimitation(purpose string) types.Condition {
	return types.Condition{
		Name:     "purpose_limitation",
		Type:     types.CondPurpose,
		Operator: types.OpEquals,
		Value:    types.ConditionValue{String: purpose},
	}
}

func retentionLimit(d time.Duration) types.Condition {
	return types.Condition{
		Name:     "retention_limit",
		Type:     types.CondRetentionLimit,
		Operator: types.OpLessThan,
		Value:    types.ConditionValue{Duration: d},
	}
}

// PresenterFunc adapts a function to the Presenter interface.
type PresenterFunc func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error)

func (f PresenterFunc) Present(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
	return f(ctx, req)
}
