package consent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ctxguard/ctxguard/internal/types"
)

func consentReq(user, purpose string, dataTypes ...string) types.ConsentRequest {
	return types.ConsentRequest{
		ID:        "req-1",
		Purpose:   purpose,
		DataTypes: dataTypes,
		Requester: "health-app",
		Context:   &types.RequestContext{UserID: user, Timestamp: time.Now().UTC()},
	}
}

func countAction(records []types.ConsentRecord, action types.ConsentAction) int {
	n := 0
	for _, r := range records {
		if r.Action == action {
			n++
		}
	}
	return n
}

func TestRequestConsent_SensitiveDataShortExpiry(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	start := time.Now().UTC()
	dec := m.RequestConsent(context.Background(), consentReq("u1", "Health monitoring", "health", "location"))
	if !dec.Granted {
		t.Fatalf("granted = false (%q), want true", dec.Reason)
	}
	if len(dec.Conditions) != 2 {
		t.Fatalf("conditions = %d, want 2 (purpose_limitation + retention_limit)", len(dec.Conditions))
	}
	if dec.ExpiresAt == nil {
		t.Fatalf("ExpiresAt = nil, want 24h window")
	}
	if ttl := dec.ExpiresAt.Sub(start); ttl > 24*time.Hour+time.Minute {
		t.Fatalf("expiry window = %v, want <= 24h", ttl)
	}

	names := map[string]bool{}
	for _, c := range dec.Conditions {
		names[c.Name] = true
	}
	if !names["purpose_limitation"] || !names["retention_limit"] {
		t.Fatalf("condition names = %v, want purpose_limitation and retention_limit", names)
	}
}

func TestRequestConsent_OrdinaryDataWeekExpiry(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)

	start := time.Now().UTC()
	dec := m.RequestConsent(context.Background(), consentReq("u1", "Analytics", "usage_stats"))
	if !dec.Granted {
		t.Fatalf("granted = false (%q), want true", dec.Reason)
	}
	if len(dec.Conditions) != 1 || dec.Conditions[0].Name != "purpose_limitation" {
		t.Fatalf("conditions = %+v, want single purpose_limitation", dec.Conditions)
	}
	if dec.ExpiresAt == nil || dec.ExpiresAt.Sub(start) < 6*24*time.Hour {
		t.Fatalf("ExpiresAt = %v, want ~7 days out", dec.ExpiresAt)
	}
}

func TestRequestConsent_IdempotentRerequest(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	req := consentReq("u1", "Health monitoring", "health", "location")
	first := m.RequestConsent(ctx, req)
	second := m.RequestConsent(ctx, req)
	if !first.Granted || !second.Granted {
		t.Fatalf("decisions = (%v, %v), want both granted", first.Granted, second.Granted)
	}
	if second.ConsentID != first.ConsentID {
		t.Fatalf("re-request stored a second consent: %s vs %s", first.ConsentID, second.ConsentID)
	}

	hist := m.ConsentHistory("u1")
	if got := countAction(hist, types.ConsentGranted); got != 1 {
		t.Fatalf("granted history entries = %d, want exactly 1", got)
	}
}

func TestRequestConsent_Malformed(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	base := consentReq("u1", "Analytics", "usage_stats")
	for name, mutate := range map[string]func(*types.ConsentRequest){
		"empty id":        func(r *types.ConsentRequest) { r.ID = "" },
		"empty purpose":   func(r *types.ConsentRequest) { r.Purpose = "" },
		"no data types":   func(r *types.ConsentRequest) { r.DataTypes = nil },
		"empty requester": func(r *types.ConsentRequest) { r.Requester = "" },
		"nil context":     func(r *types.ConsentRequest) { r.Context = nil },
	} {
		req := base
		mutate(&req)
		dec := m.RequestConsent(ctx, req)
		if dec.Granted {
			t.Fatalf("%s: granted = true, want false", name)
		}
		if dec.Reason == "" {
			t.Fatalf("%s: empty reason on denial", name)
		}
	}
	if m.Count() != 0 {
		t.Fatalf("malformed requests stored %d consents, want 0", m.Count())
	}
}

func TestRequestConsent_PresenterDenialRecordsHistory(t *testing.T) {
	t.Parallel()
	deny := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		return types.ConsentDecision{Granted: false, Reason: "user declined"}, nil
	})
	m := NewManager(deny, nil)

	dec := m.RequestConsent(context.Background(), consentReq("u1", "Marketing", "email"))
	if dec.Granted {
		t.Fatalf("granted = true, want false")
	}
	if m.Count() != 0 {
		t.Fatalf("denied decision stored a consent record")
	}
	hist := m.ConsentHistory("u1")
	if got := countAction(hist, types.ConsentDenied); got != 1 {
		t.Fatalf("denied history entries = %d, want 1", got)
	}
}

func TestRequestConsent_PresenterErrorBecomesDenial(t *testing.T) {
	t.Parallel()
	broken := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		return types.ConsentDecision{}, errors.New("ui unreachable")
	})
	m := NewManager(broken, nil)

	dec := m.RequestConsent(context.Background(), consentReq("u1", "Marketing", "email"))
	if dec.Granted {
		t.Fatalf("granted = true despite presenter error, want false")
	}
	if !strings.Contains(dec.Reason, "ui unreachable") {
		t.Fatalf("Reason = %q, want diagnostic mentioning the presenter failure", dec.Reason)
	}
}

func TestRequestConsent_PresenterPanicBecomesDenial(t *testing.T) {
	t.Parallel()
	hostile := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		panic("boom")
	})
	m := NewManager(hostile, nil)

	dec := m.RequestConsent(context.Background(), consentReq("u1", "Marketing", "email"))
	if dec.Granted {
		t.Fatalf("granted = true despite presenter panic, want false")
	}
}

func TestHasValidConsent_SubsetRule(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	m.RequestConsent(ctx, consentReq("u1", "Health monitoring", "health", "location"))

	if !m.HasValidConsent("Health monitoring", []string{"health"}, "u1") {
		t.Fatalf("subset of granted data types = false, want true")
	}
	if !m.HasValidConsent("Health monitoring", []string{"health", "location"}, "u1") {
		t.Fatalf("exact data types = false, want true")
	}
	if m.HasValidConsent("Health monitoring", []string{"health", "financial"}, "u1") {
		t.Fatalf("superset of granted data types = true, want false")
	}
	if m.HasValidConsent("Advertising", []string{"health"}, "u1") {
		t.Fatalf("wrong purpose = true, want false")
	}
	if m.HasValidConsent("Health monitoring", []string{"health"}, "u2") {
		t.Fatalf("wrong user = true, want false")
	}
}

func TestHasValidConsent_LazyExpiryEviction(t *testing.T) {
	t.Parallel()
	past := time.Now().UTC().Add(-time.Hour)
	expiring := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		return types.ConsentDecision{Granted: true, ExpiresAt: &past, Revocable: true}, nil
	})
	m := NewManager(expiring, nil)

	m.RequestConsent(context.Background(), consentReq("u1", "Analytics", "usage_stats"))
	if m.Count() != 1 {
		t.Fatalf("stored consents = %d, want 1", m.Count())
	}

	if m.HasValidConsent("Analytics", []string{"usage_stats"}, "u1") {
		t.Fatalf("expired consent reported valid")
	}
	if m.Count() != 0 {
		t.Fatalf("expired consent not evicted during scan")
	}
	hist := m.ConsentHistory("u1")
	if got := countAction(hist, types.ConsentExpired); got != 1 {
		t.Fatalf("expired history entries = %d, want 1", got)
	}
}

func TestRequestConsent_StoresDespiteExpiredPrior(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	req := consentReq("u1", "Analytics", "usage_stats")
	first := m.RequestConsent(ctx, req)

	// force the stored consent into the past, then re-request
	m.mu.Lock()
	c := m.byID[first.ConsentID]
	past := time.Now().UTC().Add(-time.Minute)
	c.ExpiresAt = &past
	m.mu.Unlock()

	second := m.RequestConsent(ctx, req)
	if !second.Granted {
		t.Fatalf("re-request after expiry denied: %q", second.Reason)
	}
	if second.ConsentID == first.ConsentID {
		t.Fatalf("expired consent returned unchanged, want a fresh grant")
	}
}

func TestRevokeConsent(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	dec := m.RequestConsent(ctx, consentReq("u1", "Analytics", "usage_stats"))

	if m.RevokeConsent(dec.ConsentID, "intruder") {
		t.Fatalf("revoke by non-owner = true, want false")
	}
	if m.RevokeConsent("missing", "u1") {
		t.Fatalf("revoke of unknown id = true, want false")
	}
	if !m.RevokeConsent(dec.ConsentID, "u1") {
		t.Fatalf("owner revoke = false, want true")
	}
	if m.HasValidConsent("Analytics", []string{"usage_stats"}, "u1") {
		t.Fatalf("consent still valid after revoke")
	}
	hist := m.ConsentHistory("u1")
	if got := countAction(hist, types.ConsentRevoked); got != 1 {
		t.Fatalf("revoked history entries = %d, want 1", got)
	}
}

func TestRevokeConsent_IrrevocableStays(t *testing.T) {
	t.Parallel()
	locked := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		return types.ConsentDecision{Granted: true, Revocable: false}, nil
	})
	m := NewManager(locked, nil)

	dec := m.RequestConsent(context.Background(), consentReq("u1", "Essential", "account"))
	if m.RevokeConsent(dec.ConsentID, "u1") {
		t.Fatalf("revoke of irrevocable consent = true, want false")
	}
	if !m.HasValidConsent("Essential", []string{"account"}, "u1") {
		t.Fatalf("irrevocable consent vanished")
	}
}

func TestRetentionLimit_AgainstConsentAge(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	dec := m.RequestConsent(ctx, consentReq("u1", "Health monitoring", "health"))
	if !m.HasValidConsent("Health monitoring", []string{"health"}, "u1") {
		t.Fatalf("fresh consent with retention limit not valid")
	}

	// age the consent past its retention window without expiring it
	m.mu.Lock()
	c := m.byID[dec.ConsentID]
	c.GrantedAt = time.Now().UTC().Add(-25 * time.Hour)
	c.ExpiresAt = nil
	m.mu.Unlock()

	if m.HasValidConsent("Health monitoring", []string{"health"}, "u1") {
		t.Fatalf("consent older than retention limit still valid")
	}
}

func TestUserConsentsAndHistoryShape(t *testing.T) {
	t.Parallel()
	m := NewManager(nil, nil)
	ctx := context.Background()

	if got := m.UserConsents("ghost"); got == nil || len(got) != 0 {
		t.Fatalf("UserConsents(ghost) = %v, want empty non-nil", got)
	}

	m.RequestConsent(ctx, consentReq("u1", "Analytics", "usage_stats"))
	if got := m.UserConsents("u1"); len(got) != 1 {
		t.Fatalf("UserConsents = %d, want 1", len(got))
	}

	hist := m.ConsentHistory("u1")
	if len(hist) != 1 || hist[0].Action != types.ConsentGranted {
		t.Fatalf("history = %+v, want single granted entry", hist)
	}
}

func TestSweepExpired(t *testing.T) {
	t.Parallel()
	past := time.Now().UTC().Add(-time.Hour)
	expiring := PresenterFunc(func(ctx context.Context, req types.ConsentRequest) (types.ConsentDecision, error) {
		return types.ConsentDecision{Granted: true, ExpiresAt: &past, Revocable: true}, nil
	})
	m := NewManager(expiring, nil)
	ctx := context.Background()

	m.RequestConsent(ctx, consentReq("u1", "Analytics", "usage_stats"))
	if n := m.SweepExpired(ctx); n != 1 {
		t.Fatalf("SweepExpired = %d, want 1", n)
	}
	if n := m.SweepExpired(ctx); n != 0 {
		t.Fatalf("second SweepExpired = %d, want 0", n)
	}
}
