package types

import (
	"time"
)

type Action string

const (
	ActionRead              Action = "read"
	ActionWrite             Action = "write"
	ActionDelete            Action = "delete"
	ActionShare             Action = "share"
	ActionExport            Action = "export"
	ActionModifyPermissions Action = "modify_permissions"
)

type ConditionType string

const (
	CondTimeRange       ConditionType = "time_range"
	CondLocation        ConditionType = "location"
	CondDevice          ConditionType = "device"
	CondNetwork         ConditionType = "network"
	CondUserContext     ConditionType = "user_context"
	CondDataSensitivity ConditionType = "data_sensitivity"
	CondPurpose         ConditionType = "purpose"
	CondRetentionLimit  ConditionType = "retention_limit" // consent-only, checked against the consent's own age
)

type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpIn             Operator = "in"
	OpNotIn          Operator = "not_in"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpBetween        Operator = "between"
	OpContains       Operator = "contains"
	OpMatchesPattern Operator = "matches_pattern"
)

type SensitivityLevel string

const (
	SensitivityPublic       SensitivityLevel = "public"
	SensitivityInternal     SensitivityLevel = "internal"
	SensitivityConfidential SensitivityLevel = "confidential"
	SensitivityRestricted   SensitivityLevel = "restricted"
)

// Geofence is a circular area used by location conditions. A zero Radius
// means the 100 m default applies.
type Geofence struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Radius    float64 `json:"radius,omitempty"` // meters
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ConditionValue carries the operand for a condition. Exactly one field
// group is meaningful for a given (type, operator) pair; a condition whose
// populated field does not match its pair evaluates to false.
type ConditionValue struct {
	Instant   *time.Time    `json:"instant,omitempty"`   // time_range greater_than/less_than
	Range     *TimeRange    `json:"range,omitempty"`     // time_range between
	Geofence  *Geofence     `json:"geofence,omitempty"`  // location equals/not_equals
	Geofences []Geofence    `json:"geofences,omitempty"` // location in
	String    string        `json:"string,omitempty"`    // device/network/user_context/purpose/sensitivity scalar ops
	Strings   []string      `json:"strings,omitempty"`   // in/not_in lists
	Duration  time.Duration `json:"duration,omitempty"`  // retention_limit
}

// ConditionMetadata holds side-channel values the caller supplies at
// evaluation time, such as the current request purpose or the sensitivity
// of the data being touched.
type ConditionMetadata struct {
	Sensitivity SensitivityLevel `json:"sensitivity,omitempty"`
	Purpose     string           `json:"purpose,omitempty"`
}

type Condition struct {
	Name     string             `json:"name,omitempty"` // e.g. "purpose_limitation"
	Type     ConditionType      `json:"type"`
	Operator Operator           `json:"operator"`
	Value    ConditionValue     `json:"value"`
	Metadata *ConditionMetadata `json:"metadata,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"` // meters
}

type Device struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Trusted bool   `json:"trusted"`
}

type Network struct {
	Type    string `json:"type"`
	Trusted bool   `json:"trusted"`
}

// RequestContext is the situational snapshot a check is evaluated against.
// It is owned by the caller and read-only to the engine.
type RequestContext struct {
	UserID       string    `json:"user_id"`
	Timestamp    time.Time `json:"timestamp"`
	Location     *Location `json:"location,omitempty"`
	Device       *Device   `json:"device,omitempty"`
	Network      *Network  `json:"network,omitempty"`
	UserActivity string    `json:"user_activity,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
}

// Permission is an administrative grant of one action on one resource type
// (optionally a specific instance) to one user. Records are never mutated
// in place; revocation and expiry remove them.
type Permission struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	ResourceType string            `json:"resource_type"`
	ResourceID   string            `json:"resource_id,omitempty"`
	Action       Action            `json:"action"`
	Granted      bool              `json:"granted"`
	GrantedBy    string            `json:"granted_by"`
	GrantedAt    time.Time         `json:"granted_at"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Conditions   []Condition       `json:"conditions,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the permission's expiry, if any, has passed.
func (p *Permission) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}

// GrantOptions are the optional fields of a grant.
type GrantOptions struct {
	ResourceID string            `json:"resource_id,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	Conditions []Condition       `json:"conditions,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type PermissionRequest struct {
	UserID       string          `json:"user_id"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Action       Action          `json:"action"`
	Context      *RequestContext `json:"context,omitempty"`
}

// CheckResult is the total outcome of a permission check. Reason
// distinguishes "no applicable permissions", "conditions not satisfied"
// and "permission expired".
type CheckResult struct {
	Granted          bool        `json:"granted"`
	Reason           string      `json:"reason"`
	AuditRequired    bool        `json:"audit_required"`
	FailedConditions []Condition `json:"failed_conditions,omitempty"`
}

// Consent is a purpose-bound grant distinct from Permission: it covers a
// set of data types for one requester and purpose, and the user may revoke
// it at any time unless Revocable is false.
type Consent struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Purpose    string          `json:"purpose"`
	DataTypes  []string        `json:"data_types"`
	Requester  string          `json:"requester"`
	Granted    bool            `json:"granted"`
	GrantedAt  time.Time       `json:"granted_at"`
	ExpiresAt  *time.Time      `json:"expires_at,omitempty"`
	Conditions []Condition     `json:"conditions,omitempty"`
	Revocable  bool            `json:"revocable"`
	Context    *RequestContext `json:"context,omitempty"`
}

func (c *Consent) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}

// Covers reports whether the consent's data types are a superset of the
// requested set.
func (c *Consent) Covers(dataTypes []string) bool {
	granted := make(map[string]bool, len(c.DataTypes))
	for _, dt := range c.DataTypes {
		granted[dt] = true
	}
	for _, dt := range dataTypes {
		if !granted[dt] {
			return false
		}
	}
	return true
}

type ConsentRequest struct {
	ID        string          `json:"id"`
	Purpose   string          `json:"purpose"`
	DataTypes []string        `json:"data_types"`
	Requester string          `json:"requester"`
	Context   *RequestContext `json:"context,omitempty"`
}

// ConsentDecision is what a presenter returns and what RequestConsent
// hands back to the caller.
type ConsentDecision struct {
	Granted    bool        `json:"granted"`
	Reason     string      `json:"reason,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	ExpiresAt  *time.Time  `json:"expires_at,omitempty"`
	Revocable  bool        `json:"revocable"`
	ConsentID  string      `json:"consent_id,omitempty"`
}

type ConsentAction string

const (
	ConsentGranted ConsentAction = "granted"
	ConsentDenied  ConsentAction = "denied"
	ConsentRevoked ConsentAction = "revoked"
	ConsentExpired ConsentAction = "expired"
)

// ConsentRecord is one immutable history entry; history is append-only and
// never pruned.
type ConsentRecord struct {
	ConsentID string        `json:"consent_id"`
	UserID    string        `json:"user_id"`
	Purpose   string        `json:"purpose"`
	Requester string        `json:"requester"`
	DataTypes []string      `json:"data_types,omitempty"`
	Action    ConsentAction `json:"action"`
	ActedBy   string        `json:"acted_by"`
	Timestamp time.Time     `json:"timestamp"`
	Reason    string        `json:"reason,omitempty"`
}

type Stats struct {
	TotalPermissions   int `json:"total_permissions"`
	ActivePermissions  int `json:"active_permissions"`
	ExpiredPermissions int `json:"expired_permissions"`
	TotalConsents      int `json:"total_consents"`
}

type CleanupResult struct {
	Permissions int `json:"permissions"`
	Consents    int `json:"consents"`
}
