// Package conditions evaluates context predicates attached to permissions
// and consents. Evaluation is pure: no state, no clock reads, no errors.
// Anything malformed or unrecognized fails closed.
package conditions

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ctxguard/ctxguard/internal/types"
)

const (
	earthRadiusMeters   = 6371000
	defaultRadiusMeters = 100
	trustedMarker       = "trusted"
	businessHoursOpen   = 9  // 09:00 local
	businessHoursClose  = 17 // exclusive
)

// Result reports overall satisfaction plus every condition that failed.
type Result struct {
	Satisfied bool
	Failed    []types.Condition
}

// Evaluate tests every condition against the context with AND semantics.
// All conditions are evaluated; failures are collected, never skipped.
func Evaluate(conds []types.Condition, rc *types.RequestContext) Result {
	res := Result{Satisfied: true}
	for _, c := range conds {
		if !evalOne(c, rc) {
			res.Satisfied = false
			res.Failed = append(res.Failed, c)
		}
	}
	return res
}

func evalOne(c types.Condition, rc *types.RequestContext) bool {
	if rc == nil {
		return false
	}
	switch c.Type {
	case types.CondTimeRange:
		return evalTimeRange(c, rc.Timestamp)
	case types.CondLocation:
		return evalLocation(c, rc.Location)
	case types.CondDevice:
		return evalDevice(c, rc.Device)
	case types.CondNetwork:
		return evalNetwork(c, rc.Network)
	case types.CondUserContext:
		return evalUserContext(c, rc.UserActivity)
	case types.CondDataSensitivity:
		return evalSensitivity(c)
	case types.CondPurpose:
		return evalPurpose(c)
	default:
		return false
	}
}

func evalTimeRange(c types.Condition, ts time.Time) bool {
	switch c.Operator {
	case types.OpBetween:
		r := c.Value.Range
		if r == nil {
			return false
		}
		// inclusive on both ends
		return !ts.Before(r.Start) && !ts.After(r.End)
	case types.OpGreaterThan:
		return c.Value.Instant != nil && ts.After(*c.Value.Instant)
	case types.OpLessThan:
		return c.Value.Instant != nil && ts.Before(*c.Value.Instant)
	default:
		return false
	}
}

func evalLocation(c types.Condition, loc *types.Location) bool {
	if loc == nil {
		// vacuous truth: with no location there is nothing to equal
		return c.Operator == types.OpNotEquals
	}
	switch c.Operator {
	case types.OpEquals:
		return c.Value.Geofence != nil && inGeofence(loc, *c.Value.Geofence)
	case types.OpNotEquals:
		return c.Value.Geofence != nil && !inGeofence(loc, *c.Value.Geofence)
	case types.OpIn:
		for _, g := range c.Value.Geofences {
			if inGeofence(loc, g) {
				return true
			}
		}
		return false
	case types.OpNotIn:
		if c.Value.Geofences == nil {
			return false
		}
		for _, g := range c.Value.Geofences {
			if inGeofence(loc, g) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func inGeofence(loc *types.Location, g types.Geofence) bool {
	radius := g.Radius
	if radius <= 0 {
		radius = defaultRadiusMeters
	}
	return haversine(loc.Latitude, loc.Longitude, g.Latitude, g.Longitude) <= radius
}

// haversine returns the great-circle distance in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func evalDevice(c types.Condition, dev *types.Device) bool {
	if dev == nil {
		return c.Operator == types.OpNotEquals
	}
	matches := func(s string) bool { return s == dev.ID || s == dev.Type }
	switch c.Operator {
	case types.OpEquals:
		return matches(c.Value.String)
	case types.OpNotEquals:
		return !matches(c.Value.String)
	case types.OpIn:
		for _, s := range c.Value.Strings {
			if matches(s) {
				return true
			}
		}
		return false
	case types.OpNotIn:
		if c.Value.Strings == nil {
			return false
		}
		for _, s := range c.Value.Strings {
			if matches(s) {
				return false
			}
		}
		return true
	case types.OpContains:
		return c.Value.String == trustedMarker && dev.Trusted
	default:
		return false
	}
}

func evalNetwork(c types.Condition, net *types.Network) bool {
	if net == nil {
		return c.Operator == types.OpNotEquals
	}
	switch c.Operator {
	case types.OpEquals:
		return c.Value.String == net.Type
	case types.OpNotEquals:
		return c.Value.String != net.Type
	case types.OpIn:
		for _, s := range c.Value.Strings {
			if s == net.Type {
				return true
			}
		}
		return false
	case types.OpNotIn:
		if c.Value.Strings == nil {
			return false
		}
		for _, s := range c.Value.Strings {
			if s == net.Type {
				return false
			}
		}
		return true
	case types.OpContains:
		return c.Value.String == trustedMarker && net.Trusted
	default:
		return false
	}
}

func evalUserContext(c types.Condition, activity string) bool {
	switch c.Operator {
	case types.OpEquals:
		return activity != "" && activity == c.Value.String
	case types.OpNotEquals:
		return activity != c.Value.String
	case types.OpIn:
		if activity == "" {
			return false
		}
		for _, s := range c.Value.Strings {
			if s == activity {
				return true
			}
		}
		return false
	case types.OpNotIn:
		if c.Value.Strings == nil {
			return false
		}
		for _, s := range c.Value.Strings {
			if s == activity {
				return false
			}
		}
		return true
	case types.OpMatchesPattern:
		if activity == "" {
			return false
		}
		re, err := regexp.Compile(c.Value.String)
		if err != nil {
			return false
		}
		return re.MatchString(activity)
	default:
		return false
	}
}

// ordinal sensitivity scale; index order is the severity order
var sensitivityOrder = []types.SensitivityLevel{
	types.SensitivityPublic,
	types.SensitivityInternal,
	types.SensitivityConfidential,
	types.SensitivityRestricted,
}

func sensitivityIndex(l types.SensitivityLevel) int {
	for i, s := range sensitivityOrder {
		if s == l {
			return i
		}
	}
	return -1
}

func evalSensitivity(c types.Condition) bool {
	if c.Metadata == nil {
		return false
	}
	current := sensitivityIndex(c.Metadata.Sensitivity)
	limit := sensitivityIndex(types.SensitivityLevel(c.Value.String))
	if current < 0 || limit < 0 {
		return false
	}
	switch c.Operator {
	case types.OpEquals:
		return current == limit
	case types.OpNotEquals:
		return current != limit
	case types.OpLessThan:
		// current sensitivity must not exceed the allowed maximum
		return current <= limit
	default:
		return false
	}
}

func evalPurpose(c types.Condition) bool {
	if c.Metadata == nil || c.Metadata.Purpose == "" {
		return false
	}
	switch c.Operator {
	case types.OpEquals:
		return c.Metadata.Purpose == c.Value.String
	case types.OpNotEquals:
		return c.Metadata.Purpose != c.Value.String
	case types.OpIn:
		for _, s := range c.Value.Strings {
			if s == c.Metadata.Purpose {
				return true
			}
		}
		return false
	case types.OpNotIn:
		if c.Value.Strings == nil {
			return false
		}
		for _, s := range c.Value.Strings {
			if s == c.Metadata.Purpose {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// WithinBusinessHours reports whether t falls on a weekday between 09:00
// and 17:00 (exclusive) in t's own location.
func WithinBusinessHours(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := t.Hour()
	return h >= businessHoursOpen && h < businessHoursClose
}

// BusinessHours builds a time_range condition for today's business-hours
// window in t's location. Convenience for grants that should only apply
// during the working day.
func BusinessHours(t time.Time) types.Condition {
	y, m, d := t.Date()
	start := time.Date(y, m, d, businessHoursOpen, 0, 0, 0, t.Location())
	end := time.Date(y, m, d, businessHoursClose, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
	return types.Condition{
		Name:     "business_hours",
		Type:     types.CondTimeRange,
		Operator: types.OpBetween,
		Value:    types.ConditionValue{Range: &types.TimeRange{Start: start, End: end}},
	}
}

// Describe renders a compact diagnostic for a failed condition, e.g.
// "location equals" or "device in".
func Describe(c types.Condition) string {
	return strings.TrimSpace(string(c.Type) + " " + string(c.Operator))
}
