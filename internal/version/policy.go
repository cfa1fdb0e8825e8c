package version

import (
	"fmt"
	"slices"
	"strings"
)

// Strategy selects what a non-initial record stores.
type Strategy string

const (
	// StrategyDiff stores only the changed fields.
	StrategyDiff Strategy = "diff"
	// StrategySnapshot stores the full filtered state.
	StrategySnapshot Strategy = "snapshot"
)

// ParseStrategy accepts "diff" or "snapshot" in any case.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyDiff:
		return StrategyDiff, nil
	case StrategySnapshot:
		return StrategySnapshot, nil
	default:
		return "", fmt.Errorf("invalid strategy: %s (valid values: diff, snapshot)", value)
	}
}

func (s Strategy) Valid() bool {
	return s == StrategyDiff || s == StrategySnapshot
}

// FieldFilter restricts which fields are versioned. A non-empty Include
// list is applied first, then Exclude removes fields from what remains.
type FieldFilter struct {
	Include []string `mapstructure:"include" json:"include,omitempty"`
	Exclude []string `mapstructure:"exclude" json:"exclude,omitempty"`
}

// Apply returns the filtered copy of c.
func (f FieldFilter) Apply(c Contents) Contents {
	out := c
	if len(f.Include) > 0 {
		out = out.Only(f.Include...)
	} else {
		out = out.Clone()
	}
	for _, key := range f.Exclude {
		out.Delete(key)
	}
	return out
}

// Allows reports whether a single field survives the filter.
func (f FieldFilter) Allows(field string) bool {
	if len(f.Include) > 0 && !slices.Contains(f.Include, field) {
		return false
	}
	return !slices.Contains(f.Exclude, field)
}

// Policy is the per-entity-type versioning configuration.
type Policy struct {
	Strategy Strategy
	Filter   FieldFilter
	// KeepVersions bounds retained non-initial records; zero or less keeps all.
	KeepVersions int
	// ForceDeleteVersions makes retention trimming hard-delete records.
	ForceDeleteVersions bool
}

// DefaultPolicy returns the diff strategy with no filter and no retention.
func DefaultPolicy() Policy {
	return Policy{Strategy: StrategyDiff}
}

// ShouldRecord reports whether a change is worth a record: filtered
// changes or explicit overrides must be non-empty.
func (p Policy) ShouldRecord(changes, overrides Contents) bool {
	return !p.Filter.Apply(changes).IsEmpty() || !overrides.IsEmpty()
}

// Payload computes the contents of a non-initial record for entity. The
// second return is false when there is nothing to record.
func (p Policy) Payload(entity Entity, overrides Contents) (Contents, bool) {
	changes := p.Filter.Apply(entity.ChangeSet())
	if changes.IsEmpty() && overrides.IsEmpty() {
		return Contents{}, false
	}
	if p.Strategy == StrategySnapshot {
		return p.Filter.Apply(entity.RawState()).Merge(overrides), true
	}
	return changes.Merge(overrides), true
}

// InitialPayload is the filtered full state recorded when an entity is
// created, regardless of strategy.
func (p Policy) InitialPayload(entity Entity, overrides Contents) Contents {
	return p.Filter.Apply(entity.RawState()).Merge(overrides)
}
