package versioning

import (
	"context"
	"strings"
)

type contextKey string

const (
	suspensionKey contextKey = "versioningSuspended"
	userIDKey     contextKey = "versioningUserID"
)

type suspension struct {
	all   bool
	types map[string]struct{}
}

// Suspend returns a context in which no records are created for the given
// entity types, or for every type when none are given. Suspensions nest:
// the child context suspends everything its parent did.
func Suspend(ctx context.Context, entityTypes ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, _ := ctx.Value(suspensionKey).(*suspension)
	next := &suspension{all: len(entityTypes) == 0, types: map[string]struct{}{}}
	if parent != nil {
		next.all = next.all || parent.all
		for t := range parent.types {
			next.types[t] = struct{}{}
		}
	}
	for _, t := range entityTypes {
		next.types[t] = struct{}{}
	}
	return context.WithValue(ctx, suspensionKey, next)
}

// Suspended reports whether ctx suspends versioning for entityType.
func Suspended(ctx context.Context, entityType string) bool {
	if ctx == nil {
		return false
	}
	s, ok := ctx.Value(suspensionKey).(*suspension)
	if !ok || s == nil {
		return false
	}
	if s.all {
		return true
	}
	_, ok = s.types[entityType]
	return ok
}

// ContextWithUserID returns a context that attributes new records to id.
func ContextWithUserID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the attributed user, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(id) == "" {
		return "", false
	}
	return id, true
}
