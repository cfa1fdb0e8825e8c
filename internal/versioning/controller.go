// Package versioning turns entity lifecycle events into version records.
package versioning

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/logger"
	"github.com/vault-md/versionable/internal/metrics"
	"github.com/vault-md/versionable/internal/version"
)

const (
	eventCreated = "created"
	eventUpdated = "updated"
	eventDeleted = "deleted"
	eventManual  = "manual"
)

// Controller records versions for entity lifecycle events and applies
// retention after each append.
type Controller struct {
	registry *version.Registry
	history  *history.History
	keep     int
	now      func() time.Time
	log      *logger.Logger
	metrics  *metrics.Metrics
	disabled *sync.Map // entity type -> *atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithKeepVersions sets the retention count used when a policy sets none.
func WithKeepVersions(keep int) Option {
	return func(c *Controller) {
		c.keep = keep
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

func New(registry *version.Registry, h *history.History, opts ...Option) *Controller {
	c := &Controller{
		registry: registry,
		history:  h,
		now:      time.Now,
		log:      logger.Nop(),
		disabled: &sync.Map{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.Component("versioning")
	return c
}

// WithHistory returns a controller sharing configuration and toggles but
// writing through h, typically a history bound to a host transaction.
func (c *Controller) WithHistory(h *history.History) *Controller {
	return &Controller{
		registry: c.registry,
		history:  h,
		keep:     c.keep,
		now:      c.now,
		log:      c.log,
		metrics:  c.metrics,
		disabled: c.disabled,
	}
}

// History returns the history the controller writes to.
func (c *Controller) History() *history.History {
	return c.history
}

func (c *Controller) Registry() *version.Registry {
	return c.registry
}

// CreateOption configures CreateVersion.
type CreateOption func(*createOptions)

type createOptions struct {
	at time.Time
}

// At back-dates the record created by CreateVersion.
func At(t time.Time) CreateOption {
	return func(o *createOptions) {
		o.at = t
	}
}

// Created captures the initial record of a new entity: the full filtered
// state, whatever the strategy. It does nothing when versioning is
// suspended for the entity type or an initial record already exists.
func (c *Controller) Created(ctx context.Context, entity version.Entity) (*version.Record, error) {
	ref := entity.Ref()
	policy, err := c.registry.Policy(ref.Type)
	if err != nil {
		return nil, err
	}
	if !c.active(ctx, ref.Type) {
		c.skip(ref, eventCreated, "suspended")
		return nil, nil
	}

	var created *version.Record
	err = c.history.Store().Atomic(ctx, func(tx history.Store) error {
		existing, err := tx.List(ctx, ref, history.ListOptions{WithTrashed: true})
		if err != nil {
			return err
		}
		for _, r := range existing {
			if r.IsInitial {
				return nil
			}
		}

		rec := &version.Record{
			Entity:    ref,
			UserID:    c.attribution(ctx, entity),
			Contents:  policy.InitialPayload(entity, version.NewContents()),
			CreatedAt: c.now(),
			IsInitial: true,
		}
		if err := c.history.WithStore(tx).Append(ctx, rec); err != nil {
			return fmt.Errorf("append initial version: %w", err)
		}
		created = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created == nil {
		c.skip(ref, eventCreated, "initial_exists")
		return nil, nil
	}

	c.metrics.RecordCreated(ref.Type, eventCreated)
	c.log.Debug().Str("entity", ref.String()).Str("version", created.ID).Msg("initial version recorded")
	return created, nil
}

// Updated appends a record when the filtered change set is non-empty and
// then trims the history to the retention count. It returns nil when
// there was nothing to record.
func (c *Controller) Updated(ctx context.Context, entity version.Entity) (*version.Record, error) {
	return c.record(ctx, entity, eventUpdated)
}

// Deleted handles entity removal. A forced delete purges the entity's
// whole history; a soft delete is recorded like an update.
func (c *Controller) Deleted(ctx context.Context, entity version.Entity, force bool) (*version.Record, error) {
	ref := entity.Ref()
	if !force {
		return c.record(ctx, entity, eventDeleted)
	}
	if _, err := c.registry.Policy(ref.Type); err != nil {
		return nil, err
	}

	purged, err := c.history.Purge(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("purge versions: %w", err)
	}
	c.metrics.RecordPurged(ref.Type, purged)
	c.log.Debug().Str("entity", ref.String()).Int64("purged", purged).Msg("history purged")
	return nil, nil
}

// CreateVersion records the entity's pending changes merged with overrides
// on demand. Suspension and per-type toggles do not apply.
func (c *Controller) CreateVersion(ctx context.Context, entity version.Entity, overrides version.Contents, opts ...CreateOption) (*version.Record, error) {
	var o createOptions
	for _, opt := range opts {
		opt(&o)
	}
	return c.append(ctx, entity, overrides, o.at, eventManual)
}

func (c *Controller) record(ctx context.Context, entity version.Entity, event string) (*version.Record, error) {
	ref := entity.Ref()
	if _, err := c.registry.Policy(ref.Type); err != nil {
		return nil, err
	}
	if !c.active(ctx, ref.Type) {
		c.skip(ref, event, "suspended")
		return nil, nil
	}
	return c.append(ctx, entity, version.NewContents(), time.Time{}, event)
}

func (c *Controller) append(ctx context.Context, entity version.Entity, overrides version.Contents, at time.Time, event string) (*version.Record, error) {
	ref := entity.Ref()
	policy, err := c.registry.Policy(ref.Type)
	if err != nil {
		return nil, err
	}

	payload, ok := policy.Payload(entity, overrides)
	if !ok {
		c.skip(ref, event, "no_changes")
		return nil, nil
	}
	if at.IsZero() {
		at = c.now()
	}

	rec := &version.Record{
		Entity:    ref,
		UserID:    c.attribution(ctx, entity),
		Contents:  payload,
		CreatedAt: at,
	}
	keep := c.keepFor(policy)
	var trimmed int64
	err = c.history.Store().Atomic(ctx, func(tx history.Store) error {
		h := c.history.WithStore(tx)
		if err := precedesInitial(ctx, tx, rec); err != nil {
			return err
		}
		if err := h.Append(ctx, rec); err != nil {
			return fmt.Errorf("append version: %w", err)
		}
		n, err := h.Trim(ctx, ref, keep, policy.ForceDeleteVersions)
		if err != nil {
			return fmt.Errorf("trim versions: %w", err)
		}
		trimmed = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.metrics.RecordCreated(ref.Type, event)
	c.metrics.RecordTrimmed(ref.Type, trimmed)
	c.log.Debug().
		Str("entity", ref.String()).
		Str("version", rec.ID).
		Str("event", event).
		Str("strategy", string(policy.Strategy)).
		Int64("trimmed", trimmed).
		Msg("version recorded")
	return rec, nil
}

// precedesInitial refuses records dated before the entity's initial
// record, which must stay the earliest record of the history.
func precedesInitial(ctx context.Context, tx history.Store, rec *version.Record) error {
	records, err := tx.List(ctx, rec.Entity, history.ListOptions{WithTrashed: true})
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.IsInitial && rec.CreatedAt.Before(r.CreatedAt) {
			return &version.PrecedesInitialError{Entity: rec.Entity, At: rec.CreatedAt, InitialAt: r.CreatedAt}
		}
	}
	return nil
}

func (c *Controller) keepFor(policy version.Policy) int {
	if policy.KeepVersions != 0 {
		return policy.KeepVersions
	}
	return c.keep
}

func (c *Controller) attribution(ctx context.Context, entity version.Entity) *string {
	if id := entity.AttributedUserID(); id != nil {
		return id
	}
	if id, ok := UserIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

func (c *Controller) skip(ref version.EntityRef, event, reason string) {
	c.metrics.RecordSkipped(ref.Type, reason)
	c.log.Debug().Str("entity", ref.String()).Str("event", event).Str("reason", reason).Msg("version skipped")
}

func (c *Controller) active(ctx context.Context, entityType string) bool {
	return c.Enabled(entityType) && !Suspended(ctx, entityType)
}

func (c *Controller) toggle(entityType string) *atomic.Bool {
	if v, ok := c.disabled.Load(entityType); ok {
		return v.(*atomic.Bool)
	}
	v, _ := c.disabled.LoadOrStore(entityType, new(atomic.Bool))
	return v.(*atomic.Bool)
}

// Disable stops lifecycle events of entityType from creating records
// until Enable is called.
func (c *Controller) Disable(entityType string) {
	c.toggle(entityType).Store(true)
}

func (c *Controller) Enable(entityType string) {
	c.toggle(entityType).Store(false)
}

// Enabled reports whether lifecycle events of entityType create records.
func (c *Controller) Enabled(entityType string) bool {
	v, ok := c.disabled.Load(entityType)
	if !ok {
		return true
	}
	return !v.(*atomic.Bool).Load()
}

// WithVersioningDisabled runs fn with entityType disabled and restores the
// previous toggle on every exit path, including a panic in fn.
func (c *Controller) WithVersioningDisabled(entityType string, fn func() error) error {
	flag := c.toggle(entityType)
	previous := flag.Swap(true)
	defer flag.Store(previous)
	return fn()
}

// WithoutVersioning runs fn with a context that suspends versioning for
// the listed entity types, or for all types when none are listed.
func (c *Controller) WithoutVersioning(ctx context.Context, entityTypes []string, fn func(context.Context) error) error {
	return fn(Suspend(ctx, entityTypes...))
}
