// Package reconstruct rebuilds the state of an entity as of a version
// record and stages reverts.
package reconstruct

import (
	"context"

	"github.com/vault-md/versionable/internal/history"
	"github.com/vault-md/versionable/internal/version"
)

// Reconstructor resolves point-in-time state from a history.
type Reconstructor struct {
	registry *version.Registry
	history  *history.History
}

func New(registry *version.Registry, h *history.History) *Reconstructor {
	return &Reconstructor{registry: registry, history: h}
}

// Resolve returns the full state of entity as of target.
//
// Under the snapshot strategy this is the entity's raw state overlaid with
// target's contents. Under the diff strategy the entity's persisted
// baseline is overlaid with the initial record and then with every record
// after it, oldest first, up to and including target. Soft-deleted records
// still carry their diff and are replayed too; only force-deleted ones are
// lost. Fields no replayed record touches keep their baseline value.
func (r *Reconstructor) Resolve(ctx context.Context, entity version.Entity, target version.Record) (version.Contents, error) {
	if err := sameEntity(entity, target); err != nil {
		return version.Contents{}, err
	}

	policy, err := r.registry.Policy(target.Entity.Type)
	if err != nil {
		return version.Contents{}, err
	}

	if policy.Strategy == version.StrategySnapshot {
		return entity.RawState().Merge(target.Contents), nil
	}

	records, err := r.history.List(ctx, target.Entity, history.ListOptions{WithTrashed: true})
	if err != nil {
		return version.Contents{}, err
	}

	start := 0
	for i, rec := range records {
		if rec.IsInitial {
			start = i
			break
		}
	}

	state := entity.BaselineState().Clone()
	included := false
	for _, rec := range records[start:] {
		if target.Before(rec) {
			break
		}
		state = state.Merge(rec.Contents)
		if rec.ID == target.ID {
			included = true
		}
	}
	if !included {
		// older than the initial record
		state = state.Merge(target.Contents)
	}
	return state, nil
}

// Revert stages the state target describes onto entity and returns it.
// Nothing is persisted and no history is removed; saving the entity
// afterwards records the revert as a new version.
//
// The staged state is the entity's persisted state overlaid with target's
// contents.
func (r *Reconstructor) Revert(ctx context.Context, entity version.Entity, target version.Record) (version.Contents, error) {
	if err := sameEntity(entity, target); err != nil {
		return version.Contents{}, err
	}
	if _, err := r.registry.Policy(target.Entity.Type); err != nil {
		return version.Contents{}, err
	}

	state := entity.BaselineState().Merge(target.Contents)
	entity.ApplyState(state)
	return state, nil
}

// ResolveID loads the record with id and resolves it.
func (r *Reconstructor) ResolveID(ctx context.Context, entity version.Entity, id string) (version.Contents, error) {
	target, err := r.history.GetWithTrashed(ctx, id)
	if err != nil {
		return version.Contents{}, err
	}
	return r.Resolve(ctx, entity, *target)
}

// RevertID loads the record with id and reverts entity to it.
func (r *Reconstructor) RevertID(ctx context.Context, entity version.Entity, id string) (version.Contents, error) {
	target, err := r.history.GetWithTrashed(ctx, id)
	if err != nil {
		return version.Contents{}, err
	}
	return r.Revert(ctx, entity, *target)
}

func sameEntity(entity version.Entity, target version.Record) error {
	if entity.Ref() != target.Entity {
		return &version.MismatchedEntityError{Expected: entity.Ref(), Actual: target.Entity}
	}
	return nil
}
