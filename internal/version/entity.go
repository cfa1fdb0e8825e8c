package version

import "context"

// Entity is the contract between the history engine and the host
// persistence layer. The engine never writes host state itself; it stages
// reconstructed state through ApplyState and the caller persists it.
type Entity interface {
	Ref() EntityRef
	// ChangeSet returns the fields modified since the last persist.
	ChangeSet() Contents
	// RawState returns every current field value.
	RawState() Contents
	// BaselineState returns the field values as last persisted.
	BaselineState() Contents
	// AttributedUserID returns the acting user, or nil.
	AttributedUserID() *string
	ApplyState(Contents)
}

// Loader fetches an entity by reference from the host layer.
type Loader interface {
	Load(ctx context.Context, ref EntityRef) (Entity, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, ref EntityRef) (Entity, error)

func (f LoaderFunc) Load(ctx context.Context, ref EntityRef) (Entity, error) {
	return f(ctx, ref)
}
