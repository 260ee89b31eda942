package audit

import (
	"context"
	"errors"
	"strings"
)

// ResourceKind identifies a family of resources an activity can target.
type ResourceKind string

const (
	KindUser ResourceKind = "user"
	KindRole ResourceKind = "role"
)

var ErrUnknownKind = errors.New("unknown resource kind")

// Target is a resolved audit target. Fields is the entity in its JSON
// object form and feeds update snapshots.
type Target struct {
	Kind    ResourceKind
	ID      string
	Summary string
	Fields  map[string]any
}

// TargetResolver loads the entity with the given id. Implementations fill
// Summary and Fields; Kind and ID are set by the registry.
type TargetResolver func(ctx context.Context, id string) (*Target, error)

// TargetRegistry maps resource kinds, and the URL segments that name their
// collections, to resolvers.
type TargetRegistry struct {
	resolvers map[ResourceKind]TargetResolver
	segments  map[string]ResourceKind
}

func NewTargetRegistry() *TargetRegistry {
	return &TargetRegistry{
		resolvers: make(map[ResourceKind]TargetResolver),
		segments:  make(map[string]ResourceKind),
	}
}

// Register binds kind to resolver and to the collection segment used in paths.
func (r *TargetRegistry) Register(kind ResourceKind, segment string, resolver TargetResolver) {
	r.resolvers[kind] = resolver
	r.segments[segment] = kind
}

// KindForPath finds the first registered collection segment in path.
func (r *TargetRegistry) KindForPath(path string) (ResourceKind, bool) {
	for _, seg := range strings.Split(path, "/") {
		if kind, ok := r.segments[seg]; ok {
			return kind, true
		}
	}
	return "", false
}

// Resolve looks up the entity of kind with id.
func (r *TargetRegistry) Resolve(ctx context.Context, kind ResourceKind, id string) (*Target, error) {
	resolver, ok := r.resolvers[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	t, err := resolver(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("resolver returned no target")
	}
	t.Kind = kind
	t.ID = id
	return t, nil
}
