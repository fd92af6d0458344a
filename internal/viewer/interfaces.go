package viewer

import (
	"context"

	"github.com/rpggio/interview/internal/domain/capability"
	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/sources"
)

// Resolver picks the source tier that answers a query.
type Resolver interface {
	Resolve(ctx context.Context, q query.ScopedQuery, caps capability.Set) (*sources.Resolution, error)
}
