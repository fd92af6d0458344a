package mocks

import (
	"context"

	"github.com/rpggio/interview/internal/domain/query"
	"github.com/rpggio/interview/internal/sources"
	"github.com/stretchr/testify/mock"
)

// Source is a mock for sources.Source.
type Source struct {
	mock.Mock
	TierName sources.Tier
}

func (m *Source) Tier() sources.Tier {
	return m.TierName
}

func (m *Source) Query(ctx context.Context, req sources.Request) (sources.Answer, error) {
	args := m.Called(ctx, req)
	if ans, ok := args.Get(0).(sources.Answer); ok {
		return ans, args.Error(1)
	}
	return sources.Answer{}, args.Error(1)
}

// GatedSource is a mock source that draws from the rate limiter.
type GatedSource struct {
	Source
	ComponentName string
}

func (m *GatedSource) Component(query.Surface) string {
	return m.ComponentName
}

// CacheSource is a mock projection cache that records populations.
type CacheSource struct {
	Source
}

func (m *CacheSource) Populate(ctx context.Context, q query.ScopedQuery, answer sources.Answer) error {
	args := m.Called(ctx, q, answer)
	return args.Error(0)
}

// Admitter is a mock for sources.Admitter.
type Admitter struct {
	mock.Mock
}

func (m *Admitter) Admit(tenant, component string) bool {
	args := m.Called(tenant, component)
	return args.Bool(0)
}
