package cache

import (
	"time"

	"github.com/cascadehq/cascade/pkg/workflow"
)

// CachedDefinitionProvider wraps a definition provider with a TTL
// cache. Lookup misses and errors pass through uncached.
type CachedDefinitionProvider struct {
	inner workflow.DefinitionProvider
	cache *TTLCache
	ttl   time.Duration
}

func NewCachedDefinitionProvider(inner workflow.DefinitionProvider, ttl time.Duration, maxSize int) *CachedDefinitionProvider {
	return &CachedDefinitionProvider{
		inner: inner,
		cache: New(WithTTL(ttl), WithMaxSize(maxSize)),
		ttl:   ttl,
	}
}

func (p *CachedDefinitionProvider) GetDefinition(workflowID string) (*workflow.WorkflowDefinition, error) {
	if v, ok := p.cache.Get(workflowID); ok {
		return v.(*workflow.WorkflowDefinition), nil
	}

	def, err := p.inner.GetDefinition(workflowID)
	if err != nil {
		return nil, err
	}
	p.cache.Set(workflowID, def, p.ttl)
	return def, nil
}

// Invalidate drops one cached definition, or all of them when id is
// empty. Call after registering or deleting a definition.
func (p *CachedDefinitionProvider) Invalidate(id string) {
	if id == "" {
		p.cache.Clear()
		return
	}
	p.cache.Delete(id)
}

var _ workflow.DefinitionProvider = (*CachedDefinitionProvider)(nil)
