package cache

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/smallbiznis/entitlement/internal/config"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"go.uber.org/fx"
)

const (
	defaultSize = 512
	defaultTTL  = time.Minute
)

var Module = fx.Module("cache",
	fx.Provide(NewFromConfig),
)

// FeatureSet is a tier's definitions keyed by feature key, tagged with the
// tier revision they were read at.
type FeatureSet struct {
	Revision int64
	Features map[string]featuredomain.FeatureDefinition
}

// NewFeatureSet indexes defs. All rows of a tier share one revision; an empty
// set takes the tier's revision.
func NewFeatureSet(defs []featuredomain.FeatureDefinition, tierRevision int64) FeatureSet {
	set := FeatureSet{
		Revision: tierRevision,
		Features: make(map[string]featuredomain.FeatureDefinition, len(defs)),
	}
	for _, def := range defs {
		set.Features[def.Key] = def
		if def.Revision > set.Revision {
			set.Revision = def.Revision
		}
	}
	return set
}

// FeatureSetCache holds tier feature sets. An entry only satisfies a lookup
// for the same or an older tier revision, so a replaced set is never mixed
// with the set it replaced.
type FeatureSetCache interface {
	Get(tierID snowflake.ID, revision int64) (FeatureSet, bool)
	Set(tierID snowflake.ID, set FeatureSet)
	Invalidate(tierID snowflake.ID)
}

type featureSetCache struct {
	entries *lru.LRU[string, FeatureSet]
}

func NewFeatureSetCache(size int, ttl time.Duration) FeatureSetCache {
	if size <= 0 {
		size = defaultSize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &featureSetCache{entries: lru.NewLRU[string, FeatureSet](size, nil, ttl)}
}

func NewFromConfig(cfg config.Config) FeatureSetCache {
	return NewFeatureSetCache(cfg.Catalog.CacheSize, cfg.Catalog.CacheTTL)
}

func (c *featureSetCache) Get(tierID snowflake.ID, revision int64) (FeatureSet, bool) {
	set, ok := c.entries.Get(cacheKey(tierID.String()))
	if !ok || set.Revision < revision {
		return FeatureSet{}, false
	}
	return set, true
}

func (c *featureSetCache) Set(tierID snowflake.ID, set FeatureSet) {
	key := cacheKey(tierID.String())
	if current, ok := c.entries.Peek(key); ok && current.Revision > set.Revision {
		return
	}
	c.entries.Add(key, set)
}

func (c *featureSetCache) Invalidate(tierID snowflake.ID) {
	c.entries.Remove(cacheKey(tierID.String()))
}

func cacheKey(parts ...string) string {
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		values = append(values, strings.ToLower(trimmed))
	}
	return strings.Join(values, "|")
}
