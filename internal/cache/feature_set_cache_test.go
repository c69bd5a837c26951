package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitDef(key string, limit, revision int64) featuredomain.FeatureDefinition {
	return featuredomain.FeatureDefinition{
		Key:        key,
		Kind:       featuredomain.KindLimit,
		LimitValue: &limit,
		Revision:   revision,
	}
}

func TestFeatureSetCache_RevisionGate(t *testing.T) {
	c := NewFeatureSetCache(8, time.Minute)
	tierID := snowflake.ID(42)

	c.Set(tierID, NewFeatureSet([]featuredomain.FeatureDefinition{limitDef("employees", 5, 3)}, 3))

	set, ok := c.Get(tierID, 3)
	require.True(t, ok)
	assert.Equal(t, int64(5), *set.Features["employees"].LimitValue)

	_, ok = c.Get(tierID, 2)
	assert.True(t, ok, "older tier revision is served by a newer set")

	_, ok = c.Get(tierID, 4)
	assert.False(t, ok, "a newer tier revision must miss")
}

func TestFeatureSetCache_SetKeepsNewest(t *testing.T) {
	c := NewFeatureSetCache(8, time.Minute)
	tierID := snowflake.ID(7)

	c.Set(tierID, NewFeatureSet([]featuredomain.FeatureDefinition{limitDef("employees", 10, 5)}, 5))
	c.Set(tierID, NewFeatureSet([]featuredomain.FeatureDefinition{limitDef("employees", 5, 4)}, 4))

	set, ok := c.Get(tierID, 5)
	require.True(t, ok)
	assert.Equal(t, int64(10), *set.Features["employees"].LimitValue)

	c.Invalidate(tierID)
	_, ok = c.Get(tierID, 0)
	assert.False(t, ok)
}

func TestNewFeatureSet_EmptyTakesTierRevision(t *testing.T) {
	set := NewFeatureSet(nil, 9)
	assert.Equal(t, int64(9), set.Revision)
	assert.Empty(t, set.Features)
}
