package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/entitlement/internal/clock"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	"github.com/smallbiznis/entitlement/internal/usage/domain"
)

// Counters of one (account, module) share a hash tag so the index set and
// its members live in the same cluster slot.
const (
	keyUsageCounter = "usage:{%s:%s}:%s"
	keyUsageIndex   = "usage:{%s:%s}:index"
)

// KEYS[1] counter hash, KEYS[2] index set.
// ARGV: delta, limit (-1 unlimited), period anchor (unix), cadence.
// Returns {applied, value}: value is the new count, or the blocking count.
const usageAddScript = `
local exists = redis.call("EXISTS", KEYS[1])
local count = tonumber(redis.call("HGET", KEYS[1], "count") or "0")
local anchor = tonumber(redis.call("HGET", KEYS[1], "anchor") or "0")
local cadence = redis.call("HGET", KEYS[1], "cadence")

local delta = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local period = tonumber(ARGV[3])

if exists == 0 or cadence ~= ARGV[4] then
  anchor = period
end
if ARGV[4] == "calendar_month" and anchor < period then
  count = 0
  anchor = period
end

local next = count + delta
if delta > 0 and limit >= 0 and next > limit then
  return {0, count}
end
if next < 0 then
  next = 0
end

redis.call("HSET", KEYS[1], "count", next, "anchor", anchor, "cadence", ARGV[4])
redis.call("SADD", KEYS[2], KEYS[1])
return {1, next}
`

// KEYS[1] index set.
const usageResetScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, key in ipairs(members) do
  redis.call("DEL", key)
end
redis.call("DEL", KEYS[1])
return #members
`

// RedisStore evaluates every write as one Lua script, which Redis runs
// atomically per key.
type RedisStore struct {
	client *redis.Client
	clock  clock.Clock
	add    *redis.Script
	reset  *redis.Script
}

func NewRedisStore(client *redis.Client, clk clock.Clock) *RedisStore {
	return &RedisStore{
		client: client,
		clock:  clk,
		add:    redis.NewScript(usageAddScript),
		reset:  redis.NewScript(usageResetScript),
	}
}

func (s *RedisStore) Current(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence) (int64, error) {
	values, err := s.client.HMGet(ctx, counterKey(key), "count", "anchor").Result()
	if err != nil {
		return 0, err
	}
	if len(values) != 2 || values[0] == nil {
		return 0, nil
	}

	count, err := castToInt(values[0])
	if err != nil {
		return 0, err
	}
	anchor, err := castToInt(values[1])
	if err != nil {
		return 0, err
	}

	period := domain.PeriodStart(cadence, s.clock.Now()).Unix()
	if cadence == featuredomain.ResetCalendarMonth && anchor < period {
		return 0, nil
	}
	return count, nil
}

func (s *RedisStore) Add(ctx context.Context, key domain.Key, cadence featuredomain.ResetCadence, delta int64, limit *int64) (int64, error) {
	limitArg := int64(-1)
	if limit != nil {
		limitArg = *limit
	}
	period := domain.PeriodStart(cadence, s.clock.Now()).Unix()

	res, err := s.add.Run(ctx, s.client,
		[]string{counterKey(key), indexKey(key.AccountID, key.ModuleID)},
		delta, limitArg, period, string(cadence),
	).Result()
	if err != nil {
		return 0, err
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return 0, errors.New("unexpected usage script response")
	}
	applied, err := castToInt(values[0])
	if err != nil {
		return 0, err
	}
	value, err := castToInt(values[1])
	if err != nil {
		return 0, err
	}
	if applied == 0 {
		return 0, &domain.LimitReachedError{Limit: limitArg, Used: value}
	}
	return value, nil
}

func (s *RedisStore) ResetModule(ctx context.Context, accountID snowflake.ID, moduleID string) error {
	return s.reset.Run(ctx, s.client, []string{indexKey(accountID, moduleID)}).Err()
}

func counterKey(key domain.Key) string {
	return fmt.Sprintf(keyUsageCounter, key.AccountID.String(), key.ModuleID, key.FeatureKey)
}

func indexKey(accountID snowflake.ID, moduleID string) string {
	return fmt.Sprintf(keyUsageIndex, accountID.String(), moduleID)
}

func castToInt(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected redis value type %T", value)
	}
}

var _ domain.Store = (*RedisStore)(nil)
