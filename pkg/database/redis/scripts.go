package redis

import redisV9 "github.com/redis/go-redis/v9"

// KEYS[1] user hash, KEYS[2] pending partition hash
// ARGV[1] item field, ARGV[2] pair field, ARGV[3] stamp field, ARGV[4] unix ms
//
// The stamp only moves forward, so the partition keeps the time of the
// latest toggle it recorded for the pair.
const stampLua = `
local function stamp(key, field, at)
  local cur = tonumber(redis.call('HGET', key, field) or '0')
  if tonumber(at) > cur then
    redis.call('HSET', key, field, at)
  end
end
`

var (
	likeScript = redisV9.NewScript(stampLua + `
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
  return -1
end
redis.call('HSET', KEYS[1], ARGV[1], 1)
redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
stamp(KEYS[2], ARGV[3], ARGV[4])
return 1
`)

	unlikeScript = redisV9.NewScript(stampLua + `
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
  return -1
end
redis.call('HDEL', KEYS[1], ARGV[1])
redis.call('HINCRBY', KEYS[2], ARGV[2], -1)
stamp(KEYS[2], ARGV[3], ARGV[4])
return 1
`)

	// Rollbacks only touch the partition when they actually undo the
	// record, so a toggle that raced in after the failed one is kept.
	rollbackLikeScript = redisV9.NewScript(stampLua + `
if redis.call('HDEL', KEYS[1], ARGV[1]) == 1 then
  redis.call('HINCRBY', KEYS[2], ARGV[2], -1)
  stamp(KEYS[2], ARGV[3], ARGV[4])
  return 1
end
return 0
`)

	rollbackUnlikeScript = redisV9.NewScript(stampLua + `
if redis.call('HSETNX', KEYS[1], ARGV[1], 1) == 1 then
  redis.call('HINCRBY', KEYS[2], ARGV[2], 1)
  stamp(KEYS[2], ARGV[3], ARGV[4])
  return 1
end
return 0
`)

	// KEYS[1] pending partition, KEYS[2] claim key
	claimScript = redisV9.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('RENAME', KEYS[1], KEYS[2])
return 1
`)
)
