package scoreboard

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	cacheKey = "scoreboard:standings"
	cacheTTL = 10 * time.Second
)

// Cache 榜单的短TTL缓存。排名是展示数据，允许几秒的陈旧。
// rdb 为 nil 时缓存关闭，一切查询直接走数据库。
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Standings 先查缓存，未命中再从数据库加载并回填
func (c *Cache) Standings(ctx context.Context, db *sql.DB) ([]Standing, error) {
	if c != nil && c.rdb != nil {
		raw, err := c.rdb.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var standings []Standing
			if err := json.Unmarshal(raw, &standings); err == nil {
				return standings, nil
			}
		} else if err != redis.Nil {
			log.Warn().Err(err).Msg("scoreboard cache read failed")
		}
	}

	standings, err := LoadStandings(ctx, db)
	if err != nil {
		return nil, err
	}

	if c != nil && c.rdb != nil {
		if raw, err := json.Marshal(standings); err == nil {
			if err := c.rdb.Set(ctx, cacheKey, raw, cacheTTL).Err(); err != nil {
				log.Warn().Err(err).Msg("scoreboard cache write failed")
			}
		}
	}
	return standings, nil
}

// Invalidate 解题加分后让缓存提前失效
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, cacheKey).Err(); err != nil {
		log.Warn().Err(err).Msg("scoreboard cache invalidate failed")
	}
}
