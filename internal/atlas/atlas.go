// 包 atlas：加载完成后的只读地理上下文（风险图层、边界、办公室）与定位结果缓存
package atlas

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"dumpwatch/internal/boundary"
	"dumpwatch/internal/geo"
	"dumpwatch/internal/hazard"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"
	"dumpwatch/internal/office"

	"github.com/paulmach/orb"
	"github.com/redis/go-redis/v9"
)

// Placement：一个候选点的完整定位结果，用于生成草稿
type Placement struct {
	Lat         float64           `json:"lat"`
	Lng         float64           `json:"lng"`
	Subdivision string            `json:"subdivision"`
	Office      office.Contact    `json:"office"`
	Risk        hazard.Assessment `json:"risk"`
}

// Atlas 构造后不再修改；缓存自身并发安全
type Atlas struct {
	registry *hazard.Registry
	gate     *boundary.Gate
	offices  *office.Resolver

	lru      *geo.LRU[Placement]
	rc       *redis.Client
	redisTTL time.Duration
	redisNS  string
}

type Option func(*Atlas)

// WithLRU 进程内缓存；size ≤ 0 禁用
func WithLRU(size int, ttl time.Duration) Option {
	return func(a *Atlas) { a.lru = geo.NewLRU[Placement](size, ttl) }
}

// WithRedis 多实例共享缓存；ns 区分不同数据版本
func WithRedis(rc *redis.Client, ttl time.Duration, ns string) Option {
	return func(a *Atlas) {
		a.rc = rc
		a.redisTTL = ttl
		a.redisNS = ns
	}
}

func New(reg *hazard.Registry, gate *boundary.Gate, offices *office.Resolver, opts ...Option) *Atlas {
	a := &Atlas{registry: reg, gate: gate, offices: offices}
	for _, o := range opts {
		o(a)
	}
	if a.redisTTL <= 0 {
		a.redisTTL = time.Hour
	}
	if a.redisNS == "" {
		a.redisNS = "v1"
	}
	return a
}

// Round6 坐标保留 6 位小数（约 0.1m）
func Round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

// Locate：边界闸门 → 办公室 → 风险分类
// 约束：只缓存通过闸门的结果；越界与未就绪错误原样返回
func (a *Atlas) Locate(ctx context.Context, lat, lng float64) (Placement, error) {
	lat, lng = Round6(lat), Round6(lng)
	key := fmt.Sprintf("risk:%s:%.6f:%.6f", a.redisNS, lat, lng)
	if pl, ok := a.lru.Get(key); ok {
		metrics.AssessCacheTotal.WithLabelValues("lru", "hit").Inc()
		return pl, nil
	}
	metrics.AssessCacheTotal.WithLabelValues("lru", "miss").Inc()
	if pl, ok := a.fromRedis(ctx, key); ok {
		a.lru.Set(key, pl)
		return pl, nil
	}
	pl, err := a.locate(geo.Pt(lat, lng))
	if err != nil {
		return Placement{}, err
	}
	pl.Lat, pl.Lng = lat, lng
	a.lru.Set(key, pl)
	a.toRedis(ctx, key, pl)
	return pl, nil
}

func (a *Atlas) locate(p orb.Point) (Placement, error) {
	sub, err := a.gate.Check(p)
	if err != nil {
		return Placement{}, err
	}
	return Placement{
		Subdivision: sub,
		Office:      a.offices.Resolve(p),
		Risk:        a.registry.Classify(p),
	}, nil
}

func (a *Atlas) fromRedis(ctx context.Context, key string) (Placement, bool) {
	if a.rc == nil {
		return Placement{}, false
	}
	s, err := a.rc.Get(ctx, key).Result()
	if err != nil || s == "" {
		if err != nil && err != redis.Nil {
			logger.L().Debug("assess_cache_get_error", "err", err)
		}
		metrics.AssessCacheTotal.WithLabelValues("redis", "miss").Inc()
		return Placement{}, false
	}
	var pl Placement
	if err := json.Unmarshal([]byte(s), &pl); err != nil {
		metrics.AssessCacheTotal.WithLabelValues("redis", "miss").Inc()
		return Placement{}, false
	}
	metrics.AssessCacheTotal.WithLabelValues("redis", "hit").Inc()
	return pl, true
}

func (a *Atlas) toRedis(ctx context.Context, key string, pl Placement) {
	if a.rc == nil {
		return
	}
	b, err := json.Marshal(pl)
	if err != nil {
		return
	}
	if err := a.rc.Set(ctx, key, string(b), a.redisTTL).Err(); err != nil {
		logger.L().Debug("assess_cache_set_error", "err", err)
	}
}
