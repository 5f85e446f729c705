package hazard

import (
	"errors"
	"sort"
	"strconv"

	"dumpwatch/internal/geo"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"

	"github.com/paulmach/orb"
)

// NoHazardMessage 未命中任何缓冲区时的唯一提示
const NoHazardMessage = "No specific sensitive areas detected within buffer zones. (Low Risk)"

// Assessment：分类结果，Messages 已去重并按字典序排序
type Assessment struct {
	Tier     Tier     `json:"tier"`
	Messages []string `json:"messages"`
}

// Classify 计算点的邻近风险
// 按 Critical→Low 遍历类别与要素，取命中的最高等级；坏几何跳过并记录，不中断分类
func (r *Registry) Classify(p orb.Point) Assessment {
	tier := Low
	matched := false
	seen := make(map[string]struct{})
	var msgs []string
	for _, t := range Descending {
		for _, c := range r.byTier[t] {
			if !r.near(c, p) {
				continue
			}
			if !matched || c.Tier > tier {
				tier = c.Tier
			}
			matched = true
			m := c.Message()
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				msgs = append(msgs, m)
			}
		}
	}
	if !matched {
		metrics.ClassificationsTotal.WithLabelValues(Low.String()).Inc()
		return Assessment{Tier: Low, Messages: []string{NoHazardMessage}}
	}
	sort.Strings(msgs)
	metrics.ClassificationsTotal.WithLabelValues(tier.String()).Inc()
	return Assessment{Tier: tier, Messages: msgs}
}

func (r *Registry) near(c Category, p orb.Point) bool {
	if c.Layer == nil {
		return false
	}
	meters := c.Meters()
	for i, f := range c.Layer.Features {
		ok, err := geo.WithinBuffer(f, p, meters)
		if err != nil {
			var ge *geo.GeometryError
			if errors.As(err, &ge) {
				ge.Layer, ge.Index = c.ID, i
			}
			logger.L().Warn("hazard_geometry_skipped", "category", c.ID, "index", i, "err", err)
			metrics.GeometryFaultsTotal.WithLabelValues(c.ID).Inc()
			continue
		}
		if ok {
			return true
		}
	}
	return false
}

func formatDistance(d float64) string { return strconv.FormatFloat(d, 'f', -1, 64) }
