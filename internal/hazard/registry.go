package hazard

import (
	"fmt"

	"dumpwatch/internal/geo"
)

// Category：一类敏感要素及其缓冲距离与风险等级；加载后只读
type Category struct {
	ID       string
	Label    string
	Distance float64
	Unit     Unit
	Tier     Tier
	Layer    *geo.Layer
}

// Meters 返回以米计的缓冲距离
func (c Category) Meters() float64 { return c.Unit.ToMeters(c.Distance) }

// Message 形如 "Near Hospital (250m, Critical Risk)"
func (c Category) Message() string {
	return fmt.Sprintf("Near %s (%s%s, %s Risk)", c.Label, formatDistance(c.Distance), c.Unit.Suffix(), c.Tier)
}

// Registry：按等级分组的类别表
// 约束：Layer 为 nil 表示该图层加载失败，分类时视为无要素
type Registry struct {
	cats   []Category
	byTier map[Tier][]Category
}

func NewRegistry(cats []Category) (*Registry, error) {
	r := &Registry{byTier: make(map[Tier][]Category)}
	seen := make(map[string]bool, len(cats))
	for _, c := range cats {
		if c.ID == "" {
			return nil, fmt.Errorf("hazard category without id")
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate hazard category %q", c.ID)
		}
		if c.Distance <= 0 {
			return nil, fmt.Errorf("hazard category %q: distance must be positive", c.ID)
		}
		if c.Tier < Low || c.Tier > Critical {
			return nil, fmt.Errorf("hazard category %q: invalid tier %d", c.ID, c.Tier)
		}
		seen[c.ID] = true
		r.cats = append(r.cats, c)
		r.byTier[c.Tier] = append(r.byTier[c.Tier], c)
	}
	return r, nil
}

func (r *Registry) Categories() []Category {
	return append([]Category(nil), r.cats...)
}

func (r *Registry) ByTier(t Tier) []Category { return r.byTier[t] }

// Features 返回全部已加载要素数
func (r *Registry) Features() int {
	n := 0
	for _, c := range r.cats {
		n += c.Layer.Len()
	}
	return n
}
