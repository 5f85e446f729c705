package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Contains：面状几何的点包含判定（洞内视为不包含）；点/线几何恒为 false
func Contains(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	case orb.Collection:
		for _, c := range g {
			if Contains(c, p) {
				return true
			}
		}
	}
	return false
}

// Contains 先做包围盒过滤再做精确判定
func (f Feature) Contains(p orb.Point) bool {
	if f.Geometry == nil || !f.Bound().Contains(p) {
		return false
	}
	return Contains(f.Geometry, p)
}

// FirstContaining 返回图层中第一个包含该点的要素
func (l *Layer) FirstContaining(p orb.Point) (Feature, bool) {
	if l == nil {
		return Feature{}, false
	}
	for _, f := range l.Features {
		if f.Contains(p) {
			return f, true
		}
	}
	return Feature{}, false
}
