package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
)

const metersPerDegree = math.Pi / 180 * orb.EarthRadius

// Haversine 返回两点球面距离（米）
func Haversine(a, b orb.Point) float64 { return geo.DistanceHaversine(a, b) }

// DistanceMeters 返回点到几何的最短距离（米）
// 约束：点在面内距离为 0；线段距离在以查询点为中心的局部等距投影上计算，适用于千米级缓冲
func DistanceMeters(g orb.Geometry, p orb.Point) (float64, error) {
	if err := Validate(g); err != nil {
		return 0, err
	}
	return distance(g, p, newLocal(p)), nil
}

func distance(g orb.Geometry, p orb.Point, lp local) float64 {
	switch g := g.(type) {
	case orb.Point:
		return geo.DistanceHaversine(g, p)
	case orb.MultiPoint:
		best := math.Inf(1)
		for _, q := range g {
			best = math.Min(best, geo.DistanceHaversine(q, p))
		}
		return best
	case orb.LineString:
		return lp.path(g)
	case orb.Ring:
		if planar.RingContains(g, p) {
			return 0
		}
		return lp.path(g)
	case orb.Polygon:
		if planar.PolygonContains(g, p) {
			return 0
		}
		best := math.Inf(1)
		for _, r := range g {
			best = math.Min(best, lp.path(r))
		}
		return best
	case orb.MultiLineString:
		best := math.Inf(1)
		for _, ls := range g {
			best = math.Min(best, lp.path(ls))
		}
		return best
	case orb.MultiPolygon:
		best := math.Inf(1)
		for _, poly := range g {
			best = math.Min(best, distance(poly, p, lp))
		}
		return best
	case orb.Collection:
		best := math.Inf(1)
		for _, c := range g {
			best = math.Min(best, distance(c, p, lp))
		}
		return best
	case orb.Bound:
		return distance(g.ToPolygon(), p, lp)
	}
	return math.Inf(1)
}

// local：以查询点为原点的等距矩形投影，单位米
type local struct {
	origin orb.Point
	kx     float64
}

func newLocal(p orb.Point) local {
	return local{origin: p, kx: metersPerDegree * math.Cos(p[1]*math.Pi/180)}
}

func (lp local) project(q orb.Point) orb.Point {
	return orb.Point{(q[0] - lp.origin[0]) * lp.kx, (q[1] - lp.origin[1]) * metersPerDegree}
}

func (lp local) path(pts []orb.Point) float64 {
	if len(pts) == 1 {
		return geo.DistanceHaversine(pts[0], lp.origin)
	}
	best := math.Inf(1)
	for i := 1; i < len(pts); i++ {
		d := planar.DistanceFromSegment(lp.project(pts[i-1]), lp.project(pts[i]), orb.Point{})
		best = math.Min(best, d)
	}
	return best
}

// WithinBuffer 判定点是否落在要素的缓冲区内（距离 ≤ meters）
// 返回 *GeometryError 时调用方应跳过该要素
func WithinBuffer(f Feature, p orb.Point, meters float64) (bool, error) {
	if f.Geometry == nil {
		return false, &GeometryError{Err: errEmptyGeometry}
	}
	if err := Validate(f.Geometry); err != nil {
		return false, &GeometryError{Err: err}
	}
	// 预过滤放宽 5%，吸收 BoundPad 与局部投影之间的近似差
	if !geo.BoundPad(f.Bound(), meters*1.05+1).Contains(p) {
		return false, nil
	}
	return distance(f.Geometry, p, newLocal(p)) <= meters, nil
}
