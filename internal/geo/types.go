package geo

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// CoordOrder 声明数据源坐标轴顺序；GeoJSON 规范为经度在前，个别发布方为纬度在前
type CoordOrder string

const (
	LonLat CoordOrder = "lonlat"
	LatLon CoordOrder = "latlon"
)

// ParseCoordOrder：空值视为 lonlat
func ParseCoordOrder(s string) (CoordOrder, error) {
	switch CoordOrder(s) {
	case "", LonLat:
		return LonLat, nil
	case LatLon:
		return LatLon, nil
	}
	return "", fmt.Errorf("unknown coordinate order %q", s)
}

// Source：一个独立拉取的 FeatureCollection（本地路径或 http(s) URL）
type Source struct {
	Name     string
	Location string
	Order    CoordOrder
}

// Pt 按 (lat, lng) 构造点；orb 内部为 [lon, lat]
func Pt(lat, lng float64) orb.Point { return orb.Point{lng, lat} }

// Feature：几何与属性；bound 在构造时预计算，用于包围盒快速过滤
type Feature struct {
	Geometry orb.Geometry
	Props    geojson.Properties

	bound    orb.Bound
	hasBound bool
}

func NewFeature(g orb.Geometry, props geojson.Properties) Feature {
	f := Feature{Geometry: g, Props: props}
	if g != nil {
		f.bound = g.Bound()
		f.hasBound = true
	}
	return f
}

func (f Feature) Bound() orb.Bound {
	if f.hasBound || f.Geometry == nil {
		return f.bound
	}
	return f.Geometry.Bound()
}

// String 属性按字符串取值；数值按最短十进制表示，缺失返回空串
func (f Feature) String(key string) string {
	return PropString(f.Props, key)
}

// Layer：加载后的只读图层
type Layer struct {
	Name     string
	Features []Feature
	Skipped  int
}

func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Features)
}

// GeometryError：单个要素的几何无法处理；只在加载与分类内部出现，不向调用方传播
type GeometryError struct {
	Layer string
	Index int
	Err   error
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("geometry fault in %s[%d]: %v", e.Layer, e.Index, e.Err)
}

func (e *GeometryError) Unwrap() error { return e.Err }
