// 包 office：按距离为报告点分配责任办公室
package office

import (
	"dumpwatch/internal/geo"

	"github.com/paulmach/orb"
)

const (
	Unknown          = "N/A"
	DefaultRadiusKm  = 10.0
	DefaultNameProp  = "title"
	DefaultPhoneProp = "phone"
)

type Office struct {
	Point orb.Point
	Name  string
	Phone string
}

// Contact：解析结果；未命中时 Name/Phone 均为 Unknown
type Contact struct {
	Name   string  `json:"name"`
	Phone  string  `json:"phone"`
	Meters float64 `json:"distance_m,omitempty"`
}

// Resolver：KD-Tree 最近邻 + 服务半径
type Resolver struct {
	offices []Office
	idx     *geo.PointIndex
	radiusM float64
}

func NewResolver(offices []Office, radiusKm float64) *Resolver {
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	pts := make([]orb.Point, len(offices))
	for i, o := range offices {
		pts[i] = o.Point
	}
	return &Resolver{offices: offices, idx: geo.NewPointIndex(pts), radiusM: radiusKm * 1000}
}

// FromLayer：非点要素取包围盒中心；名称缺失为 Unknown，电话缺失为空串，数值电话转为十进制文本
func FromLayer(l *geo.Layer, nameProp, phoneProp string) []Office {
	if nameProp == "" {
		nameProp = DefaultNameProp
	}
	if phoneProp == "" {
		phoneProp = DefaultPhoneProp
	}
	if l == nil {
		return nil
	}
	out := make([]Office, 0, len(l.Features))
	for _, f := range l.Features {
		p, ok := f.Geometry.(orb.Point)
		if !ok {
			p = f.Bound().Center()
		}
		name := f.String(nameProp)
		if name == "" {
			name = Unknown
		}
		out = append(out, Office{Point: p, Name: name, Phone: f.String(phoneProp)})
	}
	return out
}

// Resolve 永不阻塞上报：无数据或超出半径返回 Unknown
func (r *Resolver) Resolve(p orb.Point) Contact {
	if r == nil {
		return Contact{Name: Unknown, Phone: Unknown}
	}
	i, d, ok := r.idx.Nearest(p)
	if !ok || d > r.radiusM {
		return Contact{Name: Unknown, Phone: Unknown}
	}
	o := r.offices[i]
	return Contact{Name: o.Name, Phone: o.Phone, Meters: d}
}

func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.offices)
}
