// 包 boundary：判断坐标能否上报，以及所属的行政分区
package boundary

import (
	"dumpwatch/internal/errs"
	"dumpwatch/internal/geo"

	"github.com/paulmach/orb"
)

// Unknown：查找无结果时的占位值
const Unknown = "N/A"

// DefaultNameProperty：分区图层中的名称属性
const DefaultNameProperty = "DSD_N"

// Gate：省界多边形决定能否上报；分区多边形只用于命名
type Gate struct {
	province     *geo.Layer
	subdivisions *geo.Layer
	nameProp     string
}

// NewGate：图层可为 nil
// 约束：省界缺失时 Check 一律返回 ErrDataNotReady；分区缺失只影响命名，不阻断上报
func NewGate(province, subdivisions *geo.Layer, nameProp string) *Gate {
	if nameProp == "" {
		nameProp = DefaultNameProperty
	}
	return &Gate{province: province, subdivisions: subdivisions, nameProp: nameProp}
}

// Ready：省界图层可用
func (g *Gate) Ready() bool { return g != nil && g.province.Len() > 0 }

// Check：省界外返回 ErrOutOfBounds；省界内返回分区名，未命中分区为 Unknown
func (g *Gate) Check(p orb.Point) (string, error) {
	if !g.Ready() {
		return "", errs.ErrDataNotReady
	}
	if _, ok := g.province.FirstContaining(p); !ok {
		return "", errs.ErrOutOfBounds
	}
	return g.Subdivision(p), nil
}

// Subdivision：只命名，不做省界判断
func (g *Gate) Subdivision(p orb.Point) string {
	f, ok := g.subdivisions.FirstContaining(p)
	if !ok {
		return Unknown
	}
	if name := f.String(g.nameProp); name != "" {
		return name
	}
	return Unknown
}
