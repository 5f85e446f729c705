package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// PointIndex：二维 KD-Tree 最近邻，经度/纬度交替分割
// 约束：只支持最近一个点查询；距离为 Haversine（米）
type PointIndex struct {
	root *kdNode
	size int
}

type kdItem struct {
	p   orb.Point
	idx int
}

type kdNode struct {
	it kdItem
	ax int // 0:lon,1:lat
	l  *kdNode
	r  *kdNode
}

// NewPointIndex 以输入切片下标作为返回值 idx
func NewPointIndex(pts []orb.Point) *PointIndex {
	items := make([]kdItem, len(pts))
	for i, p := range pts {
		items[i] = kdItem{p: p, idx: i}
	}
	return &PointIndex{root: buildKD(items, 0), size: len(pts)}
}

func (ix *PointIndex) Len() int {
	if ix == nil {
		return 0
	}
	return ix.size
}

func buildKD(items []kdItem, depth int) *kdNode {
	if len(items) == 0 {
		return nil
	}
	ax := depth % 2
	mid := len(items) / 2
	selectNth(items, mid, ax)
	n := &kdNode{it: items[mid], ax: ax}
	n.l = buildKD(items[:mid], depth+1)
	n.r = buildKD(items[mid+1:], depth+1)
	return n
}

// 原地 nth 元素选择
func selectNth(a []kdItem, n int, ax int) {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi, (lo+hi)/2, ax)
		if p == n {
			return
		}
		if n < p {
			hi = p - 1
		} else {
			lo = p + 1
		}
	}
}

func partition(a []kdItem, lo, hi, pivot, ax int) int {
	pv := a[pivot].p[ax]
	a[pivot], a[hi] = a[hi], a[pivot]
	i := lo
	for j := lo; j < hi; j++ {
		if a[j].p[ax] < pv {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}

// Nearest 返回最近点的下标与距离（米）；空索引返回 ok=false
func (ix *PointIndex) Nearest(p orb.Point) (idx int, meters float64, ok bool) {
	if ix == nil || ix.root == nil {
		return 0, 0, false
	}
	best := -1
	bestD := math.MaxFloat64
	var dfs func(n *kdNode)
	dfs = func(n *kdNode) {
		if n == nil {
			return
		}
		d := geo.DistanceHaversine(p, n.it.p)
		if d < bestD || (d == bestD && n.it.idx < best) {
			bestD = d
			best = n.it.idx
		}
		key, split := p[n.ax], n.it.p[n.ax]
		first, second := n.l, n.r
		if key >= split {
			first, second = n.r, n.l
		}
		dfs(first)
		// 分割平面距离小于当前最优时才需要检查另一侧
		if axisGap(p, split, n.ax, bestD) <= bestD {
			dfs(second)
		}
	}
	dfs(ix.root)
	return best, bestD, true
}

// axisGap：查询点到分割平面的距离下界（米）；经度方向按可能到达的最高纬度收缩
func axisGap(p orb.Point, split float64, ax int, best float64) float64 {
	if ax == 1 {
		return math.Abs(p[1]-split) * metersPerDegree
	}
	lat := math.Abs(p[1]) + best/metersPerDegree
	if lat >= 90 {
		return 0
	}
	return math.Abs(p[0]-split) * metersPerDegree * math.Cos(lat*math.Pi/180)
}
