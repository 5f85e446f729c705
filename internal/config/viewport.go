package config

import (
	"net/url"
	"strconv"
)

// Viewport：地图初始视野，仅用于展示，不会产生报告
type Viewport struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

var DefaultViewport = Viewport{Lat: 7.8731, Lng: 80.7718, Zoom: 8}

const focusZoom = 14

// ParseViewport：lat/lng 同时有效才生效，zoom 缺省 14；否则返回默认视野
func ParseViewport(q url.Values) Viewport {
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lng, err2 := strconv.ParseFloat(q.Get("lng"), 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return DefaultViewport
	}
	v := Viewport{Lat: lat, Lng: lng, Zoom: focusZoom}
	if z, err := strconv.Atoi(q.Get("zoom")); err == nil && z >= 0 && z <= 22 {
		v.Zoom = z
	}
	return v
}
