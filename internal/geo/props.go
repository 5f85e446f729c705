package geo

import (
	"strconv"

	"github.com/paulmach/orb/geojson"
)

// PropString：字符串原样返回，数值与布尔转为文本，nil 或缺失返回空串
func PropString(p geojson.Properties, key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
