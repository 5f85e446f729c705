package hazard

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier 风险等级，数值越大越严重
type Tier int

const (
	Low Tier = iota
	Medium
	High
	Critical
)

// Descending 为分类时的遍历顺序
var Descending = []Tier{Critical, High, Medium, Low}

var tierNames = [...]string{"Low", "Medium", "High", "Critical"}

func (t Tier) String() string {
	if t < Low || t > Critical {
		return "Tier(" + strconv.Itoa(int(t)) + ")"
	}
	return tierNames[t]
}

// ParseTier 不区分大小写；空串按 Low 处理（远端记录缺省值）
func ParseTier(s string) (Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Low, nil
	}
	for i, n := range tierNames {
		if strings.EqualFold(n, s) {
			return Tier(i), nil
		}
	}
	return Low, fmt.Errorf("unknown risk tier %q", s)
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Unit 缓冲距离单位
type Unit string

const (
	Meters     Unit = "meters"
	Kilometers Unit = "kilometers"
	Miles      Unit = "miles"
)

func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(s))) {
	case Meters, "m", "":
		return Meters, nil
	case Kilometers, "km":
		return Kilometers, nil
	case Miles, "mi":
		return Miles, nil
	}
	return "", fmt.Errorf("unknown distance unit %q", s)
}

// Suffix 用于提示文案，如 "100m"
func (u Unit) Suffix() string {
	switch u {
	case Kilometers:
		return "km"
	case Miles:
		return "mi"
	}
	return "m"
}

func (u Unit) ToMeters(d float64) float64 {
	switch u {
	case Kilometers:
		return d * 1000
	case Miles:
		return d * 1609.344
	}
	return d
}
