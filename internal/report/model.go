// 包 report：本地报告存储，以及与远端权威存储同步的控制器
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dumpwatch/internal/atlas"
	"dumpwatch/internal/errs"
	"dumpwatch/internal/hazard"
)

type Status string

const (
	StatusNew           Status = "New"
	StatusInvestigating Status = "Under Investigation"
	StatusActionPending Status = "Action Pending"
	StatusCleaned       Status = "Cleaned"
)

// Statuses 按展示顺序
var Statuses = []Status{StatusNew, StatusInvestigating, StatusActionPending, StatusCleaned}

// ParseStatus：忽略大小写与首尾空白
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errs.ErrInvalidStatus, s)
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

const (
	// CertifyThreshold：核实数达到该值即为已认证
	CertifyThreshold = 2
	CertifiedLabel   = "Verified by users"
)

type Report struct {
	ID            string      `json:"id"`
	Lat           float64     `json:"lat"`
	Lng           float64     `json:"lng"`
	WasteType     string      `json:"waste_type"`
	WasteSize     string      `json:"waste_size"`
	Description   string      `json:"description"`
	Status        Status      `json:"status"`
	Risk          hazard.Tier `json:"risk"`
	Proximity     []string    `json:"proximity"`
	VerifiedCount int         `json:"verified_count"`
	Certified     bool        `json:"certified"`
	Office        string      `json:"office"`
	OfficePhone   string      `json:"office_phone"`
	Subdivision   string      `json:"subdivision"`
	PhotoURL      string      `json:"photo_url"`
	// Certify 为认证标签，未认证为空
	Certify string `json:"certify"`
	// Time 取自报告时间戳（本地或服务端 id）
	Time time.Time `json:"time"`
	// Pending：乐观追加之后、远端确认之前为 true
	Pending bool `json:"pending"`
}

// SetVerified：核实数、认证标记与标签一并更新；小于 1 按 1 处理
func (r *Report) SetVerified(n int) {
	if n < 1 {
		n = 1
	}
	r.VerifiedCount = n
	r.Certified = n >= CertifyThreshold
	r.Certify = ""
	if r.Certified {
		r.Certify = CertifiedLabel
	}
}

var timestampLayouts = []string{IDLayout, time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"}

// ParseTimestamp：解析报告时间戳；也接受毫秒级 Unix 时间。无法解析时 ok 为 false
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func (r Report) clone() Report {
	r.Proximity = append([]string(nil), r.Proximity...)
	return r
}

type Photo struct {
	Name string
	Data []byte
}

// Attributes：用户填写的字段
type Attributes struct {
	WasteType   string `json:"waste_type"`
	WasteSize   string `json:"waste_size"`
	Description string `json:"description"`
	Photo       *Photo `json:"-"`
}

// Draft：已过边界门并完成分类、尚未入库的报告
type Draft struct {
	Placement  atlas.Placement `json:"placement"`
	Attributes Attributes      `json:"attributes"`
	gated      bool
}

// Confirmation：远端创建成功后分配的字段
type Confirmation struct {
	ID       string
	PhotoURL string
}
