package remote

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"dumpwatch/internal/hazard"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/report"
)

// envelope 覆盖全部操作的响应字段
type envelope struct {
	Result    string     `json:"result"`
	Message   string     `json:"message"`
	Data      []record   `json:"data"`
	Timestamp flexString `json:"timestamp"`
	PhotoURL  string     `json:"photoUrl"`
	NewCount  flexNumber `json:"newCount"`
}

type record struct {
	Timestamp              flexString `json:"timestamp"`
	Latitude               flexNumber `json:"latitude"`
	Longitude              flexNumber `json:"longitude"`
	WType                  flexString `json:"wtype"`
	WSize                  flexString `json:"wsize"`
	Description            flexString `json:"description"`
	PhotoURL               flexString `json:"photourl"`
	Status                 flexString `json:"status"`
	Authority              flexString `json:"authority"`
	DSDName                flexString `json:"dsdname"`
	ResponsibleOffice      flexString `json:"responsibleoffice"`
	ResponsibleOfficePhone flexString `json:"responsibleofficephone"`
	RiskLevel              flexString `json:"risklevel"`
	VerifiedCount          flexNumber `json:"verifiedcount"`
}

// flexString：表格后端可能把字段写成数字
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(strings.Trim(string(b), `"`))
	return nil
}

// flexNumber：接受数字或数字字符串；空值视为缺失
type flexNumber struct {
	V     float64
	Valid bool
}

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	str := strings.TrimSpace(string(s))
	if str == "" {
		*n = flexNumber{}
		return nil
	}
	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		*n = flexNumber{}
		return nil
	}
	*n = flexNumber{V: v, Valid: true}
	return nil
}

// toReport：缺坐标返回 false；风险缺省 Low，核实数缺省 1，未知状态按 New；时间戳无法解析时 Time 为零值
func (r record) toReport() (report.Report, bool) {
	if !r.Latitude.Valid || !r.Longitude.Valid {
		return report.Report{}, false
	}
	out := report.Report{
		ID:            string(r.Timestamp),
		Lat:           r.Latitude.V,
		Lng:           r.Longitude.V,
		WasteType:     string(r.WType),
		WasteSize:     string(r.WSize),
		Description:   string(r.Description),
		PhotoURL:      string(r.PhotoURL),
		Office:        string(r.ResponsibleOffice),
		OfficePhone:   string(r.ResponsibleOfficePhone),
		Subdivision:   string(r.DSDName),
		Status:        report.StatusNew,
	}
	if t, ok := report.ParseTimestamp(string(r.Timestamp)); ok {
		out.Time = t
	}
	if out.Subdivision == "" {
		out.Subdivision = string(r.Authority)
	}
	n := 1
	if r.VerifiedCount.Valid && r.VerifiedCount.V >= 1 {
		n = int(r.VerifiedCount.V)
	}
	out.SetVerified(n)
	if s, err := report.ParseStatus(string(r.Status)); err == nil {
		out.Status = s
	} else if r.Status != "" {
		logger.L().Debug("remote_unknown_status", "id", out.ID, "status", string(r.Status))
	}
	if t, err := hazard.ParseTier(string(r.RiskLevel)); err == nil {
		out.Risk = t
	}
	return out, true
}
