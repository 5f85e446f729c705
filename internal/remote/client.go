// 包 remote：远端权威报告存储的 HTTP 客户端
// 约束：读为无参 GET，写为表单 POST；响应统一为 JSON，result 为 success 或 error
package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"
	"dumpwatch/internal/report"
)

var _ report.Remote = (*Client)(nil)

type Client struct {
	endpoint string
	client   *http.Client
}

func New(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

// List 拉取全部记录；缺坐标的记录被跳过
func (c *Client) List(ctx context.Context) ([]report.Report, error) {
	env, err := c.do(ctx, "list", nil)
	if err != nil {
		return nil, err
	}
	out := make([]report.Report, 0, len(env.Data))
	skipped := 0
	for _, rec := range env.Data {
		r, ok := rec.toReport()
		if !ok {
			skipped++
			continue
		}
		out = append(out, r)
	}
	if skipped > 0 {
		logger.L().Warn("remote_records_skipped", "count", skipped, "reason", "missing_coordinates")
	}
	return out, nil
}

// Create 不带 action 字段；服务端返回正式时间戳与照片地址
func (c *Client) Create(ctx context.Context, r report.Report, photo *report.Photo) (report.Confirmation, error) {
	form := url.Values{}
	form.Set("wType", r.WasteType)
	form.Set("wSize", r.WasteSize)
	form.Set("desc", r.Description)
	form.Set("lat", formatCoord(r.Lat))
	form.Set("lng", formatCoord(r.Lng))
	form.Set("dsdName", r.Subdivision)
	form.Set("responsibleOffice", r.Office)
	form.Set("responsibleOfficePhone", r.OfficePhone)
	form.Set("riskLevel", r.Risk.String())
	if photo != nil && len(photo.Data) > 0 {
		form.Set("photoBase64", base64.StdEncoding.EncodeToString(photo.Data))
		form.Set("photoName", photo.Name)
	}
	env, err := c.do(ctx, "create", form)
	if err != nil {
		return report.Confirmation{}, err
	}
	return report.Confirmation{ID: string(env.Timestamp), PhotoURL: env.PhotoURL}, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id string, s report.Status) error {
	form := url.Values{}
	form.Set("action", "updateStatus")
	form.Set("timestamp", id)
	form.Set("status", string(s))
	_, err := c.do(ctx, "update_status", form)
	return err
}

// IncrementVerified 以坐标而非报告 ID 定位记录，返回服务端计数
func (c *Client) IncrementVerified(ctx context.Context, lat, lng float64) (int, error) {
	form := url.Values{}
	form.Set("action", "incrementVerifiedCount")
	form.Set("lat", formatCoord(lat))
	form.Set("lng", formatCoord(lng))
	env, err := c.do(ctx, "verify", form)
	if err != nil {
		return 0, err
	}
	if !env.NewCount.Valid {
		return 0, &NetworkError{Op: "verify", Err: errors.New("response missing newCount")}
	}
	return int(env.NewCount.V), nil
}

func (c *Client) do(ctx context.Context, op string, form url.Values) (*envelope, error) {
	l, opID := logger.Op(op)
	start := time.Now()
	env, err := c.roundTrip(ctx, op, opID, form)
	metrics.RemoteDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))
	outcome := "ok"
	var rej *RejectionError
	switch {
	case errors.As(err, &rej):
		outcome = "rejected"
	case err != nil:
		outcome = "network_error"
	}
	metrics.RemoteRequestsTotal.WithLabelValues(op, outcome).Inc()
	if err != nil {
		l.Warn("remote_call_error", "outcome", outcome, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	l.Debug("remote_call_ok", "duration_ms", time.Since(start).Milliseconds())
	return env, nil
}

func (c *Client) roundTrip(ctx context.Context, op, opID string, form url.Values) (*envelope, error) {
	var req *http.Request
	var err error
	if form == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("X-Request-Id", opID)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{Op: op, Status: resp.StatusCode}
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if !strings.EqualFold(env.Result, "success") {
		return nil, &RejectionError{Op: op, Message: env.Message}
	}
	return &env, nil
}

func formatCoord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
