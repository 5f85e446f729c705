// 包 api：集中注册 HTTP 路由，供外部渲染端驱动报告流程
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"dumpwatch/internal/errs"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/remote"
	"dumpwatch/internal/report"
)

const maxUpload = 10 << 20

// Server 持有控制器与管理令牌；令牌为空时所有特权操作被拒绝
type Server struct {
	ctl        *report.Controller
	adminToken string
}

func NewServer(ctl *report.Controller, adminToken string) *Server {
	return &Server{ctl: ctl, adminToken: adminToken}
}

// BuildRoutes 返回独立 ServeMux，主入口挂载到 API 前缀下
func BuildRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.health)
	mux.HandleFunc("GET /viewport", s.viewport)
	mux.HandleFunc("GET /reports", s.listReports)
	mux.HandleFunc("GET /stats", s.stats)
	mux.HandleFunc("POST /drafts", s.createDraft)
	mux.HandleFunc("POST /reports", s.submit)
	mux.HandleFunc("POST /reports/status", s.updateStatus)
	mux.HandleFunc("POST /reports/verify", s.verify)
	mux.HandleFunc("POST /reports/reload", s.reload)
	return mux
}

func (s *Server) privileged(r *http.Request) bool {
	t := r.Header.Get("x-admin-token")
	return s.adminToken != "" && subtle.ConstantTimeCompare([]byte(t), []byte(s.adminToken)) == 1
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError 将错误分类映射为状态码
func writeError(w http.ResponseWriter, err error) {
	code, status := "internal", http.StatusInternalServerError
	var rej *remote.RejectionError
	var ne *remote.NetworkError
	switch {
	case errors.Is(err, errs.ErrDataNotReady):
		code, status = "data_not_ready", http.StatusServiceUnavailable
	case errors.Is(err, errs.ErrOutOfBounds):
		code, status = "out_of_bounds", http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNotPrivileged):
		code, status = "not_privileged", http.StatusForbidden
	case errors.Is(err, errs.ErrNoMatchingReport), errors.Is(err, errs.ErrUnknownReport):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, errs.ErrInvalidStatus), errors.Is(err, errs.ErrInvalidDraft):
		code, status = "bad_request", http.StatusBadRequest
	case errors.Is(err, errs.ErrPendingReport):
		code, status = "pending", http.StatusConflict
	case errors.As(err, &rej):
		code, status = "remote_rejected", http.StatusConflict
	case errors.As(err, &ne):
		code, status = "network_failure", http.StatusBadGateway
	}
	if status >= 500 {
		logger.L().Warn("api_error", "code", code, "err", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: "bad_request"})
}
