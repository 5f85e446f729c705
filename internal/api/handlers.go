package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dumpwatch/internal/config"
	"dumpwatch/internal/report"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":   s.ctl.Ready(),
		"reports": s.ctl.Store().Len(),
	})
}

func (s *Server) viewport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.ParseViewport(r.URL.Query()))
}

// listReports 默认只返回地图可见报告；all=1 返回全部
func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	var rs []report.Report
	if r.URL.Query().Get("all") == "1" {
		rs = s.ctl.Store().Snapshot()
	} else {
		rs = s.ctl.Store().Active()
	}
	if rs == nil {
		rs = []report.Report{}
	}
	writeJSON(w, http.StatusOK, rs)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Store().Stats())
}

type pointBody struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (p pointBody) valid() bool { return p.Lat != nil && p.Lng != nil }

type draftBody struct {
	pointBody
	report.Attributes
}

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	var b draftBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || !b.valid() {
		badRequest(w, "lat and lng are required")
		return
	}
	d, err := s.ctl.CreateDraft(r.Context(), *b.Lat, *b.Lng, b.Attributes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// submit 接受 JSON 或 multipart（photo 字段为照片）；默认立即返回乐观条目，wait=1 等待远端确认
func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	lat, lng, attrs, ok := parseSubmission(w, r)
	if !ok {
		return
	}
	d, err := s.ctl.CreateDraft(r.Context(), lat, lng, attrs)
	if err != nil {
		writeError(w, err)
		return
	}
	local, task := s.ctl.SubmitOptimistic(d)
	if r.URL.Query().Get("wait") != "1" {
		writeJSON(w, http.StatusAccepted, local)
		return
	}
	out, err := task.Wait(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func parseSubmission(w http.ResponseWriter, r *http.Request) (float64, float64, report.Attributes, bool) {
	var attrs report.Attributes
	if strings.HasPrefix(r.Header.Get("content-type"), "application/json") {
		var b draftBody
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil || !b.valid() {
			badRequest(w, "lat and lng are required")
			return 0, 0, attrs, false
		}
		return *b.Lat, *b.Lng, b.Attributes, true
	}
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		if err := r.ParseForm(); err != nil {
			badRequest(w, "invalid form")
			return 0, 0, attrs, false
		}
	}
	lat, err1 := strconv.ParseFloat(r.FormValue("lat"), 64)
	lng, err2 := strconv.ParseFloat(r.FormValue("lng"), 64)
	if err1 != nil || err2 != nil {
		badRequest(w, "lat and lng are required")
		return 0, 0, attrs, false
	}
	attrs = report.Attributes{
		WasteType:   r.FormValue("waste_type"),
		WasteSize:   r.FormValue("waste_size"),
		Description: r.FormValue("description"),
	}
	if f, hdr, err := r.FormFile("photo"); err == nil {
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUpload))
		if err != nil {
			badRequest(w, "unreadable photo")
			return 0, 0, attrs, false
		}
		attrs.Photo = &report.Photo{Name: hdr.Filename, Data: data}
	}
	return lat, lng, attrs, true
}

type statusBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var b statusBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.ID == "" {
		badRequest(w, "id and status are required")
		return
	}
	st, err := report.ParseStatus(b.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := s.ctl.UpdateStatusAs(s.privileged(r), b.ID, st).Wait(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type verifyBody struct {
	pointBody
	Tolerance float64 `json:"tolerance"`
}

// verify：tolerance 缺省或 ≤ 0 时使用服务配置
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	var b verifyBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || !b.valid() {
		badRequest(w, "lat and lng are required")
		return
	}
	out, err := s.ctl.VerifyExisting(*b.Lat, *b.Lng, b.Tolerance).Wait(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if !s.privileged(r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	n, err := s.ctl.Load().Wait(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reports": n})
}
