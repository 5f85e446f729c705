package report

import (
	"math"
	"sync"

	"dumpwatch/internal/metrics"
)

type ChangeKind string

const (
	ChangeLoaded    ChangeKind = "loaded"
	ChangeAppended  ChangeKind = "appended"
	ChangeConfirmed ChangeKind = "confirmed"
	ChangeRemoved   ChangeKind = "removed"
	ChangeUpdated   ChangeKind = "updated"
)

// Change：每次变更后发给渲染端的刷新信号
type Change struct {
	Kind ChangeKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
}

// Store：按插入顺序保存报告
// 约束：监听函数在释放锁之后、于发起变更的 goroutine 中调用
type Store struct {
	mu        sync.RWMutex
	items     []Report
	listeners []func(Change)
}

func NewStore() *Store { return &Store{} }

func (s *Store) Subscribe(fn func(Change)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) emit(c Change) {
	s.mu.RLock()
	ls := append([]func(Change){}, s.listeners...)
	n := len(s.items)
	s.mu.RUnlock()
	metrics.StoreReports.Set(float64(n))
	for _, fn := range ls {
		fn(c)
	}
}

// Replace：换入新拉取的列表；列表中没有的待确认本地报告保留在末尾
func (s *Store) Replace(rs []Report) {
	s.mu.Lock()
	ids := make(map[string]bool, len(rs))
	next := make([]Report, 0, len(rs))
	for _, r := range rs {
		ids[r.ID] = true
		next = append(next, r.clone())
	}
	for _, r := range s.items {
		if r.Pending && !ids[r.ID] {
			next = append(next, r)
		}
	}
	s.items = next
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeLoaded})
}

func (s *Store) Append(r Report) {
	s.mu.Lock()
	s.items = append(s.items, r.clone())
	s.mu.Unlock()
	s.emit(Change{Kind: ChangeAppended, ID: r.ID})
}

// Remove：按 id 删除，其余报告顺序不变
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.index(id)
	if i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.mu.Unlock()
	if i < 0 {
		return false
	}
	s.emit(Change{Kind: ChangeRemoved, ID: id})
	return true
}

// Update：原地执行 fn，返回更新后的副本
func (s *Store) Update(id string, kind ChangeKind, fn func(*Report)) (Report, bool) {
	s.mu.Lock()
	i := s.index(id)
	var out Report
	if i >= 0 {
		fn(&s.items[i])
		out = s.items[i].clone()
	}
	s.mu.Unlock()
	if i < 0 {
		return Report{}, false
	}
	s.emit(Change{Kind: kind, ID: out.ID})
	return out, true
}

func (s *Store) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) Get(id string) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.items[i].clone(), true
	}
	return Report{}, false
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Snapshot() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, len(s.items))
	for i, r := range s.items {
		out[i] = r.clone()
	}
	return out
}

// FindNear：返回第一个经纬度差都严格小于 tol 度的报告
func (s *Store) FindNear(lat, lng, tol float64) (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.items {
		if Matches(r, lat, lng, tol) {
			return r.clone(), true
		}
	}
	return Report{}, false
}

func Matches(r Report, lat, lng, tol float64) bool {
	return math.Abs(r.Lat-lat) < tol && math.Abs(r.Lng-lng) < tol
}

// Active：地图上显示的报告，Cleaned 不显示
func (s *Store) Active() []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Report
	for _, r := range s.items {
		if r.Status != StatusCleaned {
			out = append(out, r.clone())
		}
	}
	return out
}

type Stats struct {
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"by_status"`
	ByWasteType map[string]int `json:"by_waste_type"`
	// ByDate 以 UTC 日期（2006-01-02）为键；无时间的报告不计入
	ByDate map[string]int `json:"by_date"`
}

// DateLayout：按日统计的键格式
const DateLayout = "2006-01-02"

// Stats：统计全部报告，包含 Cleaned
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{ByStatus: make(map[Status]int, len(Statuses)), ByWasteType: map[string]int{}, ByDate: map[string]int{}}
	for _, x := range Statuses {
		st.ByStatus[x] = 0
	}
	for _, r := range s.items {
		st.Total++
		st.ByStatus[r.Status]++
		if r.WasteType != "" {
			st.ByWasteType[r.WasteType]++
		}
		if !r.Time.IsZero() {
			st.ByDate[r.Time.UTC().Format(DateLayout)]++
		}
	}
	return st
}
