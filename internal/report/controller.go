package report

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"dumpwatch/internal/atlas"
	"dumpwatch/internal/errs"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"
)

// Remote：远端权威报告存储
type Remote interface {
	List(ctx context.Context) ([]Report, error)
	Create(ctx context.Context, r Report, photo *Photo) (Confirmation, error)
	UpdateStatus(ctx context.Context, id string, s Status) error
	IncrementVerified(ctx context.Context, lat, lng float64) (int, error)
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice：给用户的临时提示
type Notice struct {
	Level    Level  `json:"level"`
	Op       string `json:"op"`
	Message  string `json:"message"`
	ReportID string `json:"report_id,omitempty"`
	Err      error  `json:"-"`
}

type Notifier interface {
	Notify(Notice)
}

type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// IDLayout：乐观 id 使用的客户端时间戳格式
const IDLayout = "2006-01-02T15:04:05.000Z"

type Options struct {
	Tolerance    float64
	Timeout      time.Duration
	Notifier     Notifier
	BoundaryName string
	Now          func() time.Time
}

// Controller：创建走乐观更新；状态与核实只在远端确认后生效
// 约束：同一报告上的并发操作不排序，最后应用的响应为准
type Controller struct {
	remote     Remote
	store      *Store
	atlas      atomic.Pointer[atlas.Atlas]
	privileged atomic.Bool
	opts       Options

	idMu   sync.Mutex
	lastID time.Time
	wg     sync.WaitGroup
}

func NewController(remote Remote, store *Store, opts Options) *Controller {
	if opts.Tolerance <= 0 {
		opts.Tolerance = 1e-5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.BoundaryName == "" {
		opts.BoundaryName = "North Western Province"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if store == nil {
		store = NewStore()
	}
	return &Controller{remote: remote, store: store, opts: opts}
}

func (c *Controller) Store() *Store { return c.store }

// SetAtlas：标记地理图层已加载；此前所有需要边界门的操作返回 ErrDataNotReady
func (c *Controller) SetAtlas(a *atlas.Atlas) { c.atlas.Store(a) }

func (c *Controller) Ready() bool { return c.atlas.Load() != nil }

func (c *Controller) SetPrivileged(on bool) { c.privileged.Store(on) }

func (c *Controller) Privileged() bool { return c.privileged.Load() }

// Wait：等待所有在途远端操作应用完毕
func (c *Controller) Wait() { c.wg.Wait() }

func (c *Controller) notify(n Notice) {
	l := logger.L()
	if n.Level == LevelError {
		l.Warn("notice", "op", n.Op, "msg", n.Message, "report_id", n.ReportID, "err", n.Err)
	} else {
		l.Debug("notice", "op", n.Op, "msg", n.Message, "report_id", n.ReportID)
	}
	if c.opts.Notifier != nil {
		c.opts.Notifier.Notify(n)
	}
}

func (c *Controller) fail(op, id string, err error) {
	c.notify(Notice{Level: LevelError, Op: op, ReportID: id, Message: c.describe(op, err), Err: err})
}

func (c *Controller) describe(op string, err error) string {
	switch {
	case errors.Is(err, errs.ErrDataNotReady):
		return "Map data is still loading..."
	case errors.Is(err, errs.ErrOutOfBounds):
		return "Please click inside the " + c.opts.BoundaryName + " boundary to report."
	case errors.Is(err, errs.ErrNotPrivileged):
		return "Only officials can change report status."
	case errors.Is(err, errs.ErrNoMatchingReport):
		return "No report found at this location."
	}
	switch op {
	case "submit":
		return "Failed to submit report: " + err.Error()
	case "update_status":
		return "Failed to update status: " + err.Error()
	case "verify":
		return "Failed to verify report: " + err.Error()
	case "load":
		return "Failed to load reports: " + err.Error()
	}
	return err.Error()
}

func (c *Controller) run(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Load：拉取远端完整列表并替换存储内容
func (c *Controller) Load() *Task[int] {
	t := newTask[int]()
	c.run(func(ctx context.Context) {
		list, err := c.remote.List(ctx)
		if err != nil {
			c.fail("load", "", err)
			t.finish(0, err)
			return
		}
		c.store.Replace(list)
		logger.L().Info("reports_loaded", "count", len(list))
		t.finish(len(list), nil)
	})
	return t
}

// CreateDraft：过边界门并分类，不写入存储
func (c *Controller) CreateDraft(ctx context.Context, lat, lng float64, attrs Attributes) (Draft, error) {
	a := c.atlas.Load()
	if a == nil {
		metrics.DraftsTotal.WithLabelValues("not_ready").Inc()
		c.fail("draft", "", errs.ErrDataNotReady)
		return Draft{}, errs.ErrDataNotReady
	}
	pl, err := a.Locate(ctx, lat, lng)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, errs.ErrOutOfBounds):
			outcome = "out_of_bounds"
		case errors.Is(err, errs.ErrDataNotReady):
			outcome = "not_ready"
		}
		metrics.DraftsTotal.WithLabelValues(outcome).Inc()
		logger.L().Info("draft_rejected", "lat", lat, "lng", lng, "reason", outcome)
		c.fail("draft", "", err)
		return Draft{}, err
	}
	metrics.DraftsTotal.WithLabelValues("ok").Inc()
	return Draft{Placement: pl, Attributes: attrs, gated: true}, nil
}

// nextID：客户端时间戳 id，严格晚于上一个
func (c *Controller) nextID() string {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	now := c.opts.Now().UTC().Truncate(time.Millisecond)
	if !now.After(c.lastID) {
		now = c.lastID.Add(time.Millisecond)
	}
	c.lastID = now
	return now.Format(IDLayout)
}

// Submit：乐观追加并在远端创建；失败时移除该条目
func (c *Controller) Submit(d Draft) *Task[Report] {
	_, t := c.SubmitOptimistic(d)
	return t
}

// SubmitOptimistic：同 Submit，另返回远端应答前追加的条目
func (c *Controller) SubmitOptimistic(d Draft) (Report, *Task[Report]) {
	if !d.gated {
		return Report{}, failed[Report](errs.ErrInvalidDraft)
	}
	pl := d.Placement
	id := c.nextID()
	created, _ := ParseTimestamp(id)
	r := Report{
		ID:            id,
		Lat:           pl.Lat,
		Lng:           pl.Lng,
		WasteType:     d.Attributes.WasteType,
		WasteSize:     d.Attributes.WasteSize,
		Description:   d.Attributes.Description,
		Status:        StatusNew,
		Risk:          pl.Risk.Tier,
		Proximity:     append([]string(nil), pl.Risk.Messages...),
		VerifiedCount: 1,
		Office:        pl.Office.Name,
		OfficePhone:   pl.Office.Phone,
		Subdivision:   pl.Subdivision,
		Time:          created,
		Pending:       true,
	}
	r.SetVerified(1)
	c.store.Append(r)
	photo := d.Attributes.Photo
	t := newTask[Report]()
	c.run(func(ctx context.Context) {
		conf, err := c.remote.Create(ctx, r, photo)
		if err != nil {
			c.store.Remove(r.ID)
			c.fail("submit", r.ID, err)
			t.finish(Report{}, err)
			return
		}
		confirm := func(x *Report) {
			if conf.ID != "" {
				x.ID = conf.ID
				if t, ok := ParseTimestamp(conf.ID); ok {
					x.Time = t
				}
			}
			x.PhotoURL = conf.PhotoURL
			x.Pending = false
		}
		out, ok := c.store.Update(r.ID, ChangeConfirmed, confirm)
		if !ok {
			out = r.clone()
			confirm(&out)
		}
		logger.L().Info("report_created", "local_id", r.ID, "id", out.ID, "risk", out.Risk.String())
		c.notify(Notice{Level: LevelInfo, Op: "submit", ReportID: out.ID, Message: "Report submitted successfully."})
		t.finish(out, nil)
	})
	return r.clone(), t
}

// UpdateStatus：远端接受后才修改状态
func (c *Controller) UpdateStatus(id string, s Status) *Task[Report] {
	return c.UpdateStatusAs(c.Privileged(), id, s)
}

// UpdateStatusAs：特权由调用方决定，供逐请求鉴权的前端使用
// 约束：待确认的报告尚无服务端 id，直接拒绝
func (c *Controller) UpdateStatusAs(privileged bool, id string, s Status) *Task[Report] {
	var err error
	switch {
	case !privileged:
		err = errs.ErrNotPrivileged
	case !s.Valid():
		err = errs.ErrInvalidStatus
	default:
		if cur, ok := c.store.Get(id); !ok {
			err = errs.ErrUnknownReport
		} else if cur.Pending {
			err = errs.ErrPendingReport
		}
	}
	if err != nil {
		c.fail("update_status", id, err)
		return failed[Report](err)
	}
	t := newTask[Report]()
	c.run(func(ctx context.Context) {
		if err := c.remote.UpdateStatus(ctx, id, s); err != nil {
			c.fail("update_status", id, err)
			t.finish(Report{}, err)
			return
		}
		out, ok := c.store.Update(id, ChangeUpdated, func(x *Report) { x.Status = s })
		if !ok {
			t.finish(Report{}, errs.ErrUnknownReport)
			return
		}
		c.notify(Notice{Level: LevelInfo, Op: "update_status", ReportID: id, Message: "Status updated to " + string(s) + "."})
		t.finish(out, nil)
	})
	return t
}

// VerifyExisting：对该坐标处的报告核实数加一；tol ≤ 0 时使用 Options.Tolerance
// 约束：核实数与认证只取自服务端响应
func (c *Controller) VerifyExisting(lat, lng, tol float64) *Task[Report] {
	if tol <= 0 {
		tol = c.opts.Tolerance
	}
	match, ok := c.store.FindNear(lat, lng, tol)
	if !ok {
		c.fail("verify", "", errs.ErrNoMatchingReport)
		return failed[Report](errs.ErrNoMatchingReport)
	}
	t := newTask[Report]()
	c.run(func(ctx context.Context) {
		n, err := c.remote.IncrementVerified(ctx, match.Lat, match.Lng)
		if err != nil {
			c.fail("verify", match.ID, err)
			t.finish(Report{}, err)
			return
		}
		cur, ok := c.store.FindNear(match.Lat, match.Lng, tol)
		if !ok {
			t.finish(Report{}, errs.ErrNoMatchingReport)
			return
		}
		out, _ := c.store.Update(cur.ID, ChangeUpdated, func(x *Report) { x.SetVerified(n) })
		c.notify(Notice{Level: LevelInfo, Op: "verify", ReportID: out.ID, Message: "Thank you for verifying this report."})
		t.finish(out, nil)
	})
	return t
}
