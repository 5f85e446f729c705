package report

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"dumpwatch/internal/atlas"
	"dumpwatch/internal/boundary"
	"dumpwatch/internal/errs"
	"dumpwatch/internal/geo"
	"dumpwatch/internal/hazard"
	"dumpwatch/internal/office"
)

type createResult struct {
	conf Confirmation
	err  error
}

type verifyResult struct {
	n   int
	err error
}

// fakeRemote blocks every call until the test supplies the response.
type fakeRemote struct {
	list    chan []Report
	listErr error
	create  chan createResult
	status  chan error
	verify  chan verifyResult

	mu       sync.Mutex
	created  []Report
	verified [][2]float64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		list:   make(chan []Report, 1),
		create: make(chan createResult),
		status: make(chan error),
		verify: make(chan verifyResult),
	}
}

func (f *fakeRemote) List(ctx context.Context) ([]Report, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return <-f.list, nil
}

func (f *fakeRemote) Create(ctx context.Context, r Report, _ *Photo) (Confirmation, error) {
	f.mu.Lock()
	f.created = append(f.created, r)
	f.mu.Unlock()
	res := <-f.create
	return res.conf, res.err
}

func (f *fakeRemote) UpdateStatus(ctx context.Context, id string, s Status) error {
	return <-f.status
}

func (f *fakeRemote) IncrementVerified(ctx context.Context, lat, lng float64) (int, error) {
	f.mu.Lock()
	f.verified = append(f.verified, [2]float64{lat, lng})
	f.mu.Unlock()
	res := <-f.verify
	return res.n, res.err
}

const provinceFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},
 "geometry":{"type":"Polygon","coordinates":[[[79.7,7.0],[80.6,7.0],[80.6,8.4],[79.7,8.4],[79.7,7.0]]]}}]}`

const subsFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"DSD_N":"Kurunegala"},
 "geometry":{"type":"Polygon","coordinates":[[[80.2,7.3],[80.5,7.3],[80.5,7.6],[80.2,7.6],[80.2,7.3]]]}}]}`

func testAtlas(t *testing.T) *atlas.Atlas {
	t.Helper()
	prov, err := geo.Decode("province", []byte(provinceFC), geo.LonLat)
	if err != nil {
		t.Fatal(err)
	}
	subs, err := geo.Decode("subdivisions", []byte(subsFC), geo.LonLat)
	if err != nil {
		t.Fatal(err)
	}
	hospitals := &geo.Layer{Name: "hospitals", Features: []geo.Feature{geo.NewFeature(geo.Pt(7.48, 80.36), nil)}}
	reg, err := hazard.NewRegistry([]hazard.Category{
		{ID: "hospitals", Label: "Hospital", Distance: 250, Unit: hazard.Meters, Tier: hazard.Critical, Layer: hospitals},
	})
	if err != nil {
		t.Fatal(err)
	}
	offices := office.NewResolver([]office.Office{{Point: geo.Pt(7.49, 80.36), Name: "Kurunegala DS", Phone: "037"}}, 10)
	return atlas.New(reg, boundary.NewGate(prov, subs, ""), offices)
}

type recorder struct {
	mu      sync.Mutex
	notices []Notice
	changes []Change
}

func (r *recorder) Notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *recorder) onChange(c Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *recorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

func (r *recorder) count(kind ChangeKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.changes {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

func setup(t *testing.T) (*Controller, *fakeRemote, *recorder) {
	t.Helper()
	rem := newFakeRemote()
	rec := &recorder{}
	st := NewStore()
	st.Subscribe(rec.onChange)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewController(rem, st, Options{Notifier: rec, Now: func() time.Time { return now }})
	c.SetAtlas(testAtlas(t))
	return c, rem, rec
}

func wait[T any](t *testing.T, task *Task[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("task did not complete")
	}
	return v, err
}

func seed() Report {
	return Report{ID: "2024-02-01T08:00:00.000Z", Lat: 7.5, Lng: 80.0, WasteType: "Plastic", Status: StatusNew, VerifiedCount: 1}
}

func TestCreateDraftBeforeReady(t *testing.T) {
	rec := &recorder{}
	c := NewController(newFakeRemote(), nil, Options{Notifier: rec})
	if _, err := c.CreateDraft(context.Background(), 7.48, 80.36, Attributes{}); !errors.Is(err, errs.ErrDataNotReady) {
		t.Fatalf("err = %v", err)
	}
	if got := rec.last().Message; got != "Map data is still loading..." {
		t.Fatalf("notice = %q", got)
	}
	if c.Store().Len() != 0 {
		t.Fatal("store must be untouched")
	}
}

func TestCreateDraftOutOfBounds(t *testing.T) {
	c, _, rec := setup(t)
	if _, err := c.CreateDraft(context.Background(), 6.9, 79.86, Attributes{}); !errors.Is(err, errs.ErrOutOfBounds) {
		t.Fatalf("err = %v", err)
	}
	if got := rec.last().Message; got != "Please click inside the North Western Province boundary to report." {
		t.Fatalf("notice = %q", got)
	}
}

func TestCreateDraftComputesPlacement(t *testing.T) {
	c, _, _ := setup(t)
	d, err := c.CreateDraft(context.Background(), 7.4800001, 80.3600001, Attributes{WasteType: "Plastic"})
	if err != nil {
		t.Fatal(err)
	}
	pl := d.Placement
	if pl.Lat != 7.48 || pl.Lng != 80.36 || pl.Subdivision != "Kurunegala" || pl.Office.Name != "Kurunegala DS" || pl.Risk.Tier != hazard.Critical {
		t.Fatalf("placement = %+v", pl)
	}
	if c.Store().Len() != 0 {
		t.Fatal("draft must not enter the store")
	}
}

func TestSubmitOptimisticThenConfirmed(t *testing.T) {
	c, rem, rec := setup(t)
	d, err := c.CreateDraft(context.Background(), 7.48, 80.36, Attributes{WasteType: "Plastic", WasteSize: "Large"})
	if err != nil {
		t.Fatal(err)
	}
	task := c.Submit(d)

	snap := c.Store().Snapshot()
	if len(snap) != 1 {
		t.Fatalf("store len = %d, want 1", len(snap))
	}
	got := snap[0]
	if got.Status != StatusNew || got.VerifiedCount != 1 || !got.Pending || got.ID != "2024-03-01T10:00:00.000Z" {
		t.Fatalf("optimistic entry = %+v", got)
	}
	if !got.Time.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("optimistic time = %v", got.Time)
	}
	if rec.count(ChangeAppended) != 1 {
		t.Fatal("append must signal the renderer")
	}

	rem.create <- createResult{conf: Confirmation{ID: "2024-03-01T10:00:01.234Z", PhotoURL: "https://img/1.jpg"}}
	out, err := wait(t, task)
	if err != nil {
		t.Fatal(err)
	}
	snap = c.Store().Snapshot()
	if len(snap) != 1 {
		t.Fatalf("confirmation must not re-append, len = %d", len(snap))
	}
	if snap[0].ID != "2024-03-01T10:00:01.234Z" || snap[0].PhotoURL != "https://img/1.jpg" || snap[0].Pending {
		t.Fatalf("confirmed entry = %+v", snap[0])
	}
	if !snap[0].Time.Equal(time.Date(2024, 3, 1, 10, 0, 1, 234e6, time.UTC)) {
		t.Fatalf("confirmed time = %v", snap[0].Time)
	}
	if out.ID != snap[0].ID {
		t.Fatalf("task result = %+v", out)
	}
	if _, ok := c.Store().Get("2024-03-01T10:00:00.000Z"); ok {
		t.Fatal("local id must be replaced")
	}
}

func TestSubmitFailureRestoresStore(t *testing.T) {
	c, rem, rec := setup(t)
	c.Store().Replace([]Report{seed()})
	before := c.Store().Snapshot()

	d, _ := c.CreateDraft(context.Background(), 7.48, 80.36, Attributes{})
	task := c.Submit(d)
	if c.Store().Len() != 2 {
		t.Fatal("optimistic entry missing")
	}
	rem.create <- createResult{err: errors.New("boom")}
	if _, err := wait(t, task); err == nil {
		t.Fatal("expected failure")
	}
	if after := c.Store().Snapshot(); !reflect.DeepEqual(after, before) {
		t.Fatalf("store not restored:\n%+v\n%+v", after, before)
	}
	if n := rec.last(); n.Level != LevelError || n.Op != "submit" {
		t.Fatalf("notice = %+v", n)
	}
}

func TestSubmitRejectsUngatedDraft(t *testing.T) {
	c, _, _ := setup(t)
	if _, err := wait(t, c.Submit(Draft{})); !errors.Is(err, errs.ErrInvalidDraft) {
		t.Fatalf("err = %v", err)
	}
	if c.Store().Len() != 0 {
		t.Fatal("store must be untouched")
	}
}

func TestNextIDIsMonotonic(t *testing.T) {
	c, _, _ := setup(t)
	a, b, d := c.nextID(), c.nextID(), c.nextID()
	if !(a < b && b < d) {
		t.Fatalf("ids not increasing: %s %s %s", a, b, d)
	}
	if b != "2024-03-01T10:00:00.001Z" {
		t.Fatalf("collision bump = %s", b)
	}
}

func TestUpdateStatusIsConfirmationOnly(t *testing.T) {
	c, rem, rec := setup(t)
	c.Store().Replace([]Report{seed()})
	c.SetPrivileged(true)
	task := c.UpdateStatus(seed().ID, StatusActionPending)

	if r, _ := c.Store().Get(seed().ID); r.Status != StatusNew {
		t.Fatalf("status changed before confirmation: %v", r.Status)
	}
	rem.status <- nil
	out, err := wait(t, task)
	if err != nil {
		t.Fatal(err)
	}
	if out.Status != StatusActionPending {
		t.Fatalf("result = %+v", out)
	}
	if r, _ := c.Store().Get(seed().ID); r.Status != StatusActionPending {
		t.Fatalf("status = %v", r.Status)
	}
	if n := rec.count(ChangeUpdated); n != 1 {
		t.Fatalf("updates signalled = %d, want 1", n)
	}
}

func TestUpdateStatusFailureLeavesState(t *testing.T) {
	c, rem, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	c.SetPrivileged(true)
	task := c.UpdateStatus(seed().ID, StatusCleaned)
	rem.status <- errors.New("rejected")
	if _, err := wait(t, task); err == nil {
		t.Fatal("expected error")
	}
	if r, _ := c.Store().Get(seed().ID); r.Status != StatusNew {
		t.Fatalf("status = %v", r.Status)
	}
}

func TestUpdateStatusPreconditions(t *testing.T) {
	c, _, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	if _, err := wait(t, c.UpdateStatus(seed().ID, StatusCleaned)); !errors.Is(err, errs.ErrNotPrivileged) {
		t.Fatalf("unprivileged err = %v", err)
	}
	c.SetPrivileged(true)
	if _, err := wait(t, c.UpdateStatus(seed().ID, Status("Done"))); !errors.Is(err, errs.ErrInvalidStatus) {
		t.Fatalf("invalid status err = %v", err)
	}
	if _, err := wait(t, c.UpdateStatus("nope", StatusCleaned)); !errors.Is(err, errs.ErrUnknownReport) {
		t.Fatalf("unknown id err = %v", err)
	}
}

func TestVerifyWithinTolerance(t *testing.T) {
	c, rem, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	task := c.VerifyExisting(7.500005, 80.000005, 0)

	if r, _ := c.Store().Get(seed().ID); r.VerifiedCount != 1 || r.Certified {
		t.Fatalf("count changed before confirmation: %+v", r)
	}
	rem.verify <- verifyResult{n: 2}
	out, err := wait(t, task)
	if err != nil {
		t.Fatal(err)
	}
	if out.VerifiedCount != 2 || !out.Certified || out.Certify != CertifiedLabel {
		t.Fatalf("verified = %+v", out)
	}
	rem.mu.Lock()
	keyed := rem.verified[0]
	rem.mu.Unlock()
	if keyed != [2]float64{7.5, 80.0} {
		t.Fatalf("remote keyed by %v", keyed)
	}
}

func TestVerifyUsesServerCount(t *testing.T) {
	c, rem, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	first := c.VerifyExisting(7.5, 80.0, 0)
	second := c.VerifyExisting(7.5, 80.0, 0)
	rem.verify <- verifyResult{n: 3}
	rem.verify <- verifyResult{n: 3}
	wait(t, first)
	wait(t, second)
	if r, _ := c.Store().Get(seed().ID); r.VerifiedCount != 3 {
		t.Fatalf("count = %d, want server value 3", r.VerifiedCount)
	}
}

func TestVerifyBeyondTolerance(t *testing.T) {
	c, _, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	if _, err := wait(t, c.VerifyExisting(7.5005, 80.0005, 0)); !errors.Is(err, errs.ErrNoMatchingReport) {
		t.Fatalf("err = %v", err)
	}
}

func TestVerifyFailureLeavesCount(t *testing.T) {
	c, rem, _ := setup(t)
	c.Store().Replace([]Report{seed()})
	task := c.VerifyExisting(7.5, 80.0, 0)
	rem.verify <- verifyResult{err: errors.New("offline")}
	if _, err := wait(t, task); err == nil {
		t.Fatal("expected error")
	}
	if r, _ := c.Store().Get(seed().ID); r.VerifiedCount != 1 {
		t.Fatalf("count = %d", r.VerifiedCount)
	}
}

func TestLoadReplacesStoreAndKeepsPending(t *testing.T) {
	c, rem, _ := setup(t)
	d, _ := c.CreateDraft(context.Background(), 7.48, 80.36, Attributes{})
	submit := c.Submit(d)

	rem.list <- []Report{seed()}
	n, err := wait(t, c.Load())
	if err != nil || n != 1 {
		t.Fatalf("load = %d, %v", n, err)
	}
	snap := c.Store().Snapshot()
	if len(snap) != 2 || snap[0].ID != seed().ID || !snap[1].Pending {
		t.Fatalf("store = %+v", snap)
	}
	rem.create <- createResult{conf: Confirmation{ID: "srv"}}
	wait(t, submit)
}

func TestLoadFailureNotifies(t *testing.T) {
	c, rem, rec := setup(t)
	rem.listErr = errors.New("offline")
	if _, err := wait(t, c.Load()); err == nil {
		t.Fatal("expected error")
	}
	if rec.last().Op != "load" {
		t.Fatalf("notice = %+v", rec.last())
	}
}

func TestUpdateStatusRejectsPendingReport(t *testing.T) {
	c, rem, _ := setup(t)
	c.SetPrivileged(true)
	d, _ := c.CreateDraft(context.Background(), 7.48, 80.36, Attributes{})
	local, submit := c.SubmitOptimistic(d)

	update := c.UpdateStatus(local.ID, StatusInvestigating)
	if _, err := wait(t, update); !errors.Is(err, errs.ErrPendingReport) {
		t.Fatalf("err = %v", err)
	}

	rem.create <- createResult{conf: Confirmation{ID: "server-1"}}
	if _, err := wait(t, submit); err != nil {
		t.Fatal(err)
	}
	if r, ok := c.Store().Get("server-1"); !ok || r.Status != StatusNew {
		t.Fatalf("confirmed = %+v, %v", r, ok)
	}

	update = c.UpdateStatus("server-1", StatusInvestigating)
	rem.status <- nil
	out, err := wait(t, update)
	if err != nil || out.Status != StatusInvestigating {
		t.Fatalf("update after confirm = %+v, %v", out, err)
	}
}

func TestVerifyPerCallTolerance(t *testing.T) {
	c, rem, _ := setup(t)
	c.Store().Replace([]Report{seed()})

	if _, err := wait(t, c.VerifyExisting(7.5005, 80.0, 0)); !errors.Is(err, errs.ErrNoMatchingReport) {
		t.Fatalf("default tolerance err = %v", err)
	}
	task := c.VerifyExisting(7.5005, 80.0, 1e-3)
	rem.verify <- verifyResult{n: 2}
	out, err := wait(t, task)
	if err != nil {
		t.Fatal(err)
	}
	if out.ID != seed().ID || out.VerifiedCount != 2 {
		t.Fatalf("verified = %+v", out)
	}
}
