package geo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
)

const squareFC = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"A","code":12},"geometry":{"type":"Polygon","coordinates":[
   [[80.0,7.0],[81.0,7.0],[81.0,8.0],[80.0,8.0],[80.0,7.0]],
   [[80.4,7.4],[80.6,7.4],[80.6,7.6],[80.4,7.6],[80.4,7.4]]]}},
 {"type":"Feature","properties":{"name":"bad"},"geometry":{"type":"Point","coordinates":[500,7]}},
 {"type":"Feature","properties":{"name":"null"},"geometry":null}
]}`

func TestDecodeSkipsBadFeatures(t *testing.T) {
	layer, err := Decode("square", []byte(squareFC), LonLat)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if layer.Len() != 1 || layer.Skipped != 2 {
		t.Fatalf("features=%d skipped=%d, want 1/2", layer.Len(), layer.Skipped)
	}
	f := layer.Features[0]
	if got := f.String("name"); got != "A" {
		t.Fatalf("name = %q", got)
	}
	if got := f.String("code"); got != "12" {
		t.Fatalf("numeric property = %q", got)
	}
	if got := f.String("missing"); got != "" {
		t.Fatalf("missing property = %q", got)
	}
}

func TestDecodeRejectsUnknownDocument(t *testing.T) {
	if _, err := Decode("x", []byte(`{"type":"Topology"}`), LonLat); err == nil {
		t.Fatal("expected error for unsupported document")
	}
	if _, err := Decode("x", []byte(`not json`), LonLat); err == nil {
		t.Fatal("expected error for invalid json")
	}
}

func TestDecodeSwapsLatLon(t *testing.T) {
	doc := `{"type":"Feature","properties":{},"geometry":{"type":"Point","coordinates":[7.5,80.5]}}`
	layer, err := Decode("offices", []byte(doc), LatLon)
	if err != nil {
		t.Fatal(err)
	}
	p := layer.Features[0].Geometry.(orb.Point)
	if p.Lon() != 80.5 || p.Lat() != 7.5 {
		t.Fatalf("swapped point = %v", p)
	}
}

func TestContainsRespectsHoles(t *testing.T) {
	layer, _ := Decode("square", []byte(squareFC), LonLat)
	cases := []struct {
		name string
		p    orb.Point
		want bool
	}{
		{"inside", Pt(7.2, 80.2), true},
		{"hole", Pt(7.5, 80.5), false},
		{"outside", Pt(9.0, 80.5), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := layer.FirstContaining(tc.p)
			if ok != tc.want {
				t.Fatalf("contains = %v, want %v", ok, tc.want)
			}
		})
	}
}

func TestDistanceMeters(t *testing.T) {
	origin := Pt(7.5, 80.0)
	north := Pt(7.501, 80.0)
	d, err := DistanceMeters(north, origin)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-111.3) > 1 {
		t.Fatalf("point distance = %f", d)
	}

	line := orb.LineString{Pt(7.502, 79.99), Pt(7.502, 80.01)}
	d, _ = DistanceMeters(line, origin)
	if math.Abs(d-222.6) > 2 {
		t.Fatalf("line distance = %f", d)
	}

	poly := orb.Polygon{{Pt(7.4, 79.9), Pt(7.4, 80.1), Pt(7.6, 80.1), Pt(7.6, 79.9), Pt(7.4, 79.9)}}
	if d, _ = DistanceMeters(poly, origin); d != 0 {
		t.Fatalf("inside polygon distance = %f", d)
	}

	if _, err := DistanceMeters(orb.Polygon{}, origin); err == nil {
		t.Fatal("expected error for empty polygon")
	}
}

func TestWithinBuffer(t *testing.T) {
	school := NewFeature(Pt(7.5, 80.0), nil)
	if ok, err := WithinBuffer(school, Pt(7.5005, 80.0), 100); err != nil || !ok {
		t.Fatalf("55m away should be inside 100m buffer: %v %v", ok, err)
	}
	if ok, _ := WithinBuffer(school, Pt(7.502, 80.0), 100); ok {
		t.Fatal("222m away should be outside 100m buffer")
	}
	_, err := WithinBuffer(NewFeature(orb.LineString{}, nil), Pt(7.5, 80), 100)
	var ge *GeometryError
	if !errors.As(err, &ge) {
		t.Fatalf("want GeometryError, got %v", err)
	}
}

func TestPointIndexMatchesBruteForce(t *testing.T) {
	var pts []orb.Point
	for i := 0; i < 40; i++ {
		for j := 0; j < 10; j++ {
			pts = append(pts, Pt(6+float64(i)*0.07, 79.5+float64(j)*0.19))
		}
	}
	ix := NewPointIndex(pts)
	queries := []orb.Point{Pt(7.01, 80.33), Pt(8.77, 81.2), Pt(5.0, 79.0), Pt(9.9, 82.0)}
	for _, q := range queries {
		idx, d, ok := ix.Nearest(q)
		if !ok {
			t.Fatal("empty result")
		}
		want := math.MaxFloat64
		for _, p := range pts {
			want = math.Min(want, Haversine(p, q))
		}
		if math.Abs(d-want) > 1e-6 || math.Abs(Haversine(pts[idx], q)-d) > 1e-6 {
			t.Fatalf("query %v: got %f want %f", q, d, want)
		}
	}
	if _, _, ok := NewPointIndex(nil).Nearest(Pt(0, 0)); ok {
		t.Fatal("empty index should report ok=false")
	}
}

func TestLRUEvictionAndTTL(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatal("a should survive")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	disabled := NewLRU[int](0, time.Minute)
	disabled.Set("x", 1)
	if _, ok := disabled.Get("x"); ok {
		t.Fatal("zero-capacity cache must not store")
	}
}

func TestLoaderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(squareFC))
	}))
	defer srv.Close()
	ld := NewLoader(time.Second)
	ld.Delay = time.Millisecond
	layer, err := ld.Load(context.Background(), Source{Name: "remote", Location: srv.URL})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if layer.Len() != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("features=%d calls=%d", layer.Len(), calls)
	}
}

func TestLoaderDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	ld := NewLoader(time.Second)
	ld.Delay = time.Millisecond
	if _, err := ld.Load(context.Background(), Source{Name: "missing", Location: srv.URL}); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestLoaderReadsFiles(t *testing.T) {
	dir := t.TempDir()
	fp := filepath.Join(dir, "square.geojson")
	if err := os.WriteFile(fp, []byte(squareFC), 0o644); err != nil {
		t.Fatal(err)
	}
	layer, err := NewLoader(time.Second).Load(context.Background(), Source{Name: "square", Location: fp})
	if err != nil || layer.Len() != 1 {
		t.Fatalf("layer=%v err=%v", layer, err)
	}
	if _, err := NewLoader(time.Second).Load(context.Background(), Source{Name: "none", Location: filepath.Join(dir, "none")}); err == nil {
		t.Fatal("expected missing file error")
	}
}
