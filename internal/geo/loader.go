package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"

	"github.com/avast/retry-go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
)

var (
	errEmptyGeometry = errors.New("empty geometry")
	errBadCoordinate = errors.New("coordinate out of range")
)

// permanentError 标记不应重试的拉取错误（4xx）
type permanentError struct{ error }

// Loader 读取几何数据源；http(s) 源按指数退避重试，本地文件只读一次
type Loader struct {
	Client   *http.Client
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

func NewLoader(timeout time.Duration) *Loader {
	return &Loader{
		Client:   &http.Client{Timeout: timeout},
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// Load 读取并解码一个数据源；坏要素被跳过并计入 Layer.Skipped
func (ld *Loader) Load(ctx context.Context, src Source) (*Layer, error) {
	l := logger.L().With("layer", src.Name)
	start := time.Now()
	data, err := ld.read(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", src.Name, err)
	}
	layer, err := Decode(src.Name, data, src.Order)
	if err != nil {
		return nil, err
	}
	l.Info("layer_load_ok", "features", len(layer.Features), "skipped", layer.Skipped, "duration_ms", time.Since(start).Milliseconds())
	return layer, nil
}

func (ld *Loader) read(ctx context.Context, src Source) ([]byte, error) {
	loc := src.Location
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		return os.ReadFile(loc)
	}
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
			if err != nil {
				return permanentError{err}
			}
			resp, err := ld.Client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				err := fmt.Errorf("unexpected status %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					return permanentError{err}
				}
				return err
			}
			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(ld.Attempts),
		retry.Delay(ld.Delay),
		retry.MaxDelay(ld.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var p permanentError
			return !errors.As(err, &p)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.L().Warn("layer_fetch_retry", "layer", src.Name, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Decode 解析 FeatureCollection 或单个 Feature
// 约束：逐要素解码，单个要素失败不影响其余要素；latlon 源在此统一转换为 [lon, lat]
func Decode(name string, data []byte, order CoordOrder) (*Layer, error) {
	var env struct {
		Type     string            `json:"type"`
		Features []json.RawMessage `json:"features"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	raws := env.Features
	switch strings.ToLower(env.Type) {
	case "featurecollection":
	case "feature":
		raws = []json.RawMessage{data}
	default:
		return nil, fmt.Errorf("decode %s: unsupported document type %q", name, env.Type)
	}
	layer := &Layer{Name: name, Features: make([]Feature, 0, len(raws))}
	for i, raw := range raws {
		f, err := decodeFeature(raw, order)
		if err != nil {
			ge := &GeometryError{Layer: name, Index: i, Err: err}
			logger.L().Warn("geometry_skipped", "layer", name, "index", i, "err", ge)
			metrics.GeometryFaultsTotal.WithLabelValues(name).Inc()
			layer.Skipped++
			continue
		}
		layer.Features = append(layer.Features, f)
	}
	metrics.LayerFeatures.WithLabelValues(name).Set(float64(len(layer.Features)))
	return layer, nil
}

func decodeFeature(raw json.RawMessage, order CoordOrder) (Feature, error) {
	gf, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return Feature{}, err
	}
	g := gf.Geometry
	if g == nil {
		return Feature{}, errEmptyGeometry
	}
	if order == LatLon {
		g = project.Geometry(g, swapAxes)
	}
	if err := Validate(g); err != nil {
		return Feature{}, err
	}
	return NewFeature(g, gf.Properties), nil
}

func swapAxes(p orb.Point) orb.Point { return orb.Point{p[1], p[0]} }

// Validate 检查几何非空且坐标落在 WGS84 取值范围内
func Validate(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return errEmptyGeometry
	case orb.Point:
		return validPoint(g)
	case orb.MultiPoint:
		return validPath(g, 1)
	case orb.LineString:
		return validPath(g, 1)
	case orb.Ring:
		return validPath(g, 3)
	case orb.Polygon:
		if len(g) == 0 {
			return errEmptyGeometry
		}
		for _, r := range g {
			if err := validPath(r, 3); err != nil {
				return err
			}
		}
		return nil
	case orb.MultiLineString:
		if len(g) == 0 {
			return errEmptyGeometry
		}
		for _, ls := range g {
			if err := validPath(ls, 1); err != nil {
				return err
			}
		}
		return nil
	case orb.MultiPolygon:
		if len(g) == 0 {
			return errEmptyGeometry
		}
		for _, p := range g {
			if err := Validate(p); err != nil {
				return err
			}
		}
		return nil
	case orb.Collection:
		if len(g) == 0 {
			return errEmptyGeometry
		}
		for _, c := range g {
			if err := Validate(c); err != nil {
				return err
			}
		}
		return nil
	case orb.Bound:
		if err := validPoint(g.Min); err != nil {
			return err
		}
		return validPoint(g.Max)
	}
	return fmt.Errorf("unsupported geometry %T", g)
}

func validPath(pts []orb.Point, min int) error {
	if len(pts) < min {
		return errEmptyGeometry
	}
	for _, p := range pts {
		if err := validPoint(p); err != nil {
			return err
		}
	}
	return nil
}

func validPoint(p orb.Point) error {
	lng, lat := p[0], p[1]
	if math.IsNaN(lng) || math.IsNaN(lat) || lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return errBadCoordinate
	}
	return nil
}
