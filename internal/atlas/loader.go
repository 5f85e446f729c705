package atlas

import (
	"context"
	"sync"
	"time"

	"dumpwatch/internal/boundary"
	"dumpwatch/internal/config"
	"dumpwatch/internal/geo"
	"dumpwatch/internal/hazard"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/office"
)

// Load 并行拉取全部图层并在全部返回后构建 Atlas
// 约束：单个图层失败只记录日志，对应图层视为空；省界缺失时闸门返回未就绪
func Load(ctx context.Context, ld *geo.Loader, layers config.Layers, officeRadiusKm float64, opts ...Option) (*Atlas, error) {
	l := logger.L()
	start := time.Now()
	srcs := []geo.Source{layers.Province, layers.Subdivisions, layers.Offices}
	for _, h := range layers.Hazards {
		srcs = append(srcs, h.Source)
	}
	loaded := make([]*geo.Layer, len(srcs))
	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src geo.Source) {
			defer wg.Done()
			layer, err := ld.Load(ctx, src)
			if err != nil {
				l.Error("layer_load_error", "layer", src.Name, "err", err)
				return
			}
			loaded[i] = layer
		}(i, src)
	}
	wg.Wait()

	cats := make([]hazard.Category, 0, len(layers.Hazards))
	for i, h := range layers.Hazards {
		cats = append(cats, hazard.Category{
			ID:       h.ID,
			Label:    h.Label,
			Distance: h.Distance,
			Unit:     h.Unit,
			Tier:     h.Tier,
			Layer:    loaded[3+i],
		})
	}
	reg, err := hazard.NewRegistry(cats)
	if err != nil {
		return nil, err
	}
	gate := boundary.NewGate(loaded[0], loaded[1], layers.SubdivisionProp)
	offices := office.NewResolver(office.FromLayer(loaded[2], layers.OfficeNameProp, layers.OfficePhoneProp), officeRadiusKm)

	var failed []string
	for i, layer := range loaded {
		if layer == nil {
			failed = append(failed, srcs[i].Name)
		}
	}
	l.Info("atlas_load_ok",
		"province", loaded[0].Len(),
		"subdivisions", loaded[1].Len(),
		"offices", offices.Len(),
		"hazard_features", reg.Features(),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return New(reg, gate, offices, opts...), nil
}
