package archive

import (
	"context"
	"time"

	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"
	"dumpwatch/internal/report"
)

type Lister interface {
	List(ctx context.Context) ([]report.Report, error)
}

// Sink 为 *Store 的写入面
type Sink interface {
	Upsert(ctx context.Context, rs []report.Report) (int, error)
	RecordRun(ctx context.Context, started time.Time, records int, runErr error) error
}

// Mirror 拉取一次远端列表并写入归档
func Mirror(ctx context.Context, src Lister, dst Sink) (int, error) {
	started := time.Now()
	list, err := src.List(ctx)
	n := 0
	if err == nil {
		n, err = dst.Upsert(ctx, list)
	}
	if rerr := dst.RecordRun(ctx, started, n, err); rerr != nil {
		logger.L().Warn("mirror_record_run_error", "err", rerr)
	}
	if err != nil {
		metrics.MirrorRunsTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	metrics.MirrorRunsTotal.WithLabelValues("ok").Inc()
	return n, nil
}

// StartPeriodic 在后台按固定间隔执行镜像，直到 ctx 结束；错误只记录日志
func StartPeriodic(ctx context.Context, interval time.Duration, src Lister, dst Sink) <-chan struct{} {
	done := make(chan struct{})
	l := logger.L()
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Info("mirror_start")
				if n, err := Mirror(ctx, src, dst); err != nil {
					l.Error("mirror_error", "err", err)
				} else {
					l.Info("mirror_done", "changed", n)
				}
			}
		}
	}()
	return done
}

var _ Sink = (*Store)(nil)
