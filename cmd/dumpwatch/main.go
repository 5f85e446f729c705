// 程序入口：读取配置、初始化依赖、后台加载地理数据并启动 HTTP 服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"dumpwatch/internal/api"
	"dumpwatch/internal/atlas"
	"dumpwatch/internal/config"
	"dumpwatch/internal/geo"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/metrics"
	"dumpwatch/internal/middleware"
	"dumpwatch/internal/remote"
	"dumpwatch/internal/report"
	"dumpwatch/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")

	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	if cfg.RemoteURL == "" {
		l.Error("config_error", "err", "REMOTE_STORE_URL is required")
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

	opts := []atlas.Option{atlas.WithLRU(cfg.AssessCacheSize, cfg.AssessCacheTTL)}
	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
			opts = append(opts, atlas.WithRedis(rc, cfg.AssessCacheTTL, os.Getenv("REDIS_NS")))
		}
		defer rc.Close()
	}

	ctl := report.NewController(remote.New(cfg.RemoteURL, cfg.RemoteTimeout), nil, report.Options{
		Tolerance: cfg.VerifyTolerance,
		Timeout:   cfg.RemoteTimeout,
		Notifier: report.NotifierFunc(func(n report.Notice) {
			l.Info("notice", "level", n.Level, "op", n.Op, "msg", n.Message, "report_id", n.ReportID)
		}),
	})
	ctl.Store().Subscribe(func(c report.Change) {
		l.Debug("store_change", "kind", c.Kind, "id", c.ID)
	})
	ctl.Load()

	// 地理数据在后台加载；完成前草稿请求返回 data_not_ready
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.LoadTimeout)
		defer cancel()
		a, err := atlas.Load(ctx, geo.NewLoader(cfg.LoadTimeout), cfg.Layers, cfg.OfficeRadiusKm, opts...)
		if err != nil {
			l.Error("atlas_load_error", "err", err)
			return
		}
		ctl.SetAtlas(a)
	}()

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(api.NewServer(ctl, cfg.AdminToken))
	limited := middleware.LimitWrites(cfg.RateLimitQPS)(apiMux)
	mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, limited))
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           logger.AccessMiddleware(l)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		l.Info("listening", "addr", cfg.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Error("listen_error", "err", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	l.Info("shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.Shutdown(sctx)
	// 等待在途远端操作落库
	ctl.Wait()
}
