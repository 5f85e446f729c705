// 归档工具：把远端报告列表镜像到 PostgreSQL；MIRROR_INTERVAL_S > 0 时常驻定时执行
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dumpwatch/internal/archive"
	"dumpwatch/internal/config"
	"dumpwatch/internal/logger"
	"dumpwatch/internal/migrate"
	"dumpwatch/internal/remote"
	"dumpwatch/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()

	cfg, err := config.FromEnv()
	if err != nil || cfg.RemoteURL == "" {
		l.Error("config_error", "err", err, "remote", cfg.RemoteURL)
		os.Exit(1)
	}
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	st := archive.AttachDB(db)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := db.PingContext(ctx); err != nil {
		l.Error("db_ping_error", "err", err)
		os.Exit(1)
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	src := remote.New(cfg.RemoteURL, cfg.RemoteTimeout)
	n, err := archive.Mirror(ctx, src, st)
	if err != nil {
		l.Error("mirror_error", "err", err)
		if cfg.MirrorInterval <= 0 {
			os.Exit(1)
		}
	} else {
		l.Info("mirror_done", "changed", n)
	}
	if cfg.MirrorInterval <= 0 {
		return
	}
	l.Info("mirror_periodic", "interval", cfg.MirrorInterval.String())
	<-archive.StartPeriodic(ctx, cfg.MirrorInterval, src, st)
	counts, err := st.CountByStatus(context.Background())
	if err == nil {
		l.Info("mirror_stopped", "by_status", counts)
	}
}
