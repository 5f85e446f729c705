package migrate

import (
	"context"
	"database/sql"

	"dumpwatch/internal/logger"
)

// EnsureSchema 首次运行时创建归档表与索引
// 约束：全部语句为 IF NOT EXISTS，可重复执行
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}

var Statements = []string{
	`CREATE TABLE IF NOT EXISTS dumping_reports (
        report_id TEXT PRIMARY KEY,
        lat DOUBLE PRECISION NOT NULL,
        lng DOUBLE PRECISION NOT NULL,
        waste_type TEXT NOT NULL DEFAULT '',
        waste_size TEXT NOT NULL DEFAULT '',
        description TEXT NOT NULL DEFAULT '',
        status TEXT NOT NULL,
        risk_level TEXT NOT NULL,
        verified_count INT NOT NULL DEFAULT 1,
        certified BOOLEAN NOT NULL DEFAULT FALSE,
        subdivision TEXT NOT NULL DEFAULT '',
        office TEXT NOT NULL DEFAULT '',
        office_phone TEXT NOT NULL DEFAULT '',
        photo_url TEXT NOT NULL DEFAULT '',
        first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`ALTER TABLE dumping_reports ADD COLUMN IF NOT EXISTS reported_at TIMESTAMPTZ`,
	`CREATE INDEX IF NOT EXISTS idx_dumping_reports_status ON dumping_reports(status)`,
	`CREATE INDEX IF NOT EXISTS idx_dumping_reports_reported_at ON dumping_reports(reported_at)`,
	`CREATE INDEX IF NOT EXISTS idx_dumping_reports_loc ON dumping_reports(lat, lng)`,
	`CREATE TABLE IF NOT EXISTS dumping_mirror_runs (
        id BIGSERIAL PRIMARY KEY,
        started_at TIMESTAMPTZ NOT NULL,
        finished_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        records INT NOT NULL DEFAULT 0,
        error TEXT NOT NULL DEFAULT ''
    )`,
}
