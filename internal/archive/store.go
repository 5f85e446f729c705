// 包 archive：远端报告列表在 PostgreSQL 中的镜像，供离线统计与留档
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dumpwatch/internal/logger"
	"dumpwatch/internal/report"
)

// Store：数据库访问入口，持有连接池
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

const upsertSQL = `INSERT INTO dumping_reports(report_id, lat, lng, waste_type, waste_size, description, status, risk_level,
        verified_count, certified, subdivision, office, office_phone, photo_url, reported_at)
    VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
    ON CONFLICT (report_id) DO UPDATE SET status=EXCLUDED.status, risk_level=EXCLUDED.risk_level,
        verified_count=EXCLUDED.verified_count, certified=EXCLUDED.certified, photo_url=EXCLUDED.photo_url,
        reported_at=COALESCE(EXCLUDED.reported_at, dumping_reports.reported_at), updated_at=now()
    WHERE (dumping_reports.status, dumping_reports.verified_count, dumping_reports.photo_url)
        IS DISTINCT FROM (EXCLUDED.status, EXCLUDED.verified_count, EXCLUDED.photo_url)`

// Upsert 在单个事务内写入；未确认的本地报告不入库，返回实际写入条数
func (s *Store) Upsert(ctx context.Context, rs []report.Report) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	n := 0
	for _, r := range rs {
		if r.Pending || r.ID == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, r.ID, r.Lat, r.Lng, r.WasteType, r.WasteSize, r.Description,
			string(r.Status), r.Risk.String(), r.VerifiedCount, r.Certified, r.Subdivision, r.Office, r.OfficePhone, r.PhotoURL,
			sql.NullTime{Time: r.Time, Valid: !r.Time.IsZero()})
		if err != nil {
			return 0, fmt.Errorf("upsert %s: %w", r.ID, err)
		}
		if k, _ := res.RowsAffected(); k > 0 {
			n++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	logger.L().Debug("archive_upsert", "records", len(rs), "changed", n)
	return n, nil
}

// RecordRun 记录一次镜像执行结果
func (s *Store) RecordRun(ctx context.Context, started time.Time, records int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO dumping_mirror_runs(started_at, records, error) VALUES($1,$2,$3)`, started, records, msg)
	return err
}

// CountByStatus 按状态汇总归档报告（含 Cleaned）
func (s *Store) CountByStatus(ctx context.Context) (map[report.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM dumping_reports GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[report.Status]int, len(report.Statuses))
	for _, st := range report.Statuses {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[report.Status(st)] = n
	}
	return out, rows.Err()
}
