package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026052101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	image_key TEXT NOT NULL,
	status TEXT NOT NULL,
	product_name TEXT,
	brand_name TEXT,
	score_value INTEGER NOT NULL DEFAULT 0,
	score_grade TEXT,
	fallback_mode BOOLEAN NOT NULL DEFAULT FALSE,
	analysis JSONB,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *domain.Scan) error {
	analysisJSON, err := marshalAnalysis(scan.Analysis)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO scans (
	id, image_key, status, product_name, brand_name, score_value, score_grade, fallback_mode, analysis, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
`,
		scan.ID, scan.ImageKey, string(scan.Status), scan.ProductName, scan.BrandName,
		scan.ScoreValue, scan.ScoreGrade, scan.FallbackMode, analysisJSON, scan.Error,
		scan.CreatedAt, scan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.Scan, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, image_key, status, product_name, brand_name, score_value, score_grade, fallback_mode, analysis, error_message, created_at, updated_at
FROM scans
WHERE id = $1
`, id)

	scan, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("get scan by id: %w", err)
	}
	return scan, nil
}

func (r *ScanRepository) ListRecent(ctx context.Context, limit int) ([]domain.Scan, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, image_key, status, product_name, brand_name, score_value, score_grade, fallback_mode, analysis, error_message, created_at, updated_at
FROM scans
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Scan, 0)
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, *scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

func (r *ScanRepository) UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update scan status rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrScanNotFound, "update scan status", fmt.Errorf("id=%s", id))
	}
	return nil
}

func (r *ScanRepository) SaveAnalysis(ctx context.Context, id string, analysis *domain.FinalAnalysis) error {
	analysisJSON, err := marshalAnalysis(analysis)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, product_name = $3, brand_name = $4, score_value = $5, score_grade = $6, fallback_mode = $7, analysis = $8, error_message = '', updated_at = $9
WHERE id = $1
`, id, string(domain.ScanStatusDone), analysis.ProductName, analysis.BrandName,
		analysis.Score.Value, analysis.Score.Grade, analysis.FallbackMode, analysisJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save analysis rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrScanNotFound, "save analysis", fmt.Errorf("id=%s", id))
	}
	return nil
}

func marshalAnalysis(analysis *domain.FinalAnalysis) ([]byte, error) {
	if analysis == nil {
		return nil, nil
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRow(row rowScanner) (*domain.Scan, error) {
	var scan domain.Scan
	var status string
	var analysisRaw []byte

	err := row.Scan(
		&scan.ID, &scan.ImageKey, &status, &scan.ProductName, &scan.BrandName,
		&scan.ScoreValue, &scan.ScoreGrade, &scan.FallbackMode, &analysisRaw, &scan.Error,
		&scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(analysisRaw) > 0 {
		var analysis domain.FinalAnalysis
		if err := json.Unmarshal(analysisRaw, &analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		scan.Analysis = &analysis
	}
	scan.Status = domain.ScanStatus(status)
	return &scan, nil
}
