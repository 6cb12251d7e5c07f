package postgres

import (
	"context"
	"database/sql"

	"reportsigner/internal/model"
	"reportsigner/internal/repository"
)

// ReportPostgres is a PostgreSQL implementation of repository.ReportRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type ReportPostgres struct {
	db *sql.DB
}

// NewReportPostgres creates a new ReportPostgres repository.
func NewReportPostgres(db *sql.DB) *ReportPostgres {
	return &ReportPostgres{db: db}
}

var _ repository.ReportRepository = (*ReportPostgres)(nil)

// Create inserts a new report row and returns the stored record.
func (r *ReportPostgres) Create(ctx context.Context, rep *model.Report) (*model.Report, error) {
	const q = `
		INSERT INTO reports (id, filename, storage_path, checksum, size_bytes, generated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, filename, storage_path, checksum, size_bytes, generated_at, expires_at
	`
	row := r.db.QueryRowContext(ctx, q,
		rep.ID,
		rep.Filename,
		rep.StoragePath,
		rep.Checksum,
		rep.SizeBytes,
		rep.GeneratedAt,
		rep.ExpiresAt,
	)
	var out model.Report
	if err := row.Scan(
		&out.ID,
		&out.Filename,
		&out.StoragePath,
		&out.Checksum,
		&out.SizeBytes,
		&out.GeneratedAt,
		&out.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByFilename fetches a single report by its stored filename.
func (r *ReportPostgres) FindByFilename(ctx context.Context, filename string) (*model.Report, error) {
	const q = `
		SELECT id, filename, storage_path, checksum, size_bytes, generated_at, expires_at
		FROM reports
		WHERE filename = $1
	`
	row := r.db.QueryRowContext(ctx, q, filename)
	var rep model.Report
	if err := row.Scan(
		&rep.ID,
		&rep.Filename,
		&rep.StoragePath,
		&rep.Checksum,
		&rep.SizeBytes,
		&rep.GeneratedAt,
		&rep.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &rep, nil
}

// List returns reports using LIMIT/OFFSET pagination and a total count.
func (r *ReportPostgres) List(ctx context.Context, pq repository.PageQuery) (*repository.PageResult[model.Report], error) {
	// Count total rows
	const qCount = `SELECT COUNT(*) FROM reports`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	const qList = `
		SELECT id, filename, storage_path, checksum, size_bytes, generated_at, expires_at
		FROM reports
		ORDER BY generated_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, qList, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Report, 0)
	for rows.Next() {
		var rep model.Report
		if err := rows.Scan(
			&rep.ID,
			&rep.Filename,
			&rep.StoragePath,
			&rep.Checksum,
			&rep.SizeBytes,
			&rep.GeneratedAt,
			&rep.ExpiresAt,
		); err != nil {
			return nil, err
		}
		items = append(items, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Report]{
		Items: items,
		Total: total,
	}, nil
}

// DeleteByFilename removes a report row by its stored filename. It does not
// return an error if the row does not exist.
func (r *ReportPostgres) DeleteByFilename(ctx context.Context, filename string) error {
	const q = `DELETE FROM reports WHERE filename = $1`
	res, err := r.db.ExecContext(ctx, q, filename)
	if err != nil {
		return err
	}
	_, _ = res.RowsAffected()
	return nil
}
