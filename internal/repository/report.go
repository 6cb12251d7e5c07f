package repository

import (
	"context"

	"reportsigner/internal/model"
)

// ReportRepository defines data access for the report issuance audit trail
// using SQL queries only. No business logic here — strictly persistence
// operations.
type ReportRepository interface {
	// Create inserts a new report record.
	// The caller provides all fields; nothing is defaulted by the database.
	// Returns the stored report.
	Create(ctx context.Context, rep *model.Report) (*model.Report, error)

	// FindByFilename returns a report by its stored filename.
	FindByFilename(ctx context.Context, filename string) (*model.Report, error)

	// List returns a paginated list of reports and total rows count.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Report], error)

	// DeleteByFilename removes a report row by its stored filename.
	// It returns nil if the row was deleted or did not exist.
	DeleteByFilename(ctx context.Context, filename string) error
}
