// internal/repository/interfaces.go
package repository

import (
	"context"

	"kitchen-print-service/internal/model"
)

// PrinterRepository stores printer registrations across restarts
type PrinterRepository interface {
	// Upsert inserts the record or replaces the profile of an existing id
	Upsert(ctx context.Context, record *model.PrinterRecord) error
	Get(ctx context.Context, id string) (*model.PrinterRecord, error)
	List(ctx context.Context) ([]*model.PrinterRecord, error)
	// Delete returns a NotFoundError when the id is not stored
	Delete(ctx context.Context, id string) error
}
