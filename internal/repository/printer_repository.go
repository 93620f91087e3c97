// internal/repository/printer_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"kitchen-print-service/internal/database"
	"kitchen-print-service/internal/model"
)

// printerRepository implements PrinterRepository on Postgres
type printerRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewPrinterRepository creates a new printer repository
func NewPrinterRepository(db *database.DB, logger *zap.Logger) PrinterRepository {
	return &printerRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or replaces a printer registration
func (r *printerRepository) Upsert(ctx context.Context, record *model.PrinterRecord) error {
	query := `
		INSERT INTO printers (id, transport, profile)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET transport = EXCLUDED.transport,
		    profile = EXCLUDED.profile,
		    updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, record.ID, record.Profile.Transport, record.Profile).
		Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert printer", zap.Error(err), zap.String("printer_id", record.ID))
		return fmt.Errorf("failed to upsert printer: %w", err)
	}

	r.logger.Info("Printer stored", zap.String("printer_id", record.ID))
	return nil
}

// Get retrieves a printer registration by id
func (r *printerRepository) Get(ctx context.Context, id string) (*model.PrinterRecord, error) {
	query := `SELECT id, profile, created_at, updated_at FROM printers WHERE id = $1`

	record := &model.PrinterRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Profile, &record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &model.NotFoundError{PrinterID: id}
		}
		return nil, fmt.Errorf("failed to get printer: %w", err)
	}

	return record, nil
}

// List returns every stored printer ordered by creation time
func (r *printerRepository) List(ctx context.Context) ([]*model.PrinterRecord, error) {
	query := `SELECT id, profile, created_at, updated_at FROM printers ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list printers: %w", err)
	}
	defer rows.Close()

	var records []*model.PrinterRecord
	for rows.Next() {
		record := &model.PrinterRecord{}
		if err := rows.Scan(&record.ID, &record.Profile, &record.CreatedAt, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan printer: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate printers: %w", err)
	}

	return records, nil
}

// Delete removes a printer registration
func (r *printerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM printers WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete printer", zap.Error(err), zap.String("printer_id", id))
		return fmt.Errorf("failed to delete printer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return &model.NotFoundError{PrinterID: id}
	}

	r.logger.Info("Printer deleted", zap.String("printer_id", id))
	return nil
}
