package settings

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/medimart/platform/pkg/database"
	"github.com/medimart/platform/pkg/types"
)

// Repository persists settings sections as section-key rows holding one JSON
// document each.
type Repository interface {
	Get(ctx context.Context, section types.SettingsSection) (*types.SettingsRecord, error)
	Upsert(ctx context.Context, record *types.SettingsRecord) error
	All(ctx context.Context) ([]*types.SettingsRecord, error)
}

// PostgresRepository implements Repository on postgres.
type PostgresRepository struct {
	db *database.DB
}

// NewPostgresRepository creates a postgres-backed settings repository.
func NewPostgresRepository(db *database.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns one section's record.
func (r *PostgresRepository) Get(ctx context.Context, section types.SettingsSection) (*types.SettingsRecord, error) {
	record := &types.SettingsRecord{}
	err := r.db.QueryRowContext(ctx,
		`SELECT section, document, updated_by, updated_at FROM settings WHERE section = $1`,
		string(section),
	).Scan(&record.Section, &record.Document, &record.UpdatedBy, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Settings section not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings section: %w", err)
	}
	return record, nil
}

// Upsert writes one section's record, replacing any previous document.
func (r *PostgresRepository) Upsert(ctx context.Context, record *types.SettingsRecord) error {
	record.UpdatedAt = time.Now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (section, document, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (section) DO UPDATE
		SET document = EXCLUDED.document,
		    updated_by = EXCLUDED.updated_by,
		    updated_at = EXCLUDED.updated_at`,
		string(record.Section), record.Document, record.UpdatedBy, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings section: %w", err)
	}
	return nil
}

// All returns every stored section.
func (r *PostgresRepository) All(ctx context.Context) ([]*types.SettingsRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT section, document, updated_by, updated_at FROM settings ORDER BY section`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	records := []*types.SettingsRecord{}
	for rows.Next() {
		record := &types.SettingsRecord{}
		if err := rows.Scan(&record.Section, &record.Document, &record.UpdatedBy, &record.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settings record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings: %w", err)
	}
	return records, nil
}
