package onboarding

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medimart/platform/pkg/database"
	"github.com/medimart/platform/pkg/types"
)

// ApplicationRepository persists submitted lab applications.
type ApplicationRepository interface {
	Create(ctx context.Context, app *types.LabApplication) error
	GetByID(ctx context.Context, id string) (*types.LabApplication, error)
	GetByLicenseNumber(ctx context.Context, licenseNumber string) (*types.LabApplication, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateAcknowledgmentURL(ctx context.Context, id, url string) error
	List(ctx context.Context, status string, limit, offset int) ([]*types.LabApplication, int, error)
}

// PostgresApplicationRepository implements ApplicationRepository on postgres.
type PostgresApplicationRepository struct {
	db *database.DB
}

// NewPostgresApplicationRepository creates a postgres-backed repository.
func NewPostgresApplicationRepository(db *database.DB) *PostgresApplicationRepository {
	return &PostgresApplicationRepository{db: db}
}

// Create inserts a new application. A duplicate license number maps to a
// conflict error so resubmissions surface cleanly.
func (r *PostgresApplicationRepository) Create(ctx context.Context, app *types.LabApplication) error {
	if app.ID == "" {
		app.ID = uuid.New().String()
	}
	now := time.Now()
	app.CreatedAt = now
	app.UpdatedAt = now
	if app.Status == "" {
		app.Status = types.ApplicationStatusPending
	}

	services, err := json.Marshal(app.Services)
	if err != nil {
		return fmt.Errorf("failed to encode services: %w", err)
	}
	documentURLs, err := json.Marshal(app.DocumentURLs)
	if err != nil {
		return fmt.Errorf("failed to encode document urls: %w", err)
	}

	query := `
		INSERT INTO lab_applications (
			id, owner_name, email, phone, lab_name, license_number,
			registration_number, address, gst_number, pan_number,
			services, is_kyc, status, document_urls, acknowledgment_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.db.ExecContext(ctx, query,
		app.ID, app.OwnerName, app.Email, app.Phone, app.LabName, app.LicenseNumber,
		app.RegistrationNumber, app.Address, app.GSTNumber, app.PANNumber,
		services, app.IsKYC, app.Status, documentURLs, app.AcknowledgmentURL,
		app.CreatedAt, app.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewValidationError(types.ErrCodeConflict,
				"An application with this license number already exists", nil)
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// GetByID fetches one application.
func (r *PostgresApplicationRepository) GetByID(ctx context.Context, id string) (*types.LabApplication, error) {
	query := applicationSelect + ` WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByLicenseNumber fetches the application holding a license number.
func (r *PostgresApplicationRepository) GetByLicenseNumber(ctx context.Context, licenseNumber string) (*types.LabApplication, error) {
	query := applicationSelect + ` WHERE license_number = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, licenseNumber))
}

// UpdateStatus moves an application through the review workflow.
func (r *PostgresApplicationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lab_applications SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update application status: %w", err)
	}
	return requireRow(result)
}

// UpdateAcknowledgmentURL records the generated acknowledgment document.
func (r *PostgresApplicationRepository) UpdateAcknowledgmentURL(ctx context.Context, id, url string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE lab_applications SET acknowledgment_url = $1, updated_at = $2 WHERE id = $3`,
		url, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update acknowledgment url: %w", err)
	}
	return requireRow(result)
}

// List returns a page of applications, optionally filtered by status, newest
// first, with the unfiltered total for pagination.
func (r *PostgresApplicationRepository) List(ctx context.Context, status string, limit, offset int) ([]*types.LabApplication, int, error) {
	countQuery := `SELECT COUNT(*) FROM lab_applications`
	listQuery := applicationSelect
	args := []interface{}{}

	if status != "" {
		countQuery += ` WHERE status = $1`
		listQuery += ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := []*types.LabApplication{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, err
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, total, nil
}

const applicationSelect = `
	SELECT id, owner_name, email, phone, lab_name, license_number,
	       registration_number, address, gst_number, pan_number,
	       services, is_kyc, status, document_urls, acknowledgment_url,
	       created_at, updated_at
	FROM lab_applications`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *PostgresApplicationRepository) scanOne(row *sql.Row) (*types.LabApplication, error) {
	app, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Application not found")
	}
	if err != nil {
		return nil, err
	}
	return app, nil
}

func scanApplication(row rowScanner) (*types.LabApplication, error) {
	app := &types.LabApplication{}
	var services, documentURLs []byte

	err := row.Scan(
		&app.ID, &app.OwnerName, &app.Email, &app.Phone, &app.LabName, &app.LicenseNumber,
		&app.RegistrationNumber, &app.Address, &app.GSTNumber, &app.PANNumber,
		&services, &app.IsKYC, &app.Status, &documentURLs, &app.AcknowledgmentURL,
		&app.CreatedAt, &app.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}

	if len(services) > 0 {
		if err := json.Unmarshal(services, &app.Services); err != nil {
			return nil, fmt.Errorf("failed to decode services: %w", err)
		}
	}
	if len(documentURLs) > 0 {
		if err := json.Unmarshal(documentURLs, &app.DocumentURLs); err != nil {
			return nil, fmt.Errorf("failed to decode document urls: %w", err)
		}
	}
	return app, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, "Application not found")
	}
	return nil
}
