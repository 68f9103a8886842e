package admin

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/medimart/platform/pkg/database"
	"github.com/medimart/platform/pkg/types"
)

// ChemistRepository persists chemist records.
type ChemistRepository interface {
	Create(ctx context.Context, chemist *types.Chemist) error
	GetByID(ctx context.Context, id string) (*types.Chemist, error)
	GetByEmail(ctx context.Context, email string) (*types.Chemist, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters *types.ListFilters) ([]*types.Chemist, int, error)
}

// DoctorRepository persists doctor records.
type DoctorRepository interface {
	Create(ctx context.Context, doctor *types.Doctor) error
	GetByID(ctx context.Context, id string) (*types.Doctor, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filters *types.ListFilters) ([]*types.Doctor, int, error)
}

// PostgresChemistRepository implements ChemistRepository on postgres.
type PostgresChemistRepository struct {
	db *database.DB
}

// NewPostgresChemistRepository creates a postgres-backed chemist repository.
func NewPostgresChemistRepository(db *database.DB) *PostgresChemistRepository {
	return &PostgresChemistRepository{db: db}
}

// Create inserts a new chemist.
func (r *PostgresChemistRepository) Create(ctx context.Context, chemist *types.Chemist) error {
	if chemist.ID == "" {
		chemist.ID = uuid.New().String()
	}
	now := time.Now()
	chemist.CreatedAt = now
	chemist.UpdatedAt = now
	if chemist.Status == "" {
		chemist.Status = types.ProviderStatusPending
	}

	query := `
		INSERT INTO chemists (
			id, owner_name, shop_name, email, phone, city, address,
			license_number, gst_number, password_hash, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		chemist.ID, chemist.OwnerName, chemist.ShopName, chemist.Email, chemist.Phone,
		chemist.City, chemist.Address, chemist.LicenseNumber, chemist.GSTNumber,
		chemist.PasswordHash, chemist.Status, chemist.CreatedAt, chemist.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewValidationError(types.ErrCodeConflict,
				"A chemist with this email already exists", nil)
		}
		return fmt.Errorf("failed to create chemist: %w", err)
	}
	return nil
}

// GetByID fetches one chemist.
func (r *PostgresChemistRepository) GetByID(ctx context.Context, id string) (*types.Chemist, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByEmail fetches a chemist by login email.
func (r *PostgresChemistRepository) GetByEmail(ctx context.Context, email string) (*types.Chemist, error) {
	return r.get(ctx, `WHERE email = $1`, email)
}

func (r *PostgresChemistRepository) get(ctx context.Context, where string, arg interface{}) (*types.Chemist, error) {
	query := `
		SELECT id, owner_name, shop_name, email, phone, city, address,
		       license_number, gst_number, password_hash, status, created_at, updated_at
		FROM chemists ` + where

	chemist := &types.Chemist{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&chemist.ID, &chemist.OwnerName, &chemist.ShopName, &chemist.Email, &chemist.Phone,
		&chemist.City, &chemist.Address, &chemist.LicenseNumber, &chemist.GSTNumber,
		&chemist.PasswordHash, &chemist.Status, &chemist.CreatedAt, &chemist.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Chemist not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chemist: %w", err)
	}
	return chemist, nil
}

// chemistColumns lists the columns admin updates may touch.
var chemistColumns = map[string]bool{
	"owner_name":     true,
	"shop_name":      true,
	"email":          true,
	"phone":          true,
	"city":           true,
	"address":        true,
	"license_number": true,
	"gst_number":     true,
	"password_hash":  true,
	"status":         true,
}

// Update applies a partial update, building the SET clause from the allowed
// subset of the provided fields.
func (r *PostgresChemistRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	setClauses, args := buildSetClause(updates, chemistColumns)
	if len(setClauses) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "No updatable fields provided", nil)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE chemists SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update chemist: %w", err)
	}
	return requireRow(result, "Chemist not found")
}

// Delete removes a chemist record.
func (r *PostgresChemistRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM chemists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chemist: %w", err)
	}
	return requireRow(result, "Chemist not found")
}

// List returns one page of chemists matching the filters, newest first.
func (r *PostgresChemistRepository) List(ctx context.Context, filters *types.ListFilters) ([]*types.Chemist, int, error) {
	where, args := buildProviderFilters(filters, []string{"shop_name", "owner_name", "email"})

	var total int
	countQuery := `SELECT COUNT(*) FROM chemists` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count chemists: %w", err)
	}

	query := `
		SELECT id, owner_name, shop_name, email, phone, city, address,
		       license_number, gst_number, password_hash, status, created_at, updated_at
		FROM chemists` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filters.PageSize(), filters.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list chemists: %w", err)
	}
	defer rows.Close()

	chemists := []*types.Chemist{}
	for rows.Next() {
		chemist := &types.Chemist{}
		err := rows.Scan(
			&chemist.ID, &chemist.OwnerName, &chemist.ShopName, &chemist.Email, &chemist.Phone,
			&chemist.City, &chemist.Address, &chemist.LicenseNumber, &chemist.GSTNumber,
			&chemist.PasswordHash, &chemist.Status, &chemist.CreatedAt, &chemist.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan chemist: %w", err)
		}
		chemists = append(chemists, chemist)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate chemists: %w", err)
	}
	return chemists, total, nil
}

// PostgresDoctorRepository implements DoctorRepository on postgres.
type PostgresDoctorRepository struct {
	db *database.DB
}

// NewPostgresDoctorRepository creates a postgres-backed doctor repository.
func NewPostgresDoctorRepository(db *database.DB) *PostgresDoctorRepository {
	return &PostgresDoctorRepository{db: db}
}

// Create inserts a new doctor.
func (r *PostgresDoctorRepository) Create(ctx context.Context, doctor *types.Doctor) error {
	if doctor.ID == "" {
		doctor.ID = uuid.New().String()
	}
	now := time.Now()
	doctor.CreatedAt = now
	doctor.UpdatedAt = now
	if doctor.Status == "" {
		doctor.Status = types.ProviderStatusPending
	}

	query := `
		INSERT INTO doctors (
			id, name, email, phone, city, specialty, registration_number,
			years_experience, consultation_fee, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		doctor.ID, doctor.Name, doctor.Email, doctor.Phone, doctor.City,
		doctor.Specialty, doctor.RegistrationNumber, doctor.YearsExperience,
		doctor.ConsultationFee, doctor.Status, doctor.CreatedAt, doctor.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return types.NewValidationError(types.ErrCodeConflict,
				"A doctor with this registration number already exists", nil)
		}
		return fmt.Errorf("failed to create doctor: %w", err)
	}
	return nil
}

// GetByID fetches one doctor.
func (r *PostgresDoctorRepository) GetByID(ctx context.Context, id string) (*types.Doctor, error) {
	query := `
		SELECT id, name, email, phone, city, specialty, registration_number,
		       years_experience, consultation_fee, status, created_at, updated_at
		FROM doctors WHERE id = $1`

	doctor := &types.Doctor{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&doctor.ID, &doctor.Name, &doctor.Email, &doctor.Phone, &doctor.City,
		&doctor.Specialty, &doctor.RegistrationNumber, &doctor.YearsExperience,
		&doctor.ConsultationFee, &doctor.Status, &doctor.CreatedAt, &doctor.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewNotFoundError(types.ErrCodeNotFound, "Doctor not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get doctor: %w", err)
	}
	return doctor, nil
}

var doctorColumns = map[string]bool{
	"name":                true,
	"email":               true,
	"phone":               true,
	"city":                true,
	"specialty":           true,
	"registration_number": true,
	"years_experience":    true,
	"consultation_fee":    true,
	"status":              true,
}

// Update applies a partial update.
func (r *PostgresDoctorRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	setClauses, args := buildSetClause(updates, doctorColumns)
	if len(setClauses) == 0 {
		return types.NewValidationError(types.ErrCodeInvalidInput, "No updatable fields provided", nil)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE doctors SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update doctor: %w", err)
	}
	return requireRow(result, "Doctor not found")
}

// Delete removes a doctor record.
func (r *PostgresDoctorRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete doctor: %w", err)
	}
	return requireRow(result, "Doctor not found")
}

// List returns one page of doctors matching the filters, newest first.
func (r *PostgresDoctorRepository) List(ctx context.Context, filters *types.ListFilters) ([]*types.Doctor, int, error) {
	where, args := buildProviderFilters(filters, []string{"name", "email", "specialty"})

	var total int
	countQuery := `SELECT COUNT(*) FROM doctors` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count doctors: %w", err)
	}

	query := `
		SELECT id, name, email, phone, city, specialty, registration_number,
		       years_experience, consultation_fee, status, created_at, updated_at
		FROM doctors` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filters.PageSize(), filters.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	doctors := []*types.Doctor{}
	for rows.Next() {
		doctor := &types.Doctor{}
		err := rows.Scan(
			&doctor.ID, &doctor.Name, &doctor.Email, &doctor.Phone, &doctor.City,
			&doctor.Specialty, &doctor.RegistrationNumber, &doctor.YearsExperience,
			&doctor.ConsultationFee, &doctor.Status, &doctor.CreatedAt, &doctor.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, doctor)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate doctors: %w", err)
	}
	return doctors, total, nil
}

// buildSetClause turns an update map into SQL SET fragments, keeping only
// allowed columns and always bumping updated_at.
func buildSetClause(updates map[string]interface{}, allowed map[string]bool) ([]string, []interface{}) {
	setClauses := []string{}
	args := []interface{}{}

	for column, value := range updates {
		if !allowed[column] {
			continue
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if len(setClauses) > 0 {
		args = append(args, time.Now())
		setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", len(args)))
	}
	return setClauses, args
}

// buildProviderFilters builds the WHERE clause shared by both listings.
func buildProviderFilters(filters *types.ListFilters, searchColumns []string) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filters.City != "" {
		args = append(args, filters.City)
		clauses = append(clauses, fmt.Sprintf("city = $%d", len(args)))
	}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		like := make([]string, len(searchColumns))
		for i, col := range searchColumns {
			like[i] = fmt.Sprintf("%s ILIKE $%d", col, len(args))
		}
		clauses = append(clauses, "("+strings.Join(like, " OR ")+")")
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func requireRow(result sql.Result, notFound string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return types.NewNotFoundError(types.ErrCodeNotFound, notFound)
	}
	return nil
}
