package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/routemate/bus-booking-backend/internal/models"
)

// CompanyRepository handles read access to the companies table
type CompanyRepository struct {
	db DB
}

// NewCompanyRepository creates a new CompanyRepository
func NewCompanyRepository(db DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// GetByID retrieves a company by ID
func (r *CompanyRepository) GetByID(companyID string) (*models.Company, error) {
	query := `
		SELECT id, name, contact_phone, contact_email, created_at, updated_at
		FROM companies
		WHERE id = $1
	`

	var company models.Company
	if err := r.db.Get(&company, query, companyID); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	return &company, nil
}

// GetByIDs retrieves a batch of companies in one round trip
func (r *CompanyRepository) GetByIDs(companyIDs []string) ([]models.Company, error) {
	if len(companyIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, contact_phone, contact_email, created_at, updated_at
		FROM companies
		WHERE id = ANY($1)
	`

	var companies []models.Company
	if err := r.db.Select(&companies, query, pq.Array(companyIDs)); err != nil {
		return nil, fmt.Errorf("failed to get companies: %w", err)
	}

	return companies, nil
}
