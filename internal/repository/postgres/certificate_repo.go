package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
)

// certificateRepository implements repository.CertificateRepository.
type certificateRepository struct {
	db *DB
}

// NewCertificateRepository creates a new PostgreSQL certificate repository.
func NewCertificateRepository(db *DB) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

// FindWithRecipients loads a certificate and its recipients in two
// queries inside one snapshot of the pool.
func (r *certificateRepository) FindWithRecipients(ctx context.Context, id int64) (*domain.Certificate, error) {
	query := `
		SELECT id, organization_id, title, description, issued_date, issued_from, template_id
		FROM certificates
		WHERE id = $1
	`

	cert := &domain.Certificate{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&cert.ID,
		&cert.OrganizationID,
		&cert.Title,
		&cert.Description,
		&cert.IssuedDate,
		&cert.IssuedFrom,
		&cert.TemplateID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}

	recipientsQuery := `
		SELECT id, certificate_id, name, COALESCE(email, '')
		FROM certificate_recipients
		WHERE certificate_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, recipientsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec domain.Recipient
		if err := rows.Scan(&rec.ID, &rec.CertificateID, &rec.Name, &rec.Email); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		cert.Recipients = append(cert.Recipients, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}

	return cert, nil
}

// organizationRepository implements repository.OrganizationRepository.
type organizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new PostgreSQL organization repository.
func NewOrganizationRepository(db *DB) repository.OrganizationRepository {
	return &organizationRepository{db: db}
}

// FindByID loads an organization by ID.
func (r *organizationRepository) FindByID(ctx context.Context, id int64) (*domain.Organization, error) {
	query := `SELECT id, name FROM organizations WHERE id = $1`

	org := &domain.Organization{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&org.ID, &org.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}
