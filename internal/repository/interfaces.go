// Package repository defines the data access interfaces of the
// certificate secure-access service. The content platform owns the full
// relational model; this service only reads the slices it needs for
// on-demand regeneration and ownership checks.
package repository

import (
	"context"
	"errors"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("not found")

// CertificateRepository reads certificate data.
type CertificateRepository interface {
	// FindWithRecipients loads a certificate and all its recipients.
	// Returns ErrNotFound if the certificate does not exist.
	FindWithRecipients(ctx context.Context, id int64) (*domain.Certificate, error)
}

// OrganizationRepository reads organization data.
type OrganizationRepository interface {
	// FindByID loads an organization.
	// Returns ErrNotFound if the organization does not exist.
	FindByID(ctx context.Context, id int64) (*domain.Organization, error)
}

// Repositories bundles the repositories a backend provides.
type Repositories struct {
	Certificates  CertificateRepository
	Organizations OrganizationRepository
}
