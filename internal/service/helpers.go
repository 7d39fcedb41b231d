package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/renderer"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
)

// loadCertificate resolves a certificate, one of its recipients (the
// addressed one, or the first when recipientID is zero), and the owning
// organization, mapping repository misses to domain errors.
func loadCertificate(
	ctx context.Context,
	certs repository.CertificateRepository,
	orgs repository.OrganizationRepository,
	certificateID, recipientID int64,
) (*domain.Certificate, *domain.Recipient, *domain.Organization, error) {
	cert, err := certs.FindWithRecipients(ctx, certificateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, domain.ErrCertificateNotFound
		}
		return nil, nil, nil, err
	}

	var recipient *domain.Recipient
	if recipientID > 0 {
		recipient = cert.Recipient(recipientID)
	} else if len(cert.Recipients) > 0 {
		recipient = &cert.Recipients[0]
	}
	if recipient == nil {
		return nil, nil, nil, domain.ErrRecipientNotFound
	}

	org, err := orgs.FindByID(ctx, cert.OrganizationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil, domain.ErrOrganizationNotFound
		}
		return nil, nil, nil, err
	}

	return cert, recipient, org, nil
}

// renderContent produces the certificate file bytes for one format.
// HTML is the template output itself; PDF and PNG go through the
// external renderer.
func renderContent(
	ctx context.Context,
	rend renderer.Renderer,
	m *metrics.Metrics,
	cert *domain.Certificate,
	recipient *domain.Recipient,
	extension string,
) ([]byte, error) {
	html, err := renderer.BuildHTML(cert, recipient)
	if err != nil {
		return nil, err
	}

	m.Renders.WithLabelValues(extension).Inc()

	if extension == secure.ExtHTML {
		return []byte(html), nil
	}

	content, err := rend.Render(ctx, html, extension)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	return content, nil
}
