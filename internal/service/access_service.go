// Package service provides the business logic of the certificate
// secure-access layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/lock"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/renderer"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

// AccessService serves certificate files once the HTTP layer has
// structurally validated a request. It locates an existing file by the
// verified secure token, or regenerates it on demand from the data
// layer through the external renderer.
type AccessService struct {
	files    storage.FileStore
	certs    repository.CertificateRepository
	orgs     repository.OrganizationRepository
	renderer renderer.Renderer
	locks    lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// Regeneration lock parameters. The TTL covers a slow render; retries
// give a concurrent regeneration time to finish and store the file.
const (
	regenerateLockTTL   = 30 * time.Second
	regenerateLockTries = 5
	regenerateLockDelay = 200 * time.Millisecond
)

// NewAccessService creates an AccessService.
func NewAccessService(
	files storage.FileStore,
	certs repository.CertificateRepository,
	orgs repository.OrganizationRepository,
	rend renderer.Renderer,
	locks lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *AccessService {
	return &AccessService{
		files:    files,
		certs:    certs,
		orgs:     orgs,
		renderer: rend,
		locks:    locks,
		metrics:  m,
		logger:   logger.With().Str("service", "access").Logger(),
	}
}

// File is a certificate file ready to be served.
type File struct {
	Content     []byte
	ContentType string

	// SecurePath is the storage path the content lives at; empty when
	// the content was rendered for this response only.
	SecurePath string
}

// PathAccessInput identifies a file through the path-embedded-token
// scheme. The token must already have passed format validation and the
// URL's expiry check.
type PathAccessInput struct {
	OrganizationID int64
	CertificateID  int64
	SecureToken    string
	FileExtension  string

	// ClientIP is recorded in the audit trail.
	ClientIP string
}

// ServeByPath serves the file addressed by a validated path-scheme
// request. The token is the lookup key; when no stored file matches,
// the certificate is regenerated and stored back under the same token
// so the issued URL keeps working.
func (s *AccessService) ServeByPath(ctx context.Context, input PathAccessInput) (*File, error) {
	if !secure.IsValidToken(input.SecureToken) {
		return nil, secure.ErrInvalidTokenFormat
	}

	securePath, err := s.files.FindByToken(ctx, input.OrganizationID, input.SecureToken, input.FileExtension)
	if err == nil {
		file, err := s.serveStored(ctx, securePath, input)
		if err != nil {
			return nil, err
		}
		s.auditGranted("path", input.CertificateID, 0, input.SecureToken, input.ClientIP)
		return file, nil
	}
	if !errors.Is(err, domain.ErrFileNotFound) {
		return nil, err
	}

	file, err := s.regenerate(ctx, input)
	if err != nil {
		return nil, err
	}

	s.auditGranted("path", input.CertificateID, 0, input.SecureToken, input.ClientIP)
	return file, nil
}

// BearerAccessInput identifies a file through the bearer-token scheme.
// Claims must come from a successful token.Service verification.
type BearerAccessInput struct {
	CertificateID int64
	RecipientID   int64
	FileExtension string
	Claims        *token.Claims

	// ClientIP is recorded in the audit trail.
	ClientIP string
}

// ServeByToken serves a certificate file for a verified bearer token.
// The token's claimed certificate (and recipient, when both sides are
// scoped) must match the requested resource; afterwards the file is
// rendered from the data layer.
func (s *AccessService) ServeByToken(ctx context.Context, input BearerAccessInput) (*File, error) {
	if input.Claims.CertificateID != input.CertificateID {
		return nil, fmt.Errorf("%w: certificate mismatch", domain.ErrOwnershipMismatch)
	}
	if input.Claims.RecipientID != 0 && input.RecipientID != 0 && input.Claims.RecipientID != input.RecipientID {
		return nil, fmt.Errorf("%w: recipient mismatch", domain.ErrOwnershipMismatch)
	}

	recipientID := input.RecipientID
	if recipientID == 0 {
		recipientID = input.Claims.RecipientID
	}

	cert, recipient, _, err := loadCertificate(ctx, s.certs, s.orgs, input.CertificateID, recipientID)
	if err != nil {
		return nil, err
	}

	content, err := renderContent(ctx, s.renderer, s.metrics, cert, recipient, input.FileExtension)
	if err != nil {
		return nil, err
	}

	s.auditGranted("bearer", input.CertificateID, recipientID, input.Claims.ID, input.ClientIP)

	return &File{
		Content:     content,
		ContentType: storage.ContentType(input.FileExtension),
	}, nil
}

// regenerate rebuilds a missing file from certificate data and stores
// it under the presented token.
func (s *AccessService) regenerate(ctx context.Context, input PathAccessInput) (*File, error) {
	key := lock.RegenerateKey(input.OrganizationID, input.SecureToken, input.FileExtension)
	acquired, lockErr := s.locks.AcquireWithRetry(ctx, key, regenerateLockTTL, regenerateLockTries, regenerateLockDelay)
	if lockErr != nil {
		s.logger.Warn().Err(lockErr).Str("key", key).Msg("regeneration lock unavailable")
	} else if acquired {
		defer func() { _, _ = s.locks.Release(ctx, key) }()
	}

	// A concurrent request may have stored the file while we waited.
	if securePath, err := s.files.FindByToken(ctx, input.OrganizationID, input.SecureToken, input.FileExtension); err == nil {
		return s.serveStored(ctx, securePath, input)
	}

	cert, recipient, org, err := loadCertificate(ctx, s.certs, s.orgs, input.CertificateID, 0)
	if err != nil {
		return nil, err
	}

	if cert.OrganizationID != input.OrganizationID {
		return nil, fmt.Errorf("%w: organization mismatch", domain.ErrOwnershipMismatch)
	}

	content, err := renderContent(ctx, s.renderer, s.metrics, cert, recipient, input.FileExtension)
	if err != nil {
		return nil, err
	}

	securePath, err := secure.BuildFilePathWithToken(secure.FilePathParams{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		CertificateID:    cert.ID,
		CertificateTitle: cert.Title,
		RecipientID:      recipient.ID,
		RecipientName:    recipient.Name,
		FileExtension:    input.FileExtension,
	}, input.SecureToken)
	if err != nil {
		return nil, err
	}

	if err := s.files.Save(ctx, securePath, content); err != nil {
		// Serving still succeeds; only the cache-back failed.
		s.logger.Warn().Err(err).Str("path", securePath).Msg("failed to store regenerated file")
		securePath = ""
	}

	return &File{
		Content:     content,
		ContentType: storage.ContentType(input.FileExtension),
		SecurePath:  securePath,
	}, nil
}

// serveStored reads a file located by token lookup after confirming
// the certificate embedded in its path matches the requested one. The
// lookup keys on org+token+extension, so the path carries the only
// binding to a certificate id.
func (s *AccessService) serveStored(ctx context.Context, securePath string, input PathAccessInput) (*File, error) {
	components := secure.ParseFilePath(securePath)
	if components == nil || components.CertificateID != input.CertificateID {
		return nil, fmt.Errorf("%w: certificate mismatch", domain.ErrOwnershipMismatch)
	}
	return s.readFile(ctx, securePath, input.FileExtension)
}

// readFile loads a stored file into memory.
func (s *AccessService) readFile(ctx context.Context, securePath, extension string) (*File, error) {
	rc, err := s.files.Open(ctx, securePath)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}

	return &File{
		Content:     content,
		ContentType: storage.ContentType(extension),
		SecurePath:  securePath,
	}, nil
}

// auditGranted records a successful access with identifying metadata.
func (s *AccessService) auditGranted(scheme string, certificateID, recipientID int64, tokenID, clientIP string) {
	s.metrics.AccessGranted.WithLabelValues(scheme).Inc()
	s.logger.Info().
		Str("event", "access_granted").
		Str("scheme", scheme).
		Int64("certificate_id", certificateID).
		Int64("recipient_id", recipientID).
		Str("token_id", tokenID).
		Str("client_ip", clientIP).
		Msg("certificate access granted")
}
