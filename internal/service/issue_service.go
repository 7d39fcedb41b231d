package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/renderer"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

// ErrInvalidExpiration indicates a requested URL or token lifetime is
// outside the allowed range.
var ErrInvalidExpiration = errors.New("invalid expiration: must be between 1 minute and 365 days")

// Expiry bounds for issued URLs and tokens.
const (
	MinExpiry = time.Minute
	MaxExpiry = 365 * 24 * time.Hour
)

// IssueService mints secure URLs and signed tokens for authorized
// callers (the platform's admin surface).
type IssueService struct {
	tokens   *token.Service
	files    storage.FileStore
	certs    repository.CertificateRepository
	orgs     repository.OrganizationRepository
	renderer renderer.Renderer
	baseURL  string
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewIssueService creates an IssueService. baseURL is the public origin
// issued URLs point at.
func NewIssueService(
	tokens *token.Service,
	files storage.FileStore,
	certs repository.CertificateRepository,
	orgs repository.OrganizationRepository,
	rend renderer.Renderer,
	baseURL string,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *IssueService {
	return &IssueService{
		tokens:   tokens,
		files:    files,
		certs:    certs,
		orgs:     orgs,
		renderer: rend,
		baseURL:  baseURL,
		metrics:  m,
		logger:   logger.With().Str("service", "issue").Logger(),
	}
}

// AccessURLInput describes a path-scheme URL request.
type AccessURLInput struct {
	CertificateID int64
	RecipientID   int64
	FileExtension string

	// ExpiresIn bounds the URL's validity; zero issues a URL without
	// an expiry parameter.
	ExpiresIn time.Duration
}

// AccessURLOutput is an issued path-scheme URL.
type AccessURLOutput struct {
	URL        string
	SecurePath string
	ExpiresAt  *time.Time
}

// CreateAccessURL renders and stores the certificate file under a fresh
// secure path, then wraps the path as a time-bound access URL. The file
// is written eagerly so the URL serves without a regeneration round
// trip on first use.
func (s *IssueService) CreateAccessURL(ctx context.Context, input AccessURLInput) (*AccessURLOutput, error) {
	if input.ExpiresIn != 0 && (input.ExpiresIn < MinExpiry || input.ExpiresIn > MaxExpiry) {
		return nil, ErrInvalidExpiration
	}
	if !secure.IsAllowedExtension(input.FileExtension) {
		return nil, secure.ErrInvalidParams
	}

	cert, recipient, org, err := loadCertificate(ctx, s.certs, s.orgs, input.CertificateID, input.RecipientID)
	if err != nil {
		return nil, err
	}

	securePath, err := secure.BuildFilePath(secure.FilePathParams{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		CertificateID:    cert.ID,
		CertificateTitle: cert.Title,
		RecipientID:      recipient.ID,
		RecipientName:    recipient.Name,
		FileExtension:    input.FileExtension,
	})
	if err != nil {
		return nil, err
	}

	content, err := renderContent(ctx, s.renderer, s.metrics, cert, recipient, input.FileExtension)
	if err != nil {
		return nil, err
	}
	if err := s.files.Save(ctx, securePath, content); err != nil {
		return nil, err
	}

	url, err := secure.BuildAccessURL(s.baseURL, securePath, input.ExpiresIn)
	if err != nil {
		return nil, err
	}

	output := &AccessURLOutput{URL: url, SecurePath: securePath}
	if input.ExpiresIn > 0 {
		expiresAt := time.Now().Add(input.ExpiresIn)
		output.ExpiresAt = &expiresAt
	}

	s.logger.Info().
		Str("event", "url_issued").
		Int64("certificate_id", cert.ID).
		Int64("recipient_id", recipient.ID).
		Str("extension", input.FileExtension).
		Msg("secure access URL issued")

	return output, nil
}

// TokenInput describes a signed-token request.
type TokenInput struct {
	CertificateID int64
	RecipientID   int64
	Purpose       token.Purpose
	ExpiresIn     time.Duration
	MaxUses       int
}

// TokenOutput is an issued signed token plus its composed URL.
type TokenOutput struct {
	Token     string
	TokenID   string
	URL       string
	ExpiresAt time.Time
}

// CreateToken mints a purpose-scoped signed token for an existing
// certificate (and recipient, when given) and composes the matching
// human-facing URL.
func (s *IssueService) CreateToken(ctx context.Context, input TokenInput) (*TokenOutput, error) {
	if input.ExpiresIn != 0 && (input.ExpiresIn < MinExpiry || input.ExpiresIn > MaxExpiry) {
		return nil, ErrInvalidExpiration
	}

	cert, recipient, _, err := loadCertificate(ctx, s.certs, s.orgs, input.CertificateID, input.RecipientID)
	if err != nil {
		return nil, err
	}

	var recipientID int64
	if input.RecipientID > 0 {
		recipientID = recipient.ID
	}

	signed, claims, err := s.tokens.Issue(
		token.Payload{CertificateID: cert.ID, RecipientID: recipientID},
		input.Purpose,
		token.IssueOptions{ExpiresIn: input.ExpiresIn, MaxUses: input.MaxUses},
	)
	if err != nil {
		return nil, err
	}

	s.metrics.TokensIssued.WithLabelValues(string(input.Purpose)).Inc()

	var url string
	switch input.Purpose {
	case token.PurposeDownloadAccess:
		url = token.DownloadURL(s.baseURL, cert.ID, secure.ExtPDF, signed)
	default:
		url = token.ViewerURL(s.baseURL, cert.ID, recipientID, signed)
	}

	return &TokenOutput{
		Token:     signed,
		TokenID:   claims.ID,
		URL:       url,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
