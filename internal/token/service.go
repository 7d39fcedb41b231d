// Package token implements the signed access token service: issuance,
// verification, refresh, and revocation of purpose-scoped certificate
// tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

// Purpose scopes a token to one kind of access. Verification fails when
// the presented token's purpose differs from what the endpoint expects.
type Purpose string

// Supported token purposes.
const (
	PurposeCertificateAccess Purpose = "certificate_access"
	PurposeDownloadAccess    Purpose = "download_access"
	PurposeShareAccess       Purpose = "share_access"
	PurposeRefresh           Purpose = "refresh_token"
)

// IsValid reports whether p is a known purpose.
func (p Purpose) IsValid() bool {
	switch p {
	case PurposeCertificateAccess, PurposeDownloadAccess, PurposeShareAccess, PurposeRefresh:
		return true
	}
	return false
}

// Claims is the payload carried by a signed certificate token.
type Claims struct {
	jwt.RegisteredClaims

	CertificateID int64   `json:"certificate_id"`
	RecipientID   int64   `json:"recipient_id,omitempty"`
	Purpose       Purpose `json:"purpose"`

	// MaxUses bounds how often this token may be verified; 0 means
	// unlimited. UsedCount is filled in at verification time from the
	// shared counter store, not from the signed payload.
	MaxUses   int `json:"max_uses"`
	UsedCount int `json:"used_count"`
}

// Config contains the settings for the token service.
type Config struct {
	// Secret is the HMAC signing secret.
	Secret string

	// Issuer and Audience are embedded in every token and enforced at
	// verification.
	Issuer   string
	Audience string

	// Per-purpose default lifetimes.
	AccessTokenTTL   time.Duration
	DownloadTokenTTL time.Duration
	ShareTokenTTL    time.Duration
	RefreshTokenTTL  time.Duration

	// RotateRefresh mints a fresh refresh token on every refresh and
	// revokes the old one.
	RotateRefresh bool
}

// DefaultConfig returns the default token configuration.
func DefaultConfig() Config {
	return Config{
		Issuer:           "culture-certificates",
		Audience:         "certificate-access",
		AccessTokenTTL:   7 * 24 * time.Hour,
		DownloadTokenTTL: time.Hour,
		ShareTokenTTL:    30 * 24 * time.Hour,
		RefreshTokenTTL:  90 * 24 * time.Hour,
	}
}

// Service issues and verifies signed certificate tokens. Verification is
// a pure function of the token and the wall clock except for the two
// store lookups (denylist, usage counter), so any number of concurrent
// calls never interfere.
type Service struct {
	secret        []byte
	issuer        string
	audience      string
	ttls          map[Purpose]time.Duration
	rotateRefresh bool
	store         cache.Store
	logger        zerolog.Logger
}

// NewService creates a token service. The store backs the usage counter
// and the revocation denylist.
func NewService(cfg Config, store cache.Store, logger zerolog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}

	return &Service{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		ttls: map[Purpose]time.Duration{
			PurposeCertificateAccess: cfg.AccessTokenTTL,
			PurposeDownloadAccess:    cfg.DownloadTokenTTL,
			PurposeShareAccess:       cfg.ShareTokenTTL,
			PurposeRefresh:           cfg.RefreshTokenTTL,
		},
		rotateRefresh: cfg.RotateRefresh,
		store:         store,
		logger:        logger.With().Str("service", "token").Logger(),
	}, nil
}

// Payload identifies what a token grants access to.
type Payload struct {
	CertificateID int64
	RecipientID   int64
}

// IssueOptions tune a single issuance. Zero values fall back to the
// purpose's defaults.
type IssueOptions struct {
	// ExpiresIn overrides the purpose's default lifetime.
	ExpiresIn time.Duration

	// MaxUses bounds verifications of this token; 0 means unlimited.
	MaxUses int
}

// Issue mints a signed token for the given payload and purpose.
func (s *Service) Issue(payload Payload, purpose Purpose, opts IssueOptions) (string, *Claims, error) {
	if !purpose.IsValid() {
		return "", nil, fmt.Errorf("%w: unknown purpose %q", domain.ErrInvalidToken, purpose)
	}
	if payload.CertificateID <= 0 {
		return "", nil, fmt.Errorf("%w: certificate id must be positive", domain.ErrInvalidToken)
	}

	expiresIn := opts.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = s.ttls[purpose]
	}

	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
		CertificateID: payload.CertificateID,
		RecipientID:   payload.RecipientID,
		Purpose:       purpose,
		MaxUses:       opts.MaxUses,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Debug().
		Str("jti", claims.ID).
		Str("purpose", string(purpose)).
		Int64("certificate_id", payload.CertificateID).
		Int64("recipient_id", payload.RecipientID).
		Time("expires_at", claims.ExpiresAt.Time).
		Msg("issued token")

	return signed, claims, nil
}

// IssueCertificateToken mints a long-lived viewing token.
func (s *Service) IssueCertificateToken(payload Payload, opts IssueOptions) (string, *Claims, error) {
	return s.Issue(payload, PurposeCertificateAccess, opts)
}

// IssueDownloadToken mints a short-lived download token.
func (s *Service) IssueDownloadToken(payload Payload, opts IssueOptions) (string, *Claims, error) {
	return s.Issue(payload, PurposeDownloadAccess, opts)
}

// IssueShareToken mints a share token for forwarding to third parties.
func (s *Service) IssueShareToken(payload Payload, opts IssueOptions) (string, *Claims, error) {
	return s.Issue(payload, PurposeShareAccess, opts)
}

// IssueRefreshToken mints a refresh token.
func (s *Service) IssueRefreshToken(payload Payload, opts IssueOptions) (string, *Claims, error) {
	return s.Issue(payload, PurposeRefresh, opts)
}

// Verify checks a token end to end: signature, issuer, audience, expiry,
// purpose, denylist, and - for limited-use tokens - the shared usage
// counter. The counter increments only after every other check passed,
// so rejected requests never consume a use.
func (s *Service) Verify(ctx context.Context, tokenString string, expectedPurpose Purpose) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	if claims.Purpose != expectedPurpose {
		return nil, fmt.Errorf("%w: got %q, want %q", domain.ErrPurposeMismatch, claims.Purpose, expectedPurpose)
	}

	revoked, err := s.store.Exists(ctx, denyKey(claims.ID))
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, domain.ErrTokenRevoked
	}

	if claims.MaxUses > 0 {
		used, err := s.store.Increment(ctx, usageKey(claims.ID), time.Until(claims.ExpiresAt.Time))
		if err != nil {
			return nil, err
		}
		if used > int64(claims.MaxUses) {
			return nil, domain.ErrUsageExceeded
		}
		claims.UsedCount = int(used)
	}

	return claims, nil
}

// RefreshResult is the outcome of a token refresh.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Refresh exchanges a refresh token for a new access token bound to the
// same certificate and recipient. With rotation enabled the refresh
// token is replaced and the old one revoked; otherwise the presented
// refresh token is handed back unchanged.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.Verify(ctx, refreshToken, PurposeRefresh)
	if err != nil {
		return nil, err
	}

	payload := Payload{CertificateID: claims.CertificateID, RecipientID: claims.RecipientID}

	accessToken, accessClaims, err := s.IssueCertificateToken(payload, IssueOptions{})
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    time.Until(accessClaims.ExpiresAt.Time),
	}

	if s.rotateRefresh {
		rotated, _, err := s.IssueRefreshToken(payload, IssueOptions{})
		if err != nil {
			return nil, err
		}
		if err := s.revokeClaims(ctx, claims); err != nil {
			return nil, err
		}
		result.RefreshToken = rotated
	}

	return result, nil
}

// Revoke denylists a token's jti for the remainder of its lifetime. The
// token must carry a valid signature; revoking an already expired token
// is a no-op.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil
		}
		return err
	}

	return s.revokeClaims(ctx, claims)
}

func (s *Service) revokeClaims(ctx context.Context, claims *Claims) error {
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining <= 0 {
		return nil
	}

	if err := s.store.Set(ctx, denyKey(claims.ID), []byte("1"), remaining); err != nil {
		return err
	}

	s.logger.Info().
		Str("jti", claims.ID).
		Int64("certificate_id", claims.CertificateID).
		Dur("remaining", remaining).
		Msg("token revoked")

	return nil
}

// parse validates signature, issuer, audience, and expiry, and returns
// the claims.
func (s *Service) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

// ViewerURL composes the human-facing certificate viewer URL carrying a
// bearer token as a query parameter. This scheme is independent of the
// path-embedded-token scheme; the two are valid side by side.
func ViewerURL(baseURL string, certificateID, recipientID int64, token string) string {
	return fmt.Sprintf("%s/certificates/secure/%d/%d?token=%s",
		strings.TrimSuffix(baseURL, "/"), certificateID, recipientID, url.QueryEscape(token))
}

// DownloadURL composes the API download URL for one file type of a
// certificate, carrying a bearer token as a query parameter.
func DownloadURL(baseURL string, certificateID int64, fileType, token string) string {
	return fmt.Sprintf("%s/api/certificates/secure/%d/%s?token=%s",
		strings.TrimSuffix(baseURL, "/"), certificateID, fileType, url.QueryEscape(token))
}

func denyKey(jti string) string  { return "certtoken:deny:" + jti }
func usageKey(jti string) string { return "certtoken:uses:" + jti }
