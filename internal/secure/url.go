package secure

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AccessURLPrefix is the fixed route prefix for path-embedded-token
// access URLs.
const AccessURLPrefix = "/api/certificates/secure"

// Access URL validation errors. Each one maps to a single generic
// failure category; callers must not expose anything more specific.
var (
	ErrInvalidPathFormat   = errors.New("invalid secure path format")
	ErrInvalidURLStructure = errors.New("invalid URL structure")
	ErrInvalidURLFormat    = errors.New("invalid URL format")
	ErrInvalidTokenFormat  = errors.New("invalid token format")
	ErrURLExpired          = errors.New("URL has expired")
)

var accessURLPathPattern = regexp.MustCompile(`^/api/certificates/secure/(\d+)/(\d+)/([a-f0-9]+)\.(pdf|png|html)$`)

// AccessURLInfo is the identity carried by a validated access URL.
type AccessURLInfo struct {
	OrganizationID int64
	CertificateID  int64
	SecureToken    string
	FileExtension  string
}

// BuildAccessURL wraps a secure storage path as an externally-facing
// URL:
//
//	{base}/api/certificates/secure/{orgID}/{certID}/{token}.{ext}[?expires=unix]
//
// expiresIn of zero produces a URL without an expiry parameter. The
// secure path must parse under the builder's grammar.
func BuildAccessURL(baseURL, securePath string, expiresIn time.Duration) (string, error) {
	components := ParseFilePath(securePath)
	if components == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPathFormat, securePath)
	}

	accessURL := fmt.Sprintf("%s%s/%d/%d/%s.%s",
		strings.TrimSuffix(baseURL, "/"), AccessURLPrefix,
		components.OrganizationID, components.CertificateID,
		components.SecureToken, components.FileExtension)

	if expiresIn > 0 {
		accessURL += fmt.Sprintf("?expires=%d", time.Now().Add(expiresIn).Unix())
	}

	return accessURL, nil
}

// ValidateAccessURL checks a full access URL: structure, path grammar,
// token format, and expiry against the wall clock. It is pure and
// touches neither storage nor the database; it is the first-line gate
// before any I/O is attempted.
func ValidateAccessURL(rawURL string) (*AccessURLInfo, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, ErrInvalidURLStructure
	}

	m := accessURLPathPattern.FindStringSubmatch(parsed.Path)
	if m == nil {
		return nil, ErrInvalidURLFormat
	}

	orgID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return nil, ErrInvalidURLFormat
	}
	certID, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return nil, ErrInvalidURLFormat
	}

	token := m[3]
	if !IsValidToken(token) {
		return nil, ErrInvalidTokenFormat
	}

	if expires := parsed.Query().Get("expires"); expires != "" {
		expiresAt, err := strconv.ParseInt(expires, 10, 64)
		if err != nil {
			return nil, ErrInvalidURLFormat
		}
		if time.Now().Unix() > expiresAt {
			return nil, ErrURLExpired
		}
	}

	return &AccessURLInfo{
		OrganizationID: orgID,
		CertificateID:  certID,
		SecureToken:    token,
		FileExtension:  m[4],
	}, nil
}
