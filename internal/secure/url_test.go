package secure

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildAccessURL(t *testing.T) {
	path, err := BuildFilePath(validParams())
	require.NoError(t, err)

	url, err := BuildAccessURL("https://example.com", path, 0)
	require.NoError(t, err)
	require.Regexp(t,
		`^https://example\.com/api/certificates/secure/123/456/[a-f0-9]{24}\.pdf$`,
		url)
}

func TestBuildAccessURL_TrailingSlashBase(t *testing.T) {
	path, err := BuildFilePath(validParams())
	require.NoError(t, err)

	url, err := BuildAccessURL("https://example.com/", path, 0)
	require.NoError(t, err)
	require.NotContains(t, url, "com//api")
}

func TestBuildAccessURL_InvalidPath(t *testing.T) {
	_, err := BuildAccessURL("https://example.com", "not/a/secure/path.pdf", 0)
	require.ErrorIs(t, err, ErrInvalidPathFormat)
}

func TestValidateAccessURL(t *testing.T) {
	info, err := ValidateAccessURL("https://example.com/api/certificates/secure/123/456/abc123def456789012345678.pdf")
	require.NoError(t, err)
	require.Equal(t, int64(123), info.OrganizationID)
	require.Equal(t, int64(456), info.CertificateID)
	require.Equal(t, "abc123def456789012345678", info.SecureToken)
	require.Equal(t, ExtPDF, info.FileExtension)
}

func TestValidateAccessURL_Errors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{
			name:    "wrong route",
			url:     "https://example.com/api/files/123/456/abc123def456789012345678.pdf",
			wantErr: ErrInvalidURLFormat,
		},
		{
			name:    "traversal in path",
			url:     "https://example.com/api/certificates/secure/123/../456/abc123def456789012345678.pdf",
			wantErr: ErrInvalidURLFormat,
		},
		{
			name:    "non-numeric ids",
			url:     "https://example.com/api/certificates/secure/abc/def/abc123def456789012345678.pdf",
			wantErr: ErrInvalidURLFormat,
		},
		{
			name:    "short token",
			url:     "https://example.com/api/certificates/secure/123/456/abc123.pdf",
			wantErr: ErrInvalidTokenFormat,
		},
		{
			name:    "unknown extension",
			url:     "https://example.com/api/certificates/secure/123/456/abc123def456789012345678.exe",
			wantErr: ErrInvalidURLFormat,
		},
		{
			name: "expired",
			url: fmt.Sprintf("https://example.com/api/certificates/secure/123/456/abc123def456789012345678.pdf?expires=%d",
				time.Now().Add(-time.Hour).Unix()),
			wantErr: ErrURLExpired,
		},
		{
			name:    "garbled expires",
			url:     "https://example.com/api/certificates/secure/123/456/abc123def456789012345678.pdf?expires=tomorrow",
			wantErr: ErrInvalidURLFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateAccessURL(tt.url)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAccessURL_ExpiryRoundTrip(t *testing.T) {
	path, err := BuildFilePath(validParams())
	require.NoError(t, err)

	url, err := BuildAccessURL("https://example.com", path, time.Hour)
	require.NoError(t, err)

	info, err := ValidateAccessURL(url)
	require.NoError(t, err)
	require.Equal(t, int64(123), info.OrganizationID)
	require.Equal(t, int64(456), info.CertificateID)
}
