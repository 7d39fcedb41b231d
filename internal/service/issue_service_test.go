package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache/memory"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/metrics"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/repository"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

const testBaseURL = "https://certs.example.com"

func newTestIssueService(t *testing.T) (*IssueService, *mockFileStore, *mockCertificateRepository, *mockOrganizationRepository, *mockRenderer) {
	t.Helper()

	store := memory.NewStore()
	t.Cleanup(store.Stop)

	cfg := token.DefaultConfig()
	cfg.Secret = "test-secret-at-least-32-bytes-long!"
	tokens, err := token.NewService(cfg, store, zerolog.Nop())
	require.NoError(t, err)

	files := &mockFileStore{}
	certs := &mockCertificateRepository{}
	orgs := &mockOrganizationRepository{}
	rend := &mockRenderer{}
	m := metrics.New(prometheus.NewRegistry())
	svc := NewIssueService(tokens, files, certs, orgs, rend, testBaseURL, m, zerolog.Nop())
	return svc, files, certs, orgs, rend
}

func TestIssueService_CreateAccessURL(t *testing.T) {
	tests := []struct {
		name    string
		input   AccessURLInput
		setup   func(*mockFileStore, *mockCertificateRepository, *mockOrganizationRepository, *mockRenderer)
		wantErr error
	}{
		{
			name: "issues a working url",
			input: AccessURLInput{
				CertificateID: 42,
				RecipientID:   9,
				FileExtension: secure.ExtPDF,
				ExpiresIn:     time.Hour,
			},
			setup: func(files *mockFileStore, certs *mockCertificateRepository, orgs *mockOrganizationRepository, rend *mockRenderer) {
				certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
				orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)
				rend.On("Render", mock.Anything, mock.Anything, secure.ExtPDF).Return([]byte("%PDF"), nil)
				files.On("Save", mock.Anything, mock.AnythingOfType("string"), []byte("%PDF")).Return(nil)
			},
		},
		{
			name: "expiration below minimum",
			input: AccessURLInput{
				CertificateID: 42,
				FileExtension: secure.ExtPDF,
				ExpiresIn:     time.Second,
			},
			setup:   func(*mockFileStore, *mockCertificateRepository, *mockOrganizationRepository, *mockRenderer) {},
			wantErr: ErrInvalidExpiration,
		},
		{
			name: "expiration above maximum",
			input: AccessURLInput{
				CertificateID: 42,
				FileExtension: secure.ExtPDF,
				ExpiresIn:     366 * 24 * time.Hour,
			},
			setup:   func(*mockFileStore, *mockCertificateRepository, *mockOrganizationRepository, *mockRenderer) {},
			wantErr: ErrInvalidExpiration,
		},
		{
			name: "unsupported extension",
			input: AccessURLInput{
				CertificateID: 42,
				FileExtension: "exe",
			},
			setup:   func(*mockFileStore, *mockCertificateRepository, *mockOrganizationRepository, *mockRenderer) {},
			wantErr: secure.ErrInvalidParams,
		},
		{
			name: "certificate missing",
			input: AccessURLInput{
				CertificateID: 404,
				FileExtension: secure.ExtPDF,
			},
			setup: func(files *mockFileStore, certs *mockCertificateRepository, orgs *mockOrganizationRepository, rend *mockRenderer) {
				certs.On("FindWithRecipients", mock.Anything, int64(404)).Return(nil, repository.ErrNotFound)
			},
			wantErr: domain.ErrCertificateNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, files, certs, orgs, rend := newTestIssueService(t)
			tt.setup(files, certs, orgs, rend)

			output, err := svc.CreateAccessURL(context.Background(), tt.input)

			if tt.wantErr != nil {
				require.Error(t, err)
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.True(t, strings.HasPrefix(output.URL, testBaseURL+secure.AccessURLPrefix+"/"))

				// The stored path round-trips through the parser and
				// the URL validates as unexpired.
				components := secure.ParseFilePath(output.SecurePath)
				require.NotNil(t, components)
				require.Equal(t, int64(7), components.OrganizationID)
				require.Equal(t, int64(42), components.CertificateID)

				info, err := secure.ValidateAccessURL(output.URL)
				require.NoError(t, err)
				require.Equal(t, components.SecureToken, info.SecureToken)
				require.NotNil(t, output.ExpiresAt)
			}

			mock.AssertExpectationsForObjects(t, files, certs, orgs, rend)
		})
	}
}

func TestIssueService_CreateAccessURL_NoExpiry(t *testing.T) {
	svc, files, certs, orgs, rend := newTestIssueService(t)
	certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
	orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)
	files.On("Save", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	output, err := svc.CreateAccessURL(context.Background(), AccessURLInput{
		CertificateID: 42,
		RecipientID:   9,
		FileExtension: secure.ExtHTML,
	})
	require.NoError(t, err)
	require.Nil(t, output.ExpiresAt)
	require.NotContains(t, output.URL, "expires=")
	rend.AssertNotCalled(t, "Render")
}

func TestIssueService_CreateToken(t *testing.T) {
	tests := []struct {
		name    string
		input   TokenInput
		wantURL string
	}{
		{
			name: "share token composes viewer url",
			input: TokenInput{
				CertificateID: 42,
				RecipientID:   9,
				Purpose:       token.PurposeShareAccess,
			},
			wantURL: testBaseURL + "/certificates/secure/42/9?token=",
		},
		{
			name: "download token composes download url",
			input: TokenInput{
				CertificateID: 42,
				RecipientID:   9,
				Purpose:       token.PurposeDownloadAccess,
			},
			wantURL: testBaseURL + "/api/certificates/secure/42/pdf?token=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, files, certs, orgs, rend := newTestIssueService(t)
			certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
			orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)

			output, err := svc.CreateToken(context.Background(), tt.input)
			require.NoError(t, err)
			require.NotEmpty(t, output.Token)
			require.NotEmpty(t, output.TokenID)
			require.Equal(t, tt.wantURL+output.Token, output.URL)
			require.True(t, output.ExpiresAt.After(time.Now()))

			mock.AssertExpectationsForObjects(t, files, certs, orgs, rend)
		})
	}
}

func TestIssueService_CreateToken_Verifiable(t *testing.T) {
	svc, _, certs, orgs, _ := newTestIssueService(t)
	certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
	orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)

	output, err := svc.CreateToken(context.Background(), TokenInput{
		CertificateID: 42,
		RecipientID:   9,
		Purpose:       token.PurposeCertificateAccess,
		MaxUses:       3,
	})
	require.NoError(t, err)

	claims, err := svc.tokens.Verify(context.Background(), output.Token, token.PurposeCertificateAccess)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.CertificateID)
	require.Equal(t, int64(9), claims.RecipientID)
	require.Equal(t, output.TokenID, claims.ID)
}

func TestIssueService_CreateToken_CertificateScopedOnly(t *testing.T) {
	svc, _, certs, orgs, _ := newTestIssueService(t)
	certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
	orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)

	output, err := svc.CreateToken(context.Background(), TokenInput{
		CertificateID: 42,
		Purpose:       token.PurposeCertificateAccess,
	})
	require.NoError(t, err)

	claims, err := svc.tokens.Verify(context.Background(), output.Token, token.PurposeCertificateAccess)
	require.NoError(t, err)
	require.Zero(t, claims.RecipientID)
}

func TestIssueService_CreateToken_InvalidExpiration(t *testing.T) {
	svc, _, _, _, _ := newTestIssueService(t)

	_, err := svc.CreateToken(context.Background(), TokenInput{
		CertificateID: 42,
		Purpose:       token.PurposeShareAccess,
		ExpiresIn:     time.Millisecond,
	})
	require.ErrorIs(t, err, ErrInvalidExpiration)
}
