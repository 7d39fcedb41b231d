package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

func adminHeaders() map[string]string {
	return map[string]string{"X-Admin-Key": testAdminKey}
}

func TestAdminHandler_RequiresKey(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name    string
		headers map[string]string
		want    int
	}{
		{name: "missing key", headers: nil, want: http.StatusUnauthorized},
		{name: "wrong key", headers: map[string]string{"X-Admin-Key": "nope"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.postJSON(t, "/api/admin/tokens/revoke", revokeTokenRequest{Token: "x"}, tt.headers)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminHandler_CreateSecureURL(t *testing.T) {
	ts := newTestServer(t)
	ts.certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
	ts.orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)
	ts.rend.On("Render", mock.Anything, mock.Anything, "pdf").Return([]byte("%PDF"), nil)
	ts.files.On("Save", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	rec := ts.postJSON(t, "/api/admin/certificates/42/secure-url", createSecureURLRequest{
		RecipientID:   9,
		FileExtension: "pdf",
		ExpiresIn:     "24h",
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createSecureURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ExpiresAt)

	info, err := secure.ValidateAccessURL(resp.URL)
	require.NoError(t, err)
	require.Equal(t, int64(7), info.OrganizationID)
	require.Equal(t, int64(42), info.CertificateID)
}

func TestAdminHandler_CreateSecureURL_BadExpiration(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON(t, "/api/admin/certificates/42/secure-url", createSecureURLRequest{
		FileExtension: "pdf",
		ExpiresIn:     "5s",
	}, adminHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler_CreateSecureURL_UnknownCertificate(t *testing.T) {
	ts := newTestServer(t)
	ts.certs.On("FindWithRecipients", mock.Anything, int64(404)).Return(nil, domain.ErrCertificateNotFound)

	rec := ts.postJSON(t, "/api/admin/certificates/404/secure-url", createSecureURLRequest{
		FileExtension: "pdf",
	}, adminHeaders())
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminHandler_CreateToken(t *testing.T) {
	ts := newTestServer(t)
	ts.certs.On("FindWithRecipients", mock.Anything, int64(42)).Return(testCertificate(), nil)
	ts.orgs.On("FindByID", mock.Anything, int64(7)).Return(testOrganization(), nil)

	rec := ts.postJSON(t, "/api/admin/certificates/42/tokens", createTokenRequest{
		RecipientID: 9,
		Purpose:     string(token.PurposeShareAccess),
		MaxUses:     10,
	}, adminHeaders())
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp createTokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.TokenID)
	require.Contains(t, resp.URL, "/certificates/secure/42/9?token=")

	claims, err := ts.tokens.Verify(context.Background(), resp.Token, token.PurposeShareAccess)
	require.NoError(t, err)
	require.Equal(t, int64(42), claims.CertificateID)
}

func TestAdminHandler_CreateToken_InvalidPurpose(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postJSON(t, "/api/admin/certificates/42/tokens", createTokenRequest{
		Purpose: "root_access",
	}, adminHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminHandler_RevokeToken(t *testing.T) {
	ts := newTestServer(t)

	signed, _, err := ts.tokens.IssueShareToken(token.Payload{CertificateID: 42, RecipientID: 9}, token.IssueOptions{})
	require.NoError(t, err)

	rec := ts.postJSON(t, "/api/admin/tokens/revoke", revokeTokenRequest{Token: signed}, adminHeaders())
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Revoked tokens stop working everywhere.
	get := ts.get(t, "/certificates/secure/42/9?token="+signed)
	require.Equal(t, http.StatusForbidden, get.Code)
}

func TestAdminHandler_DisabledWithoutHash(t *testing.T) {
	ts := newTestServer(t)

	admin := NewAdminHandler(AdminHandlerConfig{
		IssueService: ts.issue,
		TokenService: ts.tokens,
		APIKeyHash:   "",
		Logger:       zerolog.Nop(),
	})

	r := chi.NewRouter()
	admin.RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/tokens/revoke", strings.NewReader(`{"token":"x"}`))
	req.Header.Set("X-Admin-Key", testAdminKey)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
