package token

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/cache/memory"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

func newTestService(t *testing.T, mutate func(*Config)) *Service {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Secret = "test-secret-for-certificate-tokens"
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.NewStore()
	t.Cleanup(store.Stop)

	svc, err := NewService(cfg, store, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresSecret(t *testing.T) {
	store := memory.NewStore()
	defer store.Stop()

	_, err := NewService(Config{}, store, zerolog.Nop())
	require.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, issued, err := svc.IssueCertificateToken(Payload{CertificateID: 456, RecipientID: 789}, IssueOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, issued.ID)

	claims, err := svc.Verify(ctx, signed, PurposeCertificateAccess)
	require.NoError(t, err)
	require.Equal(t, int64(456), claims.CertificateID)
	require.Equal(t, int64(789), claims.RecipientID)
	require.Equal(t, PurposeCertificateAccess, claims.Purpose)
	require.Equal(t, issued.ID, claims.ID)
}

func TestIssue_Validation(t *testing.T) {
	svc := newTestService(t, nil)

	_, _, err := svc.Issue(Payload{CertificateID: 0}, PurposeCertificateAccess, IssueOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidToken)

	_, _, err = svc.Issue(Payload{CertificateID: 1}, Purpose("admin_access"), IssueOptions{})
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_PurposeMismatch(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, _, err := svc.IssueDownloadToken(Payload{CertificateID: 1}, IssueOptions{})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, signed, PurposeCertificateAccess)
	require.ErrorIs(t, err, domain.ErrPurposeMismatch)
}

func TestVerify_Expired(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, _, err := svc.IssueDownloadToken(Payload{CertificateID: 1}, IssueOptions{ExpiresIn: time.Nanosecond})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = svc.Verify(ctx, signed, PurposeDownloadAccess)
	require.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestVerify_Malformed(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	for _, tokenString := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.Verify(ctx, tokenString, PurposeCertificateAccess)
		require.ErrorIs(t, err, domain.ErrInvalidToken)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := newTestService(t, nil)
	verifier := newTestService(t, func(c *Config) { c.Secret = "a-different-secret-entirely" })
	ctx := context.Background()

	signed, _, err := issuer.IssueCertificateToken(Payload{CertificateID: 1}, IssueOptions{})
	require.NoError(t, err)

	_, err = verifier.Verify(ctx, signed, PurposeCertificateAccess)
	require.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestVerify_UsageLimit(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, _, err := svc.IssueDownloadToken(Payload{CertificateID: 1}, IssueOptions{MaxUses: 2})
	require.NoError(t, err)

	claims, err := svc.Verify(ctx, signed, PurposeDownloadAccess)
	require.NoError(t, err)
	require.Equal(t, 1, claims.UsedCount)

	claims, err = svc.Verify(ctx, signed, PurposeDownloadAccess)
	require.NoError(t, err)
	require.Equal(t, 2, claims.UsedCount)

	_, err = svc.Verify(ctx, signed, PurposeDownloadAccess)
	require.ErrorIs(t, err, domain.ErrUsageExceeded)
}

func TestVerify_RejectedRequestDoesNotConsumeUse(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, _, err := svc.IssueDownloadToken(Payload{CertificateID: 1}, IssueOptions{MaxUses: 1})
	require.NoError(t, err)

	// Wrong purpose fails before the counter is touched.
	_, err = svc.Verify(ctx, signed, PurposeShareAccess)
	require.ErrorIs(t, err, domain.ErrPurposeMismatch)

	_, err = svc.Verify(ctx, signed, PurposeDownloadAccess)
	require.NoError(t, err)
}

func TestRevoke(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	signed, _, err := svc.IssueShareToken(Payload{CertificateID: 1}, IssueOptions{})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, signed))

	_, err = svc.Verify(ctx, signed, PurposeShareAccess)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)
}

func TestRefresh(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	refresh, _, err := svc.IssueRefreshToken(Payload{CertificateID: 456, RecipientID: 789}, IssueOptions{})
	require.NoError(t, err)

	result, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	require.Equal(t, refresh, result.RefreshToken)
	require.Greater(t, result.ExpiresIn, time.Duration(0))

	claims, err := svc.Verify(ctx, result.AccessToken, PurposeCertificateAccess)
	require.NoError(t, err)
	require.Equal(t, int64(456), claims.CertificateID)
	require.Equal(t, int64(789), claims.RecipientID)
}

func TestRefresh_Rotation(t *testing.T) {
	svc := newTestService(t, func(c *Config) { c.RotateRefresh = true })
	ctx := context.Background()

	refresh, _, err := svc.IssueRefreshToken(Payload{CertificateID: 1}, IssueOptions{})
	require.NoError(t, err)

	result, err := svc.Refresh(ctx, refresh)
	require.NoError(t, err)
	require.NotEqual(t, refresh, result.RefreshToken)

	// The old refresh token is revoked, the rotated one works.
	_, err = svc.Refresh(ctx, refresh)
	require.ErrorIs(t, err, domain.ErrTokenRevoked)

	_, err = svc.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RejectsNonRefreshTokens(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	access, _, err := svc.IssueCertificateToken(Payload{CertificateID: 1}, IssueOptions{})
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, access)
	require.ErrorIs(t, err, domain.ErrPurposeMismatch)
}

func TestComposedURLs(t *testing.T) {
	require.Equal(t,
		"https://example.com/certificates/secure/456/789?token=abc",
		ViewerURL("https://example.com/", 456, 789, "abc"))

	require.Equal(t,
		"https://example.com/api/certificates/secure/456/pdf?token=abc",
		DownloadURL("https://example.com", 456, "pdf", "abc"))
}
