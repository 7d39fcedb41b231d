package local

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return store
}

func buildTestPath(t *testing.T, orgID int64, ext string) string {
	t.Helper()

	path, err := secure.BuildFilePath(secure.FilePathParams{
		OrganizationID:   orgID,
		OrganizationName: "Test Organization",
		CertificateID:    456,
		CertificateTitle: "Test Certificate",
		RecipientID:      789,
		RecipientName:    "Test User",
		FileExtension:    ext,
	})
	require.NoError(t, err)
	return path
}

func TestStore_SaveAndOpen(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := buildTestPath(t, 123, secure.ExtPDF)
	content := []byte("%PDF-1.7 test content")

	require.NoError(t, store.Save(ctx, path, content))

	rc, err := store.Open(ctx, path)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestStore_RejectsNonSecurePaths(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, path := range []string{
		"../outside.pdf",
		"plain.pdf",
		"folder/../../escape.pdf",
		"test-org1/certificate-user-title-cert1.pdf",
	} {
		require.ErrorIs(t, store.Save(ctx, path, []byte("x")), secure.ErrInvalidPathFormat)

		_, err := store.Open(ctx, path)
		require.ErrorIs(t, err, secure.ErrInvalidPathFormat)
	}
}

func TestStore_OpenMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Open(context.Background(), buildTestPath(t, 123, secure.ExtPDF))
	require.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStore_FindByToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := buildTestPath(t, 123, secure.ExtPNG)
	require.NoError(t, store.Save(ctx, path, []byte("png-bytes")))

	token := secure.ParseFilePath(path).SecureToken

	found, err := store.FindByToken(ctx, 123, token, secure.ExtPNG)
	require.NoError(t, err)
	require.Equal(t, path, found)
}

func TestStore_FindByToken_WrongOrganization(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := buildTestPath(t, 123, secure.ExtPDF)
	require.NoError(t, store.Save(ctx, path, []byte("pdf")))

	token := secure.ParseFilePath(path).SecureToken

	// The token exists, but under a different organization's folder.
	_, err := store.FindByToken(ctx, 999, token, secure.ExtPDF)
	require.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStore_FindByToken_WrongExtension(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := buildTestPath(t, 123, secure.ExtPDF)
	require.NoError(t, store.Save(ctx, path, []byte("pdf")))

	token := secure.ParseFilePath(path).SecureToken

	_, err := store.FindByToken(ctx, 123, token, secure.ExtPNG)
	require.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestStore_FindByToken_InvalidToken(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByToken(context.Background(), 123, "nope", secure.ExtPDF)
	require.ErrorIs(t, err, secure.ErrInvalidTokenFormat)
}

func TestStore_FindByToken_SurvivesRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Files minted under the organization's old name.
	oldPath, err := secure.BuildFilePath(secure.FilePathParams{
		OrganizationID:   55,
		OrganizationName: "Old Name",
		CertificateID:    1,
		CertificateTitle: "Title",
		RecipientID:      1,
		RecipientName:    "User",
		FileExtension:    secure.ExtPDF,
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, oldPath, []byte("pdf")))

	// Lookup keys on the organization ID alone, so the current name
	// never enters the search.
	token := secure.ParseFilePath(oldPath).SecureToken
	found, err := store.FindByToken(ctx, 55, token, secure.ExtPDF)
	require.NoError(t, err)
	require.Equal(t, oldPath, found)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	path := buildTestPath(t, 123, secure.ExtHTML)
	require.NoError(t, store.Save(ctx, path, []byte("<html></html>")))
	require.NoError(t, store.Delete(ctx, path))

	_, err := store.Open(ctx, path)
	require.ErrorIs(t, err, domain.ErrFileNotFound)

	require.ErrorIs(t, store.Delete(ctx, path), domain.ErrFileNotFound)
}
