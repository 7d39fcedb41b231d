// Package local implements storage.FileStore on the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/storage"
)

// Store persists certificate files under a root directory. Every path
// that reaches the filesystem is first checked against the secure path
// grammar, so nothing outside the root can be addressed.
type Store struct {
	root   string
	logger zerolog.Logger
}

// NewStore creates a local store rooted at dir, creating it if needed.
func NewStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}

	return &Store{
		root:   dir,
		logger: logger.With().Str("component", "local-store").Logger(),
	}, nil
}

// resolve validates a secure path and maps it under the root.
func (s *Store) resolve(securePath string) (string, error) {
	if secure.ParseFilePath(securePath) == nil {
		return "", fmt.Errorf("%w: %q", secure.ErrInvalidPathFormat, securePath)
	}
	return filepath.Join(s.root, filepath.FromSlash(securePath)), nil
}

// Save writes content atomically: to a temp file first, then renamed
// into place.
func (s *Store) Save(ctx context.Context, securePath string, content []byte) error {
	full, err := s.resolve(securePath)
	if err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create organization folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	s.logger.Debug().Str("path", securePath).Int("size", len(content)).Msg("stored certificate file")
	return nil
}

// Open retrieves a file by its secure path.
func (s *Store) Open(ctx context.Context, securePath string) (io.ReadCloser, error) {
	full, err := s.resolve(securePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return f, nil
}

// FindByToken scans the organization's folder for a file name embedding
// the token. Folders are matched by the -org{id} suffix only; the name
// slug an organization had at generation time is irrelevant here.
func (s *Store) FindByToken(ctx context.Context, organizationID int64, token, extension string) (string, error) {
	if !secure.IsValidToken(token) {
		return "", fmt.Errorf("%w: %q", secure.ErrInvalidTokenFormat, token)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", fmt.Errorf("failed to read storage root: %w", err)
	}

	suffix := secure.OrgFolderSuffix(organizationID)
	wanted := token + "." + extension

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}

		files, err := os.ReadDir(filepath.Join(s.root, entry.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read organization folder: %w", err)
		}

		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), wanted) {
				continue
			}
			return entry.Name() + "/" + file.Name(), nil
		}
	}

	return "", domain.ErrFileNotFound
}

// Delete removes a file by its secure path.
func (s *Store) Delete(ctx context.Context, securePath string) error {
	full, err := s.resolve(securePath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrFileNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Ensure Store implements storage.FileStore.
var _ storage.FileStore = (*Store)(nil)
