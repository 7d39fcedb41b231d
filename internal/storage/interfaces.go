// Package storage defines the interface for certificate file stores.
// A store persists rendered certificate files under their secure paths
// and locates them again by the token embedded in the file name.
package storage

import (
	"context"
	"io"
)

// FileStore defines the interface for certificate file backends.
// Implementations include the local filesystem and S3. The interface is
// stateless; paths passed in must satisfy the secure path grammar.
type FileStore interface {
	// Save persists content under its secure path, creating the
	// organization folder if needed.
	Save(ctx context.Context, securePath string, content []byte) error

	// Open retrieves a file by its secure path.
	// Returns domain.ErrFileNotFound if no file exists at the path.
	// The returned ReadCloser must be closed after use.
	Open(ctx context.Context, securePath string) (io.ReadCloser, error)

	// FindByToken searches the organization's folder for a file whose
	// name embeds the given secure token with the given extension, and
	// returns its secure path. The folder is matched by its -org{id}
	// suffix alone, never by a re-derived name slug.
	// Returns domain.ErrFileNotFound when nothing matches.
	FindByToken(ctx context.Context, organizationID int64, token, extension string) (string, error)

	// Delete removes a file by its secure path.
	Delete(ctx context.Context, securePath string) error
}

// ContentType returns the MIME type served for a certificate file
// extension.
func ContentType(extension string) string {
	switch extension {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "html":
		return "text/html; charset=utf-8"
	}
	return "application/octet-stream"
}
