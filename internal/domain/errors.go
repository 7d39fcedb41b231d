// Package domain contains the core business entities of the certificate
// secure-access service.
package domain

import "errors"

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, storage, etc.).

var (
	// ===========================================
	// Resource Errors
	// ===========================================

	// ErrCertificateNotFound indicates the requested certificate does not exist.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrRecipientNotFound indicates the requested recipient does not exist
	// or does not belong to the certificate.
	ErrRecipientNotFound = errors.New("recipient not found")

	// ErrOrganizationNotFound indicates the requested organization does not exist.
	ErrOrganizationNotFound = errors.New("organization not found")

	// ErrFileNotFound indicates no stored file matches the secure token.
	ErrFileNotFound = errors.New("certificate file not found")

	// ===========================================
	// Access Errors
	// ===========================================

	// ErrAccessDenied indicates the presented credentials do not grant
	// access to the requested resource.
	ErrAccessDenied = errors.New("access denied")

	// ErrOwnershipMismatch indicates the token's claimed certificate or
	// recipient does not match the requested resource.
	ErrOwnershipMismatch = errors.New("token does not match requested resource")

	// ===========================================
	// Token Errors
	// ===========================================

	// ErrInvalidToken indicates the signed token is malformed or its
	// signature, issuer, or audience check failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired indicates the signed token is past its expiry.
	ErrTokenExpired = errors.New("token has expired")

	// ErrPurposeMismatch indicates the token was minted for a different
	// purpose than the endpoint expects.
	ErrPurposeMismatch = errors.New("token purpose mismatch")

	// ErrUsageExceeded indicates a limited-use token has been used up.
	ErrUsageExceeded = errors.New("token usage limit exceeded")

	// ErrTokenRevoked indicates the token's jti is on the denylist.
	ErrTokenRevoked = errors.New("token has been revoked")

	// ===========================================
	// Rendering Errors
	// ===========================================

	// ErrRenderFailed indicates the external renderer could not produce
	// the requested file.
	ErrRenderFailed = errors.New("certificate rendering failed")
)
