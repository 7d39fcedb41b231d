// Package handler provides the HTTP surface of the certificate access
// server.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/secure"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/service"
)

// Generic client-facing failure messages. Detail about why a request
// was rejected stays in the logs; the response body must never reveal
// whether a certificate, file, or token exists.
const (
	msgInvalidParams = "Invalid access parameters"
	msgAccessDenied  = "Access denied"
	msgNotFound      = "Not found"
	msgInternal      = "Internal server error"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// denial classifies a rejected access request for the response, the
// audit log, and metrics.
type denial struct {
	status   int
	message  string
	category string
}

// classifyDenial maps an access failure to its HTTP outcome. Structural
// defects come first, then expiry, then authorization, so a caller
// probing the endpoint learns nothing past the earliest failing gate.
func classifyDenial(err error) denial {
	switch {
	case errors.Is(err, secure.ErrInvalidURLStructure),
		errors.Is(err, secure.ErrInvalidURLFormat),
		errors.Is(err, secure.ErrInvalidTokenFormat),
		errors.Is(err, secure.ErrInvalidPathFormat),
		errors.Is(err, secure.ErrInvalidParams):
		return denial{http.StatusBadRequest, msgInvalidParams, "format"}
	case errors.Is(err, secure.ErrURLExpired):
		return denial{http.StatusUnauthorized, msgAccessDenied, "expired"}
	case errors.Is(err, domain.ErrTokenExpired):
		return denial{http.StatusUnauthorized, msgAccessDenied, "expired"}
	case errors.Is(err, domain.ErrInvalidToken):
		return denial{http.StatusUnauthorized, msgAccessDenied, "invalid_token"}
	case errors.Is(err, domain.ErrPurposeMismatch):
		return denial{http.StatusForbidden, msgAccessDenied, "purpose"}
	case errors.Is(err, domain.ErrUsageExceeded):
		return denial{http.StatusForbidden, msgAccessDenied, "usage"}
	case errors.Is(err, domain.ErrTokenRevoked):
		return denial{http.StatusForbidden, msgAccessDenied, "revoked"}
	case errors.Is(err, domain.ErrOwnershipMismatch):
		return denial{http.StatusForbidden, msgAccessDenied, "ownership"}
	case errors.Is(err, domain.ErrCertificateNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrOrganizationNotFound),
		errors.Is(err, domain.ErrFileNotFound):
		return denial{http.StatusNotFound, msgNotFound, "not_found"}
	case errors.Is(err, service.ErrInvalidExpiration):
		return denial{http.StatusBadRequest, service.ErrInvalidExpiration.Error(), "format"}
	default:
		return denial{http.StatusInternalServerError, msgInternal, "internal"}
	}
}
