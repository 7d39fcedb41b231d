package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/service"
	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/token"
)

// AdminHandler exposes the issuing API: minting secure URLs and signed
// tokens, and revoking tokens. Callers authenticate with a pre-shared
// key in the X-Admin-Key header, checked against a bcrypt hash.
type AdminHandler struct {
	issue      *service.IssueService
	tokens     *token.Service
	apiKeyHash string
	logger     zerolog.Logger
}

// AdminHandlerConfig contains configuration for the admin handler.
type AdminHandlerConfig struct {
	IssueService *service.IssueService
	TokenService *token.Service
	APIKeyHash   string
	Logger       zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminHandlerConfig) *AdminHandler {
	return &AdminHandler{
		issue:      cfg.IssueService,
		tokens:     cfg.TokenService,
		apiKeyHash: cfg.APIKeyHash,
		logger:     cfg.Logger.With().Str("handler", "admin").Logger(),
	}
}

// RegisterRoutes registers the admin routes behind the key check.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Post("/api/admin/certificates/{certID}/secure-url", h.handleCreateSecureURL)
		r.Post("/api/admin/certificates/{certID}/tokens", h.handleCreateToken)
		r.Post("/api/admin/tokens/revoke", h.handleRevokeToken)
	})
}

// requireAPIKey authenticates admin callers. With no hash configured
// the whole admin surface is disabled.
func (h *AdminHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKeyHash == "" {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}

		key := r.Header.Get("X-Admin-Key")
		if err := bcrypt.CompareHashAndPassword([]byte(h.apiKeyHash), []byte(key)); err != nil {
			h.logger.Warn().Str("client_ip", r.RemoteAddr).Str("path", r.URL.Path).Msg("admin key rejected")
			writeError(w, http.StatusUnauthorized, msgAccessDenied)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type createSecureURLRequest struct {
	RecipientID   int64  `json:"recipientId"`
	FileExtension string `json:"fileExtension"`
	ExpiresIn     string `json:"expiresIn"`
}

type createSecureURLResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (h *AdminHandler) handleCreateSecureURL(w http.ResponseWriter, r *http.Request) {
	certID, err := strconv.ParseInt(chi.URLParam(r, "certID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	var req createSecureURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	expiresIn, err := parseDuration(req.ExpiresIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	output, err := h.issue.CreateAccessURL(r.Context(), service.AccessURLInput{
		CertificateID: certID,
		RecipientID:   req.RecipientID,
		FileExtension: req.FileExtension,
		ExpiresIn:     expiresIn,
	})
	if err != nil {
		d := classifyDenial(err)
		h.logger.Warn().Err(err).Int64("certificate_id", certID).Msg("secure url request rejected")
		writeError(w, d.status, d.message)
		return
	}

	writeJSON(w, http.StatusCreated, createSecureURLResponse{
		URL:       output.URL,
		ExpiresAt: output.ExpiresAt,
	})
}

type createTokenRequest struct {
	RecipientID int64  `json:"recipientId"`
	Purpose     string `json:"purpose"`
	ExpiresIn   string `json:"expiresIn"`
	MaxUses     int    `json:"maxUses"`
}

type createTokenResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"tokenId"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *AdminHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	certID, err := strconv.ParseInt(chi.URLParam(r, "certID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	purpose := token.Purpose(req.Purpose)
	if !purpose.IsValid() || req.MaxUses < 0 {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	expiresIn, err := parseDuration(req.ExpiresIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	output, err := h.issue.CreateToken(r.Context(), service.TokenInput{
		CertificateID: certID,
		RecipientID:   req.RecipientID,
		Purpose:       purpose,
		ExpiresIn:     expiresIn,
		MaxUses:       req.MaxUses,
	})
	if err != nil {
		d := classifyDenial(err)
		h.logger.Warn().Err(err).Int64("certificate_id", certID).Str("purpose", req.Purpose).Msg("token request rejected")
		writeError(w, d.status, d.message)
		return
	}

	writeJSON(w, http.StatusCreated, createTokenResponse{
		Token:     output.Token,
		TokenID:   output.TokenID,
		URL:       output.URL,
		ExpiresAt: output.ExpiresAt,
	})
}

type revokeTokenRequest struct {
	Token string `json:"token"`
}

func (h *AdminHandler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeError(w, http.StatusBadRequest, msgInvalidParams)
		return
	}

	if err := h.tokens.Revoke(r.Context(), req.Token); err != nil {
		d := classifyDenial(err)
		h.logger.Warn().Err(err).Msg("token revocation rejected")
		writeError(w, d.status, d.message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseDuration reads an optional Go duration string ("24h", "30m").
// Empty means the purpose default.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
