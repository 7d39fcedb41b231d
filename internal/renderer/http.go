package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

// HTTPRenderer talks to the external render service over HTTP. The
// service accepts an HTML document and returns the rendered file bytes.
type HTTPRenderer struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer creates a renderer client for the given endpoint.
func NewHTTPRenderer(url string, timeout time.Duration, logger zerolog.Logger) *HTTPRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRenderer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "renderer").Logger(),
	}
}

type renderRequest struct {
	HTML   string `json:"html"`
	Format string `json:"format"`
}

// Render submits the document and returns the rendered bytes.
func (r *HTTPRenderer) Render(ctx context.Context, html string, format string) ([]byte, error) {
	body, err := json.Marshal(renderRequest{HTML: html, Format: format})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Warn().Int("status", resp.StatusCode).Str("format", format).Msg("render service returned an error")
		return nil, fmt.Errorf("%w: render service returned %d", domain.ErrRenderFailed, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRenderFailed, err)
	}

	return content, nil
}
