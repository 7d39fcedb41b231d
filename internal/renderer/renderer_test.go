package renderer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/waynedevilliers/my-culture-app-enhanced-sub000/internal/domain"
)

func TestBuildHTML(t *testing.T) {
	cert := &domain.Certificate{
		Title:       "Award of Excellence",
		Description: "For outstanding contribution",
		IssuedDate:  time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		IssuedFrom:  "Test Organization",
	}
	recipient := &domain.Recipient{Name: "Jane Doe"}

	html, err := BuildHTML(cert, recipient)
	require.NoError(t, err)
	require.Contains(t, html, "Award of Excellence")
	require.Contains(t, html, "Jane Doe")
	require.Contains(t, html, "15 March 2024")
}

func TestBuildHTML_EscapesUserText(t *testing.T) {
	cert := &domain.Certificate{Title: "<script>alert(1)</script>"}
	recipient := &domain.Recipient{Name: "Jane & Joe"}

	html, err := BuildHTML(cert, recipient)
	require.NoError(t, err)
	require.NotContains(t, html, "<script>alert(1)</script>")
	require.Contains(t, html, "Jane &amp; Joe")
}

func TestHTTPRenderer_Render(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "pdf", req.Format)
		require.Contains(t, req.HTML, "<html>")
		w.Write([]byte("%PDF-1.4"))
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, 5*time.Second, zerolog.Nop())
	content, err := r.Render(context.Background(), "<html></html>", "pdf")
	require.NoError(t, err)
	require.Equal(t, []byte("%PDF-1.4"), content)
}

func TestHTTPRenderer_Render_ServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, 5*time.Second, zerolog.Nop())
	_, err := r.Render(context.Background(), "<html></html>", "pdf")
	require.ErrorIs(t, err, domain.ErrRenderFailed)
}
